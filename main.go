package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"schoolfees/config"
	"schoolfees/cron"
	"schoolfees/database"
	auditRepo "schoolfees/database/repository/audit"
	directoryRepo "schoolfees/database/repository/directory"
	incomeRepo "schoolfees/database/repository/income"
	ledgerRepo "schoolfees/database/repository/ledger"
	outboxRepo "schoolfees/database/repository/outbox"
	receiptRepo "schoolfees/database/repository/receipt"
	"schoolfees/handlers"
	"schoolfees/middleware"
	"schoolfees/routes"
	"schoolfees/services/audit"
	"schoolfees/services/collection"
	"schoolfees/services/income"
	"schoolfees/services/notification"
	"schoolfees/services/outbox"
	"schoolfees/services/receipt"
	"schoolfees/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()
	defer logger.Sync()

	if tz := config.AppConfig.Timezone; tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			time.Local = loc
		} else {
			logger.Warn("main: unknown TIMEZONE, keeping system default", zap.String("timezone", tz), zap.Error(err))
		}
	}

	database.InitDB()
	utils.InitCache()
	utils.InitSequenceStore()

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	if err := utils.FirebaseInit(rootCtx); err != nil {
		logger.Warn("main: guardian notifications disabled", zap.Error(err))
	}

	// repositories.
	db := database.DB()
	ledger := ledgerRepo.NewMongoLedgerRepo(db, database.TransactionsEnabled, config.AppConfig.TxMaxAttempts)
	mongoDirectory := directoryRepo.NewMongoDirectoryRepo(db)
	receipts := receiptRepo.NewMongoReceiptRepo(db)
	incomeEntries := incomeRepo.NewMongoIncomeRepo(db)
	auditLogs := auditRepo.NewMongoAuditRepo(db)
	events := outboxRepo.NewMongoOutboxRepo(db)

	for name, ensure := range map[string]func(context.Context) error{
		"ledger":    ledger.EnsureIndexes,
		"directory": mongoDirectory.EnsureIndexes,
		"receipts":  receipts.EnsureIndexes,
		"income":    incomeEntries.EnsureIndexes,
		"audit":     auditLogs.EnsureIndexes,
		"outbox":    events.EnsureIndexes,
	} {
		if err := ensure(rootCtx); err != nil {
			logger.Fatal("main: failed to create indexes", zap.String("store", name), zap.Error(err))
		}
	}

	directory := directoryRepo.NewCachedDirectory(mongoDirectory, utils.GetCacheClient(), config.AppConfig.SchoolCacheTTL, logger)

	// services.
	dispatcher := outbox.NewDispatcher(events, outbox.Options{
		MaxAttempts: config.AppConfig.OutboxMaxAttempts,
		RetryBase:   config.AppConfig.OutboxRetryBase,
		Lease:       config.AppConfig.OutboxLease,
		InlineGrace: config.AppConfig.OutboxInlineGrace,
	}, logger)

	sequence := receipt.NewRedisSequence(utils.GetSequenceClient(), config.AppConfig.ReceiptSequenceTimeout)
	issuer := receipt.NewIssuer(receipts, sequence, directory, ledger, logger)
	bridge := income.NewBridge(incomeEntries, directory, config.AppConfig.IncomeBookingMode, logger)
	auditor := audit.NewLogger(auditLogs, logger)

	var sender notification.Sender
	if utils.FCMClient != nil {
		sender = utils.FCMClient
	}
	notifier := notification.NewFCMGuardianNotifier(sender, directory, logger)

	collectionService, err := collection.NewCollectionService(collection.Deps{
		Ledger:    ledger,
		Directory: directory,
		Receipts:  receipts,
		Income:    incomeEntries,
		Events:    events,
		Outbox:    dispatcher,
		Issuer:    issuer,
		Booker:    bridge,
		Auditor:   auditor,
		Notifier:  notifier,
	}, logger)
	if err != nil {
		logger.Fatal("main: failed to build collection service", zap.Error(err))
	}
	collectionService.RegisterOutboxHandlers()

	worker := cron.NewOutboxWorker(dispatcher, logger)
	if err := worker.Start(); err != nil {
		logger.Fatal("main: failed to start outbox worker", zap.Error(err))
	}

	utils.StartHealthMonitor(rootCtx, 30*time.Second,
		[]*redis.Client{utils.GetCacheClient(), utils.GetSequenceClient()}, database.MongoClient)

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(utils.ErrorHandler())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RateLimitMiddleware(config.AppConfig.MaxRequestsPerMin))

	feeHandler := handlers.NewFeeHandler(collectionService, logger)
	handlerBundle := handlers.NewHandlerBundle(feeHandler, &handlers.HealthHandler{})
	routes.RegisterRoutes(router, handlerBundle)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Errorf("main: server forced to shutdown: %v", err)
	}
	worker.Shutdown()
	stop()
	if err := database.MongoClient.Disconnect(ctx); err != nil {
		logger.Sugar().Errorf("main: failed to disconnect MongoDB: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
