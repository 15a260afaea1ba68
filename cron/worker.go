package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"schoolfees/config"
	"schoolfees/models"
	"schoolfees/services/outbox"
	"schoolfees/services/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const sweepBatchSize = 200

// OutboxDispatcher is the part of the outbox service the worker drives.
type OutboxDispatcher interface {
	Dispatch(ctx context.Context, eventID string) error
	ListDue(ctx context.Context, limit int) ([]models.OutboxEvent, error)
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// OutboxWorker drains the outbox: a scheduler enqueues a sweep, the sweep enqueues one
// dispatch task per due event, and dispatch runs the event's handler.
type OutboxWorker struct {
	dispatcher OutboxDispatcher
	enqueuer   Enqueuer
	logger     *zap.Logger

	server    *asynq.Server
	scheduler *asynq.Scheduler
	client    *asynq.Client
}

func redisOpts() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
}

// NewOutboxWorker wires the asynq server, client and scheduler on the queue database.
func NewOutboxWorker(dispatcher OutboxDispatcher, logger *zap.Logger) *OutboxWorker {
	opts := redisOpts()
	client := asynq.NewClient(opts)
	w := newOutboxWorker(dispatcher, client, logger)
	w.client = client
	w.server = asynq.NewServer(opts, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			"default": 1,
		},
	})
	w.scheduler = asynq.NewScheduler(opts, &asynq.SchedulerOpts{Location: time.Local})
	return w
}

func newOutboxWorker(dispatcher OutboxDispatcher, enqueuer Enqueuer, logger *zap.Logger) *OutboxWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutboxWorker{dispatcher: dispatcher, enqueuer: enqueuer, logger: logger}
}

func (w *OutboxWorker) mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeOutboxDispatch, w.handleDispatch)
	mux.HandleFunc(tasks.TypeOutboxSweep, w.handleSweep)
	return mux
}

// Start runs the worker and the sweep schedule in the background.
func (w *OutboxWorker) Start() error {
	interval := config.AppConfig.OutboxSweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	if _, err := w.scheduler.Register(fmt.Sprintf("@every %s", interval), tasks.NewSweepTask()); err != nil {
		return fmt.Errorf("failed to schedule outbox sweep: %w", err)
	}

	go func() {
		w.logger.Info("Starting outbox worker", zap.Duration("sweep_interval", interval))
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			err := w.server.Run(w.mux())
			if err == nil {
				return
			}
			w.logger.Error("Outbox worker failed to start", zap.Int("attempt", attempts), zap.Error(err))
			if attempts == maxAttempts {
				w.logger.Error("Outbox worker gave up; failed side effects will wait for the next start")
				return
			}
			time.Sleep(time.Duration(attempts*2) * time.Second)
		}
	}()

	go func() {
		if err := w.scheduler.Run(); err != nil {
			w.logger.Error("Outbox scheduler stopped", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown stops the scheduler and waits for in-flight tasks.
func (w *OutboxWorker) Shutdown() {
	if w.scheduler != nil {
		w.scheduler.Shutdown()
	}
	if w.server != nil {
		w.server.Shutdown()
	}
	if w.client != nil {
		_ = w.client.Close()
	}
}

func (w *OutboxWorker) handleDispatch(ctx context.Context, task *asynq.Task) error {
	p, err := tasks.ParseDispatchPayload(task)
	if err != nil {
		w.logger.Error("Dropping dispatch task", zap.Error(err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	err = w.dispatcher.Dispatch(ctx, p.EventID)
	switch {
	case err == nil, errors.Is(err, outbox.ErrNotClaimed):
		return nil
	case errors.Is(err, outbox.ErrNoHandler):
		w.logger.Error("No handler for outbox event", zap.String("event_id", p.EventID), zap.Error(err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	default:
		// The event carries its own retry schedule; the next sweep picks it up.
		w.logger.Debug("Outbox dispatch failed", zap.String("event_id", p.EventID), zap.Error(err))
		return nil
	}
}

func (w *OutboxWorker) handleSweep(ctx context.Context, _ *asynq.Task) error {
	due, err := w.dispatcher.ListDue(ctx, sweepBatchSize)
	if err != nil {
		w.logger.Error("Outbox sweep failed", zap.Error(err))
		return err
	}

	enqueued := 0
	for _, event := range due {
		task, opts, err := tasks.NewDispatchTask(event.ID, event.Attempts)
		if err != nil {
			return err
		}
		if _, err := w.enqueuer.EnqueueContext(ctx, task, opts...); err != nil {
			if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
				continue
			}
			w.logger.Warn("Failed to enqueue outbox dispatch", zap.String("event_id", event.ID), zap.Error(err))
			continue
		}
		enqueued++
	}
	if enqueued > 0 {
		w.logger.Info("Outbox sweep enqueued events", zap.Int("count", enqueued), zap.Int("due", len(due)))
	}
	return nil
}
