package collection

import (
	"context"
	"fmt"
	"time"

	directoryRepo "schoolfees/database/repository/directory"
	incomeRepo "schoolfees/database/repository/income"
	ledgerRepo "schoolfees/database/repository/ledger"
	outboxRepo "schoolfees/database/repository/outbox"
	receiptRepo "schoolfees/database/repository/receipt"
	"schoolfees/models"
	"schoolfees/services/notification"
	"schoolfees/services/outbox"

	"go.uber.org/zap"
)

// CollectionService accepts fee payments and serves the payment history around them.
type CollectionService interface {
	CollectFees(ctx context.Context, req models.CollectionRequest) (*models.CollectionResult, error)
	GetPayment(ctx context.Context, schoolCode, paymentID string) (*models.CollectionResult, error)
	ListStudentPayments(ctx context.Context, schoolCode, studentID string) ([]models.StudentPayment, error)
	ListStudentObligations(ctx context.Context, schoolCode, studentID string) ([]models.FeeObligationView, error)
}

type ReceiptIssuer interface {
	Issue(ctx context.Context, payment *models.Payment, allocations []models.PaymentAllocation) (*models.Receipt, error)
}

type IncomeBooker interface {
	Book(ctx context.Context, payment *models.Payment, receipt *models.Receipt) (*models.IncomeEntry, error)
}

type AuditRecorder interface {
	PaymentCollected(ctx context.Context, payment *models.Payment, allocations []models.PaymentAllocation, receipt *models.Receipt) error
}

// Outbox creates side-effect intents and runs them under a claim.
type Outbox interface {
	NewEvents(payload models.OutboxPayload, eventTypes ...string) []models.OutboxEvent
	Register(eventType string, h outbox.Handler)
	Run(ctx context.Context, eventID string, fn outbox.Handler) error
}

// Deps are the collaborators of DefaultCollectionService.
type Deps struct {
	Ledger    ledgerRepo.LedgerRepository
	Directory directoryRepo.DirectoryRepository
	Receipts  receiptRepo.ReceiptRepository
	Income    incomeRepo.IncomeRepository
	Events    outboxRepo.OutboxRepository
	Outbox    Outbox

	Issuer   ReceiptIssuer
	Booker   IncomeBooker
	Auditor  AuditRecorder
	Notifier notification.GuardianNotifier
}

// DefaultCollectionService implements CollectionService.
type DefaultCollectionService struct {
	Deps
	logger      *zap.Logger
	now         func() time.Time
	tailTimeout time.Duration
}

// tailSteps run in this order after a payment is committed.
var tailSteps = []string{
	models.EventReceiptIssue,
	models.EventIncomeBook,
	models.EventAuditAppend,
	models.EventGuardianNotify,
}

func NewCollectionService(deps Deps, logger *zap.Logger) (*DefaultCollectionService, error) {
	if deps.Ledger == nil || deps.Directory == nil || deps.Receipts == nil || deps.Income == nil ||
		deps.Events == nil || deps.Outbox == nil || deps.Issuer == nil || deps.Booker == nil ||
		deps.Auditor == nil || deps.Notifier == nil {
		return nil, fmt.Errorf("collection service initialization error: missing dependency")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultCollectionService{
		Deps:        deps,
		logger:      logger,
		now:         time.Now,
		tailTimeout: 30 * time.Second,
	}, nil
}
