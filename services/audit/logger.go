package audit

import (
	"context"
	"errors"
	"time"

	"schoolfees/database"
	auditRepo "schoolfees/database/repository/audit"
	"schoolfees/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Logger appends audit entries for collection events.
type Logger struct {
	repo   auditRepo.AuditRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewLogger(repo auditRepo.AuditRepository, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{repo: repo, logger: logger, now: time.Now}
}

// DedupeKey identifies the single payment_collected entry of a payment.
func DedupeKey(paymentID string) string {
	return models.AuditActionPaymentCollected + ":" + paymentID
}

// PaymentCollected records the collection of payment. Repeating it for the same payment
// is a no-op.
func (l *Logger) PaymentCollected(ctx context.Context, payment *models.Payment, allocations []models.PaymentAllocation, receipt *models.Receipt) error {
	allocs := make([]map[string]interface{}, 0, len(allocations))
	for _, a := range allocations {
		allocs = append(allocs, map[string]interface{}{
			"student_fee_id":   a.StudentFeeID,
			"allocated_amount": a.AllocatedAmount,
		})
	}

	entry := &models.AuditLogEntry{
		ID:         uuid.New().String(),
		SchoolID:   payment.SchoolID,
		ActorID:    payment.CollectedBy,
		Action:     models.AuditActionPaymentCollected,
		EntityType: "payment",
		EntityID:   payment.ID,
		Changes: map[string]interface{}{
			"amount":       payment.Amount,
			"payment_mode": payment.PaymentMode,
			"student_id":   payment.StudentID,
			"allocations":  allocs,
		},
		DedupeKey: DedupeKey(payment.ID),
		CreatedAt: l.now(),
	}
	if receipt != nil {
		entry.Metadata = map[string]interface{}{"receipt_id": receipt.ID}
	}

	err := l.repo.Append(ctx, entry)
	if errors.Is(err, database.ErrDuplicate) {
		l.logger.Debug("Audit entry already recorded", zap.String("payment_id", payment.ID))
		return nil
	}
	return err
}
