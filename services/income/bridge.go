package income

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"schoolfees/database"
	directoryRepo "schoolfees/database/repository/directory"
	incomeRepo "schoolfees/database/repository/income"
	"schoolfees/models"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Booking modes.
const (
	ModeFunction = "function"
	ModeDirect   = "direct"
)

// Bridge books payments as income. It prefers the idempotent booking function and
// falls back to a direct insert when that path is unavailable.
type Bridge struct {
	entries   incomeRepo.IncomeRepository
	directory directoryRepo.DirectoryRepository
	breaker   *gobreaker.CircuitBreaker
	mode      string
	logger    *zap.Logger
	now       func() time.Time
}

func NewBridge(entries incomeRepo.IncomeRepository, directory directoryRepo.DirectoryRepository, mode string, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mode != ModeDirect {
		mode = ModeFunction
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "income-booking",
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, database.ErrNotFound)
		},
	})
	return &Bridge{
		entries:   entries,
		directory: directory,
		breaker:   breaker,
		mode:      mode,
		logger:    logger,
		now:       time.Now,
	}
}

// Book returns the income entry of payment, creating it if needed. receipt may be nil.
func (b *Bridge) Book(ctx context.Context, payment *models.Payment, receipt *models.Receipt) (*models.IncomeEntry, error) {
	log := b.logger.With(zap.String("payment_id", payment.ID), zap.String("school_id", payment.SchoolID))

	entry := b.buildEntry(ctx, log, payment, receipt)

	if b.mode == ModeFunction {
		booked, err := b.bookViaFunction(ctx, entry)
		if err == nil {
			return booked, nil
		}
		if !unavailable(err) {
			return nil, err
		}
		log.Warn("Income booking function unavailable, booking directly", zap.Error(err))
	}

	entry.FinancialYearID = b.resolveFinancialYear(ctx, payment)
	return b.bookDirect(ctx, entry)
}

func (b *Bridge) bookViaFunction(ctx context.Context, entry *models.IncomeEntry) (*models.IncomeEntry, error) {
	out, err := b.breaker.Execute(func() (interface{}, error) {
		return b.entries.BookFromPayment(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return out.(*models.IncomeEntry), nil
}

func unavailable(err error) bool {
	return errors.Is(err, incomeRepo.ErrIncomeFunctionUnavailable) ||
		errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests)
}

// bookDirect inserts entry unless the payment is already booked.
func (b *Bridge) bookDirect(ctx context.Context, entry *models.IncomeEntry) (*models.IncomeEntry, error) {
	existing, err := b.entries.FindByPaymentID(ctx, entry.PaymentID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	err = b.entries.Insert(ctx, entry)
	if errors.Is(err, database.ErrDuplicate) {
		return b.entries.FindByPaymentID(ctx, entry.PaymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert income entry: %w", err)
	}
	return entry, nil
}

// resolveFinancialYear is best effort; an unknown year leaves the entry unassigned.
func (b *Bridge) resolveFinancialYear(ctx context.Context, payment *models.Payment) string {
	year, err := b.directory.GetFinancialYear(ctx, payment.SchoolID, payment.PaidAt)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			b.logger.Warn("Financial year lookup failed", zap.String("payment_id", payment.ID), zap.Error(err))
		}
		return ""
	}
	return year.ID
}

// buildEntry never fails: the admission number only feeds the narrative, so a
// directory error books the entry without it.
func (b *Bridge) buildEntry(ctx context.Context, log *zap.Logger, payment *models.Payment, receipt *models.Receipt) *models.IncomeEntry {
	admissionNo := ""
	if student, err := b.directory.GetStudent(ctx, payment.SchoolID, payment.StudentID); err == nil {
		admissionNo = student.AdmissionNo
	} else {
		log.Warn("Student lookup failed, booking income without admission number",
			zap.String("student_id", payment.StudentID), zap.Error(err))
	}
	receiptNo := ""
	if receipt != nil {
		receiptNo = receipt.ReceiptNo
	}
	return &models.IncomeEntry{
		ID:          uuid.New().String(),
		SchoolID:    payment.SchoolID,
		PaymentID:   payment.ID,
		Source:      models.IncomeSourceFees,
		Amount:      payment.Amount,
		Date:        payment.PaidAt,
		ReferenceNo: ReferenceFor(payment),
		Narrative:   Narrative(admissionNo, receiptNo, payment.Remarks),
		RecordedBy:  payment.CollectedBy,
		CreatedAt:   b.now(),
	}
}

// ReferenceFor uses the payment's external reference, else PAY- and the id's first 8 characters.
func ReferenceFor(payment *models.Payment) string {
	if ref := strings.TrimSpace(payment.ReferenceNo); ref != "" {
		return ref
	}
	id := strings.ReplaceAll(payment.ID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return "PAY-" + strings.ToUpper(id)
}

// Narrative composes "Fee payment - Adm 123 - Receipt X - remarks", skipping empty parts.
func Narrative(admissionNo, receiptNo, remarks string) string {
	parts := []string{"Fee payment"}
	if admissionNo != "" {
		parts = append(parts, "Adm "+admissionNo)
	}
	if receiptNo != "" {
		parts = append(parts, "Receipt "+receiptNo)
	}
	if r := strings.TrimSpace(remarks); r != "" {
		parts = append(parts, r)
	}
	return strings.Join(parts, " - ")
}
