package receipt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"schoolfees/database"
	directoryRepo "schoolfees/database/repository/directory"
	ledgerRepo "schoolfees/database/repository/ledger"
	receiptRepo "schoolfees/database/repository/receipt"
	"schoolfees/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Issuer mints receipts. Issue is idempotent per payment.
type Issuer struct {
	receipts  receiptRepo.ReceiptRepository
	sequence  SequenceGenerator
	directory directoryRepo.DirectoryRepository
	ledger    ledgerRepo.LedgerRepository
	logger    *zap.Logger
	now       func() time.Time
}

func NewIssuer(
	receipts receiptRepo.ReceiptRepository,
	sequence SequenceGenerator,
	directory directoryRepo.DirectoryRepository,
	ledger ledgerRepo.LedgerRepository,
	logger *zap.Logger,
) *Issuer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Issuer{
		receipts:  receipts,
		sequence:  sequence,
		directory: directory,
		ledger:    ledger,
		logger:    logger,
		now:       time.Now,
	}
}

// FormatNumber renders the normal receipt number, e.g. STM/REC/2024/000042.
func FormatNumber(schoolCode string, year int, seq int64) string {
	return fmt.Sprintf("%s/REC/%d/%06d", strings.ToUpper(schoolCode), year, seq)
}

// FallbackNumber renders the degraded receipt number used when no sequence is available.
func FallbackNumber(schoolCode string, year int, at time.Time) string {
	return fmt.Sprintf("%s/REC/%d/%d", strings.ToUpper(schoolCode), year, at.UnixMilli())
}

// Issue returns the payment's receipt, creating it on first call.
func (i *Issuer) Issue(ctx context.Context, payment *models.Payment, allocations []models.PaymentAllocation) (*models.Receipt, error) {
	existing, err := i.receipts.GetByPaymentID(ctx, payment.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	snapshot, err := i.buildSnapshot(ctx, payment, allocations)
	if err != nil {
		return nil, err
	}

	log := i.logger.With(zap.String("payment_id", payment.ID), zap.String("school_id", payment.SchoolID))
	year := payment.PaidAt.Year()

	receipt := &models.Receipt{
		ID:        uuid.New().String(),
		PaymentID: payment.ID,
		SchoolID:  payment.SchoolID,
		Snapshot:  snapshot,
		IssuedAt:  i.now(),
	}

	seq, err := i.sequence.Next(ctx, payment.SchoolID, year)
	if err != nil {
		log.Warn("Receipt sequence unavailable, using fallback number", zap.Error(err))
		receipt.ReceiptNo = FallbackNumber(payment.SchoolCode, year, i.now())
		receipt.Degraded = true
	} else {
		receipt.ReceiptNo = FormatNumber(payment.SchoolCode, year, seq)
	}

	err = i.receipts.Insert(ctx, receipt)
	if errors.Is(err, database.ErrDuplicate) {
		// Either a concurrent issue for the same payment won, or the number is taken
		// (e.g. a counter reset). Prefer the existing receipt, else renumber once.
		if existing, getErr := i.receipts.GetByPaymentID(ctx, payment.ID); getErr == nil {
			return existing, nil
		}
		log.Warn("Receipt number already taken, using fallback number", zap.String("receipt_no", receipt.ReceiptNo))
		receipt.ReceiptNo = FallbackNumber(payment.SchoolCode, year, i.now())
		receipt.Degraded = true
		err = i.receipts.Insert(ctx, receipt)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to store receipt: %w", err)
	}

	log.Info("Receipt issued", zap.String("receipt_no", receipt.ReceiptNo), zap.Bool("degraded", receipt.Degraded))
	return receipt, nil
}
