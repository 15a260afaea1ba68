package collection

import (
	"context"
	"errors"
	"fmt"

	"schoolfees/database"
	"schoolfees/models"
	"schoolfees/utils"

	"go.uber.org/zap"
)

// errDuplicatePayment means another request recorded a payment under the same
// idempotency key first.
var errDuplicatePayment = errors.New("payment already recorded for idempotency key")

// writePayment commits the payment, its allocations, the obligation increments and the
// outbox intents. It reports whether the intents were stored.
func (s *DefaultCollectionService) writePayment(ctx context.Context, payment *models.Payment, allocations []models.PaymentAllocation, totals []feeTotal, events []models.OutboxEvent) (bool, error) {
	if s.Ledger.SupportsTransactions() {
		payment.Status = models.PaymentStatusCommitted
		err := s.Ledger.WithTransaction(ctx, func(txCtx context.Context) error {
			return s.writeSteps(txCtx, payment, allocations, totals, events)
		})
		return err == nil, err
	}
	return s.writeWithCompensation(ctx, payment, allocations, totals, events)
}

// writeSteps is the all-or-nothing path; any error aborts the enclosing transaction.
func (s *DefaultCollectionService) writeSteps(ctx context.Context, payment *models.Payment, allocations []models.PaymentAllocation, totals []feeTotal, events []models.OutboxEvent) error {
	if err := s.recordPayment(ctx, payment); err != nil {
		return err
	}
	if err := s.Ledger.InsertAllocations(ctx, allocations); err != nil {
		return internalError(CodeAllocationWriteFailed, "failed to write payment allocations", err)
	}
	for _, t := range totals {
		if err := s.Ledger.IncrementPaid(ctx, t.FeeID, utils.Round2(t.Amount)); err != nil {
			return balanceError(t.FeeID, err)
		}
	}
	if err := s.Events.InsertMany(ctx, events); err != nil {
		return internalError(CodeInternal, "failed to record payment side effects", err)
	}
	return nil
}

// writeWithCompensation runs the same steps without a transaction and undoes completed
// steps, in reverse, when a later one fails. The payment is written as recording and
// committed after the last increment, so a concurrent retry never replays it early.
func (s *DefaultCollectionService) writeWithCompensation(ctx context.Context, payment *models.Payment, allocations []models.PaymentAllocation, totals []feeTotal, events []models.OutboxEvent) (bool, error) {
	log := s.logger.With(zap.String("payment_id", payment.ID), zap.String("school_id", payment.SchoolID))

	if err := s.recordPayment(ctx, payment); err != nil {
		return false, err
	}

	if err := s.Ledger.InsertAllocations(ctx, allocations); err != nil {
		s.compensate(ctx, log, payment.ID, nil, false)
		return false, internalError(CodeAllocationWriteFailed, "failed to write payment allocations", err)
	}

	applied := make([]feeTotal, 0, len(totals))
	for _, t := range totals {
		if err := s.Ledger.IncrementPaid(ctx, t.FeeID, utils.Round2(t.Amount)); err != nil {
			s.compensate(ctx, log, payment.ID, applied, true)
			return false, balanceError(t.FeeID, err)
		}
		applied = append(applied, t)
	}

	if err := s.Ledger.MarkPaymentCommitted(ctx, payment.ID); err != nil {
		s.compensate(ctx, log, payment.ID, applied, true)
		return false, internalError(CodeInternal, "failed to commit payment", err)
	}
	payment.Status = models.PaymentStatusCommitted

	// The payment is committed from here on; a lost intent only means the tail runs
	// without a retry record.
	if err := s.Events.InsertMany(ctx, events); err != nil {
		log.Warn("Failed to record outbox intents, running side effects without retry", zap.Error(err))
		return false, nil
	}
	return true, nil
}

func (s *DefaultCollectionService) recordPayment(ctx context.Context, payment *models.Payment) error {
	if err := s.Ledger.InsertPayment(ctx, payment); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return errDuplicatePayment
		}
		return internalError(CodeInternal, "failed to record payment", err)
	}
	return nil
}

// compensate reverses applied increments, then removes allocations and the payment.
// Every step is attempted; failures are logged for reconciliation.
func (s *DefaultCollectionService) compensate(ctx context.Context, log *zap.Logger, paymentID string, applied []feeTotal, allocationsWritten bool) {
	for i := len(applied) - 1; i >= 0; i-- {
		t := applied[i]
		if err := s.Ledger.DecrementPaid(ctx, t.FeeID, utils.Round2(t.Amount)); err != nil {
			log.Error("Failed to reverse obligation increment",
				zap.String("student_fee_id", t.FeeID),
				zap.String("amount", t.Amount.String()),
				zap.Error(err),
				zap.Bool("reconciliation_required", true))
		}
	}
	if allocationsWritten {
		if err := s.Ledger.DeleteAllocations(ctx, paymentID); err != nil {
			log.Error("Failed to delete allocations during compensation", zap.Error(err), zap.Bool("reconciliation_required", true))
		}
	}
	if err := s.Ledger.DeletePayment(ctx, paymentID); err != nil {
		log.Error("Failed to delete payment during compensation", zap.Error(err), zap.Bool("reconciliation_required", true))
	}
}

func balanceError(feeID string, err error) error {
	if errors.Is(err, database.ErrBalanceConflict) {
		return newError(KindConflict, CodeBalanceConflict,
			"obligation balance changed; the allocation would exceed the amount owed",
			fmt.Sprintf("obligation %s", feeID), err)
	}
	return internalError(CodeBalanceUpdateFailed, fmt.Sprintf("failed to update obligation %s", feeID), err)
}
