package collection

import (
	"context"
	"errors"

	"schoolfees/models"
	"schoolfees/services/outbox"

	"go.uber.org/zap"
)

// tailState carries what earlier tail steps produced to later ones.
type tailState struct {
	payment     *models.Payment
	allocations []models.PaymentAllocation
	receipt     *models.Receipt
	income      *models.IncomeEntry
}

func (s *DefaultCollectionService) stepFunc(eventType string) func(ctx context.Context, st *tailState) error {
	switch eventType {
	case models.EventReceiptIssue:
		return func(ctx context.Context, st *tailState) error {
			receipt, err := s.Issuer.Issue(ctx, st.payment, st.allocations)
			if err != nil {
				return err
			}
			st.receipt = receipt
			return nil
		}
	case models.EventIncomeBook:
		return func(ctx context.Context, st *tailState) error {
			entry, err := s.Booker.Book(ctx, st.payment, st.receipt)
			if err != nil {
				return err
			}
			st.income = entry
			return nil
		}
	case models.EventAuditAppend:
		return func(ctx context.Context, st *tailState) error {
			return s.Auditor.PaymentCollected(ctx, st.payment, st.allocations, st.receipt)
		}
	case models.EventGuardianNotify:
		return func(ctx context.Context, st *tailState) error {
			return s.Notifier.PaymentReceived(ctx, st.payment, st.receipt)
		}
	}
	return nil
}

// runTail runs the receipt, income, audit and notification steps for a committed
// payment. Failures never reach the caller: with outbox intents they stay queued for the
// worker, without them they are only logged.
func (s *DefaultCollectionService) runTail(ctx context.Context, payment *models.Payment, allocations []models.PaymentAllocation, events []models.OutboxEvent, queued bool) *tailState {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.tailTimeout)
	defer cancel()

	st := &tailState{payment: payment, allocations: allocations}
	eventIDs := make(map[string]string, len(events))
	for _, e := range events {
		eventIDs[e.EventType] = e.ID
	}

	for _, eventType := range tailSteps {
		step := s.stepFunc(eventType)
		log := s.logger.With(zap.String("payment_id", payment.ID), zap.String("event_type", eventType))

		var err error
		if id, ok := eventIDs[eventType]; ok && queued {
			err = s.Outbox.Run(ctx, id, func(ctx context.Context, _ *models.OutboxEvent) error {
				return step(ctx, st)
			})
		} else {
			err = step(ctx, st)
		}

		switch {
		case err == nil:
		case errors.Is(err, outbox.ErrNotClaimed):
			log.Debug("Side effect already claimed elsewhere")
		case queued:
			log.Warn("Side effect failed, left for the outbox worker", zap.Error(err))
		default:
			log.Warn("Side effect failed and will not be retried", zap.Error(err), zap.Bool("reconciliation_required", true))
		}
	}
	return st
}
