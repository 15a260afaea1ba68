package collection

import (
	"context"
	"errors"
	"fmt"

	"schoolfees/database"
	"schoolfees/models"
)

// RegisterOutboxHandlers lets the outbox worker replay tail steps that failed inline.
func (s *DefaultCollectionService) RegisterOutboxHandlers() {
	for _, eventType := range tailSteps {
		step := s.stepFunc(eventType)
		s.Outbox.Register(eventType, func(ctx context.Context, event *models.OutboxEvent) error {
			st, err := s.reloadTailState(ctx, event.Payload.PaymentID)
			if err != nil {
				return err
			}
			return step(ctx, st)
		})
	}
}

func (s *DefaultCollectionService) reloadTailState(ctx context.Context, paymentID string) (*tailState, error) {
	payment, err := s.Ledger.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("reload payment: %w", err)
	}
	allocations, err := s.Ledger.ListAllocationsByPayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("reload allocations: %w", err)
	}
	st := &tailState{payment: payment, allocations: allocations}

	receipt, err := s.Receipts.GetByPaymentID(ctx, paymentID)
	switch {
	case err == nil:
		st.receipt = receipt
	case !errors.Is(err, database.ErrNotFound):
		return nil, fmt.Errorf("reload receipt: %w", err)
	}
	return st, nil
}
