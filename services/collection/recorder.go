package collection

import (
	"context"
	"errors"
	"strings"

	"schoolfees/database"
	"schoolfees/models"
	"schoolfees/utils"

	"github.com/google/uuid"
)

// resolveCollector maps the caller's identity onto an active staff member of the school.
func (s *DefaultCollectionService) resolveCollector(ctx context.Context, schoolID, identity string) (*models.Staff, error) {
	if strings.TrimSpace(identity) == "" {
		return nil, newError(KindUnauthorized, CodeCollectorUnresolved, "collector identity is required", "", nil)
	}
	staff, err := s.Directory.GetStaffByAuthUser(ctx, schoolID, identity)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, newError(KindUnauthorized, CodeCollectorUnresolved, "caller is not an active staff member of this school", "", err)
		}
		return nil, internalError(CodeInternal, "failed to resolve collector", err)
	}
	return staff, nil
}

// newPayment builds the payment and its allocation rows, one row per request item.
func (s *DefaultCollectionService) newPayment(req *models.CollectionRequest, school *models.School, collector *models.Staff) (*models.Payment, []models.PaymentAllocation) {
	now := s.now()
	payment := &models.Payment{
		ID:             uuid.New().String(),
		SchoolID:       school.ID,
		SchoolCode:     school.Code,
		StudentID:      req.StudentID,
		Amount:         req.Amount,
		PaymentMode:    req.PaymentMode,
		ReferenceNo:    strings.TrimSpace(req.ReferenceNo),
		Remarks:        strings.TrimSpace(req.Remarks),
		CollectedBy:    collector.ID,
		IdempotencyKey: req.IdempotencyKey,
		IsReversed:     false,
		Status:         models.PaymentStatusRecording,
		PaidAt:         now,
		CreatedAt:      now,
	}

	allocations := make([]models.PaymentAllocation, 0, len(req.Allocations))
	for _, a := range req.Allocations {
		allocations = append(allocations, models.PaymentAllocation{
			ID:              uuid.New().String(),
			PaymentID:       payment.ID,
			StudentFeeID:    a.StudentFeeID,
			AllocatedAmount: a.AllocatedAmount,
			CreatedAt:       now,
		})
	}
	return payment, allocations
}

// findReplay returns the result recorded under the request's idempotency key, or nil if
// the key is unused. A key reused for a different payment is a conflict, and so is a
// payment that is still being recorded.
func (s *DefaultCollectionService) findReplay(ctx context.Context, schoolID string, req *models.CollectionRequest) (*models.CollectionResult, error) {
	existing, err := s.Ledger.FindPaymentByIdempotencyKey(ctx, schoolID, req.IdempotencyKey)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, internalError(CodeInternal, "failed to check idempotency key", err)
	}

	if existing.StudentID != req.StudentID || !utils.ApproxEqual(utils.Money(existing.Amount), utils.Money(req.Amount)) {
		return nil, newError(KindConflict, CodeIdempotencyKeyReused,
			"idempotency key was already used for a different payment", existing.ID, nil)
	}
	if existing.Recording() {
		return nil, newError(KindConflict, CodeCollectionInProgress,
			"a collection with this idempotency key is still in progress", existing.ID, nil)
	}

	result, err := s.loadResult(ctx, existing)
	if err != nil {
		return nil, err
	}
	result.Replayed = true
	return result, nil
}

// loadResult assembles the stored view of a payment. Missing receipt or income entry
// are reported as nil.
func (s *DefaultCollectionService) loadResult(ctx context.Context, payment *models.Payment) (*models.CollectionResult, error) {
	allocations, err := s.Ledger.ListAllocationsByPayment(ctx, payment.ID)
	if err != nil {
		return nil, internalError(CodeInternal, "failed to load allocations", err)
	}
	result := &models.CollectionResult{Payment: payment, Allocations: allocations}

	if receipt, err := s.Receipts.GetByPaymentID(ctx, payment.ID); err == nil {
		result.Receipt = receipt
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, internalError(CodeInternal, "failed to load receipt", err)
	}

	if entry, err := s.Income.FindByPaymentID(ctx, payment.ID); err == nil {
		id := entry.ID
		result.IncomeEntryID = &id
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, internalError(CodeInternal, "failed to load income entry", err)
	}
	return result, nil
}
