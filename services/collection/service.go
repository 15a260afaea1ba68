package collection

import (
	"context"
	"errors"
	"strings"

	"schoolfees/database"
	"schoolfees/models"
	"schoolfees/utils"

	"go.uber.org/zap"
)

// CollectFees validates a payment request, commits the payment with its allocations and
// then runs the receipt, income, audit and notification steps. Only failures up to the
// commit are returned; later steps degrade the result instead.
func (s *DefaultCollectionService) CollectFees(ctx context.Context, req models.CollectionRequest) (*models.CollectionResult, error) {
	req.SchoolCode = strings.TrimSpace(req.SchoolCode)
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)

	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	school, err := s.resolveSchool(ctx, req.SchoolCode)
	if err != nil {
		return nil, err
	}

	if replay, err := s.findReplay(ctx, school.ID, &req); err != nil || replay != nil {
		return replay, err
	}

	if _, err := s.Directory.GetStudent(ctx, school.ID, req.StudentID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, newError(KindNotFound, CodeUnknownStudent, "student not found in this school", req.StudentID, err)
		}
		return nil, internalError(CodeInternal, "failed to resolve student", err)
	}

	totals := aggregateAllocations(req.Allocations)
	fees, err := s.Ledger.GetObligations(ctx, school.ID, req.StudentID, feeIDs(totals))
	if err != nil {
		return nil, internalError(CodeInternal, "failed to load fee obligations", err)
	}
	if err := validateAgainstObligations(totals, fees); err != nil {
		return nil, err
	}

	collector, err := s.resolveCollector(ctx, school.ID, req.CallerIdentity)
	if err != nil {
		return nil, err
	}

	payment, allocations := s.newPayment(&req, school, collector)
	events := s.Outbox.NewEvents(models.OutboxPayload{
		PaymentID: payment.ID,
		SchoolID:  payment.SchoolID,
		StudentID: payment.StudentID,
	}, tailSteps...)

	log := s.logger.With(
		zap.String("payment_id", payment.ID),
		zap.String("school_id", school.ID),
		zap.String("student_id", req.StudentID),
	)

	queued, err := s.writePayment(ctx, payment, allocations, totals, events)
	if errors.Is(err, errDuplicatePayment) {
		// Lost a race with a concurrent retry carrying the same key.
		replay, replayErr := s.findReplay(ctx, school.ID, &req)
		if replayErr != nil {
			return nil, replayErr
		}
		if replay != nil {
			return replay, nil
		}
		return nil, internalError(CodeInternal, "payment recorded concurrently but could not be reloaded", err)
	}
	if err != nil {
		log.Warn("Fee collection failed", zap.Error(err))
		return nil, err
	}
	log.Info("Payment recorded",
		zap.Float64("amount", payment.Amount),
		zap.Int("allocations", len(allocations)),
		zap.Bool("transactional", s.Ledger.SupportsTransactions()))

	st := s.runTail(ctx, payment, allocations, events, queued)

	result := &models.CollectionResult{
		Payment:     payment,
		Receipt:     st.receipt,
		Allocations: allocations,
	}
	if st.income != nil {
		id := st.income.ID
		result.IncomeEntryID = &id
	}
	return result, nil
}

func (s *DefaultCollectionService) resolveSchool(ctx context.Context, code string) (*models.School, error) {
	if strings.TrimSpace(code) == "" {
		return nil, validationError(CodeInvalidRequest, "school_code is required", "")
	}
	school, err := s.Directory.GetSchoolByCode(ctx, code)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, newError(KindNotFound, CodeUnknownSchool, "school not found", code, err)
		}
		return nil, internalError(CodeInternal, "failed to resolve school", err)
	}
	return school, nil
}

// GetPayment returns a payment of the school with its allocations, receipt and income link.
func (s *DefaultCollectionService) GetPayment(ctx context.Context, schoolCode, paymentID string) (*models.CollectionResult, error) {
	school, err := s.resolveSchool(ctx, schoolCode)
	if err != nil {
		return nil, err
	}
	payment, err := s.Ledger.GetPayment(ctx, paymentID)
	if errors.Is(err, database.ErrNotFound) || (err == nil && (payment.SchoolID != school.ID || payment.Recording())) {
		return nil, newError(KindNotFound, CodeUnknownPayment, "payment not found", paymentID, nil)
	}
	if err != nil {
		return nil, internalError(CodeInternal, "failed to load payment", err)
	}
	return s.loadResult(ctx, payment)
}

// ListStudentPayments returns the student's payments, newest first, with allocations and receipts.
func (s *DefaultCollectionService) ListStudentPayments(ctx context.Context, schoolCode, studentID string) ([]models.StudentPayment, error) {
	school, err := s.resolveSchool(ctx, schoolCode)
	if err != nil {
		return nil, err
	}
	payments, err := s.Ledger.ListPaymentsByStudent(ctx, school.ID, studentID)
	if err != nil {
		return nil, internalError(CodeInternal, "failed to list payments", err)
	}

	committed := payments[:0]
	for _, p := range payments {
		if !p.Recording() {
			committed = append(committed, p)
		}
	}
	payments = committed

	ids := make([]string, 0, len(payments))
	for _, p := range payments {
		ids = append(ids, p.ID)
	}
	allocations, err := s.Ledger.ListAllocationsByPayments(ctx, ids)
	if err != nil {
		return nil, internalError(CodeInternal, "failed to list allocations", err)
	}
	receipts, err := s.Receipts.ListByPaymentIDs(ctx, ids)
	if err != nil {
		return nil, internalError(CodeInternal, "failed to list receipts", err)
	}

	out := make([]models.StudentPayment, 0, len(payments))
	for _, p := range payments {
		allocs := allocations[p.ID]
		if allocs == nil {
			allocs = []models.PaymentAllocation{}
		}
		out = append(out, models.StudentPayment{Payment: p, Allocations: allocs, Receipt: receipts[p.ID]})
	}
	return out, nil
}

// ListStudentObligations returns the student's obligations with their balance due.
func (s *DefaultCollectionService) ListStudentObligations(ctx context.Context, schoolCode, studentID string) ([]models.FeeObligationView, error) {
	school, err := s.resolveSchool(ctx, schoolCode)
	if err != nil {
		return nil, err
	}
	fees, err := s.Ledger.ListObligationsByStudent(ctx, school.ID, studentID)
	if err != nil {
		return nil, internalError(CodeInternal, "failed to list obligations", err)
	}
	out := make([]models.FeeObligationView, 0, len(fees))
	for _, f := range fees {
		out = append(out, models.FeeObligationView{
			FeeObligation: f,
			BalanceDue:    utils.Round2(utils.BalanceDue(f.BaseAmount, f.AdjustmentAmount, f.PaidAmount)),
		})
	}
	return out, nil
}
