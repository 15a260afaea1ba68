package collection

import (
	"fmt"
	"strings"

	"schoolfees/models"
	"schoolfees/utils"

	"github.com/shopspring/decimal"
)

// feeTotal is the combined amount a request applies to one obligation.
type feeTotal struct {
	FeeID  string
	Amount decimal.Decimal
}

// validateRequest performs every check that needs no stored state and normalises the
// payment mode. Nothing is read or written before it passes.
func validateRequest(req *models.CollectionRequest) error {
	if strings.TrimSpace(req.SchoolCode) == "" {
		return validationError(CodeInvalidRequest, "school_code is required", "")
	}
	if strings.TrimSpace(req.StudentID) == "" {
		return validationError(CodeInvalidRequest, "student_id is required", "")
	}
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return validationError(CodeInvalidRequest, "an idempotency key is required", "send an Idempotency-Key header or idempotency_key field")
	}
	if !(req.Amount > 0) {
		return validationError(CodeInvalidRequest, "amount must be greater than zero", "")
	}
	if len(req.Allocations) == 0 {
		return validationError(CodeInvalidRequest, "at least one allocation is required", "")
	}
	for i, a := range req.Allocations {
		if strings.TrimSpace(a.StudentFeeID) == "" {
			return validationError(CodeInvalidRequest, "allocation is missing student_fee_id", fmt.Sprintf("allocations[%d]", i))
		}
		if !(a.AllocatedAmount > 0) {
			return validationError(CodeInvalidRequest, "allocated_amount must be greater than zero", fmt.Sprintf("allocations[%d]", i))
		}
	}
	req.PaymentMode = strings.ToLower(strings.TrimSpace(req.PaymentMode))
	if req.PaymentMode == "" {
		return validationError(CodeInvalidRequest, "payment_mode is required", "")
	}

	total := decimal.Zero
	for _, a := range req.Allocations {
		total = total.Add(utils.Money(a.AllocatedAmount))
	}
	amount := utils.Money(req.Amount)
	if !utils.ApproxEqual(total, amount) {
		return validationError(CodeAllocationMismatch, "allocations do not add up to the payment amount",
			fmt.Sprintf("allocations total %s ≠ payment amount %s", total.String(), amount.String()))
	}
	return nil
}

// aggregateAllocations sums the request per obligation, keeping first-seen order so
// updates always run in a stable sequence.
func aggregateAllocations(allocs []models.AllocationInput) []feeTotal {
	index := make(map[string]int, len(allocs))
	var totals []feeTotal
	for _, a := range allocs {
		if i, ok := index[a.StudentFeeID]; ok {
			totals[i].Amount = totals[i].Amount.Add(utils.Money(a.AllocatedAmount))
			continue
		}
		index[a.StudentFeeID] = len(totals)
		totals = append(totals, feeTotal{FeeID: a.StudentFeeID, Amount: utils.Money(a.AllocatedAmount)})
	}
	return totals
}

func feeIDs(totals []feeTotal) []string {
	ids := make([]string, 0, len(totals))
	for _, t := range totals {
		ids = append(ids, t.FeeID)
	}
	return ids
}

// validateAgainstObligations checks that every obligation was found for the student and
// that no obligation receives more than its balance due.
func validateAgainstObligations(totals []feeTotal, fees []models.FeeObligation) error {
	byID := make(map[string]models.FeeObligation, len(fees))
	for _, f := range fees {
		byID[f.ID] = f
	}

	for _, t := range totals {
		if _, ok := byID[t.FeeID]; !ok {
			return newError(KindNotFound, CodeUnknownObligation, "fee obligation not found for this student",
				t.FeeID, nil)
		}
	}
	for _, t := range totals {
		fee := byID[t.FeeID]
		balance := utils.BalanceDue(fee.BaseAmount, fee.AdjustmentAmount, fee.PaidAmount)
		if utils.Exceeds(t.Amount, balance) {
			return validationError(CodeOverAllocation, "allocation exceeds the balance due",
				fmt.Sprintf("obligation %s (%s): allocated %s, balance due %s",
					fee.ID, fee.Title, t.Amount.String(), balance.String()))
		}
	}
	return nil
}
