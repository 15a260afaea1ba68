package collection

import (
	"testing"

	"schoolfees/models"
	"schoolfees/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() models.CollectionRequest {
	return models.CollectionRequest{
		SchoolCode:     "STM",
		StudentID:      "stu-1",
		Amount:         1500,
		PaymentMode:    models.PaymentModeCash,
		IdempotencyKey: "key-1",
		Allocations: []models.AllocationInput{
			{StudentFeeID: "fee-1", AllocatedAmount: 1000},
			{StudentFeeID: "fee-2", AllocatedAmount: 500},
		},
	}
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *models.CollectionRequest)
		code   string
	}{
		{"valid", func(r *models.CollectionRequest) {}, ""},
		{"missing school", func(r *models.CollectionRequest) { r.SchoolCode = " " }, CodeInvalidRequest},
		{"missing student", func(r *models.CollectionRequest) { r.StudentID = "" }, CodeInvalidRequest},
		{"missing idempotency key", func(r *models.CollectionRequest) { r.IdempotencyKey = "" }, CodeInvalidRequest},
		{"zero amount", func(r *models.CollectionRequest) { r.Amount = 0 }, CodeInvalidRequest},
		{"negative amount", func(r *models.CollectionRequest) { r.Amount = -5 }, CodeInvalidRequest},
		{"no allocations", func(r *models.CollectionRequest) { r.Allocations = nil }, CodeInvalidRequest},
		{"allocation without fee", func(r *models.CollectionRequest) { r.Allocations[0].StudentFeeID = "" }, CodeInvalidRequest},
		{"zero allocation", func(r *models.CollectionRequest) { r.Allocations[1].AllocatedAmount = 0 }, CodeInvalidRequest},
		{"missing mode", func(r *models.CollectionRequest) { r.PaymentMode = "" }, CodeInvalidRequest},
		{"blank mode", func(r *models.CollectionRequest) { r.PaymentMode = "  \t" }, CodeInvalidRequest},
		{"free text mode", func(r *models.CollectionRequest) { r.PaymentMode = "upi" }, ""},
		{"sum mismatch", func(r *models.CollectionRequest) { r.Amount = 1600 }, CodeAllocationMismatch},
		{"within epsilon", func(r *models.CollectionRequest) { r.Amount = 1500.01 }, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			err := validateRequest(&req)
			if tc.code == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsCode(err, tc.code), "got %v", err)
			assert.Equal(t, KindValidation, AsCollectionError(err).Kind)
		})
	}
}

func TestValidateRequestMismatchDetails(t *testing.T) {
	req := validRequest()
	req.Amount = 500
	req.Allocations = []models.AllocationInput{{StudentFeeID: "fee-1", AllocatedAmount: 300}}

	err := validateRequest(&req)
	require.Error(t, err)
	assert.Contains(t, AsCollectionError(err).Details, "300 ≠ payment amount 500")
}

func TestValidateRequestNormalisesPaymentMode(t *testing.T) {
	req := validRequest()
	req.PaymentMode = "  UPI "

	require.NoError(t, validateRequest(&req))
	assert.Equal(t, "upi", req.PaymentMode)
}

func TestAggregateAllocationsKeepsFirstSeenOrder(t *testing.T) {
	totals := aggregateAllocations([]models.AllocationInput{
		{StudentFeeID: "fee-2", AllocatedAmount: 100},
		{StudentFeeID: "fee-1", AllocatedAmount: 50.5},
		{StudentFeeID: "fee-2", AllocatedAmount: 0.1},
		{StudentFeeID: "fee-2", AllocatedAmount: 0.2},
	})

	require.Len(t, totals, 2)
	assert.Equal(t, "fee-2", totals[0].FeeID)
	assert.True(t, totals[0].Amount.Equal(utils.Money(100.3)))
	assert.Equal(t, "fee-1", totals[1].FeeID)
	assert.Equal(t, []string{"fee-2", "fee-1"}, feeIDs(totals))
}

func TestValidateAgainstObligations(t *testing.T) {
	fees := []models.FeeObligation{
		{ID: "fee-1", Title: "Tuition", BaseAmount: 1000, PaidAmount: 0},
		{ID: "fee-2", Title: "Transport", BaseAmount: 1000, AdjustmentAmount: -200, PaidAmount: 300},
	}

	t.Run("within balance", func(t *testing.T) {
		totals := []feeTotal{{FeeID: "fee-1", Amount: utils.Money(1000)}, {FeeID: "fee-2", Amount: utils.Money(500)}}
		assert.NoError(t, validateAgainstObligations(totals, fees))
	})

	t.Run("over balance", func(t *testing.T) {
		totals := []feeTotal{{FeeID: "fee-2", Amount: utils.Money(500.02)}}
		err := validateAgainstObligations(totals, fees)
		require.Error(t, err)
		ce := AsCollectionError(err)
		assert.Equal(t, CodeOverAllocation, ce.Code)
		assert.Contains(t, ce.Details, "fee-2")
		assert.Contains(t, ce.Details, "balance due 500")
	})

	t.Run("unknown obligation wins over balance", func(t *testing.T) {
		totals := []feeTotal{{FeeID: "fee-1", Amount: utils.Money(5000)}, {FeeID: "fee-9", Amount: utils.Money(1)}}
		err := validateAgainstObligations(totals, fees)
		require.Error(t, err)
		ce := AsCollectionError(err)
		assert.Equal(t, CodeUnknownObligation, ce.Code)
		assert.Equal(t, KindNotFound, ce.Kind)
		assert.Equal(t, "fee-9", ce.Details)
	})
}

func TestCollectionErrorHTTPStatus(t *testing.T) {
	assert.Equal(t, 400, newError(KindValidation, CodeInvalidRequest, "x", "", nil).HTTPStatus())
	assert.Equal(t, 404, newError(KindNotFound, CodeUnknownSchool, "x", "", nil).HTTPStatus())
	assert.Equal(t, 403, newError(KindUnauthorized, CodeCollectorUnresolved, "x", "", nil).HTTPStatus())
	assert.Equal(t, 409, newError(KindConflict, CodeBalanceConflict, "x", "", nil).HTTPStatus())
	assert.Equal(t, 500, internalError(CodeInternal, "x", nil).(*CollectionError).HTTPStatus())
}
