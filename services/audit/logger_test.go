package audit

import (
	"context"
	"errors"
	"testing"

	memoryRepo "schoolfees/database/repository/memory"
	"schoolfees/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentCollectedRecordsOnce(t *testing.T) {
	repo := memoryRepo.NewAudit()
	logger := NewLogger(repo, nil)
	payment := &models.Payment{ID: "pay-1", SchoolID: "sch-1", StudentID: "stu-1", Amount: 500, PaymentMode: models.PaymentModeCash, CollectedBy: "staff-1"}
	allocations := []models.PaymentAllocation{{StudentFeeID: "fee-1", AllocatedAmount: 500}}
	receipt := &models.Receipt{ID: "rec-1"}

	require.NoError(t, logger.PaymentCollected(context.Background(), payment, allocations, receipt))
	require.NoError(t, logger.PaymentCollected(context.Background(), payment, allocations, receipt))

	entries := repo.Entries()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "payment_collected:pay-1", e.DedupeKey)
	assert.Equal(t, "staff-1", e.ActorID)
	assert.Equal(t, "payment", e.EntityType)
	assert.Equal(t, "pay-1", e.EntityID)
	assert.Equal(t, 500.0, e.Changes["amount"])
	assert.Equal(t, "rec-1", e.Metadata["receipt_id"])
}

func TestPaymentCollectedWithoutReceipt(t *testing.T) {
	repo := memoryRepo.NewAudit()
	require.NoError(t, NewLogger(repo, nil).PaymentCollected(context.Background(), &models.Payment{ID: "pay-1"}, nil, nil))
	assert.Nil(t, repo.Entries()[0].Metadata)
}

func TestPaymentCollectedPropagatesStoreErrors(t *testing.T) {
	repo := memoryRepo.NewAudit()
	repo.FailAppend = errors.New("audit store offline")
	err := NewLogger(repo, nil).PaymentCollected(context.Background(), &models.Payment{ID: "pay-1"}, nil, nil)
	assert.Error(t, err)
}
