//go:build integration

package ledgerRepo

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"schoolfees/database"
	"schoolfees/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// setupLedger connects to MONGO_TEST_URI and returns a repository over a throwaway
// database that is dropped when the test ends.
func setupLedger(t *testing.T) *MongoLedgerRepo {
	t.Helper()

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx, nil))

	db := client.Database("schoolfees_it_" + uuid.New().String()[:8])
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})

	repo := NewMongoLedgerRepo(db, false, 1)
	require.NoError(t, repo.EnsureIndexes(ctx))
	return repo
}

func seedObligation(t *testing.T, repo *MongoLedgerRepo, base, adjustment float64) string {
	t.Helper()
	fee := models.FeeObligation{
		ID:               uuid.New().String(),
		SchoolID:         "sch-1",
		StudentID:        "stu-1",
		Title:            "Tuition",
		BaseAmount:       base,
		AdjustmentAmount: adjustment,
		Status:           models.FeeStatusPending,
		DueDate:          time.Now(),
		CreatedAt:        time.Now(),
	}
	_, err := repo.feeColl.InsertOne(context.Background(), fee)
	require.NoError(t, err)
	return fee.ID
}

func loadObligation(t *testing.T, repo *MongoLedgerRepo, feeID string) models.FeeObligation {
	t.Helper()
	fees, err := repo.GetObligations(context.Background(), "sch-1", "stu-1", []string{feeID})
	require.NoError(t, err)
	require.Len(t, fees, 1)
	return fees[0]
}

func TestMongoIncrementPaidMovesStatus(t *testing.T) {
	repo := setupLedger(t)
	ctx := context.Background()
	feeID := seedObligation(t, repo, 1000, -200)

	require.NoError(t, repo.IncrementPaid(ctx, feeID, 300))
	fee := loadObligation(t, repo, feeID)
	assert.InDelta(t, 300, fee.PaidAmount, 0.001)
	assert.Equal(t, models.FeeStatusPartial, fee.Status)
	assert.Equal(t, 1, fee.Version)

	require.NoError(t, repo.IncrementPaid(ctx, feeID, 500))
	fee = loadObligation(t, repo, feeID)
	assert.InDelta(t, 800, fee.PaidAmount, 0.001)
	assert.Equal(t, models.FeeStatusPaid, fee.Status)
	assert.Equal(t, 2, fee.Version)

	require.NoError(t, repo.DecrementPaid(ctx, feeID, 800))
	fee = loadObligation(t, repo, feeID)
	assert.InDelta(t, 0, fee.PaidAmount, 0.001)
	assert.Equal(t, models.FeeStatusPending, fee.Status)
}

func TestMongoIncrementPaidRejectsOverpayment(t *testing.T) {
	repo := setupLedger(t)
	ctx := context.Background()
	feeID := seedObligation(t, repo, 1000, 0)

	require.NoError(t, repo.IncrementPaid(ctx, feeID, 999.995))
	err := repo.IncrementPaid(ctx, feeID, 0.02)
	assert.ErrorIs(t, err, database.ErrBalanceConflict)

	err = repo.IncrementPaid(ctx, uuid.New().String(), 10)
	assert.ErrorIs(t, err, database.ErrNotFound)

	err = repo.DecrementPaid(ctx, feeID, 2000)
	assert.ErrorIs(t, err, database.ErrBalanceConflict)

	fee := loadObligation(t, repo, feeID)
	assert.InDelta(t, 999.995, fee.PaidAmount, 0.0001)
	assert.Equal(t, models.FeeStatusPaid, fee.Status)
}

func TestMongoConcurrentIncrementsNeverOverpay(t *testing.T) {
	repo := setupLedger(t)
	feeID := seedObligation(t, repo, 1000, 0)

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.IncrementPaid(context.Background(), feeID, 300)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, database.ErrBalanceConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, workers-3, conflicts)
	fee := loadObligation(t, repo, feeID)
	assert.InDelta(t, 900, fee.PaidAmount, 0.001)
	assert.Equal(t, models.FeeStatusPartial, fee.Status)
	assert.Equal(t, 3, fee.Version)
}

func TestMongoPaymentRecordingLifecycle(t *testing.T) {
	repo := setupLedger(t)
	ctx := context.Background()

	payment := &models.Payment{
		ID:             uuid.New().String(),
		SchoolID:       "sch-1",
		StudentID:      "stu-1",
		Amount:         500,
		PaymentMode:    "upi",
		IdempotencyKey: "k1",
		Status:         models.PaymentStatusRecording,
		PaidAt:         time.Now(),
	}
	require.NoError(t, repo.InsertPayment(ctx, payment))

	dup := *payment
	dup.ID = uuid.New().String()
	assert.ErrorIs(t, repo.InsertPayment(ctx, &dup), database.ErrDuplicate)

	found, err := repo.FindPaymentByIdempotencyKey(ctx, "sch-1", "k1")
	require.NoError(t, err)
	assert.True(t, found.Recording())

	require.NoError(t, repo.MarkPaymentCommitted(ctx, payment.ID))
	found, err = repo.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCommitted, found.Status)

	err = repo.MarkPaymentCommitted(ctx, payment.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}
