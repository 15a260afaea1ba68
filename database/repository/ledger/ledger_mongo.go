package ledgerRepo

import (
	"context"
	"fmt"
	"time"

	"schoolfees/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoLedgerRepo implements LedgerRepository using MongoDB.
type MongoLedgerRepo struct {
	feeColl        *mongo.Collection
	paymentColl    *mongo.Collection
	allocationColl *mongo.Collection

	txEnabled     bool
	txMaxAttempts int
}

// NewMongoLedgerRepo constructs a ledger repository. txEnabled selects whether
// WithTransaction opens a real multi-document transaction.
func NewMongoLedgerRepo(db *mongo.Database, txEnabled bool, txMaxAttempts int) *MongoLedgerRepo {
	if txMaxAttempts < 1 {
		txMaxAttempts = 1
	}
	return &MongoLedgerRepo{
		feeColl:        db.Collection("fee_obligations"),
		paymentColl:    db.Collection("payments"),
		allocationColl: db.Collection("payment_allocations"),
		txEnabled:      txEnabled,
		txMaxAttempts:  txMaxAttempts,
	}
}

// EnsureIndexes creates the unique and lookup indexes the ledger relies on.
func (repo *MongoLedgerRepo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	specs := map[*mongo.Collection][]mongo.IndexModel{
		repo.feeColl: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "school_id", Value: 1}, {Key: "student_id", Value: 1}, {Key: "due_date", Value: 1}}},
		},
		repo.paymentColl: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{
				Keys:    bson.D{{Key: "school_id", Value: 1}, {Key: "idempotency_key", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("payment_idempotency"),
			},
			{Keys: bson.D{{Key: "school_id", Value: 1}, {Key: "student_id", Value: 1}, {Key: "paid_at", Value: -1}}},
		},
		repo.allocationColl: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "payment_id", Value: 1}}},
			{Keys: bson.D{{Key: "student_fee_id", Value: 1}}},
		},
	}
	for coll, indexes := range specs {
		if _, err := coll.Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// SupportsTransactions reports whether the deployment runs multi-document transactions.
func (repo *MongoLedgerRepo) SupportsTransactions() bool {
	return repo.txEnabled
}

// WithTransaction runs fn inside a session transaction, retrying the whole unit on
// transient errors such as write conflicts between concurrent collections.
func (repo *MongoLedgerRepo) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !repo.txEnabled {
		return fn(ctx)
	}

	client := repo.paymentColl.Database().Client()
	var lastErr error
	for attempt := 1; attempt <= repo.txMaxAttempts; attempt++ {
		lastErr = repo.runTransaction(ctx, client, fn)
		if lastErr == nil || !database.IsTransientTxnError(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", repo.txMaxAttempts, lastErr)
}

func (repo *MongoLedgerRepo) runTransaction(ctx context.Context, client *mongo.Client, fn func(ctx context.Context) error) error {
	sess, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("could not start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	return mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sc.StartTransaction(); err != nil {
			return err
		}
		if err := fn(sc); err != nil {
			_ = sc.AbortTransaction(sc)
			return err
		}
		return sc.CommitTransaction(sc)
	})
}
