package incomeRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"schoolfees/database"
	"schoolfees/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrIncomeFunctionUnavailable marks the preferred booking path as unusable so the
// caller falls back to a direct insert.
var ErrIncomeFunctionUnavailable = errors.New("income booking function unavailable")

// IncomeRepository persists income entries; at most one exists per payment.
type IncomeRepository interface {
	// BookFromPayment is the preferred path: an upsert keyed by payment id that
	// returns the existing entry when the payment was already booked.
	BookFromPayment(ctx context.Context, entry *models.IncomeEntry) (*models.IncomeEntry, error)
	// Insert is the fallback path. A second entry for the payment yields database.ErrDuplicate.
	Insert(ctx context.Context, entry *models.IncomeEntry) error
	FindByPaymentID(ctx context.Context, paymentID string) (*models.IncomeEntry, error)
}

// MongoIncomeRepo implements IncomeRepository using MongoDB.
type MongoIncomeRepo struct {
	coll *mongo.Collection
}

func NewMongoIncomeRepo(db *mongo.Database) *MongoIncomeRepo {
	return &MongoIncomeRepo{coll: db.Collection("income_entries")}
}

func (r *MongoIncomeRepo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "payment_id", Value: 1}}, Options: options.Index().SetUnique(true).SetName("income_payment")},
		{Keys: bson.D{{Key: "school_id", Value: 1}, {Key: "date", Value: -1}}},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create income indexes: %w", err)
	}
	return nil
}

func (r *MongoIncomeRepo) BookFromPayment(ctx context.Context, entry *models.IncomeEntry) (*models.IncomeEntry, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var booked models.IncomeEntry
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"payment_id": entry.PaymentID},
		bson.M{"$setOnInsert": entry},
		opts,
	).Decode(&booked)
	if err != nil {
		// Two concurrent upserts can race on the unique index; the loser reads the winner.
		if mongo.IsDuplicateKeyError(err) {
			return r.FindByPaymentID(ctx, entry.PaymentID)
		}
		return nil, fmt.Errorf("error booking income: %w", err)
	}
	return &booked, nil
}

func (r *MongoIncomeRepo) Insert(ctx context.Context, entry *models.IncomeEntry) error {
	if _, err := r.coll.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("error creating income entry: %w", database.MapError(err))
	}
	return nil
}

func (r *MongoIncomeRepo) FindByPaymentID(ctx context.Context, paymentID string) (*models.IncomeEntry, error) {
	var entry models.IncomeEntry
	if err := r.coll.FindOne(ctx, bson.M{"payment_id": paymentID}).Decode(&entry); err != nil {
		return nil, fmt.Errorf("income entry for payment %s: %w", paymentID, database.MapError(err))
	}
	return &entry, nil
}
