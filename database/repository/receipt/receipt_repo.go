package receiptRepo

import (
	"context"
	"fmt"
	"time"

	"schoolfees/database"
	"schoolfees/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ReceiptRepository persists issued receipts. Both payment_id and receipt_no are unique.
type ReceiptRepository interface {
	// Insert returns database.ErrDuplicate if the payment already has a receipt or the
	// number is taken.
	Insert(ctx context.Context, receipt *models.Receipt) error
	GetByPaymentID(ctx context.Context, paymentID string) (*models.Receipt, error)
	ListByPaymentIDs(ctx context.Context, paymentIDs []string) (map[string]*models.Receipt, error)
}

// MongoReceiptRepo implements ReceiptRepository using MongoDB.
type MongoReceiptRepo struct {
	coll *mongo.Collection
}

func NewMongoReceiptRepo(db *mongo.Database) *MongoReceiptRepo {
	return &MongoReceiptRepo{coll: db.Collection("receipts")}
}

// EnsureIndexes creates the uniqueness guarantees receipts depend on.
func (r *MongoReceiptRepo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "payment_id", Value: 1}}, Options: options.Index().SetUnique(true).SetName("receipt_payment")},
		{Keys: bson.D{{Key: "receipt_no", Value: 1}}, Options: options.Index().SetUnique(true).SetName("receipt_number")},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create receipt indexes: %w", err)
	}
	return nil
}

func (r *MongoReceiptRepo) Insert(ctx context.Context, receipt *models.Receipt) error {
	if _, err := r.coll.InsertOne(ctx, receipt); err != nil {
		return fmt.Errorf("error creating receipt: %w", database.MapError(err))
	}
	return nil
}

func (r *MongoReceiptRepo) GetByPaymentID(ctx context.Context, paymentID string) (*models.Receipt, error) {
	var receipt models.Receipt
	if err := r.coll.FindOne(ctx, bson.M{"payment_id": paymentID}).Decode(&receipt); err != nil {
		return nil, fmt.Errorf("receipt for payment %s: %w", paymentID, database.MapError(err))
	}
	return &receipt, nil
}

// ListByPaymentIDs returns receipts keyed by payment id. Payments without a receipt are absent.
func (r *MongoReceiptRepo) ListByPaymentIDs(ctx context.Context, paymentIDs []string) (map[string]*models.Receipt, error) {
	out := make(map[string]*models.Receipt, len(paymentIDs))
	if len(paymentIDs) == 0 {
		return out, nil
	}
	cursor, err := r.coll.Find(ctx, bson.M{"payment_id": bson.M{"$in": paymentIDs}})
	if err != nil {
		return nil, fmt.Errorf("error listing receipts: %w", err)
	}
	defer cursor.Close(ctx)

	var receipts []models.Receipt
	if err := cursor.All(ctx, &receipts); err != nil {
		return nil, fmt.Errorf("error decoding receipts: %w", err)
	}
	for i := range receipts {
		out[receipts[i].PaymentID] = &receipts[i]
	}
	return out, nil
}
