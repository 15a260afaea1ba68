package ledgerRepo

import (
	"context"
	"fmt"

	"schoolfees/database"
	"schoolfees/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// InsertPayment writes a new payment. A reused idempotency key yields database.ErrDuplicate.
func (repo *MongoLedgerRepo) InsertPayment(ctx context.Context, payment *models.Payment) error {
	if _, err := repo.paymentColl.InsertOne(ctx, payment); err != nil {
		return fmt.Errorf("error creating payment: %w", database.MapError(err))
	}
	return nil
}

// DeletePayment removes a payment; compensation only.
func (repo *MongoLedgerRepo) DeletePayment(ctx context.Context, paymentID string) error {
	res, err := repo.paymentColl.DeleteOne(ctx, bson.M{"id": paymentID})
	if err != nil {
		return fmt.Errorf("error deleting payment %s: %w", paymentID, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("payment %s: %w", paymentID, database.ErrNotFound)
	}
	return nil
}

// MarkPaymentCommitted flips a recording payment to committed.
func (repo *MongoLedgerRepo) MarkPaymentCommitted(ctx context.Context, paymentID string) error {
	res, err := repo.paymentColl.UpdateOne(ctx,
		bson.M{"id": paymentID, "status": models.PaymentStatusRecording},
		bson.M{"$set": bson.M{"status": models.PaymentStatusCommitted}})
	if err != nil {
		return fmt.Errorf("error committing payment %s: %w", paymentID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("recording payment %s: %w", paymentID, database.ErrNotFound)
	}
	return nil
}

// GetPayment retrieves a payment by id.
func (repo *MongoLedgerRepo) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	var payment models.Payment
	if err := repo.paymentColl.FindOne(ctx, bson.M{"id": paymentID}).Decode(&payment); err != nil {
		return nil, fmt.Errorf("payment %s: %w", paymentID, database.MapError(err))
	}
	return &payment, nil
}

// FindPaymentByIdempotencyKey returns the payment already recorded under key, if any.
func (repo *MongoLedgerRepo) FindPaymentByIdempotencyKey(ctx context.Context, schoolID, key string) (*models.Payment, error) {
	var payment models.Payment
	filter := bson.M{"school_id": schoolID, "idempotency_key": key}
	if err := repo.paymentColl.FindOne(ctx, filter).Decode(&payment); err != nil {
		return nil, fmt.Errorf("payment with idempotency key: %w", database.MapError(err))
	}
	return &payment, nil
}

// ListPaymentsByStudent returns a student's payments, newest first.
func (repo *MongoLedgerRepo) ListPaymentsByStudent(ctx context.Context, schoolID, studentID string) ([]models.Payment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "paid_at", Value: -1}})
	cursor, err := repo.paymentColl.Find(ctx, bson.M{"school_id": schoolID, "student_id": studentID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing payments: %w", err)
	}
	defer cursor.Close(ctx)

	var payments []models.Payment
	if err := cursor.All(ctx, &payments); err != nil {
		return nil, fmt.Errorf("error decoding payments: %w", err)
	}
	return payments, nil
}

// InsertAllocations writes all allocation rows of a payment as one batch.
func (repo *MongoLedgerRepo) InsertAllocations(ctx context.Context, allocations []models.PaymentAllocation) error {
	docs := make([]interface{}, 0, len(allocations))
	for _, a := range allocations {
		docs = append(docs, a)
	}
	if _, err := repo.allocationColl.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("error creating payment allocations: %w", database.MapError(err))
	}
	return nil
}

// DeleteAllocations removes every allocation of a payment; compensation only.
func (repo *MongoLedgerRepo) DeleteAllocations(ctx context.Context, paymentID string) error {
	if _, err := repo.allocationColl.DeleteMany(ctx, bson.M{"payment_id": paymentID}); err != nil {
		return fmt.Errorf("error deleting allocations of payment %s: %w", paymentID, err)
	}
	return nil
}

// ListAllocationsByPayment returns the allocations of one payment.
func (repo *MongoLedgerRepo) ListAllocationsByPayment(ctx context.Context, paymentID string) ([]models.PaymentAllocation, error) {
	cursor, err := repo.allocationColl.Find(ctx, bson.M{"payment_id": paymentID})
	if err != nil {
		return nil, fmt.Errorf("error listing allocations: %w", err)
	}
	defer cursor.Close(ctx)

	var allocations []models.PaymentAllocation
	if err := cursor.All(ctx, &allocations); err != nil {
		return nil, fmt.Errorf("error decoding allocations: %w", err)
	}
	return allocations, nil
}

// ListAllocationsByPayments groups the allocations of several payments by payment id.
func (repo *MongoLedgerRepo) ListAllocationsByPayments(ctx context.Context, paymentIDs []string) (map[string][]models.PaymentAllocation, error) {
	grouped := make(map[string][]models.PaymentAllocation, len(paymentIDs))
	if len(paymentIDs) == 0 {
		return grouped, nil
	}

	cursor, err := repo.allocationColl.Find(ctx, bson.M{"payment_id": bson.M{"$in": paymentIDs}})
	if err != nil {
		return nil, fmt.Errorf("error listing allocations: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var a models.PaymentAllocation
		if err := cursor.Decode(&a); err != nil {
			return nil, fmt.Errorf("error decoding allocation: %w", err)
		}
		grouped[a.PaymentID] = append(grouped[a.PaymentID], a)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return grouped, nil
}
