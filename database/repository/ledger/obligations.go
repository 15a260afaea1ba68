package ledgerRepo

import (
	"context"
	"fmt"
	"time"

	"schoolfees/database"
	"schoolfees/models"
	"schoolfees/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GetObligations loads a student's obligations by id.
func (repo *MongoLedgerRepo) GetObligations(ctx context.Context, schoolID, studentID string, ids []string) ([]models.FeeObligation, error) {
	filter := bson.M{
		"id":         bson.M{"$in": ids},
		"school_id":  schoolID,
		"student_id": studentID,
	}
	cursor, err := repo.feeColl.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error fetching fee obligations: %w", err)
	}
	defer cursor.Close(ctx)

	var fees []models.FeeObligation
	if err := cursor.All(ctx, &fees); err != nil {
		return nil, fmt.Errorf("error decoding fee obligations: %w", err)
	}
	return fees, nil
}

// ListObligationsByStudent returns every obligation of a student ordered by due date.
func (repo *MongoLedgerRepo) ListObligationsByStudent(ctx context.Context, schoolID, studentID string) ([]models.FeeObligation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "due_date", Value: 1}})
	cursor, err := repo.feeColl.Find(ctx, bson.M{"school_id": schoolID, "student_id": studentID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing fee obligations: %w", err)
	}
	defer cursor.Close(ctx)

	var fees []models.FeeObligation
	if err := cursor.All(ctx, &fees); err != nil {
		return nil, fmt.Errorf("error decoding fee obligations: %w", err)
	}
	return fees, nil
}

// IncrementPaid applies paid_amount += amount as one guarded update. The filter only
// matches while paid_amount + amount <= base_amount + adjustment_amount + epsilon, so two
// concurrent collections can never push an obligation past what is owed.
func (repo *MongoLedgerRepo) IncrementPaid(ctx context.Context, feeID string, amount float64) error {
	filter := bson.M{
		"id": feeID,
		"$expr": bson.M{
			"$lte": bson.A{
				bson.M{"$add": bson.A{"$paid_amount", amount}},
				bson.M{"$add": bson.A{"$base_amount", "$adjustment_amount", utils.Epsilon}},
			},
		},
	}

	res, err := repo.feeColl.UpdateOne(ctx, filter, paidAmountPipeline(amount))
	if err != nil {
		return fmt.Errorf("failed to increment paid amount of %s: %w", feeID, err)
	}
	if res.MatchedCount == 0 {
		return repo.missOrConflict(ctx, feeID)
	}
	return nil
}

// DecrementPaid reverses an earlier increment. Used only by compensating writes.
func (repo *MongoLedgerRepo) DecrementPaid(ctx context.Context, feeID string, amount float64) error {
	filter := bson.M{
		"id":          feeID,
		"paid_amount": bson.M{"$gte": amount - utils.Epsilon},
	}

	res, err := repo.feeColl.UpdateOne(ctx, filter, paidAmountPipeline(-amount))
	if err != nil {
		return fmt.Errorf("failed to decrement paid amount of %s: %w", feeID, err)
	}
	if res.MatchedCount == 0 {
		return repo.missOrConflict(ctx, feeID)
	}
	return nil
}

func (repo *MongoLedgerRepo) missOrConflict(ctx context.Context, feeID string) error {
	n, err := repo.feeColl.CountDocuments(ctx, bson.M{"id": feeID})
	if err != nil {
		return fmt.Errorf("failed to check fee obligation %s: %w", feeID, err)
	}
	if n == 0 {
		return fmt.Errorf("fee obligation %s: %w", feeID, database.ErrNotFound)
	}
	return fmt.Errorf("fee obligation %s: %w", feeID, database.ErrBalanceConflict)
}

// paidAmountPipeline moves paid_amount by delta (never below zero), bumps the version
// and recomputes the status from the new paid amount.
func paidAmountPipeline(delta float64) mongo.Pipeline {
	owed := bson.D{{Key: "$add", Value: bson.A{"$base_amount", "$adjustment_amount"}}}

	return mongo.Pipeline{
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "paid_amount", Value: bson.D{{Key: "$max", Value: bson.A{
				0,
				bson.D{{Key: "$add", Value: bson.A{"$paid_amount", delta}}},
			}}}},
			{Key: "version", Value: bson.D{{Key: "$add", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{"$version", 0}}}, 1}}}},
			{Key: "updated_at", Value: time.Now()},
		}}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: bson.D{{Key: "$switch", Value: bson.D{
				{Key: "branches", Value: bson.A{
					bson.D{
						{Key: "case", Value: bson.D{{Key: "$gte", Value: bson.A{
							"$paid_amount",
							bson.D{{Key: "$subtract", Value: bson.A{owed, utils.Epsilon}}},
						}}}},
						{Key: "then", Value: models.FeeStatusPaid},
					},
					bson.D{
						{Key: "case", Value: bson.D{{Key: "$lte", Value: bson.A{"$paid_amount", utils.Epsilon}}}},
						{Key: "then", Value: models.FeeStatusPending},
					},
				}},
				{Key: "default", Value: models.FeeStatusPartial},
			}}}},
		}}},
	}
}
