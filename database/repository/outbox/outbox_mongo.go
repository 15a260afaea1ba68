package outboxRepo

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

// MongoOutboxRepo implements OutboxRepository using MongoDB.
type MongoOutboxRepo struct {
	coll *mongo.Collection
}

func NewMongoOutboxRepo(db *mongo.Database) *MongoOutboxRepo {
	return &MongoOutboxRepo{coll: db.Collection("outbox_events")}
}

func (r *MongoOutboxRepo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{
			Keys:    bson.D{{Key: "aggregate_id", Value: 1}, {Key: "event_type", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("outbox_aggregate_event"),
		},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "next_attempt_at", Value: 1}}},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create outbox indexes: %w", err)
	}
	return nil
}

func (r *MongoOutboxRepo) InsertMany(ctx context.Context, events []models.OutboxEvent) error {
	if len(events) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(events))
	for _, e := range events {
		docs = append(docs, e)
	}
	if _, err := r.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("error creating outbox events: %w", database.MapError(err))
	}
	return nil
}

func (r *MongoOutboxRepo) Get(ctx context.Context, eventID string) (*models.OutboxEvent, error) {
	var event models.OutboxEvent
	if err := r.coll.FindOne(ctx, bson.M{"id": eventID}).Decode(&event); err != nil {
		return nil, fmt.Errorf("outbox event %s: %w", eventID, database.MapError(err))
	}
	return &event, nil
}

func (r *MongoOutboxRepo) ListByAggregate(ctx context.Context, aggregateID string) ([]models.OutboxEvent, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"aggregate_id": aggregateID})
	if err != nil {
		return nil, fmt.Errorf("error listing outbox events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []models.OutboxEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("error decoding outbox events: %w", err)
	}
	return events, nil
}

func (r *MongoOutboxRepo) Claim(ctx context.Context, eventID string, now time.Time) (*models.OutboxEvent, error) {
	filter := bson.M{
		"id":     eventID,
		"status": bson.M{"$in": bson.A{models.OutboxStatusPending, models.OutboxStatusFailed}},
	}
	update := bson.M{
		"$set": bson.M{
			"status":     models.OutboxStatusProcessing,
			"claimed_at": now,
			"updated_at": now,
		},
		"$inc": bson.M{"attempts": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var event models.OutboxEvent
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&event); err != nil {
		return nil, fmt.Errorf("claim outbox event %s: %w", eventID, database.MapError(err))
	}
	return &event, nil
}

func (r *MongoOutboxRepo) MarkPublished(ctx context.Context, eventID string, now time.Time) error {
	update := bson.M{"$set": bson.M{
		"status":       models.OutboxStatusPublished,
		"published_at": now,
		"updated_at":   now,
		"last_error":   "",
	}}
	res, err := r.coll.UpdateOne(ctx, bson.M{"id": eventID}, update)
	if err != nil {
		return fmt.Errorf("error publishing outbox event %s: %w", eventID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("outbox event %s: %w", eventID, database.ErrNotFound)
	}
	return nil
}

func (r *MongoOutboxRepo) MarkFailed(ctx context.Context, eventID, lastError string, nextAttempt time.Time, dead bool) error {
	status := models.OutboxStatusFailed
	if dead {
		status = models.OutboxStatusDead
	}
	update := bson.M{"$set": bson.M{
		"status":          status,
		"last_error":      lastError,
		"next_attempt_at": nextAttempt,
		"updated_at":      time.Now(),
	}}
	res, err := r.coll.UpdateOne(ctx, bson.M{"id": eventID}, update)
	if err != nil {
		return fmt.Errorf("error failing outbox event %s: %w", eventID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("outbox event %s: %w", eventID, database.ErrNotFound)
	}
	return nil
}

func (r *MongoOutboxRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]models.OutboxEvent, error) {
	filter := bson.M{
		"status":          bson.M{"$in": bson.A{models.OutboxStatusPending, models.OutboxStatusFailed}},
		"next_attempt_at": bson.M{"$lte": now},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "next_attempt_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing due outbox events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []models.OutboxEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("error decoding outbox events: %w", err)
	}
	return events, nil
}

func (r *MongoOutboxRepo) ReleaseExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	filter := bson.M{
		"status":     models.OutboxStatusProcessing,
		"claimed_at": bson.M{"$lt": cutoff},
	}
	update := bson.M{"$set": bson.M{
		"status":          models.OutboxStatusFailed,
		"last_error":      "lease expired",
		"next_attempt_at": cutoff,
		"updated_at":      time.Now(),
	}}
	res, err := r.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("error releasing expired outbox events: %w", err)
	}
	return res.ModifiedCount, nil
}
