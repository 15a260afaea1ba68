package auditRepo

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

// AuditRepository is append-only.
type AuditRepository interface {
	// Append returns database.ErrDuplicate when an entry with the same dedupe key exists.
	Append(ctx context.Context, entry *models.AuditLogEntry) error
}

type MongoAuditRepo struct {
	coll *mongo.Collection
}

func NewMongoAuditRepo(db *mongo.Database) *MongoAuditRepo {
	return &MongoAuditRepo{coll: db.Collection("audit_logs")}
}

func (r *MongoAuditRepo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{
			Keys: bson.D{{Key: "dedupe_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("audit_dedupe").
				SetPartialFilterExpression(bson.M{"dedupe_key": bson.M{"$gt": ""}}),
		},
		{Keys: bson.D{{Key: "school_id", Value: 1}, {Key: "entity_type", Value: 1}, {Key: "entity_id", Value: 1}}},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create audit indexes: %w", err)
	}
	return nil
}

func (r *MongoAuditRepo) Append(ctx context.Context, entry *models.AuditLogEntry) error {
	if _, err := r.coll.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("error appending audit entry: %w", database.MapError(err))
	}
	return nil
}
