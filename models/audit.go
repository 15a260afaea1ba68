package models

import "time"

// AuditActionPaymentCollected is recorded once per committed payment.
const AuditActionPaymentCollected = "payment_collected"

// AuditLogEntry records who did what to what. Entries are never updated.
type AuditLogEntry struct {
	ID         string                 `bson:"id" json:"id"`
	SchoolID   string                 `bson:"school_id" json:"school_id"`
	ActorID    string                 `bson:"actor_id" json:"actor_id"`
	Action     string                 `bson:"action" json:"action"`
	EntityType string                 `bson:"entity_type" json:"entity_type"`
	EntityID   string                 `bson:"entity_id" json:"entity_id"`
	Changes    map[string]interface{} `bson:"changes" json:"changes"`
	Metadata   map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
	DedupeKey  string                 `bson:"dedupe_key" json:"-"`
	CreatedAt  time.Time              `bson:"created_at" json:"created_at"`
}
