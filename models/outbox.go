package models

import "time"

// Outbox event types, one per tail step of a collection.
const (
	EventReceiptIssue   = "receipt.issue"
	EventIncomeBook     = "income.book"
	EventAuditAppend    = "audit.append"
	EventGuardianNotify = "guardian.notify"
)

// Outbox event statuses.
const (
	OutboxStatusPending    = "pending"
	OutboxStatusProcessing = "processing"
	OutboxStatusPublished  = "published"
	OutboxStatusFailed     = "failed"
	OutboxStatusDead       = "dead"
)

// OutboxEvent is a durable intent to run a side effect for a committed payment.
type OutboxEvent struct {
	ID            string        `bson:"id" json:"id"`
	EventType     string        `bson:"event_type" json:"event_type"`
	AggregateID   string        `bson:"aggregate_id" json:"aggregate_id"` // payment id
	Payload       OutboxPayload `bson:"payload" json:"payload"`
	Status        string        `bson:"status" json:"status"`
	Attempts      int           `bson:"attempts" json:"attempts"`
	LastError     string        `bson:"last_error,omitempty" json:"last_error,omitempty"`
	NextAttemptAt time.Time     `bson:"next_attempt_at" json:"next_attempt_at"`
	ClaimedAt     *time.Time    `bson:"claimed_at,omitempty" json:"claimed_at,omitempty"`
	PublishedAt   *time.Time    `bson:"published_at,omitempty" json:"published_at,omitempty"`
	CreatedAt     time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `bson:"updated_at" json:"updated_at"`
}

// OutboxPayload carries what a tail step needs to reload its inputs.
type OutboxPayload struct {
	PaymentID string `bson:"payment_id" json:"payment_id"`
	SchoolID  string `bson:"school_id" json:"school_id"`
	StudentID string `bson:"student_id" json:"student_id"`
}
