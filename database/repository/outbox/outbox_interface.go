package outboxRepo

import (
	"context"
	"time"

	"schoolfees/models"
)

// OutboxRepository stores side-effect intents and hands them out to one worker at a time.
type OutboxRepository interface {
	// InsertMany writes events; pass the transaction ctx to commit them with the payment.
	InsertMany(ctx context.Context, events []models.OutboxEvent) error
	Get(ctx context.Context, eventID string) (*models.OutboxEvent, error)
	ListByAggregate(ctx context.Context, aggregateID string) ([]models.OutboxEvent, error)
	// Claim moves a pending or failed event to processing and returns it. It returns
	// database.ErrNotFound if another worker holds it or it is already finished.
	Claim(ctx context.Context, eventID string, now time.Time) (*models.OutboxEvent, error)
	MarkPublished(ctx context.Context, eventID string, now time.Time) error
	// MarkFailed records a failed attempt. The event becomes dead when dead is true,
	// otherwise it is retried at nextAttempt.
	MarkFailed(ctx context.Context, eventID, lastError string, nextAttempt time.Time, dead bool) error
	// ListDue returns up to limit events whose next attempt is due.
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.OutboxEvent, error)
	// ReleaseExpired returns processing events claimed before cutoff to failed.
	ReleaseExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
