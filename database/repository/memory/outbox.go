package memoryRepo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"schoolfees/database"
	"schoolfees/models"
)

// Outbox is an in-memory OutboxRepository.
type Outbox struct {
	FailInsert error

	mu     sync.Mutex
	events map[string]models.OutboxEvent
}

func NewOutbox() *Outbox {
	return &Outbox{events: make(map[string]models.OutboxEvent)}
}

func (o *Outbox) InsertMany(_ context.Context, events []models.OutboxEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.FailInsert != nil {
		return o.FailInsert
	}
	for _, e := range events {
		if _, ok := o.events[e.ID]; ok {
			return fmt.Errorf("outbox event: %w", database.ErrDuplicate)
		}
	}
	for _, e := range events {
		o.events[e.ID] = e
	}
	return nil
}

func (o *Outbox) Get(_ context.Context, eventID string) (*models.OutboxEvent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.events[eventID]
	if !ok {
		return nil, fmt.Errorf("outbox event %s: %w", eventID, database.ErrNotFound)
	}
	return &e, nil
}

func (o *Outbox) ListByAggregate(_ context.Context, aggregateID string) ([]models.OutboxEvent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []models.OutboxEvent
	for _, e := range o.events {
		if e.AggregateID == aggregateID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventType < out[j].EventType })
	return out, nil
}

func (o *Outbox) Claim(_ context.Context, eventID string, now time.Time) (*models.OutboxEvent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.events[eventID]
	if !ok || (e.Status != models.OutboxStatusPending && e.Status != models.OutboxStatusFailed) {
		return nil, fmt.Errorf("claim outbox event %s: %w", eventID, database.ErrNotFound)
	}
	e.Status = models.OutboxStatusProcessing
	e.Attempts++
	claimed := now
	e.ClaimedAt = &claimed
	e.UpdatedAt = now
	o.events[eventID] = e
	return &e, nil
}

func (o *Outbox) MarkPublished(_ context.Context, eventID string, now time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.events[eventID]
	if !ok {
		return fmt.Errorf("outbox event %s: %w", eventID, database.ErrNotFound)
	}
	e.Status = models.OutboxStatusPublished
	published := now
	e.PublishedAt = &published
	e.LastError = ""
	e.UpdatedAt = now
	o.events[eventID] = e
	return nil
}

func (o *Outbox) MarkFailed(_ context.Context, eventID, lastError string, nextAttempt time.Time, dead bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.events[eventID]
	if !ok {
		return fmt.Errorf("outbox event %s: %w", eventID, database.ErrNotFound)
	}
	e.Status = models.OutboxStatusFailed
	if dead {
		e.Status = models.OutboxStatusDead
	}
	e.LastError = lastError
	e.NextAttemptAt = nextAttempt
	e.UpdatedAt = time.Now()
	o.events[eventID] = e
	return nil
}

func (o *Outbox) ListDue(_ context.Context, now time.Time, limit int) ([]models.OutboxEvent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []models.OutboxEvent
	for _, e := range o.events {
		if (e.Status == models.OutboxStatusPending || e.Status == models.OutboxStatusFailed) && !e.NextAttemptAt.After(now) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextAttemptAt.Before(out[j].NextAttemptAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (o *Outbox) ReleaseExpired(_ context.Context, cutoff time.Time) (int64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var n int64
	for id, e := range o.events {
		if e.Status == models.OutboxStatusProcessing && e.ClaimedAt != nil && e.ClaimedAt.Before(cutoff) {
			e.Status = models.OutboxStatusFailed
			e.LastError = "lease expired"
			e.NextAttemptAt = cutoff
			o.events[id] = e
			n++
		}
	}
	return n, nil
}
