package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"schoolfees/database"
	outboxRepo "schoolfees/database/repository/outbox"
	"schoolfees/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxRetryDelay = time.Hour
	retryJitter   = 0.25
)

var (
	// ErrNotClaimed is returned by Run when another worker holds the event or it is finished.
	ErrNotClaimed = errors.New("outbox event not claimable")
	// ErrNoHandler is returned by Dispatch for an event type nobody registered.
	ErrNoHandler = errors.New("no handler registered for outbox event type")
)

// Handler runs the side effect an event stands for.
type Handler func(ctx context.Context, event *models.OutboxEvent) error

// Options tunes retries. Zero values fall back to defaults.
type Options struct {
	MaxAttempts int
	RetryBase   time.Duration
	Lease       time.Duration
	// InlineGrace delays the first sweep of a fresh event so it does not race the
	// request that is about to run it inline.
	InlineGrace time.Duration
}

// Dispatcher claims outbox events and runs their handlers with at-most-one worker per event.
type Dispatcher struct {
	repo     outboxRepo.OutboxRepository
	opts     Options
	logger   *zap.Logger
	now      func() time.Time
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewDispatcher creates a dispatcher over repo.
func NewDispatcher(repo outboxRepo.OutboxRepository, opts Options, logger *zap.Logger) *Dispatcher {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 8
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 30 * time.Second
	}
	if opts.Lease <= 0 {
		opts.Lease = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		repo:     repo,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		handlers: make(map[string]Handler),
	}
}

// Register binds a handler to an event type, replacing any previous one.
func (d *Dispatcher) Register(eventType string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = h
}

// NewEvents builds one pending event per type for a payment.
func (d *Dispatcher) NewEvents(payload models.OutboxPayload, eventTypes ...string) []models.OutboxEvent {
	now := d.now()
	events := make([]models.OutboxEvent, 0, len(eventTypes))
	for _, t := range eventTypes {
		events = append(events, models.OutboxEvent{
			ID:            uuid.New().String(),
			EventType:     t,
			AggregateID:   payload.PaymentID,
			Payload:       payload,
			Status:        models.OutboxStatusPending,
			NextAttemptAt: now.Add(d.opts.InlineGrace),
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	return events
}

// Run claims eventID and runs fn for it. The outcome is recorded on the event: published
// on success, failed with back-off, or dead once attempts are exhausted. fn's error is
// returned to the caller.
func (d *Dispatcher) Run(ctx context.Context, eventID string, fn Handler) error {
	event, err := d.repo.Claim(ctx, eventID, d.now())
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrNotClaimed
		}
		return fmt.Errorf("failed to claim outbox event: %w", err)
	}

	log := d.logger.With(
		zap.String("event_id", event.ID),
		zap.String("event_type", event.EventType),
		zap.String("payment_id", event.Payload.PaymentID),
		zap.Int("attempt", event.Attempts),
	)

	runErr := fn(ctx, event)
	if runErr == nil {
		if err := d.repo.MarkPublished(ctx, event.ID, d.now()); err != nil {
			log.Error("Side effect ran but event could not be marked published", zap.Error(err))
		}
		return nil
	}

	dead := event.Attempts >= d.opts.MaxAttempts
	next := d.now().Add(d.backoff(event.Attempts))
	if err := d.repo.MarkFailed(ctx, event.ID, runErr.Error(), next, dead); err != nil {
		log.Error("Failed to record outbox failure", zap.Error(err))
	}
	if dead {
		log.Error("Outbox event exhausted its attempts",
			zap.Error(runErr),
			zap.Bool("reconciliation_required", true))
	} else {
		log.Warn("Outbox event failed, will retry", zap.Error(runErr), zap.Time("next_attempt_at", next))
	}
	return runErr
}

// Dispatch runs the registered handler of eventID.
func (d *Dispatcher) Dispatch(ctx context.Context, eventID string) error {
	event, err := d.repo.Get(ctx, eventID)
	if err != nil {
		return err
	}
	d.mu.RLock()
	h, ok := d.handlers[event.EventType]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, event.EventType)
	}
	return d.Run(ctx, eventID, h)
}

// ListDue returns events ready to run, first returning abandoned claims to the queue.
func (d *Dispatcher) ListDue(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	now := d.now()
	released, err := d.repo.ReleaseExpired(ctx, now.Add(-d.opts.Lease))
	if err != nil {
		return nil, err
	}
	if released > 0 {
		d.logger.Warn("Released expired outbox claims", zap.Int64("count", released))
	}
	return d.repo.ListDue(ctx, now, limit)
}

// backoff is the jittered exponential delay before retry number attempts+1, starting
// at RetryBase and never above maxRetryDelay.
func (d *Dispatcher) backoff(attempts int) time.Duration {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     d.opts.RetryBase,
		RandomizationFactor: retryJitter,
		Multiplier:          2,
		MaxInterval:         maxRetryDelay,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()

	delay := b.NextBackOff()
	for i := 1; i < attempts && delay < maxRetryDelay; i++ {
		delay = b.NextBackOff()
	}
	if delay > maxRetryDelay {
		return maxRetryDelay
	}
	return delay
}
