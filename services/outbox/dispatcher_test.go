package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	memoryRepo "schoolfees/database/repository/memory"
	"schoolfees/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, opts Options) (*Dispatcher, *memoryRepo.Outbox, *time.Time) {
	t.Helper()
	repo := memoryRepo.NewOutbox()
	d := NewDispatcher(repo, opts, nil)
	now := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }
	return d, repo, &now
}

func seed(t *testing.T, d *Dispatcher, repo *memoryRepo.Outbox, eventType string) models.OutboxEvent {
	t.Helper()
	events := d.NewEvents(models.OutboxPayload{PaymentID: "pay-1", SchoolID: "sch-1", StudentID: "stu-1"}, eventType)
	require.NoError(t, repo.InsertMany(context.Background(), events))
	return events[0]
}

func TestNewEvents(t *testing.T) {
	d, _, now := newTestDispatcher(t, Options{InlineGrace: time.Minute})
	events := d.NewEvents(models.OutboxPayload{PaymentID: "pay-1"}, models.EventReceiptIssue, models.EventIncomeBook)

	require.Len(t, events, 2)
	for _, e := range events {
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, "pay-1", e.AggregateID)
		assert.Equal(t, models.OutboxStatusPending, e.Status)
		assert.Equal(t, now.Add(time.Minute), e.NextAttemptAt)
	}
	assert.NotEqual(t, events[0].ID, events[1].ID)
}

func TestRunPublishes(t *testing.T) {
	d, repo, _ := newTestDispatcher(t, Options{})
	event := seed(t, d, repo, models.EventAuditAppend)

	calls := 0
	err := d.Run(context.Background(), event.ID, func(ctx context.Context, e *models.OutboxEvent) error {
		calls++
		assert.Equal(t, models.OutboxStatusProcessing, e.Status)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	stored, err := repo.Get(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutboxStatusPublished, stored.Status)
	require.NotNil(t, stored.PublishedAt)

	err = d.Run(context.Background(), event.ID, func(context.Context, *models.OutboxEvent) error { return nil })
	assert.ErrorIs(t, err, ErrNotClaimed)
}

func TestRunFailureBacksOff(t *testing.T) {
	d, repo, now := newTestDispatcher(t, Options{RetryBase: time.Minute, MaxAttempts: 3})
	event := seed(t, d, repo, models.EventIncomeBook)
	boom := errors.New("boom")
	fail := func(context.Context, *models.OutboxEvent) error { return boom }

	assert.ErrorIs(t, d.Run(context.Background(), event.ID, fail), boom)
	stored, _ := repo.Get(context.Background(), event.ID)
	assert.Equal(t, models.OutboxStatusFailed, stored.Status)
	assert.Equal(t, "boom", stored.LastError)
	assert.WithinDuration(t, now.Add(time.Minute), stored.NextAttemptAt, 15*time.Second)

	assert.ErrorIs(t, d.Run(context.Background(), event.ID, fail), boom)
	stored, _ = repo.Get(context.Background(), event.ID)
	assert.WithinDuration(t, now.Add(2*time.Minute), stored.NextAttemptAt, 30*time.Second)

	assert.ErrorIs(t, d.Run(context.Background(), event.ID, fail), boom)
	stored, _ = repo.Get(context.Background(), event.ID)
	assert.Equal(t, models.OutboxStatusDead, stored.Status)
	assert.Equal(t, 3, stored.Attempts)

	assert.ErrorIs(t, d.Run(context.Background(), event.ID, fail), ErrNotClaimed)
}

func TestBackoffIsJitteredAndCapped(t *testing.T) {
	d, _, _ := newTestDispatcher(t, Options{RetryBase: 30 * time.Second})
	within := func(attempts int, want time.Duration) {
		t.Helper()
		got := d.backoff(attempts)
		assert.GreaterOrEqual(t, got, want-want/4, "attempt %d", attempts)
		assert.LessOrEqual(t, got, want+want/4, "attempt %d", attempts)
	}

	for i := 0; i < 50; i++ {
		within(1, 30*time.Second)
		within(2, time.Minute)
		within(4, 4*time.Minute)

		capped := d.backoff(20)
		assert.LessOrEqual(t, capped, time.Hour)
		assert.GreaterOrEqual(t, capped, 45*time.Minute)
	}
}

func TestDispatchUsesRegisteredHandler(t *testing.T) {
	d, repo, _ := newTestDispatcher(t, Options{})
	event := seed(t, d, repo, models.EventGuardianNotify)

	err := d.Dispatch(context.Background(), event.ID)
	assert.ErrorIs(t, err, ErrNoHandler)

	var seen string
	d.Register(models.EventGuardianNotify, func(_ context.Context, e *models.OutboxEvent) error {
		seen = e.Payload.PaymentID
		return nil
	})
	require.NoError(t, d.Dispatch(context.Background(), event.ID))
	assert.Equal(t, "pay-1", seen)
}

func TestListDueReleasesExpiredClaims(t *testing.T) {
	d, repo, now := newTestDispatcher(t, Options{Lease: time.Minute})
	stuck := seed(t, d, repo, models.EventReceiptIssue)
	later := d.NewEvents(models.OutboxPayload{PaymentID: "pay-2"}, models.EventReceiptIssue)
	later[0].NextAttemptAt = now.Add(time.Hour)
	require.NoError(t, repo.InsertMany(context.Background(), later))

	_, err := repo.Claim(context.Background(), stuck.ID, now.Add(-2*time.Minute))
	require.NoError(t, err)

	due, err := d.ListDue(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, stuck.ID, due[0].ID)
	assert.Equal(t, models.OutboxStatusFailed, due[0].Status)
}
