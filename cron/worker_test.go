package cron

import (
	"context"
	"errors"
	"testing"

	memoryRepo "schoolfees/database/repository/memory"
	"schoolfees/models"
	"schoolfees/services/outbox"
	"schoolfees/services/tasks"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEnqueuer struct {
	tasks []*asynq.Task
	seen  map[string]bool
	err   error
}

func (e *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if e.err != nil {
		return nil, e.err
	}
	p, err := tasks.ParseDispatchPayload(task)
	if err != nil {
		return nil, err
	}
	if e.seen[p.EventID] {
		return nil, asynq.ErrTaskIDConflict
	}
	e.seen[p.EventID] = true
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{ID: p.EventID}, nil
}

func setupWorker(t *testing.T) (*OutboxWorker, *outbox.Dispatcher, *memoryRepo.Outbox, *recordingEnqueuer) {
	t.Helper()
	repo := memoryRepo.NewOutbox()
	dispatcher := outbox.NewDispatcher(repo, outbox.Options{}, nil)
	enq := &recordingEnqueuer{seen: make(map[string]bool)}
	return newOutboxWorker(dispatcher, enq, nil), dispatcher, repo, enq
}

func TestSweepEnqueuesDueEvents(t *testing.T) {
	w, dispatcher, repo, enq := setupWorker(t)
	events := dispatcher.NewEvents(models.OutboxPayload{PaymentID: "pay-1"}, models.EventReceiptIssue, models.EventAuditAppend)
	require.NoError(t, repo.InsertMany(context.Background(), events))

	require.NoError(t, w.handleSweep(context.Background(), tasks.NewSweepTask()))
	assert.Len(t, enq.tasks, 2)

	// A second sweep before dispatch hits the task id guard and adds nothing.
	require.NoError(t, w.handleSweep(context.Background(), tasks.NewSweepTask()))
	assert.Len(t, enq.tasks, 2)
}

func TestSweepToleratesEnqueueFailures(t *testing.T) {
	w, dispatcher, repo, enq := setupWorker(t)
	enq.err = errors.New("redis down")
	require.NoError(t, repo.InsertMany(context.Background(), dispatcher.NewEvents(models.OutboxPayload{PaymentID: "pay-1"}, models.EventIncomeBook)))

	assert.NoError(t, w.handleSweep(context.Background(), tasks.NewSweepTask()))
	assert.Empty(t, enq.tasks)
}

func TestHandleDispatch(t *testing.T) {
	w, dispatcher, repo, _ := setupWorker(t)
	events := dispatcher.NewEvents(models.OutboxPayload{PaymentID: "pay-1"}, models.EventAuditAppend, models.EventGuardianNotify, models.EventIncomeBook)
	require.NoError(t, repo.InsertMany(context.Background(), events))

	calls := 0
	dispatcher.Register(models.EventAuditAppend, func(context.Context, *models.OutboxEvent) error {
		calls++
		return nil
	})
	dispatcher.Register(models.EventIncomeBook, func(context.Context, *models.OutboxEvent) error {
		return errors.New("still down")
	})

	task, _, err := tasks.NewDispatchTask(events[0].ID, 0)
	require.NoError(t, err)
	require.NoError(t, w.handleDispatch(context.Background(), task))
	assert.Equal(t, 1, calls)

	// Already published: not claimable, not an error.
	require.NoError(t, w.handleDispatch(context.Background(), task))
	assert.Equal(t, 1, calls)

	// Failures are retried by the sweep, not by asynq.
	task, _, err = tasks.NewDispatchTask(events[2].ID, 0)
	require.NoError(t, err)
	assert.NoError(t, w.handleDispatch(context.Background(), task))
	stored, err := repo.Get(context.Background(), events[2].ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutboxStatusFailed, stored.Status)

	task, _, err = tasks.NewDispatchTask(events[1].ID, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, w.handleDispatch(context.Background(), task), asynq.SkipRetry)

	assert.ErrorIs(t, w.handleDispatch(context.Background(), asynq.NewTask(tasks.TypeOutboxDispatch, []byte("{}"))), asynq.SkipRetry)
}
