package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeOutboxDispatch = "outbox:dispatch"
	TypeOutboxSweep    = "outbox:sweep"
)

// DispatchPayload names the outbox event a dispatch task runs.
type DispatchPayload struct {
	EventID string `json:"event_id"`
}

// NewDispatchTask builds the task for one attempt of an event. The task id includes the
// attempt count so a sweep cannot enqueue the same attempt twice.
func NewDispatchTask(eventID string, attempts int) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(DispatchPayload{EventID: eventID})
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeOutboxDispatch, b)
	opts := []asynq.Option{
		asynq.TaskID(fmt.Sprintf("%s:%d", eventID, attempts)),
		asynq.MaxRetry(0),
		asynq.Timeout(time.Minute),
		asynq.Retention(time.Hour),
	}
	return task, opts, nil
}

// NewSweepTask builds the periodic task that enqueues due outbox events.
func NewSweepTask() *asynq.Task {
	return asynq.NewTask(TypeOutboxSweep, nil, asynq.MaxRetry(0))
}

func ParseDispatchPayload(task *asynq.Task) (DispatchPayload, error) {
	var p DispatchPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return p, fmt.Errorf("invalid dispatch payload: %w", err)
	}
	if p.EventID == "" {
		return p, fmt.Errorf("invalid dispatch payload: missing event_id")
	}
	return p, nil
}
