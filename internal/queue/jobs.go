// Package queue carries recorded ledger events to the archive worker over
// asynq.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/HerbTrace/internal/model"
)

const (
	// EventRecordedTask is scheduled each time the ledger appends an event.
	EventRecordedTask = "ledger:event-recorded"
)

// NewEventRecordedTask serialises ev into a task.
func NewEventRecordedTask(ev model.Event) (*asynq.Task, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return asynq.NewTask(EventRecordedTask, data, asynq.MaxRetry(5)), nil
}

// DecodeEvent reads the event back out of a task payload.
func DecodeEvent(task *asynq.Task) (model.Event, error) {
	var ev model.Event
	if err := json.Unmarshal(task.Payload(), &ev); err != nil {
		return model.Event{}, fmt.Errorf("decode payload: %w", err)
	}
	return ev, nil
}

// Enqueuer is the subset of *asynq.Client used by Publisher.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Publisher enqueues recorded events for the worker.
type Publisher struct {
	client Enqueuer
}

// NewPublisher wraps an asynq client.
func NewPublisher(client Enqueuer) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues ev. The task id is random so retried submissions of the
// same transaction id are still accepted.
func (p *Publisher) Publish(ctx context.Context, ev model.Event) error {
	task, err := NewEventRecordedTask(ev)
	if err != nil {
		return err
	}
	if _, err := p.client.EnqueueContext(ctx, task, asynq.TaskID(uuid.NewString())); err != nil {
		return fmt.Errorf("enqueue event task: %w", err)
	}
	return nil
}
