// Package events describes task change notifications and their publishers.
package events

import (
	"context"
	"errors"
	"time"

	"task-tracker-api/internal/models"
)

// Type names a task change.
type Type string

const (
	TaskCreated       Type = "task_created"
	TaskUpdated       Type = "task_updated"
	TaskStatusToggled Type = "task_status_toggled"
	TaskDeleted       Type = "task_deleted"
)

// Version of the event payload layout.
const Version = 1

// Event is emitted after a task mutation has been persisted.
type Event struct {
	Type       Type         `json:"type"`
	TaskID     int64        `json:"taskId"`
	Task       *models.Task `json:"task,omitempty"`
	Version    int          `json:"version"`
	OccurredAt time.Time    `json:"occurredAt"`
}

// New builds an event for task. Deleted tasks carry only their id.
func New(t Type, taskID int64, task *models.Task) Event {
	return Event{
		Type:       t,
		TaskID:     taskID,
		Task:       task,
		Version:    Version,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events to interested parties.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
