package models

import (
	"time"
)

// TaskStatus represents the status of a task
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusCompleted TaskStatus = "completed"
)

// statusTransitions maps each status to the status a toggle moves it to.
var statusTransitions = map[TaskStatus]TaskStatus{
	StatusPending:   StatusCompleted,
	StatusCompleted: StatusPending,
}

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// Toggled returns the status a toggle moves s to. Unknown statuses are
// returned unchanged.
func (s TaskStatus) Toggled() TaskStatus {
	if next, ok := statusTransitions[s]; ok {
		return next
	}
	return s
}

// TaskPriority represents the priority of a task
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task represents a task in the system
type Task struct {
	ID          int64        `json:"id" gorm:"primaryKey;autoIncrement"`
	Title       string       `json:"title" gorm:"size:200;not null"`
	Description *string      `json:"description" gorm:"size:1000"`
	Status      TaskStatus   `json:"status" gorm:"size:16;not null;default:'pending';index"`
	Priority    TaskPriority `json:"priority" gorm:"size:16;not null;default:'medium';index"`
	DueDate     *time.Time   `json:"due_date" gorm:"column:due_date"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null;index;autoCreateTime:false"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null;autoUpdateTime:false"`
}

// TableName specifies the table name for Task Model
func (Task) TableName() string {
	return "tasks"
}

// NewTask carries the fields accepted when inserting a task. Empty Status and
// Priority are replaced by their defaults.
type NewTask struct {
	Title       string
	Description *string
	Status      TaskStatus
	Priority    TaskPriority
	DueDate     *time.Time
}

// TaskFilter narrows a list query. Nil fields do not filter.
type TaskFilter struct {
	Status   *TaskStatus   `json:"status,omitempty"`
	Priority *TaskPriority `json:"priority,omitempty"`
}

// TaskPatch is a partial update. Absent fields keep their stored value.
type TaskPatch struct {
	Title       Optional[string]
	Description Optional[string]
	Status      Optional[TaskStatus]
	Priority    Optional[TaskPriority]
	DueDate     Optional[time.Time]
}

// IsEmpty reports whether the patch carries no fields at all.
func (p TaskPatch) IsEmpty() bool {
	return !p.Title.IsSet() && !p.Description.IsSet() && !p.Status.IsSet() &&
		!p.Priority.IsSet() && !p.DueDate.IsSet()
}

// TaskStats holds task counts per status and priority.
type TaskStats struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Completed int64 `json:"completed"`
	Low       int64 `json:"low"`
	Medium    int64 `json:"medium"`
	High      int64 `json:"high"`
}
