// Package store persists tasks in a single SQL table through gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"task-tracker-api/internal/database"
	"task-tracker-api/internal/models"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no task has the requested id.
	ErrNotFound = errors.New("task not found")
	// ErrInvalidPatch is returned when a patch clears a non-nullable field.
	ErrInvalidPatch = errors.New("invalid task patch")
)

// Option configures a TaskStore.
type Option func(*TaskStore)

// WithClock replaces time.Now as the source of created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *TaskStore) { s.now = now }
}

// TaskStore provides access to task storage.
type TaskStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewTaskStore creates a store on an opened and migrated database.
func NewTaskStore(db *gorm.DB, opts ...Option) *TaskStore {
	s := &TaskStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// timestamp returns the current time at the precision every backend keeps.
func (s *TaskStore) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func normalizeTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC().Truncate(time.Microsecond)
	return &v
}

// normalize converts timestamps read back from the driver to UTC.
func normalize(t *models.Task) {
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	t.DueDate = normalizeTime(t.DueDate)
}

// Insert persists a new task, applying status and priority defaults.
func (s *TaskStore) Insert(ctx context.Context, in models.NewTask) (*models.Task, error) {
	status := in.Status
	if status == "" {
		status = models.StatusPending
	}
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	ts := s.timestamp()
	task := models.Task{
		Title:       in.Title,
		Description: in.Description,
		Status:      status,
		Priority:    priority,
		DueDate:     normalizeTime(in.DueDate),
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return &task, nil
}

// Find retrieves a task by id.
func (s *TaskStore) Find(ctx context.Context, id int64) (*models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	normalize(&task)
	return &task, nil
}

// List returns the tasks matching filter, most recently created first.
func (s *TaskStore) List(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	query := s.db.WithContext(ctx).Model(&models.Task{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Priority != nil {
		query = query.Where("priority = ?", *filter.Priority)
	}

	tasks := make([]models.Task, 0)
	if err := query.Order("created_at desc").Order("id desc").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	for i := range tasks {
		normalize(&tasks[i])
	}
	return tasks, nil
}

// applyPatch overlays the present fields of patch onto task and returns the
// column updates to persist.
func applyPatch(task *models.Task, patch models.TaskPatch) (map[string]any, error) {
	updates := make(map[string]any)

	if patch.Title.IsNull() || patch.Status.IsNull() || patch.Priority.IsNull() {
		return nil, fmt.Errorf("%w: title, status and priority cannot be null", ErrInvalidPatch)
	}
	if v, ok := patch.Title.Get(); ok {
		task.Title = v
		updates["title"] = v
	}
	if v, ok := patch.Status.Get(); ok {
		task.Status = v
		updates["status"] = v
	}
	if v, ok := patch.Priority.Get(); ok {
		task.Priority = v
		updates["priority"] = v
	}
	if patch.Description.IsSet() {
		task.Description = patch.Description.Ptr()
		if task.Description == nil {
			updates["description"] = nil
		} else {
			updates["description"] = *task.Description
		}
	}
	if patch.DueDate.IsSet() {
		task.DueDate = normalizeTime(patch.DueDate.Ptr())
		if task.DueDate == nil {
			updates["due_date"] = nil
		} else {
			updates["due_date"] = *task.DueDate
		}
	}
	return updates, nil
}

// ReplaceFields overlays the present fields of patch onto the stored task and
// refreshes updated_at. Absent fields keep their value; null clears them.
func (s *TaskStore) ReplaceFields(ctx context.Context, id int64, patch models.TaskPatch) (*models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&task, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to find task: %w", err)
		}
		normalize(&task)

		updates, err := applyPatch(&task, patch)
		if err != nil {
			return err
		}

		// updated_at must move forward even when the clock did not
		ts := s.timestamp()
		if !ts.After(task.UpdatedAt) {
			ts = task.UpdatedAt.Add(time.Microsecond)
		}
		task.UpdatedAt = ts
		updates["updated_at"] = ts

		if err := tx.Model(&models.Task{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// Delete permanently removes a task.
func (s *TaskStore) Delete(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Delete(&models.Task{}, "id = ?", id)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats counts tasks per status and per priority.
func (s *TaskStore) Stats(ctx context.Context) (models.TaskStats, error) {
	db := s.db.WithContext(ctx)

	type statusRow struct {
		Status string
		Count  int64
	}
	var statusRows []statusRow
	if err := db.Model(&models.Task{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&statusRows).Error; err != nil {
		return models.TaskStats{}, fmt.Errorf("failed to compute status stats: %w", err)
	}

	type priorityRow struct {
		Priority string
		Count    int64
	}
	var priorityRows []priorityRow
	if err := db.Model(&models.Task{}).
		Select("priority, COUNT(*) as count").
		Group("priority").
		Scan(&priorityRows).Error; err != nil {
		return models.TaskStats{}, fmt.Errorf("failed to compute priority stats: %w", err)
	}

	var stats models.TaskStats
	for _, r := range statusRows {
		stats.Total += r.Count
		switch models.TaskStatus(r.Status) {
		case models.StatusPending:
			stats.Pending = r.Count
		case models.StatusCompleted:
			stats.Completed = r.Count
		}
	}
	for _, r := range priorityRows {
		switch models.TaskPriority(r.Priority) {
		case models.PriorityLow:
			stats.Low = r.Count
		case models.PriorityMedium:
			stats.Medium = r.Count
		case models.PriorityHigh:
			stats.High = r.Count
		}
	}
	return stats, nil
}

// Ping checks that the underlying database is reachable.
func (s *TaskStore) Ping(ctx context.Context) error {
	return database.Ping(ctx, s.db)
}
