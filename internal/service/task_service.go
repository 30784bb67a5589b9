// Package service implements the task business rules on top of the store.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"task-tracker-api/internal/cache"
	"task-tracker-api/internal/events"
	"task-tracker-api/internal/models"
	"task-tracker-api/internal/store"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrTaskNotFound is matched by every not-found error the service returns.
var ErrTaskNotFound = store.ErrNotFound

// NotFoundError reports a missing task id.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task with id %d not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return store.ErrNotFound }

func notFound(id int64, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return &NotFoundError{ID: id}
	}
	return err
}

// TaskRepository is the persistence the service depends on.
type TaskRepository interface {
	Insert(ctx context.Context, in models.NewTask) (*models.Task, error)
	Find(ctx context.Context, id int64) (*models.Task, error)
	List(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
	ReplaceFields(ctx context.Context, id int64, patch models.TaskPatch) (*models.Task, error)
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context) (models.TaskStats, error)
	Ping(ctx context.Context) error
}

var _ TaskRepository = (*store.TaskStore)(nil)

// CreateInput carries the fields accepted by Create.
type CreateInput struct {
	Title       string
	Description *string
	Priority    models.TaskPriority
	DueDate     *time.Time
}

// UpdateInput is a partial update of the task with ID.
type UpdateInput struct {
	ID    int64
	Patch models.TaskPatch
}

// Option configures a TaskService.
type Option func(*TaskService)

// WithCache enables the read-through cache for single task lookups.
func WithCache(c cache.Cache[int64, models.Task], ttl time.Duration) Option {
	return func(s *TaskService) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithPublisher sets where task events are sent.
func WithPublisher(p events.Publisher) Option {
	return func(s *TaskService) { s.publisher = p }
}

// WithLogger sets the logger used for cache and event warnings.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *TaskService) { s.log = log }
}

// TaskService is safe for concurrent use; it holds no per-request state.
type TaskService struct {
	repo      TaskRepository
	cache     cache.Cache[int64, models.Task]
	cacheTTL  time.Duration
	publisher events.Publisher
	log       *zap.SugaredLogger
	group     singleflight.Group

	// fillMu orders cache fills against invalidations. generation counts
	// invalidations; a fill that saw it change while reading the store is
	// dropped.
	fillMu     sync.Mutex
	generation uint64
}

// lookupTimeout bounds a shared store read, which outlives any single caller.
const lookupTimeout = 5 * time.Second

// NewTaskService creates a service without caching or event publication
// unless options enable them.
func NewTaskService(repo TaskRepository, opts ...Option) *TaskService {
	s := &TaskService{
		repo:      repo,
		cache:     cache.Nop[int64, models.Task]{},
		publisher: events.Nop{},
		log:       zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create inserts a pending task. Priority defaults to medium.
func (s *TaskService) Create(ctx context.Context, in CreateInput) (*models.Task, error) {
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	task, err := s.repo.Insert(ctx, models.NewTask{
		Title:       in.Title,
		Description: in.Description,
		Status:      models.StatusPending,
		Priority:    priority,
		DueDate:     in.DueDate,
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.New(events.TaskCreated, task.ID, task))
	return task, nil
}

// List returns tasks matching filter, newest first.
func (s *TaskService) List(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	return s.repo.List(ctx, filter)
}

// GetByID returns the task or nil when it does not exist.
func (s *TaskService) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	if task, ok, err := s.cache.Get(ctx, id); err != nil {
		s.log.Warnw("cache read failed", "task_id", id, "error", err)
	} else if ok {
		return &task, nil
	}

	v, err, _ := s.group.Do(flightKey(id), func() (any, error) {
		// callers share this read, so one caller going away must not fail it
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()

		gen := s.currentGeneration()
		task, err := s.repo.Find(lookupCtx, id)
		if err != nil {
			return nil, err
		}
		s.fill(lookupCtx, gen, *task)
		return task, nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	task := *v.(*models.Task)
	return &task, nil
}

// Update applies a partial update to an existing task.
func (s *TaskService) Update(ctx context.Context, in UpdateInput) (*models.Task, error) {
	task, err := s.repo.ReplaceFields(ctx, in.ID, in.Patch)
	if err != nil {
		return nil, notFound(in.ID, err)
	}
	s.invalidate(ctx, in.ID)
	s.publish(ctx, events.New(events.TaskUpdated, task.ID, task))
	return task, nil
}

// ToggleStatus flips a task between pending and completed.
func (s *TaskService) ToggleStatus(ctx context.Context, id int64) (*models.Task, error) {
	current, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, notFound(id, err)
	}

	patch := models.TaskPatch{Status: models.Some(current.Status.Toggled())}
	task, err := s.repo.ReplaceFields(ctx, id, patch)
	if err != nil {
		return nil, notFound(id, err)
	}
	s.invalidate(ctx, id)
	s.publish(ctx, events.New(events.TaskStatusToggled, task.ID, task))
	return task, nil
}

// Delete permanently removes a task.
func (s *TaskService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFound(id, err)
	}
	s.invalidate(ctx, id)
	s.publish(ctx, events.New(events.TaskDeleted, id, nil))
	return nil
}

// Stats returns task counts per status and priority.
func (s *TaskService) Stats(ctx context.Context) (models.TaskStats, error) {
	return s.repo.Stats(ctx)
}

// Ping reports whether the store is reachable.
func (s *TaskService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func flightKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (s *TaskService) currentGeneration() uint64 {
	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	return s.generation
}

// fill caches task unless an invalidation happened since gen was read.
func (s *TaskService) fill(ctx context.Context, gen uint64, task models.Task) {
	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	if s.generation != gen {
		return
	}
	if err := s.cache.Set(ctx, task.ID, task, s.cacheTTL); err != nil {
		s.log.Warnw("cache write failed", "task_id", task.ID, "error", err)
	}
}

// invalidate drops the cached copy of id and any lookup of it still in flight.
func (s *TaskService) invalidate(ctx context.Context, id int64) {
	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	s.generation++
	s.group.Forget(flightKey(id))
	if err := s.cache.Delete(context.WithoutCancel(ctx), id); err != nil {
		s.log.Warnw("cache invalidation failed", "task_id", id, "error", err)
	}
}

func (s *TaskService) publish(ctx context.Context, evt events.Event) {
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Warnw("failed to publish task event", "type", evt.Type, "task_id", evt.TaskID, "error", err)
	}
}
