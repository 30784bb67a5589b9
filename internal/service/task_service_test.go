package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"task-tracker-api/internal/cache"
	"task-tracker-api/internal/events"
	"task-tracker-api/internal/models"
	"task-tracker-api/internal/store"
	"task-tracker-api/internal/testutil"

	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// countingRepo counts Find calls on top of a real store.
type countingRepo struct {
	TaskRepository
	finds atomic.Int64
}

func (r *countingRepo) Find(ctx context.Context, id int64) (*models.Task, error) {
	r.finds.Add(1)
	return r.TaskRepository.Find(ctx, id)
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, int64) (models.Task, bool, error) {
	return models.Task{}, false, errors.New("cache down")
}
func (brokenCache) Set(context.Context, int64, models.Task, time.Duration) error {
	return errors.New("cache down")
}
func (brokenCache) Delete(context.Context, int64) error { return errors.New("cache down") }

func setupService(t *testing.T, opts ...Option) (*TaskService, *countingRepo, *recordingPublisher) {
	t.Helper()
	repo := &countingRepo{TaskRepository: store.NewTaskStore(testutil.MustInMemoryDB(t))}
	pub := &recordingPublisher{}
	opts = append([]Option{
		WithCache(cache.NewSimpleCache[int64, models.Task](), time.Minute),
		WithPublisher(pub),
	}, opts...)
	return NewTaskService(repo, opts...), repo, pub
}

func ptr[T any](v T) *T { return &v }

func TestTaskService_CreateDefaults(t *testing.T) {
	svc, _, pub := setupService(t)

	task, err := svc.Create(context.Background(), CreateInput{Title: "Buy milk"})
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, task.Status)
	require.Equal(t, models.PriorityMedium, task.Priority)
	require.Nil(t, task.Description)
	require.Nil(t, task.DueDate)
	require.Equal(t, []events.Type{events.TaskCreated}, pub.types())
}

func TestTaskService_GetByIDAbsentIsNil(t *testing.T) {
	svc, _, _ := setupService(t)

	task, err := svc.GetByID(context.Background(), 42)
	require.NoError(t, err)
	require.Nil(t, task)
}

func TestTaskService_GetByIDUsesCache(t *testing.T) {
	svc, repo, _ := setupService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{Title: "Buy milk", Priority: models.PriorityLow})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		got, err := svc.GetByID(ctx, created.ID)
		require.NoError(t, err)
		require.Equal(t, created.ID, got.ID)
		require.Equal(t, "Buy milk", got.Title)
	}
	require.Equal(t, int64(1), repo.finds.Load())

	// mutations invalidate the cached copy
	_, err = svc.Update(ctx, UpdateInput{ID: created.ID, Patch: models.TaskPatch{Title: models.Some("Buy oat milk")}})
	require.NoError(t, err)
	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Buy oat milk", got.Title)
	require.Equal(t, int64(2), repo.finds.Load())
}

func TestTaskService_UpdateNotFound(t *testing.T) {
	svc, _, pub := setupService(t)

	_, err := svc.Update(context.Background(), UpdateInput{ID: 9, Patch: models.TaskPatch{Title: models.Some("x")}})
	require.ErrorIs(t, err, ErrTaskNotFound)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, int64(9), nf.ID)
	require.Equal(t, "task with id 9 not found", err.Error())
	require.Empty(t, pub.types())
}

func TestTaskService_UpdateKeepsAbsentFields(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	due := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	created, err := svc.Create(ctx, CreateInput{
		Title:       "Write report",
		Description: ptr("quarterly"),
		Priority:    models.PriorityHigh,
		DueDate:     &due,
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, UpdateInput{ID: created.ID, Patch: models.TaskPatch{
		Status:      models.Some(models.StatusCompleted),
		Description: models.Null[string](),
	}})
	require.NoError(t, err)
	require.Equal(t, "Write report", updated.Title)
	require.Equal(t, models.PriorityHigh, updated.Priority)
	require.Equal(t, models.StatusCompleted, updated.Status)
	require.Nil(t, updated.Description)
	require.NotNil(t, updated.DueDate)
	require.True(t, updated.DueDate.Equal(due))
	require.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	require.True(t, updated.CreatedAt.Equal(created.CreatedAt))
}

func TestTaskService_ToggleTwiceRestoresStatus(t *testing.T) {
	svc, _, pub := setupService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{Title: "Buy milk", Priority: models.PriorityLow})
	require.NoError(t, err)

	// warm the cache; toggle must not read from it
	_, err = svc.GetByID(ctx, created.ID)
	require.NoError(t, err)

	first, err := svc.ToggleStatus(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, first.Status)
	require.True(t, first.UpdatedAt.After(created.UpdatedAt))

	second, err := svc.ToggleStatus(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, second.Status)
	require.True(t, second.UpdatedAt.After(first.UpdatedAt))

	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, got.Status)

	require.Equal(t, []events.Type{
		events.TaskCreated, events.TaskStatusToggled, events.TaskStatusToggled,
	}, pub.types())
}

func TestTaskService_ToggleNotFound(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.ToggleStatus(context.Background(), 5)
	require.ErrorIs(t, err, ErrTaskNotFound)
	require.EqualError(t, err, "task with id 5 not found")
}

func TestTaskService_Delete(t *testing.T) {
	svc, _, pub := setupService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{Title: "Buy milk"})
	require.NoError(t, err)
	_, err = svc.GetByID(ctx, created.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))
	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Nil(t, got)

	err = svc.Delete(ctx, created.ID)
	require.ErrorIs(t, err, ErrTaskNotFound)

	require.Equal(t, []events.Type{events.TaskCreated, events.TaskDeleted}, pub.types())
	require.Nil(t, pub.events[1].Task)
	require.Equal(t, created.ID, pub.events[1].TaskID)
}

func TestTaskService_ListAndStats(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	for _, p := range []models.TaskPriority{models.PriorityLow, models.PriorityHigh, models.PriorityHigh} {
		_, err := svc.Create(ctx, CreateInput{Title: "t", Priority: p})
		require.NoError(t, err)
	}
	_, err := svc.ToggleStatus(ctx, 2)
	require.NoError(t, err)

	high := models.PriorityHigh
	tasks, err := svc.List(ctx, models.TaskFilter{Priority: &high})
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, models.TaskStats{Total: 3, Pending: 2, Completed: 1, Low: 1, High: 2}, stats)

	require.NoError(t, svc.Ping(ctx))
}

func TestTaskService_SideEffectFailuresAreNotFatal(t *testing.T) {
	svc, _, pub := setupService(t,
		WithCache(brokenCache{}, time.Minute),
	)
	pub.err = errors.New("broker down")
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{Title: "Buy milk"})
	require.NoError(t, err)

	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)

	_, err = svc.ToggleStatus(ctx, created.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, created.ID))
}

func TestTaskService_ConcurrentGetByID(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{Title: "Buy milk"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := svc.GetByID(ctx, created.ID)
			if err != nil || got == nil || got.ID != created.ID {
				t.Errorf("unexpected result: %v %v", got, err)
			}
		}()
	}
	wg.Wait()
}

// pausingRepo holds Find after it has read the row until release is closed.
type pausingRepo struct {
	TaskRepository
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (r *pausingRepo) Find(ctx context.Context, id int64) (*models.Task, error) {
	task, err := r.TaskRepository.Find(ctx, id)
	r.once.Do(func() {
		close(r.read)
		<-r.release
	})
	return task, err
}

func TestTaskService_UpdateDuringLookupIsNotOverwritten(t *testing.T) {
	repo := &pausingRepo{
		TaskRepository: store.NewTaskStore(testutil.MustInMemoryDB(t)),
		read:           make(chan struct{}),
		release:        make(chan struct{}),
	}
	svc := NewTaskService(repo, WithCache(cache.NewSimpleCache[int64, models.Task](), time.Minute))
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{Title: "old"})
	require.NoError(t, err)

	done := make(chan *models.Task, 1)
	go func() {
		task, _ := svc.GetByID(ctx, created.ID)
		done <- task
	}()

	<-repo.read
	_, err = svc.Update(ctx, UpdateInput{ID: created.ID, Patch: models.TaskPatch{Title: models.Some("new")}})
	require.NoError(t, err)
	close(repo.release)
	require.Equal(t, "old", (<-done).Title)

	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "new", got.Title)
}

func TestTaskService_DeleteDuringLookupIsNotResurrected(t *testing.T) {
	repo := &pausingRepo{
		TaskRepository: store.NewTaskStore(testutil.MustInMemoryDB(t)),
		read:           make(chan struct{}),
		release:        make(chan struct{}),
	}
	svc := NewTaskService(repo, WithCache(cache.NewSimpleCache[int64, models.Task](), time.Minute))
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{Title: "short lived"})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.GetByID(ctx, created.ID)
	}()

	<-repo.read
	require.NoError(t, svc.Delete(ctx, created.ID))
	close(repo.release)
	<-done

	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestTaskService_GetByIDIgnoresCallerCancellation(t *testing.T) {
	svc, _, _ := setupService(t)

	created, err := svc.Create(context.Background(), CreateInput{Title: "Buy milk"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
}
