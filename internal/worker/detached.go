package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"tgrelay/internal/metrics"
)

// Task describes a detached unit of work that has not finished yet.
type Task struct {
	ID        string
	Name      string
	StartedAt time.Time
}

// Config configures the Executor.
type Config struct {
	// MaxConcurrent bounds running tasks; 0 means unbounded. Tasks over the
	// bound wait for a slot, the caller of Go never does.
	MaxConcurrent int
	Metrics       *metrics.Collector
	Logger        *slog.Logger
}

// Executor runs work detached from its caller. Errors and panics are caught
// at the task boundary and logged; they never reach the code that called Go.
type Executor struct {
	mu      sync.Mutex
	tasks   map[string]*Task
	nextID  int
	wg      sync.WaitGroup
	sem     *semaphore.Weighted
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewExecutor creates a detached task executor.
func NewExecutor(cfg Config) *Executor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	var sem *semaphore.Weighted
	if cfg.MaxConcurrent > 0 {
		sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	return &Executor{
		tasks:   make(map[string]*Task),
		sem:     sem,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
}

// Go schedules fn and returns its task id immediately. ctx is detached from
// cancellation so the task outlives the request that spawned it.
func (e *Executor) Go(ctx context.Context, name string, fn func(ctx context.Context) error) string {
	ctx = context.WithoutCancel(ctx)

	e.mu.Lock()
	e.nextID++
	id := fmt.Sprintf("task-%d", e.nextID)
	task := &Task{ID: id, Name: name, StartedAt: time.Now()}
	e.tasks[id] = task
	e.mu.Unlock()

	e.wg.Add(1)
	go e.run(ctx, task, fn)
	return id
}

func (e *Executor) run(ctx context.Context, task *Task, fn func(ctx context.Context) error) {
	defer e.wg.Done()
	defer e.forget(task.ID)

	if e.sem != nil {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			e.logger.Error("detached task not started", "id", task.ID, "name", task.Name, "err", err)
			return
		}
		defer e.sem.Release(1)
	}

	e.metrics.TaskStarted()
	defer e.metrics.TaskDone()

	defer func() {
		if r := recover(); r != nil {
			e.metrics.TaskPanicked()
			e.logger.Error("detached task panicked",
				"id", task.ID,
				"name", task.Name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	if err := fn(ctx); err != nil {
		e.logger.Error("detached task failed", "id", task.ID, "name", task.Name, "err", err)
		return
	}
	e.logger.Debug("detached task completed", "id", task.ID, "name", task.Name, "elapsed", time.Since(task.StartedAt))
}

func (e *Executor) forget(id string) {
	e.mu.Lock()
	delete(e.tasks, id)
	e.mu.Unlock()
}

// ListActive returns copies of tasks that have not finished.
func (e *Executor) ListActive() []Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Task, 0, len(e.tasks))
	for _, t := range e.tasks {
		out = append(out, *t)
	}
	return out
}

// Wait blocks until every scheduled task has finished or ctx is done.
func (e *Executor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%d detached tasks still running: %w", len(e.ListActive()), ctx.Err())
	}
}
