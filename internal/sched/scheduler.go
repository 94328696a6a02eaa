// Package sched reconciles the persisted task definitions with the set
// of running executors. The store holds the desired state; the
// scheduler converges reality toward it on every tick.
package sched

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/argus-video/argus/internal/engine"
	"github.com/argus-video/argus/internal/executor"
	"github.com/argus-video/argus/internal/logger"
	"github.com/argus-video/argus/internal/store"
)

// TaskStore is the persistence surface the scheduler needs.
type TaskStore interface {
	ListTasksForScheduling(ctx context.Context) ([]*store.TaskDefinition, error)
	GetTask(ctx context.Context, id int64) (*store.TaskDefinition, error)
	GetModel(ctx context.Context, id int64) (*store.Model, error)
	UpdateTaskStatus(ctx context.Context, id int64, status string) error
	UpdateTaskEnabled(ctx context.Context, id int64, status string, enabled bool) error
}

// TaskExecutor is one running task, as the scheduler sees it.
type TaskExecutor interface {
	TaskID() int64
	Start() error
	Stop()
	Status() []executor.SourceStatus
	EngineStats() engine.Stats
}

// ExecutorFactory constructs an executor for a task and its model. The
// returned executor is not yet started.
type ExecutorFactory func(task store.TaskDefinition, model store.Model) (TaskExecutor, error)

// Scheduler owns the reconcile loop and the executor set. At most one
// executor exists per task id at any time.
type Scheduler struct {
	store   TaskStore
	factory ExecutorFactory
	log     *logger.Logger
	tick    time.Duration
	now     func() time.Time

	mu        sync.Mutex
	executors map[int64]TaskExecutor
	// failed maps a task id to the UpdatedAt of the definition that
	// failed to start. The task is not retried until its definition
	// changes or it is started manually.
	failed  map[int64]time.Time
	started bool

	poke   chan struct{}
	stopCh chan struct{}
	done   chan struct{}
}

// New builds a stopped scheduler.
func New(st TaskStore, factory ExecutorFactory, tick time.Duration, log *logger.Logger) *Scheduler {
	if tick <= 0 {
		tick = 30 * time.Second
	}
	return &Scheduler{
		store:     st,
		factory:   factory,
		log:       log.Named("scheduler"),
		tick:      tick,
		now:       time.Now,
		executors: make(map[int64]TaskExecutor),
		failed:    make(map[int64]time.Time),
		poke:      make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the reconcile loop. The first pass runs immediately.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	s.started = true
	go s.run()
	return nil
}

// Stop halts the loop and stops every executor, blocking until all of
// them have exited.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	s.mu.Unlock()

	<-s.done

	s.mu.Lock()
	running := lo.Values(s.executors)
	s.executors = make(map[int64]TaskExecutor)
	s.mu.Unlock()

	ctx := context.Background()
	var wg sync.WaitGroup
	for _, ex := range running {
		wg.Add(1)
		go func(ex TaskExecutor) {
			defer wg.Done()
			ex.Stop()
			if err := s.store.UpdateTaskStatus(ctx, ex.TaskID(), store.TaskStatusStopped); err != nil {
				s.log.Warn("status write failed", "task_id", ex.TaskID(), "error", err)
			}
		}(ex)
	}
	wg.Wait()
	s.log.Info("scheduler stopped")
}

// StartTask enables a task and wakes the reconcile loop. Starting a
// task that is already running is a no-op.
func (s *Scheduler) StartTask(ctx context.Context, id int64) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if err := task.Runnable(); err != nil {
		return err
	}

	s.mu.Lock()
	_, running := s.executors[id]
	delete(s.failed, id)
	s.mu.Unlock()
	if running {
		return nil
	}

	if err := s.store.UpdateTaskEnabled(ctx, id, store.TaskStatusStopped, true); err != nil {
		return err
	}
	s.wake()
	return nil
}

// StopTask disables a task and wakes the reconcile loop. Stopping a
// task that is already stopped is a no-op.
func (s *Scheduler) StopTask(ctx context.Context, id int64) error {
	if _, err := s.store.GetTask(ctx, id); err != nil {
		return err
	}
	if err := s.store.UpdateTaskEnabled(ctx, id, store.TaskStatusStopped, false); err != nil {
		return err
	}
	s.wake()
	return nil
}

// Executor returns the running executor for a task, if any.
func (s *Scheduler) Executor(id int64) (TaskExecutor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ex, ok := s.executors[id]
	return ex, ok
}

// Running reports the ids of currently executing tasks.
func (s *Scheduler) Running() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Keys(s.executors)
}

func (s *Scheduler) wake() {
	select {
	case s.poke <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run() {
	defer close(s.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.stopCh
		cancel()
	}()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.reconcile(ctx)
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
		case <-s.poke:
		}
		s.reconcile(ctx)
	}
}

// reconcile performs one convergence pass: start what should run, stop
// what should not, and repair stale status rows.
func (s *Scheduler) reconcile(ctx context.Context) {
	tasks, err := s.store.ListTasksForScheduling(ctx)
	if err != nil {
		s.log.Error("task listing failed", "error", err)
		return
	}
	now := s.now()

	desired := lo.Filter(tasks, func(t *store.TaskDefinition, _ int) bool {
		return s.shouldRun(t, now)
	})
	desiredIDs := lo.SliceToMap(desired, func(t *store.TaskDefinition) (int64, struct{}) {
		return t.ID, struct{}{}
	})

	for _, task := range desired {
		s.mu.Lock()
		_, running := s.executors[task.ID]
		s.mu.Unlock()
		if !running {
			s.startTask(ctx, task)
		}
	}

	s.mu.Lock()
	var stale []TaskExecutor
	for id, ex := range s.executors {
		if _, ok := desiredIDs[id]; !ok {
			stale = append(stale, ex)
			delete(s.executors, id)
		}
	}
	s.mu.Unlock()

	for _, ex := range stale {
		ex.Stop()
		if err := s.store.UpdateTaskStatus(ctx, ex.TaskID(), store.TaskStatusStopped); err != nil {
			s.log.Warn("status write failed", "task_id", ex.TaskID(), "error", err)
		}
		s.log.Info("task left schedule", "task_id", ex.TaskID())
	}

	// Repair rows still marked running from a previous process.
	for _, task := range tasks {
		if task.Status != store.TaskStatusRunning {
			continue
		}
		if _, ok := desiredIDs[task.ID]; ok {
			continue
		}
		s.mu.Lock()
		_, running := s.executors[task.ID]
		s.mu.Unlock()
		if !running {
			if err := s.store.UpdateTaskStatus(ctx, task.ID, store.TaskStatusStopped); err != nil {
				s.log.Warn("status repair failed", "task_id", task.ID, "error", err)
			}
		}
	}
}

// shouldRun decides whether a task belongs in the running set right
// now.
func (s *Scheduler) shouldRun(task *store.TaskDefinition, now time.Time) bool {
	if !task.Enabled {
		return false
	}
	s.mu.Lock()
	failedAt, failed := s.failed[task.ID]
	if failed && !task.UpdatedAt.Equal(failedAt) {
		// Definition changed since the failure; eligible again.
		delete(s.failed, task.ID)
		failed = false
	}
	s.mu.Unlock()
	if failed {
		return false
	}

	in, err := WindowFor(task).Contains(now)
	if err != nil {
		s.log.Warn("invalid schedule window", "task_id", task.ID, "error", err)
		return false
	}
	return in
}

func (s *Scheduler) startTask(ctx context.Context, task *store.TaskDefinition) {
	if err := task.Runnable(); err != nil {
		s.markFailed(ctx, task, err)
		return
	}
	model, err := s.store.GetModel(ctx, task.ModelID)
	if err != nil {
		s.markFailed(ctx, task, fmt.Errorf("load model %d: %w", task.ModelID, err))
		return
	}
	ex, err := s.factory(*task, *model)
	if err != nil {
		s.markFailed(ctx, task, err)
		return
	}
	if err := ex.Start(); err != nil {
		ex.Stop()
		s.markFailed(ctx, task, err)
		return
	}

	s.mu.Lock()
	if _, exists := s.executors[task.ID]; exists {
		// Raced with a concurrent start; keep the existing one.
		s.mu.Unlock()
		ex.Stop()
		return
	}
	s.executors[task.ID] = ex
	s.mu.Unlock()

	if err := s.store.UpdateTaskStatus(ctx, task.ID, store.TaskStatusRunning); err != nil {
		s.log.Warn("status write failed", "task_id", task.ID, "error", err)
	}
	s.log.Info("task scheduled", "task_id", task.ID, "task", task.Name)
}

func (s *Scheduler) markFailed(ctx context.Context, task *store.TaskDefinition, err error) {
	s.log.Error("task start failed", "task_id", task.ID, "task", task.Name, "error", err)
	s.mu.Lock()
	s.failed[task.ID] = task.UpdatedAt
	s.mu.Unlock()
	if serr := s.store.UpdateTaskStatus(ctx, task.ID, store.TaskStatusError); serr != nil {
		s.log.Warn("status write failed", "task_id", task.ID, "error", serr)
	}
}
