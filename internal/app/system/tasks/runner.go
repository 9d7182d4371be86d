// internal/app/system/tasks/runner.go
package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrUnknownTask is returned by RunOnce for a name that was never registered.
var ErrUnknownTask = errors.New("unknown task")

// Task is a periodic housekeeping function.
type Task struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single run. Zero means the run is only bounded by
	// the runner's lifetime.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Runner executes registered tasks on their intervals.
type Runner struct {
	logger  *zap.Logger
	tasks   []Task
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	running atomic.Int32
	active  sync.Map
}

// New creates a task runner.
func New(logger *zap.Logger) *Runner {
	return &Runner{logger: logger}
}

// Register adds a task. Tasks registered after Start are not scheduled.
func (r *Runner) Register(task Task) {
	r.tasks = append(r.tasks, task)
}

// Start runs every task once and then on its interval until Stop.
func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	for _, task := range r.tasks {
		r.wg.Add(1)
		go r.loop(ctx, task)
	}

	r.logger.Info("housekeeping started", zap.Int("task_count", len(r.tasks)))
}

// Stop cancels all tasks and waits for in-flight runs, up to ctx's deadline.
func (r *Runner) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("housekeeping stopped")
		return nil
	case <-ctx.Done():
		var stillRunning []string
		r.active.Range(func(key, _ any) bool {
			stillRunning = append(stillRunning, key.(string))
			return true
		})
		r.logger.Warn("housekeeping shutdown timed out",
			zap.Strings("tasks_still_running", stillRunning),
			zap.Int32("running_count", r.running.Load()))
		return ctx.Err()
	}
}

func (r *Runner) loop(ctx context.Context, task Task) {
	defer r.wg.Done()

	r.execute(ctx, task)

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.execute(ctx, task)
		}
	}
}

func (r *Runner) execute(ctx context.Context, task Task) {
	r.running.Add(1)
	r.active.Store(task.Name, struct{}{})
	defer func() {
		r.running.Add(-1)
		r.active.Delete(task.Name)
	}()

	if task.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}

	start := time.Now()
	if err := task.Run(ctx); err != nil {
		if ctx.Err() == context.Canceled {
			return
		}
		r.logger.Error("task failed",
			zap.String("task", task.Name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return
	}

	r.logger.Debug("task completed",
		zap.String("task", task.Name),
		zap.Duration("duration", time.Since(start)))
}

// RunOnce executes the named task immediately.
func (r *Runner) RunOnce(ctx context.Context, name string) error {
	for _, task := range r.tasks {
		if task.Name == name {
			return task.Run(ctx)
		}
	}
	return ErrUnknownTask
}
