// Package jobrunner drains the job queue with a fixed pool of workers per
// queue and dispatches each claimed job to the handler for its type.
package jobrunner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	jobstore "github.com/dalemusser/filesmanager/internal/app/store/jobs"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler processes one job payload. The returned map is stored as the
// job result.
type Handler func(ctx context.Context, payload map[string]any) (map[string]any, error)

// Config tunes the runner. Zero fields take the DefaultConfig value.
type Config struct {
	Workers      int           // per queue
	PollInterval time.Duration // idle wait between claims
	RetryDelay   time.Duration // multiplied by the attempt number
	JobTimeout   time.Duration // bound on a single handler call
}

// DefaultConfig returns the runner defaults.
func DefaultConfig() Config {
	return Config{
		Workers:      3,
		PollInterval: time.Second,
		RetryDelay:   5 * time.Second,
		JobTimeout:   5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = d.RetryDelay
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = d.JobTimeout
	}
	return c
}

// Queue is the persistence the runner drives. *jobstore.Store implements it.
type Queue interface {
	ClaimNext(ctx context.Context, queue, worker string) (*jobstore.Job, error)
	Complete(ctx context.Context, id primitive.ObjectID, result map[string]any) error
	Fail(ctx context.Context, id primitive.ObjectID, errMsg string, retryDelay time.Duration) error
	FailPermanent(ctx context.Context, id primitive.ObjectID, errMsg string) error
}

// ErrStarted is returned by Start when the runner is already running.
var ErrStarted = errors.New("job runner already started")

// Runner owns the worker goroutines.
type Runner struct {
	q      Queue
	cfg    Config
	logger *zap.Logger
	id     string

	mu       sync.RWMutex
	handlers map[string]Handler
	queues   map[string]struct{}
	started  bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
	active atomic.Int32
}

// New returns a Runner over q.
func New(q Queue, logger *zap.Logger, cfg Config) *Runner {
	return &Runner{
		q:        q,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		id:       uuid.NewString()[:8],
		handlers: map[string]Handler{},
		queues:   map[string]struct{}{},
	}
}

// Handle routes jobType to h and makes sure queue has workers.
func (r *Runner) Handle(queue, jobType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobType] = h
	r.queues[queue] = struct{}{}
}

// Start launches the workers. It does not block.
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return ErrStarted
	}
	r.started = true

	queues := make([]string, 0, len(r.queues))
	for q := range r.queues {
		queues = append(queues, q)
	}
	sort.Strings(queues)

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	for _, q := range queues {
		for i := 0; i < r.cfg.Workers; i++ {
			r.wg.Add(1)
			go r.work(ctx, q, fmt.Sprintf("%s/%s/%d", r.id, q, i))
		}
	}

	r.logger.Info("job runner started",
		zap.Strings("queues", queues),
		zap.Int("workers_per_queue", r.cfg.Workers))
	return nil
}

// Stop cancels the workers and waits for in-flight jobs until ctx ends.
// Jobs cut off by the deadline stay running and are re-queued later by
// the stale-job sweep.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.RLock()
	started := r.started
	r.mu.RUnlock()
	if !started {
		return nil
	}
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("job runner stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn("job runner stop timed out", zap.Int32("active_jobs", r.active.Load()))
		return ctx.Err()
	}
}

// ActiveJobs reports how many handlers are running right now.
func (r *Runner) ActiveJobs() int32 {
	return r.active.Load()
}

// work claims jobs back to back while the queue has them and sleeps for
// PollInterval when it is empty or the claim failed.
func (r *Runner) work(ctx context.Context, queue, worker string) {
	defer r.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		if r.runOne(ctx, queue, worker) {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.cfg.PollInterval):
		}
	}
}

// runOne claims and processes a single job. It reports whether a job was
// claimed.
func (r *Runner) runOne(ctx context.Context, queue, worker string) bool {
	claimCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	job, err := r.q.ClaimNext(claimCtx, queue, worker)
	cancel()
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Error("claim failed", zap.String("queue", queue), zap.Error(err))
		}
		return false
	}
	if job == nil {
		return false
	}

	r.active.Add(1)
	defer r.active.Add(-1)

	log := r.logger.With(
		zap.String("job_id", job.ID.Hex()),
		zap.String("job_type", job.Type),
		zap.Int("attempt", job.Attempts))

	r.mu.RLock()
	h, ok := r.handlers[job.Type]
	r.mu.RUnlock()
	if !ok {
		log.Error("no handler for job type")
		r.settle(log, func(ctx context.Context) error {
			return r.q.FailPermanent(ctx, job.ID, "no handler for job type: "+job.Type)
		})
		return true
	}

	start := time.Now()
	result, err := r.call(ctx, h, job.Payload)
	took := time.Since(start)

	switch {
	case err == nil:
		log.Info("job completed", zap.Duration("duration", took))
		r.settle(log, func(ctx context.Context) error {
			return r.q.Complete(ctx, job.ID, result)
		})
	case IsPermanent(err):
		log.Warn("job failed", zap.Bool("permanent", true), zap.Duration("duration", took), zap.Error(err))
		r.settle(log, func(ctx context.Context) error {
			return r.q.FailPermanent(ctx, job.ID, err.Error())
		})
	default:
		log.Warn("job failed",
			zap.Int("max_attempts", job.MaxAttempts),
			zap.Duration("duration", took),
			zap.Error(err))
		delay := r.cfg.RetryDelay * time.Duration(max(job.Attempts, 1))
		r.settle(log, func(ctx context.Context) error {
			return r.q.Fail(ctx, job.ID, err.Error(), delay)
		})
	}
	return true
}

// call runs h under the job timeout. A panic becomes a permanent failure.
func (r *Runner) call(ctx context.Context, h Handler, payload map[string]any) (result map[string]any, err error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.JobTimeout)
	defer cancel()
	defer func() {
		if p := recover(); p != nil {
			result, err = nil, Permanent(fmt.Errorf("handler panic: %v", p))
		}
	}()
	return h(ctx, payload)
}

// settle records the outcome on a fresh context, so a stopping runner
// still writes results for jobs that finished.
func (r *Runner) settle(log *zap.Logger, record func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := record(ctx); err != nil {
		log.Error("recording job outcome failed", zap.Error(err))
	}
}
