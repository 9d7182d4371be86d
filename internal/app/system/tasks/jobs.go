// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AuditPruner deletes old audit events. *audit.Store implements it.
type AuditPruner interface {
	DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// QueueCounter reports job counts per status. *jobstore.Store implements it.
type QueueCounter interface {
	CountByStatus(ctx context.Context, queueName string) (map[string]int64, error)
}

// JobJanitor re-queues abandoned jobs and purges finished ones.
// *jobstore.Store implements it.
type JobJanitor interface {
	RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error)
	PurgeCompleted(ctx context.Context, cutoff time.Time) (int64, error)
}

// JobMaintenanceTask re-queues jobs running longer than staleAfter and,
// when retention is positive, deletes completed jobs older than it.
func JobMaintenanceTask(store JobJanitor, staleAfter, retention time.Duration, logger *zap.Logger) Task {
	return Task{
		Name:     "job-maintenance",
		Interval: 15 * time.Minute,
		Timeout:  time.Minute,
		Run: func(ctx context.Context) error {
			requeued, err := store.RequeueStale(ctx, staleAfter)
			if err != nil {
				return err
			}
			if requeued > 0 {
				logger.Warn("re-queued stale jobs", zap.Int64("count", requeued))
			}
			if retention <= 0 {
				return nil
			}
			purged, err := store.PurgeCompleted(ctx, time.Now().Add(-retention))
			if err != nil {
				return err
			}
			if purged > 0 {
				logger.Info("purged completed jobs", zap.Int64("count", purged))
			}
			return nil
		},
	}
}

// AuditRetentionTask removes audit events older than retention.
func AuditRetentionTask(store AuditPruner, retention time.Duration, logger *zap.Logger) Task {
	return Task{
		Name:     "audit-retention",
		Interval: 6 * time.Hour,
		Timeout:  time.Minute,
		Run: func(ctx context.Context) error {
			deleted, err := store.DeleteOlderThan(ctx, retention)
			if err != nil {
				return err
			}
			if deleted > 0 {
				logger.Info("pruned audit events",
					zap.Int64("deleted", deleted),
					zap.Duration("retention", retention))
			}
			return nil
		},
	}
}

// QueueDepthTask logs the number of pending, running and failed jobs on
// each queue, so a stuck pipeline shows up in the logs.
func QueueDepthTask(counter QueueCounter, queues []string, interval time.Duration, logger *zap.Logger) Task {
	return Task{
		Name:     "queue-depth",
		Interval: interval,
		Timeout:  30 * time.Second,
		Run: func(ctx context.Context) error {
			for _, q := range queues {
				counts, err := counter.CountByStatus(ctx, q)
				if err != nil {
					return err
				}
				logger.Info("job queue depth",
					zap.String("queue", q),
					zap.Int64("pending", counts["pending"]),
					zap.Int64("running", counts["running"]),
					zap.Int64("failed", counts["failed"]))
			}
			return nil
		},
	}
}
