// Package jobstore is the durable job queue. Jobs live in the MongoDB
// "jobs" collection; producers call Enqueue and workers drain a queue
// with ClaimNext followed by Complete, Fail or FailPermanent.
package jobstore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Job states. pending -> running -> completed|failed; a retryable failure
// with attempts left returns the job to pending.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// DefaultMaxAttempts applies when neither the store nor the job sets a limit.
const DefaultMaxAttempts = 3

// ErrNotFound is returned for an unknown job id.
var ErrNotFound = errors.New("job not found")

// Job is one unit of background work.
type Job struct {
	ID          primitive.ObjectID `bson:"_id"`
	Queue       string             `bson:"queue_name"`
	Type        string             `bson:"job_type"`
	Payload     map[string]any     `bson:"payload"`
	Status      string             `bson:"status"`
	Priority    int                `bson:"priority"`
	Attempts    int                `bson:"attempts"`
	MaxAttempts int                `bson:"max_attempts"`
	LastError   string             `bson:"error,omitempty"`
	Result      map[string]any     `bson:"result,omitempty"`
	RunAt       time.Time          `bson:"scheduled_at"`
	StartedAt   *time.Time         `bson:"started_at,omitempty"`
	FinishedAt  *time.Time         `bson:"completed_at,omitempty"`
	Worker      string             `bson:"worker_id,omitempty"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

// Store is the queue handle. One Store is built at startup and shared by
// the handlers that enqueue and the runner that claims.
type Store struct {
	c           *mongo.Collection
	maxAttempts int
	now         func() time.Time
}

// New returns a Store on db. maxAttempts is the default retry bound for
// new jobs; values below 1 select DefaultMaxAttempts.
func New(db *mongo.Database, maxAttempts int) *Store {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Store{c: db.Collection("jobs"), maxAttempts: maxAttempts, now: time.Now}
}

// Spec describes a job to create. Zero MaxAttempts uses the store
// default; a zero RunAt means now.
type Spec struct {
	Queue       string
	Type        string
	Payload     map[string]any
	Priority    int
	MaxAttempts int
	RunAt       time.Time
}

// Create inserts a pending job.
func (s *Store) Create(ctx context.Context, in Spec) (Job, error) {
	now := s.now()
	job := Job{
		ID:          primitive.NewObjectID(),
		Queue:       in.Queue,
		Type:        in.Type,
		Payload:     in.Payload,
		Status:      StatusPending,
		Priority:    in.Priority,
		MaxAttempts: in.MaxAttempts,
		RunAt:       in.RunAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if job.MaxAttempts < 1 {
		job.MaxAttempts = s.maxAttempts
	}
	if job.RunAt.IsZero() {
		job.RunAt = now
	}

	if _, err := s.c.InsertOne(ctx, job); err != nil {
		return Job{}, err
	}
	return job, nil
}

// Enqueue creates a job that is runnable immediately.
func (s *Store) Enqueue(ctx context.Context, queue, jobType string, payload map[string]any) (Job, error) {
	return s.Create(ctx, Spec{Queue: queue, Type: jobType, Payload: payload})
}

// ClaimNext moves the highest-priority runnable job on queue to running
// and returns it. It returns nil, nil when nothing is runnable.
func (s *Store) ClaimNext(ctx context.Context, queue, worker string) (*Job, error) {
	now := s.now()
	filter := bson.M{
		"queue_name":   queue,
		"status":       StatusPending,
		"scheduled_at": bson.M{"$lte": now},
	}
	update := bson.M{
		"$set": bson.M{
			"status":     StatusRunning,
			"started_at": now,
			"worker_id":  worker,
			"updated_at": now,
		},
		"$inc": bson.M{"attempts": 1},
	}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "priority", Value: -1}, {Key: "scheduled_at", Value: 1}}).
		SetReturnDocument(options.After)

	var job Job
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&job); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

// Complete records a successful run.
func (s *Store) Complete(ctx context.Context, id primitive.ObjectID, result map[string]any) error {
	now := s.now()
	return s.updateOne(ctx, id, bson.M{"$set": bson.M{
		"status":       StatusCompleted,
		"result":       result,
		"completed_at": now,
		"updated_at":   now,
	}})
}

// Fail records a failed attempt. The job returns to pending, runnable
// after retryDelay, while attempts < max_attempts; otherwise it is failed.
// The decision is made server-side in a single update.
func (s *Store) Fail(ctx context.Context, id primitive.ObjectID, errMsg string, retryDelay time.Duration) error {
	now := s.now()
	retry := bson.M{"$lt": bson.A{"$attempts", "$max_attempts"}}
	pipeline := mongo.Pipeline{{{Key: "$set", Value: bson.M{
		"error":        bson.M{"$literal": errMsg},
		"updated_at":   now,
		"status":       bson.M{"$cond": bson.A{retry, StatusPending, StatusFailed}},
		"scheduled_at": bson.M{"$cond": bson.A{retry, now.Add(retryDelay), "$scheduled_at"}},
		"started_at":   bson.M{"$cond": bson.A{retry, nil, "$started_at"}},
		"worker_id":    bson.M{"$cond": bson.A{retry, "", "$worker_id"}},
		"completed_at": bson.M{"$cond": bson.A{retry, "$$REMOVE", now}},
	}}}}
	return s.updateOne(ctx, id, pipeline)
}

// FailPermanent fails the job regardless of remaining attempts.
func (s *Store) FailPermanent(ctx context.Context, id primitive.ObjectID, errMsg string) error {
	now := s.now()
	return s.updateOne(ctx, id, bson.M{"$set": bson.M{
		"status":       StatusFailed,
		"error":        errMsg,
		"completed_at": now,
		"updated_at":   now,
	}})
}

func (s *Store) updateOne(ctx context.Context, id primitive.ObjectID, update any) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID loads one job.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*Job, error) {
	var job Job
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&job); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// CountByStatus returns job counts keyed by status. An empty queue counts
// across all queues.
func (s *Store) CountByStatus(ctx context.Context, queue string) (map[string]int64, error) {
	match := bson.M{}
	if queue != "" {
		match["queue_name"] = queue
	}
	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "n": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		Status string `bson:"_id"`
		N      int64  `bson:"n"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

// RequeueStale returns jobs that have been running longer than olderThan
// to pending. Their worker is presumed dead; the attempt already counted.
func (s *Store) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := s.now()
	res, err := s.c.UpdateMany(ctx, bson.M{
		"status":     StatusRunning,
		"started_at": bson.M{"$lt": now.Add(-olderThan)},
	}, bson.M{"$set": bson.M{
		"status":     StatusPending,
		"started_at": nil,
		"worker_id":  "",
		"error":      "worker lost; re-queued",
		"updated_at": now,
	}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// PurgeCompleted deletes completed jobs that finished before cutoff.
// Failed jobs are kept for inspection.
func (s *Store) PurgeCompleted(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{
		"status":       StatusCompleted,
		"completed_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
