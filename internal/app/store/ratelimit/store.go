// Package ratelimit counts failed logins per email in the rate_limits
// collection and locks an email out after too many failures.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/filesmanager/internal/app/system/normalize"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Attempt is the counter document for one email.
type Attempt struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Email        string             `bson:"email"`
	AttemptCount int                `bson:"attempt_count"`
	WindowStart  time.Time          `bson:"window_start"`
	LockedUntil  *time.Time         `bson:"locked_until,omitempty"`
	LastAttempt  time.Time          `bson:"last_attempt"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

// Store allows maxAttempts failures per window; the failure that reaches
// the limit locks the email for the lockout duration.
type Store struct {
	c           *mongo.Collection
	maxAttempts int
	window      time.Duration
	lockout     time.Duration
	now         func() time.Time
}

// New returns a Store on db's rate_limits collection.
func New(db *mongo.Database, maxAttempts int, window, lockout time.Duration) *Store {
	return &Store{
		c:           db.Collection("rate_limits"),
		maxAttempts: maxAttempts,
		window:      window,
		lockout:     lockout,
		now:         time.Now,
	}
}

// CheckAllowed reports whether a login for email may be attempted and how
// many failures remain before a lockout (-1 while locked). Lookup errors
// fail open.
func (s *Store) CheckAllowed(ctx context.Context, email string) (allowed bool, remaining int, lockedUntil *time.Time) {
	a, err := s.find(ctx, email)
	if err != nil || a == nil {
		return true, s.maxAttempts, nil
	}
	now := s.now()
	if a.LockedUntil != nil && now.Before(*a.LockedUntil) {
		return false, -1, a.LockedUntil
	}
	if s.expired(a.WindowStart, now) {
		return true, s.maxAttempts, nil
	}
	// A lapsed lockout inside a live window leaves one try before relocking.
	return true, max(s.maxAttempts-a.AttemptCount, 1), nil
}

// RecordFailure counts one failed login and reports whether the email is
// now locked out. The counter is updated in a single upsert so concurrent
// failures are not lost.
func (s *Store) RecordFailure(ctx context.Context, email string) (lockedOut bool, lockedUntil *time.Time) {
	email = normalize.Email(email)
	now := s.now()
	until := now.Add(s.lockout)

	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"_reset": bson.M{"$or": bson.A{
				bson.M{"$not": bson.A{"$window_start"}},
				bson.M{"$lt": bson.A{"$window_start", now.Add(-s.window)}},
			}},
		}}},
		{{Key: "$set", Value: bson.M{
			"attempt_count": bson.M{"$cond": bson.A{"$_reset", 1, bson.M{"$add": bson.A{"$attempt_count", 1}}}},
			"window_start":  bson.M{"$cond": bson.A{"$_reset", now, "$window_start"}},
			"locked_until":  bson.M{"$cond": bson.A{"$_reset", nil, "$locked_until"}},
			"created_at":    bson.M{"$ifNull": bson.A{"$created_at", now}},
			"last_attempt":  now,
			"updated_at":    now,
		}}},
		{{Key: "$set", Value: bson.M{
			"locked_until": bson.M{"$cond": bson.A{
				bson.M{"$gte": bson.A{"$attempt_count", s.maxAttempts}}, until, "$locked_until",
			}},
		}}},
		{{Key: "$unset", Value: "_reset"}},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var a Attempt
	err := s.c.FindOneAndUpdate(ctx, bson.M{"email": email}, pipeline, opts).Decode(&a)
	if mongo.IsDuplicateKeyError(err) {
		// Lost an insert race on the unique email index; the row exists now.
		err = s.c.FindOneAndUpdate(ctx, bson.M{"email": email}, pipeline, opts).Decode(&a)
	}
	if err != nil || a.AttemptCount < s.maxAttempts {
		return false, nil
	}
	return true, a.LockedUntil
}

// ClearOnSuccess forgets email's failures after a successful login.
func (s *Store) ClearOnSuccess(ctx context.Context, email string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"email": normalize.Email(email)})
	return err
}

func (s *Store) find(ctx context.Context, email string) (*Attempt, error) {
	var a Attempt
	err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) expired(windowStart, now time.Time) bool {
	return now.After(windowStart.Add(s.window))
}
