// Package audit persists security-relevant events in the audit_logs
// collection.
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// CategoryAuth groups registration, login and logout events.
const CategoryAuth = "auth"

// Auth event types.
const (
	EventUserRegistered           = "user_registered"
	EventLoginSuccess             = "login_success"
	EventLoginMalformed           = "login_failed_malformed_header"
	EventLoginFailedUserNotFound  = "login_failed_user_not_found"
	EventLoginFailedWrongPassword = "login_failed_wrong_password"
	EventLoginLockedOut           = "login_locked_out"
	EventLogout                   = "logout"
)

// Event is one audit record.
type Event struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty"`
	CreatedAt     time.Time           `bson:"created_at"`
	Category      string              `bson:"category"`
	EventType     string              `bson:"event_type"`
	UserID        *primitive.ObjectID `bson:"user_id,omitempty"`
	Email         string              `bson:"email,omitempty"`
	IP            string              `bson:"ip"`
	UserAgent     string              `bson:"user_agent,omitempty"`
	Success       bool                `bson:"success"`
	FailureReason string              `bson:"failure_reason,omitempty"`
	Details       map[string]string   `bson:"details,omitempty"`
}

// Store writes and prunes audit events.
type Store struct {
	c   *mongo.Collection
	now func() time.Time
}

// New returns a Store on db.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("audit_logs"), now: time.Now}
}

// Log inserts event, assigning an id and timestamp when unset.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

// DeleteOlderThan removes events created more than age ago.
func (s *Store) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": s.now().Add(-age)}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
