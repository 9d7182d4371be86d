// internal/app/store/sessions/store.go
package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultTTL is how long a session token stays valid.
const DefaultTTL = 24 * time.Hour

// keyPrefix namespaces session keys in Redis: auth_<token> -> user id hex.
const keyPrefix = "auth_"

// ErrNotFound is returned when a token does not resolve to a live session.
var ErrNotFound = errors.New("session not found")

// Store keeps session tokens in Redis with a fixed time-to-live.
// Expiry is enforced by Redis; there is no background cleanup.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// New creates a session Store. A non-positive ttl selects DefaultTTL.
func New(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

// TTL returns the lifetime given to new sessions.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Create mints a new random token for userID and stores it.
func (s *Store) Create(ctx context.Context, userID primitive.ObjectID) (string, error) {
	token := uuid.NewString()
	// NX guards against overwriting another session on the (theoretical)
	// collision of two random tokens.
	ok, err := s.rdb.SetNX(ctx, key(token), userID.Hex(), s.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	if !ok {
		return "", errors.New("store session: token collision")
	}
	return token, nil
}

// Resolve returns the user bound to token.
func (s *Store) Resolve(ctx context.Context, token string) (primitive.ObjectID, error) {
	if token == "" {
		return primitive.NilObjectID, ErrNotFound
	}
	hex, err := s.rdb.Get(ctx, key(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return primitive.NilObjectID, ErrNotFound
		}
		return primitive.NilObjectID, fmt.Errorf("resolve session: %w", err)
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		// A value we did not write; treat it as no session.
		return primitive.NilObjectID, ErrNotFound
	}
	return id, nil
}

// Delete removes the session for token. It returns ErrNotFound when the
// token had no live session, so a second logout is distinguishable.
func (s *Store) Delete(ctx context.Context, token string) error {
	if token == "" {
		return ErrNotFound
	}
	n, err := s.rdb.Del(ctx, key(token)).Result()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func key(token string) string {
	return keyPrefix + token
}
