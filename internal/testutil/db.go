// Package testutil holds shared test helpers: a per-test MongoDB database,
// an in-process Redis, and HTTP request builders.
package testutil

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/filesmanager/internal/app/system/indexes"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoURIEnv overrides the MongoDB used by store tests.
const MongoURIEnv = "FILESMANAGER_TEST_MONGO_URI"

const (
	defaultMongoURI = "mongodb://localhost:27017"
	dbPrefix        = "fm_test_"
)

var (
	connectOnce sync.Once
	shared      *mongo.Client
	connectErr  error
)

func mongoClient() (*mongo.Client, error) {
	connectOnce.Do(func() {
		uri := os.Getenv(MongoURIEnv)
		if uri == "" {
			uri = defaultMongoURI
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		opts := options.Client().
			ApplyURI(uri).
			SetMaxPoolSize(64).
			SetServerSelectionTimeout(3 * time.Second)
		shared, connectErr = mongo.Connect(ctx, opts)
		if connectErr == nil {
			connectErr = shared.Ping(ctx, nil)
		}
	})
	return shared, connectErr
}

// SetupTestDB returns an empty database private to t, with the production
// indexes in place. The test is skipped when MongoDB is unreachable, and
// the database is dropped on cleanup.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()

	client, err := mongoClient()
	if err != nil {
		t.Skipf("MongoDB unavailable (%s): %v", MongoURIEnv, err)
	}

	db := client.Database(DBName(t.Name()))

	ctx, cancel := TestContext()
	defer cancel()
	if err := db.Drop(ctx); err != nil {
		t.Fatalf("drop %s: %v", db.Name(), err)
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.Drop(ctx); err != nil {
			t.Logf("drop %s on cleanup: %v", db.Name(), err)
		}
	})
	return db
}

// DBName maps a test name to a database name. Names stay within MongoDB's
// 63-byte limit; a hash of the full name keeps long subtests distinct.
func DBName(testName string) string {
	sum := sha1.Sum([]byte(testName))
	suffix := hex.EncodeToString(sum[:])[:8]

	readable := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		}
		return '_'
	}, testName)

	const maxReadable = 63 - len(dbPrefix) - 1 - 8
	if len(readable) > maxReadable {
		readable = readable[:maxReadable]
	}
	return dbPrefix + readable + "_" + suffix
}

// TestContext returns a context bounded for a single test's store calls.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
