// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	jobstore "github.com/dalemusser/filesmanager/internal/app/store/jobs"
	"github.com/dalemusser/filesmanager/internal/app/system/jobrunner"
	"github.com/dalemusser/filesmanager/internal/app/system/mailer"
	"github.com/dalemusser/filesmanager/internal/app/system/tasks"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database and backend dependencies for this WAFFLE app.
//
// It is created in ConnectDB and passed to EnsureSchema, Startup,
// BuildHandler and Shutdown. Shutdown closes everything it holds.
type DBDeps struct {
	// MongoDB client and database (metadata store)
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Redis client (session store)
	Redis *redis.Client

	// FileStorage holds file content and thumbnails.
	FileStorage storage.Store

	// Mailer sends welcome emails; nil when mail is disabled.
	Mailer *mailer.Mailer

	// Jobs is the durable job queue. The File Manager enqueues on it and
	// JobRunner's workers claim from it.
	Jobs      *jobstore.Store
	JobRunner *jobrunner.Runner

	// Housekeeping runs periodic maintenance tasks.
	Housekeeping *tasks.Runner
}
