// Package indexes declares the MongoDB indexes the service relies on and
// reconciles them at startup.
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Collection pairs a collection name with the indexes it needs.
type Collection struct {
	Name    string
	Indexes []mongo.IndexModel
}

func asc(fields ...string) bson.D {
	d := make(bson.D, 0, len(fields))
	for _, f := range fields {
		dir := 1
		if strings.HasPrefix(f, "-") {
			f, dir = f[1:], -1
		}
		d = append(d, bson.E{Key: f, Value: dir})
	}
	return d
}

// Collections returns the full index declaration, one entry per collection.
func Collections() []Collection {
	return []Collection{
		{"users", []mongo.IndexModel{
			// Emails are stored lowercased, so this is case-insensitive.
			{Keys: asc("email"), Options: options.Index().SetUnique(true).SetName("uniq_users_email")},
		}},
		{"files", []mongo.IndexModel{
			// Folder listing, newest first.
			{Keys: asc("user_id", "parent_id", "-_id"), Options: options.Index().SetName("idx_files_user_parent_id")},
			{Keys: asc("user_id", "-_id"), Options: options.Index().SetName("idx_files_user_id")},
		}},
		{"jobs", []mongo.IndexModel{
			{Keys: asc("queue_name", "status", "-priority", "scheduled_at"), Options: options.Index().SetName("idx_job_claim")},
			{Keys: asc("status", "started_at"), Options: options.Index().SetName("idx_job_status_started")},
			{Keys: asc("job_type", "-created_at"), Options: options.Index().SetName("idx_job_type_created")},
			{Keys: asc("status", "completed_at"), Options: options.Index().SetName("idx_job_status_completed")},
		}},
		{"rate_limits", []mongo.IndexModel{
			{Keys: asc("email"), Options: options.Index().SetUnique(true).SetName("idx_ratelimit_email")},
			// Counters disappear a day after the last attempt.
			{Keys: asc("last_attempt"), Options: options.Index().SetExpireAfterSeconds(86400).SetName("idx_ratelimit_ttl")},
		}},
		{"audit_logs", []mongo.IndexModel{
			{Keys: asc("-created_at"), Options: options.Index().SetName("idx_audit_created")},
			{Keys: asc("category", "-created_at"), Options: options.Index().SetName("idx_audit_category_created")},
			{Keys: asc("user_id", "-created_at"), Options: options.Index().SetName("idx_audit_user_created")},
		}},
	}
}

// EnsureAll reconciles every declared index. It is idempotent; problems
// across collections are collected so startup reports all of them.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string
	for _, c := range Collections() {
		if err := ensure(ctx, db.Collection(c.Name), c.Indexes); err != nil {
			problems = append(problems, c.Name+": "+err.Error())
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

type existingIndex struct {
	Name        string `bson:"name"`
	Key         bson.D `bson:"key"`
	Unique      bool   `bson:"unique"`
	ExpireAfter *int32 `bson:"expireAfterSeconds"`
}

// signature identifies an index by its key pattern.
func signature(keys bson.D) string {
	parts := make([]string, len(keys))
	for i, kv := range keys {
		parts[i] = fmt.Sprintf("%s:%v", kv.Key, kv.Value)
	}
	return strings.Join(parts, ",")
}

type wantOpts struct {
	name   string
	unique bool
	ttl    *int32
}

func optsOf(m mongo.IndexModel) wantOpts {
	var w wantOpts
	if m.Options == nil {
		return w
	}
	if m.Options.Name != nil {
		w.name = *m.Options.Name
	}
	if m.Options.Unique != nil {
		w.unique = *m.Options.Unique
	}
	w.ttl = m.Options.ExpireAfterSeconds
	return w
}

func sameTTL(a, b *int32) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func listExisting(ctx context.Context, coll *mongo.Collection) (map[string]existingIndex, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := map[string]existingIndex{}
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("skipping undecodable index", zap.String("collection", coll.Name()), zap.Error(err))
			continue
		}
		out[signature(idx.Key)] = idx
	}
	return out, cur.Err()
}

// ensure creates missing indexes and rebuilds ones whose key pattern
// matches but whose uniqueness or TTL differs. Indexes matching on keys
// and options are reused whatever their name.
func ensure(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	start := time.Now()
	existing, err := listExisting(ctx, coll)
	if err != nil {
		return fmt.Errorf("list indexes: %w", err)
	}

	var errs []string
	created, rebuilt := 0, 0
	for _, m := range models {
		want := optsOf(m)
		sig := signature(m.Keys.(bson.D))

		if ex, ok := existing[sig]; ok {
			if ex.Unique == want.unique && sameTTL(ex.ExpireAfter, want.ttl) {
				continue
			}
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s: drop %s: %v", want.name, ex.Name, err))
				continue
			}
			rebuilt++
		} else {
			created++
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if want.unique && wafflemongo.IsDup(err) {
				err = errors.New("duplicate values prevent a unique index")
			}
			zap.L().Warn("index ensure failed",
				zap.String("collection", coll.Name()),
				zap.String("name", want.name),
				zap.String("keys", sig),
				zap.Error(err))
			errs = append(errs, fmt.Sprintf("%s: %v", want.name, err))
		}
	}

	zap.L().Info("indexes ensured",
		zap.String("collection", coll.Name()),
		zap.Int("created", created),
		zap.Int("rebuilt", rebuilt),
		zap.Duration("took", time.Since(start)))

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
