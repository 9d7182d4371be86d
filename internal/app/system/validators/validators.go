// Package validators creates the service's collections and attaches
// $jsonSchema validators to the ones whose shape the code relies on.
package validators

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Server error codes handled during reconciliation.
const (
	codeNamespaceExists = 48
	codeCommandNotFound = 59
	codeNotImplemented  = 115
)

// Collection is a collection and its optional schema.
type Collection struct {
	Name   string
	Schema bson.M
}

// Collections lists every collection the service writes to.
func Collections() []Collection {
	return []Collection{
		{"users", usersSchema()},
		{"files", filesSchema()},
		{"jobs", jobsSchema()},
		{"rate_limits", rateLimitsSchema()},
		{"audit_logs", nil},
	}
}

// EnsureAll creates missing collections and applies schemas with
// validationLevel "moderate", so documents written before a schema change
// are left alone until they are next updated. Servers without collMod
// support (some DocumentDB versions) skip validators with a log line.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return err
	}
	existing := make(map[string]bool, len(names))
	for _, n := range names {
		existing[n] = true
	}

	var problems []string
	for _, c := range Collections() {
		if !existing[c.Name] {
			if err := db.CreateCollection(ctx, c.Name); err != nil && !hasCode(err, codeNamespaceExists) {
				problems = append(problems, c.Name+": "+err.Error())
				continue
			}
			zap.L().Info("created collection", zap.String("collection", c.Name))
		}
		if c.Schema == nil {
			continue
		}
		if err := applySchema(ctx, db, c.Name, c.Schema); err != nil {
			if unsupported(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", c.Name))
				continue
			}
			problems = append(problems, c.Name+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func applySchema(ctx context.Context, db *mongo.Database, name string, schema bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: bson.M{"$jsonSchema": schema}},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	return db.RunCommand(ctx, cmd).Err()
}

func hasCode(err error, code int32) bool {
	var ce mongo.CommandError
	return errors.As(err, &ce) && ce.Code == code
}

func unsupported(err error) bool {
	if hasCode(err, codeCommandNotFound) || hasCode(err, codeNotImplemented) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"no such command", "not implemented", "not supported"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// object builds a schema for a BSON document with the given required
// fields and property rules.
func object(required []string, props bson.M) bson.M {
	req := make(bson.A, len(required))
	for i, r := range required {
		req[i] = r
	}
	return bson.M{"bsonType": "object", "required": req, "properties": props}
}

var (
	nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}
	integer  = bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0}
)

func usersSchema() bson.M {
	return object([]string{"email", "password"}, bson.M{
		"email":    nonBlank,
		"password": bson.M{"bsonType": "string", "minLength": 1},
	})
}

// filesSchema mirrors models.FileNode.Validate; the store checks the same
// rules before writing and after reading.
func filesSchema() bson.M {
	return object([]string{"user_id", "name", "type", "is_public"}, bson.M{
		"user_id":    bson.M{"bsonType": "objectId"},
		"name":       nonBlank,
		"type":       bson.M{"enum": bson.A{"folder", "file", "image"}},
		"parent_id":  bson.M{"bsonType": bson.A{"objectId", "null"}},
		"is_public":  bson.M{"bsonType": "bool"},
		"local_path": bson.M{"bsonType": "string"},
	})
}

func jobsSchema() bson.M {
	return object([]string{"queue_name", "job_type", "status", "attempts", "max_attempts", "scheduled_at"}, bson.M{
		"queue_name":   nonBlank,
		"job_type":     nonBlank,
		"status":       bson.M{"enum": bson.A{"pending", "running", "completed", "failed"}},
		"attempts":     integer,
		"max_attempts": integer,
		"scheduled_at": bson.M{"bsonType": "date"},
	})
}

func rateLimitsSchema() bson.M {
	return object([]string{"email", "attempt_count", "window_start"}, bson.M{
		"email":         nonBlank,
		"attempt_count": integer,
		"window_start":  bson.M{"bsonType": "date"},
		"locked_until":  bson.M{"bsonType": bson.A{"date", "null"}},
	})
}
