// Package filestore persists FileNode metadata in the files collection.
//
// Every document is checked against the FileNode schema on the way in and
// on the way out; a stored document that does not satisfy the schema is
// reported as ErrInvalidNode instead of being handed to callers.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/filesmanager/internal/app/store/storeutil"
	"github.com/dalemusser/filesmanager/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PageSize is the number of nodes returned per List page.
const PageSize = 20

var (
	// ErrNotFound is returned when no node matches the lookup.
	ErrNotFound = errors.New("file not found")
	// ErrInvalidNode is returned when a node fails schema validation.
	ErrInvalidNode = errors.New("invalid file node")
)

// Store provides access to the files collection.
type Store struct {
	c *mongo.Collection
}

// New creates a new file store.
func New(db *mongo.Database) *Store {
	return &Store{
		c: db.Collection("files"),
	}
}

// CreateInput contains the input for creating a node.
type CreateInput struct {
	UserID    primitive.ObjectID
	Name      string
	Type      models.FileKind
	ParentID  *primitive.ObjectID
	IsPublic  bool
	LocalPath string
}

// Create validates and inserts a new node.
func (s *Store) Create(ctx context.Context, input CreateInput) (*models.FileNode, error) {
	now := time.Now().UTC()
	node := models.FileNode{
		ID:        primitive.NewObjectID(),
		UserID:    input.UserID,
		Name:      input.Name,
		Type:      input.Type,
		ParentID:  input.ParentID,
		IsPublic:  input.IsPublic,
		LocalPath: input.LocalPath,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := node.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNode, err)
	}

	if _, err := s.c.InsertOne(ctx, node); err != nil {
		return nil, err
	}
	return &node, nil
}

// GetByID retrieves a node by ID regardless of owner.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.FileNode, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetOwned retrieves a node by ID only if it belongs to owner.
func (s *Store) GetOwned(ctx context.Context, owner, id primitive.ObjectID) (*models.FileNode, error) {
	return s.findOne(ctx, bson.M{"_id": id, "user_id": owner})
}

// ListFilter selects the nodes returned by List.
type ListFilter struct {
	Owner primitive.ObjectID
	// Parent restricts results to direct children of this folder.
	Parent *primitive.ObjectID
	// RootOnly restricts results to nodes without a parent. Ignored when
	// Parent is set.
	RootOnly bool
}

// List returns one page (0-based) of the owner's nodes, newest first.
func (s *Store) List(ctx context.Context, f ListFilter, page int) ([]models.FileNode, error) {
	filter := bson.M{"user_id": f.Owner}
	switch {
	case f.Parent != nil:
		filter["parent_id"] = *f.Parent
	case f.RootOnly:
		filter["parent_id"] = nil
	}

	opts := storeutil.Paginate(PageSize, int64(page)).
		SetSort(bson.D{{Key: "_id", Value: -1}})

	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	nodes := make([]models.FileNode, 0, PageSize)
	if err := cur.All(ctx, &nodes); err != nil {
		return nil, err
	}
	for i := range nodes {
		if err := nodes[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidNode, nodes[i].ID.Hex(), err)
		}
	}
	return nodes, nil
}

// SetPublic updates the visibility of an owned node and returns the new state.
func (s *Store) SetPublic(ctx context.Context, owner, id primitive.ObjectID, public bool) (*models.FileNode, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var node models.FileNode
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "user_id": owner},
		bson.M{"$set": bson.M{"is_public": public, "updated_at": time.Now().UTC()}},
		opts,
	).Decode(&node)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := node.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNode, err)
	}
	return &node, nil
}

// Count returns the total number of nodes.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*models.FileNode, error) {
	var node models.FileNode
	if err := s.c.FindOne(ctx, filter).Decode(&node); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := node.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNode, err)
	}
	return &node, nil
}
