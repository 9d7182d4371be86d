// internal/app/features/files/manager.go
package files

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"path/filepath"
	"strconv"

	filestore "github.com/dalemusser/filesmanager/internal/app/store/files"
	jobstore "github.com/dalemusser/filesmanager/internal/app/store/jobs"
	"github.com/dalemusser/filesmanager/internal/app/system/apierr"
	"github.com/dalemusser/filesmanager/internal/app/system/normalize"
	"github.com/dalemusser/filesmanager/internal/app/system/thumbnails"
	"github.com/dalemusser/filesmanager/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Authenticator resolves session tokens. *authn.Authenticator implements it.
type Authenticator interface {
	Resolve(ctx context.Context, token string) (*models.User, error)
}

// Nodes is the metadata store. *filestore.Store implements it.
type Nodes interface {
	Create(ctx context.Context, input filestore.CreateInput) (*models.FileNode, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.FileNode, error)
	GetOwned(ctx context.Context, owner, id primitive.ObjectID) (*models.FileNode, error)
	List(ctx context.Context, f filestore.ListFilter, page int) ([]models.FileNode, error)
	SetPublic(ctx context.Context, owner, id primitive.ObjectID, public bool) (*models.FileNode, error)
}

// Blobs stores file content. waffle's storage.Store implements it.
type Blobs interface {
	Put(ctx context.Context, path string, r io.Reader, opts *storage.PutOptions) error
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}

// Enqueuer submits background jobs. *jobstore.Store implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName, jobType string, payload map[string]any) (jobstore.Job, error)
}

// Manager implements file and folder operations on behalf of token holders.
type Manager struct {
	auth   Authenticator
	nodes  Nodes
	blobs  Blobs
	queue  Enqueuer
	logger *zap.Logger

	newKey func() string
}

// NewManager creates a Manager.
func NewManager(auth Authenticator, nodes Nodes, blobs Blobs, queue Enqueuer, logger *zap.Logger) *Manager {
	return &Manager{
		auth:   auth,
		nodes:  nodes,
		blobs:  blobs,
		queue:  queue,
		logger: logger,
		newKey: uuid.NewString,
	}
}

// CreateInput is an upload request.
type CreateInput struct {
	Name     string
	Type     string
	ParentID string // "", "0" or a node id
	IsPublic bool
	Data     string // base64; required unless Type is folder
}

// Create validates in and stores a new node owned by the token holder.
// Content bytes are written before the metadata, and a thumbnail job is
// queued only after the metadata is stored.
func (m *Manager) Create(ctx context.Context, token string, in CreateInput) (*models.FileNode, error) {
	user, err := m.auth.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	name := normalize.Name(in.Name)
	if name == "" {
		return nil, apierr.ErrMissingName
	}
	kind, ok := models.ParseFileKind(in.Type)
	if !ok {
		return nil, apierr.ErrMissingType
	}
	if kind.HasContent() && in.Data == "" {
		return nil, apierr.ErrMissingData
	}

	parentID, err := m.resolveParent(ctx, user.ID, in.ParentID)
	if err != nil {
		return nil, err
	}

	input := filestore.CreateInput{
		UserID:   user.ID,
		Name:     name,
		Type:     kind,
		ParentID: parentID,
		IsPublic: in.IsPublic,
	}

	if kind.HasContent() {
		content, err := base64.StdEncoding.DecodeString(in.Data)
		if err != nil {
			return nil, apierr.Wrap(apierr.Validation, apierr.ReasonInvalidData, err)
		}
		key := m.newKey()
		if err := m.blobs.Put(ctx, key, bytes.NewReader(content), &storage.PutOptions{
			ContentType: ContentType(name),
		}); err != nil {
			return nil, apierr.Wrap(apierr.Internal, apierr.ReasonInternal, err)
		}
		input.LocalPath = key
	}

	node, err := m.nodes.Create(ctx, input)
	if err != nil {
		if input.LocalPath != "" {
			if delErr := m.blobs.Delete(ctx, input.LocalPath); delErr != nil {
				m.logger.Warn("failed to remove orphaned content",
					zap.String("key", input.LocalPath), zap.Error(delErr))
			}
		}
		return nil, apierr.Wrap(apierr.Internal, apierr.ReasonInternal, err)
	}

	if node.Type == models.KindImage {
		job, err := m.queue.Enqueue(ctx, thumbnails.Queue, thumbnails.JobType, thumbnails.Payload(user.ID, node.ID))
		if err != nil {
			// The upload itself succeeded; sized reads answer Not found until
			// thumbnails exist.
			m.logger.Error("failed to enqueue thumbnail job",
				zap.String("file_id", node.ID.Hex()), zap.Error(err))
		} else {
			m.logger.Debug("thumbnail job enqueued",
				zap.String("file_id", node.ID.Hex()), zap.String("job_id", job.ID.Hex()))
		}
	}

	return node, nil
}

// resolveParent maps the parentId field to a folder owned by owner.
func (m *Manager) resolveParent(ctx context.Context, owner primitive.ObjectID, raw string) (*primitive.ObjectID, error) {
	if normalize.RootParent(raw) {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(normalize.Param(raw))
	if err != nil {
		return nil, apierr.ErrParentNotFound
	}

	parent, err := m.nodes.GetByID(ctx, id)
	if errors.Is(err, filestore.ErrNotFound) {
		return nil, apierr.ErrParentNotFound
	}
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, apierr.ReasonInternal, err)
	}
	if parent.Type != models.KindFolder {
		return nil, apierr.ErrParentNotAFolder
	}
	if parent.UserID != owner {
		return nil, apierr.ErrParentNotFound
	}
	return &parent.ID, nil
}

// Get returns a node owned by the token holder.
func (m *Manager) Get(ctx context.Context, token, id string) (*models.FileNode, error) {
	user, err := m.auth.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apierr.ErrNotFound
	}
	node, err := m.nodes.GetOwned(ctx, user.ID, oid)
	return node, storeErr(err)
}

// List returns one page of the token holder's nodes, newest first.
// parentID "" lists everything, "0" lists the root, and any other value
// lists that folder. page is 0-based.
func (m *Manager) List(ctx context.Context, token, parentID string, page int) ([]models.FileNode, error) {
	user, err := m.auth.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	filter := filestore.ListFilter{Owner: user.ID}
	switch parentID = normalize.Param(parentID); {
	case parentID == "":
	case normalize.RootParent(parentID):
		filter.RootOnly = true
	default:
		pid, err := primitive.ObjectIDFromHex(parentID)
		if err != nil {
			return []models.FileNode{}, nil
		}
		filter.Parent = &pid
	}

	nodes, err := m.nodes.List(ctx, filter, page)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, apierr.ReasonInternal, err)
	}
	return nodes, nil
}

// SetVisibility publishes or unpublishes a node owned by the token holder.
func (m *Manager) SetVisibility(ctx context.Context, token, id string, public bool) (*models.FileNode, error) {
	user, err := m.auth.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apierr.ErrNotFound
	}
	node, err := m.nodes.SetPublic(ctx, user.ID, oid, public)
	return node, storeErr(err)
}

// Content is an open file body.
type Content struct {
	Body        io.ReadCloser
	ContentType string
	Node        *models.FileNode
}

// Read opens the content of a node. Public nodes are readable by anyone;
// private nodes only with the owner's token, and are otherwise reported as
// not found. size selects a thumbnail width; "" selects the original.
func (m *Manager) Read(ctx context.Context, id, token, size string) (*Content, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apierr.ErrNotFound
	}
	node, err := m.nodes.GetByID(ctx, oid)
	if err != nil {
		return nil, storeErr(err)
	}

	if !node.IsPublic {
		user, err := m.auth.Resolve(ctx, token)
		if err != nil {
			if apierr.KindOf(err) == apierr.Unauthorized {
				return nil, apierr.ErrNotFound
			}
			return nil, err
		}
		if user.ID != node.UserID {
			return nil, apierr.ErrNotFound
		}
	}

	if !node.Type.HasContent() {
		return nil, apierr.ErrFolderHasNoContent
	}

	key, ok := contentKey(node.LocalPath, size)
	if !ok {
		return nil, apierr.ErrNotFound
	}
	body, err := m.blobs.Get(ctx, key)
	if err != nil {
		m.logger.Debug("content unavailable",
			zap.String("file_id", node.ID.Hex()), zap.String("key", key), zap.Error(err))
		return nil, apierr.ErrNotFound
	}

	return &Content{Body: body, ContentType: ContentType(node.Name), Node: node}, nil
}

// contentKey maps a size selector onto the storage key to read.
func contentKey(key, size string) (string, bool) {
	size = normalize.Param(size)
	if size == "" {
		return key, true
	}
	width, err := strconv.Atoi(size)
	if err != nil {
		return "", false
	}
	for _, w := range models.ThumbnailWidths {
		if w == width {
			return models.DerivativeKey(key, w), true
		}
	}
	return "", false
}

// ContentType guesses a MIME type from a file name.
func ContentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// storeErr maps metadata store errors onto API errors.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, filestore.ErrNotFound):
		return apierr.ErrNotFound
	default:
		return apierr.Wrap(apierr.Internal, apierr.ReasonInternal, err)
	}
}
