package files

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	filestore "github.com/dalemusser/filesmanager/internal/app/store/files"
	jobstore "github.com/dalemusser/filesmanager/internal/app/store/jobs"
	"github.com/dalemusser/filesmanager/internal/app/system/apierr"
	"github.com/dalemusser/filesmanager/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/storage"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeAuth struct {
	users map[string]*models.User
}

func (a *fakeAuth) Resolve(_ context.Context, token string) (*models.User, error) {
	if u, ok := a.users[token]; ok {
		return u, nil
	}
	return nil, apierr.ErrUnauthorized
}

type fakeNodes struct {
	mu        sync.Mutex
	nodes     map[primitive.ObjectID]*models.FileNode
	createErr error
}

func newFakeNodes() *fakeNodes {
	return &fakeNodes{nodes: make(map[primitive.ObjectID]*models.FileNode)}
}

func (f *fakeNodes) Create(_ context.Context, in filestore.CreateInput) (*models.FileNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	n := &models.FileNode{
		ID:        primitive.NewObjectID(),
		UserID:    in.UserID,
		Name:      in.Name,
		Type:      in.Type,
		ParentID:  in.ParentID,
		IsPublic:  in.IsPublic,
		LocalPath: in.LocalPath,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	f.nodes[n.ID] = n
	cp := *n
	return &cp, nil
}

func (f *fakeNodes) GetByID(_ context.Context, id primitive.ObjectID) (*models.FileNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[id]
	if !ok {
		return nil, filestore.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (f *fakeNodes) GetOwned(ctx context.Context, owner, id primitive.ObjectID) (*models.FileNode, error) {
	n, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.UserID != owner {
		return nil, filestore.ErrNotFound
	}
	return n, nil
}

func (f *fakeNodes) List(_ context.Context, lf filestore.ListFilter, page int) ([]models.FileNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.FileNode
	for _, n := range f.nodes {
		if n.UserID != lf.Owner {
			continue
		}
		switch {
		case lf.Parent != nil:
			if n.ParentID == nil || *n.ParentID != *lf.Parent {
				continue
			}
		case lf.RootOnly:
			if n.ParentID != nil {
				continue
			}
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() > out[j].ID.Hex() })

	if page > len(out)/filestore.PageSize {
		return []models.FileNode{}, nil
	}
	start := page * filestore.PageSize
	if start >= len(out) {
		return []models.FileNode{}, nil
	}
	end := start + filestore.PageSize
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], nil
}

func (f *fakeNodes) SetPublic(ctx context.Context, owner, id primitive.ObjectID, public bool) (*models.FileNode, error) {
	if _, err := f.GetOwned(ctx, owner, id); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.nodes[id].IsPublic = public
	cp := *f.nodes[id]
	f.mu.Unlock()
	return &cp, nil
}

func (f *fakeNodes) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.nodes)
}

type fakeBlobs struct {
	mu      sync.Mutex
	data    map[string][]byte
	types   map[string]string
	putErr  error
	deleted []string
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{data: make(map[string][]byte), types: make(map[string]string)}
}

func (b *fakeBlobs) Put(_ context.Context, path string, r io.Reader, opts *storage.PutOptions) error {
	if b.putErr != nil {
		return b.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[path] = data
	if opts != nil {
		b.types[path] = opts.ContentType
	}
	return nil
}

func (b *fakeBlobs) Get(_ context.Context, path string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.data[path]
	if !ok {
		return nil, errors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *fakeBlobs) Delete(_ context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, path)
	b.deleted = append(b.deleted, path)
	return nil
}

type enqueued struct {
	queue, jobType string
	payload        map[string]any
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []enqueued
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, queueName, jobType string, payload map[string]any) (jobstore.Job, error) {
	if q.err != nil {
		return jobstore.Job{}, q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, enqueued{queue: queueName, jobType: jobType, payload: payload})
	return jobstore.Job{ID: primitive.NewObjectID(), Queue: queueName, Type: jobType, Payload: payload}, nil
}

type fixture struct {
	mgr   *Manager
	nodes *fakeNodes
	blobs *fakeBlobs
	queue *fakeQueue
	alice *models.User
	bob   *models.User
}

const (
	aliceToken = "alice-token"
	bobToken   = "bob-token"
)

func newFixture() *fixture {
	alice := &models.User{ID: primitive.NewObjectID(), Email: "alice@example.com"}
	bob := &models.User{ID: primitive.NewObjectID(), Email: "bob@example.com"}
	auth := &fakeAuth{users: map[string]*models.User{aliceToken: alice, bobToken: bob}}

	f := &fixture{
		nodes: newFakeNodes(),
		blobs: newFakeBlobs(),
		queue: &fakeQueue{},
		alice: alice,
		bob:   bob,
	}
	f.mgr = NewManager(auth, f.nodes, f.blobs, f.queue, zap.NewNop())
	return f
}
