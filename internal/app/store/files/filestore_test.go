package filestore

import (
	"errors"
	"testing"

	"github.com/dalemusser/filesmanager/internal/domain/models"
	"github.com/dalemusser/filesmanager/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := primitive.NewObjectID()
	folder, err := store.Create(ctx, CreateInput{UserID: owner, Name: "docs", Type: models.KindFolder})
	if err != nil {
		t.Fatalf("Create(folder) error = %v", err)
	}
	if folder.ID.IsZero() {
		t.Error("ID should not be zero")
	}
	if !folder.IsInRoot() {
		t.Error("folder should be at root")
	}
	if folder.LocalPath != "" {
		t.Errorf("folder LocalPath = %q, want empty", folder.LocalPath)
	}

	img, err := store.Create(ctx, CreateInput{
		UserID:    owner,
		Name:      "cat.png",
		Type:      models.KindImage,
		ParentID:  &folder.ID,
		LocalPath: "5c9b7a1e-0000-4000-8000-000000000001",
	})
	if err != nil {
		t.Fatalf("Create(image) error = %v", err)
	}

	got, err := store.GetByID(ctx, img.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.ParentID == nil || *got.ParentID != folder.ID {
		t.Errorf("ParentID = %v, want %v", got.ParentID, folder.ID)
	}
	if got.Type != models.KindImage {
		t.Errorf("Type = %q, want %q", got.Type, models.KindImage)
	}
}

func TestStore_Create_RejectsInvalidNode(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := primitive.NewObjectID()
	tests := []struct {
		name  string
		input CreateInput
	}{
		{"folder with content", CreateInput{UserID: owner, Name: "d", Type: models.KindFolder, LocalPath: "x"}},
		{"file without content", CreateInput{UserID: owner, Name: "f", Type: models.KindFile}},
		{"blank name", CreateInput{UserID: owner, Name: " ", Type: models.KindFolder}},
		{"no owner", CreateInput{Name: "d", Type: models.KindFolder}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.Create(ctx, tt.input); !errors.Is(err, ErrInvalidNode) {
				t.Errorf("Create() error = %v, want ErrInvalidNode", err)
			}
		})
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 0 {
		t.Errorf("Count() = %d, want 0 after rejected creates", n)
	}
}

func TestStore_GetOwned(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := primitive.NewObjectID()
	other := primitive.NewObjectID()
	node, err := store.Create(ctx, CreateInput{UserID: owner, Name: "docs", Type: models.KindFolder})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := store.GetOwned(ctx, owner, node.ID); err != nil {
		t.Errorf("GetOwned(owner) error = %v", err)
	}
	if _, err := store.GetOwned(ctx, other, node.ID); err != ErrNotFound {
		t.Errorf("GetOwned(other) error = %v, want %v", err, ErrNotFound)
	}
	if _, err := store.GetByID(ctx, primitive.NewObjectID()); err != ErrNotFound {
		t.Errorf("GetByID(missing) error = %v, want %v", err, ErrNotFound)
	}
}

func TestStore_GetByID_MalformedDocument(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	id := primitive.NewObjectID()
	_, err := db.Collection("files").InsertOne(ctx, bson.M{
		"_id":     id,
		"user_id": primitive.NewObjectID(),
		"type":    "image",
		// no name, no local_path
	})
	if err != nil {
		t.Fatalf("InsertOne() error = %v", err)
	}

	if _, err := store.GetByID(ctx, id); !errors.Is(err, ErrInvalidNode) {
		t.Errorf("GetByID() error = %v, want ErrInvalidNode", err)
	}
}

func TestStore_List_Pagination(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := primitive.NewObjectID()
	other := primitive.NewObjectID()

	var created []primitive.ObjectID
	for i := 0; i < 45; i++ {
		n, err := store.Create(ctx, CreateInput{UserID: owner, Name: "f", Type: models.KindFolder})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		created = append(created, n.ID)
	}
	for i := 0; i < 5; i++ {
		if _, err := store.Create(ctx, CreateInput{UserID: other, Name: "x", Type: models.KindFolder}); err != nil {
			t.Fatalf("Create(other) error = %v", err)
		}
	}

	seen := map[primitive.ObjectID]bool{}
	var order []primitive.ObjectID
	for page, want := range []int{20, 20, 5, 0} {
		nodes, err := store.List(ctx, ListFilter{Owner: owner}, page)
		if err != nil {
			t.Fatalf("List(page %d) error = %v", page, err)
		}
		if len(nodes) != want {
			t.Errorf("List(page %d) len = %d, want %d", page, len(nodes), want)
		}
		for _, n := range nodes {
			if n.UserID != owner {
				t.Errorf("List returned node of user %v", n.UserID)
			}
			if seen[n.ID] {
				t.Errorf("node %v returned on more than one page", n.ID)
			}
			seen[n.ID] = true
			order = append(order, n.ID)
		}
	}

	if len(order) != len(created) {
		t.Fatalf("pages covered %d nodes, want %d", len(order), len(created))
	}
	// Newest first: the reverse of creation order.
	for i, id := range order {
		if want := created[len(created)-1-i]; id != want {
			t.Errorf("order[%d] = %v, want %v", i, id, want)
			break
		}
	}
}

func TestStore_List_ParentFilter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := primitive.NewObjectID()
	docs, err := store.Create(ctx, CreateInput{UserID: owner, Name: "docs", Type: models.KindFolder})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	for _, name := range []string{"a.txt", "b.txt"} {
		if _, err := store.Create(ctx, CreateInput{
			UserID: owner, Name: name, Type: models.KindFile, ParentID: &docs.ID, LocalPath: name,
		}); err != nil {
			t.Fatalf("Create(%s) error = %v", name, err)
		}
	}

	children, err := store.List(ctx, ListFilter{Owner: owner, Parent: &docs.ID}, 0)
	if err != nil {
		t.Fatalf("List(parent) error = %v", err)
	}
	if len(children) != 2 {
		t.Errorf("List(parent) len = %d, want 2", len(children))
	}

	roots, err := store.List(ctx, ListFilter{Owner: owner, RootOnly: true}, 0)
	if err != nil {
		t.Fatalf("List(root) error = %v", err)
	}
	if len(roots) != 1 || roots[0].ID != docs.ID {
		t.Errorf("List(root) = %v, want only %v", roots, docs.ID)
	}

	all, err := store.List(ctx, ListFilter{Owner: owner}, 0)
	if err != nil {
		t.Fatalf("List(all) error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List(all) len = %d, want 3", len(all))
	}
}

func TestStore_SetPublic(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := primitive.NewObjectID()
	node, err := store.Create(ctx, CreateInput{UserID: owner, Name: "a.txt", Type: models.KindFile, LocalPath: "k"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	updated, err := store.SetPublic(ctx, owner, node.ID, true)
	if err != nil {
		t.Fatalf("SetPublic(true) error = %v", err)
	}
	if !updated.IsPublic {
		t.Error("SetPublic(true) returned private node")
	}

	updated, err = store.SetPublic(ctx, owner, node.ID, false)
	if err != nil {
		t.Fatalf("SetPublic(false) error = %v", err)
	}
	if updated.IsPublic {
		t.Error("SetPublic(false) returned public node")
	}

	if _, err := store.SetPublic(ctx, primitive.NewObjectID(), node.ID, true); err != ErrNotFound {
		t.Errorf("SetPublic(other owner) error = %v, want %v", err, ErrNotFound)
	}
}
