package sessions

import (
	"testing"
	"time"

	"github.com/dalemusser/filesmanager/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_CreateResolve(t *testing.T) {
	rdb, _ := testutil.SetupTestRedis(t)
	store := New(rdb, time.Hour)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	token, err := store.Create(ctx, userID)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(token) != 36 {
		t.Errorf("token length = %d, want 36", len(token))
	}

	got, err := store.Resolve(ctx, token)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != userID {
		t.Errorf("Resolve() = %v, want %v", got, userID)
	}
}

func TestStore_KeyLayout(t *testing.T) {
	rdb, mr := testutil.SetupTestRedis(t)
	store := New(rdb, 0)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	token, err := store.Create(ctx, userID)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	v, err := mr.Get("auth_" + token)
	if err != nil {
		t.Fatalf("miniredis Get() error = %v", err)
	}
	if v != userID.Hex() {
		t.Errorf("stored value = %q, want %q", v, userID.Hex())
	}
	if ttl := mr.TTL("auth_" + token); ttl != DefaultTTL {
		t.Errorf("TTL = %v, want %v", ttl, DefaultTTL)
	}
}

func TestStore_Resolve_Expired(t *testing.T) {
	rdb, mr := testutil.SetupTestRedis(t)
	store := New(rdb, 24*time.Hour)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	token, err := store.Create(ctx, primitive.NewObjectID())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	mr.FastForward(24*time.Hour - time.Second)
	if _, err := store.Resolve(ctx, token); err != nil {
		t.Errorf("Resolve() before expiry error = %v", err)
	}

	mr.FastForward(2 * time.Second)
	if _, err := store.Resolve(ctx, token); err != ErrNotFound {
		t.Errorf("Resolve() after expiry error = %v, want %v", err, ErrNotFound)
	}
}

func TestStore_Resolve_Unknown(t *testing.T) {
	rdb, mr := testutil.SetupTestRedis(t)
	store := New(rdb, time.Hour)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Resolve(ctx, ""); err != ErrNotFound {
		t.Errorf("Resolve(\"\") error = %v, want %v", err, ErrNotFound)
	}
	if _, err := store.Resolve(ctx, "does-not-exist"); err != ErrNotFound {
		t.Errorf("Resolve(unknown) error = %v, want %v", err, ErrNotFound)
	}

	if err := mr.Set("auth_garbage", "not-an-object-id"); err != nil {
		t.Fatalf("miniredis Set() error = %v", err)
	}
	if _, err := store.Resolve(ctx, "garbage"); err != ErrNotFound {
		t.Errorf("Resolve(garbage) error = %v, want %v", err, ErrNotFound)
	}
}

func TestStore_Delete(t *testing.T) {
	rdb, _ := testutil.SetupTestRedis(t)
	store := New(rdb, time.Hour)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	token, err := store.Create(ctx, primitive.NewObjectID())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := store.Delete(ctx, token); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Resolve(ctx, token); err != ErrNotFound {
		t.Errorf("Resolve() after Delete error = %v, want %v", err, ErrNotFound)
	}
	if err := store.Delete(ctx, token); err != ErrNotFound {
		t.Errorf("second Delete() error = %v, want %v", err, ErrNotFound)
	}
}

func TestStore_MultipleSessionsPerUser(t *testing.T) {
	rdb, _ := testutil.SetupTestRedis(t)
	store := New(rdb, time.Hour)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	t1, err := store.Create(ctx, userID)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	t2, err := store.Create(ctx, userID)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if t1 == t2 {
		t.Fatal("two sessions got the same token")
	}

	if err := store.Delete(ctx, t1); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got, err := store.Resolve(ctx, t2); err != nil || got != userID {
		t.Errorf("Resolve(t2) = %v, %v; want %v, nil", got, err, userID)
	}
}

func TestStore_Ping(t *testing.T) {
	rdb, mr := testutil.SetupTestRedis(t)
	store := New(rdb, time.Hour)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}

	mr.SetError("LOADING server is loading")
	if err := store.Ping(ctx); err == nil {
		t.Error("Ping() with failing server should return error")
	}
}
