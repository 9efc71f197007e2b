package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "tilevault-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tmpDir) })

	store, err := NewSQLiteStore(context.Background(), filepath.Join(tmpDir, "state.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestSQLiteStoreGetMissing(t *testing.T) {
	store := newTestStore(t)

	value, found, err := store.Get(context.Background(), "settings")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Get() found = true for a missing key")
	}
	if value != "" {
		t.Errorf("Get() value = %q, want empty", value)
	}
}

func TestSQLiteStoreSetGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "settings", `{"version":1}`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value, found, err := store.Get(ctx, "settings")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found {
		t.Fatal("Get() found = false after Set()")
	}
	if value != `{"version":1}` {
		t.Errorf("Get() value = %q, want %q", value, `{"version":1}`)
	}
}

func TestSQLiteStoreSetReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "regions", "first"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Set(ctx, "regions", "second"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value, found, err := store.Get(ctx, "regions")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found {
		t.Fatal("Get() found = false after Set()")
	}
	if value != "second" {
		t.Errorf("Get() value = %q, want %q", value, "second")
	}
}

func TestSQLiteStoreDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "tiles", "payload"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Delete(ctx, "tiles"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	_, found, err := store.Get(ctx, "tiles")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Get() found = true after Delete()")
	}

	// Deleting a missing key is a no-op.
	if err := store.Delete(ctx, "tiles"); err != nil {
		t.Errorf("Delete() of missing key error = %v", err)
	}
}

func TestSQLiteStoreReopen(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "tilevault-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	ctx := context.Background()
	path := filepath.Join(tmpDir, "state.db")

	store, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	if err := store.Set(ctx, "settings", "persisted"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() reopen error = %v", err)
	}
	defer func() { _ = reopened.Close() }()

	value, found, err := reopened.Get(ctx, "settings")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found || value != "persisted" {
		t.Errorf("Get() = (%q, %v), want (%q, true)", value, found, "persisted")
	}
}
