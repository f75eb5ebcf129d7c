package seenset

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bakkerme/salewatch/internal/core"
)

func TestSQLiteStoreMergeAndLoad(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "seen.db")
	store, err := NewSQLiteStore(dbPath, "", DocumentName("Keepers"))
	if err != nil {
		t.Fatalf("failed to init sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	seen, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(seen) != 0 {
		t.Fatalf("expected empty seen-set, got %v", seen)
	}

	now := time.Now().UTC().Truncate(time.Second)
	if err := store.Merge(context.Background(), core.SeenSet{"5": now, "7": now}); err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	seen, err = store.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !seen.Has("5") || !seen.Has("7") || len(seen) != 2 {
		t.Fatalf("expected keys 5 and 7, got %v", seen)
	}
}

func TestSQLiteStoreMergeKeepsFirstSeen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "seen.db")
	store, err := NewSQLiteStore(dbPath, "", DocumentName("Keepers"))
	if err != nil {
		t.Fatalf("failed to init sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	later := first.Add(time.Hour)
	if err := store.Merge(context.Background(), core.SeenSet{"a": first}); err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if err := store.Merge(context.Background(), core.SeenSet{"a": later, "b": later}); err != nil {
		t.Fatalf("second merge failed: %v", err)
	}

	seen, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("expected 2 keys, got %v", seen)
	}
	if !seen["a"].Equal(first) {
		t.Fatalf("expected first-seen timestamp %v to survive, got %v", first, seen["a"])
	}
}

func TestSQLiteStoreScopesDocuments(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "seen.db")
	keepers, err := NewSQLiteStore(dbPath, "", DocumentName("Keepers"))
	if err != nil {
		t.Fatalf("failed to init sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = keepers.Close() })
	if err := keepers.Merge(context.Background(), core.SeenSet{"1": time.Now()}); err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	_ = keepers.Close()

	standard, err := NewSQLiteStore(dbPath, "", DocumentName("Standard"))
	if err != nil {
		t.Fatalf("failed to init sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = standard.Close() })
	seen, err := standard.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(seen) != 0 {
		t.Fatalf("expected other document to be empty, got %v", seen)
	}
}

func TestSQLiteStoreWrapsLoadErrors(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "seen.db")
	store, err := NewSQLiteStore(dbPath, "", DocumentName("Keepers"))
	if err != nil {
		t.Fatalf("failed to init sqlite store: %v", err)
	}
	_ = store.Close()

	if _, err := store.Load(context.Background()); !errors.Is(err, ErrLoad) {
		t.Fatalf("expected ErrLoad after close, got %v", err)
	}
	if err := store.Merge(context.Background(), core.SeenSet{"x": time.Now()}); !errors.Is(err, ErrMerge) {
		t.Fatalf("expected ErrMerge after close, got %v", err)
	}
}

func TestNewSQLiteStoreRejectsBadTable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "seen.db")
	if _, err := NewSQLiteStore(dbPath, "seen; DROP TABLE x", "doc"); err == nil {
		t.Fatalf("expected invalid table name to be rejected")
	}
}
