package seenset

import (
	"context"
	"testing"
	"time"

	"github.com/bakkerme/salewatch/internal/core"
)

func TestBadgerStoreMergeIsAdditive(t *testing.T) {
	store, err := NewBadgerStore(t.TempDir(), DocumentName("Keepers"))
	if err != nil {
		t.Fatalf("failed to open badger store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	first := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.Merge(context.Background(), core.SeenSet{"5": first}); err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if err := store.Merge(context.Background(), core.SeenSet{"5": first.Add(time.Hour), "7": first}); err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	seen, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(seen) != 2 || !seen.Has("5") || !seen.Has("7") {
		t.Fatalf("expected keys 5 and 7, got %v", seen)
	}
	if !seen["5"].Equal(first) {
		t.Fatalf("expected first-seen timestamp to be kept, got %v", seen["5"])
	}
}

func TestBadgerStoreIgnoresOtherDocuments(t *testing.T) {
	dir := t.TempDir()
	store, err := NewBadgerStore(dir, DocumentName("Keepers"))
	if err != nil {
		t.Fatalf("failed to open badger store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	other := &BadgerStore{db: store.db, prefix: []byte(DocumentName("Standard") + "/")}
	if err := other.Merge(context.Background(), core.SeenSet{"x": time.Now()}); err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	seen, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(seen) != 0 {
		t.Fatalf("expected no keys from another document, got %v", seen)
	}
}
