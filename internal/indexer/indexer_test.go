package indexer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/vinayprograms/ctxmgr/internal/object"
	"github.com/vinayprograms/ctxmgr/internal/store"
)

func newTestIndexer(t *testing.T) (*Indexer, store.Client) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")
	c, err := store.NewBoltClient(store.BoltConfig{Path: path})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return New(c, nil), c
}

func TestTwoClientsIndexingSameFile(t *testing.T) {
	ix, _ := newTestIndexer(t)
	ctx := context.Background()
	src := object.NewFileSource("FS1", "/home/u/a.ts")

	resultA, docA, err := ix.IndexFile(ctx, src, []byte("console.log(1);"))
	if err != nil {
		t.Fatalf("client A index: %v", err)
	}
	if resultA != ResultCreated {
		t.Fatalf("expected created, got %s", resultA)
	}

	resultB, docB, err := ix.IndexFile(ctx, src, []byte("console.log(1);"))
	if err != nil {
		t.Fatalf("client B index: %v", err)
	}
	if resultB != ResultUnchanged {
		t.Fatalf("expected unchanged, got %s", resultB)
	}
	if docA.ID != docB.ID {
		t.Fatal("both clients must converge on the same id")
	}
}

func TestDiscoverThenReadThenModify(t *testing.T) {
	ix, c := newTestIndexer(t)
	ctx := context.Background()
	src := object.NewFileSource("FS1", "/p/x.md")

	r1, d1, err := ix.DiscoverFile(ctx, src)
	if err != nil || r1 != ResultCreated || d1.Content != nil {
		t.Fatalf("discover: result=%s err=%v content=%v", r1, err, d1.Content)
	}
	firstID := d1.ID

	r2, d2, err := ix.IndexFile(ctx, src, []byte("hello"))
	if err != nil || r2 != ResultUpdated || *d2.Content != "hello" {
		t.Fatalf("first read: result=%s err=%v", r2, err)
	}
	if d2.ID != firstID {
		t.Fatal("id must survive discover->read upgrade")
	}

	r3, d3, err := ix.IndexFile(ctx, src, []byte("hello world"))
	if err != nil || r3 != ResultUpdated || *d3.Content != "hello world" {
		t.Fatalf("second read: result=%s err=%v", r3, err)
	}
	if d3.ID != firstID {
		t.Fatal("id must be stable across every version")
	}

	hist, err := c.History(ctx, firstID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) < 3 {
		t.Fatalf("expected history length >= 3, got %d", len(hist))
	}
}

func TestIndexDeletionThenRevive(t *testing.T) {
	ix, c := newTestIndexer(t)
	ctx := context.Background()
	src := object.NewFileSource("FS1", "/p/y.md")

	_, d1, err := ix.IndexFile(ctx, src, []byte("v1"))
	if err != nil {
		t.Fatalf("initial index: %v", err)
	}

	_, tomb, err := ix.IndexFileDeletion(ctx, src)
	if err != nil {
		t.Fatalf("deletion: %v", err)
	}
	if tomb.Content != nil || tomb.SourceHash != nil {
		t.Fatal("tombstone must null out content and source_hash")
	}
	if tomb.ID != d1.ID {
		t.Fatal("id must survive deletion")
	}

	_, d2, err := ix.IndexFile(ctx, src, []byte("v2"))
	if err != nil {
		t.Fatalf("revive: %v", err)
	}
	if d2.ID != d1.ID {
		t.Fatal("id must be constant across create/delete/revive")
	}
	if *d2.Content != "v2" {
		t.Fatalf("revived content mismatch: %v", *d2.Content)
	}

	hist, _ := c.History(ctx, d1.ID)
	if len(hist) < 3 {
		t.Fatalf("expected history length >= 3, got %d", len(hist))
	}
}

func TestDeletionOfUnknownObjectFails(t *testing.T) {
	ix, _ := newTestIndexer(t)
	src := object.NewFileSource("FS1", "/never/seen.md")
	if _, _, err := ix.IndexFileDeletion(context.Background(), src); err == nil {
		t.Fatal("expected error deleting an unknown object")
	}
}

func TestReindexUnchangedDoesNotGrowHistory(t *testing.T) {
	ix, c := newTestIndexer(t)
	ctx := context.Background()
	src := object.NewFileSource("FS1", "/p/z.md")

	_, d, _ := ix.IndexFile(ctx, src, []byte("same"))
	before, _ := c.History(ctx, d.ID)

	result, _, err := ix.IndexFile(ctx, src, []byte("same"))
	if err != nil {
		t.Fatalf("reindex: %v", err)
	}
	if result != ResultUnchanged {
		t.Fatalf("expected unchanged, got %s", result)
	}
	after, _ := c.History(ctx, d.ID)
	if len(after) != len(before) {
		t.Fatalf("history length changed on unchanged reindex: %d -> %d", len(before), len(after))
	}
}
