package tracker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vinayprograms/ctxmgr/internal/hashing"
	"github.com/vinayprograms/ctxmgr/internal/indexer"
	"github.com/vinayprograms/ctxmgr/internal/object"
	"github.com/vinayprograms/ctxmgr/internal/resolver"
	"github.com/vinayprograms/ctxmgr/internal/store"
)

func newFixture(t *testing.T) (*Supervisor, *indexer.Indexer, store.Client, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "store.db")
	c, err := store.NewBoltClient(store.BoltConfig{Path: dbPath})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	watchDir := t.TempDir()
	res := resolver.New("FS1", []resolver.Mount{
		{AgentPrefix: "/workspace", CanonicalPrefix: watchDir, FilesystemID: "FS1"},
	})
	ix := indexer.New(c, nil)

	sup, err := New(res, ix, nil)
	if err != nil {
		t.Fatalf("new supervisor: %v", err)
	}
	t.Cleanup(func() { sup.Close() })

	return sup, ix, c, watchDir
}

func TestAttachSkipsUnwatchablePaths(t *testing.T) {
	sup, _, _, watchDir := newFixture(t)
	src := object.NewFileSource("FS_OTHER", filepath.Join(watchDir, "a.txt"))
	if err := sup.Attach("/elsewhere/a.txt", src); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if sup.Watching(src.Path) {
		t.Fatal("expected an unmounted path to be skipped")
	}
}

func TestAttachWatchesMountedPathAndReindexesOnWrite(t *testing.T) {
	sup, ix, c, watchDir := newFixture(t)
	ctx := context.Background()

	filePath := filepath.Join(watchDir, "a.ts")
	if err := os.WriteFile(filePath, []byte("v1"), 0o644); err != nil {
		t.Fatalf("write initial file: %v", err)
	}
	src := object.NewFileSource("FS1", filePath)

	if _, _, err := ix.IndexFile(ctx, src, []byte("v1")); err != nil {
		t.Fatalf("initial index: %v", err)
	}
	if err := sup.Attach("/workspace/a.ts", src); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if !sup.Watching(filePath) {
		t.Fatal("expected watcher attached at the canonical path")
	}

	runCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	go sup.Run(runCtx)

	if err := os.WriteFile(filePath, []byte("v2"), 0o644); err != nil {
		t.Fatalf("rewrite file: %v", err)
	}

	id := hashing.IdentityHash(string(object.TypeFile), src.Map())
	deadline := time.Now().Add(1500 * time.Millisecond)
	for time.Now().Before(deadline) {
		doc, err := c.Get(ctx, id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if doc != nil && doc.Content != nil && *doc.Content == "v2" {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("expected the watcher to reindex the file after it changed on disk")
}
