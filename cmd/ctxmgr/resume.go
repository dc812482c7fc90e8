package main

import (
	"fmt"
	"os"

	"github.com/vinayprograms/ctxmgr/internal/object"
	"github.com/vinayprograms/ctxmgr/internal/session"
)

// Run resumes a session, batch-fetches its referenced objects, and
// re-runs the indexer against every sourced object whose source is
// still reachable on disk. Orphaned sources are left at their latest
// version, per the resume contract.
func (c *ResumeCmd) Run(ctx *Context) error {
	eng, err := session.Resume(ctx.Context, ctx.rt.store, ctx.rt.log, c.Session)
	if err != nil {
		return err
	}

	docs, err := eng.ReferencedDocuments(ctx.Context)
	if err != nil {
		return fmt.Errorf("batch-fetch session_index: %w", err)
	}

	reconciled, orphaned := 0, 0
	for _, doc := range docs {
		if doc.Type != object.TypeFile || doc.Source == nil {
			continue
		}
		data, err := os.ReadFile(doc.Source.Path)
		if err != nil {
			orphaned++
			continue
		}
		if _, _, err := ctx.rt.ix.IndexFile(ctx.Context, doc.Source, data); err != nil {
			return fmt.Errorf("reindex %s: %w", doc.ID, err)
		}
		reconciled++
	}

	snap := eng.Snapshot()
	fmt.Printf("resumed session %s: index=%d pool=%d active=%d pinned=%d (reconciled=%d orphaned=%d)\n",
		eng.SessionID(), len(snap.SessionIndex), len(snap.MetadataPool), len(snap.ActiveSet), len(snap.PinnedSet),
		reconciled, orphaned)
	return nil
}
