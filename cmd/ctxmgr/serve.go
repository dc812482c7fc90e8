package main

import (
	"fmt"

	"github.com/vinayprograms/ctxmgr/internal/object"
	"github.com/vinayprograms/ctxmgr/internal/session"
	"github.com/vinayprograms/ctxmgr/internal/tracker"
)

// Run resumes a session, attaches watchers for every watchable sourced
// object in its session_index, and blocks dispatching fsnotify events
// into the indexer until the process is interrupted.
func (c *ServeCmd) Run(ctx *Context) error {
	eng, err := session.Resume(ctx.Context, ctx.rt.store, ctx.rt.log, c.Session)
	if err != nil {
		return err
	}

	sup, err := tracker.New(ctx.rt.resolver, ctx.rt.ix, ctx.rt.log)
	if err != nil {
		return fmt.Errorf("start tracker: %w", err)
	}
	defer sup.Close()

	docs, err := eng.ReferencedDocuments(ctx.Context)
	if err != nil {
		return err
	}

	attached := 0
	for _, doc := range docs {
		if doc.Type != object.TypeFile || doc.Source == nil {
			continue
		}
		agentPath := ctx.rt.resolver.ReverseResolve(doc.Source.Path)
		if err := sup.Attach(agentPath, doc.Source); err != nil {
			ctx.rt.log.WatchError(doc.Source.Path, err)
			continue
		}
		if sup.Watching(doc.Source.Path) {
			attached++
		}
	}

	fmt.Printf("watching %d sourced objects for session %s; Ctrl-C to stop\n", attached, eng.SessionID())
	sup.Run(ctx.Context)
	return nil
}
