package main

import (
	"fmt"

	"github.com/vinayprograms/ctxmgr/internal/session"
	"github.com/vinayprograms/ctxmgr/internal/tui"
)

// Run prints a resumed session's four id sets, one per line, or opens
// the live bubbletea inspector when --live is set.
func (c *InspectCmd) Run(ctx *Context) error {
	if c.Live {
		model, err := tui.New(ctx.rt.store, ctx.rt.resolver, c.Session, ctx.rt.cfg.Store.Path)
		if err != nil {
			return err
		}
		return model.Run()
	}

	eng, err := session.Resume(ctx.Context, ctx.rt.store, ctx.rt.log, c.Session)
	if err != nil {
		return err
	}
	snap := eng.Snapshot()

	printSet := func(name string, ids []string) {
		fmt.Printf("%s (%d):\n", name, len(ids))
		for _, id := range ids {
			fmt.Printf("  %s\n", id)
		}
	}
	printSet("session_index", snap.SessionIndex)
	printSet("metadata_pool", snap.MetadataPool)
	printSet("active_set", snap.ActiveSet)
	printSet("pinned_set", snap.PinnedSet)
	return nil
}
