package main

import (
	"fmt"

	"github.com/vinayprograms/ctxmgr/internal/session"
)

// Run creates a new session with empty sets.
func (c *CreateCmd) Run(ctx *Context) error {
	eng, err := session.CreateSession(ctx.Context, ctx.rt.store, ctx.rt.log, c.Session, c.SystemPrompt)
	if err != nil {
		return err
	}
	fmt.Printf("created session %s (chat=%s system_prompt=%s)\n", eng.SessionID(), eng.ChatID(), eng.SystemPromptID())
	return nil
}
