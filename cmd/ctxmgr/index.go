package main

import (
	"fmt"
	"os"

	"github.com/vinayprograms/ctxmgr/internal/object"
)

// Run resolves an agent-visible path and indexes it.
func (c *IndexCmd) Run(ctx *Context) error {
	resolved := ctx.rt.resolver.Resolve(c.Path)
	data, err := os.ReadFile(resolved.CanonicalPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", resolved.CanonicalPath, err)
	}

	src := object.NewFileSource(resolved.FilesystemID, resolved.CanonicalPath)
	result, doc, err := ctx.rt.ix.IndexFile(ctx.Context, src, data)
	if err != nil {
		return err
	}
	fmt.Printf("%s id=%s path=%s char_count=%d\n", result, doc.ID, resolved.CanonicalPath, doc.CharCount)
	return nil
}
