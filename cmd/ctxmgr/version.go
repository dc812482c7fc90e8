package main

import "fmt"

// Run prints build-time version information.
func (c *VersionCmd) Run(ctx *Context) error {
	fmt.Printf("ctxmgr %s (commit %s, built %s)\n", version, commit, buildTime)
	return nil
}
