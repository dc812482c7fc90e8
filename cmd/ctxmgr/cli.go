// Package main is the entry point for the ctxmgr CLI.
package main

import "github.com/alecthomas/kong"

// CLI defines the command-line interface.
type CLI struct {
	Config string `help:"Config file path" default:"ctxmgr.toml"`

	Create  CreateCmd  `cmd:"" help:"Create a new session"`
	Resume  ResumeCmd  `cmd:"" help:"Resume a session and reconcile sourced objects"`
	Index   IndexCmd   `cmd:"" help:"Index a file by its agent-visible path"`
	Inspect InspectCmd `cmd:"" help:"Show a session's three-tier sets"`
	Serve   ServeCmd   `cmd:"" help:"Run the tracker supervisor watch loop"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// CreateCmd creates a brand-new session.
type CreateCmd struct {
	Session      string `arg:"" help:"Session id"`
	SystemPrompt string `help:"System prompt text" default:""`
}

// ResumeCmd resumes an existing session and reconciles its sourced
// objects against the filesystem.
type ResumeCmd struct {
	Session string `arg:"" help:"Session id"`
}

// IndexCmd indexes a single file through the resolver and indexer.
type IndexCmd struct {
	Path string `arg:"" help:"Agent-visible path to index"`
}

// InspectCmd prints a session's session_index/metadata_pool/active_set/
// pinned_set, or watches it live with --live.
type InspectCmd struct {
	Session string `arg:"" help:"Session id"`
	Live    bool   `help:"Open an interactive, auto-refreshing inspector"`
}

// ServeCmd runs the tracker supervisor's watch loop for a session until
// interrupted.
type ServeCmd struct {
	Session string `arg:"" help:"Session id"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func kongVars() kong.Vars {
	return kong.Vars{
		"version": version,
	}
}
