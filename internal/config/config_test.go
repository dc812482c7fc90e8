package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewHasSpecDefaults(t *testing.T) {
	cfg := New()
	if cfg.Session.RecentToolcallsPerTurn != 5 {
		t.Fatalf("expected default recent_toolcalls_per_turn=5, got %d", cfg.Session.RecentToolcallsPerTurn)
	}
	if cfg.Session.RecentTurnsWindow != 3 {
		t.Fatalf("expected default recent_turns_window=3, got %d", cfg.Session.RecentTurnsWindow)
	}
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ctxmgr.toml")
	contents := `
[store]
path = "/var/lib/ctxmgr/store.db"

[[mounts]]
agent_prefix = "/workspace"
canonical_prefix = "/home/u/proj"
filesystem_id = "FS_HOST"
writable = true
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Path != "/var/lib/ctxmgr/store.db" {
		t.Fatalf("unexpected store path: %s", cfg.Store.Path)
	}
	if cfg.Session.RecentToolcallsPerTurn != 5 {
		t.Fatal("expected unset fields to keep their default")
	}
	if len(cfg.Mounts) != 1 || cfg.Mounts[0].AgentPrefix != "/workspace" {
		t.Fatalf("unexpected mounts: %+v", cfg.Mounts)
	}
}

func TestEnvOverrideChangesLogLevelOnly(t *testing.T) {
	t.Setenv("CTXMGR_LOG_LEVEL", "DEBUG")
	cfg := New()
	cfg.applyEnvOverrides()
	if cfg.Log.Level != "DEBUG" {
		t.Fatalf("expected env override to set DEBUG, got %s", cfg.Log.Level)
	}
}
