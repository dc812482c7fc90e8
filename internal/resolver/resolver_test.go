package resolver

import "testing"

func workspaceResolver() *Resolver {
	return New("FS_DEFAULT", []Mount{
		{AgentPrefix: "/workspace", CanonicalPrefix: "/home/u/proj", FilesystemID: "FS_HOST"},
		{AgentPrefix: "/workspace/vendor", CanonicalPrefix: "/opt/vendor", FilesystemID: "FS_VENDOR"},
	})
}

func TestLongestPrefixWins(t *testing.T) {
	r := workspaceResolver()
	got := r.Resolve("/workspace/vendor/lib/x.go")
	if got.CanonicalPath != "/opt/vendor/lib/x.go" || got.FilesystemID != "FS_VENDOR" {
		t.Fatalf("expected the longer /workspace/vendor mount to win, got %+v", got)
	}
}

func TestShorterPrefixStillMatchesOutsideLongerOne(t *testing.T) {
	r := workspaceResolver()
	got := r.Resolve("/workspace/src/main.ts")
	if got.CanonicalPath != "/home/u/proj/src/main.ts" || got.FilesystemID != "FS_HOST" {
		t.Fatalf("unexpected resolution: %+v", got)
	}
}

func TestSegmentBoundaryNotRawPrefix(t *testing.T) {
	r := workspaceResolver()
	got := r.Resolve("/workspacex/src/main.ts")
	if got.IsMounted {
		t.Fatalf("/workspacex must not match the /workspace mount, got %+v", got)
	}
	if got.FilesystemID != "FS_DEFAULT" {
		t.Fatalf("unmounted path must use default filesystem id, got %s", got.FilesystemID)
	}
}

func TestExactPrefixMatch(t *testing.T) {
	r := workspaceResolver()
	got := r.Resolve("/workspace")
	if got.CanonicalPath != "/home/u/proj" || !got.IsMounted {
		t.Fatalf("exact prefix match failed: %+v", got)
	}
}

func TestIsWatchable(t *testing.T) {
	r := workspaceResolver()
	if !r.IsWatchable("/workspace/src/main.ts") {
		t.Fatal("mounted path should be watchable")
	}
	if r.IsWatchable("/etc/passwd") {
		t.Fatal("unmounted path should not be watchable")
	}
}

func TestReverseResolve(t *testing.T) {
	r := workspaceResolver()
	agentPath := r.ReverseResolve("/home/u/proj/src/main.ts")
	if agentPath != "/workspace/src/main.ts" {
		t.Fatalf("reverse resolve mismatch: got %s", agentPath)
	}
	// Unknown canonical path falls back unchanged.
	if r.ReverseResolve("/var/log/x") != "/var/log/x" {
		t.Fatal("unrecognized canonical path must pass through unchanged")
	}
}

func TestMountTranslationRoundTrip(t *testing.T) {
	r := workspaceResolver()
	resolved := r.Resolve("/workspace/src/main.ts")
	back := r.ReverseResolve(resolved.CanonicalPath)
	if back != "/workspace/src/main.ts" {
		t.Fatalf("round trip broke: %s", back)
	}
}

func TestCanonicalizePath(t *testing.T) {
	cases := map[string]string{
		"/a/b/":        "/a/b",
		"/a/./b":       "/a/b",
		"/a/../b":      "/b",
		"/a//b":        "/a/b",
		"/":            "/",
		"/a/b/../../c": "/c",
	}
	for in, want := range cases {
		if got := CanonicalizePath(in); got != want {
			t.Errorf("CanonicalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}
