package hashing

import "testing"

func TestIdentityHashDeterministic(t *testing.T) {
	source := map[string]any{
		"type":         "filesystem",
		"filesystemId": "FS1",
		"path":         "/home/u/a.ts",
	}
	a := IdentityHash("file", source)
	b := IdentityHash("file", source)
	if a != b {
		t.Fatalf("identity hash not stable: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64-char hex digest, got %d chars", len(a))
	}
}

func TestIdentityHashKeyOrderIndependent(t *testing.T) {
	s1 := map[string]any{"type": "filesystem", "filesystemId": "FS1", "path": "/a"}
	s2 := map[string]any{"path": "/a", "type": "filesystem", "filesystemId": "FS1"}
	if IdentityHash("file", s1) != IdentityHash("file", s2) {
		t.Fatal("identity hash must not depend on map iteration/insertion order")
	}
}

func TestIdentityHashDistinguishesSources(t *testing.T) {
	s1 := map[string]any{"type": "filesystem", "filesystemId": "FS1", "path": "/a"}
	s2 := map[string]any{"type": "filesystem", "filesystemId": "FS2", "path": "/a"}
	if IdentityHash("file", s1) == IdentityHash("file", s2) {
		t.Fatal("different sources must not collide")
	}
}

func TestUnsourcedIdentityHash(t *testing.T) {
	a := UnsourcedIdentityHash("chat", "chat:abc")
	b := UnsourcedIdentityHash("chat", "chat:abc")
	if a != b {
		t.Fatal("unsourced identity hash must be stable")
	}
	if UnsourcedIdentityHash("chat", "chat:abc") == UnsourcedIdentityHash("session", "chat:abc") {
		t.Fatal("type must be part of the unsourced hash input")
	}
}

func TestSourceHashNilVsEmpty(t *testing.T) {
	if SourceHash(nil) != "" {
		t.Fatal("nil raw bytes must hash to empty string (unreadable/stub)")
	}
	if SourceHash([]byte{}) == "" {
		t.Fatal("empty-but-present bytes must still produce a hash")
	}
}

func TestSourceHashStableAcrossCalls(t *testing.T) {
	raw := []byte("console.log(1);")
	if SourceHash(raw) != SourceHash(raw) {
		t.Fatal("source hash must be deterministic")
	}
}

func TestContentHashExcludesHashFields(t *testing.T) {
	p1 := map[string]any{
		"content":      "hello",
		"source_hash":  "aaa",
		"content_hash": "should-be-ignored",
		"char_count":   5,
	}
	p2 := map[string]any{
		"content":      "hello",
		"source_hash":  "bbb", // different source_hash
		"content_hash": "different-again",
		"char_count":   5,
	}
	if ContentHash(p1) != ContentHash(p2) {
		t.Fatal("content hash must not depend on source_hash/content_hash")
	}
}

func TestContentHashDoesNotMutateCaller(t *testing.T) {
	p := map[string]any{
		"content":      "hello",
		"source_hash":  "aaa",
		"content_hash": "bbb",
	}
	_ = ContentHash(p)
	if _, ok := p["source_hash"]; !ok {
		t.Fatal("ContentHash must clone, not mutate, the caller's payload")
	}
	if _, ok := p["content_hash"]; !ok {
		t.Fatal("ContentHash must clone, not mutate, the caller's payload")
	}
}

func TestContentHashSensitiveToOtherFields(t *testing.T) {
	p1 := map[string]any{"content": "hello"}
	p2 := map[string]any{"content": "hello world"}
	if ContentHash(p1) == ContentHash(p2) {
		t.Fatal("content hash must change when mutable payload changes")
	}
}
