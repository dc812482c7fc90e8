// Package resolver maps agent-visible paths to canonical paths and
// filesystem identifiers through a configured, longest-prefix mount
// table.
package resolver

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sort"
	"strings"
)

// Mount describes one translation rule between an agent-visible prefix
// and a canonical, host-visible prefix.
type Mount struct {
	AgentPrefix     string
	CanonicalPrefix string
	FilesystemID    string
	Writable        bool
}

// Resolved is the result of translating an agent-visible path.
type Resolved struct {
	CanonicalPath string
	FilesystemID  string
	IsMounted     bool
}

// Resolver holds the configured mount table and default filesystem id.
type Resolver struct {
	defaultFilesystemID string
	mounts              []Mount
}

// New builds a Resolver. Mounts are sorted once, longest AgentPrefix
// first, so Resolve and IsWatchable never have to re-sort on the hot
// path.
func New(defaultFilesystemID string, mounts []Mount) *Resolver {
	sorted := make([]Mount, len(mounts))
	copy(sorted, mounts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].AgentPrefix) > len(sorted[j].AgentPrefix)
	})
	return &Resolver{defaultFilesystemID: defaultFilesystemID, mounts: sorted}
}

// Resolve translates an agent-visible path to its canonical form and
// filesystem id, using the longest matching mount prefix. Matching
// respects path-segment boundaries: "/workspace" matches "/workspace/src"
// but not "/workspacex".
func (r *Resolver) Resolve(agentPath string) Resolved {
	for _, m := range r.mounts {
		if hasPathPrefix(agentPath, m.AgentPrefix) {
			return Resolved{
				CanonicalPath: substitutePrefix(agentPath, m.AgentPrefix, m.CanonicalPrefix),
				FilesystemID:  m.FilesystemID,
				IsMounted:     true,
			}
		}
	}
	return Resolved{CanonicalPath: agentPath, FilesystemID: r.defaultFilesystemID, IsMounted: false}
}

// ReverseResolve translates a canonical path back to its agent-visible
// form, for display only. Falls back to the canonical path unchanged
// when no mount's canonical prefix matches.
func (r *Resolver) ReverseResolve(canonicalPath string) string {
	var best *Mount
	for i := range r.mounts {
		m := &r.mounts[i]
		if hasPathPrefix(canonicalPath, m.CanonicalPrefix) {
			if best == nil || len(m.CanonicalPrefix) > len(best.CanonicalPrefix) {
				best = m
			}
		}
	}
	if best == nil {
		return canonicalPath
	}
	return substitutePrefix(canonicalPath, best.CanonicalPrefix, best.AgentPrefix)
}

// IsWatchable reports whether a path's canonical form is host-visible
// and therefore eligible for a file-change subscription.
func (r *Resolver) IsWatchable(agentPath string) bool {
	return r.Resolve(agentPath).IsMounted
}

// hasPathPrefix reports whether prefix matches path at a path-segment
// boundary: either path == prefix, or path continues with "/" right
// after prefix. Mirrors the rule from filepath matching without
// depending on filepath.Clean, since paths here are already expected to
// be canonical (no trailing slash except root).
func hasPathPrefix(path, prefix string) bool {
	if prefix == "" {
		return false
	}
	if prefix == "/" {
		return strings.HasPrefix(path, "/")
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	rest := path[len(prefix):]
	return rest == "" || strings.HasPrefix(rest, "/")
}

// substitutePrefix swaps a matched prefix for its counterpart and
// normalizes the result so it never ends in a trailing slash (unless the
// whole path is root).
func substitutePrefix(path, from, to string) string {
	rest := path[len(from):]
	out := to + rest
	if len(out) > 1 && strings.HasSuffix(out, "/") {
		out = strings.TrimSuffix(out, "/")
	}
	return out
}

// DefaultFilesystemID derives the default filesystem identifier
// deterministically from a machine-stable input, per section 4.2: a
// machine-identity file if one is readable, otherwise a hash of the
// hostname. The value is trusted by peers without verification.
func DefaultFilesystemID(machineIDPath string) string {
	if machineIDPath != "" {
		if data, err := os.ReadFile(machineIDPath); err == nil {
			if id := strings.TrimSpace(string(data)); id != "" {
				return hashString(id)
			}
		}
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown-host"
	}
	return hashString(host)
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// CanonicalizePath normalizes an absolute path per section 6: no
// trailing slashes (except root), no "." or ".." segments, no empty
// segments.
func CanonicalizePath(path string) string {
	if path == "" {
		return "/"
	}
	absolute := strings.HasPrefix(path, "/")
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		switch p {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, p)
		}
	}
	joined := strings.Join(out, "/")
	if absolute {
		return "/" + joined
	}
	return joined
}
