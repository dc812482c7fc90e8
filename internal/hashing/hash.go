// Package hashing provides the three canonical hash functions that tie
// object identity, source bytes, and payload content together across
// independent clients of the store.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Removed from a payload before it is content-hashed. Cloning keeps the
// caller's map untouched.
var contentHashExcluded = map[string]bool{
	"source_hash":  true,
	"content_hash": true,
}

// IdentityHash derives the stable id for an object.
//
// It hashes the canonical JSON of {type, source} and is meant for sourced
// objects. Unsourced objects use UnsourcedIdentityHash instead.
func IdentityHash(objType string, source any) string {
	payload := map[string]any{
		"type":   objType,
		"source": source,
	}
	return sha256Hex(canonicalJSON(payload))
}

// UnsourcedIdentityHash hashes type||assignedID for objects that are not
// bound to an external source.
func UnsourcedIdentityHash(objType, assignedID string) string {
	h := sha256.New()
	h.Write([]byte(objType))
	h.Write([]byte(assignedID))
	return hex.EncodeToString(h.Sum(nil))
}

// SourceHash hashes the raw bytes read from an external source. Callers
// pass nil when the source could not be read or the object is a
// discovery stub; SourceHash returns "" in that case so the zero value
// round-trips as "no hash" rather than the hash of an empty byte slice.
func SourceHash(raw []byte) string {
	if raw == nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// ContentHash hashes the mutable payload with source_hash and
// content_hash removed. payload is never mutated: a shallow clone is
// hashed instead.
func ContentHash(payload map[string]any) string {
	clone := make(map[string]any, len(payload))
	for k, v := range payload {
		if contentHashExcluded[k] {
			continue
		}
		clone[k] = v
	}
	return sha256Hex(canonicalJSON(clone))
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// canonicalJSON serializes v with object keys sorted at every depth and
// no insignificant whitespace. encoding/json already sorts map[string]any
// keys and emits no extra whitespace with Marshal, but it does not sort
// keys of json.RawMessage or struct-derived maps consistently across
// nested values produced by intermediate marshal/unmarshal round-trips,
// so values are normalized through a generic tree walk first.
func canonicalJSON(v any) []byte {
	normalized := normalize(v)
	// json.Marshal sorts map keys lexicographically and emits compact
	// output.
	out, err := json.Marshal(normalized)
	if err != nil {
		// Hashing must never panic on caller data; fall back to a
		// deterministic representation of the error itself so a bug
		// here is visible in the resulting hash rather than silently
		// swallowed.
		out = []byte(`"` + err.Error() + `"`)
	}
	return out
}

// normalize walks v, copying every map[string]any and []any level and
// recursing into their values. Values of any other type, including
// structs and other map or slice types, are passed through unchanged.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			out[k] = normalize(sub)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, sub := range val {
			out[i] = normalize(sub)
		}
		return out
	default:
		return v
	}
}

// SortedKeys returns m's keys in lexicographic order, the same order
// canonicalJSON emits them in.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
