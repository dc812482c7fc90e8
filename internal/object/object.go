// Package object defines the content-addressed object model: the
// envelope/payload split, the tagged source-binding union, and the
// per-type payload schemas described by the store's wire format.
package object

import (
	"fmt"

	"github.com/vinayprograms/ctxmgr/internal/hashing"
)

// Type discriminates the five object kinds the store ever holds.
type Type string

const (
	TypeFile          Type = "file"
	TypeToolCall      Type = "toolcall"
	TypeChat          Type = "chat"
	TypeSystemPrompt  Type = "system_prompt"
	TypeSession       Type = "session"
)

// Sourced reports whether objects of this type carry a source binding.
func (t Type) Sourced() bool {
	return t == TypeFile
}

// Locked reports whether objects of this type can never be deactivated.
func (t Type) Locked() bool {
	return t == TypeChat || t == TypeSystemPrompt
}

// Infrastructure reports whether this type is forbidden from ever
// appearing in a session's content sets (index/pool/active/pinned).
func (t Type) Infrastructure() bool {
	switch t {
	case TypeChat, TypeSystemPrompt, TypeSession:
		return true
	default:
		return false
	}
}

// SourceType discriminates variants of the source-binding union. The
// union is closed over what this package knows how to hash and track;
// adding a variant (s3, git) means adding a case everywhere this type is
// switched on, per the "tagged unions" design note.
type SourceType string

const (
	SourceFilesystem SourceType = "filesystem"
)

// Source is the tagged union of source bindings. Only one variant is
// populated at a time, selected by Type.
type Source struct {
	Type SourceType `json:"type"`

	// Filesystem variant.
	FilesystemID string `json:"filesystemId,omitempty"`
	Path         string `json:"path,omitempty"`
}

// Map renders the source as the canonical map the hashing package
// expects, with only the fields relevant to Type present. nil receivers
// render as untyped nil, matching "source: null" for unsourced objects.
func (s *Source) Map() any {
	if s == nil {
		return nil
	}
	switch s.Type {
	case SourceFilesystem:
		return map[string]any{
			"type":         string(s.Type),
			"filesystemId": s.FilesystemID,
			"path":         s.Path,
		}
	default:
		return map[string]any{"type": string(s.Type)}
	}
}

// Document is the flat, schemaless wire representation of an object
// version, matching the store's document layout (section 6). Every
// field a type doesn't use is left at its zero value and omitted on
// the wire.
type Document struct {
	// Envelope (identical across all versions of an id).
	ID           string  `json:"xt/id"`
	Type         Type    `json:"type"`
	Source       *Source `json:"source,omitempty"`
	IdentityHash string  `json:"identity_hash"`

	// Mutable payload, common.
	Content     *string `json:"content"`
	SourceHash  *string `json:"source_hash,omitempty"`
	ContentHash string  `json:"content_hash"`

	// file
	FileType  string `json:"file_type,omitempty"`
	CharCount int    `json:"char_count,omitempty"`

	// toolcall
	Tool        string            `json:"tool,omitempty"`
	Args        map[string]any    `json:"args,omitempty"`
	ArgsDisplay string            `json:"args_display,omitempty"`
	Status      string            `json:"status,omitempty"`
	ChatRef     string            `json:"chat_ref,omitempty"`
	FileRefs    []string          `json:"file_refs,omitempty"`

	// chat
	Turns         []Turn   `json:"turns,omitempty"`
	SessionRef    string   `json:"session_ref,omitempty"`
	TurnCount     int      `json:"turn_count,omitempty"`
	ToolCallRefs  []string `json:"toolcall_refs,omitempty"`

	// session
	SessionID       string   `json:"session_id,omitempty"`
	SystemPromptRef string   `json:"system_prompt_ref,omitempty"`
	SessionIndex    []string `json:"session_index,omitempty"`
	MetadataPool    []string `json:"metadata_pool,omitempty"`
	ActiveSet       []string `json:"active_set,omitempty"`
	PinnedSet       []string `json:"pinned_set,omitempty"`
	MetadataHash    string   `json:"metadata_hash,omitempty"`
}

// Turn is one exchange in a chat object's turn history.
type Turn struct {
	User       string   `json:"user"`
	Assistant  string   `json:"assistant,omitempty"`
	Model      string   `json:"model,omitempty"`
	ToolCallIDs []string `json:"tool_call_ids,omitempty"`
}

// payloadMap renders the mutable payload as the map the hashing
// package's ContentHash operates over. Field names mirror the JSON tags
// above exactly, since content_hash must be byte-stable across processes
// that all build this map the same way.
func (d *Document) payloadMap() map[string]any {
	m := map[string]any{
		"content": contentOrNull(d.Content),
	}
	if d.SourceHash != nil {
		m["source_hash"] = *d.SourceHash
	} else {
		m["source_hash"] = nil
	}

	switch d.Type {
	case TypeFile:
		m["file_type"] = d.FileType
		m["char_count"] = d.CharCount
	case TypeToolCall:
		m["tool"] = d.Tool
		m["args"] = d.Args
		if d.ArgsDisplay != "" {
			m["args_display"] = d.ArgsDisplay
		}
		m["status"] = d.Status
		m["chat_ref"] = d.ChatRef
		if len(d.FileRefs) > 0 {
			m["file_refs"] = d.FileRefs
		}
	case TypeChat:
		m["turns"] = turnsToAny(d.Turns)
		m["session_ref"] = d.SessionRef
		m["turn_count"] = d.TurnCount
		m["toolcall_refs"] = d.ToolCallRefs
	case TypeSession:
		m["session_id"] = d.SessionID
		m["chat_ref"] = d.ChatRef
		m["system_prompt_ref"] = d.SystemPromptRef
		m["session_index"] = d.SessionIndex
		m["metadata_pool"] = d.MetadataPool
		m["active_set"] = d.ActiveSet
		m["pinned_set"] = d.PinnedSet
	}
	return m
}

func turnsToAny(turns []Turn) []any {
	out := make([]any, len(turns))
	for i, t := range turns {
		out[i] = map[string]any{
			"user":          t.User,
			"assistant":     t.Assistant,
			"model":         t.Model,
			"tool_call_ids": t.ToolCallIDs,
		}
	}
	return out
}

func contentOrNull(c *string) any {
	if c == nil {
		return nil
	}
	return *c
}

// RecomputeContentHash sets d.ContentHash from the current mutable
// payload, excluding source_hash and content_hash themselves.
func (d *Document) RecomputeContentHash() {
	d.ContentHash = hashing.ContentHash(d.payloadMap())
}

// RecomputeIdentityHash sets d.IdentityHash from the envelope. Callers
// use this once, at creation; the envelope never changes afterward.
func (d *Document) RecomputeIdentityHash(assignedID string) {
	if d.Type.Sourced() {
		d.IdentityHash = hashing.IdentityHash(string(d.Type), d.Source.Map())
	} else {
		d.IdentityHash = hashing.UnsourcedIdentityHash(string(d.Type), assignedID)
	}
}

// ValidateEnvelope checks invariant 2 (identity_hash matches id/type)
// for a single document in isolation.
func (d *Document) ValidateEnvelope() error {
	if d.Type.Sourced() {
		want := hashing.IdentityHash(string(d.Type), d.Source.Map())
		if d.IdentityHash != want {
			return fmt.Errorf("object %s: identity_hash mismatch for sourced type %s", d.ID, d.Type)
		}
		if d.ID != d.IdentityHash {
			return fmt.Errorf("object %s: sourced id must equal identity_hash", d.ID)
		}
	} else {
		want := hashing.UnsourcedIdentityHash(string(d.Type), d.ID)
		if d.IdentityHash != want {
			return fmt.Errorf("object %s: identity_hash mismatch for unsourced type %s", d.ID, d.Type)
		}
	}
	return nil
}

// SameEnvelope reports whether two versions of the same id carry a
// byte-identical envelope (invariant 1).
func SameEnvelope(a, b *Document) bool {
	if a.ID != b.ID || a.Type != b.Type || a.IdentityHash != b.IdentityHash {
		return false
	}
	switch {
	case a.Source == nil && b.Source == nil:
		return true
	case a.Source == nil || b.Source == nil:
		return false
	default:
		return *a.Source == *b.Source
	}
}

// IsStub reports whether this version carries discovered-but-unread
// state: no content, no source hash.
func (d *Document) IsStub() bool {
	return d.Content == nil && d.SourceHash == nil
}
