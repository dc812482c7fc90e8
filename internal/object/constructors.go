package object

import (
	"path/filepath"
	"strings"
)

// ToolCall status values (section 3 payload table).
const (
	StatusOK   = "ok"
	StatusFail = "fail"
)

// FileTypeOf derives the file_type payload field from a canonical path
// the same way a discovery stub and a full read must agree on it:
// lower-cased extension without the leading dot, or "" for extensionless
// files.
func FileTypeOf(path string) string {
	ext := filepath.Ext(path)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// NewFileSource builds the filesystem source binding. Canonicalization
// of path (no trailing slash, no ./.. segments) is the resolver's job;
// this constructor trusts its input.
func NewFileSource(filesystemID, canonicalPath string) *Source {
	return &Source{Type: SourceFilesystem, FilesystemID: filesystemID, Path: canonicalPath}
}

// NewFileDocument assembles a fully-read file object's payload. id must
// already be identityHash("file", source); callers get it from
// hashing.IdentityHash via the indexer so id derivation stays in one
// place.
func NewFileDocument(id string, source *Source, content string, sourceHash string) *Document {
	d := &Document{
		ID:        id,
		Type:      TypeFile,
		Source:    source,
		Content:   &content,
		FileType:  FileTypeOf(source.Path),
		CharCount: len(content),
	}
	if sourceHash != "" {
		d.SourceHash = &sourceHash
	}
	d.RecomputeIdentityHash(id)
	d.RecomputeContentHash()
	return d
}

// NewFileStub assembles a discovery stub: known to exist, never read.
func NewFileStub(id string, source *Source) *Document {
	d := &Document{
		ID:        id,
		Type:      TypeFile,
		Source:    source,
		Content:   nil,
		FileType:  FileTypeOf(source.Path),
		CharCount: 0,
	}
	d.RecomputeIdentityHash(id)
	d.RecomputeContentHash()
	return d
}

// NewFileTombstone assembles a deletion version: envelope and identity
// preserved, content and source_hash cleared.
func NewFileTombstone(prev *Document) *Document {
	d := &Document{
		ID:        prev.ID,
		Type:      TypeFile,
		Source:    prev.Source,
		Content:   nil,
		FileType:  prev.FileType,
		CharCount: 0,
	}
	d.IdentityHash = prev.IdentityHash
	d.RecomputeContentHash()
	return d
}

// ToolCallID is the deterministic unsourced id scheme for tool calls:
// the provider-supplied call id verbatim.
func ToolCallID(providerCallID string) string { return providerCallID }

// ChatID, SessionDocID and SystemPromptID mint the deterministic ids for
// the three per-session infrastructure objects.
func ChatID(sessionID string) string         { return "chat:" + sessionID }
func SessionDocID(sessionID string) string   { return "session:" + sessionID }
func SystemPromptID(sessionID string) string { return "system_prompt:" + sessionID }

// NewToolCallDocument builds a tool-call object's first version.
func NewToolCallDocument(providerCallID, chatRef, tool string, args map[string]any, argsDisplay, content, status string) *Document {
	d := &Document{
		ID:      ToolCallID(providerCallID),
		Type:    TypeToolCall,
		Content: &content,
		Tool:    tool,
		Args:    args,
		ArgsDisplay: argsDisplay,
		Status:  status,
		ChatRef: chatRef,
	}
	d.RecomputeIdentityHash(d.ID)
	d.RecomputeContentHash()
	return d
}

// NewChatDocument builds an empty chat object for a freshly created
// session.
func NewChatDocument(sessionID string) *Document {
	empty := ""
	d := &Document{
		ID:           ChatID(sessionID),
		Type:         TypeChat,
		Content:      &empty,
		SessionRef:   SessionDocID(sessionID),
		Turns:        []Turn{},
		TurnCount:    0,
		ToolCallRefs: []string{},
	}
	d.RecomputeIdentityHash(d.ID)
	d.RecomputeContentHash()
	return d
}

// NewSystemPromptDocument builds the system_prompt object. It is locked:
// no payload fields beyond content.
func NewSystemPromptDocument(sessionID, text string) *Document {
	d := &Document{
		ID:      SystemPromptID(sessionID),
		Type:    TypeSystemPrompt,
		Content: &text,
	}
	d.RecomputeIdentityHash(d.ID)
	d.RecomputeContentHash()
	return d
}

// NewSessionDocument builds the session object's initial, empty-sets
// version.
func NewSessionDocument(sessionID string) *Document {
	d := &Document{
		ID:              SessionDocID(sessionID),
		Type:            TypeSession,
		Content:         nil,
		SessionID:       sessionID,
		ChatRef:         ChatID(sessionID),
		SystemPromptRef: SystemPromptID(sessionID),
		SessionIndex:    []string{},
		MetadataPool:    []string{},
		ActiveSet:       []string{},
		PinnedSet:       []string{},
	}
	d.RecomputeIdentityHash(d.ID)
	d.RecomputeContentHash()
	return d
}
