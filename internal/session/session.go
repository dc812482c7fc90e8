// Package session implements the three-tier session engine: session
// index ⊇ metadata pool ⊇ active set, plus the pinned subset of the
// pool. It owns activation/deactivation/pin semantics, the auto-collapse
// window, and persistence of the session document.
package session

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vinayprograms/ctxmgr/internal/hashing"
	"github.com/vinayprograms/ctxmgr/internal/logging"
	"github.com/vinayprograms/ctxmgr/internal/object"
	"github.com/vinayprograms/ctxmgr/internal/store"
)

// Defaults for the auto-collapse window (section 4.5).
const (
	DefaultRecentToolcallsPerTurn = 5
	DefaultRecentTurnsWindow      = 3
)

// Result is the uniform outcome shape every public operation returns;
// nothing in this package raises an error for ordinary precondition
// failures, per section 7's "no exception for control flow".
type Result struct {
	OK      bool
	Message string
	ID      string
}

func ok(id string) Result           { return Result{OK: true, ID: id} }
func fail(msg string) Result        { return Result{OK: false, Message: msg} }
func failf(f string, a ...any) Result { return fail(fmt.Sprintf(f, a...)) }

// Engine is the runtime state of one session: the four id sets plus
// enough identity to persist and resume them. It is owned by a single
// caller; the mutex guards against accidental concurrent calls rather
// than expressing any intended parallelism (section 5: one session, one
// owner).
type Engine struct {
	store store.Client
	log   *logging.Logger

	mu sync.Mutex

	sessionID    string
	sessionDocID string
	chatID       string
	sysPromptID  string

	index  []string
	pool   []string
	active []string
	pinned []string

	recentToolcallsPerTurn int
	recentTurnsWindow      int
}

// SessionID returns the session identifier this engine manages.
func (e *Engine) SessionID() string { return e.sessionID }

// ChatID, SystemPromptID and SessionDocID return the three
// infrastructure object ids bound to this session.
func (e *Engine) ChatID() string         { return e.chatID }
func (e *Engine) SystemPromptID() string { return e.sysPromptID }
func (e *Engine) SessionDocID() string   { return e.sessionDocID }

// SetAutoCollapseWindow overrides the default auto-collapse parameters.
func (e *Engine) SetAutoCollapseWindow(toolcallsPerTurn, turnsWindow int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recentToolcallsPerTurn = toolcallsPerTurn
	e.recentTurnsWindow = turnsWindow
}

// Snapshot is a read-only copy of the four sets, safe to hand to a
// renderer or test without holding the engine's lock.
type Snapshot struct {
	SessionIndex []string
	MetadataPool []string
	ActiveSet    []string
	PinnedSet    []string
}

// Snapshot returns a copy of the engine's current sets.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		SessionIndex: append([]string(nil), e.index...),
		MetadataPool: append([]string(nil), e.pool...),
		ActiveSet:    append([]string(nil), e.active...),
		PinnedSet:    append([]string(nil), e.pinned...),
	}
}

// CreateSession creates the chat, system_prompt and session objects for
// a brand-new session id, with all sets empty. Fails if the id is
// already in use.
func CreateSession(ctx context.Context, client store.Client, log *logging.Logger, sessionID, systemPromptText string) (*Engine, error) {
	docID := object.SessionDocID(sessionID)
	existing, err := client.Get(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("createSession: checking existing: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("createSession: session %s already exists", sessionID)
	}

	chat := object.NewChatDocument(sessionID)
	sysPrompt := object.NewSystemPromptDocument(sessionID, systemPromptText)
	sess := object.NewSessionDocument(sessionID)

	for _, doc := range []*object.Document{chat, sysPrompt, sess} {
		h, err := client.Put(ctx, doc)
		if err != nil {
			return nil, fmt.Errorf("createSession: put %s: %w", doc.ID, err)
		}
		if err := client.AwaitTx(ctx, h); err != nil {
			return nil, fmt.Errorf("createSession: await %s: %w", doc.ID, err)
		}
	}

	e := newEngine(client, log, sessionID, sess.ID, chat.ID, sysPrompt.ID)
	e.log.Info("session_created", map[string]any{"session_id": sessionID})
	return e, nil
}

func newEngine(client store.Client, log *logging.Logger, sessionID, sessionDocID, chatID, sysPromptID string) *Engine {
	if log == nil {
		log = logging.Default
	}
	return &Engine{
		store:                  client,
		log:                    log.WithComponent("session").WithSession(sessionID),
		sessionID:              sessionID,
		sessionDocID:           sessionDocID,
		chatID:                 chatID,
		sysPromptID:            sysPromptID,
		index:                  []string{},
		pool:                   []string{},
		active:                 []string{},
		pinned:                 []string{},
		recentToolcallsPerTurn: DefaultRecentToolcallsPerTurn,
		recentTurnsWindow:      DefaultRecentTurnsWindow,
	}
}

// Encounter adds objId to the session_index. Idempotent: re-encountering
// an already-indexed id returns OK without writing a new session
// version. Infrastructure objects (invariant 5) are refused.
func (e *Engine) Encounter(ctx context.Context, objID string) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if contains(e.index, objID) {
		return ok(objID), nil
	}
	doc, err := e.store.Get(ctx, objID)
	if err != nil {
		return Result{}, err
	}
	if doc != nil && doc.Type.Infrastructure() {
		return failf("object is infrastructure type: %s", objID), nil
	}
	candidate := append(append([]string(nil), e.index...), objID)
	if err := e.persistCandidate(ctx, candidate, e.pool, e.active, e.pinned); err != nil {
		return Result{}, err
	}
	e.index = candidate
	return ok(objID), nil
}

// PromoteToPool adds objId to the metadata pool. objId must already be
// in the session_index and must name a content type, never an
// infrastructure object (invariant 5).
func (e *Engine) PromoteToPool(ctx context.Context, objID string) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !contains(e.index, objID) {
		return failf("object not in session_index: %s", objID), nil
	}
	doc, err := e.store.Get(ctx, objID)
	if err != nil {
		return Result{}, err
	}
	if doc == nil {
		return failf("unknown object: %s", objID), nil
	}
	if doc.Type.Infrastructure() {
		return failf("object is infrastructure type: %s", objID), nil
	}
	if contains(e.pool, objID) {
		return ok(objID), nil
	}
	candidate := append(append([]string(nil), e.pool...), objID)
	if err := e.persistCandidate(ctx, e.index, candidate, e.active, e.pinned); err != nil {
		return Result{}, err
	}
	e.pool = candidate
	return ok(objID), nil
}

// Activate adds objId to the active set. Requires pool membership and
// non-null content; fails with "Content unavailable" for a stub or
// deleted object, matching the ContentUnavailable error kind verbatim.
func (e *Engine) Activate(ctx context.Context, objID string) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !contains(e.pool, objID) {
		return failf("object not in metadata_pool: %s", objID), nil
	}
	doc, err := e.store.Get(ctx, objID)
	if err != nil {
		return Result{}, err
	}
	if doc == nil {
		return failf("unknown object: %s", objID), nil
	}
	if doc.Type.Locked() {
		return failf("object is locked: %s", objID), nil
	}
	if doc.Content == nil {
		return fail("Content unavailable"), nil
	}
	if contains(e.active, objID) {
		return ok(objID), nil
	}
	candidate := append(append([]string(nil), e.active...), objID)
	if err := e.persistCandidate(ctx, e.index, e.pool, candidate, e.pinned); err != nil {
		return Result{}, err
	}
	e.active = candidate
	return ok(objID), nil
}

// Deactivate removes objId from the active set. Fails for locked types
// (chat, system_prompt); the object remains in the pool either way.
func (e *Engine) Deactivate(ctx context.Context, objID string) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !contains(e.active, objID) {
		return failf("object not active: %s", objID), nil
	}
	doc, err := e.store.Get(ctx, objID)
	if err != nil {
		return Result{}, err
	}
	if doc != nil && doc.Type.Locked() {
		return failf("object is locked: %s", objID), nil
	}
	candidate := remove(e.active, objID)
	if err := e.persistCandidate(ctx, e.index, e.pool, candidate, e.pinned); err != nil {
		return Result{}, err
	}
	e.active = candidate
	return ok(objID), nil
}

// Pin adds objId to the pinned set, exempting it from auto-collapse.
func (e *Engine) Pin(ctx context.Context, objID string) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !contains(e.pool, objID) {
		return failf("object not in metadata_pool: %s", objID), nil
	}
	if contains(e.pinned, objID) {
		return ok(objID), nil
	}
	candidate := append(append([]string(nil), e.pinned...), objID)
	if err := e.persistCandidate(ctx, e.index, e.pool, e.active, candidate); err != nil {
		return Result{}, err
	}
	e.pinned = candidate
	return ok(objID), nil
}

// Unpin removes objId from the pinned set.
func (e *Engine) Unpin(ctx context.Context, objID string) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !contains(e.pinned, objID) {
		return ok(objID), nil
	}
	candidate := remove(e.pinned, objID)
	if err := e.persistCandidate(ctx, e.index, e.pool, e.active, candidate); err != nil {
		return Result{}, err
	}
	e.pinned = candidate
	return ok(objID), nil
}

// ComputeKeepSet returns the union of the last toolcallsPerTurn tool-call
// ids from each of the last turnsWindow turns.
func ComputeKeepSet(turns []object.Turn, toolcallsPerTurn, turnsWindow int) map[string]bool {
	keep := make(map[string]bool)
	start := len(turns) - turnsWindow
	if start < 0 {
		start = 0
	}
	for _, turn := range turns[start:] {
		ids := turn.ToolCallIDs
		from := len(ids) - toolcallsPerTurn
		if from < 0 {
			from = 0
		}
		for _, id := range ids[from:] {
			keep[id] = true
		}
	}
	return keep
}

// RecomputeAutoCollapse drops any non-pinned, active tool-call object
// that has fallen outside the keep window. Files are never auto-
// collapsed; only explicit Deactivate removes them.
func (e *Engine) RecomputeAutoCollapse(ctx context.Context, turns []object.Turn) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	keep := ComputeKeepSet(turns, e.recentToolcallsPerTurn, e.recentTurnsWindow)

	kept := make([]string, 0, len(e.active))
	changed := false
	for _, id := range e.active {
		if contains(e.pinned, id) {
			kept = append(kept, id)
			continue
		}
		doc, err := e.store.Get(ctx, id)
		if err != nil {
			return Result{}, err
		}
		if doc == nil || doc.Type != object.TypeToolCall {
			// Files and any object we can't resolve are conservatively
			// kept: only explicit deactivate removes a file.
			kept = append(kept, id)
			continue
		}
		if keep[id] {
			kept = append(kept, id)
			continue
		}
		changed = true
	}
	if !changed {
		return ok(""), nil
	}
	if err := e.persistCandidate(ctx, e.index, e.pool, kept, e.pinned); err != nil {
		return Result{}, err
	}
	e.active = kept
	return ok(""), nil
}

// persistCandidate writes a new session document version built from the
// given candidate sets, without touching e's own fields. Callers must
// hold e.mu, and must only assign the candidate to the corresponding
// e.* field after this returns nil — per section 5, in-memory state is
// mutated only after the put that makes it durable succeeds, so a
// failed persist never leaves a phantom entry for the next call to
// commit.
func (e *Engine) persistCandidate(ctx context.Context, index, pool, active, pinned []string) error {
	doc := e.buildDocument(index, pool, active, pinned)
	h, err := e.store.Put(ctx, doc)
	if err != nil {
		return fmt.Errorf("session persist: put: %w", err)
	}
	return e.store.AwaitTx(ctx, h)
}

func (e *Engine) buildDocument(index, pool, active, pinned []string) *object.Document {
	d := &object.Document{
		ID:              e.sessionDocID,
		Type:            object.TypeSession,
		SessionID:       e.sessionID,
		ChatRef:         e.chatID,
		SystemPromptRef: e.sysPromptID,
		SessionIndex:    append([]string(nil), index...),
		MetadataPool:    append([]string(nil), pool...),
		ActiveSet:       append([]string(nil), active...),
		PinnedSet:       append([]string(nil), pinned...),
	}
	d.RecomputeIdentityHash(e.sessionID)
	d.RecomputeContentHash()
	d.MetadataHash = hashing.ContentHash(map[string]any{"metadata_pool": sortedCopy(pool)})
	return d
}

func contains(haystack []string, needle string) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

func remove(haystack []string, needle string) []string {
	out := make([]string, 0, len(haystack))
	for _, v := range haystack {
		if v != needle {
			out = append(out, v)
		}
	}
	return out
}

// sortedCopy returns a sorted copy of ss as []any, so MetadataHash
// depends only on pool membership, not on insertion order.
func sortedCopy(ss []string) []any {
	sorted := append([]string(nil), ss...)
	sort.Strings(sorted)
	out := make([]any, len(sorted))
	for i, s := range sorted {
		out[i] = s
	}
	return out
}
