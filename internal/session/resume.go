package session

import (
	"context"
	"fmt"

	"github.com/vinayprograms/ctxmgr/internal/logging"
	"github.com/vinayprograms/ctxmgr/internal/object"
	"github.com/vinayprograms/ctxmgr/internal/store"
)

// Resume rebuilds an Engine from the latest persisted session document:
// it restores the four sets in memory but does not itself reindex
// sourced objects or reattach watchers, since neither the indexer nor
// the tracker supervisor is this package's concern. Callers that need
// the full reconciliation described for session resume should follow
// this with a batch Query over the returned engine's session_index and
// drive the indexer/tracker from there.
func Resume(ctx context.Context, client store.Client, log *logging.Logger, sessionID string) (*Engine, error) {
	docID := object.SessionDocID(sessionID)
	latest, err := client.Get(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("resume: get %s: %w", docID, err)
	}
	if latest == nil {
		return nil, fmt.Errorf("resume: no such session: %s", sessionID)
	}
	if latest.Type != object.TypeSession {
		return nil, fmt.Errorf("resume: %s is not a session document", docID)
	}

	e := newEngine(client, log, sessionID, latest.ID, latest.ChatRef, latest.SystemPromptRef)
	e.index = append([]string(nil), latest.SessionIndex...)
	e.pool = append([]string(nil), latest.MetadataPool...)
	e.active = append([]string(nil), latest.ActiveSet...)
	e.pinned = append([]string(nil), latest.PinnedSet...)

	e.log.Info("session_resumed", map[string]any{
		"session_id":    sessionID,
		"index_size":    len(e.index),
		"pool_size":     len(e.pool),
		"active_size":   len(e.active),
		"pinned_size":   len(e.pinned),
	})
	return e, nil
}

// ReferencedDocuments batch-fetches every object named in the
// session_index, for callers reconciling sourced objects or rendering
// pool/active content after a resume.
func (e *Engine) ReferencedDocuments(ctx context.Context) ([]*object.Document, error) {
	e.mu.Lock()
	ids := append([]string(nil), e.index...)
	e.mu.Unlock()
	return e.store.Query(ctx, store.Query{IDs: ids})
}
