// Package store defines the core's view of an external bitemporal
// document store (put/await/get/as-of/history/query) and ships one
// concrete, embedded implementation backed by bbolt so the rest of the
// core has something real to run against in tests and in single-process
// deployments.
package store

import (
	"context"
	"time"

	"github.com/vinayprograms/ctxmgr/internal/object"
)

// HistoryEntry is one recorded version of an object, oldest first when
// returned from History.
type HistoryEntry struct {
	ValidFrom time.Time
	Hash      string // content_hash of that version
}

// Query is a declarative read over document fields. The core only ever
// needs "fetch these ids" (batch resume) and an optional type filter;
// richer query shapes are a store concern, not a core one.
type Query struct {
	IDs  []string
	Type object.Type // zero value means "any type"
}

// TxHandle is returned by Put and consumed by AwaitTx to obtain
// read-after-write consistency without blocking the caller of Put
// itself.
type TxHandle struct {
	done chan error
}

func newTxHandle() *TxHandle {
	return &TxHandle{done: make(chan error, 1)}
}

func (h *TxHandle) resolve(err error) {
	h.done <- err
}

// Client is the typed abstraction the core's indexer and session engine
// consume. Any store that honors this contract satisfies the core's
// requirements; BoltClient is one such store, chosen for its
// embeddability and because it is already in this codebase's dependency
// graph.
type Client interface {
	// Put submits a document write keyed by its id and returns
	// immediately with a handle; the write may still be in flight.
	Put(ctx context.Context, doc *object.Document) (*TxHandle, error)

	// AwaitTx blocks until the write behind handle is durably indexed.
	AwaitTx(ctx context.Context, handle *TxHandle) error

	// Get returns the latest version as of now, or (nil, nil) if the id
	// is absent.
	Get(ctx context.Context, id string) (*object.Document, error)

	// GetAsOf returns the version valid at the given transaction time,
	// or (nil, nil) if no version existed yet at that time.
	GetAsOf(ctx context.Context, id string, at time.Time) (*object.Document, error)

	// History returns every recorded version's {validFrom, hash}, oldest
	// first.
	History(ctx context.Context, id string) ([]HistoryEntry, error)

	// Query performs a batch read, primarily used to fetch every object
	// in a session_index during resume.
	Query(ctx context.Context, q Query) ([]*object.Document, error)

	Close() error
}
