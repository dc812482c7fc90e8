// Package indexer implements the read-hash-compare-write protocol that
// is the single funnel for every sourced-object mutation.
package indexer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vinayprograms/ctxmgr/internal/hashing"
	"github.com/vinayprograms/ctxmgr/internal/logging"
	"github.com/vinayprograms/ctxmgr/internal/notify"
	"github.com/vinayprograms/ctxmgr/internal/object"
	"github.com/vinayprograms/ctxmgr/internal/store"
	"github.com/vinayprograms/ctxmgr/internal/telemetry"
)

// Result classifies what an indexer call did.
type Result string

const (
	ResultCreated   Result = "created"
	ResultUpdated   Result = "updated"
	ResultUnchanged Result = "unchanged"
)

// Indexer is the funnel for sourced-object mutation. It holds no
// per-source state; every call is a self-contained read-compare-write.
type Indexer struct {
	store    store.Client
	log      *logging.Logger
	notifier *notify.Publisher
}

// New builds an Indexer against the given store client.
func New(client store.Client, log *logging.Logger) *Indexer {
	if log == nil {
		log = logging.Default
	}
	return &Indexer{store: client, log: log.WithComponent("indexer")}
}

// WithNotifier attaches a best-effort NATS broadcaster: every completed
// write publishes an Event so peer processes sharing this store learn
// of the change without polling. A nil notifier (the default) makes
// this entirely a no-op.
func (ix *Indexer) WithNotifier(p *notify.Publisher) *Indexer {
	ix.notifier = p
	return ix
}

func (ix *Indexer) announce(objType object.Type, id string, result Result) {
	if ix.notifier == nil {
		return
	}
	if err := ix.notifier.Publish(notify.Event{ObjectID: id, Type: string(objType), Result: string(result)}); err != nil {
		ix.log.Warn("notify_publish_failed", map[string]any{"id": id, "error": err.Error()})
	}
}

// IndexFile performs a full index: given a source binding and the bytes
// already read from it, create, upgrade, no-op, or version-bump the
// corresponding file object. Content must be the bytes actually read;
// I/O failures are the caller's concern and never reach this function.
func (ix *Indexer) IndexFile(ctx context.Context, source *object.Source, content []byte) (Result, *object.Document, error) {
	ctx, span := telemetry.GetTracer().StartSpan(ctx, "indexer.indexFile",
		attribute.Int("content.bytes", len(content)))
	defer func() { telemetry.EndSpan(span, nil) }()

	id := hashing.IdentityHash(string(object.TypeFile), source.Map())
	sh := hashing.SourceHash(content)
	span.SetAttributes(attribute.String("object.id", id))

	existing, err := ix.store.Get(ctx, id)
	if err != nil {
		return "", nil, fmt.Errorf("indexFile: get %s: %w", id, err)
	}

	var result Result
	switch {
	case existing == nil:
		result = ResultCreated
	case existing.IsStub():
		result = ResultUpdated
	case existing.SourceHash != nil && *existing.SourceHash == sh:
		ix.log.IndexResult("indexFile", id, string(ResultUnchanged))
		return ResultUnchanged, existing, nil
	default:
		result = ResultUpdated
	}

	doc := object.NewFileDocument(id, source, string(content), sh)
	if err := ix.write(ctx, doc); err != nil {
		return "", nil, fmt.Errorf("indexFile: write %s: %w", id, err)
	}
	ix.log.IndexResult("indexFile", id, string(result))
	ix.announce(object.TypeFile, id, result)
	return result, doc, nil
}

// DiscoverFile records that a source exists without reading it. A
// no-op if the object is already known in any form.
func (ix *Indexer) DiscoverFile(ctx context.Context, source *object.Source) (Result, *object.Document, error) {
	id := hashing.IdentityHash(string(object.TypeFile), source.Map())

	existing, err := ix.store.Get(ctx, id)
	if err != nil {
		return "", nil, fmt.Errorf("discoverFile: get %s: %w", id, err)
	}
	if existing != nil {
		ix.log.IndexResult("discoverFile", id, string(ResultUnchanged))
		return ResultUnchanged, existing, nil
	}

	stub := object.NewFileStub(id, source)
	if err := ix.write(ctx, stub); err != nil {
		return "", nil, fmt.Errorf("discoverFile: write %s: %w", id, err)
	}
	ix.log.IndexResult("discoverFile", id, string(ResultCreated))
	ix.announce(object.TypeFile, id, ResultCreated)
	return ResultCreated, stub, nil
}

// IndexFileDeletion tombstones a previously-indexed source: content and
// source_hash go to null, envelope and history are preserved. The
// object must already exist.
func (ix *Indexer) IndexFileDeletion(ctx context.Context, source *object.Source) (Result, *object.Document, error) {
	id := hashing.IdentityHash(string(object.TypeFile), source.Map())

	existing, err := ix.store.Get(ctx, id)
	if err != nil {
		return "", nil, fmt.Errorf("indexFileDeletion: get %s: %w", id, err)
	}
	if existing == nil {
		return "", nil, fmt.Errorf("indexFileDeletion: unknown object %s", id)
	}

	tombstone := object.NewFileTombstone(existing)
	if err := ix.write(ctx, tombstone); err != nil {
		return "", nil, fmt.Errorf("indexFileDeletion: write %s: %w", id, err)
	}
	ix.log.IndexResult("indexFileDeletion", id, string(ResultUpdated))
	ix.announce(object.TypeFile, id, ResultUpdated)
	return ResultUpdated, tombstone, nil
}

// write is the only place that writes to the store, so a failed put
// never leaves a half-written version and every caller gets the same
// put+awaitTx read-after-write guarantee.
func (ix *Indexer) write(ctx context.Context, doc *object.Document) error {
	handle, err := ix.store.Put(ctx, doc)
	if err != nil {
		return err
	}
	return ix.store.AwaitTx(ctx, handle)
}
