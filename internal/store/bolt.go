package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/vinayprograms/ctxmgr/internal/object"
)

var rootBucket = []byte("objects")

// commitJob is one queued write. Writes are processed by a small pool of
// workers so Put can return before the write is durable, matching the
// core's "put returns a handle, awaitTx blocks for durability" contract;
// bbolt itself only ever runs one write transaction at a time, so the
// pool buys pipelining of job dispatch, not write concurrency.
type commitJob struct {
	doc    *object.Document
	handle *TxHandle
}

// BoltClient is an embedded, single-process bitemporal store: each id
// gets its own nested bucket keyed by big-endian transaction-time
// nanoseconds, so Get/GetAsOf/History are cursor walks over an
// append-only version list.
type BoltClient struct {
	db      *bbolt.DB
	jobs    chan commitJob
	closeCh chan struct{}
}

// BoltConfig configures the embedded store.
type BoltConfig struct {
	Path    string
	Workers int // default 4
}

// NewBoltClient opens (creating if needed) a bbolt-backed store.
func NewBoltClient(cfg BoltConfig) (*BoltClient, error) {
	db, err := bbolt.Open(cfg.Path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init store schema: %w", err)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}

	c := &BoltClient{
		db:      db,
		jobs:    make(chan commitJob, 256),
		closeCh: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go c.runWorker()
	}
	return c, nil
}

func (c *BoltClient) runWorker() {
	for {
		select {
		case job := <-c.jobs:
			job.handle.resolve(c.commit(job.doc))
		case <-c.closeCh:
			return
		}
	}
}

func (c *BoltClient) commit(doc *object.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document %s: %w", doc.ID, err)
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(rootBucket)
		idBucket, err := root.CreateBucketIfNotExists([]byte(doc.ID))
		if err != nil {
			return err
		}
		key := timeKey(time.Now())
		// Guard against two versions landing on the same nanosecond
		// (possible on fast filesystems/clocks); nudge forward until the
		// slot is free rather than overwrite a version.
		for idBucket.Get(key) != nil {
			key = nextKey(key)
		}
		return idBucket.Put(key, data)
	})
}

// Put enqueues a write and returns a handle immediately.
func (c *BoltClient) Put(ctx context.Context, doc *object.Document) (*TxHandle, error) {
	handle := newTxHandle()
	select {
	case c.jobs <- commitJob{doc: doc, handle: handle}:
		return handle, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closeCh:
		return nil, fmt.Errorf("store closed")
	}
}

// AwaitTx blocks until handle's write has committed.
func (c *BoltClient) AwaitTx(ctx context.Context, handle *TxHandle) error {
	select {
	case err := <-handle.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get returns the latest version, or (nil, nil) if absent.
func (c *BoltClient) Get(ctx context.Context, id string) (*object.Document, error) {
	var doc *object.Document
	err := c.db.View(func(tx *bbolt.Tx) error {
		idBucket := bucketFor(tx, id)
		if idBucket == nil {
			return nil
		}
		_, v := idBucket.Cursor().Last()
		if v == nil {
			return nil
		}
		return unmarshalInto(v, &doc)
	})
	return doc, err
}

// GetAsOf returns the version valid at the given transaction time.
func (c *BoltClient) GetAsOf(ctx context.Context, id string, at time.Time) (*object.Document, error) {
	var doc *object.Document
	err := c.db.View(func(tx *bbolt.Tx) error {
		idBucket := bucketFor(tx, id)
		if idBucket == nil {
			return nil
		}
		cur := idBucket.Cursor()
		target := timeKey(at)
		k, v := cur.Seek(target)
		switch {
		case k != nil && string(k) == string(target):
			// exact match
		case v == nil && k == nil:
			// Seek ran past the end; the latest version (if any) is the
			// answer as long as it's not later than `at`.
			k, v = cur.Last()
			if k == nil || keyTime(k).After(at) {
				return nil
			}
		default:
			// Seek landed on the first version *after* at; step back one.
			k, v = cur.Prev()
			if k == nil {
				return nil
			}
		}
		return unmarshalInto(v, &doc)
	})
	return doc, err
}

// History returns every version's {validFrom, hash}, oldest first.
func (c *BoltClient) History(ctx context.Context, id string) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	err := c.db.View(func(tx *bbolt.Tx) error {
		idBucket := bucketFor(tx, id)
		if idBucket == nil {
			return nil
		}
		return idBucket.ForEach(func(k, v []byte) error {
			var d object.Document
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			entries = append(entries, HistoryEntry{ValidFrom: keyTime(k), Hash: d.ContentHash})
			return nil
		})
	})
	return entries, err
}

// Query batch-fetches the latest version of every requested id,
// optionally filtered by type. Unknown ids are silently omitted, as
// NotFound is not an error at the query layer.
func (c *BoltClient) Query(ctx context.Context, q Query) ([]*object.Document, error) {
	ids := append([]string(nil), q.IDs...)
	sort.Strings(ids) // deterministic iteration order for callers/tests
	var out []*object.Document
	err := c.db.View(func(tx *bbolt.Tx) error {
		for _, id := range ids {
			idBucket := bucketFor(tx, id)
			if idBucket == nil {
				continue
			}
			_, v := idBucket.Cursor().Last()
			if v == nil {
				continue
			}
			var d object.Document
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			if q.Type != "" && d.Type != q.Type {
				continue
			}
			out = append(out, &d)
		}
		return nil
	})
	return out, err
}

// Close stops the commit workers and closes the underlying database.
func (c *BoltClient) Close() error {
	close(c.closeCh)
	return c.db.Close()
}

func bucketFor(tx *bbolt.Tx, id string) *bbolt.Bucket {
	root := tx.Bucket(rootBucket)
	if root == nil {
		return nil
	}
	return root.Bucket([]byte(id))
}

func unmarshalInto(v []byte, doc **object.Document) error {
	var d object.Document
	if err := json.Unmarshal(v, &d); err != nil {
		return err
	}
	*doc = &d
	return nil
}

func timeKey(t time.Time) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(t.UnixNano()))
	return key
}

func keyTime(key []byte) time.Time {
	return time.Unix(0, int64(binary.BigEndian.Uint64(key)))
}

func nextKey(key []byte) []byte {
	n := binary.BigEndian.Uint64(key) + 1
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, n)
	return out
}
