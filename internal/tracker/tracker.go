// Package tracker attaches and detaches filesystem watchers at canonical
// paths and dispatches their events back into the indexer, so that a
// source edited out from under the core is re-observed without the
// agent having to ask again.
package tracker

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vinayprograms/ctxmgr/internal/indexer"
	"github.com/vinayprograms/ctxmgr/internal/logging"
	"github.com/vinayprograms/ctxmgr/internal/object"
	"github.com/vinayprograms/ctxmgr/internal/resolver"
)

// debounceWindow gives a writer time to finish before re-reading; mirrors
// the pager's live-reload debounce.
const debounceWindow = 100 * time.Millisecond

// Supervisor maintains canonicalPath -> watcher membership and dispatches
// fsnotify events into the indexer.
type Supervisor struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	watched  map[string]*object.Source // canonicalPath -> source binding
	resolver *resolver.Resolver
	ix       *indexer.Indexer
	log      *logging.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// New builds a Supervisor. Call Run to start dispatching events; call
// Close on session end to tear down every attached watcher.
func New(res *resolver.Resolver, ix *indexer.Indexer, log *logging.Logger) (*Supervisor, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Default
	}
	return &Supervisor{
		watcher:  w,
		watched:  make(map[string]*object.Source),
		resolver: res,
		ix:       ix,
		log:      log.WithComponent("tracker"),
		done:     make(chan struct{}),
	}, nil
}

// Attach starts watching canonicalPath if resolver.IsWatchable(agentPath)
// and the path isn't already watched. A no-op otherwise.
func (s *Supervisor) Attach(agentPath string, source *object.Source) error {
	if !s.resolver.IsWatchable(agentPath) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.watched[source.Path]; ok {
		return nil
	}
	if err := s.watcher.Add(source.Path); err != nil {
		return err
	}
	s.watched[source.Path] = source
	return nil
}

// Detach stops watching a canonical path. A no-op if it wasn't watched.
func (s *Supervisor) Detach(canonicalPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.watched[canonicalPath]; !ok {
		return nil
	}
	delete(s.watched, canonicalPath)
	return s.watcher.Remove(canonicalPath)
}

// Watching reports whether canonicalPath currently has an attached
// watcher.
func (s *Supervisor) Watching(canonicalPath string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.watched[canonicalPath]
	return ok
}

// Run dispatches fsnotify events into the indexer until ctx is cancelled
// or Close is called. Intended to run in its own goroutine.
func (s *Supervisor) Run(ctx context.Context) {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handle(ctx, event)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.WatchError("watcher", err)
		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}

func (s *Supervisor) handle(ctx context.Context, event fsnotify.Event) {
	s.mu.Lock()
	source, ok := s.watched[event.Name]
	s.mu.Unlock()
	if !ok {
		return
	}

	switch {
	case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
		time.Sleep(debounceWindow)
		data, err := os.ReadFile(event.Name)
		if err != nil {
			s.log.WatchError(event.Name, err)
			return
		}
		if _, _, err := s.ix.IndexFile(ctx, source, data); err != nil {
			s.log.WatchError(event.Name, err)
		}

	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		if _, _, err := s.ix.IndexFileDeletion(ctx, source); err != nil {
			s.log.WatchError(event.Name, err)
		}
	}
}

// Close stops Run and releases the underlying OS watcher.
func (s *Supervisor) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return s.watcher.Close()
}
