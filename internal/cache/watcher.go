package cache

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/aperturehq/aperture/internal/logging"
)

// Watcher observes out-of-band changes to the cache directory (another
// process replacing the database file, a backup restore, a manual `rm`) via a
// debounced fsnotify event loop. Each settled change is counted and logged;
// the watcher does not evict or rewrite any cache entry itself.
type Watcher struct {
	mu          sync.Mutex
	fsw         *fsnotify.Watcher
	dir         string
	debounce    time.Duration
	pending     map[string]time.Time
	stopCh      chan struct{}
	doneCh      chan struct{}
	invalidated int
}

// NewWatcher starts watching dir (the cache's backing directory) for
// out-of-band filesystem events. The returned Watcher's Stop must be called
// to release the underlying inotify/kqueue handle.
func NewWatcher(dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		dir:      dir,
		debounce: 250 * time.Millisecond,
		pending:  make(map[string]time.Time),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Stop stops the watcher and releases its filesystem handle.
func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
	w.fsw.Close()
}

// Invalidated reports how many debounced out-of-band events this watcher has
// observed since it started, for diagnostics.
func (w *Watcher) Invalidated() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.invalidated
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	log := logging.Get(logging.CategoryCache)
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename|fsnotify.Create) == 0 {
				continue
			}
			w.mu.Lock()
			w.pending[ev.Name] = time.Now()
			w.mu.Unlock()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn("cache watcher error on %s: %v", w.dir, err)
		case <-ticker.C:
			w.flush(log)
		}
	}
}

func (w *Watcher) flush(log *logging.Logger) {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			settled = append(settled, path)
			delete(w.pending, path)
		}
	}
	w.invalidated += len(settled)
	w.mu.Unlock()

	for _, path := range settled {
		log.Info("out-of-band change to %s; dependent cache entries should be treated as untrusted", path)
	}
}
