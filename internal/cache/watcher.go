package cache

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"pmat/internal/logging"
)

var skipDirs = map[string]bool{".git": true, ".pmat": true, "node_modules": true, "target": true, "vendor": true}

// Watcher invalidates cache entries when files under root change.
type Watcher struct {
	store    *Store
	root     string
	fsw      *fsnotify.Watcher
	debounce time.Duration
	onChange func(paths []string)

	mu      sync.Mutex
	running bool
	stopped bool
	pending map[string]bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher prepares a watcher over root. onChange, if set, receives each
// debounced batch of changed paths relative to root.
func NewWatcher(store *Store, root string, onChange func(paths []string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{
		store:    store,
		root:     abs,
		fsw:      fsw,
		debounce: 100 * time.Millisecond,
		onChange: onChange,
		pending:  map[string]bool{},
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start watches every directory under root and returns immediately.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running || w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != w.root && skipDirs[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			logging.Get(logging.CategoryCache).Warn("watch %s: %v", path, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logging.Cache("watching %s for changes", w.root)
	go w.run(ctx)
	return nil
}

// Stop ends the event loop and releases the OS watcher. It is safe to call
// more than once and without Start.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}
	if err := w.fsw.Close(); err != nil {
		logging.Get(logging.CategoryCache).Error("closing watcher: %v", err)
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)
	timer := time.NewTimer(w.debounce)
	defer timer.Stop()
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
			timer.Reset(w.debounce)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryCache).Error("watcher: %v", err)
		case <-timer.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if ev.Op&fsnotify.Create != 0 {
		// new directories need their own watch
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() && w.fsw.Add(ev.Name) == nil {
			logging.CacheDebug("watching new directory %s", ev.Name)
		}
	}
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return
	}
	w.mu.Lock()
	w.pending[filepath.ToSlash(rel)] = true
	w.mu.Unlock()
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	batch := make([]string, 0, len(w.pending))
	for p := range w.pending {
		batch = append(batch, p)
	}
	w.pending = map[string]bool{}
	w.mu.Unlock()
	if len(batch) == 0 {
		return
	}
	sort.Strings(batch)

	for _, p := range batch {
		if _, err := w.store.Invalidate(ctx, p); err != nil {
			logging.Get(logging.CategoryCache).Warn("%v", err)
		}
	}
	if w.onChange != nil {
		w.onChange(batch)
	}
}
