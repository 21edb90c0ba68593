package workspace

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/triad/internal/logging"
)

const (
	// defaultDebounce is how long a path must stay quiet before it is
	// re-read from disk.
	defaultDebounce = 300 * time.Millisecond

	// maxSyncBytes caps the size of files pulled into the store from disk.
	// Larger files stay visible on disk but are not tracked.
	maxSyncBytes = 1 << 20
)

// skipDirs are directory names never watched or synced.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	".next":        true,
	"dist":         true,
	"build":        true,
}

// Watcher keeps a store's view of its disk root fresh. Create, write,
// remove, and rename events update the store after a per-path debounce, so
// a burst of writes to one file costs a single re-read.
type Watcher struct {
	store    *Store
	log      *logging.Logger
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewWatcher creates a watcher for the store's disk root. The store must
// have been constructed with a root.
func NewWatcher(store *Store, log *logging.Logger) (*Watcher, error) {
	if store.Root() == "" {
		return nil, ErrNoRoot
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	return &Watcher{
		store:    store,
		log:      log.Named("watcher"),
		watcher:  fsw,
		debounce: defaultDebounce,
		timers:   make(map[string]*time.Timer),
		stop:     make(chan struct{}),
	}, nil
}

// Start syncs the files already on disk into the store, then begins
// watching the root recursively. Call Stop to release resources.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(ctx, w.store.Root()); err != nil {
		return fmt.Errorf("watching workspace root: %w", err)
	}

	w.wg.Add(1)
	go w.loop(ctx)

	return nil
}

// Stop stops the watcher and cancels pending syncs.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
		return // already stopped
	default:
		close(w.stop)
		_ = w.watcher.Close()
	}

	w.mu.Lock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()

	w.wg.Wait()
}

// loop processes filesystem events until stopped.
func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// Permission churn does not change content
			if event.Op == fsnotify.Chmod {
				continue
			}

			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(ctx, event.Name); err != nil {
						w.log.Debug(ctx, "failed to watch new directory",
							zap.String("path", event.Name), zap.Error(err))
					}
					continue
				}
			}

			w.schedule(ctx, event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Debug(ctx, "filesystem watcher error", zap.Error(err))
		}
	}
}

// schedule arms (or re-arms) the debounce timer for a path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounce)
		return
	}

	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.sync(ctx, path)
	})
}

// sync reconciles one path between disk and the store.
func (w *Watcher) sync(ctx context.Context, path string) {
	select {
	case <-w.stop:
		return
	default:
	}

	rel, err := filepath.Rel(w.store.Root(), path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	rel = filepath.ToSlash(rel)

	info, err := os.Stat(path)
	if err != nil {
		// Removed or renamed away
		w.store.evictPath(rel)
		w.log.Debug(ctx, "file removed from workspace", zap.String("path", rel))
		return
	}
	if info.IsDir() {
		return
	}
	if info.Size() > maxSyncBytes {
		w.log.Debug(ctx, "skipping oversized file",
			zap.String("path", rel), zap.Int64("bytes", info.Size()))
		return
	}

	content, err := os.ReadFile(path)
	if err != nil {
		w.log.Debug(ctx, "failed to read changed file",
			zap.String("path", rel), zap.Error(err))
		return
	}

	w.store.syncFromDisk(rel, string(content))
	w.log.Debug(ctx, "synced file from disk", zap.String("path", rel))
}

// addRecursive watches dir and its subdirectories, syncing regular files
// already present. Skips the usual noise directories.
func (w *Watcher) addRecursive(ctx context.Context, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			if err := w.watcher.Add(path); err != nil {
				w.log.Debug(ctx, "failed to watch directory",
					zap.String("path", path), zap.Error(err))
			}
			return nil
		}

		if d.Type().IsRegular() {
			w.sync(ctx, path)
		}
		return nil
	})
}
