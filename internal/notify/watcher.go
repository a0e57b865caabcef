package notify

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchedExt = ".md"

// Watcher watches a task root and its immediate subdirectories for markdown
// file activity. Bursts of events on the same path are coalesced: an event
// is published only once the path has been quiet for the debounce interval.
type Watcher struct {
	pub      Publisher
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	done    chan struct{}
	root    string
	known   map[string]bool
	pending map[string]string
	timers  map[string]*time.Timer
}

// NewWatcher creates a Watcher publishing to pub. It does nothing until
// Restart is called with a root.
func NewWatcher(pub Publisher, debounce time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{
		pub:      pub,
		debounce: debounce,
		logger:   logger,
	}
}

// Root returns the directory currently being watched.
func (w *Watcher) Root() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.root
}

// Restart stops watching the previous root, if any, and starts watching root
// to a depth of one directory.
func (w *Watcher) Restart(root string) error {
	if err := w.Close(); err != nil {
		w.logger.Warn("closing previous watcher", "error", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	known := make(map[string]bool)
	if err := watchTree(fsw, root, known); err != nil {
		_ = fsw.Close()
		return err
	}

	done := make(chan struct{})
	w.mu.Lock()
	w.fsw = fsw
	w.done = done
	w.root = root
	w.known = known
	w.pending = make(map[string]string)
	w.timers = make(map[string]*time.Timer)
	w.mu.Unlock()

	go w.loop(fsw, root, done)
	w.logger.Info("watching for changes", "root", root)
	return nil
}

// Close stops watching and discards pending events.
func (w *Watcher) Close() error {
	w.mu.Lock()
	fsw, done := w.fsw, w.done
	w.fsw, w.done = nil, nil
	for _, t := range w.timers {
		t.Stop()
	}
	w.timers = nil
	w.pending = nil
	w.mu.Unlock()

	if fsw == nil {
		return nil
	}
	err := fsw.Close()
	<-done
	return err
}

// watchTree adds root and each directory directly beneath it, recording the
// markdown files already present.
func watchTree(fsw *fsnotify.Watcher, root string, known map[string]bool) error {
	if err := fsw.Add(root); err != nil {
		return fmt.Errorf("watching %s: %w", root, err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("listing %s: %w", root, err)
	}
	for _, entry := range entries {
		path := filepath.Join(root, entry.Name())
		if !entry.IsDir() {
			if isWatchedFile(path) {
				known[path] = true
			}
			continue
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		children, err := os.ReadDir(path)
		if err != nil {
			return fmt.Errorf("listing %s: %w", path, err)
		}
		for _, child := range children {
			childPath := filepath.Join(path, child.Name())
			if !child.IsDir() && isWatchedFile(childPath) {
				known[childPath] = true
			}
		}
	}
	return nil
}

func (w *Watcher) loop(fsw *fsnotify.Watcher, root string, done chan struct{}) {
	defer close(done)
	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handle(fsw, root, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handle(fsw *fsnotify.Watcher, root string, event fsnotify.Event) {
	if event.Has(fsnotify.Create) && filepath.Dir(event.Name) == root {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := fsw.Add(event.Name); err != nil && !errors.Is(err, fsnotify.ErrClosed) {
				w.logger.Warn("watching new directory", "path", event.Name, "error", err)
			}
			return
		}
	}
	if !isWatchedFile(event.Name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		return
	}

	var kind string
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		kind = EventUnlink
		delete(w.known, event.Name)
	case event.Has(fsnotify.Create):
		kind = EventAdd
		if w.known[event.Name] {
			// Atomic replacement of an existing file.
			kind = EventChange
		}
		w.known[event.Name] = true
	case event.Has(fsnotify.Write):
		kind = EventChange
		w.known[event.Name] = true
	default:
		return
	}

	if prev := w.pending[event.Name]; prev == EventAdd && kind == EventChange {
		kind = EventAdd
	}
	w.pending[event.Name] = kind

	if t, ok := w.timers[event.Name]; ok {
		t.Stop()
	}
	path := event.Name
	w.timers[path] = time.AfterFunc(w.debounce, func() { w.flush(path) })
}

func (w *Watcher) flush(path string) {
	w.mu.Lock()
	kind, ok := w.pending[path]
	if ok {
		delete(w.pending, path)
		delete(w.timers, path)
	}
	w.mu.Unlock()

	if !ok {
		return
	}
	w.logger.Debug("file changed", "event", kind, "path", path)
	w.pub.Publish(Event{Event: kind, Path: path})
}

func isWatchedFile(path string) bool {
	return strings.HasSuffix(path, watchedExt)
}
