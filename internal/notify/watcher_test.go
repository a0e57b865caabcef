package notify

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// waitFor polls until an event matching kind and path arrives.
func (r *recorder) waitFor(t *testing.T, kind, path string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		for _, e := range r.snapshot() {
			if e.Event == kind && e.Path == path {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s %s; got %+v", kind, path, r.snapshot())
}

func newTestTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, status := range []string{"backlog", "done"} {
		if err := os.MkdirAll(filepath.Join(root, status), 0o750); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func startWatcher(t *testing.T, root string) (*Watcher, *recorder) {
	t.Helper()
	return startWatcherWithDebounce(t, root, 20*time.Millisecond)
}

func startWatcherWithDebounce(t *testing.T, root string, debounce time.Duration) (*Watcher, *recorder) {
	t.Helper()
	rec := &recorder{}
	w := NewWatcher(rec, debounce, nil)
	if err := w.Restart(root); err != nil {
		t.Fatalf("starting watcher: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w, rec
}

func TestWatcher_AddChangeUnlink(t *testing.T) {
	root := newTestTree(t)
	_, rec := startWatcher(t, root)

	path := filepath.Join(root, "backlog", "task.md")
	if err := os.WriteFile(path, []byte("# T\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	rec.waitFor(t, EventAdd, path)

	if err := os.WriteFile(path, []byte("# T2\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	rec.waitFor(t, EventChange, path)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	rec.waitFor(t, EventUnlink, path)
}

func TestWatcher_AtomicReplaceIsChange(t *testing.T) {
	root := newTestTree(t)
	path := filepath.Join(root, "done", "existing.md")
	if err := os.WriteFile(path, []byte("# Old\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, rec := startWatcher(t, root)

	tmp := path + ".tmp123"
	if err := os.WriteFile(tmp, []byte("# New\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
	rec.waitFor(t, EventChange, path)
}

func TestWatcher_IgnoresNonMarkdown(t *testing.T) {
	root := newTestTree(t)
	_, rec := startWatcher(t, root)

	if err := os.WriteFile(filepath.Join(root, "backlog", "_order.json"), []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	marker := filepath.Join(root, "backlog", "marker.md")
	if err := os.WriteFile(marker, []byte("# M\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	rec.waitFor(t, EventAdd, marker)

	for _, e := range rec.snapshot() {
		if filepath.Ext(e.Path) != ".md" {
			t.Fatalf("non-markdown event leaked: %+v", e)
		}
	}
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	root := newTestTree(t)
	_, rec := startWatcherWithDebounce(t, root, 150*time.Millisecond)

	path := filepath.Join(root, "backlog", "busy.md")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte{byte('a' + i)}, 0o600); err != nil {
			t.Fatal(err)
		}
	}
	rec.waitFor(t, EventAdd, path)
	time.Sleep(300 * time.Millisecond)

	count := 0
	for _, e := range rec.snapshot() {
		if e.Path == path {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected one coalesced event, got %d: %+v", count, rec.snapshot())
	}
}

func TestWatcher_IgnoresDeeperDirectories(t *testing.T) {
	root := newTestTree(t)
	deep := filepath.Join(root, "backlog", "nested")
	if err := os.MkdirAll(deep, 0o750); err != nil {
		t.Fatal(err)
	}
	_, rec := startWatcher(t, root)

	if err := os.WriteFile(filepath.Join(deep, "hidden.md"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	marker := filepath.Join(root, "backlog", "marker.md")
	if err := os.WriteFile(marker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	rec.waitFor(t, EventAdd, marker)
	time.Sleep(50 * time.Millisecond)

	for _, e := range rec.snapshot() {
		if filepath.Dir(e.Path) == deep {
			t.Fatalf("event from depth 2 leaked: %+v", e)
		}
	}
}

func TestWatcher_WatchesNewStatusDirectory(t *testing.T) {
	root := newTestTree(t)
	_, rec := startWatcher(t, root)

	uat := filepath.Join(root, "uat")
	if err := os.Mkdir(uat, 0o750); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(uat, "new.md")
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		// The directory watch is added asynchronously; rewrite until seen.
		if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
		for _, e := range rec.snapshot() {
			if e.Path == path {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("no event for file in new status directory; got %+v", rec.snapshot())
}

func TestWatcher_RestartSwitchesRoot(t *testing.T) {
	oldRoot := newTestTree(t)
	newRoot := newTestTree(t)
	w, rec := startWatcher(t, oldRoot)

	if err := w.Restart(newRoot); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if w.Root() != newRoot {
		t.Fatalf("expected root %s, got %s", newRoot, w.Root())
	}

	if err := os.WriteFile(filepath.Join(oldRoot, "backlog", "old.md"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	fresh := filepath.Join(newRoot, "backlog", "fresh.md")
	if err := os.WriteFile(fresh, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	rec.waitFor(t, EventAdd, fresh)
	time.Sleep(50 * time.Millisecond)

	for _, e := range rec.snapshot() {
		if filepath.Dir(filepath.Dir(e.Path)) == oldRoot {
			t.Fatalf("event from old root after restart: %+v", e)
		}
	}
}

func TestWatcher_RestartMissingRootFails(t *testing.T) {
	w := NewWatcher(&recorder{}, time.Millisecond, nil)
	if err := w.Restart(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing root")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close after failed restart: %v", err)
	}
}
