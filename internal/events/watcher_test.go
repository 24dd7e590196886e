package events

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dabendan2/file-explorer/internal/sandbox"
)

func startWatcher(t *testing.T, dir string) *Broadcaster {
	t.Helper()
	root, err := sandbox.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	b := NewBroadcaster()
	w, err := NewWatcher(root, b)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { w.Stop() })
	return b
}

func waitFor(t *testing.T, s *Subscription, typ, path string) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case e := <-s.C:
			if e.Type == typ && e.Path == path {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s %s", typ, path)
		}
	}
}

func TestWatcherPublishesCreateAndDelete(t *testing.T) {
	dir := t.TempDir()
	b := startWatcher(t, dir)
	sub := b.Subscribe("")
	defer b.Unsubscribe(sub)

	file := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(file, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, sub, EventCreate, "a.txt")

	if err := os.Remove(file); err != nil {
		t.Fatal(err)
	}
	waitFor(t, sub, EventDelete, "a.txt")
}

func TestWatcherCoversExistingSubdirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "docs", "deep"), 0o755); err != nil {
		t.Fatal(err)
	}
	b := startWatcher(t, dir)
	sub := b.Subscribe("")
	defer b.Unsubscribe(sub)

	if err := os.WriteFile(filepath.Join(dir, "docs", "deep", "n.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, sub, EventCreate, "docs/deep/n.md")
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	root, err := sandbox.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	w, err := NewWatcher(root, NewBroadcaster())
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Fatal(err)
	}
}
