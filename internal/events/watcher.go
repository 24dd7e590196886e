package events

import (
	"os"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/dabendan2/file-explorer/internal/logging"
	"github.com/dabendan2/file-explorer/internal/sandbox"
)

// Watcher turns fsnotify notifications under the root into published
// events. Every directory in the tree is watched; new directories are added
// as they appear.
type Watcher struct {
	root        sandbox.Root
	broadcaster *Broadcaster
	watcher     *fsnotify.Watcher
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// NewWatcher creates a watcher for root that publishes to b.
func NewWatcher(root sandbox.Root, b *Broadcaster) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:        root,
		broadcaster: b,
		watcher:     fsWatcher,
		stopChan:    make(chan struct{}),
	}, nil
}

// Start registers the tree and begins forwarding events.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.root.Path()); err != nil {
		return err
	}
	w.addTree(w.root.Path())

	w.wg.Add(1)
	go w.run()

	logging.Info("watching sandbox root", zap.String("root", w.root.Path()))
	return nil
}

// Stop stops the watcher and waits for the loop to exit.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopChan)
		w.wg.Wait()
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) addTree(dir string) {
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if addErr := w.watcher.Add(p); addErr != nil {
			logging.Warn("cannot watch directory", zap.String("dir", p), zap.Error(addErr))
		}
		return nil
	})
	if err != nil {
		logging.Warn("watch registration incomplete", zap.String("dir", dir), zap.Error(err))
	}
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("watcher error", zap.Error(err))

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	rel, err := w.root.Rel(event.Name)
	if err != nil || rel == "" {
		return
	}

	var kind string
	switch {
	case event.Has(fsnotify.Create):
		kind = EventCreate
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			w.addTree(event.Name)
		}
	case event.Has(fsnotify.Write):
		kind = EventModify
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// A rename reports the old name here and the new name as a Create.
		kind = EventDelete
	default:
		return
	}

	logging.Debug("sandbox change", zap.String("type", kind), zap.String("path", rel))
	w.broadcaster.Publish(Event{Type: kind, Path: rel})
}
