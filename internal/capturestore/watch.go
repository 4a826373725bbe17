package capturestore

import (
	"context"
	stdlog "log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/quenby/glimpse/internal/log"
)

// Watcher auto-registers files dropped into the incoming directory.
type Watcher struct {
	store    *Store
	watchDir string
	watcher  *fsnotify.Watcher
	accepted chan Metadata
}

// NewWatcher creates a watcher over the store's incoming directory (or
// watchDir when non-empty).
func NewWatcher(store *Store, watchDir string) (*Watcher, error) {
	if watchDir == "" {
		watchDir = store.IncomingDir()
	}
	if err := os.MkdirAll(watchDir, 0o755); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		store:    store,
		watchDir: watchDir,
		watcher:  watcher,
		accepted: make(chan Metadata, 256),
	}, nil
}

// Accepted emits metadata for each auto-registered capture.
func (w *Watcher) Accepted() <-chan Metadata {
	return w.accepted
}

// Start watches until the context is cancelled. Files already present in
// the directory are registered first.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.watchDir); err != nil {
		return err
	}

	if err := w.acceptExisting(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			close(w.accepted)
			return nil
		case err := <-w.watcher.Errors:
			if err != nil {
				return err
			}
		case event := <-w.watcher.Events:
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.accept(event.Name)
			}
		}
	}
}

// Close releases the underlying notifier.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) acceptExisting() error {
	entries, err := os.ReadDir(w.watchDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.accept(filepath.Join(w.watchDir, entry.Name()))
	}
	return nil
}

func (w *Watcher) accept(path string) {
	if !Accepted(path) {
		return
	}

	// Producers may still be writing; wait for the size to settle before
	// copying the file in.
	if !waitStable(path) {
		return
	}

	meta, err := w.store.Add(path, "watched", "", "watch", nil)
	if err != nil {
		stdlog.Printf("capturestore: accept %s: %v", path, err)
		return
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		stdlog.Printf("capturestore: cleanup %s: %v", path, err)
	}

	if w.store.events != nil {
		_ = w.store.events.Log(log.NewEvent(log.EventTypeWatch, path).
			WithStatus("success").
			WithPath(meta.StoredPath))
	}

	select {
	case w.accepted <- meta:
	default:
		stdlog.Printf("capturestore: accepted channel full, dropping notification for %s", meta.ID)
	}
}

// waitStable polls the file size until two consecutive reads agree.
func waitStable(path string) bool {
	var last int64 = -1
	for i := 0; i < 20; i++ {
		info, err := os.Stat(path)
		if err != nil {
			return false
		}
		if info.Size() == last && info.Size() > 0 {
			return true
		}
		last = info.Size()
		time.Sleep(50 * time.Millisecond)
	}
	return last > 0
}
