package data

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/TomasB/geolookup/internal/geodat"
	"github.com/TomasB/geolookup/internal/metrics"
)

// Watcher reopens databases of a Set when their files change on disk.
type Watcher struct {
	set      *Set
	fs       *fsnotify.Watcher
	debounce time.Duration
	open     func(path string, cs geodat.Charset) (Database, error)
}

// NewWatcher watches the directories holding the databases of set.
// Directories rather than files are watched so databases replaced by
// rename are noticed. Databases must be updated by writing a new file
// and renaming it over the old one: open databases are memory mapped,
// so rewriting one in place is not picked up and can fault readers.
func NewWatcher(set *Set, debounce time.Duration) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	seen := make(map[string]bool)
	for _, p := range set.Paths() {
		dir := filepath.Dir(p)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if err := fs.Add(dir); err != nil {
			_ = fs.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	return &Watcher{set: set, fs: fs, debounce: debounce, open: Open}, nil
}

// Run handles file events until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fired := make(chan string)
	pending := make(map[string]*time.Timer)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
		_ = w.fs.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !replaced(ev.Op) {
				continue
			}
			path := filepath.Clean(ev.Name)
			if !w.tracked(path) {
				continue
			}
			if t, ok := pending[path]; ok {
				t.Stop()
			}
			pending[path] = time.AfterFunc(w.debounce, func() {
				select {
				case fired <- path:
				case <-ctx.Done():
				}
			})

		case path := <-fired:
			delete(pending, path)
			w.reload(path)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", "error", err)
		}
	}
}

// replaced reports whether op puts a new file at the event path. A
// rename into the directory arrives as Create.
func replaced(op fsnotify.Op) bool {
	return op.Has(fsnotify.Create)
}

func (w *Watcher) tracked(path string) bool {
	for _, p := range w.set.Paths() {
		if p == path {
			return true
		}
	}
	return false
}

func (w *Watcher) reload(path string) {
	db, err := w.open(path, w.set.Charset())
	if err != nil {
		metrics.ObserveReload(false)
		slog.Error("database reload failed, keeping previous", "path", path, "error", err)
		return
	}
	old, ok := w.set.Replace(path, db)
	if !ok {
		_ = db.Close()
		return
	}
	if err := old.Close(); err != nil {
		slog.Warn("failed to close previous database", "path", path, "error", err)
	}
	metrics.ObserveReload(true)
	slog.Info("database reloaded", "path", path, "info", db.Info())
}
