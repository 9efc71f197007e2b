// Package watcher observes the tile cache tree for out-of-band changes.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Op classifies a settled change to a cached tile file. Tiles are written
// once and never rewritten in place, so writes collapse into creation.
type Op int

// Change outcomes.
const (
	OpCreate Op = iota
	OpDelete
)

// String returns the string representation of the outcome.
func (o Op) String() string {
	if o == OpDelete {
		return "delete"
	}
	return "create"
}

// Event reports a settled change to a tile file below the cache root.
type Event struct {
	Path string
	Op   Op
}

// Handler is called once per settled event.
type Handler func(ctx context.Context, event Event) error

// Config holds watcher configuration.
type Config struct {
	Root     string
	Debounce time.Duration
}

// Watcher tails fsnotify traffic below the cache root, folds rapid
// create/delete churn per path, and reports the settled outcome. Its main
// job is telling the availability index about tile files removed behind
// the service's back.
type Watcher struct {
	fs       *fsnotify.Watcher
	handler  Handler
	logger   *slog.Logger
	root     string
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*change
}

// change is the most recent outcome observed for one path.
type change struct {
	op   Op
	seen time.Time
}

// New creates a watcher rooted at cfg.Root.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Watcher, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if cfg.Debounce == 0 {
		cfg.Debounce = 500 * time.Millisecond
	}

	return &Watcher{
		fs:       fsw,
		handler:  handler,
		logger:   logger,
		root:     root,
		debounce: cfg.Debounce,
		pending:  make(map[string]*change),
	}, nil
}

// Start registers the cache tree and begins delivering events.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watchTree(); err != nil {
		return err
	}
	w.logger.Info("watching cache directory", "path", w.root)

	go w.run(ctx)
	return nil
}

// Stop closes the underlying fsnotify watcher.
func (w *Watcher) Stop() error {
	return w.fs.Close()
}

// watchTree registers the root and every directory below it. A missing
// root is not an error; the tree fills in as downloads create directories.
func (w *Watcher) watchTree() error {
	return filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fs.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// run is the single event loop: raw fsnotify traffic is folded into the
// pending set, and entries are flushed once they have been quiet for the
// debounce window.
func (w *Watcher) run(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.observe(event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)

		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

// observe folds one raw fsnotify event into the pending set.
func (w *Watcher) observe(event fsnotify.Event) {
	// Downloads create region, zoom and column directories at runtime.
	// New directories join the watch set immediately.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.fs.Add(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	op, relevant := classify(event.Op)
	if !relevant || !isTilePath(w.root, event.Name) {
		return
	}

	w.logger.Debug("file event", "path", event.Name, "op", op.String())

	w.mu.Lock()
	defer w.mu.Unlock()

	// The latest observation wins: a recreate supersedes a delete and a
	// delete supersedes a create.
	if c, ok := w.pending[event.Name]; ok {
		c.op = op
		c.seen = time.Now()
		return
	}
	w.pending[event.Name] = &change{op: op, seen: time.Now()}
}

// flush delivers entries that have been quiet for the debounce window.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	for path, c := range w.pending {
		if now.Sub(c.seen) < w.debounce {
			continue
		}
		delete(w.pending, path)

		event := Event{Path: path, Op: c.op}
		w.logger.Debug("cache file settled", "path", path, "op", c.op.String())

		// Deliver off the loop goroutine.
		go func(e Event) {
			if err := w.handler(ctx, e); err != nil {
				w.logger.Error("handler error", "path", e.Path, "op", e.Op.String(), "error", err)
			}
		}(event)
	}
}

// classify maps fsnotify operations onto cache outcomes. Remove and
// rename take a file out of the cache; create and write both mean the
// tile is present. Chmod is noise.
func classify(op fsnotify.Op) (Op, bool) {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return OpDelete, true
	case op.Has(fsnotify.Create), op.Has(fsnotify.Write):
		return OpCreate, true
	default:
		return 0, false
	}
}

// isTilePath reports whether path names a cached tile below root, i.e.
// <root>/<region>/<z>/<x>/<y>.png with numeric coordinates. Temp files
// from atomic writes and stray files never match.
func isTilePath(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 4 || parts[0] == "" {
		return false
	}

	name, ok := strings.CutSuffix(parts[3], ".png")
	if !ok {
		return false
	}
	return isDigits(parts[1]) && isDigits(parts[2]) && isDigits(name)
}

// isDigits reports whether s is a non-empty run of ASCII digits.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
