// Package watcher reports supported documents appearing, changing or
// disappearing in a folder.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/grantkb/internal/logger"
	"github.com/custodia-labs/grantkb/internal/normalisers"
)

// DefaultDebounce is how long a file must stay quiet before its change is
// reported. Editors and copy tools write in several steps.
const DefaultDebounce = 500 * time.Millisecond

// ErrClosed is returned by Watch after Close.
var ErrClosed = errors.New("watcher is closed")

// ChangeType classifies a file change.
type ChangeType string

// Change types.
const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeRemoved ChangeType = "removed"
)

// Change is a settled change to one file.
type Change struct {
	Type ChangeType
	Path string
}

// Watcher watches a single folder, non-recursively.
type Watcher struct {
	root     string
	debounce time.Duration

	mu     sync.Mutex
	closed bool
	fsw    *fsnotify.Watcher
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period. Zero reports every event at once.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// New creates a watcher for root.
func New(root string, opts ...Option) *Watcher {
	w := &Watcher{root: root, debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Root returns the watched folder.
func (w *Watcher) Root() string {
	return w.root
}

// Scan lists the supported files already in the folder, sorted by name.
func (w *Watcher) Scan() ([]string, error) {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", w.root, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || isHidden(e.Name()) || !normalisers.IsSupportedExtension(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(w.root, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Watch starts watching and returns a channel of settled changes. The
// channel is closed when ctx is cancelled or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context) (<-chan Change, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrClosed
	}

	info, err := os.Stat(w.root)
	if err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path error: %s is not a directory", w.root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fsw.Add(w.root); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", w.root, err)
	}
	w.fsw = fsw

	changes := make(chan Change, 16)
	go w.loop(ctx, fsw, changes)

	logger.Info("Watching %s", w.root)
	return changes, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}

type pendingChange struct {
	change Change
	due    time.Time
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, out chan<- Change) {
	defer close(out)
	defer fsw.Close()

	pending := make(map[string]*pendingChange)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	send := func(c Change) bool {
		select {
		case out <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			change := w.handleFsEvent(ev)
			if change == nil {
				continue
			}
			logger.Debug("watch event: %s %s", change.Type, change.Path)
			if w.debounce <= 0 {
				if !send(*change) {
					return
				}
				continue
			}
			pending[change.Path] = merge(pending[change.Path], *change, time.Now().Add(w.debounce))
			resetTimer(timer, pending)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("watcher: %v", err)

		case <-timer.C:
			now := time.Now()
			for _, path := range duePaths(pending, now) {
				c := pending[path].change
				delete(pending, path)
				if !send(c) {
					return
				}
			}
			resetTimer(timer, pending)
		}
	}
}

// handleFsEvent turns a raw event into a change, or nil when the event is
// irrelevant.
func (w *Watcher) handleFsEvent(ev fsnotify.Event) *Change {
	name := filepath.Base(ev.Name)
	if isHidden(name) || !normalisers.IsSupportedExtension(name) {
		return nil
	}

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return &Change{Type: ChangeRemoved, Path: ev.Name}
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(ev.Name)
		if err != nil || info.IsDir() {
			return nil
		}
		t := ChangeUpdated
		if ev.Has(fsnotify.Create) {
			t = ChangeCreated
		}
		return &Change{Type: t, Path: ev.Name}
	default:
		return nil
	}
}

// merge folds a new change into a pending one. A file created and then
// written is still new; a removal wins until the file reappears.
func merge(prev *pendingChange, next Change, due time.Time) *pendingChange {
	if prev != nil && prev.change.Type == ChangeCreated && next.Type == ChangeUpdated {
		next.Type = ChangeCreated
	}
	if prev != nil && prev.change.Type == ChangeRemoved && next.Type != ChangeRemoved {
		next.Type = ChangeUpdated
	}
	return &pendingChange{change: next, due: due}
}

func duePaths(pending map[string]*pendingChange, now time.Time) []string {
	var paths []string
	for path, p := range pending {
		if !p.due.After(now) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths
}

func resetTimer(timer *time.Timer, pending map[string]*pendingChange) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	var next time.Time
	for _, p := range pending {
		if next.IsZero() || p.due.Before(next) {
			next = p.due
		}
	}
	if !next.IsZero() {
		timer.Reset(max(time.Until(next), 0))
	}
}

// isHidden reports whether a file name starts with a dot. Editors keep
// swap and lock files this way.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
