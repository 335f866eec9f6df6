// Package watch reports source files that change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce groups bursts of writes, as editors produce on save.
const DefaultDebounce = 100 * time.Millisecond

var ErrAlreadyWatching = errors.New("already watching")

// Watcher calls a handler with the files that changed under a set of
// roots. New directories created under a root are watched as well.
type Watcher struct {
	fs       *fsnotify.Watcher
	logger   *zap.Logger
	match    func(path string) bool
	debounce time.Duration
	running  bool

	mu    sync.Mutex
	dirs  []string
	files map[string]bool
}

// New returns a watcher for files accepted by match. A nil match accepts
// .go files.
func New(logger *zap.Logger, match func(path string) bool) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if match == nil {
		match = IsSource
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	return &Watcher{
		fs:       w,
		logger:   logger,
		match:    match,
		debounce: DefaultDebounce,
		files:    make(map[string]bool),
	}, nil
}

// IsSource reports whether path names a Go source file other than a test.
func IsSource(path string) bool {
	return filepath.Ext(path) == ".go" && !strings.HasSuffix(path, "_test.go")
}

// SetDebounce sets how long the watcher waits for further writes before
// reporting a file.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Add watches root. A directory is watched with all its subdirectories. A
// file is watched through its parent directory, but only changes to the
// file itself are reported.
func (w *Watcher) Add(root string) error {
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		if err := w.fs.Add(filepath.Dir(root)); err != nil {
			return err
		}
		w.mu.Lock()
		w.files[root] = true
		w.mu.Unlock()
		return nil
	}
	if err := w.addTree(root); err != nil {
		return err
	}
	w.mu.Lock()
	w.dirs = append(w.dirs, root)
	w.mu.Unlock()
	return nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.fs.Add(path); err != nil {
				return fmt.Errorf("error adding directory to watcher: %w", err)
			}
		}
		return nil
	})
}

// Run delivers changed files to handle until ctx is done. Files changed
// within one debounce window are delivered together, sorted, once each.
func (w *Watcher) Run(ctx context.Context, handle func(paths []string)) error {
	if w.running {
		return ErrAlreadyWatching
	}
	w.running = true
	defer func() { w.running = false }()

	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if w.handleFileEvent(event) {
				pending[event.Name] = true
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			pending = make(map[string]bool)
			handle(paths)
		}
	}
}

// handleFileEvent reports whether event changed a matching file. It
// starts watching directories created under a root.
func (w *Watcher) handleFileEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	info, err := os.Stat(event.Name)
	if err != nil {
		return false
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) && w.underRoot(event.Name) {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("watching new directory", zap.String("dir", event.Name), zap.Error(err))
			}
		}
		return false
	}
	if !w.match(event.Name) || !w.watched(event.Name) {
		return false
	}
	w.logger.Debug("file changed", zap.String("file", event.Name), zap.Stringer("op", event.Op))
	return true
}

// watched reports whether path was added as a file or lies under a
// directory root.
func (w *Watcher) watched(path string) bool {
	w.mu.Lock()
	isFile := w.files[filepath.Clean(path)]
	w.mu.Unlock()
	return isFile || w.underRoot(path)
}

func (w *Watcher) underRoot(path string) bool {
	path = filepath.Clean(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, dir := range w.dirs {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
