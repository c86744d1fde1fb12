// Package watch reruns work when input files change. Changes are collected
// until the inputs have been quiet for the debounce delay, then reported as
// one batch.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when no positive delay is configured.
const DefaultDebounce = 500 * time.Millisecond

// Change is one batch of changed files, sorted by path.
type Change struct {
	Paths []string
}

// Handler is called once per batch of changes. Returning an error stops the
// watcher.
type Handler func(ctx context.Context, change Change) error

// Config configures a Watcher.
type Config struct {
	// Files are watched individually through their parent directory.
	Files []string
	// Dirs are watched recursively; any non-hidden file inside counts.
	Dirs []string
	// Extensions restricts files under Dirs; empty accepts every file.
	Extensions []string
	// Debounce is the quiet period before a batch is reported.
	Debounce time.Duration
}

// Watcher watches input files and directories.
type Watcher struct {
	fsw        *fsnotify.Watcher
	logger     *slog.Logger
	debounce   time.Duration
	files      map[string]bool
	dirs       []string
	extensions map[string]bool
}

// New creates a Watcher. Paths that do not exist yet are watched through
// their parent directory.
func New(config Config, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(config.Files) == 0 && len(config.Dirs) == 0 {
		return nil, errors.New("nothing to watch")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		fsw:        fsw,
		logger:     logger,
		debounce:   config.Debounce,
		files:      make(map[string]bool),
		extensions: make(map[string]bool),
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	for _, ext := range config.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		w.extensions[strings.ToLower(ext)] = true
	}

	watched := make(map[string]bool)
	add := func(dir string) {
		if watched[dir] {
			return
		}
		if err := w.fsw.Add(dir); err != nil {
			w.logger.Warn("Failed to watch directory", "path", dir, "error", err)
			return
		}
		watched[dir] = true
		w.logger.Debug("Watching directory", "path", dir)
	}

	for _, file := range config.Files {
		abs, err := filepath.Abs(file)
		if err != nil {
			fsw.Close()
			return nil, err
		}
		w.files[abs] = true
		add(filepath.Dir(abs))
	}
	for _, dir := range config.Dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			fsw.Close()
			return nil, err
		}
		w.dirs = append(w.dirs, abs)
		err = filepath.WalkDir(abs, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if path != abs && isHidden(d.Name()) {
				return filepath.SkipDir
			}
			add(path)
			return nil
		})
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	if len(watched) == 0 {
		fsw.Close()
		return nil, errors.New("no watchable directories")
	}
	return w, nil
}

// Run delivers batches of changes to handle until ctx is cancelled, the
// handler fails or the watcher is closed. Cancellation is not an error.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	defer w.fsw.Close()

	w.logger.Info("Watching for changes", "debounce", w.debounce)

	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.handleEvent(event) {
				pending[filepath.Clean(event.Name)] = true
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			change := Change{Paths: make([]string, 0, len(pending))}
			for path := range pending {
				change.Paths = append(change.Paths, path)
			}
			sort.Strings(change.Paths)
			pending = make(map[string]bool)

			w.logger.Info("Inputs changed", "files", len(change.Paths))
			if err := handle(ctx, change); err != nil {
				return err
			}
		}
	}
}

// Close stops the watcher without waiting for Run.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// handleEvent reports whether event concerns a watched input. New
// directories under a watched tree are added as they appear.
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}

	path := filepath.Clean(event.Name)
	if w.files[path] {
		return true
	}

	base := filepath.Base(path)
	if isHidden(base) || isEditorTemp(base) {
		return false
	}
	if !w.underDirs(path) {
		return false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				w.logger.Warn("Failed to watch new directory", "path", path, "error", err)
			}
			return false
		}
	}

	if len(w.extensions) == 0 {
		return true
	}
	return w.extensions[strings.ToLower(filepath.Ext(path))]
}

func (w *Watcher) underDirs(path string) bool {
	for _, dir := range w.dirs {
		rel, err := filepath.Rel(dir, path)
		if err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
			return true
		}
	}
	return false
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

func isEditorTemp(name string) bool {
	return strings.HasSuffix(name, "~") || strings.HasSuffix(name, ".swp") || strings.HasSuffix(name, ".tmp")
}
