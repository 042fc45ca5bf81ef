// Package watch reruns a build whenever one of its tracked files changes.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long events are collected before a rebuild
const DefaultDebounce = 200 * time.Millisecond

// BuildFunc runs one build and returns the files whose changes should
// trigger the next one
type BuildFunc func(ctx context.Context) []string

// Watcher drives the build loop
type Watcher struct {
	Build    BuildFunc
	Debounce time.Duration
	Logger   *slog.Logger
}

// New creates a watcher with the default debounce
func New(build BuildFunc, logger *slog.Logger) *Watcher {
	return &Watcher{Build: build, Debounce: DefaultDebounce, Logger: logger}
}

// Run builds once, then rebuilds after changes until ctx is cancelled.
// Directories are watched rather than files so editors that replace files
// on save keep triggering.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	defer fsw.Close()

	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	files := map[string]bool{}
	dirs := map[string]bool{}

	rebuild := func() {
		files = index(w.Build(ctx))
		dirs = sync(fsw, dirs, files, logger)
		logger.Info("Watching for changes.", "files", len(files), "dirs", len(dirs))
	}

	rebuild()

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}

			if relevant(event, files) {
				logger.Debug("File changed.", "path", event.Name, "op", event.Op.String())
				timer.Reset(debounce)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}

			logger.Warn("File watcher error.", "error", err)
		case <-timer.C:
			if ctx.Err() != nil {
				return nil
			}

			rebuild()
		}
	}
}

// relevant reports whether event touches a tracked file
func relevant(event fsnotify.Event, files map[string]bool) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Chmod) {
		return false
	}

	return files[filepath.Clean(event.Name)]
}

func index(paths []string) map[string]bool {
	files := make(map[string]bool, len(paths))

	for _, p := range paths {
		files[filepath.Clean(p)] = true
	}

	return files
}

// sync makes the watched directories match the parents of files
func sync(fsw *fsnotify.Watcher, watched, files map[string]bool, logger *slog.Logger) map[string]bool {
	want := map[string]bool{}
	for f := range files {
		want[filepath.Dir(f)] = true
	}

	for dir := range watched {
		if !want[dir] {
			_ = fsw.Remove(dir)
		}
	}

	next := map[string]bool{}

	for dir := range want {
		if watched[dir] {
			next[dir] = true
			continue
		}

		if err := fsw.Add(dir); err != nil {
			logger.Warn("Cannot watch directory.", "dir", dir, "error", err)
			continue
		}

		next[dir] = true
	}

	return next
}
