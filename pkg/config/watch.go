package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is how long the watcher waits for a burst of changes to settle.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reports changes to the package spec, the settings file and policies.
type Watcher struct {
	paths    Paths
	extra    []string
	debounce time.Duration
	logger   zerolog.Logger
}

// NewWatcher creates a watcher for the configuration directory. extra lists
// additional directories to watch, such as a policy directory outside it.
func NewWatcher(paths Paths, logger zerolog.Logger, extra ...string) *Watcher {
	return &Watcher{
		paths:    paths,
		extra:    extra,
		debounce: DefaultDebounce,
		logger:   logger.With().Str("component", "watch").Logger(),
	}
}

// SetDebounce overrides the debounce delay.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Run blocks until ctx is done, calling onChange after each settled burst of
// relevant changes. Calls never overlap, and none is running once Run has
// returned.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Directories are watched so that editors replacing files by rename are seen.
	for _, dir := range append([]string{w.paths.Dir}, w.extra...) {
		if err := w.watchDirectory(watcher, dir); err != nil {
			w.logger.Warn().Err(err).Str("path", dir).Msg("Failed to watch directory")
		}
	}

	var (
		mu      sync.Mutex
		timer   *time.Timer
		stopped bool
		busy    sync.Mutex
	)
	fire := func() {
		busy.Lock()
		defer busy.Unlock()
		mu.Lock()
		done := stopped
		mu.Unlock()
		if !done && ctx.Err() == nil {
			onChange(ctx)
		}
	}
	// Run returns only after a callback already in flight has finished.
	defer func() {
		mu.Lock()
		stopped = true
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		busy.Lock()
		defer busy.Unlock()
	}()

	w.logger.Info().Str("dir", w.paths.Dir).Msg("Watching configuration")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 || !w.relevant(event.Name) {
				continue
			}
			w.logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Configuration changed")

			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.watchDirectory(watcher, event.Name)
				}
			}

			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, fire)
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) watchDirectory(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

// relevant reports whether a changed path affects the configuration.
func (w *Watcher) relevant(path string) bool {
	switch filepath.Clean(path) {
	case w.paths.SpecFile(), w.paths.SettingsFile():
		return true
	}
	if strings.HasSuffix(path, ".rego") {
		return true
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
