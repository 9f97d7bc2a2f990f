// ABOUTME: Watches the config file and hands each valid new version to an apply callback
// ABOUTME: Writes are debounced; an invalid file is logged and the running policy stays

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/2389/mcpware/internal/config"
)

// reloadDebounce is how long the file must be quiet before it is re-read.
const reloadDebounce = 500 * time.Millisecond

// Reloader re-reads a config file whenever it changes.
type Reloader struct {
	watcher *fsnotify.Watcher
	path    string
	apply   func(*config.Config) error
	logger  *slog.Logger

	mu      sync.Mutex
	reloads int
}

// NewReloader watches the directory holding path, so editors that replace
// the file on save are still seen.
func NewReloader(path string, apply func(*config.Config) error, logger *slog.Logger) (*Reloader, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %q: %w", filepath.Dir(abs), err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{
		watcher: watcher,
		path:    abs,
		apply:   apply,
		logger:  logger.With("component", "reloader", "path", abs),
	}, nil
}

// Run watches for changes until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	r.logger.Info("watching config for policy changes")
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != r.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, r.reload)

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Error("file watcher error", "error", err)
		}
	}
}

func (r *Reloader) reload() {
	cfg, err := config.Load(r.path)
	if err != nil {
		r.logger.Error("hot-reload failed; keeping current policy", "error", err)
		return
	}
	if err := r.apply(cfg); err != nil {
		r.logger.Error("hot-reload rejected", "error", err)
		return
	}

	r.mu.Lock()
	r.reloads++
	r.mu.Unlock()
	r.logger.Info("hot-reload: security policy reloaded")
}

// Reloads returns how many reloads have been applied.
func (r *Reloader) Reloads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reloads
}
