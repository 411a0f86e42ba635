// Package watcher discovers new images by polling a directory.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultInterval is the pause between two polls.
const DefaultInterval = time.Second

// Registry tracks which identities are already known.
type Registry interface {
	// Done reports whether identity has moved past registration.
	Done(identity string) bool
	// Register records identities and returns those that were new.
	Register(ctx context.Context, identities []string) []string
}

// Listener receives newly registered identities. It should return quickly.
type Listener func(ctx context.Context, identities []string)

// Config controls a Watcher.
type Config struct {
	Dir      string
	Interval time.Duration
	// Notify wakes the poll loop early on filesystem events. Polling stays
	// authoritative; events only shorten the sleep.
	Notify bool
	// Accept filters candidate files by path. Nil accepts every regular file.
	Accept func(path string) bool
}

// Watcher polls Config.Dir and registers files it has not seen before.
type Watcher struct {
	cfg      Config
	registry Registry
	logger   *slog.Logger

	mu        sync.Mutex
	listeners []Listener

	stopped atomic.Bool
	wake    chan struct{}
}

// New creates a watcher. The directory is not touched until Run or Poll.
func New(cfg Config, registry Registry, logger *slog.Logger) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		cfg:      cfg,
		registry: registry,
		logger:   logger.With("component", "watcher", "dir", cfg.Dir),
		wake:     make(chan struct{}, 1),
	}
}

// AddListener subscribes fn to newly registered identities.
func (w *Watcher) AddListener(fn Listener) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Stop asks Run to return after the current cycle.
func (w *Watcher) Stop() {
	w.stopped.Store(true)
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run polls until ctx is cancelled or Stop is called.
func (w *Watcher) Run(ctx context.Context) error {
	if w.cfg.Notify {
		closeNotify, err := w.startNotify(ctx)
		if err != nil {
			w.logger.Warn("filesystem notifications unavailable, polling only", "error", err)
		} else {
			defer closeNotify()
		}
	}

	w.logger.Info("watching for images", "interval", w.cfg.Interval)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.wake:
		case <-timer.C:
		}
		if w.stopped.Load() {
			w.logger.Info("watcher stopped")
			return nil
		}
		if _, err := w.Poll(ctx); err != nil {
			w.logger.Warn("directory poll failed, retrying", "error", err)
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.cfg.Interval)
	}
}

// Poll performs one cycle: list, register and notify. It returns the newly
// registered identities.
func (w *Watcher) Poll(ctx context.Context) ([]string, error) {
	candidates, err := w.list()
	if err != nil {
		return nil, err
	}
	fresh := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if !w.registry.Done(id) {
			fresh = append(fresh, id)
		}
	}
	if len(fresh) == 0 {
		return nil, nil
	}

	added := w.registry.Register(ctx, fresh)
	if len(added) == 0 {
		return nil, nil
	}
	w.logger.Debug("new images", "count", len(added))

	w.mu.Lock()
	listeners := slices.Clone(w.listeners)
	w.mu.Unlock()
	for _, fn := range listeners {
		fn(ctx, added)
	}
	return added, nil
}

func (w *Watcher) list() ([]string, error) {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", w.cfg.Dir, err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		path := filepath.Clean(filepath.Join(w.cfg.Dir, e.Name()))
		if w.cfg.Accept != nil && !w.cfg.Accept(path) {
			continue
		}
		out = append(out, path)
	}
	// os.ReadDir already sorts by name.
	return out, nil
}

func (w *Watcher) startNotify(ctx context.Context) (func(), error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(w.cfg.Dir); err != nil {
		_ = fw.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-fw.Events:
				if !ok {
					return
				}
				if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				select {
				case w.wake <- struct{}{}:
				default:
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				if !errors.Is(err, fsnotify.ErrEventOverflow) {
					w.logger.Warn("filesystem notification error", "error", err)
				}
			}
		}
	}()

	return func() {
		_ = fw.Close()
		<-done
	}, nil
}
