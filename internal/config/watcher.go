package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"dynamic_power/internal/logger"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 250 * time.Millisecond

// Sink receives the outcome of every reload attempt.
type Sink interface {
	ConfigReloaded(s *Settings)
	ConfigRejected(err error)
}

// Watcher reloads the configuration file whenever it changes on disk.
type Watcher struct {
	path     string
	load     func(string) (*Settings, error)
	sink     Sink
	log      *logger.Logger
	debounce time.Duration
}

func NewWatcher(path string, sink Sink, log *logger.Logger) *Watcher {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return &Watcher{
		path:     filepath.Clean(path),
		load:     Load,
		sink:     sink,
		log:      log,
		debounce: defaultDebounce,
	}
}

// Run blocks until ctx is canceled.
//
// The parent directory is always watched so a file replaced by rename is
// seen again through its Create event. The file itself is re-added after
// every Remove or Rename.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("watch %q: %w", dir, err)
	}
	fileWatched := w.arm(fsw)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				fileWatched = false
				_ = fsw.Remove(w.path)
				w.log.Debugw("config_watch_dropped", "path", w.path, "op", ev.Op.String())
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if !fileWatched {
				fileWatched = w.arm(fsw)
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warnw("config_watch_error", "err", err)

		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) arm(fsw *fsnotify.Watcher) bool {
	if err := fsw.Add(w.path); err != nil {
		w.log.Debugw("config_watch_file_unavailable", "path", w.path, "err", err)
		return false
	}
	w.log.Debugw("config_watch_armed", "path", w.path)
	return true
}

func (w *Watcher) reload() {
	s, err := w.load(w.path)
	if err != nil {
		w.log.Warnw("config_reload_failed", "path", w.path, "err", err)
		w.sink.ConfigRejected(err)
		return
	}
	w.log.Infow("config_reloaded", "path", w.path, "profiles", s.Catalog.Names())
	w.sink.ConfigReloaded(s)
}
