package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-chat-bot/internal/roster"
)

// SeedWatcher reloads the roster seed file when it changes on disk and asks
// for a roster resync.
type SeedWatcher struct {
	Path      string
	Directory *roster.StaticDirectory
	// Resync is called after a successful reload, usually to queue a
	// roster_sync command.
	Resync func()
	Log    zerolog.Logger
	// Debounce coalesces bursts of writes; editors often write a file in
	// several steps.
	Debounce time.Duration
}

// Run watches until ctx is cancelled. The parent directory is watched so
// that files replaced by rename are still seen.
func (w *SeedWatcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	target := filepath.Clean(w.Path)
	if err := fw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.Log.Debug().Str("op", ev.Op.String()).Str("file", ev.Name).Msg("roster seed changed")
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.Log.Error().Err(err).Msg("roster seed watcher")
		case <-fire:
			fire = nil
			_ = w.Reload()
		}
	}
}

// Reload reads the seed file and, if it parses, replaces the directory and
// calls Resync. A bad file leaves the directory untouched.
func (w *SeedWatcher) Reload() error {
	d, err := roster.LoadDirectoryFile(w.Path)
	if err != nil {
		reloadsTotal.WithLabelValues("error").Inc()
		w.Log.Error().Err(err).Str("file", w.Path).Msg("roster seed reload failed")
		return err
	}
	w.Directory.Replace(d)
	reloadsTotal.WithLabelValues("ok").Inc()
	w.Log.Info().Str("file", w.Path).Msg("roster seed reloaded")
	if w.Resync != nil {
		w.Resync()
	}
	return nil
}
