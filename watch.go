package qudi

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchConfig configures Watch behavior.
type WatchConfig struct {
	// DebounceDelay is the delay to wait for additional changes before
	// invoking the callback. This batches rapid successive writes
	// (editors, atomic save sequences) into a single notification.
	// Default: 100ms.
	DebounceDelay time.Duration

	// OnError is called when a watch error occurs.
	// If nil, errors are silently ignored.
	OnError func(err error)
}

// DefaultWatchConfig returns the default watch configuration.
func DefaultWatchConfig() WatchConfig {
	return WatchConfig{
		DebounceDelay: 100 * time.Millisecond,
	}
}

// Watch reports changes to the configuration file at path by invoking
// onChange. It is intended for reload-on-edit behavior: the caller
// typically responds by calling Load again.
//
// The watch is placed on the file's directory rather than the file
// itself, so atomic writes (temp file + rename) and file recreation
// are seen as changes. Returns a stop function that releases the
// watcher; the watch also ends when ctx is canceled.
//
// Example:
//
//	stop, err := qudi.Watch(ctx, "/etc/qudi/default.cfg", func() {
//	  doc, _ = qudi.Load("/etc/qudi/default.cfg")
//	}, qudi.DefaultWatchConfig())
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer stop()
func Watch(ctx context.Context, path string, onChange func(), cfg WatchConfig) (stop func() error, err error) {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = DefaultWatchConfig().DebounceDelay
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch directory %q: %w", dir, err)
	}

	filename := filepath.Base(path)

	go func() {
		var debounce *time.Timer
		defer func() {
			if debounce != nil {
				debounce.Stop()
			}
		}()

		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				// Only events for our specific file matter.
				if filepath.Base(event.Name) != filename {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if debounce == nil {
					debounce = time.AfterFunc(cfg.DebounceDelay, onChange)
				} else {
					debounce.Reset(cfg.DebounceDelay)
				}
			case werr, ok := <-w.Errors:
				if !ok {
					return
				}
				if cfg.OnError != nil {
					cfg.OnError(werr)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return w.Close, nil
}
