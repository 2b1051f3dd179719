package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatchConfig struct {
	Roots       []string      // directories to watch (recursive)
	InitialScan bool          // if true, walk roots and emit existing files
	Debounce    time.Duration // coalesce rapid create/write bursts per path
	SkipHidden  bool
}

// StartWatcher emits paths of supported files created or written under the roots.
// Both channels are closed when ctx is done.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		logger.Error("watcher start failed: no roots provided")
		return nil, nil, errors.New("no roots provided")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}

	// addDir watches root and every directory below it, returning the supported files found.
	addDir := func(root string) ([]string, error) {
		var found []string
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if cfg.SkipHidden && path != root && IsHidden(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return w.Add(path)
			}
			if Supported(path) {
				found = append(found, path)
			}
			return nil
		})
		return found, err
	}

	var initial []string
	for _, r := range cfg.Roots {
		found, err := addDir(r)
		if err != nil {
			logger.Error("failed to add root directory", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
		if cfg.InitialScan {
			initial = append(initial, found...)
		}
	}

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)
	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("watcher close failed", "error", err)
			}
		}()

		emit := func(p string) bool {
			select {
			case evCh <- p:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, p := range initial {
			if !emit(p) {
				return
			}
		}

		// pending maps a path to the time it becomes due.
		pending := map[string]time.Time{}
		tick := time.NewTicker(debounceTick(cfg.Debounce))
		defer tick.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if cfg.SkipHidden && IsHidden(e.Name) {
					continue
				}
				if e.Op&fsnotify.Create == fsnotify.Create {
					if st, err := os.Stat(e.Name); err == nil && st.IsDir() {
						found, err := addDir(e.Name)
						if err != nil {
							logger.Warn("failed to add new directory to watcher", "path", e.Name, "error", err)
						}
						// Files moved in together with the directory produce no events of their own.
						for _, p := range found {
							pending[p] = time.Now().Add(cfg.Debounce)
						}
						continue
					}
				}
				if Supported(e.Name) && e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					pending[e.Name] = time.Now().Add(cfg.Debounce)
				}
			case now := <-tick.C:
				for p, due := range pending {
					if now.Before(due) {
						continue
					}
					delete(pending, p)
					if !emit(p) {
						return
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

func debounceTick(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return 20 * time.Millisecond
	case d/4 < 10*time.Millisecond:
		return 10 * time.Millisecond
	}
	return d / 4
}
