package scan

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/leapstack-labs/legacyscan/pkg/core"
)

// DefaultDebounce is the quiet period before a watched change triggers a rescan.
const DefaultDebounce = 300 * time.Millisecond

// Watch calls fn whenever a supported source file under roots is written,
// created, removed or renamed. Bursts of events within debounce collapse
// into one call. It blocks until ctx is cancelled. Errors from fn are
// logged and watching continues.
func (s *Scanner) Watch(ctx context.Context, roots []string, debounce time.Duration, fn func(ctx context.Context, changed []string) error) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	for _, root := range roots {
		if err := watchDirRecursive(watcher, root); err != nil {
			return err
		}
	}
	s.logger.Info("watching for changes", slog.Any("roots", roots), slog.Duration("debounce", debounce))

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				// New directories need their own watch.
				if isDir(event.Name) {
					_ = watchDirRecursive(watcher, event.Name)
					continue
				}
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if _, ok := core.LanguageFromPath(event.Name); !ok {
				continue
			}
			pending[event.Name] = true
			timer.Reset(debounce)

		case <-timer.C:
			changed := make([]string, 0, len(pending))
			for name := range pending {
				changed = append(changed, name)
			}
			clear(pending)
			sort.Strings(changed)
			s.logger.Debug("files changed, rescanning", slog.Int("files", len(changed)))
			if err := fn(ctx, changed); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("rescan failed", slog.String("error", err.Error()))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", slog.String("error", err.Error()))
		}
	}
}

// watchDirRecursive adds a directory and all subdirectories to the watcher,
// skipping hidden directories.
func watchDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
