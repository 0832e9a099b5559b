package buildsys

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"

	"github.com/tisannai/ringer/pkg/ringer"
)

// DefaultSettle is how long Watch waits for further changes before triggering a run
const DefaultSettle = 300 * time.Millisecond

// WatchOptions configures Watch
type WatchOptions struct {
	// Settle delays a run until no change has been seen for this long
	Settle time.Duration
	// Ignore lists additional directory names that are never watched
	Ignore []string
}

var defaultIgnoredDirs = []string{"build", ".git", ".tools", "node_modules"}

func ignoredPath(root, path string, extra []string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}

	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") || slices.Contains(defaultIgnoredDirs, part) || slices.Contains(extra, part) {
			return true
		}
	}

	return filepath.Base(path) == CacheName
}

func addWatchDirs(watcher *fsnotify.Watcher, root string, extra []string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		if !d.IsDir() {
			return nil
		}

		if ignoredPath(root, path, extra) {
			return filepath.SkipDir
		}

		return watcher.Add(path)
	})
}

// Watch calls run whenever files below root change, until ctx is cancelled. Changes arriving in quick succession are
// collected and passed to a single run call.
func Watch(ctx context.Context, root string, opts WatchOptions, run func(ctx context.Context, changed []string) error) error {
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return eris.Wrap(err, "failed to resolve watch root")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return eris.Wrap(err, "failed to create watcher")
	}
	defer watcher.Close()

	err = addWatchDirs(watcher, root, opts.Ignore)
	if err != nil {
		return eris.Wrapf(err, "failed to watch %s", root)
	}

	// pending changes; grows as needed while a burst of events comes in
	pending := ringer.MustNew[string](16)
	timer := time.NewTimer(opts.Settle)
	timer.Stop()

	log(ctx).Info().Str("path", root).Msg("watching for changes")

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log(ctx).Warn().Err(err).Msg("watcher error")
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if ignoredPath(root, evt.Name, opts.Ignore) || evt.Op == fsnotify.Chmod {
				continue
			}

			if evt.Op&fsnotify.Create != 0 {
				info, err := os.Stat(evt.Name)
				if err == nil && info.IsDir() {
					err = addWatchDirs(watcher, evt.Name, opts.Ignore)
					if err != nil {
						log(ctx).Warn().Err(err).Str("path", evt.Name).Msg("failed to watch new directory")
					}
				}
			}

			pending.Ram(evt.Name)
			timer.Reset(opts.Settle)
		case <-timer.C:
			changed := make([]string, 0, pending.Count())
			for !pending.IsEmpty() {
				path, _ := pending.Get()
				if !slices.Contains(changed, path) {
					changed = append(changed, path)
				}
			}

			log(ctx).Debug().Strs("changed", changed).Msg("running tasks")
			err := run(ctx, changed)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log(ctx).Error().Err(err).Msg("run failed")
			}
		}
	}
}
