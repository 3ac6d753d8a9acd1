package tail

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay coalesces bursts of writes into a single poll.
const settleDelay = 200 * time.Millisecond

// Watch polls once, then again whenever a watched directory changes or
// interval elapses, until ctx is done. onPoll, when set, receives every
// poll result.
func (t *Tailer) Watch(ctx context.Context, interval time.Duration, onPoll func(Result)) error {
	if interval <= 0 {
		return fmt.Errorf("invalid poll interval %s", interval)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	watched := map[string]bool{}
	poll := func() error {
		res, err := t.Poll(ctx)
		if err != nil {
			return err
		}
		if onPoll != nil {
			onPoll(res)
		}
		t.watchDirs(watcher, watched)
		return nil
	}

	if err := poll(); err != nil {
		return ignoreCanceled(err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	settle := time.NewTimer(settleDelay)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			if err := poll(); err != nil {
				return ignoreCanceled(err)
			}

		case <-settle.C:
			if err := poll(); err != nil {
				return ignoreCanceled(err)
			}

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			settle.Reset(settleDelay)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			t.logger.Warn("watcher error", "error", err)
		}
	}
}

// watchDirs registers each source root and the directory of every matched
// file. Directories that do not exist yet are retried on the next poll.
func (t *Tailer) watchDirs(w *fsnotify.Watcher, watched map[string]bool) {
	add := func(dir string) {
		if dir == "" || watched[dir] {
			return
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return
		}
		if err := w.Add(dir); err != nil {
			t.logger.Debug("cannot watch directory", "dir", dir, "error", err)
			return
		}
		watched[dir] = true
	}

	for _, src := range t.sources {
		if root, err := src.Root(); err == nil {
			add(root)
		}

		files, err := src.Expand()
		if err != nil {
			continue
		}
		for _, f := range files {
			add(filepath.Dir(f.Path))
		}
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
