package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"bfnasm/pkg/utils"

	"github.com/fsnotify/fsnotify"
)

// watch compiles input once and then again every time it is written or
// replaced, until ctx is cancelled. Compile errors do not stop the loop.
func (d *driver) watch(ctx context.Context, input, output string) error {
	fullPath, dir, err := utils.GetPathInfo(input)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", input, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace files instead of writing them in place, so the
	// directory is watched rather than the file.
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	d.log.Info("Watching source", "path", fullPath, "output", output)

	d.rebuild(input, output)
	for {
		select {
		case <-ctx.Done():
			d.log.Info("Stopped watching", "path", fullPath)
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != fullPath {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			d.log.Debug("Source changed", "path", ev.Name, "op", ev.Op)
			d.rebuild(input, output)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			d.log.Warn("Watcher error", "err", err)
		}
	}
}

func (d *driver) rebuild(input, output string) {
	err := d.compile(input, output)
	switch {
	case errors.Is(err, errCompileFailed):
		// diagnostic already printed
	case err != nil:
		d.log.Error("Compile failed", "source", input, "err", err)
	default:
		d.log.Info("Rebuilt", "source", input, "output", output)
	}
}
