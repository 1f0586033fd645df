package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config file at path whenever it changes and hands the
// result to onChange. It blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file, so saves that write
// a temporary file and rename it over path are seen as well as in-place
// writes. A reload that fails to parse or validate is logged and skipped.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	path = filepath.Clean(path)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config: watch %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: new watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("config: watch %s: %w", filepath.Dir(path), err)
	}

	log.Printf("config: watching %s for changes", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isChange(event, path) {
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				log.Printf("config: reload of %s failed, keeping previous config: %v", path, err)
				continue
			}
			log.Printf("config: reloaded %s", path)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("config: watcher error: %v", err)
		}
	}
}

// isChange reports whether event leaves new content at path. A rename onto
// path arrives as Create; Remove and Rename of path itself leave nothing to
// load.
func isChange(event fsnotify.Event, path string) bool {
	if filepath.Clean(event.Name) != path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}
