package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config file at path whenever it changes and hands each
// successfully loaded config to onChange. A load failure keeps the previous
// config in effect and is only logged. Watch blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file itself because
// editors and orchestrators typically replace the file atomically, which
// drops an inode-level watch.
func Watch(ctx context.Context, path string, log *slog.Logger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, _, notes, err := Load(path)
			if err != nil {
				log.Error("config reload failed, keeping previous config",
					slog.String("path", path),
					slog.String("error", err.Error()))
				continue
			}
			for _, note := range notes {
				log.Warn("config normalized", slog.String("note", note))
			}
			log.Info("config reloaded", slog.String("path", path))
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("config watcher error", slog.String("error", err.Error()))
		}
	}
}
