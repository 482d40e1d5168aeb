package config

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors path and calls onChange with the notify section each time a
// write to the file actually changes it. Notify rules and webhook targets are
// the only settings safe to swap at runtime; ports, auth, history sizing and
// the bridge all require a restart, so edits limited to those sections are
// logged and ignored. Watch runs until ctx is cancelled.
//
// If a reload fails (e.g., invalid YAML), the error is logged and the
// previous rules remain active — Watch does not call onChange.
func Watch(ctx context.Context, path string, onChange func(NotifyConfig)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	// Baseline for change detection: the notify section as currently loaded.
	var prev NotifyConfig
	if cfg, err := Load(path); err == nil {
		prev = cfg.Server.Notify
	}

	slog.Info("config: watching for notify rule changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Only reload on write or create events. Editors often write via
			// rename (atomic save), so also catch fsnotify.Create.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				slog.Error("config: reload failed — keeping previous rules",
					"path", path, "err", err)
				continue
			}

			next := cfg.Server.Notify
			if reflect.DeepEqual(next, prev) {
				slog.Info("config: file changed but notify section unchanged — restart to apply other sections",
					"path", path)
			} else {
				prev = next
				slog.Info("config: notify rules reloaded",
					"path", path,
					"rules", len(next.Rules),
					"webhooks", len(next.Webhooks),
				)
				onChange(next)
			}

			// Re-add the file in case an atomic save replaced the inode.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
