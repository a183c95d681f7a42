package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors the config file at path and every calibration and
// measurements file it names. Whenever one of them is written, the config is
// reloaded and onChange is called so the caller can rerun the analysis. It
// runs until ctx is cancelled.
//
// If a reload fails (e.g., invalid YAML), the error is logged and the
// previous config remains active; Watch does not call onChange. The set of
// watched inputs follows the last config that loaded successfully.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	ws := &watchSet{watcher: watcher, config: absPath(path), inputs: map[string]bool{}}
	if cfg, err := Load(path); err == nil {
		ws.track(cfg.Inputs())
	} else {
		slog.Warn("config: not watching tool inputs until the config loads", "path", path, "err", err)
	}

	slog.Info("config: watching for changes", "path", path, "inputs", len(ws.inputs))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Editors often save via rename, which surfaces as Create.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !ws.relevant(event.Name) {
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config",
					"path", path, "changed", event.Name, "err", err)
				_ = watcher.Add(path)
				continue
			}

			slog.Info("config: reloaded", "path", path, "changed", event.Name, "tools", len(cfg.Tools))
			onChange(cfg)

			// Re-add everything in case an atomic save replaced an inode.
			_ = watcher.Add(path)
			ws.track(cfg.Inputs())

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}

// watchSet is the config file plus the tool inputs currently registered
// with the watcher.
type watchSet struct {
	watcher *fsnotify.Watcher
	config  string
	inputs  map[string]bool
}

// track registers every path in inputs and drops inputs no longer listed.
// A missing input is logged and retried on the next reload.
func (ws *watchSet) track(inputs []string) {
	next := make(map[string]bool, len(inputs))
	for _, p := range inputs {
		p = absPath(p)
		if p == ws.config {
			continue
		}
		if err := ws.watcher.Add(p); err != nil {
			slog.Warn("config: cannot watch tool input", "path", p, "err", err)
			continue
		}
		next[p] = true
	}
	for p := range ws.inputs {
		if !next[p] {
			_ = ws.watcher.Remove(p)
		}
	}
	ws.inputs = next
}

func (ws *watchSet) relevant(name string) bool {
	p := absPath(name)
	return p == ws.config || ws.inputs[p]
}

func absPath(p string) string {
	if a, err := filepath.Abs(p); err == nil {
		return a
	}
	return filepath.Clean(p)
}
