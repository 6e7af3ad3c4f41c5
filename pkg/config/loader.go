package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/reportwise/semcache/pkg/observability/logging"
)

// Parse reads and validates the YAML config file at the given path.
func Parse(configPath string) (*Config, error) {
	// Resolve symlinks to handle Kubernetes ConfigMap mounts
	resolved, _ := filepath.EvalSymlinks(configPath)
	if resolved == "" {
		resolved = configPath
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Default returns a config with all defaults applied and caching enabled.
func Default() *Config {
	cfg := &Config{Cache: CacheConfig{Enabled: true}}
	cfg.applyDefaults()
	return cfg
}

// Watch monitors the config file and invokes onChange with each successfully
// re-parsed config. It blocks until ctx is cancelled; callers run it in their
// own goroutine. Parse failures are logged and the previous config stays live.
func Watch(ctx context.Context, configPath string, onChange func(*Config)) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.LogEvent("config_watcher_error", map[string]interface{}{
			"stage": "create_watcher",
			"error": err.Error(),
		})
		return
	}
	defer watcher.Close()

	cfgDir := filepath.Dir(configPath)

	// Watch both the file and its directory to handle symlink swaps
	if err := watcher.Add(cfgDir); err != nil {
		logging.LogEvent("config_watcher_error", map[string]interface{}{
			"stage": "watch_dir",
			"dir":   cfgDir,
			"error": err.Error(),
		})
		return
	}
	_ = watcher.Add(configPath) // best-effort; may fail if file replaced by symlink later

	// Debounce events
	var (
		pending bool
		last    time.Time
	)

	reload := func() {
		cfg, err := Parse(configPath)
		if err != nil {
			logging.LogEvent("config_reload_failed", map[string]interface{}{
				"file":  configPath,
				"error": err.Error(),
			})
			return
		}
		onChange(cfg)
		logging.LogEvent("config_reloaded", map[string]interface{}{
			"file": configPath,
		})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove|fsnotify.Chmod) != 0 {
				if filepath.Base(ev.Name) == filepath.Base(configPath) || filepath.Dir(ev.Name) == cfgDir {
					if !pending || time.Since(last) > 250*time.Millisecond {
						pending = true
						last = time.Now()
						// Slight delay to let the file settle
						go func() {
							timer := time.NewTimer(300 * time.Millisecond)
							defer timer.Stop()
							select {
							case <-ctx.Done():
							case <-timer.C:
								reload()
							}
						}()
					}
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.LogEvent("config_watcher_error", map[string]interface{}{
				"stage": "watch_loop",
				"error": err.Error(),
			})
		}
	}
}
