package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"marlin/internal/logger"
)

// WatchLogLevel applies app.log_level changes from the config file without a
// restart. Only the log level is hot-reloaded; everything else requires a
// restart so mid-flight trades never see a half-applied configuration.
func WatchLogLevel(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: editors replace the file on save, which drops a
	// watch registered on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		target := filepath.Clean(path)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				reloadLogLevel(path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warnf("config watcher: %v", err)
			}
		}
	}()
	return nil
}

func reloadLogLevel(path string) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		logger.Warnf("config reload skipped, file unreadable: %v", err)
		return
	}
	if level := v.GetString("app.log_level"); level != "" {
		logger.SetLevel(level)
		logger.Infof("log level set to %s", level)
	}
}
