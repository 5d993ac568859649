package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch begins watching the active config file for changes. After every
// change the config is reloaded and validated; onChange receives the new
// config, while a config that fails validation is reported through onError
// and the previous configuration stays in effect.
//
// Watch returns immediately; callbacks fire on viper's watcher goroutine.
// Callers typically re-apply hot-reloadable settings (log level) and log
// everything else as requiring a restart.
func Watch(onChange func(*Config), onError func(error)) {
	viper.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := Load()
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		if onChange != nil {
			onChange(cfg)
		}
	})
	viper.WatchConfig()
}
