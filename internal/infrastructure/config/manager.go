package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ReloadFunc is invoked with the new value when a reloadable key changes.
type ReloadFunc func(key, value string)

// Manager watches the config file and hot-applies the whitelisted keys.
// Static keys (server, storage, credentials) require a restart and are
// ignored on change.
type Manager struct {
	v        *viper.Viper
	mu       sync.Mutex
	last     map[string]string
	onReload ReloadFunc
}

// NewManager creates a config watcher over path. The onReload callback runs
// on the fsnotify watcher goroutine; it must not block.
func NewManager(path string, onReload ReloadFunc) (*Manager, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config for watch: %w", err)
	}

	m := &Manager{
		v:        v,
		last:     make(map[string]string),
		onReload: onReload,
	}
	for key := range reloadableKeys {
		m.last[key] = v.GetString(key)
	}
	return m, nil
}

// Watch starts watching the config file for changes.
func (m *Manager) Watch() {
	m.v.OnConfigChange(func(_ fsnotify.Event) {
		m.applyChanges()
	})
	m.v.WatchConfig()
}

func (m *Manager) applyChanges() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range reloadableKeys {
		val := m.v.GetString(key)
		if val == m.last[key] {
			continue
		}
		if !validReloadValue(key, val) {
			continue
		}
		m.last[key] = val
		if m.onReload != nil {
			m.onReload(key, val)
		}
	}
}

func validReloadValue(key, value string) bool {
	switch key {
	case "logging.level":
		return ValidateLogLevel(value) == nil
	case "logging.format":
		return ValidateLogFormat(value) == nil
	default:
		return false
	}
}
