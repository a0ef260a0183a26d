package config

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Manager holds the current configuration and reloads it when the file
// changes. Running sessions keep the config they started with.
type Manager struct {
	path string

	mu       sync.RWMutex
	config   *Config
	onChange []func(*Config)

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
}

// NewManager loads path (the default location when empty). A missing file
// yields defaults.
func NewManager(path string) (*Manager, error) {
	log.Debug("Config manager: initializing configuration system")

	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	config, err := loadOrDefault(path)
	if err != nil {
		log.Error("Config manager: failed to load initial configuration", "err", err)
		return nil, err
	}

	if err := config.Validate(); err != nil {
		log.Warn("Config manager: validation warning", "err", err)
	}

	return &Manager{path: path, config: config}, nil
}

func loadOrDefault(path string) (*Config, error) {
	config, err := LoadFile(path)
	if errors.Is(err, ErrConfigNotFound) {
		config = DefaultConfig()
		config.applyEnv()
		return config, nil
	}
	return config, err
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to prevent external modification
	configCopy := *m.config
	return &configCopy
}

// OnChange registers fn to run after every successful reload.
func (m *Manager) OnChange(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

func (m *Manager) StartWatching(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory: editors replace the file instead of writing it.
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		watcher.Close()
		return err
	}
	m.watcher = watcher

	m.wg.Add(1)
	go m.watchLoop(ctx)

	log.Info("Config manager: watching for changes", "path", m.path)
	return nil
}

func (m *Manager) Stop() {
	if m.watcher != nil {
		m.watcher.Close()
	}
	m.wg.Wait()
}

func (m *Manager) watchLoop(ctx context.Context) {
	defer m.wg.Done()
	configFileName := filepath.Base(m.path)

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != configFileName {
				continue
			}

			// Only react to Write and Create events (ignore Chmod, Remove, etc.)
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				log.Info("Config manager: file change detected, reloading", "file", event.Name)
				m.reload()
			}

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("Config watcher error", "err", err)

		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) reload() {
	newConfig, err := LoadFile(m.path)
	if err != nil {
		log.Error("Config manager: failed to reload config", "err", err)
		return
	}

	if err := newConfig.Validate(); err != nil {
		log.Error("Config manager: invalid config after reload, keeping previous", "err", err)
		return
	}

	m.mu.Lock()
	m.config = newConfig
	callbacks := append([]func(*Config){}, m.onChange...)
	m.mu.Unlock()

	for _, fn := range callbacks {
		configCopy := *newConfig
		fn(&configCopy)
	}

	log.Info("Config manager: configuration successfully reloaded")
}
