// internal/config/manager.go - Dynamic configuration with validation
package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Manager holds static, file-backed defaults with hot reload. It is
// deliberately separate from per-query live configuration, which every
// worker reads straight from the store on each cycle (see internal/worker)
// rather than from this file.
type Manager struct {
	viper    *viper.Viper
	current  *Config
	mu       sync.RWMutex
	watchers []func(*Config)
}

// Config represents the file-backed defaults this process boots with.
type Config struct {
	ProxyList             []string      `mapstructure:"proxy_list"`
	ProxyListLink         string        `mapstructure:"proxy_list_link"`
	CheckProxies          bool          `mapstructure:"check_proxies"`
	ProxyRotationInterval time.Duration `mapstructure:"proxy_rotation_interval"`
	QueryRefreshDelay     time.Duration `mapstructure:"query_refresh_delay"`
	ItemsPerQuery         int           `mapstructure:"items_per_query"`
	RedeployThreshold     time.Duration `mapstructure:"redeploy_threshold"`
	MaxHTTPErrors         int           `mapstructure:"max_http_errors"`
	WebPort               int           `mapstructure:"web_port"`
	UpdatedAt             time.Time     `mapstructure:"-"`
}

// NewManager creates a configuration manager from the given YAML file path.
// configPath may be empty, in which case only defaults and environment
// overrides apply.
func NewManager(configPath string) (*Manager, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("check_proxies", true)
	v.SetDefault("proxy_rotation_interval", 30*time.Minute)
	v.SetDefault("query_refresh_delay", 60*time.Second)
	v.SetDefault("items_per_query", 20)
	v.SetDefault("redeploy_threshold", 4*time.Minute)
	v.SetDefault("max_http_errors", 5)
	v.SetDefault("web_port", 8080)

	v.SetEnvPrefix("VINTED")
	v.AutomaticEnv()

	m := &Manager{viper: v}

	if configPath == "" {
		if err := m.load(); err != nil {
			return nil, err
		}
		return m, nil
	}

	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := m.load(); err != nil {
		return nil, err
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		if err := m.load(); err != nil {
			// Log error but don't crash; previous config stays active.
			log.Printf("⚠️ config: reload of %s failed, keeping previous config: %v", e.Name, err)
			return
		}
		m.notifyWatchers()
	})

	return m, nil
}

// load reads and validates configuration.
func (m *Manager) load() error {
	var cfg Config
	if err := m.viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return fmt.Errorf("validation: %w", err)
	}

	cfg.UpdatedAt = time.Now()

	m.mu.Lock()
	m.current = &cfg
	m.mu.Unlock()

	return nil
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// OnChange registers a callback for configuration changes.
func (m *Manager) OnChange(fn func(*Config)) {
	m.watchers = append(m.watchers, fn)
}

// notifyWatchers calls all registered callbacks.
func (m *Manager) notifyWatchers() {
	cfg := m.Get()
	for _, fn := range m.watchers {
		go fn(cfg) // Async notification
	}
}

// GetViper returns the underlying viper instance.
func (m *Manager) GetViper() *viper.Viper {
	return m.viper
}

// validate checks configuration validity.
func validate(cfg *Config) error {
	if cfg.ItemsPerQuery <= 0 {
		return fmt.Errorf("items_per_query must be positive")
	}
	if cfg.QueryRefreshDelay <= 0 {
		return fmt.Errorf("query_refresh_delay must be positive")
	}
	if cfg.MaxHTTPErrors <= 0 {
		return fmt.Errorf("max_http_errors must be positive")
	}
	if cfg.WebPort <= 0 || cfg.WebPort > 65535 {
		return fmt.Errorf("web_port out of range")
	}
	return nil
}
