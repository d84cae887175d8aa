// Package config provides configuration management for deckgenius with Viper integration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config represents the complete configuration for deckgenius.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	TLS      TLSConfig      `mapstructure:"tls"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Playback PlaybackConfig `mapstructure:"playback"`
	Deck     DeckConfig     `mapstructure:"deck"`
	Database DatabaseConfig `mapstructure:"database"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds the HTTP listener address.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// TLSConfig enables HTTPS.
type TLSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	CertFile   string `mapstructure:"cert_file"`
	KeyFile    string `mapstructure:"key_file"`
	MinVersion string `mapstructure:"min_version"`
}

// FeedConfig describes the external data feed.
type FeedConfig struct {
	URL           string        `mapstructure:"url"`
	Interval      time.Duration `mapstructure:"interval"`
	Timeout       time.Duration `mapstructure:"timeout"`
	IdentityField string        `mapstructure:"identity_field"`
	FlagField     string        `mapstructure:"flag_field"`
	Policy        string        `mapstructure:"policy"`
}

// PlaybackConfig holds presentation timing and template selection.
type PlaybackConfig struct {
	AutoplayDuration       time.Duration `mapstructure:"autoplay_duration"`
	TransitionDuration     time.Duration `mapstructure:"transition_duration"`
	WelcomeIndex           int           `mapstructure:"welcome_index"`
	TemplateIndex          int           `mapstructure:"template_index"`
	AlternateTemplateIndex int           `mapstructure:"alternate_template_index"`
	SelectorColumn         string        `mapstructure:"selector_column"`
	SelectorValue          string        `mapstructure:"selector_value"`
	WindowPollInterval     time.Duration `mapstructure:"window_poll_interval"`
	WindowOpenTimeout      time.Duration `mapstructure:"window_open_timeout"`
}

// DeckConfig locates the persisted deck.
type DeckConfig struct {
	Path  string `mapstructure:"path"`
	Title string `mapstructure:"title"`
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	RestoreHistory bool   `mapstructure:"restore_history"`
}

// BrokerConfig holds the RabbitMQ publisher settings. An empty URL disables it.
type BrokerConfig struct {
	URL        string `mapstructure:"url"`
	Exchange   string `mapstructure:"exchange"`
	RoutingKey string `mapstructure:"routing_key"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Manager handles configuration loading, watching, and reloading.
type Manager struct {
	config    *Config
	viper     *viper.Viper
	logger    zerolog.Logger
	mu        sync.RWMutex
	callbacks []func(*Config)
	watching  bool
}

// NewManager creates a new configuration manager. An empty path searches for
// deckgenius.{toml,yaml,json} in the working directory.
func NewManager(path string, logger zerolog.Logger) *Manager {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("deckgenius")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("DECKGENIUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	m := &Manager{
		viper:  v,
		logger: logger.With().Str("component", "config").Logger(),
	}
	m.setDefaults()
	return m
}

// Load loads the configuration from file and environment variables. A missing
// config file is not an error; defaults and environment apply.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		m.logger.Debug().Msg("no config file found, using defaults")
	}

	cfg, err := m.decode()
	if err != nil {
		return err
	}
	m.config = cfg
	return nil
}

func (m *Manager) decode() (*Config, error) {
	cfg := &Config{}
	if err := m.viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Get returns the current configuration (thread-safe).
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return DefaultConfig()
	}
	configCopy := *m.config
	return &configCopy
}

// ConfigFile returns the file in use, if any
func (m *Manager) ConfigFile() string {
	return m.viper.ConfigFileUsed()
}

// Watch starts watching the config file for changes and reloads automatically.
// Invalid edits are logged and the previous configuration stays active.
func (m *Manager) Watch() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watching || m.viper.ConfigFileUsed() == "" {
		return
	}

	m.viper.OnConfigChange(func(e fsnotify.Event) {
		m.handleChange(e)
	})
	m.viper.WatchConfig()
	m.watching = true
}

func (m *Manager) handleChange(e fsnotify.Event) {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}

	m.mu.Lock()
	cfg, err := m.decode()
	if err != nil {
		m.mu.Unlock()
		m.logger.Warn().Err(err).Str("file", e.Name).Msg("failed to reload config")
		return
	}
	m.config = cfg
	callbacks := make([]func(*Config), len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.Unlock()

	m.logger.Info().Str("file", e.Name).Msg("config reloaded")
	for _, callback := range callbacks {
		callback(cfg)
	}
}

// OnConfigChange registers a callback function to be called when config changes.
func (m *Manager) OnConfigChange(callback func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callbacks = append(m.callbacks, callback)
}
