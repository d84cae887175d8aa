package config

import "time"

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: "8080"},
		TLS:    TLSConfig{MinVersion: "1.2"},
		Feed: FeedConfig{
			Interval:      5 * time.Second,
			Timeout:       10 * time.Second,
			IdentityField: "Stt",
			FlagField:     "Display",
			Policy:        "simple",
		},
		Playback: PlaybackConfig{
			AutoplayDuration:       3 * time.Second,
			TransitionDuration:     time.Second,
			WelcomeIndex:           0,
			TemplateIndex:          1,
			AlternateTemplateIndex: 2,
			SelectorColumn:         "Giới tính",
			SelectorValue:          "nữ",
			WindowPollInterval:     500 * time.Millisecond,
			WindowOpenTimeout:      5 * time.Second,
		},
		Deck:     DeckConfig{Path: "./data/deck.json", Title: "Untitled Presentation"},
		Database: DatabaseConfig{Path: "./data/deckgenius.db", RestoreHistory: true},
		Broker:   BrokerConfig{Exchange: "deckgenius", RoutingKey: "row.presented"},
		Logging:  LoggingConfig{Level: "info", Format: "console"},
	}
}

// setDefaults sets default configuration values in Viper.
func (m *Manager) setDefaults() {
	d := DefaultConfig()

	m.viper.SetDefault("server.host", d.Server.Host)
	m.viper.SetDefault("server.port", d.Server.Port)

	m.viper.SetDefault("tls.enabled", d.TLS.Enabled)
	m.viper.SetDefault("tls.cert_file", d.TLS.CertFile)
	m.viper.SetDefault("tls.key_file", d.TLS.KeyFile)
	m.viper.SetDefault("tls.min_version", d.TLS.MinVersion)

	m.viper.SetDefault("feed.url", d.Feed.URL)
	m.viper.SetDefault("feed.interval", d.Feed.Interval)
	m.viper.SetDefault("feed.timeout", d.Feed.Timeout)
	m.viper.SetDefault("feed.identity_field", d.Feed.IdentityField)
	m.viper.SetDefault("feed.flag_field", d.Feed.FlagField)
	m.viper.SetDefault("feed.policy", d.Feed.Policy)

	m.viper.SetDefault("playback.autoplay_duration", d.Playback.AutoplayDuration)
	m.viper.SetDefault("playback.transition_duration", d.Playback.TransitionDuration)
	m.viper.SetDefault("playback.welcome_index", d.Playback.WelcomeIndex)
	m.viper.SetDefault("playback.template_index", d.Playback.TemplateIndex)
	m.viper.SetDefault("playback.alternate_template_index", d.Playback.AlternateTemplateIndex)
	m.viper.SetDefault("playback.selector_column", d.Playback.SelectorColumn)
	m.viper.SetDefault("playback.selector_value", d.Playback.SelectorValue)
	m.viper.SetDefault("playback.window_poll_interval", d.Playback.WindowPollInterval)
	m.viper.SetDefault("playback.window_open_timeout", d.Playback.WindowOpenTimeout)

	m.viper.SetDefault("deck.path", d.Deck.Path)
	m.viper.SetDefault("deck.title", d.Deck.Title)

	m.viper.SetDefault("database.path", d.Database.Path)
	m.viper.SetDefault("database.restore_history", d.Database.RestoreHistory)

	m.viper.SetDefault("broker.url", d.Broker.URL)
	m.viper.SetDefault("broker.exchange", d.Broker.Exchange)
	m.viper.SetDefault("broker.routing_key", d.Broker.RoutingKey)

	m.viper.SetDefault("logging.level", d.Logging.Level)
	m.viper.SetDefault("logging.format", d.Logging.Format)
}
