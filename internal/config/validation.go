package config

import (
	"fmt"
	"strconv"
	"strings"

	"deckgenius/internal/queue"
)

// normalize trims and lower-cases enum-like values
func (c *Config) normalize() {
	c.Feed.Policy = strings.ToLower(strings.TrimSpace(c.Feed.Policy))
	c.Feed.IdentityField = strings.TrimSpace(c.Feed.IdentityField)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.TLS.MinVersion = strings.TrimSpace(c.TLS.MinVersion)
}

// Validate reports every invalid setting in one joined error
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 0 || port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %q is not a valid port", c.Server.Port))
	}
	if c.TLS.Enabled && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		errs = append(errs, "tls.cert_file and tls.key_file are required when tls is enabled")
	}
	switch c.TLS.MinVersion {
	case "", "1.0", "1.1", "1.2", "1.3":
	default:
		errs = append(errs, fmt.Sprintf("tls.min_version %q is not one of 1.0, 1.1, 1.2, 1.3", c.TLS.MinVersion))
	}

	if c.Feed.IdentityField == "" {
		errs = append(errs, "feed.identity_field must not be empty")
	}
	if _, err := queue.ParsePolicy(c.Feed.Policy); err != nil {
		errs = append(errs, fmt.Sprintf("feed.policy: %v", err))
	}
	if c.Feed.Interval <= 0 {
		errs = append(errs, "feed.interval must be positive")
	}
	if c.Feed.Timeout <= 0 {
		errs = append(errs, "feed.timeout must be positive")
	}

	if c.Playback.AutoplayDuration <= 0 {
		errs = append(errs, "playback.autoplay_duration must be positive")
	}
	if c.Playback.TransitionDuration <= 0 {
		errs = append(errs, "playback.transition_duration must be positive")
	}
	if c.Playback.WelcomeIndex < 0 || c.Playback.TemplateIndex < 0 {
		errs = append(errs, "playback.welcome_index and playback.template_index must not be negative")
	}
	if c.Playback.WindowPollInterval <= 0 {
		errs = append(errs, "playback.window_poll_interval must be positive")
	}

	switch c.Logging.Format {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("logging.format %q is not console or json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}
