package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the settings for both the watcher TUI and the demo feed server.
type Config struct {
	Watch WatchConfig `mapstructure:"watch" yaml:"watch"`
	Serve ServeConfig `mapstructure:"serve" yaml:"serve"`
	Log   LogConfig   `mapstructure:"log" yaml:"log"`
}

// WatchConfig drives the stream connection controller and the TUI.
type WatchConfig struct {
	URL              string        `mapstructure:"url" yaml:"url"`
	ReconnectDelay   time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
	VisibilityDelay  time.Duration `mapstructure:"visibility_delay" yaml:"visibility_delay"`
	TickInterval     time.Duration `mapstructure:"tick_interval" yaml:"tick_interval"`
	StaleTimeout     time.Duration `mapstructure:"stale_timeout" yaml:"stale_timeout"`
	TransportRetries int           `mapstructure:"transport_retries" yaml:"transport_retries"`
	RetryInitial     time.Duration `mapstructure:"retry_initial" yaml:"retry_initial"`
	RetryMax         time.Duration `mapstructure:"retry_max" yaml:"retry_max"`
	AutoConnect      bool          `mapstructure:"auto_connect" yaml:"auto_connect"`
	MaxMessages      int           `mapstructure:"max_messages" yaml:"max_messages"`
}

// ServeConfig configures the random message feed server.
type ServeConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	MinInterval     time.Duration `mapstructure:"min_interval" yaml:"min_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval" yaml:"max_interval"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LogConfig selects the log level and, for the TUI, the log file.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Watch: WatchConfig{
			URL:              "http://127.0.0.1:8000/stream_message",
			ReconnectDelay:   3 * time.Second,
			VisibilityDelay:  time.Second,
			TickInterval:     time.Second,
			TransportRetries: 3,
			RetryInitial:     500 * time.Millisecond,
			RetryMax:         5 * time.Second,
			MaxMessages:      500,
		},
		Serve: ServeConfig{
			Addr:            "127.0.0.1:8000",
			MinInterval:     time.Second,
			MaxInterval:     3 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
			File:  "feedwatch.log",
		},
	}
}

// Validate reports the first setting that would break the controller or the server.
func (c Config) Validate() error {
	w := c.Watch
	if w.URL == "" {
		return errors.New("watch.url must be set")
	}
	if w.ReconnectDelay <= 0 {
		return fmt.Errorf("watch.reconnect_delay must be positive, got %v", w.ReconnectDelay)
	}
	if w.VisibilityDelay <= 0 {
		return fmt.Errorf("watch.visibility_delay must be positive, got %v", w.VisibilityDelay)
	}
	if w.TickInterval <= 0 {
		return fmt.Errorf("watch.tick_interval must be positive, got %v", w.TickInterval)
	}
	if w.StaleTimeout < 0 {
		return fmt.Errorf("watch.stale_timeout must not be negative, got %v", w.StaleTimeout)
	}
	if w.TransportRetries < 0 {
		return fmt.Errorf("watch.transport_retries must not be negative, got %d", w.TransportRetries)
	}
	if w.MaxMessages <= 0 {
		return fmt.Errorf("watch.max_messages must be positive, got %d", w.MaxMessages)
	}

	s := c.Serve
	if s.MinInterval <= 0 || s.MaxInterval <= 0 {
		return errors.New("serve intervals must be positive")
	}
	if s.MinInterval > s.MaxInterval {
		return fmt.Errorf("serve.min_interval %v exceeds serve.max_interval %v", s.MinInterval, s.MaxInterval)
	}
	return nil
}
