package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envConfigDefaultPath = "FEEDWATCH_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "feedwatch.yaml"
)

// Load builds configuration from defaults, optional config file and env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix("FEEDWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, configPath, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("watch.url", cfg.Watch.URL)
	v.SetDefault("watch.reconnect_delay", cfg.Watch.ReconnectDelay)
	v.SetDefault("watch.visibility_delay", cfg.Watch.VisibilityDelay)
	v.SetDefault("watch.tick_interval", cfg.Watch.TickInterval)
	v.SetDefault("watch.stale_timeout", cfg.Watch.StaleTimeout)
	v.SetDefault("watch.transport_retries", cfg.Watch.TransportRetries)
	v.SetDefault("watch.retry_initial", cfg.Watch.RetryInitial)
	v.SetDefault("watch.retry_max", cfg.Watch.RetryMax)
	v.SetDefault("watch.auto_connect", cfg.Watch.AutoConnect)
	v.SetDefault("watch.max_messages", cfg.Watch.MaxMessages)

	v.SetDefault("serve.addr", cfg.Serve.Addr)
	v.SetDefault("serve.min_interval", cfg.Serve.MinInterval)
	v.SetDefault("serve.max_interval", cfg.Serve.MaxInterval)
	v.SetDefault("serve.shutdown_timeout", cfg.Serve.ShutdownTimeout)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.file", cfg.Log.File)
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
