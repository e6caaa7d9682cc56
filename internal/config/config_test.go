package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestDefaultMatchesConsumerTimings(t *testing.T) {
	cfg := Default()
	if cfg.Watch.ReconnectDelay != 3*time.Second {
		t.Errorf("ReconnectDelay = %v, want 3s", cfg.Watch.ReconnectDelay)
	}
	if cfg.Watch.VisibilityDelay != time.Second {
		t.Errorf("VisibilityDelay = %v, want 1s", cfg.Watch.VisibilityDelay)
	}
	if cfg.Watch.TickInterval != time.Second {
		t.Errorf("TickInterval = %v, want 1s", cfg.Watch.TickInterval)
	}
	if cfg.Watch.AutoConnect {
		t.Error("AutoConnect should default to false")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty url", func(c *Config) { c.Watch.URL = "" }, "watch.url"},
		{"zero reconnect delay", func(c *Config) { c.Watch.ReconnectDelay = 0 }, "reconnect_delay"},
		{"negative visibility delay", func(c *Config) { c.Watch.VisibilityDelay = -time.Second }, "visibility_delay"},
		{"zero tick", func(c *Config) { c.Watch.TickInterval = 0 }, "tick_interval"},
		{"negative stale timeout", func(c *Config) { c.Watch.StaleTimeout = -1 }, "stale_timeout"},
		{"negative retries", func(c *Config) { c.Watch.TransportRetries = -1 }, "transport_retries"},
		{"zero max messages", func(c *Config) { c.Watch.MaxMessages = 0 }, "max_messages"},
		{"zero serve interval", func(c *Config) { c.Serve.MinInterval = 0 }, "intervals"},
		{"min above max", func(c *Config) { c.Serve.MinInterval = 5 * time.Second }, "exceeds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "feedwatch.yaml")

	yaml := `
watch:
  url: "http://example.test:9000/stream_message"
  reconnect_delay: 5s
  stale_timeout: 30s
  auto_connect: true
serve:
  addr: "0.0.0.0:9000"
log:
  level: debug
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, path, err := Load(nil, cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if path != cfgPath {
		t.Errorf("path = %q, want %q", path, cfgPath)
	}
	if cfg.Watch.URL != "http://example.test:9000/stream_message" {
		t.Errorf("URL = %q", cfg.Watch.URL)
	}
	if cfg.Watch.ReconnectDelay != 5*time.Second {
		t.Errorf("ReconnectDelay = %v, want 5s", cfg.Watch.ReconnectDelay)
	}
	if cfg.Watch.StaleTimeout != 30*time.Second {
		t.Errorf("StaleTimeout = %v, want 30s", cfg.Watch.StaleTimeout)
	}
	if !cfg.Watch.AutoConnect {
		t.Error("AutoConnect should be true")
	}
	// Unset keys keep their defaults.
	if cfg.Watch.VisibilityDelay != time.Second {
		t.Errorf("VisibilityDelay = %v, want default 1s", cfg.Watch.VisibilityDelay)
	}
	if cfg.Serve.Addr != "0.0.0.0:9000" {
		t.Errorf("Serve.Addr = %q", cfg.Serve.Addr)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "feedwatch.yaml")
	if err := os.WriteFile(cfgPath, []byte("watch:\n  url: \"http://file.test/stream\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FEEDWATCH_WATCH_URL", "ws://env.test/ws")

	cfg, _, err := Load(nil, cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Watch.URL != "ws://env.test/ws" {
		t.Errorf("URL = %q, want env override", cfg.Watch.URL)
	}
}

func TestLoadMissingFileWritesDefaults(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "nested", "feedwatch.yaml")

	cfg, _, err := Load(nil, cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Watch.URL != Default().Watch.URL {
		t.Errorf("URL = %q, want default", cfg.Watch.URL)
	}
	if _, err := os.Stat(cfgPath); err != nil {
		t.Errorf("default config not written: %v", err)
	}

	// The written file must round-trip to the same settings.
	again, _, err := Load(nil, cfgPath)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if again.Watch.ReconnectDelay != cfg.Watch.ReconnectDelay {
		t.Errorf("ReconnectDelay after rewrite = %v, want %v", again.Watch.ReconnectDelay, cfg.Watch.ReconnectDelay)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "feedwatch.yaml")
	if err := os.WriteFile(cfgPath, []byte("watch: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(nil, cfgPath); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}
