package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLoadConfig tests loading default config
func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("Failed to load default config: %v", err)
	}
	if cfg == nil {
		t.Fatal("Config is nil")
	}
}

// TestLoadConfigDefaults tests default values are set
func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Address == "" {
		t.Error("Address should not be empty")
	}
	if cfg.Database.Type != "sqlite" || cfg.Database.Path == "" {
		t.Error("Default database should be sqlite with a path")
	}
	if cfg.Transport.WriteTimeout() <= 0 || cfg.Transport.ReadIdle() <= 0 {
		t.Error("Transport deadlines should have positive defaults")
	}
	if cfg.Transport.RequestTimeout() <= 0 {
		t.Error("Request timeout should have a positive default")
	}
}

// TestLoadConfigFromFile tests YAML file loading with partial overrides
func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	data := []byte(`
address: ":9090"
logging:
  level: debug
transport:
  request_timeout_seconds: 5
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Address != ":9090" {
		t.Errorf("Expected address :9090, got %s", cfg.Address)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected debug level, got %s", cfg.Logging.Level)
	}
	if cfg.Transport.RequestTimeoutSeconds != 5 {
		t.Errorf("Expected request timeout 5, got %d", cfg.Transport.RequestTimeoutSeconds)
	}
	// Untouched keys keep their defaults
	if cfg.Database.Type != "sqlite" {
		t.Errorf("Expected sqlite default, got %s", cfg.Database.Type)
	}
}

// TestEnvOverrides tests environment variable overrides
func TestEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":7070")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "42")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Address != ":7070" {
		t.Errorf("Expected address :7070, got %s", cfg.Address)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Expected warn level, got %s", cfg.Logging.Level)
	}
	if cfg.Transport.RequestTimeoutSeconds != 42 {
		t.Errorf("Expected request timeout 42, got %d", cfg.Transport.RequestTimeoutSeconds)
	}
}

// TestValidateRejectsBadConfig tests validation failures
func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ServerConfig)
	}{
		{"empty address", func(c *ServerConfig) { c.Address = "" }},
		{"unknown database type", func(c *ServerConfig) { c.Database.Type = "oracle" }},
		{"sqlite without path", func(c *ServerConfig) { c.Database.Path = "" }},
		{"mysql without dsn", func(c *ServerConfig) { c.Database.Type = "mysql"; c.Database.DSN = "" }},
		{"bad log level", func(c *ServerConfig) { c.Logging.Level = "verbose" }},
		{"zero write timeout", func(c *ServerConfig) { c.Transport.WriteTimeoutSeconds = 0 }},
		{"tls without cert", func(c *ServerConfig) { c.TLS.Enabled = true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

// TestConfigString tests String() method
func TestConfigString(t *testing.T) {
	cfg := &ServerConfig{
		Address: ":8080",
		Database: DatabaseConfig{
			Type: "sqlite",
			Path: "agents.db",
		},
	}
	s := cfg.String()
	if s == "" {
		t.Error("String() should not return empty string")
	}
}
