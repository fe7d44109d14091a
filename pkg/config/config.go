package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig represents controller configuration
type ServerConfig struct {
	Address   string          `yaml:"address"`
	AuthToken string          `yaml:"auth_token"`
	TLS       TLSConfig       `yaml:"tls"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Transport TransportConfig `yaml:"transport"`
}

// TLSConfig represents TLS settings
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// DatabaseConfig represents database settings
type DatabaseConfig struct {
	Type string `yaml:"type"` // sqlite | mysql
	Path string `yaml:"path"` // sqlite file path
	DSN  string `yaml:"dsn"`  // mysql data source name
}

// LoggingConfig represents logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TransportConfig bounds the session transport and correlated requests
type TransportConfig struct {
	WriteTimeoutSeconds   int `yaml:"write_timeout_seconds"`
	ReadIdleSeconds       int `yaml:"read_idle_seconds"`
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
	OfflineAfterSeconds   int `yaml:"offline_after_seconds"`
}

// WriteTimeout returns the frame write deadline as a duration
func (t TransportConfig) WriteTimeout() time.Duration {
	return time.Duration(t.WriteTimeoutSeconds) * time.Second
}

// ReadIdle returns the read idle deadline as a duration
func (t TransportConfig) ReadIdle() time.Duration {
	return time.Duration(t.ReadIdleSeconds) * time.Second
}

// RequestTimeout returns the correlated request deadline as a duration
func (t TransportConfig) RequestTimeout() time.Duration {
	return time.Duration(t.RequestTimeoutSeconds) * time.Second
}

// OfflineAfter returns the roster offline sweep threshold as a duration
func (t TransportConfig) OfflineAfter() time.Duration {
	return time.Duration(t.OfflineAfterSeconds) * time.Second
}

// DefaultConfig returns default configuration
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Address: ":8080",
		TLS: TLSConfig{
			Enabled:  false,
			CertFile: "",
			KeyFile:  "",
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			Path: "./agents.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Transport: TransportConfig{
			WriteTimeoutSeconds:   10,
			ReadIdleSeconds:       90,
			RequestTimeoutSeconds: 30,
			OfflineAfterSeconds:   120,
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*ServerConfig, error) {
	config := DefaultConfig()

	// Load from file if provided
	if configPath != "" {
		if err := loadFromFile(configPath, config); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with environment variables
	applyEnvOverrides(config)

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(path string, config *ServerConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return err
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(config *ServerConfig) {
	if addr := os.Getenv("SERVER_ADDR"); addr != "" {
		config.Address = addr
	}

	if token := os.Getenv("AUTH_TOKEN"); token != "" {
		config.AuthToken = token
	}

	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}

	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		config.Database.Path = dbPath
	}

	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Logging.Level = logLevel
	}

	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		config.Logging.Format = logFormat
	}

	if tlsEnabled := os.Getenv("TLS_ENABLED"); tlsEnabled != "" {
		config.TLS.Enabled = tlsEnabled == "true"
	}

	if certFile := os.Getenv("TLS_CERT_FILE"); certFile != "" {
		config.TLS.CertFile = certFile
	}

	if keyFile := os.Getenv("TLS_KEY_FILE"); keyFile != "" {
		config.TLS.KeyFile = keyFile
	}

	if timeout := os.Getenv("REQUEST_TIMEOUT_SECONDS"); timeout != "" {
		if val, err := strconv.Atoi(timeout); err == nil {
			config.Transport.RequestTimeoutSeconds = val
		}
	}
}

// Validate validates the configuration
func (c *ServerConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("server address cannot be empty")
	}

	switch c.Database.Type {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("sqlite database path cannot be empty")
		}
	case "mysql":
		if c.Database.DSN == "" {
			return fmt.Errorf("mysql dsn cannot be empty")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	if c.TLS.Enabled {
		if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert/key files not provided")
		}

		if _, err := os.Stat(c.TLS.CertFile); err != nil {
			return fmt.Errorf("certificate file not found: %w", err)
		}

		if _, err := os.Stat(c.TLS.KeyFile); err != nil {
			return fmt.Errorf("key file not found: %w", err)
		}
	}

	if c.Transport.WriteTimeoutSeconds < 1 {
		return fmt.Errorf("write timeout must be at least 1 second")
	}

	if c.Transport.ReadIdleSeconds < 1 {
		return fmt.Errorf("read idle timeout must be at least 1 second")
	}

	if c.Transport.RequestTimeoutSeconds < 1 {
		return fmt.Errorf("request timeout must be at least 1 second")
	}

	if !isValidLogLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

// isValidLogLevel checks if the log level is valid
func isValidLogLevel(level string) bool {
	valid := []string{"debug", "info", "warn", "error"}
	level = strings.ToLower(level)
	for _, v := range valid {
		if level == v {
			return true
		}
	}
	return false
}

// GetDatabasePath returns the absolute sqlite database path
func (c *ServerConfig) GetDatabasePath() string {
	if filepath.IsAbs(c.Database.Path) {
		return c.Database.Path
	}
	return filepath.Join(os.Getenv("PWD"), c.Database.Path)
}

// String returns a string representation of the configuration (for logging)
func (c *ServerConfig) String() string {
	return fmt.Sprintf("Config{Address: %s, DB: %s, TLS: %v, LogLevel: %s}",
		c.Address, c.Database.Type, c.TLS.Enabled, c.Logging.Level)
}
