// Package config loads the layered steward configuration: an optional
// config.toml, an optional config.<STEWARD_ENV>.toml overlay, defaults, and
// STEWARD_* environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/steward/internal/gateway"
	"github.com/JaimeStill/steward/internal/session"
	"github.com/JaimeStill/steward/pkg/database"
	"github.com/JaimeStill/steward/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvStewardEnv             = "STEWARD_ENV"
	EnvStewardShutdownTimeout = "STEWARD_SHUTDOWN_TIMEOUT"
	EnvStewardVersion         = "STEWARD_VERSION"
)

var gatewayEnv = &gateway.Env{
	BaseURL:           "STEWARD_GATEWAY_BASE_URL",
	Timeout:           "STEWARD_GATEWAY_TIMEOUT",
	RequestsPerSecond: "STEWARD_GATEWAY_REQUESTS_PER_SECOND",
	Burst:             "STEWARD_GATEWAY_BURST",
	AuthIssuer:        "STEWARD_AUTH_ISSUER",
	AuthClientID:      "STEWARD_AUTH_CLIENT_ID",
	AuthClientSecret:  "STEWARD_AUTH_CLIENT_SECRET",
	AuthScopes:        "STEWARD_AUTH_SCOPES",
}

var sessionEnv = &session.Env{
	Backend:       "STEWARD_SESSION_BACKEND",
	Namespace:     "STEWARD_SESSION_NAMESPACE",
	AutoMigrate:   "STEWARD_SESSION_AUTO_MIGRATE",
	RedisAddr:     "STEWARD_REDIS_ADDR",
	RedisPassword: "STEWARD_REDIS_PASSWORD",
	RedisDB:       "STEWARD_REDIS_DB",
	RedisPrefix:   "STEWARD_REDIS_KEY_PREFIX",
}

var databaseEnv = &database.Env{
	Driver:          "STEWARD_DB_DRIVER",
	Path:            "STEWARD_DB_PATH",
	Host:            "STEWARD_DB_HOST",
	Port:            "STEWARD_DB_PORT",
	Name:            "STEWARD_DB_NAME",
	User:            "STEWARD_DB_USER",
	Password:        "STEWARD_DB_PASSWORD",
	SSLMode:         "STEWARD_DB_SSL_MODE",
	MaxOpenConns:    "STEWARD_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "STEWARD_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "STEWARD_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "STEWARD_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	Container:        "STEWARD_STORAGE_CONTAINER",
	ConnectionString: "STEWARD_STORAGE_CONNECTION_STRING",
	AccountURL:       "STEWARD_STORAGE_ACCOUNT_URL",
	MaxListSize:      "STEWARD_STORAGE_MAX_LIST_SIZE",
}

// Config is the root configuration for the steward client.
type Config struct {
	Gateway         gateway.Config  `toml:"gateway"`
	Session         session.Config  `toml:"session"`
	Database        database.Config `toml:"database"`
	Storage         storage.Config  `toml:"storage"`
	Client          ClientConfig    `toml:"client"`
	Metrics         MetricsConfig   `toml:"metrics"`
	Log             LogConfig       `toml:"log"`
	ShutdownTimeout string          `toml:"shutdown_timeout"`
	Version         string          `toml:"version"`
}

// Env returns the STEWARD_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvStewardEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads configuration from the working directory.
func Load() (*Config, error) {
	return LoadDir(".")
}

// LoadDir reads the base config in dir (if present), applies any
// environment overlay from the same directory, and finalizes all values.
// Without a config.toml, defaults and environment variables provide all
// configuration.
func LoadDir(dir string) (*Config, error) {
	cfg := &Config{}

	base := filepath.Join(dir, BaseConfigFile)
	if _, err := os.Stat(base); err == nil {
		loaded, err := load(base)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(dir); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Gateway.Merge(&overlay.Gateway)
	c.Session.Merge(&overlay.Session)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.Client.Merge(&overlay.Client)
	c.Metrics.Merge(&overlay.Metrics)
	c.Log.Merge(&overlay.Log)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Gateway.Finalize(gatewayEnv); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	if err := c.Session.Finalize(sessionEnv); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Client.Finalize(); err != nil {
		return fmt.Errorf("client: %w", err)
	}
	if err := c.Metrics.Finalize(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if err := c.Log.Finalize(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "10s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvStewardShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvStewardVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath(dir string) string {
	if env := os.Getenv(EnvStewardEnv); env != "" {
		path := filepath.Join(dir, fmt.Sprintf(OverlayConfigPattern, env))
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
