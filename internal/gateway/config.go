package gateway

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the backend endpoint and client transport settings.
type Config struct {
	BaseURL           string     `toml:"base_url"`
	Timeout           string     `toml:"timeout"`
	RequestsPerSecond float64    `toml:"requests_per_second"`
	Burst             int        `toml:"burst"`
	Auth              AuthConfig `toml:"auth"`
}

// AuthConfig enables OAuth2 client-credentials authentication against an
// OIDC issuer. Auth is disabled when Issuer is empty.
type AuthConfig struct {
	Issuer       string   `toml:"issuer"`
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	Scopes       []string `toml:"scopes"`
}

// Enabled reports whether an issuer has been configured.
func (c *AuthConfig) Enabled() bool {
	return c.Issuer != ""
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	BaseURL           string
	Timeout           string
	RequestsPerSecond string
	Burst             string
	AuthIssuer        string
	AuthClientID      string
	AuthClientSecret  string
	AuthScopes        string
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.RequestsPerSecond != 0 {
		c.RequestsPerSecond = overlay.RequestsPerSecond
	}
	if overlay.Burst != 0 {
		c.Burst = overlay.Burst
	}
	if overlay.Auth.Issuer != "" {
		c.Auth.Issuer = overlay.Auth.Issuer
	}
	if overlay.Auth.ClientID != "" {
		c.Auth.ClientID = overlay.Auth.ClientID
	}
	if overlay.Auth.ClientSecret != "" {
		c.Auth.ClientSecret = overlay.Auth.ClientSecret
	}
	if overlay.Auth.Scopes != nil {
		c.Auth.Scopes = overlay.Auth.Scopes
	}
}

func (c *Config) loadDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8000/api"
	}
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
	if c.Burst == 0 {
		c.Burst = 5
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.BaseURL != "" {
		if v := os.Getenv(env.BaseURL); v != "" {
			c.BaseURL = v
		}
	}
	if env.Timeout != "" {
		if v := os.Getenv(env.Timeout); v != "" {
			c.Timeout = v
		}
	}
	if env.RequestsPerSecond != "" {
		if v := os.Getenv(env.RequestsPerSecond); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.RequestsPerSecond = f
			}
		}
	}
	if env.Burst != "" {
		if v := os.Getenv(env.Burst); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.Burst = n
			}
		}
	}
	if env.AuthIssuer != "" {
		if v := os.Getenv(env.AuthIssuer); v != "" {
			c.Auth.Issuer = v
		}
	}
	if env.AuthClientID != "" {
		if v := os.Getenv(env.AuthClientID); v != "" {
			c.Auth.ClientID = v
		}
	}
	if env.AuthClientSecret != "" {
		if v := os.Getenv(env.AuthClientSecret); v != "" {
			c.Auth.ClientSecret = v
		}
	}
	if env.AuthScopes != "" {
		if v := os.Getenv(env.AuthScopes); v != "" {
			scopes := strings.Split(v, ",")
			c.Auth.Scopes = make([]string, 0, len(scopes))
			for _, scope := range scopes {
				if trimmed := strings.TrimSpace(scope); trimmed != "" {
					c.Auth.Scopes = append(c.Auth.Scopes, trimmed)
				}
			}
		}
	}
}

func (c *Config) validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base_url: %q", c.BaseURL)
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}
	if c.Burst < 1 {
		return fmt.Errorf("burst must be at least 1")
	}
	if c.Auth.Enabled() && c.Auth.ClientID == "" {
		return fmt.Errorf("auth client_id required when issuer is set")
	}
	return nil
}
