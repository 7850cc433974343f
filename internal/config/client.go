package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/JaimeStill/steward/pkg/formatting"
)

const (
	EnvClientAnalysisDelay   = "STEWARD_CLIENT_ANALYSIS_DELAY"
	EnvClientAnalysisTimeout = "STEWARD_CLIENT_ANALYSIS_TIMEOUT"
	EnvClientRecentLimit     = "STEWARD_CLIENT_RECENT_LIMIT"
	EnvClientRefreshSchedule = "STEWARD_CLIENT_REFRESH_SCHEDULE"
	EnvClientMaxDocumentSize = "STEWARD_CLIENT_MAX_DOCUMENT_SIZE"
)

// ClientConfig holds controller timing and limits.
type ClientConfig struct {
	AnalysisDelay   string `toml:"analysis_delay"`
	AnalysisTimeout string `toml:"analysis_timeout"`
	RecentLimit     int    `toml:"recent_limit"`
	RefreshSchedule string `toml:"refresh_schedule"`
	MaxDocumentSize string `toml:"max_document_size"`
}

// AnalysisDelayDuration returns AnalysisDelay as a time.Duration.
func (c *ClientConfig) AnalysisDelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.AnalysisDelay)
	return d
}

// AnalysisTimeoutDuration returns AnalysisTimeout as a time.Duration.
func (c *ClientConfig) AnalysisTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.AnalysisTimeout)
	return d
}

// MaxDocumentSizeBytes returns MaxDocumentSize in bytes.
func (c *ClientConfig) MaxDocumentSizeBytes() int64 {
	size, err := formatting.ParseBytes(c.MaxDocumentSize)
	if err != nil {
		return 5 * 1024 * 1024
	}
	return size
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ClientConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ClientConfig) Merge(overlay *ClientConfig) {
	if overlay.AnalysisDelay != "" {
		c.AnalysisDelay = overlay.AnalysisDelay
	}
	if overlay.AnalysisTimeout != "" {
		c.AnalysisTimeout = overlay.AnalysisTimeout
	}
	if overlay.RecentLimit != 0 {
		c.RecentLimit = overlay.RecentLimit
	}
	if overlay.RefreshSchedule != "" {
		c.RefreshSchedule = overlay.RefreshSchedule
	}
	if overlay.MaxDocumentSize != "" {
		c.MaxDocumentSize = overlay.MaxDocumentSize
	}
}

func (c *ClientConfig) loadDefaults() {
	if c.AnalysisDelay == "" {
		c.AnalysisDelay = "500ms"
	}
	if c.AnalysisTimeout == "" {
		c.AnalysisTimeout = "10s"
	}
	if c.RecentLimit == 0 {
		c.RecentLimit = 6
	}
	if c.RefreshSchedule == "" {
		c.RefreshSchedule = "@every 1m"
	}
	if c.MaxDocumentSize == "" {
		c.MaxDocumentSize = "5MB"
	}
}

func (c *ClientConfig) loadEnv() {
	if v := os.Getenv(EnvClientAnalysisDelay); v != "" {
		c.AnalysisDelay = v
	}
	if v := os.Getenv(EnvClientAnalysisTimeout); v != "" {
		c.AnalysisTimeout = v
	}
	if v := os.Getenv(EnvClientRecentLimit); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RecentLimit = n
		}
	}
	if v := os.Getenv(EnvClientRefreshSchedule); v != "" {
		c.RefreshSchedule = v
	}
	if v := os.Getenv(EnvClientMaxDocumentSize); v != "" {
		c.MaxDocumentSize = v
	}
}

func (c *ClientConfig) validate() error {
	if d, err := time.ParseDuration(c.AnalysisDelay); err != nil || d < 0 {
		return fmt.Errorf("invalid analysis_delay: %q", c.AnalysisDelay)
	}
	if d, err := time.ParseDuration(c.AnalysisTimeout); err != nil || d < 0 {
		return fmt.Errorf("invalid analysis_timeout: %q", c.AnalysisTimeout)
	}
	if c.RecentLimit < 0 {
		return fmt.Errorf("invalid recent_limit: %d", c.RecentLimit)
	}
	if _, err := cron.ParseStandard(c.RefreshSchedule); err != nil {
		return fmt.Errorf("invalid refresh_schedule: %w", err)
	}
	if _, err := formatting.ParseBytes(c.MaxDocumentSize); err != nil {
		return fmt.Errorf("invalid max_document_size: %w", err)
	}
	return nil
}
