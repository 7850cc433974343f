package config_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/steward/internal/config"
	"github.com/JaimeStill/steward/internal/session"
	"github.com/JaimeStill/steward/pkg/database"
)

const baseConfig = `
shutdown_timeout = "20s"
version = "1.2.0"

[gateway]
base_url = "https://compliance.example.com/api"
timeout = "45s"
requests_per_second = 4.0
burst = 2

[session]
backend = "sql"
namespace = "alice"

[database]
driver = "sqlite"
path = "alice.db"

[client]
analysis_delay = "750ms"
recent_limit = 10
max_document_size = "2MB"

[log]
level = "debug"
format = "json"
`

const overlayConfig = `
[gateway]
base_url = "https://staging.example.com/api"

[session]
backend = "redis"

[session.redis]
addr = "redis.staging:6379"

[metrics]
port = 9102
`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadDir(t.TempDir())
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}

	if cfg.Gateway.BaseURL != "http://localhost:8000/api" {
		t.Errorf("gateway.base_url: got %q", cfg.Gateway.BaseURL)
	}
	if cfg.Session.Backend != session.BackendSQL || cfg.Session.Namespace != "default" {
		t.Errorf("session: got %+v", cfg.Session)
	}
	if cfg.Database.Driver != database.DriverSQLite {
		t.Errorf("database.driver: got %q", cfg.Database.Driver)
	}
	if cfg.Storage.Enabled() {
		t.Error("storage should be disabled by default")
	}
	if cfg.Metrics.Enabled() {
		t.Error("metrics should be disabled by default")
	}
	if got := cfg.Client.AnalysisDelayDuration(); got != 500*time.Millisecond {
		t.Errorf("analysis_delay: got %v, want 500ms", got)
	}
	if got := cfg.Client.AnalysisTimeoutDuration(); got != 10*time.Second {
		t.Errorf("analysis_timeout: got %v, want 10s", got)
	}
	if cfg.Client.RecentLimit != 6 {
		t.Errorf("recent_limit: got %d, want 6", cfg.Client.RecentLimit)
	}
	if got := cfg.Client.MaxDocumentSizeBytes(); got != 5*1024*1024 {
		t.Errorf("max_document_size: got %d", got)
	}
	if cfg.Log.SlogLevel() != slog.LevelInfo || cfg.Log.Format != "text" {
		t.Errorf("log: got %+v", cfg.Log)
	}
	if cfg.Env() != "local" {
		t.Errorf("env: got %q, want local", cfg.Env())
	}
}

func TestLoadBaseFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, config.BaseConfigFile, baseConfig)

	cfg, err := config.LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}

	if cfg.Gateway.BaseURL != "https://compliance.example.com/api" || cfg.Gateway.Burst != 2 {
		t.Errorf("gateway: got %+v", cfg.Gateway)
	}
	if cfg.Session.Namespace != "alice" || cfg.Database.Path != "alice.db" {
		t.Errorf("session/database: got %+v / %+v", cfg.Session, cfg.Database)
	}
	if got := cfg.ShutdownTimeoutDuration(); got != 20*time.Second {
		t.Errorf("shutdown_timeout: got %v", got)
	}
	if cfg.Client.RecentLimit != 10 || cfg.Client.MaxDocumentSizeBytes() != 2*1024*1024 {
		t.Errorf("client: got %+v", cfg.Client)
	}
	if cfg.Log.SlogLevel() != slog.LevelDebug {
		t.Errorf("log level: got %v", cfg.Log.SlogLevel())
	}
}

func TestLoadOverlay(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, config.BaseConfigFile, baseConfig)
	writeFile(t, dir, "config.staging.toml", overlayConfig)
	t.Setenv(config.EnvStewardEnv, "staging")

	cfg, err := config.LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}

	if cfg.Gateway.BaseURL != "https://staging.example.com/api" {
		t.Errorf("gateway.base_url: got %q", cfg.Gateway.BaseURL)
	}
	if cfg.Gateway.Timeout != "45s" {
		t.Errorf("gateway.timeout should survive the overlay: got %q", cfg.Gateway.Timeout)
	}
	if cfg.Session.Backend != session.BackendRedis || cfg.Session.Redis.Addr != "redis.staging:6379" {
		t.Errorf("session: got %+v", cfg.Session)
	}
	if cfg.Session.Namespace != "alice" {
		t.Errorf("namespace should survive the overlay: got %q", cfg.Session.Namespace)
	}
	if !cfg.Metrics.Enabled() || cfg.Metrics.Addr() != "127.0.0.1:9102" {
		t.Errorf("metrics: got %+v", cfg.Metrics)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, config.BaseConfigFile, baseConfig)

	t.Setenv("STEWARD_GATEWAY_BASE_URL", "http://10.0.0.5:8000/api")
	t.Setenv("STEWARD_SESSION_NAMESPACE", "bob")
	t.Setenv("STEWARD_CLIENT_RECENT_LIMIT", "12")
	t.Setenv("STEWARD_AUTH_ISSUER", "https://login.example.com")
	t.Setenv("STEWARD_AUTH_CLIENT_ID", "steward-cli")
	t.Setenv("STEWARD_AUTH_SCOPES", "compliance.read, compliance.write")
	t.Setenv("STEWARD_LOG_LEVEL", "WARN")

	cfg, err := config.LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}

	if cfg.Gateway.BaseURL != "http://10.0.0.5:8000/api" {
		t.Errorf("gateway.base_url: got %q", cfg.Gateway.BaseURL)
	}
	if cfg.Session.Namespace != "bob" {
		t.Errorf("namespace: got %q", cfg.Session.Namespace)
	}
	if cfg.Client.RecentLimit != 12 {
		t.Errorf("recent_limit: got %d", cfg.Client.RecentLimit)
	}
	if !cfg.Gateway.Auth.Enabled() || len(cfg.Gateway.Auth.Scopes) != 2 {
		t.Errorf("auth: got %+v", cfg.Gateway.Auth)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log level: got %q, want warn", cfg.Log.Level)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad shutdown timeout", `shutdown_timeout = "soon"`, "shutdown_timeout"},
		{"bad base url", "[gateway]\nbase_url = \"localhost\"", "gateway"},
		{"bad backend", "[session]\nbackend = \"etcd\"", "session"},
		{"bad analysis delay", "[client]\nanalysis_delay = \"-1s\"", "analysis_delay"},
		{"bad schedule", "[client]\nrefresh_schedule = \"whenever\"", "refresh_schedule"},
		{"bad document size", "[client]\nmax_document_size = \"lots\"", "max_document_size"},
		{"bad metrics port", "[metrics]\nport = 70000", "metrics"},
		{"bad log format", "[log]\nformat = \"xml\"", "log"},
		{"malformed toml", "[gateway", "parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, config.BaseConfigFile, tt.content)

			_, err := config.LoadDir(dir)
			if err == nil {
				t.Fatal("LoadDir() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("LoadDir() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLogConfigLogger(t *testing.T) {
	cfg := config.LogConfig{Level: "warn", Format: "json"}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	var buf bytes.Buffer
	logger := cfg.Logger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record written at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"key":"value"`) {
		t.Errorf("json record: got %s", out)
	}
}
