package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testYAML = `server:
  host: "127.0.0.1"
  port: 3000
  mode: "release"
  csrf_secret: "test-csrf-secret-value"
database:
  driver: "postgres"
  sqlite:
    path: "data/test.db"
  postgres:
    host: "db.example.com"
    port: 5433
    user: "admin"
    password: "secret"
    dbname: "testdb"
    sslmode: "require"
  pool:
    max_idle_conns: 5
    max_open_conns: 50
    conn_max_lifetime: "30m"
cache:
  backend: "redis"
  dashboard_ttl: "5m"
  redis:
    addr: "redis.example.com:6379"
    password: "hunter2"
auth:
  jwt_secret: "0123456789abcdef0123456789abcdef"
  token_expiry: "12h"
quota:
  default_max_size: 1000000000
  default_max_coll: 10
log:
  level: "info"
  format: "json"
`

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_FullYAML(t *testing.T) {
	path := writeTestConfig(t, testYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 3000)
	}
	if cfg.Server.Mode != "release" {
		t.Errorf("Server.Mode = %q, want %q", cfg.Server.Mode, "release")
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "postgres")
	}
	if cfg.Database.Postgres.SSLMode != "require" {
		t.Errorf("Postgres.SSLMode = %q, want %q", cfg.Database.Postgres.SSLMode, "require")
	}
	if cfg.Cache.Backend != "redis" {
		t.Errorf("Cache.Backend = %q, want %q", cfg.Cache.Backend, "redis")
	}
	if cfg.Cache.Redis.Addr != "redis.example.com:6379" {
		t.Errorf("Cache.Redis.Addr = %q, want %q", cfg.Cache.Redis.Addr, "redis.example.com:6379")
	}
	if cfg.Auth.TokenExpiry != "12h" {
		t.Errorf("Auth.TokenExpiry = %q, want %q", cfg.Auth.TokenExpiry, "12h")
	}
	if cfg.Quota.DefaultMaxSize != 1000000000 {
		t.Errorf("Quota.DefaultMaxSize = %d, want %d", cfg.Quota.DefaultMaxSize, 1000000000)
	}
	if cfg.Quota.DefaultMaxColl != 10 {
		t.Errorf("Quota.DefaultMaxColl = %d, want %d", cfg.Quota.DefaultMaxColl, 10)
	}
}

func TestLoad_Defaults(t *testing.T) {
	yaml := `server:
  host: "localhost"
  port: 8080
  mode: "test"
database:
  driver: "sqlite"
  sqlite:
    path: "data/app.db"
auth:
  jwt_secret: "0123456789abcdef0123456789abcdef"
quota:
  default_max_size: 1000000000
  default_max_coll: 10
log:
  level: "info"
  format: "text"
`
	cfg, err := Load(writeTestConfig(t, yaml))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Cache.Backend != "memory" {
		t.Errorf("Cache.Backend default = %q, want %q", cfg.Cache.Backend, "memory")
	}
	if cfg.Cache.DashboardTTL != "5m" {
		t.Errorf("Cache.DashboardTTL default = %q, want %q", cfg.Cache.DashboardTTL, "5m")
	}
	if cfg.Auth.TokenExpiry != "24h" {
		t.Errorf("Auth.TokenExpiry default = %q, want %q", cfg.Auth.TokenExpiry, "24h")
	}
	if cfg.Auth.SessionCookie != "session" {
		t.Errorf("Auth.SessionCookie default = %q, want %q", cfg.Auth.SessionCookie, "session")
	}
	if cfg.User.DescTemplate == "" {
		t.Error("User.DescTemplate default should not be empty")
	}
	if cfg.User.DefaultCollTitle == "" {
		t.Error("User.DefaultCollTitle default should not be empty")
	}
}

func TestLoad_EnvOverlay(t *testing.T) {
	yaml := `server:
  host: "localhost"
  port: 8080
  mode: "test"
database:
  driver: "sqlite"
  sqlite:
    path: "data/app.db"
auth:
  jwt_secret: "0123456789abcdef0123456789abcdef"
quota:
  default_max_size: 1000000000
  default_max_coll: 10
log:
  level: "info"
  format: "text"
`
	t.Setenv("APP__SERVER__PORT", "9090")
	t.Setenv("APP__QUOTA__DEFAULT_MAX_SIZE", "500000000")

	cfg, err := Load(writeTestConfig(t, yaml))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want env override 9090", cfg.Server.Port)
	}
	if cfg.Quota.DefaultMaxSize != 500000000 {
		t.Errorf("Quota.DefaultMaxSize = %d, want env override 500000000", cfg.Quota.DefaultMaxSize)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate_Errors(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Host: "localhost", Port: 8080, Mode: "test"},
			Database: DatabaseConfig{Driver: "sqlite", SQLite: SQLiteConfig{Path: "data/app.db"}},
			Auth:     AuthConfig{JWTSecret: strings.Repeat("x", 32)},
			Quota:    QuotaConfig{DefaultMaxSize: 1, DefaultMaxColl: 1},
			Log:      LogConfig{Level: "info", Format: "text"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"invalid mode", func(c *Config) { c.Server.Mode = "prod" }, "server.mode"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"empty host", func(c *Config) { c.Server.Host = "  " }, "server.host"},
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"sqlite path missing", func(c *Config) { c.Database.SQLite.Path = "" }, "database.sqlite.path"},
		{"bad cache backend", func(c *Config) { c.Cache.Backend = "memcached" }, "cache.backend"},
		{"redis addr missing", func(c *Config) { c.Cache.Backend = "redis" }, "cache.redis.addr"},
		{"bad dashboard ttl", func(c *Config) { c.Cache.DashboardTTL = "soon" }, "cache.dashboard_ttl"},
		{"jwt secret missing", func(c *Config) { c.Auth.JWTSecret = "" }, "auth.jwt_secret"},
		{"jwt secret short", func(c *Config) { c.Auth.JWTSecret = "short" }, "auth.jwt_secret"},
		{"bad token expiry", func(c *Config) { c.Auth.TokenExpiry = "never" }, "auth.token_expiry"},
		{"zero quota size", func(c *Config) { c.Quota.DefaultMaxSize = 0 }, "quota.default_max_size"},
		{"zero quota coll", func(c *Config) { c.Quota.DefaultMaxColl = 0 }, "quota.default_max_coll"},
		{"mailing endpoint missing", func(c *Config) { c.Mailing.Enabled = true }, "mailing.endpoint"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_PostgresSSLModeInRelease(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{Host: "localhost", Port: 8080, Mode: "release", CSRFSecret: "s"},
		Database: DatabaseConfig{
			Driver: "postgres",
			Postgres: PostgresConfig{
				Host: "db", Port: 5432, User: "u", DBName: "d", SSLMode: "disable",
			},
		},
		Auth:  AuthConfig{JWTSecret: strings.Repeat("x", 32)},
		Quota: QuotaConfig{DefaultMaxSize: 1, DefaultMaxColl: 1},
		Log:   LogConfig{Level: "info", Format: "text"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for sslmode=disable in release mode")
	}
	if !strings.Contains(err.Error(), "sslmode") {
		t.Errorf("error %q does not mention sslmode", err)
	}
}
