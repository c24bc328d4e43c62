// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Noteful Contributors

package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noteful/noteful-auth/internal/auth"
	"github.com/noteful/noteful-auth/internal/config"
	"github.com/noteful/noteful-auth/pkg/errutil"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// isolate points the XDG directories at an empty temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := config.Load(config.LoadOptions{
		Flags:   newFlags(t),
		Environ: map[string]string{},
	})
	require.NoError(t, err)

	assert.Equal(t, config.DefaultHTTPAddr, cfg.HTTP.Addr)
	assert.Equal(t, config.DefaultMetricsAddr, cfg.Metrics.Addr)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel())
	assert.Equal(t, config.DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, filepath.Join(dir, "data", "noteful-auth", "users.db"), cfg.Store.DSN)
	assert.Equal(t, auth.DefaultTokenTTL, cfg.Token.TTL)
	assert.Equal(t, auth.DefaultTokenIssuer, cfg.Token.Issuer)
	assert.Positive(t, cfg.Hash.Concurrency)
	assert.Equal(t, auth.LockoutThreshold, cfg.Login.LockoutThreshold)
	assert.Equal(t, auth.LockoutDuration, cfg.Login.LockoutDuration)
	assert.Empty(t, cfg.Secrets.JWTSecret)
}

func TestLoad_Precedence(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
http:
  addr: ":9999"
log:
  format: text
  level: debug
token:
  ttl: 1h
login:
  lockout_threshold: 3
`)

	cfg, err := config.Load(config.LoadOptions{
		Flags:   newFlags(t, "--log-format=json", "--store-driver=memory"),
		Path:    path,
		Environ: map[string]string{"NOTEFUL_JWT_SECRET": testSecret},
	})
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.HTTP.Addr, "file beats flag default")
	assert.Equal(t, "json", cfg.Log.Format, "changed flag beats file")
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())
	assert.Equal(t, config.DriverMemory, cfg.Store.Driver)
	assert.Empty(t, cfg.Store.DSN)
	assert.Equal(t, time.Hour, cfg.Token.TTL)
	assert.Equal(t, 3, cfg.Login.LockoutThreshold)
	assert.Equal(t, testSecret, cfg.Secrets.JWTSecret)
}

func TestLoad_XDGConfigFile(t *testing.T) {
	dir := isolate(t)
	configDir := filepath.Join(dir, "config", "noteful-auth")
	require.NoError(t, os.MkdirAll(configDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("token:\n  issuer: notes.example\n"), 0o600))

	cfg, err := config.Load(config.LoadOptions{Flags: newFlags(t), Environ: map[string]string{}})
	require.NoError(t, err)
	assert.Equal(t, "notes.example", cfg.Token.Issuer)
}

func TestLoad_PostgresDSNFromEnvironment(t *testing.T) {
	isolate(t)

	cfg, err := config.Load(config.LoadOptions{
		Flags:   newFlags(t, "--store-driver=postgres"),
		Environ: map[string]string{"DATABASE_URL": "postgres://noteful@db/noteful"},
	})
	require.NoError(t, err)
	assert.Equal(t, "postgres://noteful@db/noteful", cfg.Store.DSN)

	cfg, err = config.Load(config.LoadOptions{
		Flags:   newFlags(t, "--store-driver=postgres", "--store-dsn=postgres://flag@db/noteful"),
		Environ: map[string]string{"DATABASE_URL": "postgres://noteful@db/noteful"},
	})
	require.NoError(t, err)
	assert.Equal(t, "postgres://flag@db/noteful", cfg.Store.DSN, "explicit dsn wins")
}

func TestLoad_Errors(t *testing.T) {
	isolate(t)

	t.Run("explicit file missing", func(t *testing.T) {
		_, err := config.Load(config.LoadOptions{Path: filepath.Join(t.TempDir(), "nope.yaml")})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := config.Load(config.LoadOptions{Path: writeConfig(t, "http: [unclosed")})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
	})
}

func validConfig() *config.Config {
	return &config.Config{
		HTTP:    config.HTTPConfig{Addr: ":8080"},
		Log:     config.LogConfig{Format: "json", Level: "info"},
		Store:   config.StoreConfig{Driver: config.DriverSQLite, DSN: "/tmp/users.db"},
		Token:   config.TokenConfig{TTL: time.Hour},
		Hash:    config.HashConfig{Concurrency: 2},
		Login:   config.LoginConfig{LockoutThreshold: 7, LockoutDuration: time.Minute},
		Secrets: config.Secrets{JWTSecret: testSecret},
	}
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*config.Config)
		key    string
	}{
		{"no http addr", func(c *config.Config) { c.HTTP.Addr = "" }, "http.addr"},
		{"bad log format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad log level", func(c *config.Config) { c.Log.Level = "loud" }, "log.level"},
		{"unknown driver", func(c *config.Config) { c.Store.Driver = "mysql" }, "store.driver"},
		{"sqlite without dsn", func(c *config.Config) { c.Store.DSN = "" }, "store.dsn"},
		{"postgres without dsn", func(c *config.Config) { c.Store = config.StoreConfig{Driver: config.DriverPostgres} }, "store.dsn"},
		{"short secret", func(c *config.Config) { c.Secrets.JWTSecret = "short" }, "NOTEFUL_JWT_SECRET"},
		{"zero ttl", func(c *config.Config) { c.Token.TTL = 0 }, "token.ttl"},
		{"zero concurrency", func(c *config.Config) { c.Hash.Concurrency = 0 }, "hash.concurrency"},
		{"negative threshold", func(c *config.Config) { c.Login.LockoutThreshold = -1 }, "login.lockout_threshold"},
		{"zero lockout duration", func(c *config.Config) { c.Login.LockoutDuration = 0 }, "login.lockout_duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
			errutil.AssertErrorContext(t, err, "key", tt.key)
		})
	}
}

func TestConfig_ValidateAllowsDisabledThrottleAndMemoryStore(t *testing.T) {
	cfg := validConfig()
	cfg.Store = config.StoreConfig{Driver: config.DriverMemory}
	cfg.Login = config.LoginConfig{}
	assert.NoError(t, cfg.Validate())
}
