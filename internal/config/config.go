// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Noteful Contributors

// Package config loads noteful-auth settings from flag defaults, an optional
// YAML file, explicitly set flags and the environment, in that order of
// increasing precedence. Config files are checked against a JSON Schema
// generated from Config.
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/noteful/noteful-auth/internal/auth"
	"github.com/noteful/noteful-auth/internal/logging"
	"github.com/noteful/noteful-auth/internal/xdg"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Defaults for the registered flags.
const (
	DefaultHTTPAddr    = ":8080"
	DefaultMetricsAddr = "127.0.0.1:9100"
	DefaultLogFormat   = "json"
	DefaultLogLevel    = "info"
	DefaultStoreDriver = DriverSQLite
)

// Config is the resolved process configuration.
type Config struct {
	HTTP    HTTPConfig    `koanf:"http"`
	Metrics MetricsConfig `koanf:"metrics"`
	Log     LogConfig     `koanf:"log"`
	Store   StoreConfig   `koanf:"store"`
	Token   TokenConfig   `koanf:"token"`
	Hash    HashConfig    `koanf:"hash"`
	Login   LoginConfig   `koanf:"login"`

	// Secrets never come from the file or flags.
	Secrets Secrets `koanf:"-"`
}

type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

// MetricsConfig configures the observability listener. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

type LogConfig struct {
	Format string `koanf:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level"`
}

// StoreConfig selects the user store. DSN is a file path for sqlite and a
// connection URL for postgres.
type StoreConfig struct {
	Driver string `koanf:"driver" jsonschema:"enum=memory,enum=sqlite,enum=postgres"`
	DSN    string `koanf:"dsn"`
}

type TokenConfig struct {
	TTL    time.Duration `koanf:"ttl"`
	Issuer string        `koanf:"issuer"`
}

type HashConfig struct {
	Concurrency int `koanf:"concurrency" jsonschema:"minimum=1"`
}

// LoginConfig tunes the failed-login throttle. A zero threshold disables it.
type LoginConfig struct {
	LockoutThreshold int           `koanf:"lockout_threshold" jsonschema:"minimum=0"`
	LockoutDuration  time.Duration `koanf:"lockout_duration"`
}

// Secrets are read from the environment only.
type Secrets struct {
	JWTSecret   string `env:"NOTEFUL_JWT_SECRET"`
	DatabaseURL string `env:"DATABASE_URL"`
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"http-addr":         "http.addr",
	"metrics-addr":      "metrics.addr",
	"log-format":        "log.format",
	"log-level":         "log.level",
	"store-driver":      "store.driver",
	"store-dsn":         "store.dsn",
	"token-ttl":         "token.ttl",
	"token-issuer":      "token.issuer",
	"hash-concurrency":  "hash.concurrency",
	"lockout-threshold": "login.lockout_threshold",
	"lockout-duration":  "login.lockout_duration",
}

// RegisterFlags defines every config flag on flags with its default value.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("http-addr", DefaultHTTPAddr, "API listen address")
	flags.String("metrics-addr", DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	flags.String("log-format", DefaultLogFormat, "log format (json or text)")
	flags.String("log-level", DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.String("store-driver", DefaultStoreDriver, "user store (memory, sqlite or postgres)")
	flags.String("store-dsn", "", "sqlite path or postgres URL (default: XDG data dir for sqlite, DATABASE_URL for postgres)")
	flags.Duration("token-ttl", auth.DefaultTokenTTL, "lifetime of issued tokens")
	flags.String("token-issuer", auth.DefaultTokenIssuer, "iss claim of issued tokens")
	flags.Int("hash-concurrency", runtime.NumCPU(), "maximum concurrent password hashes")
	flags.Int("lockout-threshold", auth.LockoutThreshold, "failed logins before a username is locked (0 disables)")
	flags.Duration("lockout-duration", auth.LockoutDuration, "how long a locked username stays locked")
}

// LoadOptions controls Load.
type LoadOptions struct {
	// Flags must have been populated by RegisterFlags. Only flags the user
	// changed override the file; the rest supply defaults.
	Flags *pflag.FlagSet
	// Path is an explicit config file. When empty the XDG config file is read
	// if it exists.
	Path string
	// Environ replaces the process environment when non-nil.
	Environ map[string]string
}

// Load resolves the configuration. It does not validate it.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	path, explicit := opts.Path, opts.Path != ""
	if !explicit {
		var err error
		if path, err = xdg.ConfigFile(); err != nil {
			return nil, err
		}
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	} else {
		if err := ValidateDocument(k.Raw()); err != nil {
			return nil, oops.With("path", path).Wrap(err)
		}
		slog.Debug("loaded config file", "path", path)
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "merged").Wrap(err)
	}

	if err := env.ParseWithOptions(&cfg.Secrets, env.Options{Environment: opts.Environ}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "environment").Wrap(err)
	}

	if err := cfg.resolveDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) resolveDSN() error {
	if c.Store.DSN != "" {
		return nil
	}
	switch c.Store.Driver {
	case DriverPostgres:
		c.Store.DSN = c.Secrets.DatabaseURL
	case DriverSQLite:
		path, err := xdg.DefaultDatabasePath()
		if err != nil {
			return err
		}
		c.Store.DSN = path
	}
	return nil
}

// LogLevel returns the parsed log level. Validate rejects unknown names.
func (c *Config) LogLevel() slog.Level {
	level, _ := logging.ParseLevel(c.Log.Level)
	return level
}

func invalid(key string, value any, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("key", key).With("value", value).Errorf(format, args...)
}

// ValidateStore checks the settings needed to open the user store.
func (c *Config) ValidateStore() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			return invalid("store.dsn", "", "store.dsn (or DATABASE_URL) is required for the %s driver", c.Store.Driver)
		}
	default:
		return invalid("store.driver", c.Store.Driver, "store.driver must be memory, sqlite or postgres, got %q", c.Store.Driver)
	}
	return nil
}

// ValidateToken checks the settings needed to sign or parse tokens.
func (c *Config) ValidateToken() error {
	if len(c.Secrets.JWTSecret) < auth.MinSecretLength {
		return invalid("NOTEFUL_JWT_SECRET", len(c.Secrets.JWTSecret),
			"NOTEFUL_JWT_SECRET must be at least %d bytes", auth.MinSecretLength)
	}
	if c.Token.TTL <= 0 {
		return invalid("token.ttl", c.Token.TTL, "token.ttl must be positive")
	}
	return nil
}

// Validate checks everything serve needs.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return invalid("http.addr", "", "http.addr is required")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", c.Log.Format, "log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		return invalid("log.level", c.Log.Level, "log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	if err := c.ValidateStore(); err != nil {
		return err
	}
	if err := c.ValidateToken(); err != nil {
		return err
	}
	if c.Hash.Concurrency < 1 {
		return invalid("hash.concurrency", c.Hash.Concurrency, "hash.concurrency must be at least 1")
	}
	if c.Login.LockoutThreshold < 0 {
		return invalid("login.lockout_threshold", c.Login.LockoutThreshold, "login.lockout_threshold cannot be negative")
	}
	if c.Login.LockoutThreshold > 0 && c.Login.LockoutDuration <= 0 {
		return invalid("login.lockout_duration", c.Login.LockoutDuration, "login.lockout_duration must be positive")
	}
	return nil
}
