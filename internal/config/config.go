// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BudgetBook Contributors

// Package config loads server configuration from a YAML file, the
// environment, and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"io/fs"
	"math"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"
)

// Configuration keys. Flags, YAML keys, and mapped environment variables
// all use these names.
const (
	KeyDatabaseURL  = "database-url"
	KeyHTTPAddr     = "http-addr"
	KeyPort         = "port"
	KeyMetricsAddr  = "metrics-addr"
	KeyJWTSecret    = "jwt-secret"
	KeyJWTExpiresIn = "jwt-expires-in"
	KeyBcryptRounds = "bcrypt-rounds"
	KeyLogFormat    = "log-format"
	KeyCORSOrigin   = "cors-origin"
	KeyAutoMigrate  = "auto-migrate"
)

// Defaults.
const (
	DefaultHTTPAddr     = ":3000"
	DefaultMetricsAddr  = "127.0.0.1:9100"
	DefaultJWTExpiresIn = "7d"
	DefaultBcryptRounds = 10
	DefaultLogFormat    = "json"
	DefaultCORSOrigin   = "*"

	// InsecureJWTSecret is used when no secret is configured. Only fit for
	// local development.
	InsecureJWTSecret = "change-me-in-production"
)

// envKeys maps recognized environment variables to configuration keys.
var envKeys = map[string]string{
	"DATABASE_URL":   KeyDatabaseURL,
	"HTTP_ADDR":      KeyHTTPAddr,
	"PORT":           KeyPort,
	"METRICS_ADDR":   KeyMetricsAddr,
	"JWT_SECRET":     KeyJWTSecret,
	"JWT_EXPIRES_IN": KeyJWTExpiresIn,
	"BCRYPT_ROUNDS":  KeyBcryptRounds,
	"LOG_FORMAT":     KeyLogFormat,
	"CORS_ORIGIN":    KeyCORSOrigin,
	"AUTO_MIGRATE":   KeyAutoMigrate,
}

// Config is the resolved server configuration.
type Config struct {
	DatabaseURL  string `koanf:"database-url"`
	HTTPAddr     string `koanf:"http-addr"`
	Port         int    `koanf:"port"`
	MetricsAddr  string `koanf:"metrics-addr"`
	JWTSecret    string `koanf:"jwt-secret"`
	JWTExpiresIn string `koanf:"jwt-expires-in"`
	BcryptRounds int    `koanf:"bcrypt-rounds"`
	LogFormat    string `koanf:"log-format"`
	CORSOrigin   string `koanf:"cors-origin"`
	AutoMigrate  bool   `koanf:"auto-migrate"`
}

// RegisterFlags adds the configuration flags, with their defaults, to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String(KeyDatabaseURL, "", "PostgreSQL connection URL")
	flags.String(KeyHTTPAddr, DefaultHTTPAddr, "API listen address")
	flags.Int(KeyPort, 0, "API listen port, overrides the port in --http-addr")
	flags.String(KeyMetricsAddr, DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	flags.String(KeyJWTSecret, "", "HMAC secret used to sign access tokens")
	flags.String(KeyJWTExpiresIn, DefaultJWTExpiresIn, "access token lifetime (e.g. 12h, 7d, 2w)")
	flags.Int(KeyBcryptRounds, DefaultBcryptRounds, "bcrypt cost factor")
	flags.String(KeyLogFormat, DefaultLogFormat, "log format (json or text)")
	flags.String(KeyCORSOrigin, DefaultCORSOrigin, "allowed CORS origin")
	flags.Bool(KeyAutoMigrate, true, "apply pending migrations on startup")
}

// Load resolves configuration from the YAML file at path, the environment,
// and flags registered with RegisterFlags. An empty path skips the file; a
// missing file is an error unless optional is set.
func Load(path string, optional bool, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !optional || !errors.Is(err, fs.ErrNotExist) {
				return nil, oops.Code("CONFIG_LOAD_FAILED").
					With("source", "file").
					With("path", path).
					Wrap(err)
			}
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "decode config").Wrap(err)
	}
	return &cfg, nil
}

// envValue maps a recognized, non-empty environment variable to its key.
func envValue(name, value string) (string, any) {
	key, ok := envKeys[name]
	if !ok || strings.TrimSpace(value) == "" {
		return "", nil
	}
	return key, value
}

// Validate checks ranges and required values.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").With("key", KeyDatabaseURL).
			Errorf("database URL is required (set DATABASE_URL or --%s)", KeyDatabaseURL)
	}
	if c.BcryptRounds < bcrypt.MinCost || c.BcryptRounds > bcrypt.MaxCost {
		return oops.Code("CONFIG_INVALID").With("key", KeyBcryptRounds).
			Errorf("bcrypt rounds must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.BcryptRounds)
	}
	if _, err := c.TokenTTL(); err != nil {
		return err
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").With("key", KeyLogFormat).
			Errorf("log format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if c.Port < 0 || c.Port > 65535 {
		return oops.Code("CONFIG_INVALID").With("key", KeyPort).
			Errorf("port must be between 0 and 65535, got %d", c.Port)
	}
	if _, _, err := net.SplitHostPort(c.ListenAddr()); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", KeyHTTPAddr).Wrap(err)
	}
	return nil
}

// ListenAddr returns the API listen address. A non-zero Port replaces the
// port of HTTPAddr.
func (c *Config) ListenAddr() string {
	if c.Port == 0 {
		return c.HTTPAddr
	}
	host := ""
	if h, _, err := net.SplitHostPort(c.HTTPAddr); err == nil {
		host = h
	}
	return net.JoinHostPort(host, strconv.Itoa(c.Port))
}

// TokenTTL parses JWTExpiresIn.
func (c *Config) TokenTTL() (time.Duration, error) {
	ttl, err := ParseDuration(c.JWTExpiresIn)
	if err != nil {
		return 0, oops.Code("CONFIG_INVALID").With("key", KeyJWTExpiresIn).
			Errorf("invalid token lifetime %q: %v", c.JWTExpiresIn, err)
	}
	if ttl <= 0 {
		return 0, oops.Code("CONFIG_INVALID").With("key", KeyJWTExpiresIn).
			Errorf("token lifetime must be positive, got %q", c.JWTExpiresIn)
	}
	return ttl, nil
}

// Secret returns the signing secret and whether the insecure fallback is
// in use.
func (c *Config) Secret() (secret []byte, insecure bool) {
	if c.JWTSecret == "" || c.JWTSecret == InsecureJWTSecret {
		return []byte(InsecureJWTSecret), true
	}
	return []byte(c.JWTSecret), false
}

// ParseDuration extends time.ParseDuration with a trailing "d" (24h) or
// "w" (7d) unit, e.g. "7d" or "2w". A bare integer is read as seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, oops.Code("INVALID_DURATION").Errorf("empty duration")
	}

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		if secs > math.MaxInt64/int64(time.Second) || secs < math.MinInt64/int64(time.Second) {
			return 0, oops.Code("INVALID_DURATION").With("value", s).Errorf("duration out of range")
		}
		return time.Duration(secs) * time.Second, nil
	}

	unit := time.Duration(0)
	switch {
	case strings.HasSuffix(s, "d"):
		unit = 24 * time.Hour
	case strings.HasSuffix(s, "w"):
		unit = 7 * 24 * time.Hour
	}
	if unit != 0 {
		n, err := strconv.ParseFloat(s[:len(s)-1], 64)
		if err != nil {
			return 0, oops.Code("INVALID_DURATION").With("value", s).Wrap(err)
		}
		if math.IsNaN(n) || math.Abs(n) >= float64(math.MaxInt64)/float64(unit) {
			return 0, oops.Code("INVALID_DURATION").With("value", s).Errorf("duration out of range")
		}
		return time.Duration(n * float64(unit)), nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, oops.Code("INVALID_DURATION").With("value", s).Wrap(err)
	}
	return d, nil
}
