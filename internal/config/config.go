// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// DatabaseMaxConnections bounds the shared connection pool; default 30.
	DatabaseMaxConnections int `mapstructure:"DATABASE_MAX_CONNECTIONS"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim; required when the server issues or verifies tokens.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// CacheTTL is the lifetime of session/user cache entries (e.g. "5m").
	CacheTTL string `mapstructure:"CACHE_TTL"`
	// CacheMaxEntries bounds the in-memory cache; default 10000.
	CacheMaxEntries int `mapstructure:"CACHE_MAX_ENTRIES"`
	// RedisAddr, when set, backs the session/user cache with Redis instead of process memory.
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// SessionMaxInactivity is how long a session may go untouched before it is
	// revoked on next use (e.g. "8760h" = 365 days).
	SessionMaxInactivity string `mapstructure:"SESSION_MAX_INACTIVITY"`
	// SessionTouchInterval is the liveness write coalescing window (e.g. "1h").
	SessionTouchInterval string `mapstructure:"SESSION_TOUCH_INTERVAL"`
	// StoreTimeout bounds each database or cache call made while resolving a request.
	StoreTimeout string `mapstructure:"STORE_TIMEOUT"`
	// OTLPEndpoint is the OTLP gRPC endpoint for security-event export; empty disables export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces a plaintext OTLP connection (standard OTEL_EXPORTER_OTLP_INSECURE behavior).
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DATABASE_MAX_CONNECTIONS", 30)
	v.SetDefault("JWT_ISSUER", "scp-auth")
	v.SetDefault("JWT_AUDIENCE", "scp-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("CACHE_TTL", "5m")
	v.SetDefault("CACHE_MAX_ENTRIES", 10000)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("SESSION_MAX_INACTIVITY", "8760h") // 365d
	v.SetDefault("SESSION_TOUCH_INTERVAL", "1h")
	v.SetDefault("STORE_TIMEOUT", "5s")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.DatabaseMaxConnections <= 0 {
		return nil, errors.New("config: DATABASE_MAX_CONNECTIONS must be positive")
	}
	if cfg.CacheMaxEntries <= 0 {
		return nil, errors.New("config: CACHE_MAX_ENTRIES must be positive")
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return durationOr(c.JWTAccessTTL, 15*time.Minute)
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return durationOr(c.JWTRefreshTTL, 168*time.Hour)
}

// CacheEntryTTL parses CacheTTL as a time.Duration. Returns 5m if unset or invalid.
func (c *Config) CacheEntryTTL() time.Duration {
	return durationOr(c.CacheTTL, 5*time.Minute)
}

// MaxInactivity parses SessionMaxInactivity as a time.Duration. Returns 8760h if unset or invalid.
func (c *Config) MaxInactivity() time.Duration {
	return durationOr(c.SessionMaxInactivity, 8760*time.Hour)
}

// TouchInterval parses SessionTouchInterval as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) TouchInterval() time.Duration {
	return durationOr(c.SessionTouchInterval, time.Hour)
}

// StoreCallTimeout parses StoreTimeout as a time.Duration. Returns 5s if unset or invalid.
func (c *Config) StoreCallTimeout() time.Duration {
	return durationOr(c.StoreTimeout, 5*time.Second)
}

func durationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		if s != "" {
			log.Printf("config: invalid duration %q, falling back to %s", s, fallback)
		}
		return fallback
	}
	return d
}
