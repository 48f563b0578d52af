// Package config loads server settings from defaults, an optional .env file
// and the environment. Command-line flags in main take precedence.
package config

import (
	"errors"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	HTTPAddr       string
	DatabaseDSN    string // empty: in-memory stores
	JWTKey         string
	AccessTTL      time.Duration
	EngineURL      string
	EngineTimeout  time.Duration
	MaxUploadBytes int64
	LogDev         bool

	Redis     RedisConfig
	RateLimit RateLimitConfig
	Login     LoginConfig
}

type RedisConfig struct {
	Addr     string // empty: Redis disabled
	Password string
}

// RateLimitConfig controls the per-client request limiter on API routes.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
	Window  time.Duration // fixed window of the Redis backend
}

// LoginConfig controls lockout after repeated failed logins.
type LoginConfig struct {
	MaxFails int
	Window   time.Duration
	BlockFor time.Duration
}

// ErrMissingJWTKey is returned when no signing key is configured.
var ErrMissingJWTKey = errors.New("JWT_KEY is required")

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_DSN", "")
	v.SetDefault("JWT_KEY", "")
	v.SetDefault("ACCESS_TTL", "24h")
	v.SetDefault("ENGINE_URL", "http://localhost:8000")
	v.SetDefault("ENGINE_TIMEOUT", "60s")
	v.SetDefault("MAX_UPLOAD_BYTES", 50<<20)
	v.SetDefault("LOG_DEV", false)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_RPS", 5.0)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("RATE_LIMIT_WINDOW", "1s")
	v.SetDefault("LOGIN_MAX_FAILS", 5)
	v.SetDefault("LOGIN_WINDOW", "15m")
	v.SetDefault("LOGIN_BLOCK_FOR", "15m")
}

// Load reads envFiles (missing files are ignored) and the process environment.
// It does not validate; call Validate after applying flag overrides.
func Load(envFiles ...string) *Config {
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	return &Config{
		HTTPAddr:       v.GetString("HTTP_ADDR"),
		DatabaseDSN:    v.GetString("DATABASE_DSN"),
		JWTKey:         v.GetString("JWT_KEY"),
		AccessTTL:      v.GetDuration("ACCESS_TTL"),
		EngineURL:      v.GetString("ENGINE_URL"),
		EngineTimeout:  v.GetDuration("ENGINE_TIMEOUT"),
		MaxUploadBytes: v.GetInt64("MAX_UPLOAD_BYTES"),
		LogDev:         v.GetBool("LOG_DEV"),
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		RateLimit: RateLimitConfig{
			Enabled: v.GetBool("RATE_LIMIT_ENABLED"),
			RPS:     v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:   v.GetInt("RATE_LIMIT_BURST"),
			Window:  v.GetDuration("RATE_LIMIT_WINDOW"),
		},
		Login: LoginConfig{
			MaxFails: v.GetInt("LOGIN_MAX_FAILS"),
			Window:   v.GetDuration("LOGIN_WINDOW"),
			BlockFor: v.GetDuration("LOGIN_BLOCK_FOR"),
		},
	}
}

// Validate checks settings the server cannot start without.
func (c *Config) Validate() error {
	if c.JWTKey == "" {
		return ErrMissingJWTKey
	}
	if c.EngineURL == "" {
		return errors.New("ENGINE_URL must not be empty")
	}
	if c.EngineTimeout <= 0 || c.AccessTTL <= 0 {
		return errors.New("ENGINE_TIMEOUT and ACCESS_TTL must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}
