package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret              string
	AccessTokenTTLMinutes  int
	RefreshTokenTTLHours   int
	BcryptCost             int
	RevocationSweepMinutes int
}

// RateLimitConfig defines the per-tier request budgets. A tier with a zero
// limit is disabled. FailOpen admits requests when the counter store is
// unreachable; authentication always fails closed regardless.
type RateLimitConfig struct {
	FailOpen        bool
	UserLimit       int64
	UserWindowSec   int
	IPLimit         int64
	IPWindowSec     int
	APIKeyLimit     int64
	APIKeyWindowSec int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "account-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:              getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes:  getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 15),
			RefreshTokenTTLHours:   getEnvAsInt("AUTH_REFRESH_TOKEN_TTL_HOURS", 720),
			BcryptCost:             getEnvAsInt("AUTH_BCRYPT_COST", 12),
			RevocationSweepMinutes: getEnvAsInt("AUTH_REVOCATION_SWEEP_MINUTES", 60),
		},
		RateLimit: RateLimitConfig{
			FailOpen:        getEnvAsBool("RATE_LIMIT_FAIL_OPEN", true),
			UserLimit:       int64(getEnvAsInt("RATE_LIMIT_USER_LIMIT", 300)),
			UserWindowSec:   getEnvAsInt("RATE_LIMIT_USER_WINDOW_SECONDS", 60),
			IPLimit:         int64(getEnvAsInt("RATE_LIMIT_IP_LIMIT", 600)),
			IPWindowSec:     getEnvAsInt("RATE_LIMIT_IP_WINDOW_SECONDS", 60),
			APIKeyLimit:     int64(getEnvAsInt("RATE_LIMIT_API_KEY_LIMIT", 1000)),
			APIKeyWindowSec: getEnvAsInt("RATE_LIMIT_API_KEY_WINDOW_SECONDS", 60),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the access token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh token lifetime.
func (a AuthConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(a.RefreshTokenTTLHours) * time.Hour
}

// SweepInterval returns the cadence of the revocation garbage collector.
func (a AuthConfig) SweepInterval() time.Duration {
	if a.RevocationSweepMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(a.RevocationSweepMinutes) * time.Minute
}

// UserWindow returns the user tier window.
func (r RateLimitConfig) UserWindow() time.Duration {
	return time.Duration(r.UserWindowSec) * time.Second
}

// IPWindow returns the IP tier window.
func (r RateLimitConfig) IPWindow() time.Duration {
	return time.Duration(r.IPWindowSec) * time.Second
}

// APIKeyWindow returns the API key tier window.
func (r RateLimitConfig) APIKeyWindow() time.Duration {
	return time.Duration(r.APIKeyWindowSec) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
