// Package config loads the console configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"hermandad.org/internal/api"
)

// Session store backends.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

var ErrInvalid = errors.New("config: invalid value")

type Config struct {
	Addr       string
	APIBaseURL string
	APITimeout time.Duration

	Session SessionConfig
	Redis   RedisConfig

	RateLimitBurst     int
	RateLimitPerSecond int
	MaxBodyBytes       int64
	LowStock           int
	SecureCookies      bool
}

type SessionConfig struct {
	Store string
	Dir   string
	TTL   time.Duration
	PGDSN string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// LoadEnvFiles merges the given .env files (".env" when none) into the
// process environment. Variables already set win. Missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		Addr:       getEnv("HERMANDAD_ADDR", ":8080"),
		APIBaseURL: getEnv("HERMANDAD_API_URL", api.DefaultBaseURL),
		APITimeout: getEnvAsDuration("HERMANDAD_API_TIMEOUT", api.DefaultTimeout),
		Session: SessionConfig{
			Store: strings.ToLower(getEnv("HERMANDAD_SESSION_STORE", StoreMemory)),
			Dir:   getEnv("HERMANDAD_SESSION_DIR", ""),
			TTL:   getEnvAsDuration("HERMANDAD_SESSION_TTL", 12*time.Hour),
			PGDSN: getEnv("HERMANDAD_PG_DSN", ""),
		},
		Redis: RedisConfig{
			Addr:     redisAddr(),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Prefix:   getEnv("HERMANDAD_REDIS_PREFIX", "hermandad:session:"),
		},
		RateLimitBurst:     getEnvAsInt("HERMANDAD_RATE_BURST", 40),
		RateLimitPerSecond: getEnvAsInt("HERMANDAD_RATE_PER_SECOND", 20),
		MaxBodyBytes:       int64(getEnvAsInt("HERMANDAD_MAX_BODY_BYTES", 1<<20)),
		LowStock:           getEnvAsInt("HERMANDAD_LOW_STOCK", 3),
		SecureCookies:      getEnvAsBool("HERMANDAD_SECURE_COOKIES", false),
	}
	return cfg, cfg.Validate()
}

// Validate checks the values that have no usable fallback.
func (c Config) Validate() error {
	switch c.Session.Store {
	case StoreMemory, StoreFile, StoreRedis:
	case StorePostgres:
		if c.Session.PGDSN == "" {
			return fmt.Errorf("%w: HERMANDAD_PG_DSN is required for the postgres session store", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown session store %q", ErrInvalid, c.Session.Store)
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("%w: HERMANDAD_API_TIMEOUT must be positive", ErrInvalid)
	}
	if c.RateLimitBurst < 1 || c.RateLimitPerSecond < 1 {
		return fmt.Errorf("%w: rate limit values must be positive", ErrInvalid)
	}
	return nil
}

func redisAddr() string {
	host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")
	if host != "" && port != "" {
		return host + ":" + port
	}
	return getEnv("REDIS_ADDR", "localhost:6379")
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}
