package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Revocation backend constants
const (
	RevocationBackendRedis  = "redis"
	RevocationBackendMemory = "memory"
)

// Redis client used for the revocation primary backend
const (
	RedisClientGoRedis = "go-redis"
	RedisClientRueidis = "rueidis"
)

// Rate limit store constants
const (
	RateLimitStoreMemory = "memory"
	RateLimitStoreRedis  = "redis"
)

// Log format constants
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

type Config struct {
	// Server settings
	ServerAddr            string
	BaseURL               string
	IsProduction          bool
	ServerShutdownTimeout time.Duration

	// Session settings
	SessionSecret string
	SessionMaxAge int // seconds

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string
	DBInitTimeout  time.Duration
	DBQueryTimeout time.Duration

	// Token lifetimes
	AuthCodeExpiration     time.Duration
	AccessTokenExpiration  time.Duration
	RefreshTokenExpiration time.Duration
	DefaultScope           string

	// Redis
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisConnTimeout time.Duration

	// Revocation cache
	RevocationBackend      string // "redis" or "memory"
	RevocationRedisClient  string // "go-redis" or "rueidis"
	RevocationProbeTimeout time.Duration
	RevocationRedisTimeout time.Duration
	RevocationFailClosed   bool
	ReaperInterval         time.Duration

	// Rate limiting
	EnableRateLimit bool
	RateLimitStore  string // "memory" or "redis"
	TokenRateLimit  int    // requests per minute
	LoginRateLimit  int    // requests per minute

	// Metrics
	MetricsEnabled bool
	MetricsToken   string

	// Logging
	LogLevel  string
	LogFormat string

	// Seed
	DefaultAdminPassword string
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	driver := getEnv("DATABASE_DRIVER", "sqlite")
	var dsn string
	if driver == "sqlite" {
		dsn = getEnv("DATABASE_DSN", "ssocenter.db")
	} else {
		dsn = getEnv("DATABASE_DSN", "")
	}

	isProduction := getEnv("ENVIRONMENT", "development") == "production"
	defaultLogFormat := LogFormatConsole
	if isProduction {
		defaultLogFormat = LogFormatJSON
	}

	return &Config{
		ServerAddr:            getEnv("SERVER_ADDR", ":8080"),
		BaseURL:               getEnv("BASE_URL", "http://localhost:8080"),
		IsProduction:          isProduction,
		ServerShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second),

		SessionSecret: getEnv("SESSION_SECRET", "session-secret-change-in-production"),
		SessionMaxAge: getEnvInt("SESSION_MAX_AGE", 8*3600),

		DatabaseDriver: driver,
		DatabaseDSN:    dsn,
		DBInitTimeout:  getEnvDuration("DB_INIT_TIMEOUT", 30*time.Second),
		DBQueryTimeout: getEnvDuration("DB_QUERY_TIMEOUT", 5*time.Second),

		AuthCodeExpiration:     getEnvDuration("AUTH_CODE_EXPIRATION", 5*time.Minute),
		AccessTokenExpiration:  getEnvDuration("ACCESS_TOKEN_EXPIRATION", time.Hour),
		RefreshTokenExpiration: getEnvDuration("REFRESH_TOKEN_EXPIRATION", 720*time.Hour), // 30 days
		DefaultScope:           getEnv("DEFAULT_SCOPE", "default"),

		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		RedisConnTimeout: getEnvDuration("REDIS_CONN_TIMEOUT", 5*time.Second),

		RevocationBackend:      getEnv("REVOCATION_BACKEND", RevocationBackendRedis),
		RevocationRedisClient:  getEnv("REVOCATION_REDIS_CLIENT", RedisClientGoRedis),
		RevocationProbeTimeout: getEnvDuration("REVOCATION_PROBE_TIMEOUT", 2*time.Second),
		RevocationRedisTimeout: getEnvDuration("REVOCATION_REDIS_TIMEOUT", 500*time.Millisecond),
		RevocationFailClosed:   getEnvBool("REVOCATION_FAIL_CLOSED", false),
		ReaperInterval:         getEnvDuration("REAPER_INTERVAL", time.Hour),

		EnableRateLimit: getEnvBool("ENABLE_RATE_LIMIT", true),
		RateLimitStore:  getEnv("RATE_LIMIT_STORE", RateLimitStoreMemory),
		TokenRateLimit:  getEnvInt("TOKEN_RATE_LIMIT", 60),
		LoginRateLimit:  getEnvInt("LOGIN_RATE_LIMIT", 10),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", false),
		MetricsToken:   getEnv("METRICS_TOKEN", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", defaultLogFormat),

		DefaultAdminPassword: getEnv("DEFAULT_ADMIN_PASSWORD", ""),
	}
}

// Validate checks the configuration for invalid or inconsistent values
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf(
			"invalid DATABASE_DRIVER value: %q (must be \"sqlite\" or \"postgres\")",
			c.DatabaseDriver,
		)
	}
	if c.DatabaseDSN == "" {
		return errors.New("DATABASE_DSN is required")
	}

	if c.AuthCodeExpiration <= 0 || c.AccessTokenExpiration <= 0 ||
		c.RefreshTokenExpiration <= 0 {
		return errors.New("token expirations must be positive")
	}
	if c.RefreshTokenExpiration < c.AccessTokenExpiration {
		return errors.New("REFRESH_TOKEN_EXPIRATION must not be shorter than ACCESS_TOKEN_EXPIRATION")
	}

	switch c.RevocationBackend {
	case RevocationBackendMemory:
	case RevocationBackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REVOCATION_BACKEND=%q requires REDIS_ADDR", c.RevocationBackend)
		}
		if c.RevocationRedisClient != RedisClientGoRedis &&
			c.RevocationRedisClient != RedisClientRueidis {
			return fmt.Errorf(
				"invalid REVOCATION_REDIS_CLIENT value: %q (must be \"go-redis\" or \"rueidis\")",
				c.RevocationRedisClient,
			)
		}
	default:
		return fmt.Errorf(
			"invalid REVOCATION_BACKEND value: %q (must be \"redis\" or \"memory\")",
			c.RevocationBackend,
		)
	}
	if c.RevocationRedisTimeout <= 0 || c.RevocationProbeTimeout <= 0 {
		return errors.New("revocation timeouts must be positive")
	}
	if c.ReaperInterval <= 0 {
		return fmt.Errorf("REAPER_INTERVAL must be positive, got %v", c.ReaperInterval)
	}

	if c.EnableRateLimit {
		if c.RateLimitStore != RateLimitStoreMemory && c.RateLimitStore != RateLimitStoreRedis {
			return fmt.Errorf(
				"invalid RATE_LIMIT_STORE value: %q (must be \"memory\" or \"redis\")",
				c.RateLimitStore,
			)
		}
		if c.TokenRateLimit <= 0 || c.LoginRateLimit <= 0 {
			return errors.New("rate limits must be positive when ENABLE_RATE_LIMIT=true")
		}
	}

	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("SESSION_MAX_AGE must be positive, got %d", c.SessionMaxAge)
	}
	if c.IsProduction && c.SessionSecret == "session-secret-change-in-production" {
		return errors.New("SESSION_SECRET must be changed in production")
	}

	switch c.LogFormat {
	case LogFormatJSON, LogFormatConsole:
	default:
		return fmt.Errorf("invalid LOG_FORMAT value: %q (must be \"json\" or \"console\")", c.LogFormat)
	}

	return nil
}

// SessionLifetime returns the cookie session lifetime as a duration
func (c *Config) SessionLifetime() time.Duration {
	return time.Duration(c.SessionMaxAge) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
