package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"admin-payments/internal/acquiring"
)

const (
	defaultStatusSyncSchedule = "@every 5m"
	defaultCacheTTL           = 30 * time.Second
)

// Config holds application configuration
type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	ServerPort  string
	LogLevel    string
	Environment string

	TerminalKey    string
	TerminalSecret string
	GatewayURL     string
	GatewayTimeout time.Duration
	APIBaseURL     string
	FrontendURL    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// StatusSyncSchedule is a cron spec; empty disables the background sync.
	StatusSyncSchedule string
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Debug(".env file not found, using process environment")
	}

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "admin_payments"),
		DBSSLMode:  getEnv("DB_SSL_MODE", "disable"),

		ServerPort:  getEnv("SERVER_PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Environment: getEnv("ENVIRONMENT", "development"),

		TerminalKey:    os.Getenv("TINKOFF_TERMINAL_ID"),
		TerminalSecret: os.Getenv("TINKOFF_PASSWORD"),
		GatewayURL:     getEnv("TINKOFF_API_URL", acquiring.DefaultAPIURL),
		GatewayTimeout: getDuration("TINKOFF_TIMEOUT", acquiring.DefaultTimeout),
		APIBaseURL:     strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8080"), "/"),
		FrontendURL:    strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),
		CacheTTL:      getDuration("CACHE_TTL", defaultCacheTTL),

		StatusSyncSchedule: getEnvAllowEmpty("STATUS_SYNC_SCHEDULE", defaultStatusSyncSchedule),
	}
}

// GetDBConnectionString returns the PostgreSQL connection string
func (c *Config) GetDBConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// Gateway returns the acquiring client settings.
func (c *Config) Gateway() acquiring.Config {
	return acquiring.Config{
		TerminalKey: c.TerminalKey,
		Password:    c.TerminalSecret,
		APIURL:      c.GatewayURL,
		Timeout:     c.GatewayTimeout,
	}
}

// NotificationURL is where the gateway posts payment callbacks.
func (c *Config) NotificationURL() string {
	return c.APIBaseURL + "/payments/notifications"
}

func (c *Config) SuccessURL() string {
	return c.FrontendURL + "/payments/success"
}

func (c *Config) FailURL() string {
	return c.FrontendURL + "/payments/fail"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Level parses LogLevel, falling back to info.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty distinguishes an unset variable from one set to "".
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

// getDuration accepts Go durations ("45s") or plain seconds ("45").
func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	logrus.WithField("key", key).Warn("Invalid duration, using default")
	return defaultValue
}
