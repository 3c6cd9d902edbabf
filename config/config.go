package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App         AppConfig
	HTTP        ServerConfig
	MySQL       MySQLConfig
	Log         LogConfig
	MoneyMotion MoneyMotionConfig
	Nexus       NexusConfig
	Webhook     WebhookConfig
	Sessions    SessionsConfig
	Jobs        JobsConfig
}

type AppConfig struct {
	ServiceName string
	APIKey      string
	BaseURL     string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level string
}

type MoneyMotionConfig struct {
	APIKey          string
	APIBaseURL      string
	CheckoutBaseURL string
	WebhookSecret   string
	HTTPTimeout     time.Duration
}

type NexusConfig struct {
	BaseURL     string
	APIKey      string
	HTTPTimeout time.Duration
}

type WebhookConfig struct {
	TimestampTolerance time.Duration
	RequireTimestamp   bool
	RateLimit          int
	RateWindow         time.Duration
}

type SessionsConfig struct {
	ReturnTokenSecret string
	PendingTimeout    time.Duration
	JobBatchSize      int32
}

type JobsConfig struct {
	ExpirePendingInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "checkout-service"),
			APIKey:      getEnv("APP_API_KEY", ""),
			BaseURL:     getEnv("APP_BASE_URL", "http://localhost:8080"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		MoneyMotion: MoneyMotionConfig{
			APIKey:          getEnv("MONEYMOTION_API_KEY", ""),
			APIBaseURL:      getEnv("MONEYMOTION_API_BASE_URL", "https://api.moneymotion.io"),
			CheckoutBaseURL: getEnv("MONEYMOTION_CHECKOUT_BASE_URL", "https://moneymotion.io"),
			WebhookSecret:   getEnv("MONEYMOTION_WEBHOOK_SECRET", ""),
			HTTPTimeout:     getSecondsEnv("MONEYMOTION_HTTP_TIMEOUT_SECONDS", 30*time.Second),
		},
		Nexus: NexusConfig{
			BaseURL:     getEnv("NEXUS_BASE_URL", ""),
			APIKey:      getEnv("NEXUS_API_KEY", ""),
			HTTPTimeout: getSecondsEnv("NEXUS_HTTP_TIMEOUT_SECONDS", 30*time.Second),
		},
		Webhook: WebhookConfig{
			TimestampTolerance: getSecondsEnv("WEBHOOK_TIMESTAMP_TOLERANCE_SECONDS", 300*time.Second),
			RequireTimestamp:   getBoolEnv("WEBHOOK_REQUIRE_TIMESTAMP", true),
			RateLimit:          getIntEnv("WEBHOOK_RATE_LIMIT", 10),
			RateWindow:         getSecondsEnv("WEBHOOK_RATE_WINDOW_SECONDS", 60*time.Second),
		},
		Sessions: SessionsConfig{
			ReturnTokenSecret: getEnv("RETURN_TOKEN_SECRET", ""),
			PendingTimeout:    getMinutesEnv("SESSIONS_PENDING_TIMEOUT_MINUTES", 60*time.Minute),
			JobBatchSize:      int32(getIntEnv("SESSIONS_JOB_BATCH_SIZE", 100)),
		},
		Jobs: JobsConfig{
			ExpirePendingInterval: getMinutesEnv("JOBS_EXPIRE_PENDING_INTERVAL_MINUTES", 5*time.Minute),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
