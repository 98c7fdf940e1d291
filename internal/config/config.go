package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendMySQL  = "mysql"
	BackendMinio  = "minio"
	BackendMemory = "memory"
)

// Update transports.
const (
	TransportPolling = "polling"
	TransportWebhook = "webhook"
)

// Config holds all application configuration
type Config struct {
	// Service configuration
	ServiceName string
	ServicePort string
	LogLevel    string

	// Telegram configuration
	BotToken        string
	TelegramTimeout time.Duration
	LinkHost        string
	ChannelURL      string
	TransportMode   string
	WebhookURL      string
	WebhookSecret   string

	// Purge configuration
	PurgeDelay time.Duration
	JobTimeout time.Duration

	StoreBackend string

	// TiDB configuration
	TiDBHost     string
	TiDBPort     string
	TiDBUser     string
	TiDBPassword string
	TiDBDatabase string

	// MinIO configuration
	MinIOEndpoint   string
	MinIOAccessKey  string
	MinIOSecretKey  string
	MinIOBucketName string
	MinIOUseSSL     bool

	// Redis configuration
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Tracing configuration; an empty endpoint disables export
	JaegerEndpoint   string
	TraceSampleRatio float64
}

// LoadConfig loads configuration from a .env file, if present, and then from
// environment variables with sensible defaults. Variables already set in the
// environment win over the file.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	config := &Config{
		ServiceName: getEnv("SERVICE_NAME", "mediadrop-bot"),
		ServicePort: getEnv("SERVICE_PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		BotToken:        getEnv("BOT_TOKEN", ""),
		TelegramTimeout: getEnvAsDuration("TELEGRAM_TIMEOUT", 60*time.Second),
		LinkHost:        getEnv("LINK_HOST", "t.me"),
		ChannelURL:      getEnv("CHANNEL_URL", ""),
		TransportMode:   getEnv("TRANSPORT_MODE", TransportPolling),
		WebhookURL:      getEnv("WEBHOOK_URL", ""),
		WebhookSecret:   getEnv("WEBHOOK_SECRET", ""),

		PurgeDelay: getEnvAsDuration("PURGE_DELAY", 600*time.Second),
		JobTimeout: getEnvAsDuration("JOB_TIMEOUT", 30*time.Second),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendMySQL)),

		TiDBHost:     getEnv("TIDB_HOST", "localhost"),
		TiDBPort:     getEnv("TIDB_PORT", "4000"),
		TiDBUser:     getEnv("TIDB_USER", "root"),
		TiDBPassword: getEnv("TIDB_PASSWORD", ""),
		TiDBDatabase: getEnv("TIDB_DATABASE", "mediadrop"),

		MinIOEndpoint:   getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinIOAccessKey:  getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinIOSecretKey:  getEnv("MINIO_SECRET_KEY", "minioadmin"),
		MinIOBucketName: getEnv("MINIO_BUCKET_NAME", "mediadrop"),
		MinIOUseSSL:     getEnvAsBool("MINIO_USE_SSL", false),

		RedisEnabled:  getEnvAsBool("REDIS_ENABLED", false),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		CacheTTL:      getEnvAsDuration("CACHE_TTL", time.Hour),

		JaegerEndpoint:   getEnv("JAEGER_ENDPOINT", ""),
		TraceSampleRatio: getEnvAsFloat("TRACE_SAMPLE_RATIO", 1.0),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.BotToken == "" {
		errs = append(errs, errors.New("BOT_TOKEN is required"))
	}
	switch c.StoreBackend {
	case BackendMySQL, BackendMinio, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND %q is not one of mysql, minio, memory", c.StoreBackend))
	}
	switch c.TransportMode {
	case TransportPolling:
	case TransportWebhook:
		if c.WebhookURL == "" {
			errs = append(errs, errors.New("WEBHOOK_URL is required in webhook mode"))
		}
		if c.WebhookSecret == "" {
			errs = append(errs, errors.New("WEBHOOK_SECRET is required in webhook mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("TRANSPORT_MODE %q is not one of polling, webhook", c.TransportMode))
	}
	if c.PurgeDelay <= 0 {
		errs = append(errs, errors.New("PURGE_DELAY must be positive"))
	}
	if c.JobTimeout <= 0 {
		errs = append(errs, errors.New("JOB_TIMEOUT must be positive"))
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		errs = append(errs, errors.New("TRACE_SAMPLE_RATIO must be between 0 and 1"))
	}

	return errors.Join(errs...)
}

// GetDSN returns the TiDB connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.TiDBUser,
		c.TiDBPassword,
		c.TiDBHost,
		c.TiDBPort,
		c.TiDBDatabase,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// WebhookEndpoint is the public URL Telegram posts updates to.
func (c *Config) WebhookEndpoint() string {
	return strings.TrimRight(c.WebhookURL, "/") + "/telegram/" + c.WebhookSecret
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("10m") or plain seconds ("600").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
