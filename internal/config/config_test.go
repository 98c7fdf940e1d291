package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServicePort)
	assert.Equal(t, BackendMySQL, cfg.StoreBackend)
	assert.Equal(t, TransportPolling, cfg.TransportMode)
	assert.Equal(t, 600*time.Second, cfg.PurgeDelay)
	assert.Equal(t, 30*time.Second, cfg.JobTimeout)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, "t.me", cfg.LinkHost)
	assert.False(t, cfg.RedisEnabled)
	assert.Empty(t, cfg.JaegerEndpoint)
	assert.Equal(t, 1.0, cfg.TraceSampleRatio)
	assert.Equal(t, "root:@tcp(localhost:4000)/mediadrop?charset=utf8mb4&parseTime=True&loc=UTC", cfg.GetDSN())
	assert.Equal(t, "localhost:6379", cfg.GetRedisAddr())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("STORE_BACKEND", "MINIO")
	t.Setenv("PURGE_DELAY", "90")
	t.Setenv("CACHE_TTL", "15m")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("TRANSPORT_MODE", "webhook")
	t.Setenv("WEBHOOK_URL", "https://bot.example.com/")
	t.Setenv("WEBHOOK_SECRET", "s3cret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, BackendMinio, cfg.StoreBackend)
	assert.Equal(t, 90*time.Second, cfg.PurgeDelay)
	assert.Equal(t, 15*time.Minute, cfg.CacheTTL)
	assert.True(t, cfg.RedisEnabled)
	assert.Equal(t, "https://bot.example.com/telegram/s3cret", cfg.WebhookEndpoint())
}

func TestLoadConfigRequiresBotToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOT_TOKEN")
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := &Config{
		BotToken:      "x",
		StoreBackend:  "mongo",
		TransportMode: TransportWebhook,
		PurgeDelay:    0,
		JobTimeout:    time.Second,
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_BACKEND")
	assert.Contains(t, err.Error(), "WEBHOOK_URL")
	assert.Contains(t, err.Error(), "PURGE_DELAY")
}

func TestBadDurationFallsBackToDefault(t *testing.T) {
	t.Setenv("JOB_TIMEOUT", "soon")
	assert.Equal(t, 30*time.Second, getEnvAsDuration("JOB_TIMEOUT", 30*time.Second))
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, (&Config{LogLevel: "debug"}).SlogLevel())
	assert.Equal(t, slog.LevelWarn, (&Config{LogLevel: "WARN"}).SlogLevel())
	assert.Equal(t, slog.LevelInfo, (&Config{LogLevel: "loud"}).SlogLevel())
}
