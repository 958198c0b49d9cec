package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"PORT", "LOG_LEVEL", "WS_ORIGIN_PATTERNS", "REDIS_ADDR", "REDIS_DB",
		"HISTORIAN_QUEUE_NAME", "DATABASE_URL", "PG_HOST", "PG_PORT",
		"POSTGRES_USER", "POSTGRES_PASSWORD", "PG_DATABASE",
		"ROOM_SWEEP_INTERVAL_SEC", "ROOM_EMPTY_TTL_SEC", "ROOM_MAX_AGE_SEC",
		"HISTORIAN_BATCH_SIZE", "HISTORIAN_FLUSH_MS", "ROUND_INACTIVITY_TIMEOUT_SEC",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, []string{"*"}, cfg.OriginPatterns)
	assert.Equal(t, 10*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 5*time.Minute, cfg.EmptyRoomTTL)
	assert.Equal(t, time.Hour, cfg.MaxRoomAge)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, "palavras_actions", cfg.HistorianQueue)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, 20, cfg.HistorianBatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.HistorianFlush)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("WS_ORIGIN_PATTERNS", "example.com, *.example.com ,")
	t.Setenv("ROOM_EMPTY_TTL_SEC", "60")
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("PG_HOST", "db")
	t.Setenv("POSTGRES_USER", "u")
	t.Setenv("POSTGRES_PASSWORD", "p")
	t.Setenv("PG_DATABASE", "palavras")

	cfg := Load()
	assert.Equal(t, ":9000", cfg.Addr())
	assert.Equal(t, []string{"example.com", "*.example.com"}, cfg.OriginPatterns)
	assert.Equal(t, time.Minute, cfg.EmptyRoomTTL)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, "postgres://u:p@db:5432/palavras", cfg.DatabaseURL)

	t.Setenv("DATABASE_URL", "postgres://direct/db")
	assert.Equal(t, "postgres://direct/db", Load().DatabaseURL)
}

func TestNewLogger(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, Config{LogLevel: "debug"}.NewLogger().GetLevel())
	assert.Equal(t, logrus.InfoLevel, Config{LogLevel: "loud"}.NewLogger().GetLevel())
}
