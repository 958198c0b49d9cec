// internal/config/config.go

// Package config reads server and historian settings from the environment.
// Commands load a .env file first through godotenv/autoload.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type Config struct {
	Port           string
	LogLevel       string
	OriginPatterns []string

	// Rooms
	SweepInterval time.Duration
	EmptyRoomTTL  time.Duration
	MaxRoomAge    time.Duration

	// Action log. An empty RedisAddr disables publishing.
	RedisAddr      string
	RedisDB        int
	HistorianQueue string

	// Historian
	DatabaseURL        string
	HistorianBatchSize int
	HistorianFlush     time.Duration
	RoundInactivity    time.Duration
}

// Load reads every setting, falling back to defaults.
func Load() Config {
	return Config{
		Port:           getEnv("PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		OriginPatterns: splitList(getEnv("WS_ORIGIN_PATTERNS", "*")),

		SweepInterval: seconds("ROOM_SWEEP_INTERVAL_SEC", 600),
		EmptyRoomTTL:  seconds("ROOM_EMPTY_TTL_SEC", 300),
		MaxRoomAge:    seconds("ROOM_MAX_AGE_SEC", 3600),

		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		HistorianQueue: getEnv("HISTORIAN_QUEUE_NAME", "palavras_actions"),

		DatabaseURL:        databaseURL(),
		HistorianBatchSize: getEnvInt("HISTORIAN_BATCH_SIZE", 20),
		HistorianFlush:     time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
		RoundInactivity:    seconds("ROUND_INACTIVITY_TIMEOUT_SEC", 600),
	}
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}

// NewLogger builds the process logger at the configured level. Unknown levels
// fall back to info.
func (c Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logger.Warnf("Unknown LOG_LEVEL %q, using info", c.LogLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// databaseURL prefers DATABASE_URL and otherwise assembles one from the
// POSTGRES_* / PG_* variables.
func databaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	if os.Getenv("PG_HOST") == "" {
		return ""
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		os.Getenv("PG_HOST"),
		getEnv("PG_PORT", "5432"),
		os.Getenv("PG_DATABASE"),
	)
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func seconds(key string, def int) time.Duration {
	return time.Duration(getEnvInt(key, def)) * time.Second
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
