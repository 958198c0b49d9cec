// cmd/historian/main.go is an asynchronous historian service that pops round
// actions from a Redis queue and persists them to PostgreSQL.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/palavras/internal/cache"
	"github.com/jason-s-yu/palavras/internal/config"
	"github.com/jason-s-yu/palavras/internal/database"
	"github.com/jason-s-yu/palavras/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Load()
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}

	cmd := &cobra.Command{
		Use:          "palavras-historian",
		Short:        "Persists round actions from Redis to PostgreSQL",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "Redis address (env: REDIS_ADDR)")
	cmd.Flags().StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "PostgreSQL URL (env: DATABASE_URL)")
	cmd.Flags().StringVar(&cfg.HistorianQueue, "queue", cfg.HistorianQueue, "Queue to drain (env: HISTORIAN_QUEUE_NAME)")
	cmd.Flags().IntVar(&cfg.HistorianBatchSize, "batch-size", cfg.HistorianBatchSize, "Actions per transaction (env: HISTORIAN_BATCH_SIZE)")
	cmd.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (env: LOG_LEVEL)")
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	logger := cfg.NewLogger()
	if cfg.DatabaseURL == "" {
		return errors.New("no database configured: set DATABASE_URL or PG_HOST")
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := database.NewRoundStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	svc := historian.NewService(rdb, store, historian.Options{
		Queue:      cfg.HistorianQueue,
		BatchSize:  cfg.HistorianBatchSize,
		FlushDelay: cfg.HistorianFlush,
		Inactivity: cfg.RoundInactivity,
	}, logger)
	svc.Run(ctx)
	logger.Info("Historian shutdown complete.")
	return nil
}
