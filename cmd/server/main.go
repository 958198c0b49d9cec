// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/palavras/internal/cache"
	"github.com/jason-s-yu/palavras/internal/config"
	"github.com/jason-s-yu/palavras/internal/game"
	"github.com/jason-s-yu/palavras/internal/handlers"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Load()
	var verbose bool

	cmd := &cobra.Command{
		Use:   "palavras-server",
		Short: "Game server for Cinco Palavras",
		Long: `palavras-server hosts two-player Cinco Palavras rooms over a websocket
at /ws, with /health and /rooms/{code} for monitoring.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if verbose {
				cfg.LogLevel = "debug"
			}
			return run(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&cfg.Port, "port", "p", cfg.Port, "Port to listen on (env: PORT)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Shorthand for --log-level=debug")
	cmd.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (env: LOG_LEVEL)")
	cmd.Flags().StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "Redis address for the action log; empty disables it (env: REDIS_ADDR)")
	cmd.Flags().DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "How often idle rooms are reaped")
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	logger := cfg.NewLogger()

	var sink game.ActionSink
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Warnf("Round action log disabled: %v", err)
		} else {
			defer rdb.Close()
			publisher := cache.NewActionPublisher(rdb, cfg.HistorianQueue, logger)
			defer publisher.Close()
			sink = publisher
			logger.WithField("queue", publisher.Queue()).Info("Publishing round actions to Redis")
		}
	}

	store := game.NewRoomStore(game.WithLogger(logger))
	store.EmptyRoomTTL = cfg.EmptyRoomTTL
	store.MaxRoomAge = cfg.MaxRoomAge

	gs := handlers.NewGameServer(logger, store, sink)
	gs.OriginPatterns = cfg.OriginPatterns

	go store.RunReaper(ctx, cfg.SweepInterval)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handlers.NewRouter(gs),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Errorf("Server exited: %v", err)
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	gs.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"error": err}).Warn("HTTP shutdown did not complete cleanly")
	}
	return nil
}
