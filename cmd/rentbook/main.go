package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"rentbook/internal/app/schedule"
	"rentbook/internal/infra/config"
	"rentbook/internal/infra/cron"
	ginserver "rentbook/internal/infra/http/gin"
	"rentbook/internal/infra/obs"
)

var (
	envFile string
	cfg     config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "rentbook",
	Short:         "Peer-to-peer rental booking service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(envFile); err != nil {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
		logger = obs.NewLogger(cfg.Env, cfg.LogLevel)
		slog.SetDefault(logger)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, outbox relay, payment consumer and expiry sweep",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create tables and indexes for the configured storage driver",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApplication(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close(context.Background())
		if err := app.Migrate(cmd.Context()); err != nil {
			return err
		}
		logger.Info("storage migrated", "driver", cfg.StorageDriver)
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire stale rental requests once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApplication(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close(context.Background())
		res, err := app.service.ExpireStaleRentals(cmd.Context(), time.Time{})
		if err != nil {
			return err
		}
		logger.Info("sweep finished", "expired", len(res.Expired))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.AddCommand(serveCmd, migrateCmd, sweepCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(ctx context.Context) error {
	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())

	if cfg.StorageDriver != config.StorageMemory {
		if err := app.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	if err := app.loadItemFixtures(ctx, cfg.ItemsFixtures, logger); err != nil {
		logger.Warn("item fixtures load failed", "error", err, "path", cfg.ItemsFixtures)
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Checks: app.checks}, app.handlers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server starting", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
		logger.Info("HTTP server stopped")
		return nil
	})
	if app.relay != nil {
		g.Go(func() error { return ignoreCancel(app.relay.Run(gctx)) })
	}
	for _, consume := range app.consumers {
		g.Go(func() error { return ignoreCancel(consume(gctx)) })
	}
	if cfg.SweepEnabled {
		scheduler := cron.New(logger, time.Minute)
		job := &schedule.ExpireStaleJob{Service: app.service, Logger: logger}
		if err := scheduler.Register(cfg.SweepSchedule, job); err != nil {
			return fmt.Errorf("register %s: %w", job.Name(), err)
		}
		g.Go(func() error { return ignoreCancel(scheduler.Start(gctx)) })
	}
	return g.Wait()
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
