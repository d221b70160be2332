package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"daily_publisher/internal/config"
	"daily_publisher/internal/domain"
	"daily_publisher/internal/httpapi"
	"daily_publisher/internal/scheduler"
	"daily_publisher/internal/storage/postgres"
)

var (
	configPath  string
	migrateDown bool
)

var rootCmd = &cobra.Command{
	Use:           "publisher",
	Short:         "Publish one video a day from Google Drive to YouTube",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the daily scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := load()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			sig := <-sigCh
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		}()

		if cfg.Store == config.StorePostgres {
			if err := postgres.Migrate(cfg.Database.URL(), false); err != nil {
				return err
			}
		}

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		handler := httpapi.NewHandler(a.agent, a.consent, a.creds, cfg.Server.CronSecret, cfg.Server.DashboardURL, logger)
		server := &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      handler.Mux(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}

		go func() {
			logger.Info("server listening", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server error", "error", err)
				cancel()
			}
		}()

		if a.purger != nil {
			go a.purgeExpired(ctx, time.Hour)
		}

		sched := scheduler.NewScheduler(a.agent, cfg.Agent.PollInterval, cfg.Agent.ScheduledRunTimeout, logger)

		logger.Info("starting daily publisher",
			"store", cfg.Store,
			"poll_interval", cfg.Agent.PollInterval,
			"events", cfg.RabbitMQ.Enabled,
		)

		err = sched.Start(ctx)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Error("server shutdown error", "error", shutdownErr)
		}

		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scheduler: %w", err)
		}
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Publish the oldest pending video now",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := load()
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		result, runErr := a.agent.RunOnce(cmd.Context(), domain.TriggerManual)
		if err := printJSON(cmd, result); err != nil {
			return err
		}
		return runErr
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current agent status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := load()
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		status, err := a.agent.GetStatus(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, status)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or revert the state store schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := load()
		if err != nil {
			return err
		}
		if cfg.Store != config.StorePostgres {
			return fmt.Errorf("migrate requires store %q, got %q", config.StorePostgres, cfg.Store)
		}

		if err := postgres.Migrate(cfg.Database.URL(), migrateDown); err != nil {
			return err
		}
		logger.Info("migrations applied", "down", migrateDown)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "revert all migrations")

	rootCmd.AddCommand(serveCmd, runCmd, statusCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		setupLogger("info").Error("command failed", "error", err, "reason", domain.ReasonOf(err))
		os.Exit(1)
	}
}

func load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, setupLogger(cfg.LogLevel), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
