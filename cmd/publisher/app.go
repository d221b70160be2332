package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"daily_publisher/internal/auth"
	"daily_publisher/internal/config"
	"daily_publisher/internal/events"
	"daily_publisher/internal/generator"
	"daily_publisher/internal/publisher/youtube"
	"daily_publisher/internal/service"
	"daily_publisher/internal/source/drive"
	"daily_publisher/internal/storage/memory"
	"daily_publisher/internal/storage/postgres"
)

// app holds the wired components shared by every command.
type app struct {
	agent   *service.Agent
	creds   *service.Credentials
	consent *service.Consent
	purger  *postgres.KVStore
	logger  *slog.Logger
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger}

	store, err := a.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var eventPublisher service.EventPublisher
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := events.NewRabbitMQ(events.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, rabbitMQ.Close)
		eventPublisher = rabbitMQ
	}

	httpClient := &http.Client{}
	google := auth.NewGoogle(cfg.Google, httpClient, logger)

	a.creds = service.NewCredentials(store, google, logger, cfg.Agent, cfg.Timeouts)
	a.consent = service.NewConsent(store, google, a.creds, cfg.Agent.ConsentTTL, logger)
	a.agent = service.NewAgent(
		store,
		a.creds,
		drive.New(drive.Config{Endpoint: cfg.Google.DriveEndpoint, HTTPClient: httpClient}, logger),
		generator.New(cfg.Generator, logger),
		youtube.New(youtube.Config{Endpoint: cfg.Google.YouTubeEndpoint, HTTPClient: httpClient}, logger),
		google,
		eventPublisher,
		logger,
		cfg.Agent,
		cfg.Timeouts,
	)

	return a, nil
}

func (a *app) openStore(ctx context.Context, cfg *config.Config) (service.Store, error) {
	if cfg.Store == config.StoreMemory {
		a.logger.Warn("using in-memory store, state is lost on exit")
		return memory.New(), nil
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	a.logger.Info("connected to database")

	kv := postgres.NewKVStore(db, cfg.Timeouts.Store)
	a.purger = kv
	return kv, nil
}

// purgeExpired removes expired consent states and leases until ctx ends.
func (a *app) purgeExpired(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.purger.PurgeExpired(ctx)
			if err != nil {
				a.logger.Error("failed to purge expired entries", "error", err)
				continue
			}
			if n > 0 {
				a.logger.Debug("purged expired entries", "count", n)
			}
		}
	}
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("failed to close resource", "error", err)
		}
	}
}
