package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"daily_publisher/internal/config"
	"daily_publisher/internal/domain"
)

// Agent runs the publish pipeline: take the oldest pending video, generate
// metadata for it, publish it and record the result.
type Agent struct {
	store     Store
	creds     *Credentials
	source    Source
	generator Generator
	publisher Publisher
	identity  IdentityResolver
	events    EventPublisher

	ledger   *Ledger
	schedule *Schedule
	lease    *Lease

	logger   *slog.Logger
	cfg      config.AgentConfig
	timeouts config.TimeoutConfig
	now      func() time.Time
}

func NewAgent(
	store Store,
	creds *Credentials,
	source Source,
	generator Generator,
	publisher Publisher,
	identity IdentityResolver,
	events EventPublisher,
	logger *slog.Logger,
	cfg config.AgentConfig,
	timeouts config.TimeoutConfig,
) *Agent {
	logger = logger.With("component", "agent")
	return &Agent{
		store:     store,
		creds:     creds,
		source:    source,
		generator: generator,
		publisher: publisher,
		identity:  identity,
		events:    events,
		ledger:    NewLedger(store, cfg.HistoryLimit, logger),
		schedule:  NewSchedule(store),
		lease:     NewLease(store, cfg.LeaseTTL, logger),
		logger:    logger,
		cfg:       cfg,
		timeouts:  timeouts,
		now:       time.Now,
	}
}

// GetConfig returns the stored configuration, or the defaults when none was saved.
func (a *Agent) GetConfig(ctx context.Context) (domain.AgentConfig, error) {
	cfg := domain.DefaultAgentConfig()
	if _, err := a.store.Get(ctx, keyConfig, &cfg); err != nil {
		return domain.AgentConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// UpdateConfig validates and stores cfg, then recomputes the next run. It
// returns the configuration as stored.
func (a *Agent) UpdateConfig(ctx context.Context, cfg domain.AgentConfig) (domain.AgentConfig, *time.Time, error) {
	cfg.DriveFolderID = strings.TrimSpace(cfg.DriveFolderID)
	if err := cfg.Validate(); err != nil {
		return domain.AgentConfig{}, nil, err
	}

	if err := a.store.Set(ctx, keyConfig, cfg, 0); err != nil {
		return domain.AgentConfig{}, nil, fmt.Errorf("store config: %w", err)
	}

	next, err := a.schedule.Reschedule(ctx, cfg, a.now())
	if err != nil {
		return domain.AgentConfig{}, nil, err
	}

	a.logger.Info("config updated",
		"drive_folder_id", cfg.DriveFolderID,
		"daily_publish_time", cfg.DailyPublishTime.String(),
		"privacy_status", cfg.PrivacyStatus,
	)
	return cfg, next, nil
}

// NextRun returns the stored next run, or nil when none is planned.
func (a *Agent) NextRun(ctx context.Context) (*time.Time, error) {
	return a.schedule.Next(ctx)
}

// History returns up to n recorded uploads, newest first.
func (a *Agent) History(ctx context.Context, n int) ([]domain.UploadRecord, error) {
	return a.ledger.History(ctx, n)
}

// RunOnce performs a single publish attempt. A failed attempt returns both a
// failure result and the classified error.
func (a *Agent) RunOnce(ctx context.Context, trigger domain.Trigger) (*domain.RunResult, error) {
	startTime := a.now()
	logger := a.logger.With("trigger", trigger)
	logger.Info("starting run")

	result, item, err := a.run(ctx, logger, trigger)
	duration := a.now().Sub(startTime)

	if err != nil {
		result = domain.FailedRun(trigger, err)
		if errors.Is(err, domain.ErrNoPendingItems) || errors.Is(err, domain.ErrRunInProgress) || errors.Is(err, domain.ErrNotConfigured) {
			logger.Info("run skipped", "reason", result.Reason, "duration", duration)
		} else {
			logger.Error("run failed", "reason", result.Reason, "error", err, "duration", duration)
		}
	} else {
		logger.Info("run completed",
			"publish_id", result.PublishID,
			"title", result.Metadata.Title,
			"duration", duration,
		)
	}

	a.emit(ctx, result, item, duration)
	return result, err
}

// RunScheduled is RunOnce for timer-driven triggers. Whatever the outcome the
// next run is planned again so the daily cadence never stops.
func (a *Agent) RunScheduled(ctx context.Context) (*domain.RunResult, error) {
	result, err := a.RunOnce(ctx, domain.TriggerScheduled)
	if err == nil {
		return result, nil
	}

	fallbackCtx, cancel := bounded(context.WithoutCancel(ctx), a.timeouts.Store)
	defer cancel()

	cfg, cfgErr := a.GetConfig(fallbackCtx)
	if cfgErr != nil {
		a.logger.Error("fallback reschedule failed", "error", cfgErr)
		return result, err
	}
	next, schedErr := a.schedule.Reschedule(fallbackCtx, cfg, a.now())
	if schedErr != nil {
		a.logger.Error("fallback reschedule failed", "error", schedErr)
		return result, err
	}
	if next != nil {
		a.logger.Info("rescheduled after failed run", "next_run", next.Format(time.RFC3339))
	}
	return result, err
}

func (a *Agent) run(ctx context.Context, logger *slog.Logger, trigger domain.Trigger) (*domain.RunResult, *domain.SourceItem, error) {
	cfg, err := a.GetConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Configured() {
		return nil, nil, domain.ErrNotConfigured
	}

	release, err := a.lease.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	session, err := a.creds.GetAuthorizedContext(ctx)
	if err != nil {
		return nil, nil, err
	}

	listCtx, cancel := bounded(ctx, a.timeouts.Source)
	items, err := a.source.ListPending(listCtx, session, cfg.DriveFolderID, a.cfg.ListLimit)
	cancel()
	if err != nil {
		return nil, nil, fmt.Errorf("list pending: %w", classify(err, domain.ErrSourceUnavailable))
	}

	pending, err := a.ledger.Unprocessed(ctx, items)
	if err != nil {
		return nil, nil, err
	}
	if len(pending) == 0 {
		return nil, nil, domain.ErrNoPendingItems
	}

	item := pending[0]
	if strings.TrimSpace(item.ID) == "" {
		return nil, &item, fmt.Errorf("%w: %q", domain.ErrInvalidSourceItem, item.Name)
	}
	logger = logger.With("source_item", item.ID)
	logger.Info("selected source item", "name", item.Name, "pending", len(pending), "listed", len(items))

	// Past this point a caller going away must not strand a half-done publish.
	runCtx := context.WithoutCancel(ctx)

	titles, err := a.ledger.RecentTitles(runCtx, a.cfg.RecentTitles)
	if err != nil {
		return nil, &item, err
	}

	genCtx, cancel := bounded(runCtx, a.timeouts.Generation)
	metadata, err := a.generator.Generate(genCtx, domain.GenerationRequest{
		Context:         cfg.MetadataContext,
		RecentTitles:    titles,
		IncludeChapters: cfg.IncludeAutoChapters,
	})
	cancel()
	if err != nil {
		return nil, &item, fmt.Errorf("generate metadata: %w", classify(err, domain.ErrGenerationFailed))
	}
	logger.Debug("metadata generated", "title", metadata.Title, "tags", len(metadata.Tags))

	publishID, err := a.publish(runCtx, session, cfg, item, metadata)
	if err != nil {
		return nil, &item, err
	}
	logger = logger.With("publish_id", publishID)

	record := domain.UploadRecord{
		PublishID:    publishID,
		SourceItemID: item.ID,
		SourceName:   item.Name,
		ContentType:  item.MimeType,
		Title:        metadata.Title,
		UploadedAt:   a.now().UTC(),
	}

	storeCtx, cancel := bounded(runCtx, a.timeouts.Store)
	defer cancel()

	if err := a.ledger.Record(storeCtx, record); err != nil {
		return nil, &item, err
	}
	if err := a.ledger.Index(storeCtx, record); err != nil {
		logger.Warn("failed to index upload", "error", err)
	}

	next, err := a.schedule.Reschedule(storeCtx, cfg, a.now())
	if err != nil {
		return nil, &item, err
	}
	if next != nil {
		logger.Info("next run scheduled", "next_run", next.Format(time.RFC3339))
	}

	return &domain.RunResult{
		Success:   true,
		Metadata:  metadata,
		PublishID: publishID,
		Trigger:   trigger,
	}, &item, nil
}

func (a *Agent) publish(ctx context.Context, session domain.Session, cfg domain.AgentConfig, item domain.SourceItem, metadata *domain.Metadata) (string, error) {
	// The body streams from the source while the publisher reads it, so both
	// calls share the publish deadline.
	pubCtx, cancel := bounded(ctx, a.timeouts.Publish)
	defer cancel()

	content, err := a.source.Fetch(pubCtx, session, item.ID)
	if err != nil {
		return "", fmt.Errorf("fetch source item: %w", classify(err, domain.ErrSourceUnavailable))
	}
	defer content.Body.Close()

	publishID, err := a.publisher.Publish(pubCtx, session, domain.PublishRequest{
		Body:              content.Body,
		Title:             metadata.Title,
		Description:       metadata.Description,
		Tags:              metadata.Tags,
		Visibility:        cfg.PrivacyStatus,
		NotifySubscribers: cfg.NotifySubscribers,
	})
	if err != nil {
		return "", fmt.Errorf("publish: %w", classify(err, domain.ErrPublishFailed))
	}
	if strings.TrimSpace(publishID) == "" {
		return "", fmt.Errorf("%w: upstream returned no video id", domain.ErrPublishFailed)
	}
	return publishID, nil
}

func (a *Agent) emit(ctx context.Context, result *domain.RunResult, item *domain.SourceItem, duration time.Duration) {
	if a.events == nil {
		return
	}

	event := domain.RunEvent{
		Trigger:   result.Trigger,
		Success:   result.Success,
		Reason:    result.Reason,
		PublishID: result.PublishID,
		Duration:  duration,
	}
	if result.Metadata != nil {
		event.Title = result.Metadata.Title
	}
	if item != nil {
		event.SourceItem = item.ID
	}

	emitCtx, cancel := bounded(context.WithoutCancel(ctx), a.timeouts.Store)
	defer cancel()

	if err := a.events.PublishRun(emitCtx, event); err != nil {
		a.logger.Warn("failed to publish run event", "error", err)
	}
}

// GetStatus assembles the dashboard snapshot. Upstream lookups degrade to
// empty values instead of failing the whole status.
func (a *Agent) GetStatus(ctx context.Context) (*domain.Status, error) {
	var (
		cfg       domain.AgentConfig
		next      *time.Time
		last      *domain.UploadRecord
		record    *domain.CredentialRecord
		reconnect bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cfg, err = a.GetConfig(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		next, err = a.schedule.Next(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		last, err = a.ledger.Last(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		record, err = a.creds.GetCredential(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		reconnect, err = a.creds.ReconnectRequired(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load status: %w", err)
	}

	status := &domain.Status{
		Config:            cfg,
		NextRun:           next,
		Connected:         record != nil,
		ReconnectRequired: reconnect,
	}
	if last != nil {
		status.LastUploadID = &last.PublishID
		uploadedAt := last.UploadedAt
		status.LastUploadAt = &uploadedAt
	}
	if record == nil {
		return status, nil
	}

	session, err := a.creds.GetAuthorizedContext(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrRefreshFailed) {
			status.ReconnectRequired = true
		}
		a.logger.Warn("status without authorized session", "error", err)
		return status, nil
	}

	if a.identity != nil {
		idCtx, cancel := bounded(ctx, a.timeouts.Auth)
		email, err := a.identity.Email(idCtx, session)
		cancel()
		if err != nil {
			a.logger.Warn("failed to resolve account email", "error", err)
		} else if email != "" {
			status.AccountEmail = &email
		}
	}

	if cfg.Configured() {
		listCtx, cancel := bounded(ctx, a.timeouts.Source)
		items, err := a.source.ListPending(listCtx, session, cfg.DriveFolderID, a.cfg.ListLimit)
		cancel()
		if err != nil {
			a.logger.Warn("failed to count pending items", "error", err)
		} else if pending, err := a.ledger.Unprocessed(ctx, items); err != nil {
			a.logger.Warn("failed to filter processed items", "error", err)
		} else {
			status.PendingCount = len(pending)
		}
	}

	return status, nil
}
