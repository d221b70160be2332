package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"daily_publisher/internal/domain"
)

// Ledger records completed publishes: a processed marker per source item, a
// last-upload pointer, a capped newest-first history and a per-publish audit
// entry.
type Ledger struct {
	store  Store
	limit  int
	logger *slog.Logger
}

func NewLedger(store Store, historyLimit int, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:  store,
		limit:  historyLimit,
		logger: logger.With("component", "ledger"),
	}
}

// Record marks the source item as processed, then updates the last-upload
// pointer and the history.
func (l *Ledger) Record(ctx context.Context, record domain.UploadRecord) error {
	if record.SourceItemID != "" {
		if err := l.store.Set(ctx, keyProcessedPrefix+record.SourceItemID, record, 0); err != nil {
			return fmt.Errorf("mark source item processed: %w", err)
		}
	}

	if err := l.store.Set(ctx, keyLastUpload, record, 0); err != nil {
		return fmt.Errorf("store last upload: %w", err)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode upload record: %w", err)
	}
	if err := l.store.Push(ctx, keyUploadHistory, string(data), l.limit); err != nil {
		return fmt.Errorf("append upload history: %w", err)
	}
	return nil
}

func (l *Ledger) Index(ctx context.Context, record domain.UploadRecord) error {
	if err := l.store.Set(ctx, keyUploadedPrefix+record.PublishID, record, 0); err != nil {
		return fmt.Errorf("store upload index: %w", err)
	}
	return nil
}

// Processed reports whether the source item was already published.
func (l *Ledger) Processed(ctx context.Context, sourceItemID string) (bool, error) {
	if sourceItemID == "" {
		return false, nil
	}

	var record domain.UploadRecord
	found, err := l.store.Get(ctx, keyProcessedPrefix+sourceItemID, &record)
	if err != nil {
		return false, fmt.Errorf("load processed marker: %w", err)
	}
	return found, nil
}

// Unprocessed returns items without a processed marker, keeping their order.
func (l *Ledger) Unprocessed(ctx context.Context, items []domain.SourceItem) ([]domain.SourceItem, error) {
	pending := make([]domain.SourceItem, 0, len(items))
	for _, item := range items {
		done, err := l.Processed(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		if !done {
			pending = append(pending, item)
		}
	}
	return pending, nil
}

// RecentTitles returns up to n titles, newest first. Entries that do not
// decode are skipped.
func (l *Ledger) RecentTitles(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	raw, err := l.store.Range(ctx, keyUploadHistory, n)
	if err != nil {
		return nil, fmt.Errorf("read upload history: %w", err)
	}

	titles := make([]string, 0, len(raw))
	for _, entry := range raw {
		var record domain.UploadRecord
		if err := json.Unmarshal([]byte(entry), &record); err != nil {
			l.logger.Debug("skipping malformed history entry", "error", err)
			continue
		}
		if record.Title == "" {
			continue
		}
		titles = append(titles, record.Title)
	}
	return titles, nil
}

// History returns up to n upload records, newest first.
func (l *Ledger) History(ctx context.Context, n int) ([]domain.UploadRecord, error) {
	raw, err := l.store.Range(ctx, keyUploadHistory, n)
	if err != nil {
		return nil, fmt.Errorf("read upload history: %w", err)
	}

	records := make([]domain.UploadRecord, 0, len(raw))
	for _, entry := range raw {
		var record domain.UploadRecord
		if err := json.Unmarshal([]byte(entry), &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// Last returns the most recent upload, or nil when nothing was published yet.
func (l *Ledger) Last(ctx context.Context) (*domain.UploadRecord, error) {
	var record domain.UploadRecord
	found, err := l.store.Get(ctx, keyLastUpload, &record)
	if err != nil {
		return nil, fmt.Errorf("load last upload: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &record, nil
}
