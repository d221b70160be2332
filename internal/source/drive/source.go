package drive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"daily_publisher/internal/auth"
	"daily_publisher/internal/domain"
)

const SourceID = "google_drive"

const listFields = "files(id, name, mimeType, videoMediaMetadata, createdTime, size)"

// Config holds Drive source configuration.
type Config struct {
	// Endpoint overrides the Drive API base URL.
	Endpoint   string
	HTTPClient *http.Client
}

// Source lists and downloads videos from a Drive folder.
type Source struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Source {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Source{
		endpoint:   cfg.Endpoint,
		httpClient: httpClient,
		logger:     logger.With("source", SourceID),
	}
}

// ListPending returns up to limit videos directly inside folderID, oldest first.
// Trashed files and non-video files are excluded.
func (s *Source) ListPending(ctx context.Context, session domain.Session, folderID string, limit int) ([]domain.SourceItem, error) {
	svc, err := s.service(ctx, session)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("'%s' in parents and trashed = false and mimeType contains 'video/'", escape(folderID))

	resp, err := svc.Files.List().
		Q(query).
		OrderBy("createdTime").
		PageSize(int64(limit)).
		Fields(listFields).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(ctx, err)
	}

	s.logger.Debug("listed folder", "folder_id", folderID, "files", len(resp.Files))
	return s.transform(resp.Files), nil
}

// Fetch streams the content of itemID. The caller closes the body.
func (s *Source) Fetch(ctx context.Context, session domain.Session, itemID string) (*domain.SourceContent, error) {
	svc, err := s.service(ctx, session)
	if err != nil {
		return nil, err
	}

	file, err := svc.Files.Get(itemID).
		Fields("id, name, mimeType").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(ctx, err)
	}

	resp, err := svc.Files.Get(itemID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, classify(ctx, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = file.MimeType
	}
	return &domain.SourceContent{
		Body:        resp.Body,
		ContentType: contentType,
		Name:        file.Name,
	}, nil
}

func (s *Source) service(ctx context.Context, session domain.Session) (*drive.Service, error) {
	opts := []option.ClientOption{
		option.WithHTTPClient(auth.HTTPClient(ctx, s.httpClient, session)),
	}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}

	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive client: %w", err)
	}
	return svc, nil
}

func (s *Source) transform(files []*drive.File) []domain.SourceItem {
	items := make([]domain.SourceItem, 0, len(files))

	for _, f := range files {
		item := domain.SourceItem{
			ID:       f.Id,
			Name:     f.Name,
			MimeType: f.MimeType,
			Size:     f.Size,
		}

		if f.CreatedTime != "" {
			createdAt, err := time.Parse(time.RFC3339, f.CreatedTime)
			if err != nil {
				s.logger.Warn("failed to parse created time",
					"file_id", f.Id,
					"created_time", f.CreatedTime,
				)
			} else {
				item.CreatedAt = createdAt.UTC()
			}
		}

		items = append(items, item)
	}

	return items
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
}

func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
