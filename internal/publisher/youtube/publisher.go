// Package youtube uploads videos through the YouTube Data API.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	youtube "google.golang.org/api/youtube/v3"

	"daily_publisher/internal/auth"
	"daily_publisher/internal/domain"
)

type Config struct {
	// Endpoint overrides the YouTube API base URL.
	Endpoint   string
	HTTPClient *http.Client
}

type Publisher struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Publisher {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Publisher{
		endpoint:   cfg.Endpoint,
		httpClient: httpClient,
		logger:     logger.With("publisher", "youtube"),
	}
}

// Publish uploads req.Body as a new video and returns its id. Every video is
// declared as not made for kids.
func (p *Publisher) Publish(ctx context.Context, session domain.Session, req domain.PublishRequest) (string, error) {
	opts := []option.ClientOption{
		option.WithHTTPClient(auth.HTTPClient(ctx, p.httpClient, session)),
	}
	if p.endpoint != "" {
		opts = append(opts, option.WithEndpoint(p.endpoint))
	}

	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("create youtube client: %w", err)
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       req.Title,
			Description: req.Description,
			Tags:        req.Tags,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           string(req.Visibility),
			SelfDeclaredMadeForKids: false,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}

	resp, err := svc.Videos.Insert([]string{"snippet", "status"}, video).
		NotifySubscribers(req.NotifySubscribers).
		Media(req.Body).
		Context(ctx).
		Do()
	if err != nil {
		return "", classify(ctx, err)
	}

	p.logger.Info("video uploaded",
		"video_id", resp.Id,
		"privacy_status", req.Visibility,
	)
	return resp.Id, nil
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: status %d: %s", domain.ErrPublishFailed, apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("%w: %w", domain.ErrPublishFailed, err)
}
