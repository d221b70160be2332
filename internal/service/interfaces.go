package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"daily_publisher/internal/domain"
)

// Source lists and streams videos from the configured folder.
type Source interface {
	ListPending(ctx context.Context, session domain.Session, folderID string, limit int) ([]domain.SourceItem, error)
	Fetch(ctx context.Context, session domain.Session, itemID string) (*domain.SourceContent, error)
}

type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (*domain.Metadata, error)
}

type Publisher interface {
	Publish(ctx context.Context, session domain.Session, req domain.PublishRequest) (string, error)
}

// Authorizer is the upstream OAuth authorization service.
type Authorizer interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*domain.CredentialRecord, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.CredentialRecord, error)
	Revoke(ctx context.Context, token string) error
}

// IdentityResolver looks up the connected account's email address.
type IdentityResolver interface {
	Email(ctx context.Context, session domain.Session) (string, error)
}

type EventPublisher interface {
	PublishRun(ctx context.Context, event domain.RunEvent) error
}
