package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"daily_publisher/internal/domain"
)

// Consent drives the browser OAuth round trip: it issues single-use state
// values and completes the callback.
type Consent struct {
	store  Store
	auth   Authorizer
	creds  *Credentials
	ttl    time.Duration
	logger *slog.Logger
}

func NewConsent(store Store, auth Authorizer, creds *Credentials, ttl time.Duration, logger *slog.Logger) *Consent {
	return &Consent{
		store:  store,
		auth:   auth,
		creds:  creds,
		ttl:    ttl,
		logger: logger.With("component", "consent"),
	}
}

// Begin returns the upstream consent URL for a freshly stored state value.
func (c *Consent) Begin(ctx context.Context) (string, error) {
	state := uuid.NewString()
	if err := c.store.Set(ctx, keyConsentPrefix+state, time.Now().UTC(), c.ttl); err != nil {
		return "", fmt.Errorf("store consent state: %w", err)
	}
	return c.auth.AuthCodeURL(state), nil
}

// Complete validates state, exchanges code and stores the resulting
// credential. upstreamErr is the error parameter the provider redirected with.
func (c *Consent) Complete(ctx context.Context, code, state, upstreamErr string) error {
	if upstreamErr != "" {
		return fmt.Errorf("%w: %s", domain.ErrConsentDenied, upstreamErr)
	}
	if strings.TrimSpace(code) == "" {
		return domain.ErrMissingCode
	}
	if strings.TrimSpace(state) == "" {
		return domain.ErrInvalidState
	}

	found, err := c.store.Delete(ctx, keyConsentPrefix+state)
	if err != nil {
		return fmt.Errorf("consume consent state: %w", err)
	}
	if !found {
		return domain.ErrInvalidState
	}

	if _, err := c.creds.ExchangeAuthorizationCode(ctx, code); err != nil {
		c.logger.Warn("consent exchange failed", "error", err)
		return err
	}
	return nil
}
