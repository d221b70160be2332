package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"daily_publisher/internal/config"
	"daily_publisher/internal/domain"
)

// Credentials owns the stored OAuth record. No other component reads or
// writes the credential key.
type Credentials struct {
	store   Store
	auth    Authorizer
	logger  *slog.Logger
	skew    time.Duration
	timeout time.Duration
	now     func() time.Time

	mu sync.Mutex
}

func NewCredentials(store Store, auth Authorizer, logger *slog.Logger, cfg config.AgentConfig, timeouts config.TimeoutConfig) *Credentials {
	return &Credentials{
		store:   store,
		auth:    auth,
		logger:  logger.With("component", "credentials"),
		skew:    cfg.RefreshSkew,
		timeout: timeouts.Auth,
		now:     time.Now,
	}
}

// StoreCredential persists record, replacing any previous one, and clears the
// reconnect-required marker.
func (c *Credentials) StoreCredential(ctx context.Context, record domain.CredentialRecord) error {
	if strings.TrimSpace(record.AccessToken) == "" {
		return fmt.Errorf("%w: access token is empty", domain.ErrUnauthorized)
	}
	if err := c.store.Set(ctx, keyCredential, record, 0); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	if _, err := c.store.Delete(ctx, keyReconnect); err != nil {
		return fmt.Errorf("clear reconnect marker: %w", err)
	}
	return nil
}

// GetCredential returns the stored record, or nil when no account is connected.
func (c *Credentials) GetCredential(ctx context.Context) (*domain.CredentialRecord, error) {
	var record domain.CredentialRecord
	found, err := c.store.Get(ctx, keyCredential, &record)
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &record, nil
}

// ReconnectRequired reports whether the last refresh was rejected upstream.
func (c *Credentials) ReconnectRequired(ctx context.Context) (bool, error) {
	var flagged bool
	found, err := c.store.Get(ctx, keyReconnect, &flagged)
	if err != nil {
		return false, fmt.Errorf("load reconnect marker: %w", err)
	}
	return found && flagged, nil
}

// GetAuthorizedContext returns a session for the connected account,
// refreshing the access token first when it is about to expire.
func (c *Credentials) GetAuthorizedContext(ctx context.Context) (domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	record, err := c.GetCredential(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	if record == nil {
		return domain.Session{}, domain.ErrNotConnected
	}
	if !record.ExpiresWithin(c.now(), c.skew) {
		return record.Session(), nil
	}

	c.logger.Debug("refreshing access token", "expiry", record.Expiry)

	if record.RefreshToken == "" {
		c.markReconnect(ctx)
		return domain.Session{}, fmt.Errorf("%w: no refresh token stored", domain.ErrRefreshFailed)
	}

	callCtx, cancel := bounded(ctx, c.timeout)
	defer cancel()

	refreshed, err := c.auth.Refresh(callCtx, record.RefreshToken)
	if err != nil {
		err = classify(err, domain.ErrUnauthorized)
		if errors.Is(err, domain.ErrRefreshFailed) {
			c.logger.Warn("refresh rejected, reconnect required", "error", err)
			c.markReconnect(ctx)
		}
		return domain.Session{}, err
	}

	merged := record.Merge(*refreshed)
	if err := c.store.Set(ctx, keyCredential, merged, 0); err != nil {
		return domain.Session{}, fmt.Errorf("store refreshed credential: %w", err)
	}

	c.logger.Info("access token refreshed", "expiry", merged.Expiry)
	return merged.Session(), nil
}

// Revoke invalidates both tokens upstream on a best-effort basis and deletes
// the stored record regardless of the outcome.
func (c *Credentials) Revoke(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	record, err := c.GetCredential(ctx)
	if err != nil {
		return err
	}
	if record == nil {
		return nil
	}

	for _, token := range []string{record.RefreshToken, record.AccessToken} {
		if token == "" {
			continue
		}
		callCtx, cancel := bounded(ctx, c.timeout)
		err := c.auth.Revoke(callCtx, token)
		cancel()
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrTokenInvalid):
			c.logger.Debug("token already invalid")
		default:
			c.logger.Warn("failed to revoke token", "error", err)
		}
	}

	if _, err := c.store.Delete(ctx, keyCredential); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	if _, err := c.store.Delete(ctx, keyReconnect); err != nil {
		return fmt.Errorf("clear reconnect marker: %w", err)
	}

	c.logger.Info("google account disconnected")
	return nil
}

// ExchangeAuthorizationCode trades a consent code for tokens and stores them.
func (c *Credentials) ExchangeAuthorizationCode(ctx context.Context, code string) (*domain.CredentialRecord, error) {
	callCtx, cancel := bounded(ctx, c.timeout)
	defer cancel()

	record, err := c.auth.Exchange(callCtx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", classify(err, domain.ErrUnauthorized))
	}
	if record.RefreshToken == "" {
		return nil, domain.ErrMissingRefreshToken
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.StoreCredential(ctx, *record); err != nil {
		return nil, err
	}

	c.logger.Info("google account connected", "scope", record.Scope)
	return record, nil
}

func (c *Credentials) markReconnect(ctx context.Context) {
	if err := c.store.Set(ctx, keyReconnect, true, 0); err != nil {
		c.logger.Error("failed to store reconnect marker", "error", err)
	}
}
