// Package auth adapts Google's OAuth endpoints to the agent's credential model.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"daily_publisher/internal/config"
	"daily_publisher/internal/domain"
)

type Google struct {
	oauth            *oauth2.Config
	httpClient       *http.Client
	revokeURL        string
	userinfoEndpoint string
	logger           *slog.Logger
}

func NewGoogle(cfg config.GoogleConfig, httpClient *http.Client, logger *slog.Logger) *Google {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Google{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint:     google.Endpoint,
		},
		httpClient:       httpClient,
		revokeURL:        cfg.RevokeURL,
		userinfoEndpoint: cfg.UserinfoEndpoint,
		logger:           logger.With("component", "google_auth"),
	}
}

// AuthCodeURL requests offline access and forces the consent screen so a
// refresh token is always issued.
func (g *Google) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (g *Google) Exchange(ctx context.Context, code string) (*domain.CredentialRecord, error) {
	tok, err := g.oauth.Exchange(g.clientContext(ctx), code)
	if err != nil {
		return nil, g.classify(err, domain.ErrUnauthorized)
	}
	return recordFromToken(tok), nil
}

func (g *Google) Refresh(ctx context.Context, refreshToken string) (*domain.CredentialRecord, error) {
	src := g.oauth.TokenSource(g.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, g.classify(err, domain.ErrRefreshFailed)
	}
	return recordFromToken(tok), nil
}

// Revoke invalidates token upstream. A token Google no longer knows about is
// reported as domain.ErrTokenInvalid.
func (g *Google) Revoke(ctx context.Context, token string) error {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: revoke: %w", domain.ErrTimeout, ctx.Err())
		}
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(data, &body)

	if resp.StatusCode == http.StatusBadRequest && body.Error == "invalid_token" {
		return domain.ErrTokenInvalid
	}
	return fmt.Errorf("unexpected status: %d", resp.StatusCode)
}

// Email resolves the address of the account session belongs to.
func (g *Google) Email(ctx context.Context, session domain.Session) (string, error) {
	opts := []option.ClientOption{option.WithHTTPClient(HTTPClient(ctx, g.httpClient, session))}
	if g.userinfoEndpoint != "" {
		opts = append(opts, option.WithEndpoint(g.userinfoEndpoint))
	}

	svc, err := googleoauth.NewService(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("create userinfo client: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get userinfo: %w", err)
	}
	return info.Email, nil
}

// HTTPClient returns a client that authorizes every request with session.
// Requests are sent through base when it is not nil.
func HTTPClient(ctx context.Context, base *http.Client, session domain.Session) *http.Client {
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: session.AccessToken,
		TokenType:   session.TokenType,
		Expiry:      session.Expiry,
	}))
}

func (g *Google) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
}

// classify maps token endpoint failures. An explicit rejection from the token
// endpoint becomes rejected; transport failures stay ErrUnauthorized.
func (g *Google) classify(err error, rejected error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		g.logger.Debug("token endpoint rejected request",
			"status", status,
			"error_code", retrieveErr.ErrorCode,
		)
		if status >= 400 && status < 500 {
			return fmt.Errorf("%w: %s", rejected, describe(retrieveErr))
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
}

func describe(err *oauth2.RetrieveError) string {
	if err.ErrorCode == "" {
		return err.Error()
	}
	if err.ErrorDescription == "" {
		return err.ErrorCode
	}
	return err.ErrorCode + ": " + err.ErrorDescription
}

func recordFromToken(tok *oauth2.Token) *domain.CredentialRecord {
	record := &domain.CredentialRecord{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry.UTC(),
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		record.Scope = scope
	}
	return record
}
