// Package httpapi exposes the trigger, configuration, status and consent
// endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"daily_publisher/internal/domain"
)

const historyLimit = 50

// Agent is the orchestrator surface the handlers drive.
type Agent interface {
	RunOnce(ctx context.Context, trigger domain.Trigger) (*domain.RunResult, error)
	RunScheduled(ctx context.Context) (*domain.RunResult, error)
	GetConfig(ctx context.Context) (domain.AgentConfig, error)
	UpdateConfig(ctx context.Context, cfg domain.AgentConfig) (domain.AgentConfig, *time.Time, error)
	GetStatus(ctx context.Context) (*domain.Status, error)
	History(ctx context.Context, n int) ([]domain.UploadRecord, error)
}

type Consent interface {
	Begin(ctx context.Context) (string, error)
	Complete(ctx context.Context, code, state, upstreamErr string) error
}

type Disconnector interface {
	Revoke(ctx context.Context) error
}

type Handler struct {
	agent        Agent
	consent      Consent
	disconnector Disconnector
	cronSecret   string
	dashboardURL string
	logger       *slog.Logger
}

func NewHandler(
	agent Agent,
	consent Consent,
	disconnector Disconnector,
	cronSecret string,
	dashboardURL string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		agent:        agent,
		consent:      consent,
		disconnector: disconnector,
		cronSecret:   cronSecret,
		dashboardURL: dashboardURL,
		logger:       logger.With("handler", "api"),
	}
}

// Mux registers every endpoint plus the health check and wraps it with logging.
func (h *Handler) Mux() http.Handler {
	cron := RequireBearer(h.cronSecret, h.logger, h.CronPublish)

	mux := http.NewServeMux()
	for pattern, handler := range map[string]http.HandlerFunc{
		"POST /api/cron/publish":      cron,
		"GET /api/cron/publish":       cron,
		"POST /api/run":               h.Run,
		"GET /api/config":             h.GetConfig,
		"POST /api/config":            h.UpdateConfig,
		"GET /api/status":             h.Status,
		"GET /api/history":            h.History,
		"GET /api/google/auth":        h.Authorize,
		"GET /api/google/callback":    h.Callback,
		"POST /api/google/disconnect": h.Disconnect,
	} {
		mux.HandleFunc(pattern, handler)
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return Logger(h.logger)(mux)
}

// CronPublish always answers 200 so the external scheduler does not retry;
// the outcome is in the body.
func (h *Handler) CronPublish(w http.ResponseWriter, r *http.Request) {
	result, _ := h.agent.RunScheduled(r.Context())
	RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	result, err := h.agent.RunOnce(r.Context(), domain.TriggerManual)
	switch {
	case err == nil:
		RespondJSON(w, http.StatusOK, result)
	case errors.Is(err, domain.ErrRunInProgress):
		RespondJSON(w, http.StatusConflict, result)
	default:
		RespondJSON(w, http.StatusBadRequest, result)
	}
}

func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.agent.GetConfig(r.Context())
	if err != nil {
		RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	RespondJSON(w, http.StatusOK, cfg)
}

type configResponse struct {
	Config  domain.AgentConfig `json:"config"`
	NextRun *time.Time         `json:"nextRunISO"`
}

// UpdateConfig applies the request body on top of the stored configuration,
// so omitted fields keep their current values.
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.agent.GetConfig(r.Context())
	if err != nil {
		RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		if !errors.Is(err, domain.ErrInvalidConfig) {
			err = fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
		}
		RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	stored, next, err := h.agent.UpdateConfig(r.Context(), cfg)
	if err != nil {
		RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	RespondJSON(w, http.StatusOK, configResponse{Config: stored, NextRun: next})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.agent.GetStatus(r.Context())
	if err != nil {
		RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	RespondJSON(w, http.StatusOK, status)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	records, err := h.agent.History(r.Context(), historyLimit)
	if err != nil {
		RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	RespondJSON(w, http.StatusOK, records)
}

func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	authURL, err := h.consent.Begin(r.Context())
	if err != nil {
		RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback completes consent and sends the browser back to the dashboard with
// connected=1, or connected=0 and an error code.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	upstreamErr := q.Get("error")

	err := h.consent.Complete(r.Context(), q.Get("code"), q.Get("state"), upstreamErr)
	if err == nil {
		http.Redirect(w, r, h.dashboard(url.Values{"connected": {"1"}}), http.StatusFound)
		return
	}

	code := domain.ReasonOf(err)
	if errors.Is(err, domain.ErrConsentDenied) {
		code = upstreamErr
	}
	h.logger.Warn("google consent failed", "error", err)
	http.Redirect(w, r, h.dashboard(url.Values{"connected": {"0"}, "error": {code}}), http.StatusFound)
}

func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.disconnector.Revoke(r.Context()); err != nil {
		RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]bool{"disconnected": true})
}

func (h *Handler) dashboard(params url.Values) string {
	u, err := url.Parse(h.dashboardURL)
	if err != nil {
		u = &url.URL{Path: "/"}
	}
	q := u.Query()
	for k, v := range params {
		q[k] = v
	}
	u.RawQuery = q.Encode()
	return u.String()
}
