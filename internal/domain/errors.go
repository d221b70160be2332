package domain

import "errors"

// Run failure kinds. Every failure is terminal for a single run; the next
// trigger is the retry.
var (
	ErrNotConfigured     = errors.New("drive folder is not configured")
	ErrNotConnected      = errors.New("google account is not connected")
	ErrRefreshFailed     = errors.New("access token refresh rejected, reconnect required")
	ErrUnauthorized      = errors.New("upstream rejected credentials")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrNoPendingItems    = errors.New("no videos available in the configured drive folder")
	ErrInvalidSourceItem = errors.New("video file is missing an id")
	ErrGenerationFailed  = errors.New("metadata generation failed")
	ErrPublishFailed     = errors.New("publish failed")
	ErrRunInProgress     = errors.New("a run is already in progress")
	ErrTimeout           = errors.New("external call timed out")
)

// Credential and configuration errors.
var (
	ErrMissingRefreshToken = errors.New("google did not return a refresh token, consent must be granted again")
	ErrTokenInvalid        = errors.New("token already invalid")
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrInvalidState        = errors.New("invalid or expired consent state")
	ErrMissingCode         = errors.New("authorization code missing")
	ErrConsentDenied       = errors.New("consent denied")
)

var reasons = []struct {
	err    error
	reason string
}{
	{ErrTimeout, "timeout"},
	{ErrRunInProgress, "run_in_progress"},
	{ErrNotConfigured, "not_configured"},
	{ErrNotConnected, "not_connected"},
	{ErrRefreshFailed, "refresh_failed"},
	{ErrUnauthorized, "unauthorized"},
	{ErrSourceUnavailable, "source_unavailable"},
	{ErrNoPendingItems, "no_pending_items"},
	{ErrInvalidSourceItem, "invalid_source_item"},
	{ErrGenerationFailed, "generation_failed"},
	{ErrPublishFailed, "publish_failed"},
	{ErrMissingRefreshToken, "missing_refresh_token"},
	{ErrInvalidConfig, "invalid_config"},
	{ErrInvalidState, "invalid_state"},
	{ErrMissingCode, "missing_code"},
	{ErrConsentDenied, "consent_denied"},
}

// ReasonOf returns the machine-readable reason code for err.
func ReasonOf(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return "internal"
}

// Classified reports whether err already carries one of the known kinds.
func Classified(err error) bool {
	return ReasonOf(err) != "internal"
}
