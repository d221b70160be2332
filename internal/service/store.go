package service

import (
	"context"
	"time"
)

// Store is the durable key-value state shared by every component. Keys are
// updated independently; there are no cross-key transactions.
type Store interface {
	// Get decodes the JSON value at key into dst. It reports false when the
	// key is absent or expired.
	Get(ctx context.Context, key string, dst any) (bool, error)
	// Set stores value as JSON. A zero ttl never expires.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// SetNX stores value only when key is absent or expired.
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	// Delete removes key and reports whether a live value was removed.
	Delete(ctx context.Context, key string) (bool, error)
	// CompareAndDelete removes key only when its value equals value.
	CompareAndDelete(ctx context.Context, key string, value any) (bool, error)
	// Push prepends value to the list at key and trims it to max entries.
	Push(ctx context.Context, key string, value string, max int) error
	// Range returns up to n entries of the list at key, newest first.
	Range(ctx context.Context, key string, n int) ([]string, error)
}

const (
	keyConfig        = "agent:config"
	keySchedule      = "agent:schedule"
	keyCredential    = "agent:google:tokens"
	keyReconnect     = "agent:google:reconnect"
	keyLastUpload    = "agent:last-upload"
	keyUploadHistory = "agent:upload-history"
	keyRunLease      = "agent:run-lease"

	keyUploadedPrefix  = "agent:uploaded:"
	keyProcessedPrefix = "agent:processed:"
	keyConsentPrefix   = "agent:oauth-state:"
)
