package httpapi

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

var errUnauthorizedTrigger = errors.New("missing or invalid cron secret")

// Logger logs each request's method, URI, status and duration.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info(
				"request",
				"method", r.Method,
				"uri", r.URL.RequestURI(),
				"addr", r.RemoteAddr,
				"status", rec.status,
				"duration", time.Since(start),
			)
		})
	}
}

// RequireBearer rejects requests whose Authorization header does not carry
// secret. An empty secret disables the check.
func RequireBearer(secret string, logger *slog.Logger, next http.HandlerFunc) http.HandlerFunc {
	if secret == "" {
		return next
	}
	want := []byte("Bearer " + secret)
	return func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			RespondError(w, logger, http.StatusUnauthorized, errUnauthorizedTrigger)
			return
		}
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
