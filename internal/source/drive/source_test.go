package drive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daily_publisher/internal/domain"
)

var session = domain.Session{AccessToken: "access-1", TokenType: "Bearer"}

func newTestSource(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(Config{Endpoint: srv.URL + "/drive/v3/", HTTPClient: srv.Client()}, logger)
}

func TestListPending(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drive/v3/files", r.URL.Path)
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))

		q := r.URL.Query()
		assert.Equal(t, `'folder\'s' in parents and trashed = false and mimeType contains 'video/'`, q.Get("q"))
		assert.Equal(t, "createdTime", q.Get("orderBy"))
		assert.Equal(t, "50", q.Get("pageSize"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"files":[
			{"id":"f1","name":"first.mp4","mimeType":"video/mp4","createdTime":"2024-01-01T10:00:00.000Z","size":"1024"},
			{"id":"f2","name":"second.mov","mimeType":"video/quicktime","createdTime":"not-a-date"}
		]}`))
	})

	items, err := src.ListPending(context.Background(), session, "folder's", 50)

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "f1", items[0].ID)
	assert.Equal(t, "first.mp4", items[0].Name)
	assert.Equal(t, int64(1024), items[0].Size)
	assert.True(t, items[0].CreatedAt.Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)))
	assert.True(t, items[1].CreatedAt.IsZero())
}

func TestListPending_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: domain.ErrUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, wantErr: domain.ErrUnauthorized},
		{name: "not found", status: http.StatusNotFound, wantErr: domain.ErrSourceUnavailable},
		{name: "server error", status: http.StatusInternalServerError, wantErr: domain.ErrSourceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"nope"}}`, tt.status)
			})

			_, err := src.ListPending(context.Background(), session, "folder", 50)

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestListPending_Timeout(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := src.ListPending(ctx, session, "folder", 50)

	assert.ErrorIs(t, err, domain.ErrTimeout)
}

func TestFetch(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drive/v3/files/f1", r.URL.Path)

		if r.URL.Query().Get("alt") != "media" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"f1","name":"day-one.mp4","mimeType":"video/mp4"}`))
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("video-bytes"))
	})

	content, err := src.Fetch(context.Background(), session, "f1")
	require.NoError(t, err)
	defer content.Body.Close()

	body, err := io.ReadAll(content.Body)
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(body))
	assert.Equal(t, "video/mp4", content.ContentType)
	assert.Equal(t, "day-one.mp4", content.Name)
}

func TestFetch_Unauthorized(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})

	_, err := src.Fetch(context.Background(), session, "f1")

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
