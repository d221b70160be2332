package youtube

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daily_publisher/internal/domain"
)

var session = domain.Session{AccessToken: "access-1", TokenType: "Bearer"}

func newTestPublisher(t *testing.T, handler http.HandlerFunc) *Publisher {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(Config{Endpoint: srv.URL + "/youtube/v3/", HTTPClient: srv.Client()}, logger)
}

func TestPublish(t *testing.T) {
	pub := newTestPublisher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/videos"), r.URL.Path)
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))

		q := r.URL.Query()
		assert.Equal(t, []string{"snippet", "status"}, q["part"])
		assert.Equal(t, "true", q.Get("notifySubscribers"))
		assert.Equal(t, "multipart", q.Get("uploadType"))

		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(mediaType, "multipart/"))

		reader := multipart.NewReader(r.Body, params["boundary"])

		part, err := reader.NextPart()
		require.NoError(t, err)
		var video struct {
			Snippet struct {
				Title       string   `json:"title"`
				Description string   `json:"description"`
				Tags        []string `json:"tags"`
			} `json:"snippet"`
			Status map[string]any `json:"status"`
		}
		require.NoError(t, json.NewDecoder(part).Decode(&video))
		assert.Equal(t, "Day one", video.Snippet.Title)
		assert.Equal(t, "desc", video.Snippet.Description)
		assert.Equal(t, []string{"daily", "vlog"}, video.Snippet.Tags)
		assert.Equal(t, "unlisted", video.Status["privacyStatus"])
		assert.Equal(t, false, video.Status["selfDeclaredMadeForKids"])

		part, err = reader.NextPart()
		require.NoError(t, err)
		media, err := io.ReadAll(part)
		require.NoError(t, err)
		assert.Equal(t, "video-bytes", string(media))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"yt-1","kind":"youtube#video"}`))
	})

	id, err := pub.Publish(context.Background(), session, domain.PublishRequest{
		Body:              strings.NewReader("video-bytes"),
		Title:             "Day one",
		Description:       "desc",
		Tags:              []string{"daily", "vlog"},
		Visibility:        domain.VisibilityUnlisted,
		NotifySubscribers: true,
	})

	require.NoError(t, err)
	assert.Equal(t, "yt-1", id)
}

func TestPublish_Rejected(t *testing.T) {
	pub := newTestPublisher(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"quotaExceeded"}}`))
	})

	_, err := pub.Publish(context.Background(), session, domain.PublishRequest{
		Body:       strings.NewReader("video-bytes"),
		Title:      "t",
		Visibility: domain.VisibilityPrivate,
	})

	assert.ErrorIs(t, err, domain.ErrPublishFailed)
	assert.Contains(t, err.Error(), "quotaExceeded")
}

func TestPublish_EmptyID(t *testing.T) {
	pub := newTestPublisher(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})

	id, err := pub.Publish(context.Background(), session, domain.PublishRequest{
		Body:       strings.NewReader("x"),
		Visibility: domain.VisibilityPrivate,
	})

	require.NoError(t, err)
	assert.Empty(t, id)
}
