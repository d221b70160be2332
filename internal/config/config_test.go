package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
google:
  client_id: id
  client_secret: secret
  redirect_uri: https://publisher.example/api/google/callback
generator:
  api_key: key
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimal))

	require.NoError(t, err)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.False(t, cfg.RabbitMQ.Enabled)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "/", cfg.Server.DashboardURL)
	assert.Equal(t, DefaultScopes, cfg.Google.Scopes)
	assert.Equal(t, 50, cfg.Agent.ListLimit)
	assert.Equal(t, 10, cfg.Agent.RecentTitles)
	assert.Equal(t, 50, cfg.Agent.HistoryLimit)
	assert.Equal(t, time.Minute, cfg.Agent.RefreshSkew)
	assert.Equal(t, 30*time.Minute, cfg.Agent.LeaseTTL)
	assert.Equal(t, 10*time.Minute, cfg.Agent.ConsentTTL)
	assert.Equal(t, 20*time.Minute, cfg.Timeouts.Publish)
	assert.Equal(t, 0.4, cfg.Generator.Temperature)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_CLIENT_SECRET", "from-env")

	cfg, err := Parse([]byte(`
store: memory
google:
  client_id: id
  client_secret: ${TEST_CLIENT_SECRET}
  redirect_uri: http://localhost:8080/api/google/callback
generator:
  api_key: key
agent:
  poll_interval: 30s
`))

	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, "from-env", cfg.Google.ClientSecret)
	assert.Equal(t, 30*time.Second, cfg.Agent.PollInterval)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{name: "missing google", data: "generator:\n  api_key: key\n", want: "google.client_id is required"},
		{name: "bad store", data: minimal + "store: redis\n", want: "store must be"},
		{name: "bad redirect", data: "google:\n  client_id: id\n  client_secret: s\n  redirect_uri: localhost\ngenerator:\n  api_key: k\n", want: "redirect_uri"},
		{name: "titles over history", data: minimal + "agent:\n  recent_titles: 60\n", want: "recent_titles"},
		{name: "bad yaml", data: "store: [", want: "parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "id", cfg.Google.ClientID)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDatabaseConfig(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "pub", SSLMode: "disable"}

	assert.Equal(t, "host=db port=5433 user=u password=p dbname=pub sslmode=disable", db.DSN())
	assert.Equal(t, "postgres://u:p@db:5433/pub?sslmode=disable", db.URL())
}
