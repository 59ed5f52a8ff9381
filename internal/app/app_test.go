// Package app_test contains unit tests for the app package.
package app_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/loc-announcer/internal/app"
	"github.com/JakeFAU/loc-announcer/internal/config"
	"github.com/JakeFAU/loc-announcer/internal/storage/local"
	"github.com/JakeFAU/loc-announcer/internal/storage/memory"
)

const feed = `{"items":[{
	"eventId":"X",
	"eventName":"Cafe",
	"startDateTime":"2022-01-05T01:50:00.000Z",
	"endDateTime":"2022-01-05T03:00:00.000Z",
	"publicAdvice":"Self-monitor.",
	"publishedAt":"2022-01-11T05:00:00.000Z",
	"exposureType":"Casual",
	"location":{"city":"Wellington","address":"1 Lambton Quay"}
}]}`

type upstream struct {
	mu       sync.Mutex
	webhooks []map[string]string
	pings    int
}

func newUpstream(t *testing.T) (*upstream, *httptest.Server) {
	t.Helper()
	u := &upstream{}
	mux := http.NewServeMux()
	mux.HandleFunc("/locations", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, feed)
	})
	mux.HandleFunc("/webhook", func(w http.ResponseWriter, r *http.Request) {
		var msg map[string]string
		_ = json.NewDecoder(r.Body).Decode(&msg)
		u.mu.Lock()
		u.webhooks = append(u.webhooks, msg)
		u.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		u.mu.Lock()
		u.pings++
		u.mu.Unlock()
		_, _ = io.WriteString(w, "pong")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return u, srv
}

func testConfig(baseURL string) config.Config {
	return config.Config{
		HTTP:     config.HTTPConfig{UserAgent: "test"},
		Source:   config.SourceConfig{URL: baseURL + "/locations"},
		Storage:  config.StorageConfig{Provider: config.StorageMemory, Object: "locs.json"},
		Detector: config.DetectorConfig{Cities: []string{"Wellington"}},
		Announce: config.AnnounceConfig{Timezone: "Pacific/Auckland"},
		Webhook: config.WebhookConfig{
			URL:                 baseURL + "/webhook",
			Username:            "bot",
			AvatarURL:           "https://example.com/a.jpg",
			MaxChars:            1800,
			MaxRateLimitRetries: 2,
		},
		Heartbeat: config.HeartbeatConfig{URL: baseURL + "/ping", Method: http.MethodPost},
		Schedule:  config.ScheduleConfig{Cron: "*/10 * * * *"},
		Server:    config.ServerConfig{Port: 8080},
	}
}

func TestNew_MemoryProviderRunsEndToEnd(t *testing.T) {
	t.Parallel()

	up, srv := newUpstream(t)
	a, err := app.New(context.Background(), testConfig(srv.URL), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &memory.BlobStore{}, a.GetStorage())
	assert.NotNil(t, a.GetLogger())

	res, err := a.GetRunner().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, `"OK"`, res.Body)

	raw, err := a.GetStorage().GetObject(context.Background(), "locs.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"X":"2022-01-11T05:00:00.000Z"}`, string(raw))

	up.mu.Lock()
	defer up.mu.Unlock()
	require.Len(t, up.webhooks, 1)
	assert.Equal(t, "bot", up.webhooks[0]["username"])
	assert.Contains(t, up.webhooks[0]["content"], "**NEW LOCATION:**")
	assert.Equal(t, 1, up.pings)
}

func TestNew_LocalProvider(t *testing.T) {
	t.Parallel()

	_, srv := newUpstream(t)
	cfg := testConfig(srv.URL)
	cfg.Storage.Provider = config.StorageLocal
	cfg.Storage.Local.BaseDir = t.TempDir()
	cfg.Heartbeat.URL = ""

	a, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()
	assert.IsType(t, &local.BlobStore{}, a.GetStorage())
	assert.Equal(t, cfg, a.GetConfig())
}

func TestNew_DevelopmentExportsSpans(t *testing.T) {
	t.Parallel()

	_, srv := newUpstream(t)
	cfg := testConfig(srv.URL)
	cfg.Logging.Development = true
	require.Equal(t, config.TracingStdout, cfg.TraceExporter())

	a, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	a.Close()
}

func TestNew_ConfigErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		mutate        func(*config.Config)
		expectedError string
	}{
		{
			name: "GCS storage missing bucket",
			mutate: func(c *config.Config) {
				c.Storage.Provider = config.StorageGCS
			},
			expectedError: "storage provider is 'gcs' but storage.gcs.bucket is not set",
		},
		{
			name: "Unknown storage provider",
			mutate: func(c *config.Config) {
				c.Storage.Provider = "unknown"
			},
			expectedError: "unknown storage provider: unknown",
		},
		{
			name: "Missing webhook",
			mutate: func(c *config.Config) {
				c.Webhook.URL = ""
			},
			expectedError: "init webhook",
		},
		{
			name: "Unknown trace exporter",
			mutate: func(c *config.Config) {
				c.Tracing.Exporter = "jaeger"
			},
			expectedError: "failed to initialize tracing",
		},
		{
			name: "Bad timezone",
			mutate: func(c *config.Config) {
				c.Announce.Timezone = "Mars/Olympus_Mons"
			},
			expectedError: "init formatter",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig("http://127.0.0.1:1")
			tc.mutate(&cfg)
			_, err := app.New(context.Background(), cfg, zap.NewNop())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.expectedError)
		})
	}
}
