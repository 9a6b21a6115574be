package telemetry

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfiguration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.yaml")
	content := `
data_path: /var/lib/app/telemetry.db
application_id: my-app
server_endpoint: https://incoming.example.com
client_info:
  app_build: "20260101"
  app_display_version: 3.1.0
  channel: beta
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfiguration(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/app/telemetry.db", cfg.DataPath)
	assert.Equal(t, "my-app", cfg.ApplicationID)
	assert.Equal(t, "https://incoming.example.com", cfg.ServerEndpoint)
	assert.True(t, cfg.UploadEnabled)
	assert.Equal(t, ClientInfo{AppBuild: "20260101", AppDisplayVersion: "3.1.0", Channel: "beta"}, cfg.ClientInfo)
}

func TestLoadConfigurationErrors(t *testing.T) {
	_, err := LoadConfiguration(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "telemetry.yaml")
	require.NoError(t, os.WriteFile(path, []byte("application_id: x\nunknown_key: 1\n"), 0o600))
	_, err = LoadConfiguration(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("upload_enabled: false\n"), 0o600))
	cfg, err := LoadConfiguration(path)
	require.NoError(t, err)
	assert.False(t, cfg.UploadEnabled)
}

func TestInitializeTwice(t *testing.T) {
	c := New()
	defer c.Shutdown(time.Second)
	require.NoError(t, c.Initialize(testConfiguration("", &capture{})))
	assert.ErrorIs(t, c.Initialize(testConfiguration("", &capture{})), ErrAlreadyInitialized)
}

func TestInitializeRequiresApplicationID(t *testing.T) {
	c := New()
	defer c.Shutdown(time.Second)
	cfg := testConfiguration("", &capture{})
	cfg.ApplicationID = ""
	assert.ErrorIs(t, c.Initialize(cfg), ErrInvalidState)
}

func TestStatusHandler(t *testing.T) {
	c := New()
	handler := c.StatusHandler()

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.NoError(t, c.Initialize(testConfiguration("", &capture{})))
	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "UP\n", rec.Body.String())

	require.NoError(t, c.Shutdown(time.Second))
	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsHandler(t *testing.T) {
	c := New()
	defer c.Shutdown(time.Second)
	require.NoError(t, c.Initialize(testConfiguration("", &capture{})))

	NewQuantityMetric(c, CommonMetricData{Category: "disk", Name: "free"}).Set(512)
	idle(t, c)

	rec := httptest.NewRecorder()
	c.MetricsHandler()(rec, httptest.NewRequest(http.MethodGet, "/metrics?ping=metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stored []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	require.Len(t, stored, 1)
	assert.Equal(t, "disk.free", stored[0]["identifier"])
	assert.Equal(t, "quantity", stored[0]["type"])
	assert.Equal(t, float64(512), stored[0]["value"])
}

func TestDiagnosticsHandler(t *testing.T) {
	c := New()
	require.NoError(t, c.Initialize(testConfiguration("", &capture{})))
	NewPingType(c, "custom", PingOptions{}).Submit("")
	idle(t, c)
	require.NoError(t, c.Shutdown(time.Second))

	srv := httptest.NewServer(DiagnosticsHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `telemetry_pings_skipped_total{ping="custom",reason="empty"}`)
}
