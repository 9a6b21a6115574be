package telemetry

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/thisdougb/telemetry/internal/config"
	"github.com/thisdougb/telemetry/internal/core"
	"github.com/thisdougb/telemetry/internal/diag"
	"github.com/thisdougb/telemetry/internal/handlers"
	"github.com/thisdougb/telemetry/internal/ping"
	"github.com/thisdougb/telemetry/internal/worker"
)

// ErrInvalidState is wrapped by every Initialize failure.
var ErrInvalidState = core.ErrInvalidState

// ErrAlreadyInitialized is returned by a second Initialize.
var ErrAlreadyInitialized = core.ErrAlreadyInitialized

// ClientInfo is what the application reports about itself in every ping.
type ClientInfo struct {
	AppBuild          string `yaml:"app_build"`
	AppDisplayVersion string `yaml:"app_display_version"`
	Channel           string `yaml:"channel"`
	Locale            string `yaml:"locale"`
}

// Configuration is passed to Initialize. An empty DataPath keeps everything
// in memory.
type Configuration struct {
	DataPath       string     `yaml:"data_path"`
	ApplicationID  string     `yaml:"application_id"`
	ServerEndpoint string     `yaml:"server_endpoint"`
	UploadEnabled  bool       `yaml:"upload_enabled"`
	ClientInfo     ClientInfo `yaml:"client_info"`

	// Uploader replaces the default HTTP transport.
	Uploader Uploader `yaml:"-"`

	// spawner creates the background workers; tests swap it.
	spawner worker.Spawner
}

// LoadConfiguration reads a Configuration from a YAML file. Upload is
// enabled unless the file says otherwise.
func LoadConfiguration(path string) (Configuration, error) {
	cfg := Configuration{UploadEnabled: true}

	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return cfg, nil
}

// Client is a telemetry context. Metrics and pings are declared against it
// and may be used straight away; what they record is buffered until
// Initialize succeeds.
type Client struct {
	core *core.Client
}

type options struct {
	maxPreInitTasks int
}

// Option customizes a new Client.
type Option func(*options)

// WithMaxPreInitTasks bounds how many operations are buffered before
// Initialize. Operations past the limit are dropped and counted.
func WithMaxPreInitTasks(n int) Option {
	return func(o *options) {
		o.maxPreInitTasks = n
	}
}

// New creates a client that buffers operations until it is initialized.
func New(opts ...Option) *Client {
	o := options{maxPreInitTasks: config.IntValue("TELEMETRY_MAX_PREINIT_TASKS")}
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{core: core.New(o.maxPreInitTasks)}
}

// Initialize opens the store and starts the background workers. It may only
// succeed once; failures wrap ErrInvalidState and leave buffered operations
// unexecuted.
func (c *Client) Initialize(cfg Configuration) error {
	return c.core.Initialize(core.Config{
		DataPath:       cfg.DataPath,
		ApplicationID:  cfg.ApplicationID,
		ServerEndpoint: cfg.ServerEndpoint,
		UploadEnabled:  cfg.UploadEnabled,
		Uploader:       cfg.Uploader,
		App: ping.AppInfo{
			AppBuild:          cfg.ClientInfo.AppBuild,
			AppDisplayVersion: cfg.ClientInfo.AppDisplayVersion,
			Channel:           cfg.ClientInfo.Channel,
			Locale:            cfg.ClientInfo.Locale,
		},
		Spawner: cfg.spawner,
	})
}

// SetUploadEnabled turns collection and upload on or off. Turning it off
// deletes all stored metrics, pending pings and the client id.
func (c *Client) SetUploadEnabled(enabled bool) {
	c.core.SetUploadEnabled(enabled)
}

// Shutdown waits up to timeout for queued operations, then stops the
// workers and closes the store. A zero timeout uses
// TELEMETRY_SHUTDOWN_TIMEOUT_MS.
func (c *Client) Shutdown(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = config.MillisValue("TELEMETRY_SHUTDOWN_TIMEOUT_MS")
	}
	return c.core.Shutdown(timeout)
}

// SetLogger replaces the library logger. A nil logger silences it.
func SetLogger(l *zap.Logger) {
	config.SetLogger(l)
}

// StatusHandler returns a simple UP/DOWN status endpoint
func (c *Client) StatusHandler() http.HandlerFunc {
	return handlers.StatusHandler(c.core)
}

// HealthHandler serves the client status as JSON
func (c *Client) HealthHandler() http.HandlerFunc {
	return handlers.HealthHandler(c.core)
}

// PendingUploadsHandler lists pings waiting for delivery
func (c *Client) PendingUploadsHandler() http.HandlerFunc {
	return handlers.PendingUploadsHandler(c.core)
}

// MetricsHandler serves the stored metrics of the ping named by ?ping=
func (c *Client) MetricsHandler() http.HandlerFunc {
	return handlers.MetricsHandler(c.core)
}

// DiagnosticsHandler serves the library's own counters in Prometheus format.
func DiagnosticsHandler() http.Handler {
	return promhttp.HandlerFor(diag.Registry, promhttp.HandlerOpts{})
}
