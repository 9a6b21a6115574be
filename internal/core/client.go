// Package core owns the lifecycle of a telemetry client: the dispatcher, the
// metric store and the upload manager.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/thisdougb/telemetry/internal/config"
	"github.com/thisdougb/telemetry/internal/diag"
	"github.com/thisdougb/telemetry/internal/dispatcher"
	"github.com/thisdougb/telemetry/internal/errorrec"
	"github.com/thisdougb/telemetry/internal/metrics"
	"github.com/thisdougb/telemetry/internal/ping"
	"github.com/thisdougb/telemetry/internal/storage"
	"github.com/thisdougb/telemetry/internal/upload"
	"github.com/thisdougb/telemetry/internal/worker"
)

var (
	// ErrInvalidState is wrapped by every initialization failure.
	ErrInvalidState       = errors.New("telemetry: invalid state")
	ErrAlreadyInitialized = errors.New("telemetry: already initialized")
	ErrNotInitialized     = errors.New("telemetry: not initialized")
)

// Task is a unit of work run on the dispatcher worker.
type Task = dispatcher.Task[*Instance]

// Config is everything Initialize needs.
type Config struct {
	DataPath       string
	ApplicationID  string
	ServerEndpoint string
	UploadEnabled  bool
	Uploader       upload.Uploader
	App            ping.AppInfo
	Policy         upload.Policy
	Spawner        worker.Spawner
}

// Status is a point-in-time view of a client, for diagnostics.
type Status struct {
	State         string `json:"state"`
	Initialized   bool   `json:"initialized"`
	UploadEnabled bool   `json:"upload_enabled"`
	Persistent    bool   `json:"persistent"`
	PendingTasks  int    `json:"pending_tasks"`
	Overflowed    int    `json:"overflowed_tasks"`
}

// Client is an explicitly constructed telemetry context. Tasks may be
// enqueued as soon as it exists; they run once Initialize succeeds.
type Client struct {
	mu          sync.Mutex
	queue       *dispatcher.Queue[*Instance]
	instance    *Instance
	initialized bool
	shutdown    bool
}

// New returns a client buffering up to maxPreInit tasks until it is initialized.
func New(maxPreInit int) *Client {
	return &Client{queue: dispatcher.New[*Instance](maxPreInit)}
}

// Enqueue schedules a task without blocking. Tasks dropped by a full buffer
// or a stopped queue are counted, never reported to the caller.
func (c *Client) Enqueue(task Task) {
	err := c.queue.Enqueue(task)
	if errors.Is(err, dispatcher.ErrShutdown) {
		config.LogDebug(context.Background(), "task rejected after shutdown", zap.String("op", task.Op()))
	}
}

// Initialize opens the store, starts the upload worker and then the
// dispatcher, which runs the buffered tasks in order. On any failure
// everything started so far is torn down, the buffered tasks stay queued and
// the error wraps ErrInvalidState.
func (c *Client) Initialize(cfg Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shutdown {
		return fmt.Errorf("%w: client was shut down", ErrInvalidState)
	}
	if c.initialized {
		return ErrAlreadyInitialized
	}
	if cfg.ApplicationID == "" {
		return fmt.Errorf("%w: application id is required", ErrInvalidState)
	}
	if cfg.ServerEndpoint == "" {
		return fmt.Errorf("%w: server endpoint is required", ErrInvalidState)
	}

	ctx := config.SetContextCorrelationId(context.Background(), "init-"+cfg.ApplicationID)

	spawner := cfg.Spawner
	if spawner == nil {
		spawner = worker.GoSpawner{}
	}
	policy := cfg.Policy
	if policy == (upload.Policy{}) {
		policy = upload.DefaultPolicy()
	}
	uploader := cfg.Uploader
	if uploader == nil {
		uploader = upload.NewHTTPUploader(config.MillisValue("TELEMETRY_UPLOAD_TIMEOUT_MS"))
	}

	storeCfg := storage.LoadConfig(cfg.DataPath)
	if !storeCfg.Persistent {
		config.LogWarn(ctx, "no data path, metrics will not survive a restart")
	}
	engine, err := storage.Open(storeCfg)
	if err != nil {
		return fmt.Errorf("%w: open storage: %w", ErrInvalidState, err)
	}

	inst := &Instance{
		engine:    engine,
		assembler: ping.NewAssembler(engine, cfg.App),
		appID:     cfg.ApplicationID,
		logPings:  config.BoolValue("TELEMETRY_LOG_PINGS"),
	}
	inst.uploadEnabled.Store(cfg.UploadEnabled)
	inst.uploads = upload.NewManager(engine, uploader, strings.TrimRight(cfg.ServerEndpoint, "/"), policy, c.uploadDropped)

	if err := prepareStore(ctx, inst); err != nil {
		engine.Close()
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}

	if err := inst.uploads.Start(spawner); err != nil {
		engine.Close()
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	if err := c.queue.Start(inst, spawner); err != nil {
		inst.uploads.Stop(config.MillisValue("TELEMETRY_SHUTDOWN_TIMEOUT_MS"))
		engine.Close()
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}

	c.instance = inst
	c.initialized = true

	if n := c.queue.Overflowed(); n > 0 {
		c.Enqueue(internalErrorTask{
			label:   "telemetry.dispatcher",
			pings:   []string{metrics.DefaultPing},
			kind:    errorrec.QueueOverflow,
			message: "tasks dropped before initialization",
			count:   n,
		})
	}

	config.LogInfo(ctx, "telemetry initialized",
		zap.String("application_id", cfg.ApplicationID),
		zap.Bool("persistent", engine.Persistent()),
		zap.Bool("upload_enabled", cfg.UploadEnabled))
	return nil
}

// prepareStore runs the start-up housekeeping before any task executes.
func prepareStore(ctx context.Context, inst *Instance) error {
	corrupt, err := inst.engine.Verify()
	if err != nil {
		return fmt.Errorf("verify storage: %w", err)
	}
	for _, row := range corrupt {
		diag.StorageCorrupt.Inc()
		err := errorrec.RecordFor(inst.engine, row.Identifier, []string{row.Store},
			errorrec.StorageCorruption, "discarded undecodable stored value", 1)
		if err != nil {
			return err
		}
	}

	if err := inst.engine.ClearAll(metrics.Application); err != nil {
		return fmt.Errorf("clear application metrics: %w", err)
	}

	if !inst.UploadEnabled() {
		return inst.clearAll()
	}
	return ping.EnsureClientInfo(inst.engine, time.Now())
}

// uploadDropped runs on the upload worker, so the error is recorded through
// the dispatcher.
func (c *Client) uploadDropped(rec storage.UploadRecord, reason string) {
	kind := errorrec.UploadUnrecoverable
	if reason == "corrupt" {
		kind = errorrec.StorageCorruption
	}
	c.Enqueue(internalErrorTask{
		label:   rec.PingName,
		pings:   []string{rec.PingName},
		kind:    kind,
		message: "ping upload dropped: " + reason,
		count:   1,
	})
}

// Submit schedules the submission of a ping.
func (c *Client) Submit(t ping.Type, reason string) {
	c.Enqueue(SubmitTask{Ping: t, Reason: reason})
}

// SetUploadEnabled schedules turning collection and upload on or off.
func (c *Client) SetUploadEnabled(enabled bool) {
	c.Enqueue(SetUploadEnabledTask{Enabled: enabled})
}

// Shutdown drains the dispatcher for up to timeout, then stops the upload
// worker and closes the store. Every failure is reported.
func (c *Client) Shutdown(timeout time.Duration) error {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return nil
	}
	c.shutdown = true
	inst := c.instance
	c.mu.Unlock()

	var result *multierror.Error
	if err := c.queue.Shutdown(timeout); err != nil {
		result = multierror.Append(result, err)
	}
	if inst != nil {
		if err := inst.uploads.Stop(timeout); err != nil {
			result = multierror.Append(result, err)
		}
		if err := inst.engine.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close storage: %w", err))
		}
	}
	return result.ErrorOrNil()
}

// BlockUntilIdle waits for every task enqueued so far to finish.
func (c *Client) BlockUntilIdle(ctx context.Context) error {
	if err := c.queue.BlockUntilIdle(ctx); err != nil {
		if errors.Is(err, dispatcher.ErrNotStarted) {
			return ErrNotInitialized
		}
		return err
	}
	return nil
}

// Engine returns the metric store, or nil before initialization.
func (c *Client) Engine() *storage.Engine {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.instance == nil {
		return nil
	}
	return c.instance.engine
}

// PendingUploads lists the pings waiting for delivery.
func (c *Client) PendingUploads() ([]storage.UploadRecord, error) {
	c.mu.Lock()
	inst := c.instance
	c.mu.Unlock()

	if inst == nil {
		return nil, ErrNotInitialized
	}
	return inst.uploads.Pending()
}

// Status reports the current state of the client.
func (c *Client) Status() Status {
	c.mu.Lock()
	inst := c.instance
	s := Status{Initialized: c.initialized}
	c.mu.Unlock()

	s.State = c.queue.State().String()
	s.PendingTasks = c.queue.Pending()
	s.Overflowed = c.queue.Overflowed()
	if inst != nil {
		s.UploadEnabled = inst.UploadEnabled()
		s.Persistent = inst.engine.Persistent()
	}
	return s
}
