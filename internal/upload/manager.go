package upload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/thisdougb/telemetry/internal/config"
	"github.com/thisdougb/telemetry/internal/diag"
	"github.com/thisdougb/telemetry/internal/storage"
	"github.com/thisdougb/telemetry/internal/worker"
)

var (
	ErrAlreadyStarted = errors.New("upload: manager already started")
	ErrStopTimeout    = errors.New("upload: manager did not stop in time")
)

// DropFunc is told about every upload discarded without delivery.
type DropFunc func(rec storage.UploadRecord, reason string)

// Manager owns the durable upload queue and the worker delivering it.
type Manager struct {
	engine   *storage.Engine
	uploader Uploader
	endpoint string
	policy   Policy
	timeout  time.Duration
	onDrop   DropFunc

	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	mu      sync.Mutex
	started bool
	stopped bool
	wake    chan struct{}
	quit    chan struct{}
	done    chan struct{}
	cancel  context.CancelFunc
	baseCtx context.Context
}

// NewManager returns a manager posting to endpoint. onDrop may be nil.
func NewManager(engine *storage.Engine, uploader Uploader, endpoint string, policy Policy, onDrop DropFunc) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		engine:   engine,
		uploader: uploader,
		endpoint: endpoint,
		policy:   policy,
		timeout:  config.MillisValue("TELEMETRY_UPLOAD_TIMEOUT_MS"),
		onDrop:   onDrop,
		now:      time.Now,
		after:    time.After,
		wake:     make(chan struct{}, 1),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		cancel:   cancel,
		baseCtx:  ctx,
	}
}

// Start spawns the upload worker. Uploads already in the durable queue, from
// this run or a previous one, are picked up straight away.
func (m *Manager) Start(spawner worker.Spawner) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrAlreadyStarted
	}
	if err := spawner.Spawn("telemetry.uploader", m.run); err != nil {
		return fmt.Errorf("failed to start upload worker: %w", err)
	}
	m.started = true
	return nil
}

// Enqueue persists a pending upload and wakes the worker.
func (m *Manager) Enqueue(rec storage.UploadRecord) error {
	if _, err := m.engine.AddUpload(rec); err != nil {
		return fmt.Errorf("queue upload %s: %w", rec.DocumentID, err)
	}
	m.signal()
	return nil
}

// Pending lists the uploads waiting for delivery.
func (m *Manager) Pending() ([]storage.UploadRecord, error) {
	return m.uploads()
}

// uploads reads the durable queue, reporting and discarding corrupt entries.
func (m *Manager) uploads() ([]storage.UploadRecord, error) {
	pending, corrupt, err := m.engine.Uploads()
	for _, rec := range corrupt {
		diag.StorageCorrupt.Inc()
		diag.UploadsDropped.WithLabelValues("corrupt").Inc()
		config.LogError(context.Background(), "corrupt upload discarded",
			zap.String("document_id", rec.DocumentID), zap.String("ping", rec.PingName))
		if m.onDrop != nil {
			m.onDrop(rec, "corrupt")
		}
	}
	return pending, err
}

// Clear discards every pending upload.
func (m *Manager) Clear() error {
	pending, err := m.uploads()
	if err != nil {
		return err
	}
	if err := m.engine.ClearUploads(); err != nil {
		return err
	}
	if len(pending) > 0 {
		diag.UploadsDropped.WithLabelValues("disabled").Add(float64(len(pending)))
	}
	m.signal()
	return nil
}

// Stop interrupts any backoff wait and waits up to timeout for the worker to
// exit. Pending uploads stay queued for the next run.
func (m *Manager) Stop(timeout time.Duration) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	started := m.started
	close(m.quit)
	m.mu.Unlock()

	m.cancel()
	if !started {
		return nil
	}

	select {
	case <-m.done:
		return nil
	case <-time.After(timeout):
		return ErrStopTimeout
	}
}

func (m *Manager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) run() {
	defer close(m.done)

	for {
		rec, wait, ok, err := m.nextDue()
		if err != nil {
			config.LogError(context.Background(), "failed to read upload queue", zap.Error(err))
			wait, ok = m.policy.InitialInterval, false
		}

		switch {
		case !ok && wait == 0:
			select {
			case <-m.wake:
			case <-m.quit:
				return
			}
		case wait > 0:
			// The queue is read again once the wait is over; the upload may
			// have been cleared meanwhile.
			select {
			case <-m.after(wait):
			case <-m.wake:
			case <-m.quit:
				return
			}
		default:
			m.attempt(rec)
		}

		select {
		case <-m.quit:
			return
		default:
		}
	}
}

// nextDue returns the oldest upload, preferring one that is already due. When
// nothing is due the returned record is the next to become due and wait is
// how long until then.
func (m *Manager) nextDue() (storage.UploadRecord, time.Duration, bool, error) {
	pending, err := m.uploads()
	if err != nil || len(pending) == 0 {
		return storage.UploadRecord{}, 0, false, err
	}

	now := m.now()
	next := pending[0]
	for _, rec := range pending {
		if !rec.NotBefore.After(now) {
			return rec, 0, true, nil
		}
		if rec.NotBefore.Before(next.NotBefore) {
			next = rec
		}
	}
	return next, next.NotBefore.Sub(now), true, nil
}

func (m *Manager) attempt(rec storage.UploadRecord) {
	ctx := config.SetContextCorrelationId(m.baseCtx, "upload-"+rec.DocumentID)
	ctx = config.AppendToContextCorrelationId(ctx, rec.PingName)
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	outcome := m.uploader.Upload(ctx, m.endpoint+rec.Path, rec.Body, rec.Headers)
	diag.UploadDuration.Observe(time.Since(start).Seconds())
	rec.Attempts++

	switch o := outcome.(type) {
	case Success:
		diag.UploadAttempts.WithLabelValues("success").Inc()
		if err := m.engine.RemoveUpload(rec.DocumentID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			config.LogError(ctx, "failed to remove delivered upload", zap.Error(err))
		}
		config.LogDebug(ctx, "ping uploaded", zap.String("ping", rec.PingName),
			zap.Int("status", o.Status), zap.Int("attempts", rec.Attempts))

	case UnrecoverableFailure:
		diag.UploadAttempts.WithLabelValues("unrecoverable").Inc()
		m.drop(ctx, rec, "unrecoverable", o.Err)

	case RecoverableFailure:
		diag.UploadAttempts.WithLabelValues("recoverable").Inc()
		m.retry(ctx, rec, o.Err)

	default:
		diag.UploadAttempts.WithLabelValues("recoverable").Inc()
		m.retry(ctx, rec, fmt.Errorf("uploader returned %T", outcome))
	}
}

func (m *Manager) retry(ctx context.Context, rec storage.UploadRecord, cause error) {
	if m.policy.Exhausted(rec.Attempts) {
		m.drop(ctx, rec, "max_attempts", cause)
		return
	}

	delay := m.policy.Delay(rec.Attempts)
	rec.NotBefore = m.now().Add(delay)
	if _, err := m.engine.RequeueUpload(rec); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			config.LogError(ctx, "failed to requeue upload", zap.Error(err))
		}
		return
	}
	config.LogWarn(ctx, "upload failed, will retry", zap.String("ping", rec.PingName),
		zap.Int("attempts", rec.Attempts), zap.Duration("delay", delay), zap.Error(cause))
}

func (m *Manager) drop(ctx context.Context, rec storage.UploadRecord, reason string, cause error) {
	if err := m.engine.RemoveUpload(rec.DocumentID); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			config.LogError(ctx, "failed to remove upload", zap.Error(err))
		}
		return
	}
	diag.UploadsDropped.WithLabelValues(reason).Inc()
	config.LogError(ctx, "upload dropped", zap.String("ping", rec.PingName),
		zap.String("reason", reason), zap.Int("attempts", rec.Attempts), zap.Error(cause))

	if m.onDrop != nil {
		m.onDrop(rec, reason)
	}
}
