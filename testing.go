package telemetry

import (
	"context"
	"time"

	"github.com/thisdougb/telemetry/internal/core"
	"github.com/thisdougb/telemetry/internal/errorrec"
	"github.com/thisdougb/telemetry/internal/metrics"
)

// ErrNotInitialized is returned by test accessors before Initialize.
var ErrNotInitialized = core.ErrNotInitialized

// MetricTester reads back what a metric stored. Every read first waits for
// the operations queued before it.
type MetricTester[T any] struct {
	client *Client
	meta   metrics.CommonMetricData
	kind   metrics.Kind
	decode func(metrics.Value) T
}

// Value returns the stored value in ping, or the metric's first ping when
// ping is empty.
func (t MetricTester[T]) Value(ping string) (T, bool, error) {
	var zero T
	if err := t.client.core.BlockUntilIdle(context.Background()); err != nil {
		return zero, false, err
	}
	engine := t.client.core.Engine()
	if engine == nil {
		return zero, false, ErrNotInitialized
	}
	if ping == "" {
		ping = t.meta.DefaultStore()
	}

	v, ok, err := engine.SnapshotMetric(ping, t.meta.Identifier(), t.meta.Lifetime)
	if err != nil || !ok || v.Kind != t.kind {
		return zero, false, err
	}
	return t.decode(v), true, nil
}

// NumRecordedErrors counts the errors of kind recorded against the metric.
func (t MetricTester[T]) NumRecordedErrors(kind ErrorType, ping string) (int, error) {
	if err := t.client.core.BlockUntilIdle(context.Background()); err != nil {
		return 0, err
	}
	engine := t.client.core.Engine()
	if engine == nil {
		return 0, ErrNotInitialized
	}
	return errorrec.NumRecorded(engine, t.meta, kind, ping)
}

// PendingUpload describes a ping waiting for delivery.
type PendingUpload struct {
	DocumentID string
	Ping       string
	Path       string
	Attempts   int
	Body       []byte
	Headers    []Header
	NotBefore  time.Time
}

// ClientTester exposes client internals to tests.
type ClientTester struct {
	client *Client
}

func (c *Client) Testing() ClientTester {
	return ClientTester{client: c}
}

// BlockUntilIdle waits until every operation queued so far has run.
func (t ClientTester) BlockUntilIdle(ctx context.Context) error {
	return t.client.core.BlockUntilIdle(ctx)
}

// PendingUploads lists queued pings, oldest first.
func (t ClientTester) PendingUploads() ([]PendingUpload, error) {
	records, err := t.client.core.PendingUploads()
	if err != nil {
		return nil, err
	}
	pending := make([]PendingUpload, 0, len(records))
	for _, rec := range records {
		pending = append(pending, PendingUpload{
			DocumentID: rec.DocumentID,
			Ping:       rec.PingName,
			Path:       rec.Path,
			Attempts:   rec.Attempts,
			Body:       rec.Body,
			Headers:    rec.Headers,
			NotBefore:  rec.NotBefore,
		})
	}
	return pending, nil
}
