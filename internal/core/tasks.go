package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/thisdougb/telemetry/internal/config"
	"github.com/thisdougb/telemetry/internal/diag"
	"github.com/thisdougb/telemetry/internal/errorrec"
	"github.com/thisdougb/telemetry/internal/metrics"
	"github.com/thisdougb/telemetry/internal/ping"
)

// SubmitTask assembles a ping, queues it for upload and clears its
// ping-lifetime metrics.
type SubmitTask struct {
	Ping   ping.Type
	Reason string
}

func (t SubmitTask) Op() string { return "submit_ping" }

func (t SubmitTask) Execute(ctx context.Context, inst *Instance) error {
	if !inst.UploadEnabled() {
		diag.PingsSkipped.WithLabelValues(t.Ping.Name, "upload_disabled").Inc()
		config.LogInfo(ctx, "upload disabled, ping not submitted", zap.String("ping", t.Ping.Name))
		return nil
	}

	doc, err := inst.assembler.Collect(ctx, t.Ping, t.Reason)
	if errors.Is(err, ping.ErrEmptyPing) {
		diag.PingsSkipped.WithLabelValues(t.Ping.Name, "empty").Inc()
		config.LogInfo(ctx, "ping is empty, not submitted", zap.String("ping", t.Ping.Name))
		return nil
	}
	if err != nil {
		return fmt.Errorf("collect %s: %w", t.Ping.Name, err)
	}

	job, err := ping.NewJob(doc, inst.appID, time.Now())
	if err != nil {
		return fmt.Errorf("encode %s: %w", t.Ping.Name, err)
	}
	if inst.logPings {
		if raw, err := doc.Marshal(); err == nil {
			config.LogInfo(ctx, "ping assembled", zap.String("ping", t.Ping.Name), zap.ByteString("document", raw))
		}
	}

	// the ping store is only cleared once the document is safely queued
	if err := inst.uploads.Enqueue(job); err != nil {
		return err
	}
	diag.PingsSubmitted.WithLabelValues(t.Ping.Name).Inc()

	return inst.engine.Clear(t.Ping.Name, metrics.Ping)
}

// RecordErrorTask counts errors against a declared metric.
type RecordErrorTask struct {
	Meta    metrics.CommonMetricData
	Kind    errorrec.Kind
	Message string
	Count   int
}

func (t RecordErrorTask) Op() string { return "record_error" }

func (t RecordErrorTask) Execute(ctx context.Context, inst *Instance) error {
	if !inst.UploadEnabled() || t.Meta.Disabled {
		return nil
	}
	return errorrec.Record(inst.engine, t.Meta, t.Kind, t.Message, t.Count)
}

// internalErrorTask counts errors the library detects about itself.
type internalErrorTask struct {
	label   string
	pings   []string
	kind    errorrec.Kind
	message string
	count   int
}

func (t internalErrorTask) Op() string { return "record_internal_error" }

func (t internalErrorTask) Execute(ctx context.Context, inst *Instance) error {
	if !inst.UploadEnabled() {
		return nil
	}
	return errorrec.RecordFor(inst.engine, t.label, t.pings, t.kind, t.message, t.count)
}

// SetUploadEnabledTask turns collection and upload on or off. Turning it off
// deletes every stored metric, every pending upload and the client id.
type SetUploadEnabledTask struct {
	Enabled bool
}

func (t SetUploadEnabledTask) Op() string { return "set_upload_enabled" }

func (t SetUploadEnabledTask) Execute(ctx context.Context, inst *Instance) error {
	if inst.uploadEnabled.Swap(t.Enabled) == t.Enabled {
		return nil
	}

	if t.Enabled {
		config.LogInfo(ctx, "upload enabled")
		return ping.EnsureClientInfo(inst.engine, time.Now())
	}

	config.LogInfo(ctx, "upload disabled, clearing stored data")
	return inst.clearAll()
}

func (i *Instance) clearAll() error {
	if err := i.uploads.Clear(); err != nil {
		return fmt.Errorf("clear uploads: %w", err)
	}

	date, err := ping.FirstRunDate(i.engine)
	if err != nil {
		return err
	}
	if err := i.engine.ClearAll(metrics.Lifetimes...); err != nil {
		return fmt.Errorf("clear metrics: %w", err)
	}
	return ping.RestoreFirstRunDate(i.engine, date)
}
