package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/thisdougb/telemetry/internal/config"
	"github.com/thisdougb/telemetry/internal/metrics"
)

// MergeFunc combines the stored value, if any, with a new recording.
type MergeFunc func(old metrics.Value, ok bool) (metrics.Value, error)

// Entry is one decoded metric from a snapshot.
type Entry struct {
	Identifier string
	Lifetime   metrics.Lifetime
	Value      metrics.Value
}

// Corrupt identifies a row that could not be decoded on load.
type Corrupt struct {
	Store      string
	Lifetime   metrics.Lifetime
	Identifier string
}

// Engine applies lifetime and merge rules on top of a Backend. Metric writes
// are expected from a single goroutine, the dispatcher worker.
type Engine struct {
	backend    Backend
	persistent bool
}

// NewEngine wraps an already opened backend.
func NewEngine(backend Backend, persistent bool) *Engine {
	return &Engine{backend: backend, persistent: persistent}
}

// Open creates the backend described by cfg.
func Open(cfg *Config) (*Engine, error) {
	backend, err := NewBackend(cfg)
	if err != nil {
		return nil, err
	}
	return NewEngine(backend, cfg.Persistent), nil
}

// Persistent reports whether data survives a restart.
func (e *Engine) Persistent() bool {
	return e.persistent
}

// Record overwrites the value of a metric in every ping it is sent in.
func (e *Engine) Record(meta metrics.CommonMetricData, value metrics.Value) error {
	return e.RecordWith(meta, func(metrics.Value, bool) (metrics.Value, error) {
		return value, nil
	})
}

// RecordWith merges a recording into every ping the metric is sent in. A
// failing merge leaves that store untouched; the other stores are still written.
func (e *Engine) RecordWith(meta metrics.CommonMetricData, merge MergeFunc) error {
	var result *multierror.Error
	id := meta.Identifier()

	for _, store := range meta.SendInPings {
		err := e.backend.Update(store, meta.Lifetime, id, func(old []byte, ok bool) ([]byte, error) {
			var current metrics.Value
			if ok {
				if err := json.Unmarshal(old, &current); err != nil {
					ok = false
				}
			}
			next, err := merge(current, ok)
			if err != nil {
				return nil, err
			}
			return json.Marshal(next)
		})
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s in %s: %w", id, store, err))
		}
	}

	return result.ErrorOrNil()
}

// Snapshot returns a copy of every decodable entry of a store. It never mutates state.
func (e *Engine) Snapshot(store string) ([]Entry, error) {
	rows, err := e.backend.Rows(store)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		var v metrics.Value
		if err := json.Unmarshal(r.Value, &v); err != nil {
			config.LogWarn(context.Background(), "skipping undecodable entry",
				zap.String("store", r.Store), zap.String("identifier", r.Identifier))
			continue
		}
		entries = append(entries, Entry{Identifier: r.Identifier, Lifetime: r.Lifetime, Value: v})
	}
	return entries, nil
}

// SnapshotMetric reads a single entry.
func (e *Engine) SnapshotMetric(store, identifier string, lifetime metrics.Lifetime) (metrics.Value, bool, error) {
	raw, ok, err := e.backend.Get(store, lifetime, identifier)
	if err != nil || !ok {
		return metrics.Value{}, false, err
	}
	var v metrics.Value
	if err := json.Unmarshal(raw, &v); err != nil {
		return metrics.Value{}, false, fmt.Errorf("decode %s: %w", identifier, err)
	}
	return v, true, nil
}

// Clear removes the entries of a store having one of the lifetimes.
func (e *Engine) Clear(store string, lifetimes ...metrics.Lifetime) error {
	if store == "" {
		return fmt.Errorf("clear needs a store name")
	}
	return e.backend.Delete(store, lifetimes)
}

// ClearAll removes the entries of every store having one of the lifetimes.
func (e *Engine) ClearAll(lifetimes ...metrics.Lifetime) error {
	return e.backend.Delete("", lifetimes)
}

// Verify scans every stored row, deleting the ones that cannot be decoded.
// The deleted rows are returned so they can be reported.
func (e *Engine) Verify() ([]Corrupt, error) {
	rows, err := e.backend.Rows("")
	if err != nil {
		return nil, err
	}

	var corrupt []Corrupt
	for _, r := range rows {
		var v metrics.Value
		if json.Unmarshal(r.Value, &v) == nil {
			continue
		}
		if err := e.backend.DeleteRow(r.Store, r.Lifetime, r.Identifier); err != nil {
			return corrupt, err
		}
		corrupt = append(corrupt, Corrupt{Store: r.Store, Lifetime: r.Lifetime, Identifier: r.Identifier})
	}
	return corrupt, nil
}

// NextSequence returns the sequence number for the next ping of that name.
func (e *Engine) NextSequence(ping string) (int64, error) {
	return e.backend.NextSequence(ping)
}

func (e *Engine) AddUpload(rec UploadRecord) (int64, error) {
	return e.backend.AddUpload(rec)
}

// Uploads lists pending uploads in queue order. Rows that cannot be decoded
// are deleted and returned separately so they can be reported.
func (e *Engine) Uploads() ([]UploadRecord, []UploadRecord, error) {
	all, err := e.backend.Uploads()
	if err != nil {
		return nil, nil, err
	}

	pending := make([]UploadRecord, 0, len(all))
	var corrupt []UploadRecord
	for _, rec := range all {
		if !rec.Corrupt {
			pending = append(pending, rec)
			continue
		}
		// Only the reader that deletes the row reports it.
		if err := e.backend.RemoveUpload(rec.DocumentID); err != nil {
			if !errors.Is(err, ErrNotFound) {
				config.LogError(context.Background(), "failed to remove corrupt upload",
					zap.String("document_id", rec.DocumentID), zap.Error(err))
			}
			continue
		}
		corrupt = append(corrupt, rec)
	}
	return pending, corrupt, nil
}

func (e *Engine) RequeueUpload(rec UploadRecord) (int64, error) {
	return e.backend.RequeueUpload(rec)
}

func (e *Engine) RemoveUpload(documentID string) error {
	return e.backend.RemoveUpload(documentID)
}

func (e *Engine) ClearUploads() error {
	return e.backend.ClearUploads()
}

// Close closes the backend.
func (e *Engine) Close() error {
	return e.backend.Close()
}
