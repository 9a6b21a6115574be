// Package errorrec keeps per-metric error counters inside the metric store,
// so recording errors travel with the pings instead of reaching the caller.
package errorrec

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/thisdougb/telemetry/internal/config"
	"github.com/thisdougb/telemetry/internal/metrics"
	"github.com/thisdougb/telemetry/internal/storage"
)

// Kind classifies a recording error.
type Kind int

const (
	InvalidValue Kind = iota
	InvalidType
	InvalidOverflow
	InvalidState
	StorageCorruption
	UploadUnrecoverable
	QueueOverflow
)

// Kinds lists every error kind.
var Kinds = []Kind{
	InvalidValue, InvalidType, InvalidOverflow, InvalidState,
	StorageCorruption, UploadUnrecoverable, QueueOverflow,
}

func (k Kind) String() string {
	switch k {
	case InvalidValue:
		return "invalid_value"
	case InvalidType:
		return "invalid_type"
	case InvalidOverflow:
		return "invalid_overflow"
	case InvalidState:
		return "invalid_state"
	case StorageCorruption:
		return "storage_corruption"
	case UploadUnrecoverable:
		return "upload_unrecoverable"
	case QueueOverflow:
		return "queue_overflow"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// InternalCategory prefixes every metric the library records about itself.
const InternalCategory = "telemetry"

// IsInternal reports whether an identifier belongs to the library's own metrics.
func IsInternal(identifier string) bool {
	return strings.HasPrefix(identifier, InternalCategory+".")
}

// ErrorMetric returns the metadata of the counter holding errors of kind for label.
func ErrorMetric(label string, pings []string, kind Kind) metrics.CommonMetricData {
	return metrics.CommonMetricData{
		Category:     InternalCategory + ".error",
		Name:         kind.String(),
		SendInPings:  append([]string(nil), pings...),
		Lifetime:     metrics.Ping,
		DynamicLabel: label,
	}.Normalize()
}

// Record counts n errors of kind against a metric. The count is sent in the
// same pings as the metric itself.
func Record(engine *storage.Engine, meta metrics.CommonMetricData, kind Kind, msg string, n int) error {
	return RecordFor(engine, meta.Identifier(), meta.SendInPings, kind, msg, n)
}

// RecordFor counts errors for an identifier whose metadata is unknown, such as
// a stored row that failed to decode.
func RecordFor(engine *storage.Engine, label string, pings []string, kind Kind, msg string, n int) error {
	config.LogWarn(context.Background(), msg,
		zap.String("metric", label), zap.Stringer("error", kind), zap.Int("count", n))

	if n <= 0 {
		return nil
	}
	return engine.RecordWith(ErrorMetric(label, pings, kind), func(old metrics.Value, ok bool) (metrics.Value, error) {
		if !ok {
			return metrics.Counter(int64(n)), nil
		}
		return metrics.Counter(old.Int + int64(n)), nil
	})
}

// NumRecorded returns how many errors of kind were recorded for a metric in a
// ping. The default ping is used when ping is empty.
func NumRecorded(engine *storage.Engine, meta metrics.CommonMetricData, kind Kind, ping string) (int, error) {
	if ping == "" {
		ping = meta.DefaultStore()
	}
	errMeta := ErrorMetric(meta.Identifier(), meta.SendInPings, kind)
	v, ok, err := engine.SnapshotMetric(ping, errMeta.Identifier(), metrics.Ping)
	if err != nil || !ok {
		return 0, err
	}
	return int(v.Int), nil
}
