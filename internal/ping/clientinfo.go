package ping

import (
	"time"

	"github.com/google/uuid"

	"github.com/thisdougb/telemetry/internal/metrics"
	"github.com/thisdougb/telemetry/internal/storage"
)

// ClientInfoStore holds the identity of this installation. It is never
// assembled into a ping of its own.
const ClientInfoStore = "client_info"

var (
	clientIDMetric = metrics.CommonMetricData{
		Name:        "client_id",
		SendInPings: []string{ClientInfoStore},
		Lifetime:    metrics.User,
	}
	firstRunMetric = metrics.CommonMetricData{
		Name:        "first_run_date",
		SendInPings: []string{ClientInfoStore},
		Lifetime:    metrics.User,
	}
)

// EnsureClientInfo creates the client id and first run date if missing.
func EnsureClientInfo(engine *storage.Engine, now time.Time) error {
	_, ok, err := engine.SnapshotMetric(ClientInfoStore, firstRunMetric.Identifier(), metrics.User)
	if err != nil {
		return err
	}
	if !ok {
		if err := engine.Record(firstRunMetric, metrics.String(now.Format(DateLayout))); err != nil {
			return err
		}
	}

	_, ok, err = engine.SnapshotMetric(ClientInfoStore, clientIDMetric.Identifier(), metrics.User)
	if err != nil || ok {
		return err
	}
	return NewClientID(engine)
}

// NewClientID replaces the client id with a fresh one.
func NewClientID(engine *storage.Engine) error {
	return engine.Record(clientIDMetric, metrics.String(uuid.NewString()))
}

// ClientID returns the stored client id, if any.
func ClientID(engine *storage.Engine) (string, error) {
	return readClientInfo(engine, clientIDMetric)
}

// FirstRunDate returns the stored first run date, if any.
func FirstRunDate(engine *storage.Engine) (string, error) {
	return readClientInfo(engine, firstRunMetric)
}

func readClientInfo(engine *storage.Engine, meta metrics.CommonMetricData) (string, error) {
	v, ok, err := engine.SnapshotMetric(ClientInfoStore, meta.Identifier(), metrics.User)
	if err != nil || !ok {
		return "", err
	}
	return v.Str, nil
}

// RestoreFirstRunDate records date as the first run date after a wipe. An
// empty date is ignored.
func RestoreFirstRunDate(engine *storage.Engine, date string) error {
	if date == "" {
		return nil
	}
	return engine.Record(firstRunMetric, metrics.String(date))
}
