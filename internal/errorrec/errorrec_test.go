package errorrec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thisdougb/telemetry/internal/metrics"
	"github.com/thisdougb/telemetry/internal/storage"
)

func newEngine(t *testing.T) *storage.Engine {
	e := storage.NewEngine(storage.NewMemoryBackend(), false)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestErrorIdentifier(t *testing.T) {
	meta := ErrorMetric("browser.url", []string{"events"}, InvalidValue)
	assert.Equal(t, "telemetry.error.invalid_value/browser.url", meta.Identifier())
	assert.Equal(t, metrics.Ping, meta.Lifetime)
	assert.Equal(t, []string{"events"}, meta.SendInPings)
	assert.True(t, IsInternal(meta.Identifier()))
	assert.False(t, IsInternal("browser.url"))
	assert.False(t, IsInternal("telemetryx.thing"))
}

func TestKindNames(t *testing.T) {
	seen := map[string]bool{}
	for _, k := range Kinds {
		assert.NotContains(t, k.String(), "kind(")
		seen[k.String()] = true
	}
	assert.Len(t, seen, len(Kinds))
	assert.Equal(t, "kind(99)", Kind(99).String())
}

func TestRecordAccumulates(t *testing.T) {
	e := newEngine(t)
	meta := metrics.CommonMetricData{Category: "app", Name: "payload", SendInPings: []string{"one", "two"}}.Normalize()

	require.NoError(t, Record(e, meta, InvalidValue, "bad payload", 1))
	require.NoError(t, Record(e, meta, InvalidValue, "bad payload", 2))
	require.NoError(t, Record(e, meta, InvalidOverflow, "too long", 1))

	for _, ping := range []string{"", "one", "two"} {
		n, err := NumRecorded(e, meta, InvalidValue, ping)
		require.NoError(t, err)
		assert.Equal(t, 3, n, ping)
	}

	n, err := NumRecorded(e, meta, InvalidOverflow, "two")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = NumRecorded(e, meta, InvalidType, "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecordIgnoresNonPositive(t *testing.T) {
	e := newEngine(t)
	meta := metrics.CommonMetricData{Name: "plain"}.Normalize()

	require.NoError(t, Record(e, meta, InvalidState, "nothing", 0))
	n, err := NumRecorded(e, meta, InvalidState, "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecordForUnknownMetric(t *testing.T) {
	e := newEngine(t)

	require.NoError(t, RecordFor(e, "lost.metric", []string{"store"}, StorageCorruption, "corrupt row", 1))

	entries, err := e.Snapshot("store")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "telemetry.error.storage_corruption/lost.metric", entries[0].Identifier)
	assert.Equal(t, int64(1), entries[0].Value.Int)
}

func TestErrorsClearedWithPing(t *testing.T) {
	e := newEngine(t)
	meta := metrics.CommonMetricData{Name: "x", SendInPings: []string{"store"}}.Normalize()

	require.NoError(t, Record(e, meta, InvalidValue, "bad", 1))
	require.NoError(t, e.Clear("store", metrics.Ping))

	n, err := NumRecorded(e, meta, InvalidValue, "store")
	require.NoError(t, err)
	assert.Zero(t, n)
}
