package telemetry

import (
	"context"

	"github.com/thisdougb/telemetry/internal/core"
	"github.com/thisdougb/telemetry/internal/errorrec"
	"github.com/thisdougb/telemetry/internal/metrics"
)

// Lifetime controls when a stored value is cleared.
type Lifetime = metrics.Lifetime

const (
	// LifetimePing values are cleared after each submission of their ping.
	LifetimePing = metrics.Ping

	// LifetimeApplication values are cleared when the application restarts.
	LifetimeApplication = metrics.Application

	// LifetimeUser values persist until upload is disabled.
	LifetimeUser = metrics.User
)

// ErrorType classifies a recording error.
type ErrorType = errorrec.Kind

const (
	ErrorInvalidValue        = errorrec.InvalidValue
	ErrorInvalidType         = errorrec.InvalidType
	ErrorInvalidOverflow     = errorrec.InvalidOverflow
	ErrorInvalidState        = errorrec.InvalidState
	ErrorStorageCorruption   = errorrec.StorageCorruption
	ErrorUploadUnrecoverable = errorrec.UploadUnrecoverable
	ErrorQueueOverflow       = errorrec.QueueOverflow
)

// CommonMetricData declares a metric. With no SendInPings the metric is
// sent in the "metrics" ping.
type CommonMetricData struct {
	Category    string
	Name        string
	SendInPings []string
	Lifetime    Lifetime
	Disabled    bool
}

func (d CommonMetricData) internal() metrics.CommonMetricData {
	return metrics.CommonMetricData{
		Category:    d.Category,
		Name:        d.Name,
		SendInPings: d.SendInPings,
		Lifetime:    d.Lifetime,
		Disabled:    d.Disabled,
	}.Normalize()
}

// Metric records values of type P and reads them back as T. Every metric
// type is a Metric with its own rule; recording never blocks and never
// fails, invalid input is counted as an error against the metric instead.
type Metric[P, T any] struct {
	client *Client
	meta   metrics.CommonMetricData
	rule   *rule[P, T]
}

func newMetric[P, T any](c *Client, d CommonMetricData, r *rule[P, T]) *Metric[P, T] {
	return &Metric[P, T]{client: c, meta: d.internal(), rule: r}
}

// Set records a value.
func (m *Metric[P, T]) Set(value P) {
	m.record(value)
}

func (m *Metric[P, T]) record(value P) {
	if m.meta.Disabled {
		return
	}
	m.client.core.Enqueue(recordTask[P, T]{meta: m.meta, rule: m.rule, value: value})
}

// WithLabel returns the same metric recording under label. Labelled values
// are reported under labeled_<type> in the ping.
func (m *Metric[P, T]) WithLabel(label string) *Metric[P, T] {
	return &Metric[P, T]{client: m.client, meta: m.meta.WithLabel(label), rule: m.rule}
}

// Identifier is the name the metric is stored and reported under.
func (m *Metric[P, T]) Identifier() string {
	return m.meta.Identifier()
}

// RecordError counts an error of the given type against the metric.
func (m *Metric[P, T]) RecordError(kind ErrorType, msg string) {
	if m.meta.Disabled {
		return
	}
	m.client.core.Enqueue(core.RecordErrorTask{Meta: m.meta, Kind: kind, Message: msg, Count: 1})
}

// Testing gives access to what has been recorded, for tests.
func (m *Metric[P, T]) Testing() MetricTester[T] {
	return MetricTester[T]{client: m.client, meta: m.meta, kind: m.rule.kind, decode: m.rule.decode}
}

// recordTask validates and stores one recording on the dispatcher worker.
type recordTask[P, T any] struct {
	meta  metrics.CommonMetricData
	rule  *rule[P, T]
	value P
}

func (t recordTask[P, T]) Op() string { return "record_" + string(t.rule.kind) }

func (t recordTask[P, T]) Execute(ctx context.Context, inst *core.Instance) error {
	if !inst.UploadEnabled() {
		return nil
	}
	engine := inst.Engine()

	value, store, problems := t.rule.convert(t.value)
	if store {
		var mergeProblem *problem
		err := engine.RecordWith(t.meta, func(old metrics.Value, ok bool) (metrics.Value, error) {
			if ok && old.Kind != t.rule.kind {
				ok = false
			}
			next, p := t.rule.merge(old, ok, value)
			if p != nil {
				mergeProblem = p
			}
			return next, nil
		})
		if err != nil {
			return err
		}
		if mergeProblem != nil {
			problems = append(problems, *mergeProblem)
		}
	}

	for _, p := range problems {
		if err := errorrec.Record(engine, t.meta, p.kind, p.msg, 1); err != nil {
			return err
		}
	}
	return nil
}
