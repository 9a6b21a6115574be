package telemetry

import "encoding/json"

// BooleanMetric records a flag. The last value wins.
type BooleanMetric = Metric[bool, bool]

// StringMetric records text of at most 100 bytes; longer values are
// truncated and an overflow error is recorded.
type StringMetric = Metric[string, string]

// URLMetric records an absolute URL of at most 8192 bytes.
type URLMetric = Metric[string, string]

// QuantityMetric records a non-negative integer. The last value wins.
type QuantityMetric = Metric[int64, int64]

func NewBooleanMetric(c *Client, d CommonMetricData) *BooleanMetric {
	return newMetric(c, d, booleanRule)
}

func NewStringMetric(c *Client, d CommonMetricData) *StringMetric {
	return newMetric(c, d, stringRule)
}

func NewURLMetric(c *Client, d CommonMetricData) *URLMetric {
	return newMetric(c, d, urlRule)
}

func NewQuantityMetric(c *Client, d CommonMetricData) *QuantityMetric {
	return newMetric(c, d, quantityRule)
}

// CounterMetric accumulates positive amounts. The count saturates at the
// largest 32-bit integer.
type CounterMetric struct {
	m *Metric[int, int32]
}

func NewCounterMetric(c *Client, d CommonMetricData) *CounterMetric {
	return &CounterMetric{m: newMetric(c, d, counterRule)}
}

// Add increases the count. Amounts below one are rejected.
func (c *CounterMetric) Add(amount int) {
	c.m.record(amount)
}

func (c *CounterMetric) WithLabel(label string) *CounterMetric {
	return &CounterMetric{m: c.m.WithLabel(label)}
}

func (c *CounterMetric) Identifier() string {
	return c.m.Identifier()
}

func (c *CounterMetric) RecordError(kind ErrorType, msg string) {
	c.m.RecordError(kind, msg)
}

func (c *CounterMetric) Testing() MetricTester[int32] {
	return c.m.Testing()
}

// ObjectMetric records a JSON document. Invalid JSON keeps the previous
// value and records an invalid value error.
type ObjectMetric struct {
	m *Metric[jsonText, string]
}

func NewObjectMetric(c *Client, d CommonMetricData) *ObjectMetric {
	return &ObjectMetric{m: newMetric(c, d, objectRule)}
}

// Set records v serialized as JSON.
func (o *ObjectMetric) Set(v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		o.m.RecordError(ErrorInvalidValue, "value cannot be serialized: "+err.Error())
		return
	}
	o.m.record(jsonText(raw))
}

// SetString records an already serialized JSON document.
func (o *ObjectMetric) SetString(doc string) {
	o.m.record(jsonText(doc))
}

func (o *ObjectMetric) WithLabel(label string) *ObjectMetric {
	return &ObjectMetric{m: o.m.WithLabel(label)}
}

func (o *ObjectMetric) Identifier() string {
	return o.m.Identifier()
}

func (o *ObjectMetric) RecordError(kind ErrorType, msg string) {
	o.m.RecordError(kind, msg)
}

// Testing reads back the stored document in canonical form.
func (o *ObjectMetric) Testing() MetricTester[string] {
	return o.m.Testing()
}
