package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentifier(t *testing.T) {

	var TestCases = []struct {
		description string
		meta        CommonMetricData
		expected    string
	}{
		{"category and name", CommonMetricData{Category: "test.metrics", Name: "sample"}, "test.metrics.sample"},
		{"name only", CommonMetricData{Name: "sample"}, "sample"},
		{"labelled", CommonMetricData{Category: "c", Name: "n", DynamicLabel: "l"}, "c.n/l"},
	}

	for _, tc := range TestCases {
		assert.Equal(t, tc.expected, tc.meta.Identifier(), tc.description)
	}
}

func TestNormalize(t *testing.T) {
	meta := CommonMetricData{Category: "c", Name: "n", SendInPings: []string{"", "custom"}}.Normalize()
	assert.Equal(t, []string{"custom"}, meta.SendInPings)
	assert.Equal(t, "custom", meta.DefaultStore())

	empty := CommonMetricData{Name: "n"}.Normalize()
	assert.Equal(t, []string{DefaultPing}, empty.SendInPings)
}

func TestWithLabelCopies(t *testing.T) {
	meta := CommonMetricData{Category: "c", Name: "n", SendInPings: []string{"a"}}
	labelled := meta.WithLabel("x")
	labelled.SendInPings[0] = "b"

	assert.Equal(t, "a", meta.SendInPings[0])
	assert.Equal(t, "c.n/x", labelled.Identifier())
	assert.Equal(t, "c.n", meta.Identifier())
}

func TestSplitIdentifier(t *testing.T) {
	base, label := SplitIdentifier("telemetry.error.invalid_value/test.metrics.sample")
	assert.Equal(t, "telemetry.error.invalid_value", base)
	assert.Equal(t, "test.metrics.sample", label)

	base, label = SplitIdentifier("c.n")
	assert.Equal(t, "c.n", base)
	assert.Empty(t, label)
}
