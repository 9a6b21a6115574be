package diag

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGathers(t *testing.T) {
	before := testutil.ToFloat64(PingsSkipped.WithLabelValues("custom", "empty"))
	PingsSkipped.WithLabelValues("custom", "empty").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(PingsSkipped.WithLabelValues("custom", "empty")))

	families, err := Registry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		assert.True(t, strings.HasPrefix(f.GetName(), prefix), f.GetName())
	}

	n, err := testutil.GatherAndCount(Registry, prefix+"pings_skipped_total")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)
}
