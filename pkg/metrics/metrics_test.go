package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopImplementsCollector(t *testing.T) {
	var c Collector = Noop{}
	c.RecordOperation("create", "ok")
	c.RecordDuration("create", 0.01)
	c.RecordSideEffectWarnings("create", 2)
	c.SetEntryCount(5)
}

func TestPromCollector(t *testing.T) {
	c := NewPromCollector()

	c.RecordOperation("create", "ok")
	c.RecordOperation("create", "ok")
	c.RecordOperation("move", "partial")
	c.RecordSideEffectWarnings("move", 3)
	c.RecordSideEffectWarnings("delete", 0)
	c.SetEntryCount(42)
	c.RecordDuration("create", 0.002)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.operationsTotal.WithLabelValues("create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operationsTotal.WithLabelValues("move", "partial")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.sideEffectsTotal.WithLabelValues("move")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.sideEffectsTotal.WithLabelValues("delete")),
		"zero warnings must not create a sample")
	assert.Equal(t, 42.0, testutil.ToFloat64(c.entryCount))

	// Everything is registered on the collector's own registry.
	families, err := c.Registry().Gather()
	require.NoError(t, err)
	var names []string
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "mimirkb_operations_total")
	assert.Contains(t, names, "mimirkb_operation_duration_seconds")
	assert.Contains(t, names, "mimirkb_side_effect_warnings_total")
	assert.Contains(t, names, "mimirkb_entries")
}
