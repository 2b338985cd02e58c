package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatherValues(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				values[f.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[f.GetName()] += m.GetGauge().GetValue()
			}
		}
	}
	return values
}

func TestNewRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SearchQueriesTotal.WithLabelValues("boolean", "ok").Inc()
	m.SearchQueriesTotal.WithLabelValues("ranked", "ok").Add(2)
	m.IndexDocuments.Set(42)

	values := gatherValues(t, reg)
	assert.Equal(t, 3.0, values["search_queries_total"])
	assert.Equal(t, 42.0, values["index_documents"])
}

func TestRegisteringTwiceOnOneRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
