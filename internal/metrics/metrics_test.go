package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gathered(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]float64, len(families))
	for _, mf := range families {
		m := mf.GetMetric()[0]
		switch {
		case m.GetGauge() != nil:
			out[mf.GetName()] = m.GetGauge().GetValue()
		case m.GetCounter() != nil:
			out[mf.GetName()] = m.GetCounter().GetValue()
		}
	}
	return out
}

func TestRegisterPaymentBreaker(t *testing.T) {
	reg := prometheus.NewRegistry()
	state := 0.0
	require.NoError(t, RegisterPaymentBreaker(reg, func() float64 { return state }))

	assert.Equal(t, 0.0, gathered(t, reg)["payment_gateway_circuit_state"])
	state = 1
	assert.Equal(t, 1.0, gathered(t, reg)["payment_gateway_circuit_state"])

	assert.Error(t, RegisterPaymentBreaker(reg, func() float64 { return 0 }))
}

func TestRegisterProductCache(t *testing.T) {
	reg := prometheus.NewRegistry()
	hits, misses, loads := int64(0), int64(0), int64(0)
	require.NoError(t, RegisterProductCache(reg, func() (int64, int64, int64) { return hits, misses, loads }))

	hits, misses, loads = 7, 3, 2
	got := gathered(t, reg)
	assert.Equal(t, 7.0, got["product_cache_hits_total"])
	assert.Equal(t, 3.0, got["product_cache_misses_total"])
	assert.Equal(t, 2.0, got["product_cache_loads_total"])
}
