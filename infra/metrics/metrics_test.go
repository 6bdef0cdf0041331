package metrics_test

import (
	"testing"
	"time"

	"clob/infra/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	m.OrderSubmitted("gtc", "resting")
	m.OrderSubmitted("gtc", "resting")
	m.Fills("1", 3)
	m.PendingDepth("1", 5)
	m.Observe("submit", time.Now())

	n, err := testutil.GatherAndCount(reg, "clob_orders_total", "clob_fills_total", "clob_pending_work_depth")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = metrics.New(reg)
	assert.Error(t, err, "collectors register once per registry")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	m.OrderSubmitted("ioc", "rejected")
	m.Crank("empty")
	m.Observe("crank", time.Now())
}
