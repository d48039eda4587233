package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.AddUnits("O+", "whole_blood", 3)
	m.IncrementDegraded("dashboard_stats")
	m.IncrementLogin("success")
	m.ObserveHTTPRequest("/api/donors", "GET", 200, time.Now())

	assert.Equal(t, 3.0, testutil.ToFloat64(m.UnitsAdded.WithLabelValues("O+", "whole_blood")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DegradedResponses.WithLabelValues("dashboard_stats")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Logins.WithLabelValues("success")))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementDonorsCreated()
		m.ObserveDashboard(time.Now())
		m.IncrementRateLimited()
	})
}
