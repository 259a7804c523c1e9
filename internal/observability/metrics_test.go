package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordRequest("/api/register", "POST", 201, 20*time.Millisecond)
	m.RecordRequest("/api/register", "POST", 201, 30*time.Millisecond)
	m.RecordError("/api/register", "POST", "EMAIL_CONFLICT")
	m.SagaOutcome("register_pro", "ok")
	m.Compensation("create_identity", false)
	m.GuardRejected("security header missing")
	m.OrphanSwept()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("/api/register", "POST", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("/api/register", "POST", "EMAIL_CONFLICT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sagaOutcomes.WithLabelValues("register_pro", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.compensations.WithLabelValues("create_identity", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.guardRejects.WithLabelValues("security header missing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.orphansSwept))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordError("/", "GET", "X")
		m.SagaOutcome("v", "o")
		m.Compensation("s", true)
		m.GuardRejected("r")
		m.OrphanSwept()
	})
}
