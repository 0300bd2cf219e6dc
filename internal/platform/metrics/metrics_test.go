package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncTokenRefresh("success")
		m.SetTokenExpiry(time.Now())
		m.IncPageFetch("ok")
		m.ObservePageFetch(time.Second)
		m.RecordBatch(1, 1, 0, 0, 0, time.Millisecond)
		m.IncBatchFailure()
		m.IncDateIncomplete()
		m.ObserveRun("update", "success", time.Second)
		m.IncEnrichment("LEGAL", "created")
		m.IncAuditDropped()
	})
}

func TestRecordBatch(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordBatch(10, 6, 2, 1, 1, time.Millisecond)
	m.RecordBatch(5, 5, 0, 0, 0, time.Millisecond)

	assert.Equal(t, 15.0, testutil.ToFloat64(m.Records.WithLabelValues("received")))
	assert.Equal(t, 11.0, testutil.ToFloat64(m.Records.WithLabelValues("inserted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Records.WithLabelValues("updated")))
}

func TestRunsByModeAndResult(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveRun("update", "partial", time.Second)
	m.ObserveRun("update", "partial", time.Second)
	m.ObserveRun("import", "success", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Runs.WithLabelValues("update", "partial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("import", "success")))
}

func TestTokenExpiryIgnoresZero(t *testing.T) {
	m := New(prometheus.NewRegistry())
	exp := time.Unix(1_700_000_000, 0)
	m.SetTokenExpiry(exp)
	m.SetTokenExpiry(time.Time{})
	assert.Equal(t, float64(exp.Unix()), testutil.ToFloat64(m.TokenExpiry))
}
