package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics_Isolated(t *testing.T) {
	// two instances must not collide on registration
	a := NewPrometheusMetrics(prometheus.NewRegistry())
	b := NewPrometheusMetrics(prometheus.NewRegistry())

	a.RecordLogEntries("realtime", 3)
	b.RecordLogEntries("realtime", 1)

	assert.Equal(t, 3.0, testutil.ToFloat64(a.LogEntriesReceivedTotal.WithLabelValues("realtime")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.LogEntriesReceivedTotal.WithLabelValues("realtime")))
}

func TestPrometheusMetrics_Socket(t *testing.T) {
	m := NewPrometheusMetrics(prometheus.NewRegistry())

	m.SetSocketConnected(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SocketConnected))
	m.SetSocketConnected(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SocketConnected))

	m.RecordSocketEvent("log:new")
	m.RecordSocketEvent("log:new")
	m.RecordReconnect()
	m.RecordConnectionError("dial")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SocketEventsTotal.WithLabelValues("log:new")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SocketReconnectsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnectionErrorsTotal.WithLabelValues("dial")))
}

func TestPrometheusMetrics_Gauges(t *testing.T) {
	m := NewPrometheusMetrics(prometheus.NewRegistry())

	m.UpdateLogStoreSize(42)
	m.UpdateTransactionCounts(3, 17)
	m.UpdateComponentHealth("storage", true)
	m.UpdateComponentHealth("realtime", false)

	assert.Equal(t, 42.0, testutil.ToFloat64(m.LogStoreSize))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TransactionsToday))
	assert.Equal(t, 17.0, testutil.ToFloat64(m.TransactionsThisMonth))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ComponentHealth.WithLabelValues("storage")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ComponentHealth.WithLabelValues("realtime")))
}

func TestManager_Handler(t *testing.T) {
	m := NewManagerWithRegistry(prometheus.NewRegistry())
	m.GetPrometheusMetrics().RecordDatabaseOperation("insert", "log_entries", "success", 5*time.Millisecond)
	m.UpdateSystemMetrics()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `xltoken_dashboard_database_operations_total{operation="insert",status="success",table="log_entries"} 1`)
	assert.Contains(t, string(body), "xltoken_dashboard_goroutines")
}
