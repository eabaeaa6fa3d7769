package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordOp(t *testing.T) {
	c := NewCollector("trainerslot", prometheus.NewRegistry())

	c.RecordOp("schedule", "ok", 10*time.Millisecond)
	c.RecordOp("schedule", "ok", 20*time.Millisecond)
	c.RecordOp("schedule", "no_trainer", time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.BookingOpsTotal.WithLabelValues("schedule", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.BookingOpsTotal.WithLabelValues("schedule", "no_trainer")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.BookingOpDuration))
}

func TestRecordBusyRetryAndRPC(t *testing.T) {
	c := NewCollector("trainerslot", prometheus.NewRegistry())

	c.RecordBusyRetry("reschedule")
	c.RecordRPC("/trainerslot.v1.BookingService/SchedulePersonal", "Unavailable")
	c.RecordLockWait(5 * time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.BusyRetriesTotal.WithLabelValues("reschedule")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.RPCRequestsTotal.WithLabelValues("/trainerslot.v1.BookingService/SchedulePersonal", "Unavailable")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.LockWaitDuration))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordOp("cancel", "ok", time.Millisecond)
		c.RecordBusyRetry("cancel")
		c.RecordLockWait(time.Millisecond)
		c.RecordRPC("m", "OK")
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("trainerslot", reg)
	c.RecordOp("cancel", "ok", time.Millisecond)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `trainerslot_booking_operations_total{op="cancel",outcome="ok"} 1`))
}
