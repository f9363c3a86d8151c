package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveUpdate("video")
		c.ObserveRelay("success", "", 1)
		c.ObserveNotification(true)
		c.ObserveStagedBytes(10)
		c.TaskStarted()
		c.TaskDone()
		c.TaskPanicked()
	})
	assert.Nil(t, c.Registry())
}

func TestCollector_Counts(t *testing.T) {
	c := New()
	c.ObserveUpdate("video")
	c.ObserveUpdate("video")
	c.ObserveUpdate("command")
	c.ObserveRelay("failure", "publish", 0.3)
	c.ObserveNotification(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.updatesTotal.WithLabelValues("video")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.updatesTotal.WithLabelValues("command")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.relaysTotal.WithLabelValues("failure", "publish")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.notificationsTotal.WithLabelValues("failed")))
}

func TestCollector_InFlightGauge(t *testing.T) {
	c := New()
	c.TaskStarted()
	c.TaskStarted()
	c.TaskDone()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.inFlight))
}

func TestCollector_Handler(t *testing.T) {
	c := New()
	c.ObserveUpdate("text")

	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), `tgrelay_updates_total{route="text"} 1`))
}
