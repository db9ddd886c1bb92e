package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorRecords(t *testing.T) {
	c := NewCollector("test", prometheus.NewRegistry())

	c.RecordEvaluation("local", "compute", nil, time.Second)
	c.RecordEvaluation("local", "compute", errors.New("boom"), time.Second)
	c.RecordPanel("mapas", "ok", time.Second)
	c.RecordRequest("/api/localities", "GET", "200", time.Millisecond)
	c.SetBackendAvailable(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.EvaluationsTotal.WithLabelValues("local", "compute", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.EvaluationsTotal.WithLabelValues("local", "compute", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.PanelRendersTotal.WithLabelValues("mapas", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.APIRequestsTotal.WithLabelValues("/api/localities", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.BackendAvailable))

	c.SetBackendAvailable(false)
	assert.Zero(t, testutil.ToFloat64(c.BackendAvailable))
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordEvaluation("earthengine", "tiles", nil, 0)
		c.RecordPanel("info", "ok", 0)
		c.RecordRequest("/health", "GET", "200", 0)
		c.SetBackendAvailable(true)
	})
}
