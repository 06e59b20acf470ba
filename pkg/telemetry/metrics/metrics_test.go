package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestCollector() *Collector {
	return NewCollector(Config{Enabled: true}, prometheus.NewRegistry())
}

func TestRequestMetrics(t *testing.T) {
	c := newTestCollector()
	c.Request().Record("native", "operator", 200, 150*time.Millisecond)
	c.Request().Record("native", "operator", 200, 50*time.Millisecond)
	c.Request().Record("bearer", "client", 429, time.Second)

	if got := testutil.ToFloat64(c.Request().requestsTotal.WithLabelValues("native", "operator", "200")); got != 2 {
		t.Errorf("requests_total{native,operator,200} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.Request().requestsTotal.WithLabelValues("bearer", "client", "429")); got != 1 {
		t.Errorf("requests_total{bearer,client,429} = %v, want 1", got)
	}
}

func TestPoolMetrics(t *testing.T) {
	c := newTestCollector()
	c.Pool().UpdateSnapshot(3, 1, 0.82)
	c.Pool().RecordKeyError(503)
	c.Pool().RecordKeyError(503)
	c.Pool().RecordReset()

	if got := testutil.ToFloat64(c.Pool().keys.WithLabelValues("healthy")); got != 3 {
		t.Errorf("pool_keys{healthy} = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.Pool().keyErrors.WithLabelValues("503")); got != 2 {
		t.Errorf("pool_key_errors_total{503} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.Pool().resets); got != 1 {
		t.Errorf("pool_resets_total = %v, want 1", got)
	}
}

func TestStreamMetricsLifecycle(t *testing.T) {
	c := newTestCollector()
	c.Stream().SetActive(2)
	c.Stream().StreamFinished("completed", 1024)
	c.Stream().SetActive(1)

	if got := testutil.ToFloat64(c.Stream().active); got != 1 {
		t.Errorf("streams_active = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Stream().finished.WithLabelValues("completed")); got != 1 {
		t.Errorf("streams_total{completed} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Stream().bytesTotal); got != 1024 {
		t.Errorf("stream_bytes_total = %v, want 1024", got)
	}
}

func TestDisabledCollectorIsNoop(t *testing.T) {
	c := NewCollector(Config{Enabled: false}, prometheus.NewRegistry())
	c.Request().Record("native", "operator", 200, time.Second)
	c.Cache().RecordHit()

	if got := testutil.ToFloat64(c.Cache().hits); got != 0 {
		t.Errorf("cache_hits_total = %v, want 0 when disabled", got)
	}
}

func TestHandlerServesRegisteredMetrics(t *testing.T) {
	c := newTestCollector()
	c.Cache().RecordHit()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	c.Handler().ServeHTTP(rec, req)

	body, _ := io.ReadAll(rec.Result().Body)
	if !strings.Contains(string(body), "polaris_cache_hits_total") {
		t.Error("scrape output missing polaris_cache_hits_total")
	}
}
