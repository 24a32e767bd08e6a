package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsExposition(t *testing.T) {
	m := New()
	m.ObserveStage("timeseries", time.Now())
	m.CacheHit()
	m.CacheMiss()
	m.CacheMiss()
	m.LoaderLoad("dir", nil)
	m.LoaderLoad("dir", errors.New("boom"))
	m.Unmatched("doses", 3)
	m.Clamped("boost_negative_day", 2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		`vaxdash_cache_requests_total{result="miss"} 2`,
		`vaxdash_loader_loads_total{outcome="error",source="dir"} 1`,
		`vaxdash_unmatched_records_total{dataset="doses"} 3`,
		`vaxdash_clamps_total{kind="boost_negative_day"} 2`,
		`vaxdash_pipeline_duration_seconds_count{stage="timeseries"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.CacheHit()
	m.LoaderLoad("dir", nil)
	m.Clamped("x", 1)
	m.ObserveStage("x", time.Now())
}
