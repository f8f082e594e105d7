package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounterAndGauge(t *testing.T) {
	r := New()
	c := r.Counter("requests_total")
	c.Inc()
	c.Add(2)
	if c.Value() != 3 {
		t.Fatalf("counter = %d", c.Value())
	}
	if r.Counter("requests_total") != c {
		t.Fatal("counter not deduplicated")
	}

	g := r.Gauge("inflight")
	g.Set(5)
	g.Dec()
	if g.Value() != 4 {
		t.Fatalf("gauge = %d", g.Value())
	}
}

func TestWithLabels(t *testing.T) {
	got := WithLabels("verify_total", "status", "VERIFIED")
	if got != `verify_total{status="VERIFIED"}` {
		t.Fatalf("got %s", got)
	}
	if WithLabels("x", "odd") != "x" {
		t.Fatal("odd label pairs should be ignored")
	}
}

func TestHistogramRender(t *testing.T) {
	r := New()
	h := r.Histogram("latency_seconds", []float64{0.1, 1})
	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(5)

	out := r.Render()
	want := []string{
		`latency_seconds_bucket{le="0.1"} 1`,
		`latency_seconds_bucket{le="1"} 2`,
		`latency_seconds_bucket{le="+Inf"} 3`,
		`latency_seconds_count 3`,
	}
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Fatalf("render missing %q:\n%s", w, out)
		}
	}
}

func TestHandler(t *testing.T) {
	r := New()
	r.Counter("ok_total").Inc()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), "ok_total 1") {
		t.Fatalf("unexpected response: %d %s", rec.Code, rec.Body.String())
	}
}
