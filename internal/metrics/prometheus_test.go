package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPrometheusExposesSeries(t *testing.T) {
	p := NewPrometheus()
	p.Metrics.OrdersPlaced.Inc()
	p.Metrics.ChaseAttempts.Inc()
	p.Metrics.ChaseAttempts.Inc()
	p.Metrics.OpenEdge.Set(14.2)

	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	text := string(body)
	for _, want := range []string{
		"cex_dex_arb_orders_placed_total 1",
		"cex_dex_arb_chase_attempts_total 2",
		"cex_dex_arb_open_edge 14.2",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("missing series %q in scrape:\n%s", want, text)
		}
	}
}

func TestNoopMetricsAreSafe(t *testing.T) {
	m := NewNoop()
	m.OrdersPlaced.Inc()
	m.OpenEdge.Set(1)
	m.HeldQty.Set(0.01)
}
