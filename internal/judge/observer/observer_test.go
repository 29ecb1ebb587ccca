package observer

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusRecorder(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	p.ObserveCompile(ctx, "cpp", true, time.Second)
	p.ObserveCompile(ctx, "cpp", false, time.Second)
	p.ObserveRun(ctx, "python", "timeout", 5*time.Second)
	p.ObserveVerdict(ctx, "submit", "Accepted")
	p.ObserveFetch(ctx, "submitQueue", FetchIdle)
	p.ObservePublish(ctx, "webhook", false)

	if got := testutil.ToFloat64(p.compileTotal.WithLabelValues("cpp", "error")); got != 1 {
		t.Fatalf("compile errors = %v", got)
	}
	if got := testutil.ToFloat64(p.runTotal.WithLabelValues("python", "timeout")); got != 1 {
		t.Fatalf("timeouts = %v", got)
	}
	if got := testutil.ToFloat64(p.verdictTotal.WithLabelValues("submit", "Accepted")); got != 1 {
		t.Fatalf("verdicts = %v", got)
	}
	if got := testutil.ToFloat64(p.fetchTotal.WithLabelValues("submitQueue", FetchIdle)); got != 1 {
		t.Fatalf("fetches = %v", got)
	}
	if got := testutil.ToFloat64(p.publishTotal.WithLabelValues("webhook", "error")); got != 1 {
		t.Fatalf("publish failures = %v", got)
	}

	if _, err := NewPrometheus(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}
