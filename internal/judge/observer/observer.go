// Package observer defines metrics hooks for judge execution.
package observer

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "judge_worker"

// MetricsRecorder records judge metrics.
type MetricsRecorder interface {
	ObserveCompile(ctx context.Context, language string, ok bool, elapsed time.Duration)
	ObserveRun(ctx context.Context, language string, status string, elapsed time.Duration)
	ObserveVerdict(ctx context.Context, mode string, status string)
	ObserveFetch(ctx context.Context, queue string, result string)
	ObservePublish(ctx context.Context, sink string, ok bool)
}

// Fetch results.
const (
	FetchJob   = "job"
	FetchIdle  = "idle"
	FetchError = "error"
)

// Nop discards all observations.
type Nop struct{}

func (Nop) ObserveCompile(context.Context, string, bool, time.Duration) {}
func (Nop) ObserveRun(context.Context, string, string, time.Duration) {}
func (Nop) ObserveVerdict(context.Context, string, string) {}
func (Nop) ObserveFetch(context.Context, string, string) {}
func (Nop) ObservePublish(context.Context, string, bool) {}

// 10ms -> 30s
var timeBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10, 30}

// Prometheus records observations into prometheus collectors.
type Prometheus struct {
	compileTotal *prometheus.CounterVec
	compileTime  *prometheus.HistogramVec
	runTotal     *prometheus.CounterVec
	runTime      *prometheus.HistogramVec
	verdictTotal *prometheus.CounterVec
	fetchTotal   *prometheus.CounterVec
	publishTotal *prometheus.CounterVec
}

// NewPrometheus creates the collectors and registers them on reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		compileTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "compile_total",
			Help:      "Number of compile steps by outcome",
		}, []string{"language", "result"}),
		compileTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "compile_seconds",
			Help:      "Histogram for the compile time",
			Buckets:   timeBuckets,
		}, []string{"language"}),
		runTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "executions_total",
			Help:      "Number of sandboxed executions by status",
		}, []string{"language", "status"}),
		runTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "execution_seconds",
			Help:      "Histogram for the sandboxed running time",
			Buckets:   timeBuckets,
		}, []string{"language"}),
		verdictTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "verdicts_total",
			Help:      "Number of jobs finished by mode and status",
		}, []string{"mode", "status"}),
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "fetch_total",
			Help:      "Number of queue fetches by result",
		}, []string{"queue", "result"}),
		publishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "publish_total",
			Help:      "Number of result deliveries by sink and outcome",
		}, []string{"sink", "result"}),
	}
	for _, c := range []prometheus.Collector{
		p.compileTotal, p.compileTime, p.runTotal, p.runTime,
		p.verdictTotal, p.fetchTotal, p.publishTotal,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) ObserveCompile(_ context.Context, language string, ok bool, elapsed time.Duration) {
	p.compileTotal.WithLabelValues(language, okLabel(ok)).Inc()
	p.compileTime.WithLabelValues(language).Observe(elapsed.Seconds())
}

func (p *Prometheus) ObserveRun(_ context.Context, language string, status string, elapsed time.Duration) {
	p.runTotal.WithLabelValues(language, status).Inc()
	p.runTime.WithLabelValues(language).Observe(elapsed.Seconds())
}

func (p *Prometheus) ObserveVerdict(_ context.Context, mode string, status string) {
	p.verdictTotal.WithLabelValues(mode, status).Inc()
}

func (p *Prometheus) ObserveFetch(_ context.Context, queue string, result string) {
	p.fetchTotal.WithLabelValues(queue, result).Inc()
}

func (p *Prometheus) ObservePublish(_ context.Context, sink string, ok bool) {
	p.publishTotal.WithLabelValues(sink, okLabel(ok)).Inc()
}

func okLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

var (
	_ MetricsRecorder = Nop{}
	_ MetricsRecorder = (*Prometheus)(nil)
)
