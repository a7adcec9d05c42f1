package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stepDuration  *prom.HistogramVec
	runDuration   prom.Histogram
	stepResults   *prom.CounterVec
	runOutcome    *prom.CounterVec
	fetchDuration *prom.HistogramVec
}

// NewPrometheusRecorder constructs and registers the run metrics. Each
// recorder owns its metric instances; create at most one per registry,
// duplicate registration panics.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stepDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "gizmolaunch",
			Name:      "update_step_duration_seconds",
			Help:      "Duration of individual update steps",
			Buckets:   prom.DefBuckets,
		}, []string{"step"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "gizmolaunch",
			Name:      "update_run_duration_seconds",
			Help:      "Total update run duration",
			Buckets:   prom.DefBuckets,
		}),
		stepResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "gizmolaunch",
			Name:      "update_step_results_total",
			Help:      "Update step result counts by outcome",
		}, []string{"step", "result"}),
		runOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "gizmolaunch",
			Name:      "update_run_outcomes_total",
			Help:      "Update run outcomes by final status",
		}, []string{"outcome"}),
		fetchDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "gizmolaunch",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of remote fetch operations",
			Buckets:   prom.DefBuckets,
		}, []string{"result"}),
	}
	reg.MustRegister(pr.stepDuration, pr.runDuration, pr.stepResults, pr.runOutcome, pr.fetchDuration)
	return pr
}

func (p *PrometheusRecorder) ObserveStepDuration(step string, d time.Duration) {
	if p == nil || p.stepDuration == nil {
		return
	}
	p.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStepResult(step string, result ResultLabel) {
	if p == nil || p.stepResults == nil {
		return
	}
	p.stepResults.WithLabelValues(step, string(result)).Inc()
}

func (p *PrometheusRecorder) IncRunOutcome(outcome string) {
	if p == nil || p.runOutcome == nil {
		return
	}
	p.runOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) ObserveFetchDuration(d time.Duration, success bool) {
	if p == nil || p.fetchDuration == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.fetchDuration.WithLabelValues(res).Observe(d.Seconds())
}
