package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStepDuration("backing-up", 150*time.Millisecond)
	pr.ObserveRunDuration(500 * time.Millisecond)
	pr.IncStepResult("backing-up", ResultSuccess)
	pr.IncRunOutcome("done")
	pr.ObserveFetchDuration(2*time.Second, true)
	// Basic scrape to ensure metrics encode without panic
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatalf("expected metrics, got none")
	}
}

func TestRecordersOnSeparateRegistries(t *testing.T) {
	// Each recorder owns its own metric instances, so two registries can
	// each carry one without colliding.
	for i := 0; i < 2; i++ {
		reg := prom.NewRegistry()
		pr := NewPrometheusRecorder(reg)
		pr.IncRunOutcome("done")
		mfs, err := reg.Gather()
		if err != nil {
			t.Fatalf("gather: %v", err)
		}
		if len(mfs) == 0 {
			t.Fatalf("expected metrics, got none")
		}
	}
}

func TestNilRecorderMethodsAreSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObserveStepDuration("fetching", time.Second)
	pr.ObserveRunDuration(time.Second)
	pr.IncStepResult("fetching", ResultFailed)
	pr.IncRunOutcome("failed")
	pr.ObserveFetchDuration(time.Second, false)
}
