package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestPipelineCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	p, err := New(registry)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	p.IncCycle("ok")
	p.IncCycle("ok")
	p.AddFetched("install", 3)
	p.IncNotification("trial_started", "ok")
	p.SetWatermark(103)
	p.ObserveCycleDuration(250 * time.Millisecond)

	if got := counterValue(t, registry, "convrelay_cycles_total", map[string]string{"outcome": "ok"}); got != 2 {
		t.Fatalf("expected 2 cycles, got %v", got)
	}
	if got := counterValue(t, registry, "convrelay_events_fetched_total", map[string]string{"event_name": "install"}); got != 3 {
		t.Fatalf("expected 3 fetched, got %v", got)
	}
	if got := counterValue(t, registry, "convrelay_notifications_total", map[string]string{"status": "trial_started", "outcome": "ok"}); got != 1 {
		t.Fatalf("expected 1 notification, got %v", got)
	}
}

func TestPipelineDuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	if _, err := New(registry); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := New(registry); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func counterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter == nil {
				t.Fatalf("metric %s is not a counter", name)
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
