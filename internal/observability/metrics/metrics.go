// Package metrics exposes prometheus instrumentation for the relay pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "convrelay"

// Pipeline carries counters and gauges for one relay process.
type Pipeline struct {
	cyclesTotal        *prometheus.CounterVec
	eventsFetched      *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	trialsConfirmed    prometheus.Counter
	trialsCancelled    prometheus.Counter
	watermark          prometheus.Gauge
	cycleDuration      prometheus.Histogram
}

// New registers pipeline metrics on the given registerer. A nil registerer
// falls back to the prometheus default.
func New(reg prometheus.Registerer) (*Pipeline, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	p := &Pipeline{
		cyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed poll cycles by outcome.",
		}, []string{"outcome"}),
		eventsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_fetched_total",
			Help:      "Warehouse rows fetched by event name.",
		}, []string{"event_name"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Outbound postbacks by status and outcome.",
		}, []string{"status", "outcome"}),
		trialsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trials_confirmed_total",
			Help:      "Pending trials confirmed after the grace period.",
		}),
		trialsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trials_cancelled_total",
			Help:      "Pending trials removed by a cancellation event.",
		}),
		watermark: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watermark_rows",
			Help:      "Warehouse row count observed as of the last successful poll.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a full poll cycle.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	collectors := []prometheus.Collector{
		p.cyclesTotal,
		p.eventsFetched,
		p.notificationsTotal,
		p.trialsConfirmed,
		p.trialsCancelled,
		p.watermark,
		p.cycleDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Pipeline) IncCycle(outcome string) {
	p.cyclesTotal.WithLabelValues(outcome).Inc()
}

func (p *Pipeline) AddFetched(eventName string, n int) {
	p.eventsFetched.WithLabelValues(eventName).Add(float64(n))
}

func (p *Pipeline) IncNotification(status, outcome string) {
	p.notificationsTotal.WithLabelValues(status, outcome).Inc()
}

func (p *Pipeline) IncTrialConfirmed() {
	p.trialsConfirmed.Inc()
}

func (p *Pipeline) IncTrialCancelled() {
	p.trialsCancelled.Inc()
}

func (p *Pipeline) SetWatermark(rows int64) {
	p.watermark.Set(float64(rows))
}

func (p *Pipeline) ObserveCycleDuration(d time.Duration) {
	p.cycleDuration.Observe(d.Seconds())
}
