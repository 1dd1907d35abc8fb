package coverage

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "devserver_coverage"

// Metrics counts what the hook and the collect endpoint did. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	tracedRequests     prometheus.Counter
	fragmentsWritten   prometheus.Counter
	failures           *prometheus.CounterVec
	collections        prometheus.Counter
	fragmentsCollected prometheus.Counter
}

// NewMetrics creates the coverage metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tracedRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "traced_requests_total",
			Help:      "Number of requests for which line tracing was started.",
		}),
		fragmentsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "fragments_written_total",
			Help:      "Number of coverage fragments written to disk.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "failures_total",
			Help:      "Number of coverage operations that failed and were ignored, by stage.",
		}, []string{"stage"}),
		collections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "collections_total",
			Help:      "Number of coverage collect requests served.",
		}),
		fragmentsCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "fragments_collected_total",
			Help:      "Number of fragments consumed by collect requests.",
		}),
	}
	reg.MustRegister(m.tracedRequests, m.fragmentsWritten, m.failures, m.collections, m.fragmentsCollected)
	return m
}

func (m *Metrics) traced() {
	if m != nil {
		m.tracedRequests.Inc()
	}
}

func (m *Metrics) fragmentWritten() {
	if m != nil {
		m.fragmentsWritten.Inc()
	}
}

func (m *Metrics) failed(stage string) {
	if m != nil {
		m.failures.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) collected(stats AggregateStats) {
	if m != nil {
		m.collections.Inc()
		m.fragmentsCollected.Add(float64(stats.Consumed))
		if stats.Skipped > 0 {
			m.failures.WithLabelValues("read").Add(float64(stats.Skipped))
		}
	}
}
