package trace

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the prometheus metrics updated by a [Session].
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Scopes        *prometheus.CounterVec
	Objects       *prometheus.CounterVec
	BackendErrors prometheus.Counter
	ScopeDuration prometheus.Histogram
}

// NewMetrics creates the metrics and registers them on registry, if not nil.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{}

	m.Scopes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hetrace",
		Name:      "scopes_total",
		Help:      "Total number of closed scopes per traced function",
	}, []string{"function"})

	m.Objects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hetrace",
		Name:      "objects_total",
		Help:      "Total number of registered objects per kind",
	}, []string{"kind"})

	m.BackendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "hetrace",
		Name:      "backend_errors_total",
		Help:      "Total number of records a backend failed to write",
	})

	m.ScopeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "hetrace",
		Name:      "scope_duration_seconds",
		Help:      "Duration of traced scopes in seconds",
		Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
	})

	if registry != nil {
		registry.MustRegister(m.Scopes, m.Objects, m.BackendErrors, m.ScopeDuration)
	}

	return m
}

func (m *Metrics) scope(rec *Record) {
	if m == nil || rec.Movement {
		return
	}
	m.Scopes.WithLabelValues(rec.Function).Inc()
	m.ScopeDuration.Observe(rec.Duration.Seconds())
}

func (m *Metrics) object(k Kind) {
	if m == nil {
		return
	}
	m.Objects.WithLabelValues(k.String()).Inc()
}

func (m *Metrics) backendError() {
	if m == nil {
		return
	}
	m.BackendErrors.Inc()
}
