package docstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is optional; a nil *Metrics records nothing.
type Metrics struct {
	mutations   *prometheus.CounterVec
	conflicts   prometheus.Counter
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		mutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "worklog",
			Subsystem: "docstore",
			Name:      "mutations_total",
			Help:      "Document mutations by outcome.",
		}, []string{"result"}),
		conflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: "worklog",
			Subsystem: "docstore",
			Name:      "version_conflicts_total",
			Help:      "Conditional writes rejected because another writer won.",
		}),
		cacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: "worklog",
			Subsystem: "docstore",
			Name:      "cache_hits_total",
			Help:      "Document loads served from the process cache.",
		}),
		cacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: "worklog",
			Subsystem: "docstore",
			Name:      "cache_misses_total",
			Help:      "Document loads that went to the backend.",
		}),
	}
}

const (
	resultWritten   = "written"
	resultUnchanged = "unchanged"
	resultAborted   = "aborted"
	resultExhausted = "exhausted"
	resultFailed    = "failed"
)

func (m *Metrics) mutation(result string) {
	if m != nil {
		m.mutations.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) conflict() {
	if m != nil {
		m.conflicts.Inc()
	}
}

func (m *Metrics) cache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
		return
	}
	m.cacheMisses.Inc()
}
