// Package metrics exposes the coordinator's counters on /metrics via
// github.com/prometheus/client_golang.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry groups every SyncKit counter/gauge behind one constructor so
// the HTTP server only needs to register a single collector set.
type Registry struct {
	DeltasApplied  *prometheus.CounterVec
	FlushesTotal   *prometheus.CounterVec
	FramesSent     *prometheus.CounterVec
	Connections    prometheus.Gauge
	DocumentsTotal prometheus.Gauge
	SyncRequests   prometheus.Counter
}

// NewRegistry constructs and registers every metric against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		DeltasApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "synckit",
			Name:      "deltas_applied_total",
			Help:      "Deltas successfully applied to a document.",
		}, []string{"doc_id"}),
		FlushesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "synckit",
			Name:      "batch_flushes_total",
			Help:      "Batch window flushes performed.",
		}, []string{"doc_id"}),
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "synckit",
			Name:      "frames_sent_total",
			Help:      "Wire frames sent to subscribers, by type.",
		}, []string{"type"}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "synckit",
			Name:      "connections",
			Help:      "Currently open client connections.",
		}),
		DocumentsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "synckit",
			Name:      "documents",
			Help:      "Documents currently resident in memory.",
		}),
		SyncRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "synckit",
			Name:      "sync_requests_total",
			Help:      "Sync handshakes served.",
		}),
	}
	reg.MustRegister(r.DeltasApplied, r.FlushesTotal, r.FramesSent, r.Connections, r.DocumentsTotal, r.SyncRequests)
	return r
}
