package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Drop reasons used as the label of MessagesDropped.
const (
	dropReasonAttribution = "attribution"
)

// Metrics holds the Prometheus collectors for the ingestion pipeline.
// Construct once with NewMetrics and share via WithPipelineMetrics.
type Metrics struct {
	MessagesReceived prometheus.Counter
	MessagesDropped  *prometheus.CounterVec
	RecordsCommitted prometheus.Counter
	CommitFailures   prometheus.Counter
}

// NewMetrics creates the pipeline collectors and registers them with
// reg. Pass prometheus.DefaultRegisterer for the process-wide registry
// or a private registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agrolt",
			Subsystem: "pipeline",
			Name:      "messages_received_total",
			Help:      "Inbound bus messages handled by the pipeline.",
		}),
		MessagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agrolt",
			Subsystem: "pipeline",
			Name:      "messages_dropped_total",
			Help:      "Messages dropped before persistence, by reason.",
		}, []string{"reason"}),
		RecordsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agrolt",
			Subsystem: "pipeline",
			Name:      "records_committed_total",
			Help:      "Topic records committed to the versioned store.",
		}),
		CommitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agrolt",
			Subsystem: "pipeline",
			Name:      "commit_failures_total",
			Help:      "Record commits that failed; fan-out was skipped.",
		}),
	}
	reg.MustRegister(m.MessagesReceived, m.MessagesDropped, m.RecordsCommitted, m.CommitFailures)
	return m
}
