package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all framework-level metrics (not application-specific)
type Metrics struct {
	// Node and scheduler metrics
	NodeStatus     *prometheus.GaugeVec
	NodeUpdates    *prometheus.CounterVec
	UpdateDuration *prometheus.HistogramVec
	NodeErrors     *prometheus.CounterVec
	SchedulerTicks *prometheus.CounterVec

	// Communication metrics
	MessagesPublished *prometheus.CounterVec
	BytesSent         *prometheus.CounterVec
	BytesReceived     *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all framework metrics
func NewMetrics() *Metrics {
	return &Metrics{
		NodeStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "nodecomm",
				Subsystem: "node",
				Name:      "status",
				Help:      "Node lifecycle state (0=not_started, 1=running, 2=shut_down, 3=failed)",
			},
			[]string{"node"},
		),

		NodeUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nodecomm",
				Subsystem: "node",
				Name:      "updates_total",
				Help:      "Total node update invocations",
			},
			[]string{"node", "status"},
		),

		UpdateDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "nodecomm",
				Subsystem: "node",
				Name:      "update_duration_seconds",
				Help:      "Node update duration in seconds",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"node"},
		),

		NodeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nodecomm",
				Subsystem: "node",
				Name:      "errors_total",
				Help:      "Total lifecycle call failures",
			},
			[]string{"node", "phase"},
		),

		SchedulerTicks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nodecomm",
				Subsystem: "scheduler",
				Name:      "ticks_total",
				Help:      "Total scheduling ticks by executor kind",
			},
			[]string{"executor"},
		),

		MessagesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nodecomm",
				Subsystem: "comms",
				Name:      "messages_published_total",
				Help:      "Total messages published by transport",
			},
			[]string{"transport"},
		),

		BytesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nodecomm",
				Subsystem: "comms",
				Name:      "bytes_sent_total",
				Help:      "Total bytes written to byte-oriented transports",
			},
			[]string{"transport"},
		),

		BytesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "nodecomm",
				Subsystem: "comms",
				Name:      "bytes_received_total",
				Help:      "Total bytes read from byte-oriented transports",
			},
			[]string{"transport"},
		),
	}
}
