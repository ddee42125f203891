package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const Namespace = "taskboard"

const (
	LabelType      = "type"
	LabelReason    = "reason"
	LabelOperation = "operation"
	LabelOutcome   = "outcome"
	LabelRoute     = "route"
	LabelMethod    = "method"
	LabelStatus    = "status"
)

var Clients = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name:      "realtime_clients",
		Help:      "Currently registered real-time clients",
		Namespace: Namespace,
	},
)

var Broadcasts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name:      "realtime_broadcasts_total",
		Help:      "Change events broadcast, by message type",
		Namespace: Namespace,
	},
	[]string{LabelType},
)

var DroppedClients = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name:      "realtime_dropped_clients_total",
		Help:      "Clients unregistered because of a delivery failure",
		Namespace: Namespace,
	},
	[]string{LabelReason},
)

var TaskMutations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name:      "task_mutations_total",
		Help:      "Task mutations, by operation and outcome",
		Namespace: Namespace,
	},
	[]string{LabelOperation, LabelOutcome},
)

var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency",
		Namespace: Namespace,
		Buckets:   prometheus.DefBuckets,
	},
	[]string{LabelMethod, LabelRoute, LabelStatus},
)
