package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Autobilling outcomes recorded on AutobillingEvents.
const (
	OutcomeBilled    = "billed"
	OutcomeDisabled  = "disabled"
	OutcomeDuplicate = "duplicate"
	OutcomeUnmatched = "unmatched"
	OutcomeDropped   = "dropped"
	OutcomeFailed    = "failed"
)

type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	BillsCreated       *prometheus.CounterVec
	BillLinesUnmatched *prometheus.CounterVec
	AutobillingEvents  *prometheus.CounterVec
	AutobillingDropped prometheus.Counter
	AutobillingQueue   prometheus.Gauge
	PricesImported     *prometheus.CounterVec

	DBConnections prometheus.Gauge

	AuditEntriesTotal  prometheus.Counter
	AuditBufferDropped prometheus.Counter
	NotificationsSent  *prometheus.CounterVec
}

// NewCollector registers every series on reg. Pass prometheus.DefaultRegisterer
// in the server and a fresh registry in tests.
func NewCollector(serviceName string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path", "status"}),

		InFlightGauge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		BillsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "billing",
			Name:      "bills_created_total",
			Help:      "Bills created, by trigger. Manual bills use trigger=\"manual\".",
		}, []string{"trigger"}),

		BillLinesUnmatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "billing",
			Name:      "bill_lines_unmatched_total",
			Help:      "Requested bill lines left off because no price list entry matched.",
		}, []string{"category"}),

		AutobillingEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "billing",
			Name:      "autobilling_events_total",
			Help:      "Autobilling trigger events by trigger and outcome.",
		}, []string{"trigger", "outcome"}),

		AutobillingDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "billing",
			Name:      "autobilling_dropped_total",
			Help:      "Trigger events dropped because the intake queue was full. Alert if non-zero.",
		}),

		AutobillingQueue: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "billing",
			Name:      "autobilling_queue_depth",
			Help:      "Trigger events waiting in the intake queues.",
		}),

		PricesImported: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "billing",
			Name:      "prices_imported_total",
			Help:      "Price list rows imported, by result (created, updated, rejected).",
		}, []string{"result"}),

		DBConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "db",
			Name:      "open_connections",
			Help:      "Current number of open database connections.",
		}),

		AuditEntriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "audit",
			Name:      "entries_total",
			Help:      "Total audit log entries written.",
		}),

		AuditBufferDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "audit",
			Name:      "buffer_dropped_total",
			Help:      "Audit entries dropped due to full buffer. Alert if non-zero.",
		}),

		NotificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "notifications",
			Name:      "sent_total",
			Help:      "Notifications persisted, by type and result.",
		}, []string{"type", "result"}),
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
