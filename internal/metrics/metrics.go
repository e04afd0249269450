// Package metrics exposes Prometheus metrics for scheduler operations.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reservation outcomes.
const (
	OutcomeCreated  = "created"
	OutcomeConflict = "conflict"
	OutcomeInvalid  = "invalid"
)

// Recorder is the metrics surface used by services and HTTP middleware.
type Recorder interface {
	RecordReservation(outcome string)
	RecordAssignmentTransition(status string)
	RecordOverdueQuery(count int)
	RecordHTTPRequest(method, route string, status int, latency time.Duration)
}

// Collector records metrics into a Prometheus registry.
type Collector struct {
	reservations *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	overdue      prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_reservation_requests_total",
			Help: "Reservation creation attempts by outcome",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_assignment_transitions_total",
			Help: "Duty assignment state changes by resulting status",
		}, []string{"status"}),
		overdue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scheduler_overdue_assignments",
			Help: "Overdue assignments seen by the most recent overdue query",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scheduler_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.reservations,
		c.transitions,
		c.overdue,
		c.httpRequests,
		c.httpLatency,
	)

	return c
}

func (c *Collector) RecordReservation(outcome string) {
	c.reservations.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordAssignmentTransition(status string) {
	c.transitions.WithLabelValues(status).Inc()
}

func (c *Collector) RecordOverdueQuery(count int) {
	c.overdue.Set(float64(count))
}

func (c *Collector) RecordHTTPRequest(method, route string, status int, latency time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(latency.Seconds())
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordReservation(string) {}
func (Nop) RecordAssignmentTransition(string) {}
func (Nop) RecordOverdueQuery(int) {}
func (Nop) RecordHTTPRequest(string, string, int, time.Duration) {}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
