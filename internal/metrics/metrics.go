// Package metrics exposes the bridge's Prometheus counters.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every bridge metric. A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	events        *prometheus.CounterVec
	eventsDropped *prometheus.CounterVec
	ticketsFlush  *prometheus.CounterVec
	dispatches    *prometheus.CounterVec
	dispatchTime  prometheus.Histogram
	jobs          *prometheus.CounterVec
	logoFallbacks prometheus.Counter
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "printbridge_events_total",
			Help: "Events accepted per stream",
		}, []string{"stream"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "printbridge_events_dropped_total",
			Help: "Events dropped at ingestion",
		}, []string{"reason"}),
		ticketsFlush: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "printbridge_tickets_flushed_total",
			Help: "Grouped tickets flushed per document kind",
		}, []string{"kind"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "printbridge_dispatch_total",
			Help: "Socket dispatches by result",
		}, []string{"result"}),
		dispatchTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "printbridge_dispatch_duration_seconds",
			Help:    "Time from resolve to socket close",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "printbridge_jobs_total",
			Help: "Explicit print jobs by type and final status",
		}, []string{"type", "status"}),
		logoFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "printbridge_logo_fallback_total",
			Help: "Receipts printed with the text fallback instead of a logo",
		}),
	}
	c.registry.MustRegister(c.events, c.eventsDropped, c.ticketsFlush,
		c.dispatches, c.dispatchTime, c.jobs, c.logoFallbacks)
	return c
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordEvent(stream string) {
	if c == nil {
		return
	}
	c.events.WithLabelValues(stream).Inc()
}

func (c *Collector) RecordDrop(reason string) {
	if c == nil {
		return
	}
	c.eventsDropped.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordFlush(kind string) {
	if c == nil {
		return
	}
	c.ticketsFlush.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordDispatch(err error, d time.Duration) {
	if c == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	c.dispatches.WithLabelValues(result).Inc()
	c.dispatchTime.Observe(d.Seconds())
}

func (c *Collector) RecordJob(jobType, status string) {
	if c == nil {
		return
	}
	c.jobs.WithLabelValues(jobType, status).Inc()
}

func (c *Collector) RecordLogoFallback() {
	if c == nil {
		return
	}
	c.logoFallbacks.Inc()
}
