// Package telemetry exposes Prometheus metrics for the booking service:
// HTTP traffic, booking outcomes, reminder sweeps and notification
// delivery. Each Collector owns its registry so tests and multiple
// servers in one process do not collide on registration.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "booking"

// Collector records service metrics.
type Collector struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	bookings      *prometheus.CounterVec
	sweeps        prometheus.Counter
	remindersDue  prometheus.Counter
	remindersSent prometheus.Counter
	remindersFail prometheus.Counter
	lastSweep     prometheus.Gauge
	notifications *prometheus.CounterVec
}

// NewCollector builds a collector with process and Go runtime metrics
// already registered.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_sweeps_total",
			Help:      "Completed reminder sweeps",
		}),
		remindersDue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_due_total",
			Help:      "Appointments found due for a reminder",
		}),
		remindersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_sent_total",
			Help:      "Appointments marked as reminded",
		}),
		remindersFail: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_failed_total",
			Help:      "Due appointments left unmarked after a sweep",
		}),
		lastSweep: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reminder_last_sweep_timestamp_seconds",
			Help:      "Unix time of the last completed reminder sweep",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification sends by transport and result",
		}, []string{"transport", "result"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.httpRequests,
		c.httpDuration,
		c.bookings,
		c.sweeps,
		c.remindersDue,
		c.remindersSent,
		c.remindersFail,
		c.lastSweep,
		c.notifications,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// RecordHTTPRequest records one served request.
func (c *Collector) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordBooking counts a booking attempt.
func (c *Collector) RecordBooking(outcome string) {
	c.bookings.WithLabelValues(outcome).Inc()
}

// RecordSweep records the counts of a finished reminder sweep.
func (c *Collector) RecordSweep(due, sent, failed int) {
	c.sweeps.Inc()
	c.remindersDue.Add(float64(due))
	c.remindersSent.Add(float64(sent))
	c.remindersFail.Add(float64(failed))
	c.lastSweep.SetToCurrentTime()
}

// RecordNotification counts one notification send.
func (c *Collector) RecordNotification(transport string, delivered bool) {
	result := "failed"
	if delivered {
		result = "delivered"
	}
	c.notifications.WithLabelValues(transport, result).Inc()
}

// Middleware records request counts and latency labelled by the matched
// route template, so path parameters do not explode cardinality.
func (c *Collector) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)

			status := ctx.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			c.RecordHTTPRequest(ctx.Request().Method, route, status, time.Since(start))
			return err
		}
	}
}
