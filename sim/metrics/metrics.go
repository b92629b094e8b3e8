// Package metrics exports the activity of the emulated interrupt controller
// as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implements pic.Observer. Collectors are registered with a private
// registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	raised     *prometheus.CounterVec
	coalesced  *prometheus.CounterVec
	delivered  *prometheus.CounterVec
	isrTime    prometheus.Histogram
	maskedTime prometheus.Histogram
	installed  prometheus.Gauge
}

// New creates and registers the simulator collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		raised: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "irqsim", Name: "interrupts_raised_total", Help: "interrupts raised by line"},
			[]string{"line"},
		),
		coalesced: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "irqsim", Name: "interrupts_coalesced_total", Help: "interrupts raised while already pending, by line"},
			[]string{"line"},
		),
		delivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "irqsim", Name: "interrupts_delivered_total", Help: "interrupts delivered to the handler table, by line"},
			[]string{"line"},
		),
		isrTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "irqsim",
				Name:      "isr_duration_seconds",
				Help:      "time spent running handlers in interrupt context",
				Buckets:   prometheus.ExponentialBuckets(1e-7, 4, 10),
			},
		),
		maskedTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "irqsim",
				Name:      "critical_section_duration_seconds",
				Help:      "time interrupt delivery was disabled by the foreground",
				Buckets:   prometheus.ExponentialBuckets(1e-7, 4, 10),
			},
		),
		installed: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: "irqsim", Name: "handlers_installed", Help: "handler table entries with an ISR installed"},
		),
	}

	m.registry.MustRegister(
		m.raised,
		m.coalesced,
		m.delivered,
		m.isrTime,
		m.maskedTime,
		m.installed,
	)

	return m
}

// Registry returns the registry holding the simulator collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Raised implements pic.Observer.
func (m *Metrics) Raised(line int) {
	m.raised.WithLabelValues(strconv.Itoa(line)).Inc()
}

// Coalesced implements pic.Observer.
func (m *Metrics) Coalesced(line int) {
	m.coalesced.WithLabelValues(strconv.Itoa(line)).Inc()
}

// Delivered implements pic.Observer.
func (m *Metrics) Delivered(line int, took time.Duration) {
	m.delivered.WithLabelValues(strconv.Itoa(line)).Inc()
	m.isrTime.Observe(took.Seconds())
}

// InterruptsDisabled implements pic.Observer.
func (m *Metrics) InterruptsDisabled(held time.Duration) {
	m.maskedTime.Observe(held.Seconds())
}

// SetInstalled records the number of handler table entries in use.
func (m *Metrics) SetInstalled(n int) {
	m.installed.Set(float64(n))
}
