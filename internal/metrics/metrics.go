// Package metrics exposes Prometheus counters for menu checks and notifications.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ChecksTotal            *prometheus.CounterVec
	CheckDuration          prometheus.Histogram
	BeersChanged           *prometheus.CounterVec
	NotificationsCreated   *prometheus.CounterVec
	NotificationsDelivered *prometheus.CounterVec
}

// New creates the collectors on a private registry.
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beerscanner_checks_total",
			Help: "Menu checks that reached a terminal state, by status.",
		}, []string{"status"}),
		CheckDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "beerscanner_check_duration_seconds",
			Help:    "Fetch plus processing time of a menu check.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		BeersChanged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beerscanner_beers_changed_total",
			Help: "Beers added to or removed from bar menus.",
		}, []string{"kind"}),
		NotificationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beerscanner_notifications_created_total",
			Help: "Notifications raised, by type.",
		}, []string{"type"}),
		NotificationsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beerscanner_notifications_delivered_total",
			Help: "Notification delivery attempts, by outcome.",
		}, []string{"status"}),
	}

	for _, c := range []prometheus.Collector{
		m.ChecksTotal, m.CheckDuration, m.BeersChanged, m.NotificationsCreated, m.NotificationsDelivered,
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveCheck(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ChecksTotal.WithLabelValues(status).Inc()
	m.CheckDuration.Observe(d.Seconds())
}

func (m *Metrics) AddBeersChanged(added, removed int) {
	if m == nil {
		return
	}
	m.BeersChanged.WithLabelValues("added").Add(float64(added))
	m.BeersChanged.WithLabelValues("removed").Add(float64(removed))
}

func (m *Metrics) AddNotificationsCreated(kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.NotificationsCreated.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) IncDelivered(status string) {
	if m == nil {
		return
	}
	m.NotificationsDelivered.WithLabelValues(status).Inc()
}
