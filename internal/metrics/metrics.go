// Package metrics exposes Prometheus counters for the bidding, reveal,
// affiliate and role-verification flows.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so tests can build independent instances.
type Metrics struct {
	registry *prometheus.Registry

	BidAccept          *prometheus.CounterVec
	AffiliateActivate  *prometheus.CounterVec
	RoleVerification   *prometheus.CounterVec
	RevealTransition   *prometheus.CounterVec
	BidSubmitted       prometheus.Counter
	RoleSessionsActive prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		BidAccept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "procure",
			Name:      "bid_accept_total",
			Help:      "Accept-bid attempts by outcome.",
		}, []string{"outcome"}),
		AffiliateActivate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "procure",
			Name:      "affiliate_activation_total",
			Help:      "FIFO activation attempts by outcome.",
		}, []string{"outcome"}),
		RoleVerification: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "procure",
			Name:      "role_verification_total",
			Help:      "Management role verification attempts.",
		}, []string{"method", "outcome"}),
		RevealTransition: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "procure",
			Name:      "reveal_transition_total",
			Help:      "Reveal request transitions by target status.",
		}, []string{"to"}),
		BidSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "procure",
			Name:      "bid_submitted_total",
			Help:      "Bids accepted into the ledger.",
		}),
		RoleSessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "procure",
			Name:      "role_sessions_active",
			Help:      "Verified management role sessions currently held in memory.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.BidAccept,
		m.AffiliateActivate,
		m.RoleVerification,
		m.RevealTransition,
		m.BidSubmitted,
		m.RoleSessionsActive,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
