// Package metrics provides the observability primitives shared by the
// server router and client connection: structured logging (github.com/rs/
// zerolog), Prometheus metrics (github.com/prometheus/client_golang), and
// OpenTelemetry tracing spans (go.opentelemetry.io/otel).
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector aggregates the Prometheus series named in spec.md's DOMAIN
// STACK: handshake outcomes, live session count, per-client outbox depth,
// and relay-side error counts.
type Collector struct {
	Registry *prometheus.Registry

	HandshakesTotal  *prometheus.CounterVec // labels: result (success, failure)
	SessionsActive   prometheus.Gauge
	OutboxDepth      *prometheus.GaugeVec // labels: client_id
	RelayErrorsTotal *prometheus.CounterVec
}

// NewCollector registers a fresh set of VCSMS metrics against a new
// Prometheus registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		Registry: reg,
		HandshakesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vcsms",
			Name:      "handshakes_total",
			Help:      "Completed handshakes by outcome token.",
		}, []string{"result"}),
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "vcsms",
			Name:      "sessions_active",
			Help:      "Number of currently authenticated, routed sessions.",
		}),
		OutboxDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "vcsms",
			Name:      "outbox_depth",
			Help:      "Number of messages queued in a client's outbox.",
		}, []string{"client_id"}),
		RelayErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vcsms",
			Name:      "relay_errors_total",
			Help:      "In-band errors reported back to a sender, by kind.",
		}, []string{"kind"}),
	}
}

// RecordHandshake increments the handshake counter for the given outcome
// (router.Listener records "success" or "failure").
func (c *Collector) RecordHandshake(result string) {
	c.HandshakesTotal.WithLabelValues(result).Inc()
}

// SessionStarted increments the active-session gauge.
func (c *Collector) SessionStarted() { c.SessionsActive.Inc() }

// SessionEnded decrements the active-session gauge.
func (c *Collector) SessionEnded() { c.SessionsActive.Dec() }

// SetOutboxDepth records the current backlog for clientID.
func (c *Collector) SetOutboxDepth(clientID string, depth int) {
	c.OutboxDepth.WithLabelValues(clientID).Set(float64(depth))
}

// RecordRelayError increments the relay-error counter for the given kind
// (pkg/router records ciphertext_malformed, invalid_iv,
// message_decryption_failure, message_malformed and outbox_overflow).
func (c *Collector) RecordRelayError(kind string) {
	c.RelayErrorsTotal.WithLabelValues(kind).Inc()
}

var (
	globalCollector     *Collector
	globalCollectorOnce sync.Once
)

// Global returns the process-wide Collector, creating it on first use.
func Global() *Collector {
	globalCollectorOnce.Do(func() {
		globalCollector = NewCollector()
	})
	return globalCollector
}
