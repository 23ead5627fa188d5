package gateway

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Metrics is the gateway's prometheus instrumentation, registered once
// per process and shared across every Orchestrator instance.
type Metrics struct {
	InboundTotal   *prometheus.CounterVec
	DeniedTotal    *prometheus.CounterVec
	TurnDuration   *prometheus.HistogramVec
	TurnErrors     *prometheus.CounterVec
}

// NewMetrics creates and registers the gateway's metric collectors
// against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		InboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dexter_gateway_inbound_total",
			Help: "Total inbound messages handled, by channel.",
		}, []string{"channel"}),
		DeniedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dexter_gateway_denied_total",
			Help: "Total inbound messages denied by access control, by reason.",
		}, []string{"reason"}),
		TurnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dexter_gateway_turn_duration_seconds",
			Help:    "Agent turn wall-clock duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"channel"}),
		TurnErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dexter_gateway_turn_errors_total",
			Help: "Total agent turns that ended in an error.",
		}, []string{"channel"}),
	}
	reg.MustRegister(m.InboundTotal, m.DeniedTotal, m.TurnDuration, m.TurnErrors)
	return m
}

var tracer = otel.Tracer("github.com/virattt/dexter-sub002/internal/gateway")

// traceTurn wraps runTurn in one "gateway.turn" OpenTelemetry span, using
// the globally registered tracer provider; nothing else in the gateway
// creates spans. turnID is attached as a span attribute so a trace can be
// correlated back to the turnID logged alongside it.
func traceTurn(ctx context.Context, sessionKey, turnID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "gateway.turn", trace.WithAttributes(
		attribute.String("session_key", sessionKey),
		attribute.String("turn_id", turnID),
	))
}

// observeTurn records turn-level prometheus metrics once a turn finishes.
func (m *Metrics) observeTurn(channel string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.TurnDuration.WithLabelValues(channel).Observe(time.Since(start).Seconds())
	if err != nil {
		m.TurnErrors.WithLabelValues(channel).Inc()
	}
}
