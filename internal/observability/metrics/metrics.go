// Package metrics exposes prometheus instruments for the billing service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
)

type Metrics struct {
	ordersCreated *prometheus.CounterVec
	webhookEvents *prometheus.CounterVec
}

func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_orders_created_total",
			Help: "Billing orders created, by channel and idempotent reuse.",
		}, []string{"channel", "reused"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billing_webhook_events_total",
			Help: "Payment webhook deliveries, by channel and reconciliation outcome.",
		}, []string{"channel", "kind", "reason"}),
	}
	reg.MustRegister(m.ordersCreated, m.webhookEvents)
	return m
}

func (m *Metrics) RecordOrderCreated(channel string, reused bool) {
	if m == nil {
		return
	}
	label := "false"
	if reused {
		label = "true"
	}
	m.ordersCreated.WithLabelValues(channel, label).Inc()
}

func (m *Metrics) RecordWebhookEvent(channel, kind, reason string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(channel, kind, reason).Inc()
}

func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	return reg
}

var Module = fx.Module("observability.metrics",
	fx.Provide(NewRegistry),
	fx.Provide(New),
)
