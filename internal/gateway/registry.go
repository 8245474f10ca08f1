// Package gateway holds the channel→adapter registry.
package gateway

import (
	billingdomain "github.com/pagehub/billing/internal/billing/domain"
	"github.com/pagehub/billing/internal/gateway/domain"
)

type Registry struct {
	gateways map[billingdomain.Channel]domain.Gateway
}

func NewRegistry(gateways ...domain.Gateway) *Registry {
	table := make(map[billingdomain.Channel]domain.Gateway, len(gateways))
	for _, g := range gateways {
		table[g.Channel()] = g
	}
	return &Registry{gateways: table}
}

func (r *Registry) Get(channel billingdomain.Channel) (domain.Gateway, bool) {
	g, ok := r.gateways[channel]
	return g, ok
}
