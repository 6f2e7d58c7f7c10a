package storage

import (
	"context"
	"encoding/json"

	"github.com/MrWong99/fearkeeper/internal/resilience"
)

// BreakerGateway guards the writes of a remote backend with a circuit
// breaker. While the breaker is open writes fail fast with
// [resilience.ErrCircuitOpen] and Ping reports the same error, so readiness
// probes fail until the backend recovers. Reads pass straight through.
type BreakerGateway struct {
	Gateway
	cb *resilience.CircuitBreaker
}

// NewBreakerGateway wraps gw.
func NewBreakerGateway(gw Gateway, cb *resilience.CircuitBreaker) *BreakerGateway {
	return &BreakerGateway{Gateway: gw, cb: cb}
}

// Write forwards to the wrapped gateway unless the breaker is open.
func (g *BreakerGateway) Write(ctx context.Context, key string, record json.RawMessage) error {
	return g.cb.Execute(func() error {
		return g.Gateway.Write(ctx, key, record)
	})
}

// Ping pings the wrapped gateway through the breaker. Gateways without a
// Ping method are always healthy.
func (g *BreakerGateway) Ping(ctx context.Context) error {
	p, ok := g.Gateway.(Pinger)
	if !ok {
		return nil
	}
	return g.cb.Execute(func() error { return p.Ping(ctx) })
}
