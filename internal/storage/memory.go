package storage

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
)

// Compile-time assertion that MemGateway satisfies the Gateway interface.
var _ Gateway = (*MemGateway)(nil)

// MemGateway is a thread-safe, in-memory [Gateway].
// The zero value is ready to use.
type MemGateway struct {
	mu      sync.RWMutex
	records map[string][]byte
	writes  int
}

// NewMemGateway returns an initialised [MemGateway].
func NewMemGateway() *MemGateway {
	return &MemGateway{records: make(map[string][]byte)}
}

// Read implements [Gateway.Read].
func (g *MemGateway) Read(_ context.Context, key string) json.RawMessage {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return validRecord(slices.Clone(g.records[key]))
}

// Write implements [Gateway.Write].
func (g *MemGateway) Write(_ context.Context, key string, record json.RawMessage) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.records == nil {
		g.records = make(map[string][]byte)
	}
	g.records[key] = slices.Clone(record)
	g.writes++
	return nil
}

// Seed stores raw bytes under key without validation. Tests use it to plant
// corrupt records.
func (g *MemGateway) Seed(key string, raw []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.records == nil {
		g.records = make(map[string][]byte)
	}
	g.records[key] = slices.Clone(raw)
}

// Writes returns how many times Write has been called.
func (g *MemGateway) Writes() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.writes
}

// Close implements [Gateway.Close]. It is a no-op.
func (g *MemGateway) Close() error { return nil }
