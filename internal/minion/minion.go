// Package minion keeps minion groups sized to the party.
//
// Minions come in groups of one per party member. When the party grows or
// shrinks, every group of minions sharing a base name is cloned up or trimmed
// down so the number of groups on the table stays the same.
package minion

import (
	"context"
	"log/slog"
	"sync"

	"github.com/MrWong99/fearkeeper/internal/entity"
	"github.com/MrWong99/fearkeeper/internal/observe"
)

// Store is the adversary store the scaler mutates.
type Store interface {
	List() []entity.Adversary
	BulkCreate(ctx context.Context, items []entity.Adversary) []entity.Adversary
	Delete(ctx context.Context, id string) bool
}

// Scaler reacts to party-size changes. The zero value is not usable; create
// one with [New].
type Scaler struct {
	store   Store
	metrics *observe.Metrics

	mu   sync.Mutex
	last int
}

// New returns a scaler working on store. m may be nil.
func New(store Store, m *observe.Metrics) *Scaler {
	return &Scaler{store: store, metrics: m}
}

// Observe records size as the current party size without scaling.
func (s *Scaler) Observe(size int) {
	s.mu.Lock()
	s.last = size
	s.mu.Unlock()
}

// Last returns the most recently observed party size, 0 before the first
// observation.
func (s *Scaler) Last() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Apply rescales every minion group for a party of size next. It does nothing
// when next equals the last observed size, and only records next when no
// size has been observed yet.
func (s *Scaler) Apply(ctx context.Context, next int) {
	s.mu.Lock()
	prev := s.last
	if next == prev {
		s.mu.Unlock()
		return
	}
	s.last = next
	s.mu.Unlock()

	if prev <= 0 || next <= 0 {
		return
	}

	for _, g := range Groups(s.store.List()) {
		if !g.Members[0].IsMinion() {
			continue
		}
		s.scale(ctx, g, prev, next)
	}
}

func (s *Scaler) scale(ctx context.Context, g Group, prev, next int) {
	have := len(g.Members)
	groups := (have + prev - 1) / prev
	want := groups * next

	switch {
	case want > have:
		clones := make([]entity.Adversary, want-have)
		for i := range clones {
			c := g.Members[0].Clone()
			c.ID = ""
			c.Name = g.Base
			clones[i] = c
		}
		created := s.store.BulkCreate(ctx, clones)
		s.record(ctx, len(created))
		slog.Debug("minion: scaled up", "base", g.Base, "from", have, "to", want)
	case want < have:
		removed := 0
		for i := have - 1; i >= want; i-- {
			if s.store.Delete(ctx, g.Members[i].ID) {
				removed++
			}
		}
		s.record(ctx, -removed)
		slog.Debug("minion: scaled down", "base", g.Base, "from", have, "to", want)
	}
}

func (s *Scaler) record(ctx context.Context, n int) {
	if s.metrics != nil && n != 0 {
		s.metrics.RecordMinionsScaled(ctx, n)
	}
}

// Group is every adversary sharing one base name, in list order.
type Group struct {
	Base    string
	Members []entity.Adversary
}

// Groups partitions items by base name. Groups are ordered by the first
// appearance of their base name.
func Groups(items []entity.Adversary) []Group {
	index := make(map[string]int)
	var out []Group
	for _, a := range items {
		base := a.BaseName()
		i, ok := index[base]
		if !ok {
			i = len(out)
			index[base] = i
			out = append(out, Group{Base: base})
		}
		out[i].Members = append(out[i].Members, a)
	}
	return out
}
