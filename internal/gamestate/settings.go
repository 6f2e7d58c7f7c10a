package gamestate

import (
	"context"
	"sync"

	"github.com/MrWong99/fearkeeper/internal/entity"
	"github.com/MrWong99/fearkeeper/internal/observe"
	"github.com/MrWong99/fearkeeper/internal/storage"
)

// PartySizeFunc is called after the party size changes value.
type PartySizeFunc func(ctx context.Context, prev, next int)

// SettingsStore owns the fear pool and the party size.
type SettingsStore struct {
	rec      *storage.SharedRecord
	metrics  *observe.Metrics
	onResize []PartySizeFunc

	mu       sync.RWMutex
	settings entity.GameSettings
}

// NewSettingsStore returns a store persisting into the fear and partySize
// fields of rec.
func NewSettingsStore(rec *storage.SharedRecord, m *observe.Metrics) *SettingsStore {
	return &SettingsStore{rec: rec, metrics: m, settings: entity.DefaultSettings()}
}

// OnPartySizeChange registers fn. Register before Mount.
func (s *SettingsStore) OnPartySizeChange(fn PartySizeFunc) {
	s.onResize = append(s.onResize, fn)
}

// Mount resolves each stored field over initial. A stored party size below 1
// is treated as missing, and an initial party size below 1 becomes
// [entity.DefaultPartySize]. Mount never writes.
func (s *SettingsStore) Mount(ctx context.Context, initial entity.GameSettings) {
	fields := s.rec.Fields(ctx)

	out := initial
	var fear entity.Fear
	if storage.Decode(fields[FieldFear], &fear) {
		out.Fear = fear
	}
	var size int
	if storage.Decode(fields[FieldPartySize], &size) && size >= 1 {
		out.PartySize = size
	}
	if out.PartySize < 1 {
		out.PartySize = entity.DefaultPartySize
	}
	out.Fear.Value = clampFear(out.Fear.Value)

	s.mu.Lock()
	s.settings = out
	s.mu.Unlock()
}

// Get returns the current settings.
func (s *SettingsStore) Get() entity.GameSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// SetFear sets the fear value, clamped to [entity.FearMin]..[entity.FearMax].
func (s *SettingsStore) SetFear(ctx context.Context, value int) entity.Fear {
	s.mu.Lock()
	s.settings.Fear.Value = clampFear(value)
	fear := s.settings.Fear
	s.mu.Unlock()

	s.write(ctx, map[string]any{FieldFear: fear})
	return fear
}

// AdjustFear adds delta to the fear value, clamped.
func (s *SettingsStore) AdjustFear(ctx context.Context, delta int) entity.Fear {
	s.mu.Lock()
	s.settings.Fear.Value = clampFear(s.settings.Fear.Value + delta)
	fear := s.settings.Fear
	s.mu.Unlock()

	s.write(ctx, map[string]any{FieldFear: fear})
	return fear
}

// SetFearVisible shows or hides the fear pool from players.
func (s *SettingsStore) SetFearVisible(ctx context.Context, visible bool) entity.Fear {
	s.mu.Lock()
	s.settings.Fear.Visible = visible
	fear := s.settings.Fear
	s.mu.Unlock()

	s.write(ctx, map[string]any{FieldFear: fear})
	return fear
}

// SetPartySize sets the party size, floored at 1, and notifies the
// registered callbacks when the value changed.
func (s *SettingsStore) SetPartySize(ctx context.Context, n int) int {
	prev, next := s.setPartySize(ctx, n)
	if prev != next {
		for _, fn := range s.onResize {
			fn(ctx, prev, next)
		}
	}
	return next
}

// RestorePartySize sets the party size like [SettingsStore.SetPartySize]
// without notifying callbacks. Loading an encounter uses it because the
// loaded adversaries are already sized for the restored party.
func (s *SettingsStore) RestorePartySize(ctx context.Context, n int) int {
	_, next := s.setPartySize(ctx, n)
	return next
}

func (s *SettingsStore) setPartySize(ctx context.Context, n int) (prev, next int) {
	next = max(n, 1)

	s.mu.Lock()
	prev = s.settings.PartySize
	s.settings.PartySize = next
	s.mu.Unlock()

	if prev != next {
		s.write(ctx, map[string]any{FieldPartySize: next})
	}
	return prev, next
}

func (s *SettingsStore) write(ctx context.Context, fields map[string]any) {
	if err := mergeFields(ctx, s.rec, s.metrics, fields); err != nil {
		observe.Logger(ctx).Warn("gamestate: persist settings failed", "err", err)
	}
}

func clampFear(v int) int {
	return min(max(v, entity.FearMin), entity.FearMax)
}
