package gamestate

import (
	"context"

	"github.com/MrWong99/fearkeeper/internal/entity"
	"github.com/MrWong99/fearkeeper/internal/observe"
	"github.com/MrWong99/fearkeeper/internal/storage"
)

// AdversaryStore owns the adversaries in play. Display names are unique and
// HP and stress are clamped on every write.
type AdversaryStore struct {
	*entity.Collection[entity.Adversary]

	rec     *storage.SharedRecord
	metrics *observe.Metrics
}

// NewAdversaryStore returns a store persisting into the adversaries field of
// rec. m may be nil.
func NewAdversaryStore(rec *storage.SharedRecord, m *observe.Metrics, opts ...entity.Option[entity.Adversary]) *AdversaryStore {
	opts = append([]entity.Option[entity.Adversary]{
		entity.WithPersist(fieldPersist[entity.Adversary](rec, FieldAdversaries, m)),
	}, opts...)
	return &AdversaryStore{
		Collection: entity.NewCollection(entity.AdversaryKind, opts...),
		rec:        rec,
		metrics:    m,
	}
}

// Mount loads the stored adversaries, or initial when none are stored.
func (s *AdversaryStore) Mount(ctx context.Context, initial []entity.Adversary) {
	items := storedOr(s.rec.Field(ctx, FieldAdversaries), initial)
	for i := range items {
		items[i].Clamp()
	}
	before := s.Len()
	s.Collection.Mount(ctx, items)
	s.gauge(ctx, len(items)-before)
}

// Create adds a clamped copy of a.
func (s *AdversaryStore) Create(ctx context.Context, a entity.Adversary) entity.Adversary {
	a.Clamp()
	out := s.Collection.Create(ctx, a)
	s.gauge(ctx, 1)
	return out
}

// BulkCreate adds clamped copies of items with a single write.
func (s *AdversaryStore) BulkCreate(ctx context.Context, items []entity.Adversary) []entity.Adversary {
	clamped := make([]entity.Adversary, len(items))
	for i, a := range items {
		a.Clamp()
		clamped[i] = a
	}
	out := s.Collection.BulkCreate(ctx, clamped)
	s.gauge(ctx, len(out))
	return out
}

// Update applies fn and clamps the result.
func (s *AdversaryStore) Update(ctx context.Context, id string, fn func(*entity.Adversary)) (entity.Adversary, bool) {
	return s.Collection.Update(ctx, id, func(a *entity.Adversary) {
		fn(a)
		a.Clamp()
	})
}

// Delete removes the adversary with the given id.
func (s *AdversaryStore) Delete(ctx context.Context, id string) bool {
	ok := s.Collection.Delete(ctx, id)
	if ok {
		s.gauge(ctx, -1)
	}
	return ok
}

// Replace stores items as the new contents in the given order.
func (s *AdversaryStore) Replace(ctx context.Context, items []entity.Adversary) {
	before := s.Len()
	s.Collection.Replace(ctx, items)
	s.gauge(ctx, len(items)-before)
}

func (s *AdversaryStore) gauge(ctx context.Context, delta int) {
	if s.metrics != nil && delta != 0 {
		s.metrics.ActiveAdversaries.Add(ctx, int64(delta))
	}
}

// EnvironmentStore owns the environments in play. Display names are unique.
type EnvironmentStore struct {
	*entity.Collection[entity.Environment]

	rec *storage.SharedRecord
}

// NewEnvironmentStore returns a store persisting into the environments field
// of rec.
func NewEnvironmentStore(rec *storage.SharedRecord, m *observe.Metrics, opts ...entity.Option[entity.Environment]) *EnvironmentStore {
	opts = append([]entity.Option[entity.Environment]{
		entity.WithPersist(fieldPersist[entity.Environment](rec, FieldEnvironments, m)),
	}, opts...)
	return &EnvironmentStore{
		Collection: entity.NewCollection(entity.EnvironmentKind, opts...),
		rec:        rec,
	}
}

// Mount loads the stored environments, or initial when none are stored.
func (s *EnvironmentStore) Mount(ctx context.Context, initial []entity.Environment) {
	s.Collection.Mount(ctx, storedOr(s.rec.Field(ctx, FieldEnvironments), initial))
}

// CountdownStore owns the countdowns. Names are not deduplicated.
type CountdownStore struct {
	*entity.Collection[entity.Countdown]

	rec *storage.SharedRecord
}

// NewCountdownStore returns a store persisting into the countdowns field of
// rec.
func NewCountdownStore(rec *storage.SharedRecord, m *observe.Metrics, opts ...entity.Option[entity.Countdown]) *CountdownStore {
	opts = append([]entity.Option[entity.Countdown]{
		entity.WithPersist(fieldPersist[entity.Countdown](rec, FieldCountdowns, m)),
	}, opts...)
	return &CountdownStore{
		Collection: entity.NewCollection(entity.CountdownKind, opts...),
		rec:        rec,
	}
}

// Mount loads the stored countdowns, or initial when none are stored.
func (s *CountdownStore) Mount(ctx context.Context, initial []entity.Countdown) {
	items := storedOr(s.rec.Field(ctx, FieldCountdowns), initial)
	for i := range items {
		items[i].Clamp()
	}
	s.Collection.Mount(ctx, items)
}

// Create adds c. An empty type becomes standard and the value is clamped.
func (s *CountdownStore) Create(ctx context.Context, c entity.Countdown) entity.Countdown {
	if c.Type == "" {
		c.Type = entity.CountdownStandard
	}
	c.Clamp()
	return s.Collection.Create(ctx, c)
}

// Update applies fn and clamps the result.
func (s *CountdownStore) Update(ctx context.Context, id string, fn func(*entity.Countdown)) (entity.Countdown, bool) {
	return s.Collection.Update(ctx, id, func(c *entity.Countdown) {
		fn(c)
		c.Clamp()
	})
}

// Advance moves the countdown by delta. The value clamps to 0..max, except
// that a loop countdown pushed past max starts again from 0.
func (s *CountdownStore) Advance(ctx context.Context, id string, delta int) (entity.Countdown, bool) {
	return s.Update(ctx, id, func(c *entity.Countdown) {
		next := c.Value + delta
		if c.Type == entity.CountdownLoop && next > c.Max {
			next = 0
		}
		c.Value = next
	})
}
