package gamestate

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/fearkeeper/internal/entity"
	"github.com/MrWong99/fearkeeper/internal/observe"
	"github.com/MrWong99/fearkeeper/internal/storage"
)

// EncounterStore owns the saved encounters and the name of the encounter
// currently on the table.
type EncounterStore struct {
	*entity.Collection[entity.Encounter]

	rec     *storage.SharedRecord
	metrics *observe.Metrics
	now     func() time.Time

	mu      sync.RWMutex
	current string
}

// EncounterOption configures an [EncounterStore].
type EncounterOption func(*EncounterStore)

// WithClock overrides the clock used for createdAt and updatedAt.
func WithClock(now func() time.Time) EncounterOption {
	return func(s *EncounterStore) { s.now = now }
}

// NewEncounterStore returns a store persisting into the savedEncounters and
// currentEncounterName fields of rec.
func NewEncounterStore(rec *storage.SharedRecord, m *observe.Metrics, opts ...EncounterOption) *EncounterStore {
	s := &EncounterStore{
		Collection: entity.NewCollection(entity.EncounterKind,
			entity.WithPersist(fieldPersist[entity.Encounter](rec, FieldSavedEncounters, m)),
		),
		rec:     rec,
		metrics: m,
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Mount loads the saved encounters and current name, or initial when none
// are stored.
func (s *EncounterStore) Mount(ctx context.Context, initial []entity.Encounter) {
	fields := s.rec.Fields(ctx)
	s.Collection.Mount(ctx, storedOr(fields[FieldSavedEncounters], initial))

	var name string
	storage.Decode(fields[FieldCurrentEncounterName], &name)
	s.mu.Lock()
	s.current = name
	s.mu.Unlock()
}

// Current returns the name of the encounter on the table, or "".
func (s *EncounterStore) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Save stores an encounter under name. An existing encounter with the same
// name (case-insensitive) is overwritten and keeps its id and createdAt.
// The saved encounter becomes the current one.
func (s *EncounterStore) Save(ctx context.Context, name string, items []entity.EncounterItem, partySize int, adjustments map[string]any) entity.Encounter {
	now := s.now().UTC()
	draft := entity.Encounter{
		Name:                    name,
		Items:                   items,
		PartySize:               partySize,
		BattlePointsAdjustments: adjustments,
		UpdatedAt:               now,
	}

	var saved entity.Encounter
	if existing, ok := s.findByName(name); ok {
		saved, _ = s.Collection.Update(ctx, existing.ID, func(e *entity.Encounter) {
			draft.CreatedAt = e.CreatedAt
			*e = draft
		})
	} else {
		draft.CreatedAt = now
		saved = s.Collection.Create(ctx, draft)
	}
	s.setCurrent(ctx, saved.Name)
	return saved
}

// Load returns the encounter with the given id and makes it current.
func (s *EncounterStore) Load(ctx context.Context, id string) (entity.Encounter, bool) {
	enc, ok := s.Get(id)
	if !ok {
		return entity.Encounter{}, false
	}
	s.setCurrent(ctx, enc.Name)
	return enc, true
}

// Rename changes an encounter's name and bumps updatedAt.
func (s *EncounterStore) Rename(ctx context.Context, id, name string) (entity.Encounter, bool) {
	old, ok := s.Get(id)
	if !ok {
		return entity.Encounter{}, false
	}
	now := s.now().UTC()
	enc, ok := s.Collection.Update(ctx, id, func(e *entity.Encounter) {
		e.Name = name
		e.UpdatedAt = now
	})
	if ok && s.Current() == old.Name {
		s.setCurrent(ctx, name)
	}
	return enc, ok
}

// Delete removes a saved encounter. Deleting the current encounter clears
// the current name.
func (s *EncounterStore) Delete(ctx context.Context, id string) bool {
	enc, ok := s.Get(id)
	if !ok {
		return false
	}
	s.Collection.Delete(ctx, id)
	if s.Current() == enc.Name {
		s.setCurrent(ctx, "")
	}
	return true
}

func (s *EncounterStore) findByName(name string) (entity.Encounter, bool) {
	for _, e := range s.List() {
		if strings.EqualFold(e.Name, name) {
			return e, true
		}
	}
	return entity.Encounter{}, false
}

func (s *EncounterStore) setCurrent(ctx context.Context, name string) {
	s.mu.Lock()
	s.current = name
	s.mu.Unlock()

	if err := mergeFields(ctx, s.rec, s.metrics, map[string]any{FieldCurrentEncounterName: name}); err != nil {
		observe.Logger(ctx).Warn("gamestate: persist current encounter failed", "err", err)
	}
}
