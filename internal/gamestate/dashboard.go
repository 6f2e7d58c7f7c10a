package gamestate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrWong99/fearkeeper/internal/combat"
	"github.com/MrWong99/fearkeeper/internal/entity"
	"github.com/MrWong99/fearkeeper/internal/focus"
	"github.com/MrWong99/fearkeeper/internal/minion"
	"github.com/MrWong99/fearkeeper/internal/naming"
	"github.com/MrWong99/fearkeeper/internal/observe"
	"github.com/MrWong99/fearkeeper/internal/storage"
)

// Dashboard is the game-master dashboard: every store mounted from one
// gateway, with combat, minion scaling and focus wired in.
//
// All methods are safe for concurrent use. Mutations are serialised by one
// mutex and apply in call order.
type Dashboard struct {
	mu sync.Mutex

	metrics *observe.Metrics
	tracker *focus.Tracker
	now     func() time.Time
	initial entity.GameSettings

	adversaries  *AdversaryStore
	environments *EnvironmentStore
	countdowns   *CountdownStore
	encounters   *EncounterStore
	settings     *SettingsStore
	custom       *CustomContentStore

	scaler   *minion.Scaler
	resolver *combat.Resolver
}

// Option configures a [Dashboard].
type Option func(*Dashboard)

// WithMetrics records store writes and combat events on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Dashboard) { d.metrics = m }
}

// WithTracker uses t as the focus tracker instead of a private one.
func WithTracker(t *focus.Tracker) Option {
	return func(d *Dashboard) { d.tracker = t }
}

// WithNow overrides the clock stamped on saved encounters.
func WithNow(now func() time.Time) Option {
	return func(d *Dashboard) { d.now = now }
}

// WithInitialSettings sets the settings used for fields that are not
// stored yet.
func WithInitialSettings(s entity.GameSettings) Option {
	return func(d *Dashboard) { d.initial = s }
}

// New builds a dashboard on gw. Call [Dashboard.Mount] before use.
func New(gw storage.Gateway, opts ...Option) *Dashboard {
	d := &Dashboard{
		now:     time.Now,
		initial: entity.DefaultSettings(),
	}
	for _, o := range opts {
		o(d)
	}
	if d.tracker == nil {
		d.tracker = focus.NewTracker()
	}

	rec := storage.NewSharedRecord(gw, storage.KeyGameState)
	d.adversaries = NewAdversaryStore(rec, d.metrics, entity.WithObserver[entity.Adversary](focusObserver[entity.Adversary]{
		tracker: d.tracker, kind: focus.KindAdversary, id: func(a entity.Adversary) string { return a.ID },
	}))
	d.environments = NewEnvironmentStore(rec, d.metrics, entity.WithObserver[entity.Environment](focusObserver[entity.Environment]{
		tracker: d.tracker, kind: focus.KindEnvironment, id: func(e entity.Environment) string { return e.ID },
	}))
	d.countdowns = NewCountdownStore(rec, d.metrics, entity.WithObserver[entity.Countdown](focusObserver[entity.Countdown]{
		tracker: d.tracker, kind: focus.KindCountdown, id: func(c entity.Countdown) string { return c.ID },
	}))
	d.encounters = NewEncounterStore(rec, d.metrics, WithClock(func() time.Time { return d.now() }))
	d.settings = NewSettingsStore(rec, d.metrics)
	d.custom = NewCustomContentStore(gw, d.metrics)

	d.scaler = minion.New(d.adversaries, d.metrics)
	d.resolver = combat.NewResolver(d.adversaries, d.metrics)
	d.settings.OnPartySizeChange(func(ctx context.Context, _, next int) {
		d.scaler.Apply(ctx, next)
	})
	return d
}

// Mount loads every store from storage. It never writes.
func (d *Dashboard) Mount(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.settings.Mount(ctx, d.initial)
	d.adversaries.Mount(ctx, nil)
	d.environments.Mount(ctx, nil)
	d.countdowns.Mount(ctx, nil)
	d.encounters.Mount(ctx, nil)
	d.custom.Mount(ctx)
	d.scaler.Observe(d.settings.Get().PartySize)
}

// Tracker returns the focus tracker.
func (d *Dashboard) Tracker() *focus.Tracker { return d.tracker }

// State is a read-only snapshot of the whole dashboard.
type State struct {
	Settings             entity.GameSettings  `json:"settings"`
	Adversaries          []entity.Adversary   `json:"adversaries"`
	Environments         []entity.Environment `json:"environments"`
	Countdowns           []entity.Countdown   `json:"countdowns"`
	SavedEncounters      []entity.Encounter   `json:"savedEncounters"`
	CurrentEncounterName string               `json:"currentEncounterName"`
	CustomAdversaries    []entity.Adversary   `json:"customAdversaries"`
	CustomEnvironments   []entity.Environment `json:"customEnvironments"`
	Focus                *focus.Selection     `json:"focus,omitempty"`
}

// Snapshot returns the current state.
func (d *Dashboard) Snapshot() State {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := State{
		Settings:             d.settings.Get(),
		Adversaries:          d.adversaries.List(),
		Environments:         d.environments.List(),
		Countdowns:           d.countdowns.List(),
		SavedEncounters:      d.encounters.List(),
		CurrentEncounterName: d.encounters.Current(),
		CustomAdversaries:    d.custom.Adversaries.List(),
		CustomEnvironments:   d.custom.Environments.List(),
	}
	if sel, ok := d.tracker.Current(); ok {
		s.Focus = &sel
	}
	return s
}

// ─────────────────────────────────────────────────────────────────────────────
// Adversaries
// ─────────────────────────────────────────────────────────────────────────────

// Adversaries returns the adversaries in play, in order.
func (d *Dashboard) Adversaries() []entity.Adversary {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.adversaries.List()
}

// Adversary returns one adversary in play.
func (d *Dashboard) Adversary(id string) (entity.Adversary, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.adversaries.Get(id)
}

// CreateAdversary puts a into play.
func (d *Dashboard) CreateAdversary(ctx context.Context, a entity.Adversary) entity.Adversary {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.adversaries.Create(ctx, a)
}

// BulkCreateAdversaries puts every item into play with a single write.
func (d *Dashboard) BulkCreateAdversaries(ctx context.Context, items []entity.Adversary) []entity.Adversary {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.adversaries.BulkCreate(ctx, items)
}

// UpdateAdversary applies fn to the adversary with the given id.
func (d *Dashboard) UpdateAdversary(ctx context.Context, id string, fn func(*entity.Adversary)) (entity.Adversary, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.adversaries.Update(ctx, id, fn)
}

// DeleteAdversary removes an adversary from play.
func (d *Dashboard) DeleteAdversary(ctx context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.adversaries.Delete(ctx, id)
}

// SortAdversaries reorders the adversaries in play with
// [entity.SortAdversaries] and persists the new order.
func (d *Dashboard) SortAdversaries(ctx context.Context) []entity.Adversary {
	d.mu.Lock()
	defer d.mu.Unlock()

	sorted := entity.SortAdversaries(d.adversaries.List())
	d.adversaries.Replace(ctx, sorted)
	return sorted
}

// Damage deals damage to an adversary. See [combat.Resolver.Damage].
func (d *Dashboard) Damage(ctx context.Context, id string, amount int) (combat.Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resolver.Damage(ctx, id, amount)
}

// Heal removes damage from an adversary. See [combat.Resolver.Healing].
func (d *Dashboard) Heal(ctx context.Context, id string, amount int) (combat.Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resolver.Healing(ctx, id, amount)
}

// Stress changes an adversary's stress. See [combat.Resolver.StressChange].
func (d *Dashboard) Stress(ctx context.Context, id string, delta int) (combat.Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resolver.StressChange(ctx, id, delta)
}

// ─────────────────────────────────────────────────────────────────────────────
// Environments and countdowns
// ─────────────────────────────────────────────────────────────────────────────

// CreateEnvironment puts e into play.
func (d *Dashboard) CreateEnvironment(ctx context.Context, e entity.Environment) entity.Environment {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.environments.Create(ctx, e)
}

// UpdateEnvironment applies fn to the environment with the given id.
func (d *Dashboard) UpdateEnvironment(ctx context.Context, id string, fn func(*entity.Environment)) (entity.Environment, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.environments.Update(ctx, id, fn)
}

// DeleteEnvironment removes an environment from play.
func (d *Dashboard) DeleteEnvironment(ctx context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.environments.Delete(ctx, id)
}

// CreateCountdown adds a countdown.
func (d *Dashboard) CreateCountdown(ctx context.Context, c entity.Countdown) entity.Countdown {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.countdowns.Create(ctx, c)
}

// UpdateCountdown applies fn to the countdown with the given id.
func (d *Dashboard) UpdateCountdown(ctx context.Context, id string, fn func(*entity.Countdown)) (entity.Countdown, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.countdowns.Update(ctx, id, fn)
}

// DeleteCountdown removes a countdown.
func (d *Dashboard) DeleteCountdown(ctx context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.countdowns.Delete(ctx, id)
}

// AdvanceCountdown moves a countdown by delta.
func (d *Dashboard) AdvanceCountdown(ctx context.Context, id string, delta int) (entity.Countdown, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.countdowns.Advance(ctx, id, delta)
}

// ─────────────────────────────────────────────────────────────────────────────
// Settings
// ─────────────────────────────────────────────────────────────────────────────

// Settings returns fear and party size.
func (d *Dashboard) Settings() entity.GameSettings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settings.Get()
}

// SetFear sets the fear value.
func (d *Dashboard) SetFear(ctx context.Context, value int) entity.Fear {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settings.SetFear(ctx, value)
}

// AdjustFear adds delta to the fear value.
func (d *Dashboard) AdjustFear(ctx context.Context, delta int) entity.Fear {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settings.AdjustFear(ctx, delta)
}

// SetFearVisible shows or hides the fear pool.
func (d *Dashboard) SetFearVisible(ctx context.Context, visible bool) entity.Fear {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settings.SetFearVisible(ctx, visible)
}

// SetPartySize changes the party size and rescales minion groups.
func (d *Dashboard) SetPartySize(ctx context.Context, n int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settings.SetPartySize(ctx, n)
}

// ─────────────────────────────────────────────────────────────────────────────
// Encounters
// ─────────────────────────────────────────────────────────────────────────────

// SaveEncounter stores the adversaries and environments in play under name.
// Entities sharing a base name become one item whose template is the first
// instance.
func (d *Dashboard) SaveEncounter(ctx context.Context, name string, adjustments map[string]any) entity.Encounter {
	d.mu.Lock()
	defer d.mu.Unlock()

	var items []entity.EncounterItem
	for _, g := range minion.Groups(d.adversaries.List()) {
		tmpl := g.Members[0].Clone()
		tmpl.ID = ""
		tmpl.Name = g.Base
		items = append(items, entity.EncounterItem{Kind: entity.ItemAdversary, Quantity: len(g.Members), Adversary: &tmpl})
	}
	items = append(items, environmentGroups(d.environments.List())...)
	return d.encounters.Save(ctx, name, items, d.settings.Get().PartySize, adjustments)
}

// LoadEncounter replaces the adversaries and environments in play with the
// encounter's items and restores its party size without rescaling minions.
func (d *Dashboard) LoadEncounter(ctx context.Context, id string) (entity.Encounter, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	enc, ok := d.encounters.Load(ctx, id)
	if !ok {
		return entity.Encounter{}, fmt.Errorf("gamestate: load encounter %q: %w", id, entity.ErrNotFound)
	}

	var advs []entity.Adversary
	var envs []entity.Environment
	for _, it := range enc.Items {
		for range max(it.Quantity, 0) {
			switch {
			case it.Kind == entity.ItemAdversary && it.Adversary != nil:
				a := it.Adversary.Clone()
				a.Name = a.BaseName()
				advs = append(advs, a)
			case it.Kind == entity.ItemEnvironment && it.Environment != nil:
				e := it.Environment.Clone()
				e.Name = naming.BaseName(e.Name)
				envs = append(envs, e)
			}
		}
	}

	for _, a := range d.adversaries.List() {
		d.tracker.Drop(focus.KindAdversary, a.ID)
	}
	for _, e := range d.environments.List() {
		d.tracker.Drop(focus.KindEnvironment, e.ID)
	}
	d.adversaries.Replace(ctx, nil)
	d.adversaries.BulkCreate(ctx, advs)
	d.environments.Replace(ctx, nil)
	d.environments.BulkCreate(ctx, envs)

	if enc.PartySize > 0 {
		size := d.settings.RestorePartySize(ctx, enc.PartySize)
		d.scaler.Observe(size)
	}
	return enc, nil
}

// RenameEncounter renames a saved encounter.
func (d *Dashboard) RenameEncounter(ctx context.Context, id, name string) (entity.Encounter, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.encounters.Rename(ctx, id, name)
}

// DeleteEncounter removes a saved encounter.
func (d *Dashboard) DeleteEncounter(ctx context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.encounters.Delete(ctx, id)
}

func environmentGroups(envs []entity.Environment) []entity.EncounterItem {
	index := make(map[string]int)
	var out []entity.EncounterItem
	for _, e := range envs {
		base := naming.BaseName(e.Name)
		if i, ok := index[base]; ok {
			out[i].Quantity++
			continue
		}
		tmpl := e.Clone()
		tmpl.ID = ""
		tmpl.Name = base
		index[base] = len(out)
		out = append(out, entity.EncounterItem{Kind: entity.ItemEnvironment, Quantity: 1, Environment: &tmpl})
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Custom content
// ─────────────────────────────────────────────────────────────────────────────

// CreateCustomAdversary adds an adversary to the custom library.
func (d *Dashboard) CreateCustomAdversary(ctx context.Context, a entity.Adversary) entity.Adversary {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.custom.CreateAdversary(ctx, a)
}

// UpdateCustomAdversary applies fn to a custom library adversary.
func (d *Dashboard) UpdateCustomAdversary(ctx context.Context, id string, fn func(*entity.Adversary)) (entity.Adversary, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.custom.Adversaries.Update(ctx, id, func(a *entity.Adversary) {
		fn(a)
		a.IsCustom = true
		a.Clamp()
	})
}

// DeleteCustomAdversary removes an adversary from the custom library.
func (d *Dashboard) DeleteCustomAdversary(ctx context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.custom.Adversaries.Delete(ctx, id)
}

// CreateCustomEnvironment adds an environment to the custom library.
func (d *Dashboard) CreateCustomEnvironment(ctx context.Context, e entity.Environment) entity.Environment {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.custom.CreateEnvironment(ctx, e)
}

// UpdateCustomEnvironment applies fn to a custom library environment.
func (d *Dashboard) UpdateCustomEnvironment(ctx context.Context, id string, fn func(*entity.Environment)) (entity.Environment, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.custom.Environments.Update(ctx, id, func(e *entity.Environment) {
		fn(e)
		e.IsCustom = true
	})
}

// DeleteCustomEnvironment removes an environment from the custom library.
func (d *Dashboard) DeleteCustomEnvironment(ctx context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.custom.Environments.Delete(ctx, id)
}

// SearchCustom searches the custom libraries by name.
func (d *Dashboard) SearchCustom(query string, limit int) SearchResults {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.custom.Search(query, limit)
}

// ImportLibrary adds a content library to the custom libraries.
func (d *Dashboard) ImportLibrary(ctx context.Context, lib *entity.Library) (adversaries, environments int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.custom.Import(ctx, lib)
}

// ─────────────────────────────────────────────────────────────────────────────
// Focus
// ─────────────────────────────────────────────────────────────────────────────

// Select focuses an entity in play.
func (d *Dashboard) Select(kind focus.Kind, id string) (focus.Selection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var (
		value any
		ok    bool
	)
	switch kind {
	case focus.KindAdversary:
		value, ok = d.adversaries.Get(id)
	case focus.KindEnvironment:
		value, ok = d.environments.Get(id)
	case focus.KindCountdown:
		value, ok = d.countdowns.Get(id)
	default:
		return focus.Selection{}, fmt.Errorf("gamestate: select: unknown kind %q", kind)
	}
	if !ok {
		return focus.Selection{}, fmt.Errorf("gamestate: select %s %q: %w", kind, id, entity.ErrNotFound)
	}
	d.tracker.Select(kind, id, value)
	return focus.Selection{Kind: kind, ID: id, Value: value}, nil
}

// ClearFocus removes the focus.
func (d *Dashboard) ClearFocus() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tracker.Clear()
}
