package gamestate

import (
	"context"

	"github.com/MrWong99/fearkeeper/internal/entity"
	"github.com/MrWong99/fearkeeper/internal/observe"
	"github.com/MrWong99/fearkeeper/internal/search"
	"github.com/MrWong99/fearkeeper/internal/storage"
)

// CustomContentStore owns the GM's custom adversary and environment
// libraries. Each library is stored under its own key and names are kept as
// their authors wrote them.
type CustomContentStore struct {
	Adversaries  *entity.Collection[entity.Adversary]
	Environments *entity.Collection[entity.Environment]

	gw      storage.Gateway
	matcher *search.Matcher
}

// NewCustomContentStore returns a store writing the customAdversaries and
// customEnvironments keys of gw.
func NewCustomContentStore(gw storage.Gateway, m *observe.Metrics) *CustomContentStore {
	return &CustomContentStore{
		Adversaries: entity.NewCollection(entity.CustomAdversaryKind,
			entity.WithPersist(keyPersist[entity.Adversary](gw, storage.KeyCustomAdversaries, m)),
		),
		Environments: entity.NewCollection(entity.CustomEnvironmentKind,
			entity.WithPersist(keyPersist[entity.Environment](gw, storage.KeyCustomEnvironments, m)),
		),
		gw:      gw,
		matcher: search.New(),
	}
}

// Mount loads both libraries. A missing or corrupt key yields an empty
// library.
func (s *CustomContentStore) Mount(ctx context.Context) {
	s.Adversaries.Mount(ctx, storedOr[entity.Adversary](s.gw.Read(ctx, storage.KeyCustomAdversaries), nil))
	s.Environments.Mount(ctx, storedOr[entity.Environment](s.gw.Read(ctx, storage.KeyCustomEnvironments), nil))
}

// CreateAdversary adds a to the library, marked custom.
func (s *CustomContentStore) CreateAdversary(ctx context.Context, a entity.Adversary) entity.Adversary {
	a.IsCustom = true
	a.Clamp()
	return s.Adversaries.Create(ctx, a)
}

// CreateEnvironment adds e to the library, marked custom.
func (s *CustomContentStore) CreateEnvironment(ctx context.Context, e entity.Environment) entity.Environment {
	e.IsCustom = true
	return s.Environments.Create(ctx, e)
}

// SearchResults holds the library entries matching a query, best first.
type SearchResults struct {
	Adversaries  []entity.Adversary   `json:"adversaries"`
	Environments []entity.Environment `json:"environments"`
}

// Search ranks both libraries by name against query. limit caps each list;
// zero or less means no cap.
func (s *CustomContentStore) Search(query string, limit int) SearchResults {
	advs := s.Adversaries.List()
	envs := s.Environments.List()

	res := SearchResults{
		Adversaries:  []entity.Adversary{},
		Environments: []entity.Environment{},
	}
	for _, m := range capped(s.matcher.Rank(query, advNames(advs)), limit) {
		res.Adversaries = append(res.Adversaries, advs[m.Index])
	}
	for _, m := range capped(s.matcher.Rank(query, envNames(envs)), limit) {
		res.Environments = append(res.Environments, envs[m.Index])
	}
	return res
}

// Import adds every entry of lib. Existing entries whose source matches the
// source of an imported entry are replaced, so importing the same library
// twice leaves one copy. Entries without a source are always appended.
func (s *CustomContentStore) Import(ctx context.Context, lib *entity.Library) (adversaries, environments int) {
	if lib == nil {
		return 0, 0
	}

	advSources := make(map[string]bool)
	for _, a := range lib.Adversaries {
		if a.Source != "" {
			advSources[a.Source] = true
		}
	}
	envSources := make(map[string]bool)
	for _, e := range lib.Environments {
		if e.Source != "" {
			envSources[e.Source] = true
		}
	}

	if kept, dropped := without(s.Adversaries.List(), advSources, func(a entity.Adversary) string { return a.Source }); dropped {
		s.Adversaries.Replace(ctx, kept)
	}
	if kept, dropped := without(s.Environments.List(), envSources, func(e entity.Environment) string { return e.Source }); dropped {
		s.Environments.Replace(ctx, kept)
	}

	advs := make([]entity.Adversary, len(lib.Adversaries))
	for i, a := range lib.Adversaries {
		a.IsCustom = true
		a.Clamp()
		advs[i] = a
	}
	envs := make([]entity.Environment, len(lib.Environments))
	for i, e := range lib.Environments {
		e.IsCustom = true
		envs[i] = e
	}
	return len(s.Adversaries.BulkCreate(ctx, advs)), len(s.Environments.BulkCreate(ctx, envs))
}

func without[T any](items []T, sources map[string]bool, source func(T) string) ([]T, bool) {
	if len(sources) == 0 {
		return items, false
	}
	kept := items[:0:0]
	for _, it := range items {
		if !sources[source(it)] {
			kept = append(kept, it)
		}
	}
	return kept, len(kept) != len(items)
}

func capped(ms []search.Match, limit int) []search.Match {
	if limit > 0 && len(ms) > limit {
		return ms[:limit]
	}
	return ms
}

func advNames(items []entity.Adversary) []string {
	out := make([]string, len(items))
	for i, a := range items {
		out[i] = a.Name
	}
	return out
}

func envNames(items []entity.Environment) []string {
	out := make([]string, len(items))
	for i, e := range items {
		out[i] = e.Name
	}
	return out
}
