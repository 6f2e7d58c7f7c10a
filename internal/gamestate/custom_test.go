package gamestate_test

import (
	"context"
	"testing"

	"github.com/MrWong99/fearkeeper/internal/entity"
	"github.com/MrWong99/fearkeeper/internal/gamestate"
	"github.com/MrWong99/fearkeeper/internal/storage"
)

func library(source string, names ...string) *entity.Library {
	lib := &entity.Library{Source: source}
	for _, n := range names {
		lib.Adversaries = append(lib.Adversaries, entity.Adversary{Name: n, Type: entity.TypeStandard, Source: source})
	}
	return lib
}

func TestCustomContentStore_ImportReplacesBySource(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gw := storage.NewMemGateway()
	s := gamestate.NewCustomContentStore(gw, nil)
	s.Mount(ctx)

	s.CreateAdversary(ctx, entity.Adversary{Name: "Hand Made"})
	s.Import(ctx, library("Swamp Pack", "Bog Hag", "Bog Hag"))
	advs, _ := s.Import(ctx, library("Swamp Pack", "Bog Hag", "Eel"))
	if advs != 2 {
		t.Fatalf("imported %d adversaries, want 2", advs)
	}

	list := s.Adversaries.List()
	got := make([]string, len(list))
	for i, a := range list {
		got[i] = a.Name
		if !a.IsCustom {
			t.Errorf("%s: IsCustom = false", a.Name)
		}
	}
	want := []string{"Hand Made", "Bog Hag", "Eel"}
	if len(got) != len(want) {
		t.Fatalf("names = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("names = %v, want %v", got, want)
		}
	}
}

func TestCustomContentStore_ImportKeepsDuplicateNames(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := gamestate.NewCustomContentStore(storage.NewMemGateway(), nil)
	s.Mount(ctx)
	s.Import(ctx, library("", "Goblin", "Goblin"))

	for _, a := range s.Adversaries.List() {
		if a.Name != "Goblin" {
			t.Fatalf("library name changed to %q", a.Name)
		}
	}
}

func TestCustomContentStore_Search(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := gamestate.NewCustomContentStore(storage.NewMemGateway(), nil)
	s.Mount(ctx)
	s.Import(ctx, library("", "Bog Hag", "Cave Ogre", "Bog Goblin"))
	s.CreateEnvironment(ctx, entity.Environment{Name: "Bog Shrine"})

	res := s.Search("bog", 0)
	if len(res.Adversaries) != 2 || len(res.Environments) != 1 {
		t.Fatalf("search = %+v", res)
	}
	if capped := s.Search("bog", 1); len(capped.Adversaries) != 1 {
		t.Fatalf("limit ignored: %d results", len(capped.Adversaries))
	}
	if all := s.Search("", 0); len(all.Adversaries) != 3 {
		t.Fatalf("empty query returned %d adversaries, want 3", len(all.Adversaries))
	}
}

func TestCustomContentStore_MountReadsBothKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gw := storage.NewMemGateway()
	gw.Seed(storage.KeyCustomAdversaries, []byte(`[{"id":"custom-adv-1","name":"Hag","isCustom":true}]`))
	gw.Seed(storage.KeyCustomEnvironments, []byte(`{"not":"an array"}`))

	s := gamestate.NewCustomContentStore(gw, nil)
	s.Mount(ctx)
	if s.Adversaries.Len() != 1 || s.Environments.Len() != 0 {
		t.Fatalf("mounted %d adversaries and %d environments", s.Adversaries.Len(), s.Environments.Len())
	}
	if gw.Writes() != 0 {
		t.Fatalf("Mount wrote %d times", gw.Writes())
	}
}
