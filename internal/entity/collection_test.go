package entity_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/MrWong99/fearkeeper/internal/entity"
)

// recorder captures persist calls and observer notifications.
type recorder struct {
	mu      sync.Mutex
	writes  [][]entity.Adversary
	updated []entity.Adversary
	deleted []string
	fail    error
}

func (r *recorder) persist(_ context.Context, items []entity.Adversary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, items)
	return r.fail
}

func (r *recorder) Updated(a entity.Adversary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updated = append(r.updated, a)
}

func (r *recorder) Deleted(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, id)
}

func newAdversaries(t *testing.T) (*entity.Collection[entity.Adversary], *recorder) {
	t.Helper()
	rec := &recorder{}
	c := entity.NewCollection(entity.AdversaryKind,
		entity.WithPersist(rec.persist),
		entity.WithObserver[entity.Adversary](rec),
	)
	return c, rec
}

func names(items []entity.Adversary) []string {
	out := make([]string, len(items))
	for i, a := range items {
		out[i] = a.Name
	}
	return out
}

func TestCollection_CreateAssignsIDAndDedupesNames(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, rec := newAdversaries(t)

	first := c.Create(ctx, entity.Adversary{Name: "Goblin", Type: entity.TypeStandard})
	if !strings.HasPrefix(first.ID, "adv-") {
		t.Fatalf("Create: expected adv- prefix, got %q", first.ID)
	}
	if first.Name != "Goblin" {
		t.Fatalf("first name = %q", first.Name)
	}

	c.Create(ctx, entity.Adversary{Name: "Goblin", Type: entity.TypeStandard})
	c.Create(ctx, entity.Adversary{Name: "Goblin", Type: entity.TypeStandard})

	got := names(c.List())
	want := []string{"Goblin (1)", "Goblin (2)", "Goblin (3)"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("names = %v, want %v", got, want)
	}

	if len(rec.updated) != 1 || rec.updated[0].ID != first.ID || rec.updated[0].Name != "Goblin (1)" {
		t.Fatalf("rename notification = %+v", rec.updated)
	}
	if len(rec.writes) != 3 {
		t.Fatalf("writes = %d, want 3", len(rec.writes))
	}
}

func TestCollection_IDsAreUnique(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, _ := newAdversaries(t)
	seen := make(map[string]bool)
	for range 200 {
		a := c.Create(ctx, entity.Adversary{Name: "Rat", Type: entity.TypeMinion})
		if seen[a.ID] {
			t.Fatalf("duplicate id %q", a.ID)
		}
		seen[a.ID] = true
	}
}

func TestCollection_MountDoesNotPersist(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, rec := newAdversaries(t)
	c.Mount(ctx, []entity.Adversary{{ID: "adv-1", Name: "Orc"}})

	if len(rec.writes) != 0 {
		t.Fatalf("Mount wrote %d times", len(rec.writes))
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d", c.Len())
	}

	c.Create(ctx, entity.Adversary{Name: "Troll"})
	if len(rec.writes) != 1 {
		t.Fatalf("first mutation after mount: writes = %d, want 1", len(rec.writes))
	}
	if len(rec.writes[0]) != 2 {
		t.Fatalf("persisted %d items, want whole collection of 2", len(rec.writes[0]))
	}
}

func TestCollection_UpdateAndDeleteUnknownAreNoOps(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, rec := newAdversaries(t)
	c.Create(ctx, entity.Adversary{Name: "Orc"})
	before := len(rec.writes)

	if _, ok := c.Update(ctx, "nope", func(a *entity.Adversary) { a.HP = 3 }); ok {
		t.Fatal("Update(unknown) reported success")
	}
	if c.Delete(ctx, "nope") {
		t.Fatal("Delete(unknown) reported success")
	}
	if len(rec.writes) != before {
		t.Fatalf("no-op mutations wrote: %d -> %d", before, len(rec.writes))
	}
}

func TestCollection_UpdateKeepsIDAndNotifies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, rec := newAdversaries(t)
	a := c.Create(ctx, entity.Adversary{Name: "Orc", HPMax: 5})

	got, ok := c.Update(ctx, a.ID, func(x *entity.Adversary) {
		x.ID = "hijack"
		x.HP = 2
	})
	if !ok {
		t.Fatal("Update: not found")
	}
	if got.ID != a.ID || got.HP != 2 {
		t.Fatalf("Update result = %+v", got)
	}
	stored, _ := c.Get(a.ID)
	if stored.HP != 2 {
		t.Fatalf("stored HP = %d", stored.HP)
	}
	if n := len(rec.updated); n != 1 || rec.updated[0].HP != 2 {
		t.Fatalf("observer updates = %+v", rec.updated)
	}
}

func TestCollection_DeleteNotifies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, rec := newAdversaries(t)
	a := c.Create(ctx, entity.Adversary{Name: "Orc"})
	b := c.Create(ctx, entity.Adversary{Name: "Elf"})

	if !c.Delete(ctx, a.ID) {
		t.Fatal("Delete: not found")
	}
	if len(rec.deleted) != 1 || rec.deleted[0] != a.ID {
		t.Fatalf("deleted = %v", rec.deleted)
	}
	if list := c.List(); len(list) != 1 || list[0].ID != b.ID {
		t.Fatalf("List after delete = %+v", list)
	}
}

func TestCollection_BulkCreateWritesOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, rec := newAdversaries(t)
	c.Create(ctx, entity.Adversary{Name: "Rat"})
	before := len(rec.writes)

	out := c.BulkCreate(ctx, []entity.Adversary{{Name: "Rat"}, {Name: "Rat"}})
	if len(out) != 2 {
		t.Fatalf("BulkCreate returned %d", len(out))
	}
	if len(rec.writes) != before+1 {
		t.Fatalf("BulkCreate wrote %d times", len(rec.writes)-before)
	}
	if got := strings.Join(names(c.List()), ","); got != "Rat (1),Rat (2),Rat (3)" {
		t.Fatalf("names = %s", got)
	}
}

func TestCollection_ReturnedValuesAreCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, _ := newAdversaries(t)
	a := c.Create(ctx, entity.Adversary{Name: "Orc", Features: []entity.Feature{{Name: "Tough"}}})

	a.Features[0].Name = "mutated"
	list := c.List()
	list[0].Features[0].Name = "mutated too"

	stored, _ := c.Get(a.ID)
	if stored.Features[0].Name != "Tough" {
		t.Fatalf("stored feature changed to %q", stored.Features[0].Name)
	}
}

func TestCollection_PersistErrorDoesNotFailMutation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, rec := newAdversaries(t)
	rec.fail = errors.New("disk on fire")

	a := c.Create(ctx, entity.Adversary{Name: "Orc"})
	if _, ok := c.Get(a.ID); !ok {
		t.Fatal("Create lost the entity after a persist failure")
	}
}

func TestCollection_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, _ := newAdversaries(t)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Create(ctx, entity.Adversary{Name: "Bat"})
		}()
		go func() {
			defer wg.Done()
			_ = c.List()
		}()
	}
	wg.Wait()

	if c.Len() != 20 {
		t.Fatalf("Len = %d, want 20", c.Len())
	}
}
