package entity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/MrWong99/fearkeeper/internal/naming"
)

// Collection is an ordered, thread-safe list of entities owned by exactly one
// store. Order is significant: it is persisted and several combat rules act
// on the tail of the current order.
//
// Every mutation writes the whole collection through the [PersistFunc],
// except the sync performed by [Collection.Mount], which a one-shot latch
// suppresses. Persistence errors are logged, never returned.
type Collection[T any] struct {
	kind      Kind[T]
	persist   PersistFunc[T]
	observers []Observer[T]

	mu       sync.RWMutex
	items    []T
	skipSync bool
}

// NewCollection returns an empty collection for kind.
func NewCollection[T any](kind Kind[T], opts ...Option[T]) *Collection[T] {
	c := &Collection[T]{kind: kind}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Mount replaces the contents with items, typically the merge of an initial
// value and the stored value. It never writes to storage.
func (c *Collection[T]) Mount(ctx context.Context, items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = c.cloneAll(items)
	c.skipSync = true
	c.syncLocked(ctx)
}

// List returns a copy of the current items in order.
func (c *Collection[T]) List() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cloneAll(c.items)
}

// Len returns the number of items.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Get returns the item with the given id.
func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if i := c.indexLocked(id); i >= 0 {
		return c.clone(c.items[i]), true
	}
	var zero T
	return zero, false
}

// Create adds item with a fresh ID and returns the stored copy. When the kind
// requires unique names, the display name is chosen by [naming.Unique] and a
// sibling may be renamed in the same mutation.
func (c *Collection[T]) Create(ctx context.Context, item T) T {
	c.mu.Lock()
	created, renamed := c.createLocked(item)
	c.syncLocked(ctx)
	c.mu.Unlock()

	c.notifyUpdated(renamed...)
	return created
}

// BulkCreate adds every item in order, as if each were created separately,
// and writes once.
func (c *Collection[T]) BulkCreate(ctx context.Context, items []T) []T {
	if len(items) == 0 {
		return nil
	}

	c.mu.Lock()
	out := make([]T, 0, len(items))
	var renamed []T
	for _, item := range items {
		created, r := c.createLocked(item)
		out = append(out, created)
		renamed = append(renamed, r...)
	}
	c.syncLocked(ctx)
	c.mu.Unlock()

	c.notifyUpdated(renamed...)
	return out
}

// Update applies fn to a copy of the item with the given id and stores the
// result. The ID cannot be changed by fn. It reports false, without writing,
// when no such item exists.
func (c *Collection[T]) Update(ctx context.Context, id string, fn func(*T)) (T, bool) {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		var zero T
		return zero, false
	}

	next := c.clone(c.items[i])
	fn(&next)
	*c.kind.ID(&next) = id
	c.items[i] = next
	c.syncLocked(ctx)
	updated := c.clone(next)
	c.mu.Unlock()

	c.notifyUpdated(updated)
	return updated, true
}

// Delete removes the item with the given id. It reports false, without
// writing, when no such item exists.
func (c *Collection[T]) Delete(ctx context.Context, id string) bool {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return false
	}
	c.items = append(c.items[:i:i], c.items[i+1:]...)
	c.syncLocked(ctx)
	c.mu.Unlock()

	for _, o := range c.observers {
		o.Deleted(id)
	}
	return true
}

// Replace stores items as the new contents, keeping the given order. Callers
// use it to persist a reordering.
func (c *Collection[T]) Replace(ctx context.Context, items []T) {
	c.mu.Lock()
	c.items = c.cloneAll(items)
	c.syncLocked(ctx)
	c.mu.Unlock()
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func (c *Collection[T]) createLocked(item T) (created T, renamed []T) {
	item = c.clone(item)
	*c.kind.ID(&item) = newID(c.kind.Prefix)

	if c.kind.UniqueNames {
		names := make([]string, len(c.items))
		for i := range c.items {
			names[i] = *c.kind.DisplayName(&c.items[i])
		}
		res := naming.Unique(*c.kind.DisplayName(&item), names)
		if res.Rename != nil {
			sibling := &c.items[res.Rename.Index]
			*c.kind.DisplayName(sibling) = res.Rename.Name
			renamed = append(renamed, c.clone(*sibling))
		}
		*c.kind.DisplayName(&item) = res.Name
	}

	c.items = append(c.items, item)
	return c.clone(item), renamed
}

// syncLocked writes the collection unless the mount latch is set, in which
// case it only clears the latch.
func (c *Collection[T]) syncLocked(ctx context.Context) {
	if c.skipSync {
		c.skipSync = false
		return
	}
	if c.persist == nil {
		return
	}
	if err := c.persist(ctx, c.cloneAll(c.items)); err != nil {
		slog.Warn("entity: persist failed", "kind", c.kind.Name, "err", err)
	}
}

func (c *Collection[T]) indexLocked(id string) int {
	for i := range c.items {
		if *c.kind.ID(&c.items[i]) == id {
			return i
		}
	}
	return -1
}

func (c *Collection[T]) notifyUpdated(items ...T) {
	for _, item := range items {
		for _, o := range c.observers {
			o.Updated(item)
		}
	}
}

func (c *Collection[T]) clone(v T) T {
	if c.kind.Clone != nil {
		return c.kind.Clone(v)
	}
	return v
}

func (c *Collection[T]) cloneAll(items []T) []T {
	out := make([]T, len(items))
	for i, v := range items {
		out[i] = c.clone(v)
	}
	return out
}

// newID returns "<prefix>-<unix millis>-<8 hex chars>".
func newID(prefix string) string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return prefix + "-" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + hex.EncodeToString(buf)
}
