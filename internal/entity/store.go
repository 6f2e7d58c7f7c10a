package entity

import (
	"context"
	"errors"
)

// ErrNotFound is returned by lookups when the requested entity does not
// exist. Collection mutations never return it; an unknown id is a no-op.
var ErrNotFound = errors.New("entity not found")

// Kind describes how a [Collection] reads and writes the identity fields of
// its element type.
type Kind[T any] struct {
	// Name labels the collection in logs (e.g. "adversary").
	Name string

	// Prefix starts every generated ID.
	Prefix string

	// UniqueNames applies [naming.Unique] on create.
	UniqueNames bool

	// ID returns a pointer to the element's ID field.
	ID func(*T) *string

	// DisplayName returns a pointer to the element's display name field.
	DisplayName func(*T) *string

	// Clone deep-copies an element. Nil means a plain value copy suffices.
	Clone func(T) T
}

// PersistFunc writes a snapshot of the whole collection to durable storage.
type PersistFunc[T any] func(ctx context.Context, items []T) error

// Observer is notified after elements change. Callbacks run without the
// collection lock held.
type Observer[T any] interface {
	Updated(item T)
	Deleted(id string)
}

// Option configures a [Collection].
type Option[T any] func(*Collection[T])

// WithPersist sets the function that writes the collection after each
// mutation.
func WithPersist[T any](fn PersistFunc[T]) Option[T] {
	return func(c *Collection[T]) { c.persist = fn }
}

// WithObserver registers an observer for updates and deletes.
func WithObserver[T any](o Observer[T]) Option[T] {
	return func(c *Collection[T]) { c.observers = append(c.observers, o) }
}
