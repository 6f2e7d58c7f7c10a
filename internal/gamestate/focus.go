package gamestate

import "github.com/MrWong99/fearkeeper/internal/focus"

// focusObserver keeps the focus tracker in step with one collection.
type focusObserver[T any] struct {
	tracker *focus.Tracker
	kind    focus.Kind
	id      func(T) string
}

func (o focusObserver[T]) Updated(item T) {
	o.tracker.Refresh(o.kind, o.id(item), item)
}

func (o focusObserver[T]) Deleted(id string) {
	o.tracker.Drop(o.kind, id)
}
