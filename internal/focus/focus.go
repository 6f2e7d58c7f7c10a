// Package focus holds the entity currently shown in the GM's detail view and
// fans changes out to subscribers.
//
// The tracker never reads storage. Mutating components push updated values
// with [Tracker.Refresh] and drop deleted entities with [Tracker.Drop]; the
// presentation side selects with [Tracker.Select] and follows changes through
// [Tracker.Subscribe] or the WebSocket [Feed].
package focus

import (
	"log/slog"
	"sync"
)

// Kind names the collection a selection points into.
type Kind string

const (
	KindAdversary   Kind = "adversary"
	KindEnvironment Kind = "environment"
	KindCountdown   Kind = "countdown"
)

// Selection is the focused entity. The zero Selection means nothing is
// focused.
type Selection struct {
	Kind  Kind   `json:"kind,omitempty"`
	ID    string `json:"id,omitempty"`
	Value any    `json:"value,omitempty"`
}

// IsZero reports whether s is empty.
func (s Selection) IsZero() bool { return s.ID == "" }

// subscriberBuffer is the per-subscriber channel capacity. A subscriber that
// falls further behind misses intermediate selections.
const subscriberBuffer = 16

// Tracker is the focus/selection reference. It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	current Selection
	subs    map[int]chan Selection
	nextSub int
}

// NewTracker returns a tracker with nothing selected.
func NewTracker() *Tracker {
	return &Tracker{subs: make(map[int]chan Selection)}
}

// Select focuses the entity identified by kind and id, showing value.
func (t *Tracker) Select(kind Kind, id string, value any) {
	t.set(Selection{Kind: kind, ID: id, Value: value})
}

// Clear removes the focus.
func (t *Tracker) Clear() {
	t.set(Selection{})
}

// Current returns the focused entity and whether anything is focused.
func (t *Tracker) Current() (Selection, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, !t.current.IsZero()
}

// Refresh replaces the focused value when kind and id match the current
// selection. It reports whether the focus changed.
func (t *Tracker) Refresh(kind Kind, id string, value any) bool {
	t.mu.Lock()
	if t.current.Kind != kind || t.current.ID != id || id == "" {
		t.mu.Unlock()
		return false
	}
	t.current.Value = value
	t.broadcastLocked()
	t.mu.Unlock()
	return true
}

// Drop clears the focus when it points at the given entity. It reports
// whether the focus changed.
func (t *Tracker) Drop(kind Kind, id string) bool {
	t.mu.Lock()
	if t.current.Kind != kind || t.current.ID != id || id == "" {
		t.mu.Unlock()
		return false
	}
	t.current = Selection{}
	t.broadcastLocked()
	t.mu.Unlock()
	return true
}

// Subscribe returns a channel that receives every subsequent selection,
// including clears, and a cancel func that closes it.
func (t *Tracker) Subscribe() (<-chan Selection, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextSub
	t.nextSub++
	ch := make(chan Selection, subscriberBuffer)
	t.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			delete(t.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (t *Tracker) set(s Selection) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = s
	t.broadcastLocked()
}

func (t *Tracker) broadcastLocked() {
	for id, ch := range t.subs {
		select {
		case ch <- t.current:
		default:
			slog.Debug("focus: subscriber lagging, selection dropped", "subscriber", id)
		}
	}
}
