// Package combat resolves damage, healing and stress events against the
// adversaries in play.
//
// Minions are defeated by any damage, and damage at or above their threshold
// also takes down further minions of the same base name. Other adversaries
// accumulate HP damage up to HPMax. Stress that overflows StressMax spills
// into HP.
package combat

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/fearkeeper/internal/entity"
	"github.com/MrWong99/fearkeeper/internal/observe"
)

// ErrMinionHealing is returned when healing targets a minion.
var ErrMinionHealing = errors.New("combat: minions cannot be healed")

// Store is the adversary store the resolver mutates.
type Store interface {
	Get(id string) (entity.Adversary, bool)
	List() []entity.Adversary
	Update(ctx context.Context, id string, fn func(*entity.Adversary)) (entity.Adversary, bool)
	Delete(ctx context.Context, id string) bool
}

// Outcome is the result of one combat event.
type Outcome struct {
	// Target is the id the event was aimed at.
	Target string `json:"target"`

	// Defeated lists every adversary removed by the event, target first.
	Defeated []string `json:"defeated,omitempty"`

	// Adversary is the target after the event, or nil when it was defeated.
	Adversary *entity.Adversary `json:"adversary,omitempty"`
}

// Resolver applies combat events to a [Store].
type Resolver struct {
	store   Store
	metrics *observe.Metrics
}

// NewResolver returns a resolver over store. m may be nil.
func NewResolver(store Store, m *observe.Metrics) *Resolver {
	return &Resolver{store: store, metrics: m}
}

// Damage deals amount damage to the adversary with the given id. Negative
// amounts count as zero.
func (r *Resolver) Damage(ctx context.Context, id string, amount int) (out Outcome, err error) {
	ctx, span := observe.StartEntitySpan(ctx, "combat.damage", entity.AdversaryKind.Name, id, observe.AttrAmount.Int(amount))
	defer func() { r.finish(ctx, span, "damage", err) }()

	amount = max(amount, 0)
	target, ok := r.store.Get(id)
	if !ok {
		return Outcome{Target: id}, fmt.Errorf("combat: damage %q: %w", id, entity.ErrNotFound)
	}

	if target.IsMinion() {
		return r.defeatMinions(ctx, target, amount), nil
	}

	updated, ok := r.store.Update(ctx, id, func(a *entity.Adversary) {
		a.HP = min(a.HP+amount, a.HPMax)
	})
	if !ok {
		return Outcome{Target: id}, fmt.Errorf("combat: damage %q: %w", id, entity.ErrNotFound)
	}
	return Outcome{Target: id, Adversary: &updated}, nil
}

// defeatMinions removes target plus one further minion of the same base name
// for every full threshold of amount, in list order.
func (r *Resolver) defeatMinions(ctx context.Context, target entity.Adversary, amount int) Outcome {
	out := Outcome{Target: target.ID}
	if r.store.Delete(ctx, target.ID) {
		out.Defeated = append(out.Defeated, target.ID)
	}

	additional := amount / target.MinionThreshold()
	base := target.BaseName()
	for _, a := range r.store.List() {
		if additional == 0 {
			break
		}
		if !a.IsMinion() || a.BaseName() != base {
			continue
		}
		if r.store.Delete(ctx, a.ID) {
			out.Defeated = append(out.Defeated, a.ID)
			additional--
		}
	}

	if r.metrics != nil {
		r.metrics.RecordMinionsDefeated(ctx, len(out.Defeated))
	}
	return out
}

// Healing removes amount damage from the adversary with the given id, never
// below zero. Minions cannot be healed.
func (r *Resolver) Healing(ctx context.Context, id string, amount int) (out Outcome, err error) {
	ctx, span := observe.StartEntitySpan(ctx, "combat.healing", entity.AdversaryKind.Name, id, observe.AttrAmount.Int(amount))
	defer func() { r.finish(ctx, span, "healing", err) }()

	amount = max(amount, 0)
	target, ok := r.store.Get(id)
	if !ok {
		return Outcome{Target: id}, fmt.Errorf("combat: heal %q: %w", id, entity.ErrNotFound)
	}
	if target.IsMinion() {
		return Outcome{Target: id}, ErrMinionHealing
	}

	updated, ok := r.store.Update(ctx, id, func(a *entity.Adversary) {
		a.HP = max(0, a.HP-amount)
	})
	if !ok {
		return Outcome{Target: id}, fmt.Errorf("combat: heal %q: %w", id, entity.ErrNotFound)
	}
	return Outcome{Target: id, Adversary: &updated}, nil
}

// StressChange adds delta to the adversary's stress. Stress above StressMax
// is clamped and the overflow is added to HP, clamped at HPMax. Stress never
// drops below zero. Both tracks change in one update.
func (r *Resolver) StressChange(ctx context.Context, id string, delta int) (out Outcome, err error) {
	ctx, span := observe.StartEntitySpan(ctx, "combat.stress", entity.AdversaryKind.Name, id, observe.AttrAmount.Int(delta))
	defer func() { r.finish(ctx, span, "stress", err) }()

	updated, ok := r.store.Update(ctx, id, func(a *entity.Adversary) {
		next := a.Stress + delta
		if next > a.StressMax {
			a.HP = min(a.HP+next-a.StressMax, a.HPMax)
			next = a.StressMax
		}
		a.Stress = max(next, 0)
	})
	if !ok {
		return Outcome{Target: id}, fmt.Errorf("combat: stress %q: %w", id, entity.ErrNotFound)
	}
	return Outcome{Target: id, Adversary: &updated}, nil
}

// finish ends span and records the event. A missing target or a rejected
// heal is a client mistake, not a span error.
func (r *Resolver) finish(ctx context.Context, span trace.Span, event string, err error) {
	status := "ok"
	switch {
	case errors.Is(err, entity.ErrNotFound):
		status = "not_found"
	case errors.Is(err, ErrMinionHealing):
		status = "rejected"
	case err != nil:
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	if r.metrics != nil {
		r.metrics.RecordCombatEvent(ctx, event, status)
	}
}
