// Package gamestate holds the dashboard's entity stores and the [Dashboard]
// aggregate that mounts them, wires combat, minion scaling and focus, and
// serialises every external operation.
//
// Persisted layout:
//
//	gameState          {fear, partySize, environments, savedEncounters,
//	                    currentEncounterName, adversaries, countdowns}
//	customAdversaries  [adversary, ...]
//	customEnvironments [environment, ...]
//
// Stores that share gameState write through one [storage.SharedRecord], so a
// store only ever replaces its own top-level fields.
package gamestate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MrWong99/fearkeeper/internal/entity"
	"github.com/MrWong99/fearkeeper/internal/observe"
	"github.com/MrWong99/fearkeeper/internal/storage"
)

// Top-level fields of the gameState record.
const (
	FieldFear                 = "fear"
	FieldPartySize            = "partySize"
	FieldEnvironments         = "environments"
	FieldSavedEncounters      = "savedEncounters"
	FieldCurrentEncounterName = "currentEncounterName"
	FieldAdversaries          = "adversaries"
	FieldCountdowns           = "countdowns"
)

// fieldPersist writes a collection into one field of rec.
func fieldPersist[T any](rec *storage.SharedRecord, field string, m *observe.Metrics) entity.PersistFunc[T] {
	return func(ctx context.Context, items []T) error {
		start := time.Now()
		err := rec.Merge(ctx, map[string]any{field: items})
		recordWrite(ctx, m, rec.Key(), start, err)
		return err
	}
}

// keyPersist writes a collection as the whole record under key.
func keyPersist[T any](gw storage.Gateway, key string, m *observe.Metrics) entity.PersistFunc[T] {
	return func(ctx context.Context, items []T) error {
		data, err := json.Marshal(items)
		if err != nil {
			return fmt.Errorf("gamestate: encode %q: %w", key, err)
		}
		start := time.Now()
		err = gw.Write(ctx, key, data)
		recordWrite(ctx, m, key, start, err)
		return err
	}
}

// mergeFields writes scalar fields of rec and records the write.
func mergeFields(ctx context.Context, rec *storage.SharedRecord, m *observe.Metrics, fields map[string]any) error {
	start := time.Now()
	err := rec.Merge(ctx, fields)
	recordWrite(ctx, m, rec.Key(), start, err)
	return err
}

func recordWrite(ctx context.Context, m *observe.Metrics, key string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RecordStorageWrite(ctx, key, status, time.Since(start).Seconds())
}

// storedOr decodes raw into a slice, falling back to initial when raw is
// absent or does not parse.
func storedOr[T any](raw json.RawMessage, initial []T) []T {
	var stored []T
	if storage.Decode(raw, &stored) {
		return stored
	}
	return initial
}
