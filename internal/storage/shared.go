package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// SharedRecord is a composite JSON object stored under one key and written
// by several independent stores. Each [SharedRecord.Merge] reads the current
// object, overlays the given top-level fields and writes the result back.
//
// Merges on the same SharedRecord never interleave. All stores that write the
// same key must share one SharedRecord value.
type SharedRecord struct {
	gw  Gateway
	key string

	mu sync.Mutex
}

// NewSharedRecord returns a [SharedRecord] for key on gw.
func NewSharedRecord(gw Gateway, key string) *SharedRecord {
	return &SharedRecord{gw: gw, key: key}
}

// Key returns the record's storage key.
func (r *SharedRecord) Key() string { return r.key }

// Fields reads the record and splits it into its top-level fields. A missing
// record or one that is not a JSON object yields an empty map.
func (r *SharedRecord) Fields(ctx context.Context) map[string]json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fieldsLocked(ctx)
}

// Field returns a single top-level field, or nil when absent.
func (r *SharedRecord) Field(ctx context.Context, name string) json.RawMessage {
	return r.Fields(ctx)[name]
}

// Merge shallow-merges fields into the stored record. Every value is encoded
// with encoding/json; fields not named are preserved exactly as stored.
func (r *SharedRecord) Merge(ctx context.Context, fields map[string]any) error {
	encoded := make(map[string]json.RawMessage, len(fields))
	for name, v := range fields {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("storage: encode field %q: %w", name, err)
		}
		encoded[name] = b
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.fieldsLocked(ctx)
	for name, v := range encoded {
		current[name] = v
	}

	out, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("storage: encode record %q: %w", r.key, err)
	}
	if err := r.gw.Write(ctx, r.key, out); err != nil {
		return fmt.Errorf("storage: merge %q: %w", r.key, err)
	}
	return nil
}

func (r *SharedRecord) fieldsLocked(ctx context.Context) map[string]json.RawMessage {
	fields := make(map[string]json.RawMessage)
	raw := r.gw.Read(ctx, r.key)
	if raw == nil {
		return fields
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return make(map[string]json.RawMessage)
	}
	return fields
}

// Decode unmarshals raw into dst. It reports false, leaving dst untouched,
// when raw is nil or cannot be decoded. Use it to resolve a stored field to
// its default.
func Decode[T any](raw json.RawMessage, dst *T) bool {
	if raw == nil {
		return false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	*dst = v
	return true
}
