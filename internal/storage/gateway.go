// Package storage provides durable key/value persistence for the dashboard.
//
// A [Gateway] stores one JSON document per key. Reads never fail: a missing
// key, an unreadable backend, or a value that is not valid JSON all resolve to
// a nil record so callers can fall back to their documented defaults. Writes
// complete before returning.
//
// Several stores share the composite [KeyGameState] record. They must go
// through a [SharedRecord], which serialises read-merge-write cycles so one
// store never erases a sibling's top-level fields.
//
// Backends:
//   - [MemGateway]      in-memory, for tests and ephemeral tables
//   - [FileGateway]     one JSON file per key in a directory
//   - [SQLiteGateway]   a single SQLite table (modernc.org/sqlite)
//   - [PostgresGateway] a single PostgreSQL table (pgx)
package storage

import (
	"context"
	"encoding/json"
)

// Well-known record keys.
const (
	// KeyGameState holds fear, party size, environments, saved encounters,
	// the current encounter name, adversaries and countdowns.
	KeyGameState = "gameState"

	// KeyCustomAdversaries holds the custom adversary library.
	KeyCustomAdversaries = "customAdversaries"

	// KeyCustomEnvironments holds the custom environment library.
	KeyCustomEnvironments = "customEnvironments"
)

// Gateway reads and writes durable records.
//
// Implementations must be safe for concurrent use.
type Gateway interface {
	// Read returns the raw JSON stored under key, or nil when the key is
	// missing, the backend cannot be read, or the stored value is corrupt.
	Read(ctx context.Context, key string) json.RawMessage

	// Write replaces the value stored under key. record must be valid JSON.
	Write(ctx context.Context, key string, record json.RawMessage) error

	// Close releases backend resources.
	Close() error
}

// Pinger is implemented by gateways that can report backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// validRecord returns b when it holds valid JSON and nil otherwise.
func validRecord(b []byte) json.RawMessage {
	if len(b) == 0 || !json.Valid(b) {
		return nil
	}
	return json.RawMessage(b)
}
