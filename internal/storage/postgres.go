package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSchema is the SQL DDL for the records table. Execute it via
// [PostgresGateway.Migrate] or apply it manually during deployment.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS fearkeeper_records (
    key        TEXT PRIMARY KEY,
    value      JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// DB is the database interface used by [PostgresGateway]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Compile-time interface check.
var _ Gateway = (*PostgresGateway)(nil)

// PostgresGateway is a [Gateway] backed by a PostgreSQL table with JSONB
// values.
type PostgresGateway struct {
	db    DB
	close func()
}

// NewPostgresGateway wraps an existing connection or pool. The caller owns
// db and is responsible for calling [PostgresGateway.Migrate].
func NewPostgresGateway(db DB) *PostgresGateway {
	return &PostgresGateway{db: db}
}

// OpenPostgres connects a pool to dsn, migrates the schema and returns a
// gateway that closes the pool on Close.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresGateway, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping postgres: %w", err)
	}
	g := &PostgresGateway{db: pool, close: pool.Close}
	if err := g.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return g, nil
}

// Migrate executes [PostgresSchema].
func (g *PostgresGateway) Migrate(ctx context.Context) error {
	if _, err := g.db.Exec(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("storage: migrate: %w", err)
	}
	return nil
}

// Read implements [Gateway.Read].
func (g *PostgresGateway) Read(ctx context.Context, key string) json.RawMessage {
	const query = `SELECT value FROM fearkeeper_records WHERE key = $1`

	var value []byte
	if err := g.db.QueryRow(ctx, query, key).Scan(&value); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			slog.Warn("storage: postgres read failed", "key", key, "err", err)
		}
		return nil
	}
	return validRecord(value)
}

// Write implements [Gateway.Write].
func (g *PostgresGateway) Write(ctx context.Context, key string, record json.RawMessage) error {
	const query = `
		INSERT INTO fearkeeper_records (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = now()`

	if _, err := g.db.Exec(ctx, query, key, []byte(record)); err != nil {
		return fmt.Errorf("storage: postgres write %q: %w", key, err)
	}
	return nil
}

// Ping runs a trivial query against the database.
func (g *PostgresGateway) Ping(ctx context.Context) error {
	var one int
	if err := g.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("storage: postgres ping: %w", err)
	}
	return nil
}

// Close closes the pool when the gateway opened it itself.
func (g *PostgresGateway) Close() error {
	if g.close != nil {
		g.close()
	}
	return nil
}
