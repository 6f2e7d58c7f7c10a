package storage

import "context"

// Pragma reads a single PRAGMA value from the connection.
func (g *SQLiteGateway) Pragma(ctx context.Context, name string) (string, error) {
	var v string
	err := g.db.QueryRowContext(ctx, "PRAGMA "+name).Scan(&v)
	return v, err
}
