package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

// Compile-time assertion that FileGateway satisfies the Gateway interface.
var _ Gateway = (*FileGateway)(nil)

// keyPattern restricts keys to names that are safe as file names.
var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// FileGateway stores each key as <dir>/<key>.json. Writes go to a temporary
// file that is renamed over the target, so a crash never leaves a truncated
// record behind.
type FileGateway struct {
	dir string
	mu  sync.Mutex
}

// NewFileGateway creates dir if needed and returns a gateway rooted there.
func NewFileGateway(dir string) (*FileGateway, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage: file gateway: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: file gateway: create %q: %w", dir, err)
	}
	return &FileGateway{dir: dir}, nil
}

func (g *FileGateway) path(key string) (string, error) {
	if !keyPattern.MatchString(key) {
		return "", fmt.Errorf("storage: invalid key %q", key)
	}
	return filepath.Join(g.dir, key+".json"), nil
}

// Read implements [Gateway.Read].
func (g *FileGateway) Read(_ context.Context, key string) json.RawMessage {
	p, err := g.path(key)
	if err != nil {
		slog.Warn("storage: file read skipped", "key", key, "err", err)
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	b, err := os.ReadFile(p)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("storage: file read failed", "key", key, "err", err)
		}
		return nil
	}
	return validRecord(b)
}

// Write implements [Gateway.Write].
func (g *FileGateway) Write(_ context.Context, key string, record json.RawMessage) error {
	p, err := g.path(key)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	tmp, err := os.CreateTemp(g.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("storage: write %q: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(record); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: write %q: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("storage: write %q: %w", key, err)
	}
	return nil
}

// Ping reports whether the directory is still reachable.
func (g *FileGateway) Ping(_ context.Context) error {
	if _, err := os.Stat(g.dir); err != nil {
		return fmt.Errorf("storage: file gateway: %w", err)
	}
	return nil
}

// Close implements [Gateway.Close]. It is a no-op.
func (g *FileGateway) Close() error { return nil }
