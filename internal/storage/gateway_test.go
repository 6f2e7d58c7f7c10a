package storage_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrWong99/fearkeeper/internal/storage"
)

// gatewayContract runs the behaviour every backend must share.
func gatewayContract(t *testing.T, gw storage.Gateway) {
	t.Helper()
	ctx := context.Background()

	if got := gw.Read(ctx, "missing"); got != nil {
		t.Fatalf("Read(missing) = %s, want nil", got)
	}

	if err := gw.Write(ctx, storage.KeyCustomAdversaries, json.RawMessage(`[{"id":"a"}]`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := string(gw.Read(ctx, storage.KeyCustomAdversaries)); got != `[{"id":"a"}]` {
		t.Fatalf("Read after Write = %s", got)
	}

	if err := gw.Write(ctx, storage.KeyCustomAdversaries, json.RawMessage(`[]`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got := string(gw.Read(ctx, storage.KeyCustomAdversaries)); got != `[]` {
		t.Fatalf("Read after overwrite = %s", got)
	}
}

func TestMemGateway(t *testing.T) {
	t.Parallel()
	gatewayContract(t, storage.NewMemGateway())
}

func TestMemGateway_CorruptReadsAsNil(t *testing.T) {
	t.Parallel()
	gw := storage.NewMemGateway()
	gw.Seed("broken", []byte("{not json"))
	if got := gw.Read(context.Background(), "broken"); got != nil {
		t.Fatalf("Read(broken) = %s, want nil", got)
	}
}

func TestFileGateway(t *testing.T) {
	t.Parallel()
	gw, err := storage.NewFileGateway(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileGateway: %v", err)
	}
	gatewayContract(t, gw)
}

func TestFileGateway_CorruptFileReadsAsNil(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	gw, err := storage.NewFileGateway(dir)
	if err != nil {
		t.Fatalf("NewFileGateway: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "gameState.json"), []byte("{{{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := gw.Read(context.Background(), storage.KeyGameState); got != nil {
		t.Fatalf("Read = %s, want nil", got)
	}
}

func TestFileGateway_RejectsUnsafeKeys(t *testing.T) {
	t.Parallel()
	gw, err := storage.NewFileGateway(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileGateway: %v", err)
	}
	if err := gw.Write(context.Background(), "../escape", json.RawMessage(`{}`)); err == nil {
		t.Fatal("Write with path traversal key: expected error")
	}
}

func TestSQLiteGateway(t *testing.T) {
	t.Parallel()
	gw, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "fearkeeper.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = gw.Close() })

	gatewayContract(t, gw)

	if err := gw.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestOpenSQLite_Pragmas(t *testing.T) {
	t.Parallel()
	gw, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "fearkeeper.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = gw.Close() })

	tests := []struct {
		pragma string
		want   string
	}{
		{pragma: "journal_mode", want: "wal"},
		{pragma: "busy_timeout", want: "5000"},
		{pragma: "synchronous", want: "1"},
	}
	for _, tc := range tests {
		got, err := gw.Pragma(context.Background(), tc.pragma)
		if err != nil {
			t.Fatalf("PRAGMA %s: %v", tc.pragma, err)
		}
		if got != tc.want {
			t.Errorf("PRAGMA %s = %q, want %q", tc.pragma, got, tc.want)
		}
	}
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	t.Parallel()
	if _, err := storage.OpenSQLite("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
