package health

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/fearkeeper/internal/storage"
)

type pingGateway struct {
	*storage.MemGateway
	err error
}

func (p pingGateway) Ping(context.Context) error { return p.err }

func TestStorageChecker(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		gw      storage.Gateway
		wantErr bool
	}{
		{name: "memory without ping", gw: storage.NewMemGateway()},
		{name: "ping ok", gw: pingGateway{MemGateway: storage.NewMemGateway()}},
		{name: "ping fails", gw: pingGateway{MemGateway: storage.NewMemGateway(), err: errors.New("db down")}, wantErr: true},
		{name: "nil gateway", gw: nil, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := StorageChecker(tc.gw)
			if c.Name != "storage" {
				t.Errorf("Name = %q", c.Name)
			}
			err := c.Check(context.Background())
			if (err != nil) != tc.wantErr {
				t.Fatalf("Check() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestContentChecker(t *testing.T) {
	t.Parallel()

	var last error
	c := ContentChecker(func() error { return last })
	if !c.Optional || c.Name != "content" {
		t.Fatalf("checker = %+v", c)
	}
	if err := c.Check(context.Background()); err != nil {
		t.Fatalf("Check() = %v, want nil", err)
	}
	last = errors.New("bestiary.yaml: bad type")
	if err := c.Check(context.Background()); err == nil {
		t.Fatal("Check() = nil after a failed import")
	}
}
