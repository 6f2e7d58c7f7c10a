package health

import (
	"context"
	"errors"

	"github.com/MrWong99/fearkeeper/internal/storage"
)

// StorageChecker probes gw. Backends implementing [storage.Pinger] are
// pinged; the others are always considered ready since their reads cannot
// fail.
func StorageChecker(gw storage.Gateway) Checker {
	return Checker{
		Name: "storage",
		Check: func(ctx context.Context) error {
			if gw == nil {
				return errors.New("no storage gateway configured")
			}
			if p, ok := gw.(storage.Pinger); ok {
				return p.Ping(ctx)
			}
			return nil
		},
	}
}

// ContentChecker reports the error of the last content library import, as
// returned by lastErr. It is optional: a broken library degrades readiness
// without taking the table offline.
func ContentChecker(lastErr func() error) Checker {
	return Checker{
		Name:     "content",
		Optional: true,
		Check:    func(context.Context) error { return lastErr() },
	}
}
