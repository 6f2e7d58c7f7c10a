package config

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/fearkeeper/internal/observe"
	"github.com/MrWong99/fearkeeper/internal/resilience"
	"github.com/MrWong99/fearkeeper/internal/storage"
)

// ErrDriverNotRegistered is returned by [Registry.CreateStorage] when no
// factory has been registered under the requested driver name.
var ErrDriverNotRegistered = errors.New("config: storage driver not registered")

// StorageFactory opens a [storage.Gateway] from its configuration.
type StorageFactory func(ctx context.Context, cfg StorageConfig) (storage.Gateway, error)

// Registry maps storage driver names to their constructor functions. It is
// safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	storage map[string]StorageFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{storage: make(map[string]StorageFactory)}
}

// RegisterStorage registers a storage factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterStorage(name string, factory StorageFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storage[name] = factory
}

// StorageDrivers returns the registered driver names in sorted order.
func (r *Registry) StorageDrivers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.storage))
	for name := range r.storage {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// CreateStorage opens a gateway using the factory registered under
// cfg.Driver. Returns [ErrDriverNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateStorage(ctx context.Context, cfg StorageConfig) (storage.Gateway, error) {
	r.mu.RLock()
	factory, ok := r.storage[cfg.Driver]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDriverNotRegistered, cfg.Driver)
	}
	gw, err := factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: open storage %q: %w", cfg.Driver, err)
	}
	return gw, nil
}

// RegisterBuiltinStorage registers the memory, file, sqlite and postgres
// drivers. Postgres writes go through a circuit breaker.
func RegisterBuiltinStorage(r *Registry) {
	r.RegisterStorage(DriverMemory, func(context.Context, StorageConfig) (storage.Gateway, error) {
		return storage.NewMemGateway(), nil
	})
	r.RegisterStorage(DriverFile, func(_ context.Context, cfg StorageConfig) (storage.Gateway, error) {
		gw, err := storage.NewFileGateway(cfg.Path)
		if err != nil {
			return nil, err
		}
		return gw, nil
	})
	r.RegisterStorage(DriverSQLite, func(_ context.Context, cfg StorageConfig) (storage.Gateway, error) {
		gw, err := storage.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return gw, nil
	})
	r.RegisterStorage(DriverPostgres, func(ctx context.Context, cfg StorageConfig) (storage.Gateway, error) {
		gw, err := storage.OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return storage.NewBreakerGateway(gw, resilience.New(resilience.Config{
			Name: "storage.postgres",
			OnStateChange: func(name string, _, to resilience.State) {
				observe.DefaultMetrics().RecordBreakerTransition(context.Background(), name, to.String())
			},
		})), nil
	})
}
