// Package app wires all fearkeeper subsystems into a running application.
//
// The App struct owns the full lifecycle: New opens storage, mounts the
// dashboard and imports content libraries, Run serves the HTTP API (or the
// MCP tools over stdio) until the context is cancelled, and Shutdown tears
// everything down in order.
//
// For testing, inject doubles via functional options (WithGateway,
// WithListener, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/fearkeeper/internal/api"
	"github.com/MrWong99/fearkeeper/internal/config"
	"github.com/MrWong99/fearkeeper/internal/entity"
	"github.com/MrWong99/fearkeeper/internal/gamestate"
	"github.com/MrWong99/fearkeeper/internal/health"
	"github.com/MrWong99/fearkeeper/internal/mcptools"
	"github.com/MrWong99/fearkeeper/internal/observe"
	"github.com/MrWong99/fearkeeper/internal/storage"
)

// httpShutdownTimeout bounds the graceful HTTP drain when Run's context is
// cancelled.
const httpShutdownTimeout = 5 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg      *config.Config
	version  string
	registry *config.Registry
	metrics  *observe.Metrics
	level    *slog.LevelVar

	gw      storage.Gateway
	dash    *gamestate.Dashboard
	api     *api.Server
	mcp     *mcp.Server
	httpSrv *http.Server
	ln      net.Listener

	configPath string
	watcher    *config.Watcher

	contentMu  sync.Mutex
	contentErr error

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithGateway injects a storage gateway instead of creating one from config.
// The caller keeps ownership: Shutdown does not close it.
func WithGateway(gw storage.Gateway) Option {
	return func(a *App) { a.gw = gw }
}

// WithRegistry replaces the built-in storage driver registry.
func WithRegistry(r *config.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithMetrics records all instruments on m instead of the global provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLevelVar lets config reloads change the log level of the running
// process.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// WithConfigPath enables hot reload of the config file at path.
func WithConfigPath(path string) Option {
	return func(a *App) { a.configPath = path }
}

// WithListener serves HTTP on ln instead of listening on
// cfg.Server.ListenAddr.
func WithListener(ln net.Listener) Option {
	return func(a *App) { a.ln = ln }
}

// WithVersion sets the version reported to MCP clients.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// New creates an App by wiring all subsystems together. Any subsystem not
// provided via Option is created from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, version: "dev"}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initStorage(ctx); err != nil {
		return nil, fmt.Errorf("app: init storage: %w", err)
	}
	a.initDashboard(ctx)
	if err := a.loadContent(ctx, cfg.Content); err != nil {
		_ = a.Shutdown(ctx)
		return nil, fmt.Errorf("app: load content: %w", err)
	}
	a.initServers()
	if err := a.initWatcher(); err != nil {
		_ = a.Shutdown(ctx)
		return nil, fmt.Errorf("app: init config watcher: %w", err)
	}

	slog.Info("app initialised",
		"storage", cfg.Storage.Driver,
		"adversaries", len(a.dash.Adversaries()),
		"party_size", a.dash.Settings().PartySize,
	)
	return a, nil
}

// Dashboard returns the mounted game state.
func (a *App) Dashboard() *gamestate.Dashboard { return a.dash }

// initStorage opens the configured gateway unless one was injected.
func (a *App) initStorage(ctx context.Context) error {
	if a.gw != nil {
		return nil
	}
	if a.registry == nil {
		a.registry = config.NewRegistry()
		config.RegisterBuiltinStorage(a.registry)
	}
	gw, err := a.registry.CreateStorage(ctx, a.cfg.Storage)
	if err != nil {
		return err
	}
	a.gw = gw
	a.closers = append(a.closers, gw.Close)
	return nil
}

// initDashboard builds and mounts the game state. A configured party size
// seeds a fresh table; stored settings always win.
func (a *App) initDashboard(ctx context.Context) {
	initial := entity.DefaultSettings()
	if a.cfg.Table.PartySize > 0 {
		initial.PartySize = a.cfg.Table.PartySize
	}
	a.dash = gamestate.New(a.gw,
		gamestate.WithMetrics(a.metrics),
		gamestate.WithInitialSettings(initial),
	)
	a.dash.Mount(ctx)
}

// loadContent imports every configured library into the custom library.
// All files are attempted; failures are joined.
func (a *App) loadContent(ctx context.Context, c config.ContentConfig) error {
	var errs []error
	for _, path := range c.Files {
		lib, err := entity.LoadLibraryFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		a.importLibrary(ctx, path, lib)
	}
	for _, path := range c.FoundryFiles {
		lib, err := loadFoundryFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		a.importLibrary(ctx, path, lib)
	}
	err := errors.Join(errs...)
	a.contentMu.Lock()
	a.contentErr = err
	a.contentMu.Unlock()
	return err
}

// lastContentErr reports the outcome of the most recent content import.
func (a *App) lastContentErr() error {
	a.contentMu.Lock()
	defer a.contentMu.Unlock()
	return a.contentErr
}

func (a *App) importLibrary(ctx context.Context, path string, lib *entity.Library) {
	advs, envs := a.dash.ImportLibrary(ctx, lib)
	slog.Info("content library imported", "path", path, "adversaries", advs, "environments", envs)
}

// loadFoundryFile reads a Foundry VTT export. Entries are tagged with the
// file's base name so a re-import replaces them.
func loadFoundryFile(path string) (*entity.Library, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("app: open foundry export %q: %w", path, err)
	}
	defer f.Close()

	source := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	lib, err := entity.ImportFoundryVTT(f, source)
	if err != nil {
		return nil, fmt.Errorf("app: foundry export %q: %w", path, err)
	}
	return lib, nil
}

func (a *App) initServers() {
	a.api = api.New(a.dash,
		api.WithMetrics(a.metrics),
		api.WithHealth(health.New(
			health.StorageChecker(a.gw),
			health.ContentChecker(a.lastContentErr),
		)),
		api.WithAllowedOrigins(a.cfg.Server.AllowedOrigins),
		api.WithMetricsHandler(observe.MetricsHandler()),
	)
	a.httpSrv = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.mcp = mcptools.NewServer(a.dash, a.metrics, a.version)
}

func (a *App) initWatcher() error {
	if a.configPath == "" {
		return nil
	}
	w, err := config.NewWatcher(a.configPath, a.onConfigChange)
	if err != nil {
		return err
	}
	a.watcher = w
	return nil
}

// onConfigChange applies the hot-reloadable parts of a new config.
func (a *App) onConfigChange(old, new *config.Config) {
	diff := config.Diff(old, new)
	if diff.LogLevelChanged && a.level != nil {
		a.level.Set(diff.NewLogLevel.Slog())
		slog.Info("log level changed", "level", diff.NewLogLevel)
	}
	if diff.ContentChanged {
		// The background watcher has no request context.
		if err := a.loadContent(context.Background(), new.Content); err != nil {
			slog.Warn("content reload incomplete", "err", err)
		}
	}
	if len(diff.RestartRequired) > 0 {
		slog.Warn("config changes require a restart", "settings", diff.RestartRequired)
	}
}

// Run serves until ctx is cancelled or a server fails. With MCP stdio
// enabled the tools are served on stdin/stdout and no HTTP listener is
// opened.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Run(ctx) })
	}

	if a.cfg.MCP.Stdio {
		slog.Info("serving MCP tools on stdio")
		g.Go(func() error {
			// A disconnecting client ends the process.
			defer cancel()
			return mcptools.Serve(ctx, a.mcp)
		})
	} else {
		ln := a.ln
		if ln == nil {
			var err error
			ln, err = net.Listen("tcp", a.httpSrv.Addr)
			if err != nil {
				return fmt.Errorf("app: listen %q: %w", a.httpSrv.Addr, err)
			}
		}
		slog.Info("http api listening", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)

		g.Go(func() error {
			var err error
			if tls := a.cfg.Server.TLS; tls != nil {
				err = a.httpSrv.ServeTLS(ln, tls.CertFile, tls.KeyFile)
			} else {
				err = a.httpSrv.Serve(ln)
			}
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
			defer cancel()
			return a.httpSrv.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown tears down all subsystems in init order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if a.httpSrv != nil {
			if err := a.httpSrv.Shutdown(ctx); err != nil {
				slog.Warn("http shutdown error", "err", err)
			}
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
