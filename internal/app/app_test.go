package app_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrWong99/fearkeeper/internal/app"
	"github.com/MrWong99/fearkeeper/internal/config"
	"github.com/MrWong99/fearkeeper/internal/health"
	"github.com/MrWong99/fearkeeper/internal/storage"
)

const bestiaryYAML = `
name: "Swamp"
source: "Swamp"
adversaries:
  - name: "Bog Goblin"
    type: Minion
    hp_max: 1
    stress_max: 1
environments:
  - name: "Sunken Causeway"
`

const foundryJSON = `{"actors": [{"_id": "a1", "name": "Cave Ogre", "type": "adversary",
  "system": {"type": "bruiser", "resources": {"hitPoints": {"value": 0, "max": 8}, "stress": {"value": 0, "max": 3}}}}]}`

// testConfig returns a minimal in-memory config for tests.
func testConfig() *config.Config {
	cfg := &config.Config{
		Server:  config.ServerConfig{ListenAddr: "127.0.0.1:0", LogLevel: config.LogInfo},
		Storage: config.StorageConfig{Driver: config.DriverMemory},
	}
	return cfg
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNew_SeedsPartySizeFromConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		stored string
		config int
		want   int
	}{
		{name: "fresh table uses config", config: 6, want: 6},
		{name: "fresh table without config uses default", want: 4},
		{name: "stored value wins", stored: `{"partySize":3}`, config: 6, want: 3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			gw := storage.NewMemGateway()
			if tc.stored != "" {
				gw.Seed(storage.KeyGameState, []byte(tc.stored))
			}
			cfg := testConfig()
			cfg.Table.PartySize = tc.config

			a, err := app.New(context.Background(), cfg, app.WithGateway(gw))
			if err != nil {
				t.Fatalf("New() returned error: %v", err)
			}
			t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

			if got := a.Dashboard().Settings().PartySize; got != tc.want {
				t.Errorf("PartySize = %d, want %d", got, tc.want)
			}
			if gw.Writes() != 0 {
				t.Errorf("New() wrote %d records to storage", gw.Writes())
			}
		})
	}
}

func TestNew_ImportsContent(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Content.Files = []string{writeFile(t, "swamp.yaml", bestiaryYAML)}
	cfg.Content.FoundryFiles = []string{writeFile(t, "world.json", foundryJSON)}

	a, err := app.New(context.Background(), cfg, app.WithGateway(storage.NewMemGateway()))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	defer a.Shutdown(context.Background())

	state := a.Dashboard().Snapshot()
	if len(state.CustomAdversaries) != 2 {
		t.Fatalf("custom adversaries = %d, want 2", len(state.CustomAdversaries))
	}
	if got := state.CustomAdversaries[1].Source; got != "world" {
		t.Errorf("foundry source = %q, want %q", got, "world")
	}
	if len(state.CustomEnvironments) != 1 {
		t.Errorf("custom environments = %d, want 1", len(state.CustomEnvironments))
	}
	if len(state.Adversaries) != 0 {
		t.Errorf("import touched the live table: %d adversaries", len(state.Adversaries))
	}
}

func TestNew_ContentErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content config.ContentConfig
	}{
		{name: "missing yaml file", content: config.ContentConfig{Files: []string{"/does/not/exist.yaml"}}},
		{name: "missing foundry file", content: config.ContentConfig{FoundryFiles: []string{"/does/not/exist.json"}}},
		{name: "invalid yaml", content: config.ContentConfig{Files: []string{writeFile(t, "bad.yaml", "adversaries:\n  - type: Spooky\n")}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig()
			cfg.Content = tc.content
			if _, err := app.New(context.Background(), cfg, app.WithGateway(storage.NewMemGateway())); err == nil {
				t.Fatal("New() expected error, got nil")
			}
		})
	}
}

func TestNew_StorageFromRegistry(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Storage = config.StorageConfig{Driver: config.DriverFile, Path: t.TempDir()}

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	a.Dashboard().SetFear(context.Background(), 5)
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	b, err := app.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("second New() returned error: %v", err)
	}
	defer b.Shutdown(context.Background())
	if got := b.Dashboard().Settings().Fear.Value; got != 5 {
		t.Errorf("fear after restart = %d, want 5", got)
	}
}

func TestNew_UnknownDriver(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Storage.Driver = "etcd"
	if _, err := app.New(context.Background(), cfg); err == nil {
		t.Fatal("New() expected error for unknown driver")
	}
}

func TestApp_ConfigChange(t *testing.T) {
	t.Parallel()

	lv := new(slog.LevelVar)
	old := testConfig()
	a, err := app.New(context.Background(), old,
		app.WithGateway(storage.NewMemGateway()),
		app.WithLevelVar(lv),
	)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	defer a.Shutdown(context.Background())

	next := testConfig()
	next.Server.LogLevel = config.LogDebug
	next.Content.Files = []string{writeFile(t, "swamp.yaml", bestiaryYAML)}
	a.ApplyConfigChange(old, next)

	if lv.Level() != slog.LevelDebug {
		t.Errorf("level = %v, want debug", lv.Level())
	}
	if got := len(a.Dashboard().Snapshot().CustomAdversaries); got != 1 {
		t.Fatalf("custom adversaries after reload = %d, want 1", got)
	}

	// Re-importing the same library replaces its entries.
	a.ApplyConfigChange(old, next)
	if got := len(a.Dashboard().Snapshot().CustomAdversaries); got != 1 {
		t.Errorf("custom adversaries after second reload = %d, want 1", got)
	}
}

func TestApp_BrokenReloadDegradesReadiness(t *testing.T) {
	t.Parallel()

	old := testConfig()
	a, err := app.New(context.Background(), old, app.WithGateway(storage.NewMemGateway()))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	defer a.Shutdown(context.Background())

	readyz := func() string {
		rec := httptest.NewRecorder()
		a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET /readyz = %d, want 200", rec.Code)
		}
		var body health.Result
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		return body.Status
	}

	if got := readyz(); got != health.StatusOK {
		t.Fatalf("readiness before reload = %q", got)
	}

	next := testConfig()
	next.Content.Files = []string{filepath.Join(t.TempDir(), "gone.yaml")}
	a.ApplyConfigChange(old, next)
	if got := readyz(); got != health.StatusDegraded {
		t.Errorf("readiness after broken reload = %q, want degraded", got)
	}

	a.ApplyConfigChange(next, old)
	if got := readyz(); got != health.StatusOK {
		t.Errorf("readiness after fixing reload = %q, want ok", got)
	}
}

func TestApp_Shutdown(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(), app.WithGateway(storage.NewMemGateway()))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() returned error: %v", err)
	}
	// Second call is a no-op.
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown() returned error: %v", err)
	}
}

func TestApp_RunAndShutdown(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	a, err := app.New(context.Background(), testConfig(),
		app.WithGateway(storage.NewMemGateway()),
		app.WithListener(ln),
	)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	url := fmt.Sprintf("http://%s/api/state", ln.Addr())
	var resp *http.Response
	for range 50 {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /api/state: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /api/state status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}

	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() returned error: %v", err)
	}
}
