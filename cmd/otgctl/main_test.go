package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/otg-controller/internal/api"
	"github.com/nerrad567/otg-controller/internal/automation"
	"github.com/nerrad567/otg-controller/internal/device"
	"github.com/nerrad567/otg-controller/internal/infrastructure/config"
	"github.com/nerrad567/otg-controller/internal/infrastructure/database"
	"github.com/nerrad567/otg-controller/internal/infrastructure/logging"
)

const testSecret = "test-secret-for-development-only-0123456789"

// writeConfig writes a minimal config pointing the database into a temp dir.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`
controller:
  id: test-controller

database:
  path: %q
  wal_mode: true
  busy_timeout: 5

logging:
  level: error
  format: text
  output: stderr
%s`, filepath.Join(dir, "otg.db"), extra)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// freePort returns a TCP port that was free a moment ago.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

type mockLister struct {
	devices []device.Discovered
	err     error
}

func (m *mockLister) ListDevices(context.Context) ([]device.Discovered, error) {
	return m.devices, m.err
}

// ─── Command tree ───────────────────────────────────────────────────────────

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand()

	for _, path := range [][]string{
		{"serve"}, {"devices"}, {"devices", "sync"}, {"devices", "list"}, {"token"}, {"version"},
	} {
		name := strings.Join(path, " ")
		t.Run(name, func(t *testing.T) {
			cmd, _, err := root.Find(path)
			if err != nil {
				t.Fatalf("Find(%s) error = %v", name, err)
			}
			if cmd.Name() != path[len(path)-1] {
				t.Errorf("Find(%s) = %s", name, cmd.Name())
			}
		})
	}

	if f := root.PersistentFlags().Lookup("config"); f == nil || f.Shorthand != "c" {
		t.Error("--config/-c flag missing")
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "otgctl "+version) {
		t.Errorf("output = %q", out.String())
	}
}

// ─── Config path ────────────────────────────────────────────────────────────

func TestGetConfigPath(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv(configEnv, "")
	if got := getConfigPath(""); got != "" {
		t.Errorf("no flag, no env, no default file: got %q, want \"\"", got)
	}

	if err := os.MkdirAll("configs", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(defaultConfigPath, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	if got := getConfigPath(""); got != defaultConfigPath {
		t.Errorf("default file present: got %q", got)
	}

	t.Setenv(configEnv, "/env/config.yaml")
	if got := getConfigPath(""); got != "/env/config.yaml" {
		t.Errorf("env override: got %q", got)
	}
	if got := getConfigPath("/flag/config.yaml"); got != "/flag/config.yaml" {
		t.Errorf("flag override: got %q", got)
	}
}

func TestAutomationDefaults(t *testing.T) {
	got := automationDefaults(config.AutomationDefaultsConfig{
		Name:                "Night shift",
		Platform:            "instagram",
		PostIntervalSeconds: 20,
	})
	if got.Name != "Night shift" || got.Platform != device.PlatformInstagram || got.PostIntervalSeconds != 20 {
		t.Errorf("automationDefaults() = %+v", got)
	}
	if got.ScrollDelaySeconds != automation.DefaultConfig().ScrollDelaySeconds {
		t.Errorf("unset scroll delay = %v, want default", got.ScrollDelaySeconds)
	}
	if got.Running != automation.RunStopped {
		t.Errorf("Running = %q", got.Running)
	}
}

// ─── serve ──────────────────────────────────────────────────────────────────

func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, &rootOptions{ConfigPath: "/nonexistent/path/config.yaml"})
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRun_MissingDatabasePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("database:\n  path: \"\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, &rootOptions{ConfigPath: path}); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

func TestRun_StartsAndShutsDown(t *testing.T) {
	path := writeConfig(t, fmt.Sprintf("\napi:\n  host: 127.0.0.1\n  port: %d\n", freePort(t)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, &rootOptions{ConfigPath: path}) }()

	time.Sleep(500 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRun_EngineClosesBeforeTelemetry(t *testing.T) {
	influx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer influx.Close()

	logs := &syncBuffer{}
	orig := newLogger
	newLogger = func(cfg config.LoggingConfig, version string) *logging.Logger {
		cfg.Level = "info"
		return logging.NewWithWriter(logs, cfg, version)
	}
	defer func() { newLogger = orig }()

	path := writeConfig(t, fmt.Sprintf(`
api:
  host: 127.0.0.1
  port: %d
influxdb:
  enabled: true
  url: %q
  token: test-token
  org: test-org
  bucket: test-bucket
`, freePort(t), influx.URL))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, &rootOptions{ConfigPath: path}) }()

	time.Sleep(500 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancel")
	}

	out := logs.String()
	engineAt := strings.Index(out, "stopping automation engine")
	influxAt := strings.Index(out, "closing InfluxDB connection")
	if engineAt < 0 || influxAt < 0 {
		t.Fatalf("shutdown logs missing:\n%s", out)
	}
	if engineAt > influxAt {
		t.Errorf("engine closed after InfluxDB:\n%s", out)
	}
}

// ─── token ──────────────────────────────────────────────────────────────────

func TestTokenCommand(t *testing.T) {
	path := writeConfig(t, fmt.Sprintf("\nsecurity:\n  jwt:\n    secret: %q\n", testSecret))

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", path, "token", "--subject", "dashboard", "--ttl", "1h"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	sub, err := api.ParseToken(testSecret, strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if sub != "dashboard" {
		t.Errorf("subject = %q, want dashboard", sub)
	}
}

func TestTokenCommand_NoSecret(t *testing.T) {
	path := writeConfig(t, "")

	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config", path, "token"})

	if err := root.Execute(); err == nil {
		t.Fatal("Execute() should fail without a jwt secret")
	}
}

// ─── devices ────────────────────────────────────────────────────────────────

func newTestRegistry(t *testing.T) *device.Registry {
	t.Helper()
	path := writeConfig(t, "")
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	cfg.Database.Path = database.MemoryPath

	db, err := openDatabase(context.Background(), cfg)
	if err != nil {
		t.Fatalf("openDatabase: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	reg := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	if err := reg.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache: %v", err)
	}
	return reg
}

func TestSyncDevices(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	lister := &mockLister{devices: []device.Discovered{
		{ID: "FA:01", Name: "iPhone", Width: 390, Height: 844},
		{ID: "FA:02", Width: 820, Height: 1180},
	}}
	var out bytes.Buffer
	if err := syncDevices(ctx, lister, reg, &out); err != nil {
		t.Fatalf("syncDevices() error = %v", err)
	}
	if !strings.Contains(out.String(), "2 added") {
		t.Errorf("output = %q", out.String())
	}

	d, err := reg.GetDevice(ctx, "FA:02")
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if d.Label != "Device FA:02" {
		t.Errorf("label = %q, want fallback label", d.Label)
	}

	lister.err = errors.New("bridge unreachable")
	if err := syncDevices(ctx, lister, reg, &out); err == nil {
		t.Error("syncDevices() should fail when the bridge does")
	}
}

func TestPrintDevices(t *testing.T) {
	devices := []device.Device{
		{
			ID: "FA:01", Label: "Desk", Width: 390, Height: 844,
			Coords: device.Coords{TikTok: &device.TikTokCoords{LikeButton: &device.Point{XNorm: 0.9, YNorm: 0.5}}},
		},
		{ID: "FA:02", Label: "Shelf", State: device.StateOffline},
	}
	var out bytes.Buffer
	if err := printDevices(&out, devices); err != nil {
		t.Fatalf("printDevices() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[1], "ready") || !strings.Contains(lines[1], "390x844") {
		t.Errorf("row 1 = %q", lines[1])
	}
	if !strings.Contains(lines[2], "offline") {
		t.Errorf("row 2 = %q", lines[2])
	}
}
