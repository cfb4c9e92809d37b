package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/spellin/internal/app"
	"github.com/MrWong99/spellin/internal/config"
	"github.com/MrWong99/spellin/internal/observe"
	"github.com/MrWong99/spellin/pkg/kv"
	"github.com/MrWong99/spellin/pkg/kv/file"
	"github.com/MrWong99/spellin/pkg/kv/mock"
)

// testConfig returns a valid in-memory config for tests.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Backend = config.StorageMemory
	cfg.Storage.Path = t.TempDir()
	return cfg
}

// testMetrics returns metrics backed by a manual reader.
func testMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// listen returns a loopback listener and the base URL it serves.
func listen(t *testing.T) (net.Listener, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return ln, "http://" + ln.Addr().String()
}

// runApp starts a.Run in the background. The returned func cancels it and
// returns Run's error.
func runApp(t *testing.T, a *app.App) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	return func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not return after cancel")
			return nil
		}
	}
}

// spellWords fetches /api/spell and returns the spelled words.
func spellWords(base, text string) ([]string, error) {
	resp, err := http.Get(base + "/api/spell?text=" + text)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	var body struct {
		Words []string `json:"words"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Words, nil
}

func counterSum(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

// ─── New ─────────────────────────────────────────────────────────────────────

func TestNew_WithBackend(t *testing.T) {
	t.Parallel()

	backend := &mock.Backend{}
	m, _ := testMetrics(t)
	a, err := app.New(context.Background(), testConfig(t), app.WithBackend(backend), app.WithMetrics(m))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	key, err := a.Store().Add(context.Background(), "Hello World", "")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if key != "hello-world" {
		t.Errorf("key = %q, want hello-world", key)
	}
	if got := backend.CallCount("Set"); got != 1 {
		t.Errorf("Set call count = %d, want 1", got)
	}

	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if got := backend.CallCount("Close"); got != 0 {
		t.Errorf("injected backend closed %d times, want 0", got)
	}
}

func TestNew_ClosesOwnedBackend(t *testing.T) {
	t.Parallel()

	m, _ := testMetrics(t)
	a, err := app.New(context.Background(), testConfig(t), app.WithMetrics(m))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if _, err := a.Store().List(context.Background()); !errors.Is(err, kv.ErrClosed) {
		t.Errorf("List after shutdown err = %v, want kv.ErrClosed", err)
	}
	// A second Shutdown is a no-op.
	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}

func TestShutdown_RespectsDeadline(t *testing.T) {
	t.Parallel()

	m, _ := testMetrics(t)
	a, err := app.New(context.Background(), testConfig(t), app.WithMetrics(m))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Shutdown(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Shutdown err = %v, want context.Canceled", err)
	}
}

// ─── OpenBackend ─────────────────────────────────────────────────────────────

func TestOpenBackend_Memory(t *testing.T) {
	t.Parallel()

	b, err := app.OpenBackend(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("OpenBackend: %v", err)
	}
	defer b.Close()
	if _, ok := b.(*kv.MemBackend); !ok {
		t.Errorf("backend = %T, want *kv.MemBackend", b)
	}
}

func TestOpenBackend_FilePersistsSealed(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Storage.Backend = config.StorageFile
	ctx := context.Background()

	b, err := app.OpenBackend(ctx, cfg)
	if err != nil {
		t.Fatalf("OpenBackend: %v", err)
	}
	if _, err := b.Set(ctx, "secret-phrase", "Secret Phrase"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	raw, err := os.ReadFile(file.Path(cfg.Storage.Path, cfg.Storage.StoreID))
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	if strings.Contains(string(raw), "Secret Phrase") {
		t.Error("document contains the plaintext value")
	}

	b, err = app.OpenBackend(ctx, cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b.Close()
	v, ok, err := b.Get(ctx, "secret-phrase")
	if err != nil || !ok || v != "Secret Phrase" {
		t.Errorf("Get after reopen = (%q, %v, %v), want (Secret Phrase, true, nil)", v, ok, err)
	}
}

func TestOpenBackend_WrongKey(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Storage.Backend = config.StorageFile
	ctx := context.Background()

	b, err := app.OpenBackend(ctx, cfg)
	if err != nil {
		t.Fatalf("OpenBackend: %v", err)
	}
	if _, err := b.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	_ = b.Close()

	cfg.Storage.EncryptionKey = "another key"
	if _, err := app.OpenBackend(ctx, cfg); !errors.Is(err, kv.ErrSealed) {
		t.Errorf("OpenBackend with wrong key err = %v, want kv.ErrSealed", err)
	}
}

func TestOpenBackend_Unknown(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Storage.Backend = "tape"
	if _, err := app.OpenBackend(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

func TestRun_ServesAPI(t *testing.T) {
	t.Parallel()

	ln, base := listen(t)
	m, _ := testMetrics(t)
	a, err := app.New(context.Background(), testConfig(t), app.WithListener(ln), app.WithMetrics(m))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	stop := runApp(t, a)

	words, err := spellWords(base, "AB")
	if err != nil {
		t.Fatalf("GET /api/spell: %v", err)
	}
	if strings.Join(words, " ") != "Alfa Bravo" {
		t.Errorf("words = %v, want [Alfa Bravo]", words)
	}

	resp, err := http.Get(base + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/readyz status = %d, want 200", resp.StatusCode)
	}

	if err := stop(); !errors.Is(err, context.Canceled) {
		t.Errorf("Run err = %v, want context.Canceled", err)
	}
}

func TestRun_ListenError(t *testing.T) {
	t.Parallel()

	ln, _ := listen(t)
	defer ln.Close()

	cfg := testConfig(t)
	cfg.Server.ListenAddr = ln.Addr().String()
	m, _ := testMetrics(t)
	a, err := app.New(context.Background(), cfg, app.WithMetrics(m))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Run(ctx); err == nil || errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run err = %v, want listen error", err)
	}
}

func TestRun_HotReload(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	write := func(content string, mtime time.Time) {
		t.Helper()
		if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
		if err := os.Chtimes(cfgPath, mtime, mtime); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}
	const base = `
server:
  log_level: info
storage:
  backend: memory
`
	start := time.Now().Add(-time.Minute)
	write(base, start)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	var level slog.LevelVar
	ln, url := listen(t)
	m, reader := testMetrics(t)
	a, err := app.New(context.Background(), cfg,
		app.WithListener(ln),
		app.WithMetrics(m),
		app.WithConfigPath(cfgPath),
		app.WithWatchInterval(10*time.Millisecond),
		app.WithLogLevel(&level),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	stop := runApp(t, a)
	defer stop()

	words, err := spellWords(url, "1")
	if err != nil {
		t.Fatalf("spell: %v", err)
	}
	if len(words) != 1 || words[0] != "One" {
		t.Fatalf("before reload words = %v, want [One]", words)
	}

	write(`
server:
  log_level: debug
storage:
  backend: memory
spell:
  extended_numbers: true
`, start.Add(time.Second))

	deadline := time.Now().Add(3 * time.Second)
	for {
		words, err = spellWords(url, "1")
		if err == nil && len(words) == 1 && words[0] == "One, unaone" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("extended numbers not applied; last words = %v, err = %v", words, err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if level.Level() != slog.LevelDebug {
		t.Errorf("log level = %v, want debug", level.Level())
	}
	if !a.Config().Spell.ExtendedNumbers {
		t.Error("Config() not updated after reload")
	}
	if got := counterSum(t, reader, "spellin.config.reloads"); got != 1 {
		t.Errorf("config reloads = %d, want 1", got)
	}
}
