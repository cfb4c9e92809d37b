// Package app wires the spellin subsystems into a running application.
//
// The App struct owns the full lifecycle: New opens the favourites backend and
// builds the HTTP API, Run serves it and watches the config file for hot
// reloads, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithBackend,
// WithMetrics, WithListener). When an option is not provided, New creates the
// real implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/spellin/internal/api"
	"github.com/MrWong99/spellin/internal/config"
	"github.com/MrWong99/spellin/internal/favourites"
	"github.com/MrWong99/spellin/internal/health"
	"github.com/MrWong99/spellin/internal/observe"
	"github.com/MrWong99/spellin/internal/resilience"
	"github.com/MrWong99/spellin/pkg/kv"
	"github.com/MrWong99/spellin/pkg/kv/file"
	"github.com/MrWong99/spellin/pkg/kv/postgres"
)

// serverShutdownTimeout bounds how long in-flight requests get to finish once
// Run's context is cancelled.
const serverShutdownTimeout = 10 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	mu  sync.Mutex
	cfg *config.Config

	configPath     string
	watchInterval  time.Duration
	level          *slog.LevelVar
	listener       net.Listener
	metricsHandler http.Handler

	// Subsystems, initialised in New and torn down in Shutdown.
	backend kv.Backend
	metrics *observe.Metrics
	store   *favourites.Store
	api     *api.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithBackend injects a storage backend instead of opening the configured
// one. The App does not close an injected backend.
func WithBackend(b kv.Backend) Option {
	return func(a *App) { a.backend = b }
}

// WithMetrics records metrics on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithConfigPath enables hot reload: Run polls path and applies changes to
// the log level, spelling and display settings without a restart.
func WithConfigPath(path string) Option {
	return func(a *App) { a.configPath = path }
}

// WithWatchInterval sets how often the config file is polled. Default: 5s.
func WithWatchInterval(d time.Duration) Option {
	return func(a *App) { a.watchInterval = d }
}

// WithLogLevel lets hot reload adjust lv when server.log_level changes.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// WithListener serves on ln instead of listening on server.listen_addr.
func WithListener(ln net.Listener) Option {
	return func(a *App) { a.listener = ln }
}

// WithMetricsHandler serves h on /metrics when server.metrics is enabled.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App from cfg. It opens the storage backend (unless one was
// injected), builds the favourites store, and assembles the HTTP API.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── Storage ───────────────────────────────────────────────────────────
	if a.backend == nil {
		b, err := OpenBackend(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		a.backend = b
		a.closers = append(a.closers, b.Close)
	}
	a.store = favourites.New(a.backend, favourites.WithMetrics(a.metrics))

	// ── HTTP API ──────────────────────────────────────────────────────────
	apiOpts := []api.Option{
		api.WithMetrics(a.metrics),
		api.WithHealth(health.New(health.PingChecker("storage", a.store))),
		api.WithExtendedNumbers(cfg.Spell.ExtendedNumbers),
		api.WithDisplay(cfg.Display),
	}
	if cfg.Server.Metrics && a.metricsHandler != nil {
		apiOpts = append(apiOpts, api.WithMetricsHandler(a.metricsHandler))
	}
	a.api = api.New(a.store, apiOpts...)

	return a, nil
}

// OpenBackend opens the favourites backend selected by cfg.Storage. Values
// are sealed with a key derived from the store ID and encryption key. The
// postgres backend is guarded by a circuit breaker.
func OpenBackend(ctx context.Context, cfg *config.Config) (kv.Backend, error) {
	sc := cfg.Storage
	sealer, err := kv.NewSealer(sc.StoreID, sc.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	switch sc.Backend {
	case config.StorageFile:
		b, err := file.Open(sc.Path, sc.StoreID, sealer)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		slog.Debug("opened file storage", "path", file.Path(sc.Path, sc.StoreID), "sealed", sealer.Enabled())
		return b, nil

	case config.StoragePostgres:
		b, err := postgres.Open(ctx, sc.PostgresDSN, sc.StoreID, sealer)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		slog.Debug("opened postgres storage", "namespace", sc.StoreID, "sealed", sealer.Enabled())
		return resilience.Guard(b, resilience.NewBreaker(resilience.Config{Name: "postgres"})), nil

	case config.StorageMemory:
		slog.Warn("using in-memory storage; favourites are lost on exit")
		return kv.NewMemBackend(), nil

	default:
		return nil, fmt.Errorf("open storage: unknown backend %q", sc.Backend)
	}
}

// Store returns the favourites store.
func (a *App) Store() *favourites.Store { return a.store }

// Handler returns the HTTP API handler.
func (a *App) Handler() http.Handler { return a.api.Handler() }

// Config returns the most recently applied configuration.
func (a *App) Config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves the HTTP API and, when a config path was given, watches it for
// changes. It blocks until ctx is cancelled or the server fails. On a clean
// stop it returns ctx.Err().
func (a *App) Run(ctx context.Context) error {
	cfg := a.Config()
	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// ── Config hot reload ─────────────────────────────────────────────────
	if a.configPath != "" {
		wopts := []config.WatcherOption{config.WithErrorHandler(a.reloadFailed)}
		if a.watchInterval > 0 {
			wopts = append(wopts, config.WithInterval(a.watchInterval))
		}
		w, err := config.NewWatcher(a.configPath, a.applyConfig, wopts...)
		if err != nil {
			slog.Warn("config hot reload disabled", "path", a.configPath, "err", err)
		} else {
			g.Go(func() error {
				w.Run(gctx)
				return nil
			})
		}
	}

	// ── HTTP server ───────────────────────────────────────────────────────
	g.Go(func() error {
		err := a.serve(srv, cfg.Server.TLS)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http server shutdown error", "err", err)
		}
		return nil
	})

	slog.Info("app running",
		"addr", a.addr(srv),
		"tls", cfg.Server.TLS != nil,
		"storage", cfg.Storage.Backend,
	)

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// serve blocks serving srv on the injected listener or on srv.Addr.
func (a *App) serve(srv *http.Server, tls *config.TLSConfig) error {
	switch {
	case a.listener != nil && tls != nil:
		return srv.ServeTLS(a.listener, tls.CertFile, tls.KeyFile)
	case a.listener != nil:
		return srv.Serve(a.listener)
	case tls != nil:
		return srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
	default:
		return srv.ListenAndServe()
	}
}

func (a *App) addr(srv *http.Server) string {
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return srv.Addr
}

// applyConfig is the watcher callback. Settings that can change at runtime
// are applied; the rest are logged as needing a restart.
func (a *App) applyConfig(old, next *config.Config) {
	d := config.Diff(old, next)
	if !d.Changed() {
		return
	}

	a.mu.Lock()
	a.cfg = next
	a.mu.Unlock()

	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.SlogLevel())
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes take effect after restart", "keys", d.RestartRequired)
	}
	a.metrics.RecordConfigReload(context.Background(), observe.StatusOK)

	if d.SpellChanged {
		a.api.SetExtendedNumbers(next.Spell.ExtendedNumbers)
	}
	if d.DisplayChanged {
		a.api.SetDisplay(next.Display)
	}
	slog.Info("config reloaded",
		"log_level_changed", d.LogLevelChanged,
		"spell_changed", d.SpellChanged,
		"display_changed", d.DisplayChanged,
	)
}

func (a *App) reloadFailed(err error) {
	a.metrics.RecordConfigReload(context.Background(), observe.StatusError)
	slog.Error("config reload failed, keeping previous config", "path", a.configPath, "err", err)
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown releases all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

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
