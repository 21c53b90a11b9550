// Package runtime provides the App struct and lifecycle management for the
// blueprint API server.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/blueprint-api/internal/action"
	"github.com/tjfontaine/blueprint-api/internal/adapters/storage/postgres"
	"github.com/tjfontaine/blueprint-api/internal/adapters/storage/sqlite"
	"github.com/tjfontaine/blueprint-api/internal/core/ports"
	"github.com/tjfontaine/blueprint-api/internal/ember"
	"github.com/tjfontaine/blueprint-api/internal/interrupt"
	"github.com/tjfontaine/blueprint-api/internal/negotiate"
	"github.com/tjfontaine/blueprint-api/internal/pkg/config"
	"github.com/tjfontaine/blueprint-api/internal/realtime"
	"github.com/tjfontaine/blueprint-api/internal/registry"
	"github.com/tjfontaine/blueprint-api/internal/server"
	"github.com/tjfontaine/blueprint-api/internal/storage/memory"
	"github.com/tjfontaine/blueprint-api/internal/storage/sqldb"
)

// StoreOpener opens the record store once the model registry exists.
type StoreOpener func(models ports.ModelResolver) (ports.Persistence, error)

// App serves the generic create and update actions for the configured
// models. It manages configuration, storage, realtime sockets and the HTTP
// server lifecycle, and can be embedded in larger applications.
type App struct {
	// Dependencies (injected via options)
	config    ports.ConfigProvider
	openStore StoreOpener
	logger    *slog.Logger
	extra     map[string][]interrupt.Hook

	// Internal state
	registry *registry.Registry
	store    ports.Persistence
	hooks    *hookTable
	hub      *realtime.Hub
	server   *server.Server
	listener net.Listener

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
}

// New creates a new App with the given options. Without a storage option
// the store is chosen from the storage section of the configuration.
func New(opts ...Option) (*App, error) {
	a := &App{
		logger: slog.Default(),
		extra:  make(map[string][]interrupt.Hook),
		hooks:  newHookTable(),
	}

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if a.config == nil {
		return nil, fmt.Errorf("config provider required (use WithFileConfig or WithConfigProvider)")
	}

	return a, nil
}

// Start loads the configuration, opens storage, binds the listener and
// serves in the background.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return fmt.Errorf("app already started")
	}

	a.ctx, a.cancel = context.WithCancel(ctx)

	cfg, err := a.config.Load(a.ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := a.init(cfg); err != nil {
		a.closeStore()
		return err
	}

	ln, err := a.server.Listen()
	if err != nil {
		a.closeStore()
		return fmt.Errorf("start server: %w", err)
	}
	a.listener = ln

	go func() {
		if err := a.server.Serve(ln); err != nil {
			a.logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	if err := a.config.Watch(a.ctx, a.onConfigChange); err != nil {
		a.logger.Warn("config watch unavailable", slog.String("error", err.Error()))
	}

	a.logger.Info("app started",
		slog.String("addr", ln.Addr().String()),
		slog.Int("models", len(cfg.Models)),
		slog.Int("hooks", len(cfg.Hooks)),
		slog.Bool("realtime", cfg.Realtime.Enabled))

	return nil
}

func (a *App) init(cfg *config.Config) error {
	reg, err := registry.New(cfg.Models)
	if err != nil {
		return fmt.Errorf("init models: %w", err)
	}
	a.registry = reg

	if err := a.loadHooks(cfg); err != nil {
		return fmt.Errorf("init hooks: %w", err)
	}

	open := a.openStore
	if open == nil {
		open = storeFromConfig(cfg.Storage)
	}
	store, err := open(reg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	a.store = store

	timeout, err := parseTimeout(cfg.Server.RequestTimeout)
	if err != nil {
		return fmt.Errorf("server.request_timeout: %w", err)
	}

	limiter := server.NewLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	a.server = server.New(cfg.Server.Port, a.logger, limiter)
	a.mount(a.server.Router, cfg, timeout)
	return nil
}

// mount registers the action routes and, when enabled, the socket route.
func (a *App) mount(r chi.Router, cfg *config.Config, timeout time.Duration) {
	deps := action.Deps{
		Models:     a.registry,
		Store:      a.store,
		Builder:    ember.NewBuilder(a.registry),
		Negotiator: negotiate.New(cfg.Errors.Expose, a.logger),
		Logger:     a.logger,
	}

	if cfg.Realtime.Enabled {
		a.hub = realtime.NewHub(a.logger)
		deps.Notifier = realtime.NewDispatcher(a.hub, cfg.Realtime.Mirror, a.logger)
		r.Method(http.MethodGet, cfg.Realtime.Path, realtime.NewHandler(a.hub, a.registry, a.logger))
		a.logger.Info("registered socket handler", slog.String("path", cfg.Realtime.Path))
	}

	create := action.NewCreate(deps, interrupt.Single(a.hooks.bind(interrupt.Create)))
	update := action.NewUpdate(deps,
		interrupt.Single(a.hooks.bind(interrupt.BeforeUpdate)),
		interrupt.Single(a.hooks.bind(interrupt.AfterUpdate)),
	)

	r.Group(func(r chi.Router) {
		r.Use(server.TimeoutMiddleware(timeout))
		r.Post("/{"+action.ParamModel+"}", create)
		r.Put("/{"+action.ParamModel+"}/{"+action.ParamID+"}", update)
		r.Patch("/{"+action.ParamModel+"}/{"+action.ParamID+"}", update)
	})
}

// Addr returns the bound listen address once started.
func (a *App) Addr() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Handler returns the HTTP handler once started.
func (a *App) Handler() http.Handler {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.server == nil {
		return nil
	}
	return a.server.Router
}

// Models returns the live model registry once started.
func (a *App) Models() *registry.Registry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.registry
}

// Shutdown gracefully stops the app.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.logger.Info("shutting down app")

	if a.cancel != nil {
		a.cancel()
	}

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			return err
		}
	}

	a.closeStore()

	if a.config != nil {
		if err := a.config.Close(); err != nil {
			a.logger.Error("failed to close config", slog.String("error", err.Error()))
		}
	}

	a.logger.Info("app shutdown complete")
	return nil
}

func (a *App) closeStore() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close storage", slog.String("error", err.Error()))
	}
	a.store = nil
}

// onConfigChange applies a reloaded configuration. Models and hooks are
// swapped in place; server, storage and realtime settings need a restart.
func (a *App) onConfigChange(cfg *config.Config) {
	a.logger.Info("config changed, reloading")
	if err := a.reload(cfg); err != nil {
		a.logger.Error("failed to reload", slog.String("error", err.Error()))
	}
}

func (a *App) reload(cfg *config.Config) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.registry == nil {
		return errors.New("app not started")
	}
	if err := a.registry.Replace(cfg.Models); err != nil {
		return fmt.Errorf("reload models: %w", err)
	}
	if err := a.loadHooks(cfg); err != nil {
		return fmt.Errorf("reload hooks: %w", err)
	}

	a.logger.Info("reload complete",
		slog.Int("models", len(cfg.Models)),
		slog.Int("hooks", len(cfg.Hooks)))
	return nil
}

func (a *App) loadHooks(cfg *config.Config) error {
	for _, h := range cfg.Hooks {
		if _, ok := a.registry.Resolve(h.Model); !ok {
			a.logger.Warn("hook bound to unknown model",
				slog.String("model", h.Model),
				slog.String("hook", h.Name))
		}
	}
	built, err := buildHooks(cfg.Hooks, a.extra, a.logger)
	if err != nil {
		return err
	}
	a.hooks.store(built)
	return nil
}

// storeFromConfig picks the record store named by the storage section.
func storeFromConfig(cfg config.StorageConfig) StoreOpener {
	return func(models ports.ModelResolver) (ports.Persistence, error) {
		switch cfg.Type {
		case "memory":
			return memory.New(models), nil
		case "sqlite", "":
			return sqlite.NewProvider(cfg.SQLite.Path, models)
		case "postgres":
			return postgres.NewProvider(cfg.Database.DSN, models)
		case "database":
			return sqldb.New(sqldb.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN}, models)
		default:
			return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
		}
	}
}

func parseTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
