package runtime

import (
	"fmt"
	"log/slog"

	"github.com/tjfontaine/blueprint-api/internal/adapters/config/file"
	"github.com/tjfontaine/blueprint-api/internal/adapters/storage/postgres"
	"github.com/tjfontaine/blueprint-api/internal/adapters/storage/sqlite"
	"github.com/tjfontaine/blueprint-api/internal/core/ports"
	"github.com/tjfontaine/blueprint-api/internal/interrupt"
	"github.com/tjfontaine/blueprint-api/internal/storage/memory"
)

// Option is a functional option for configuring an App.
type Option func(*App) error

// WithFileConfig uses file-based configuration with hot-reload (default).
// The path should point to a config.yaml file that will be watched for changes.
func WithFileConfig(path string) Option {
	return func(a *App) error {
		provider, err := file.NewProvider(path, a.logger)
		if err != nil {
			return fmt.Errorf("create file config provider: %w", err)
		}
		a.config = provider
		return nil
	}
}

// WithSQLite uses SQLite storage (default for single-instance deployments),
// overriding the storage section of the configuration.
func WithSQLite(path string) Option {
	return func(a *App) error {
		a.openStore = func(models ports.ModelResolver) (ports.Persistence, error) {
			store, err := sqlite.NewProvider(path, models)
			if err != nil {
				return nil, fmt.Errorf("create sqlite storage: %w", err)
			}
			return store, nil
		}
		return nil
	}
}

// WithPostgres uses PostgreSQL storage.
// Recommended for deployments running several instances.
func WithPostgres(dsn string) Option {
	return func(a *App) error {
		if dsn == "" {
			return fmt.Errorf("postgres dsn cannot be empty")
		}
		a.openStore = func(models ports.ModelResolver) (ports.Persistence, error) {
			store, err := postgres.NewProvider(dsn, models)
			if err != nil {
				return nil, fmt.Errorf("create postgres storage: %w", err)
			}
			return store, nil
		}
		return nil
	}
}

// WithMemoryStore keeps records in process memory. Data is lost on exit.
func WithMemoryStore() Option {
	return func(a *App) error {
		a.openStore = func(models ports.ModelResolver) (ports.Persistence, error) {
			return memory.New(models), nil
		}
		return nil
	}
}

// WithLogger sets a custom logger. Apply it before options that log.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		a.logger = logger
		return nil
	}
}

// WithConfigProvider sets a custom config provider.
// For advanced use cases where you need full control over config loading.
func WithConfigProvider(provider ports.ConfigProvider) Option {
	return func(a *App) error {
		a.config = provider
		return nil
	}
}

// WithStoreOpener sets a custom record store.
func WithStoreOpener(open StoreOpener) Option {
	return func(a *App) error {
		a.openStore = open
		return nil
	}
}

// WithHook runs h at the named interrupt point (create, beforeUpdate or
// afterUpdate) for every model, ahead of any configured webhooks.
func WithHook(name string, h interrupt.Hook) Option {
	return func(a *App) error {
		if !validHookName(name) {
			return fmt.Errorf("unknown hook %q", name)
		}
		if h == nil {
			return fmt.Errorf("hook %q cannot be nil", name)
		}
		a.extra[name] = append(a.extra[name], h)
		return nil
	}
}
