// Package blueprint provides the public API for embedding the blueprint API
// server. This is the stable API for external consumers.
package blueprint

import (
	"github.com/tjfontaine/blueprint-api/internal/interrupt"
	"github.com/tjfontaine/blueprint-api/internal/runtime"
)

// App serves the generic create and update actions for configured models.
// See internal/runtime.App for full documentation.
type App = runtime.App

// Option is a functional option for configuring an App.
type Option = runtime.Option

// Hook is an interrupt point handler. Returning an error aborts the action.
type Hook = interrupt.Hook

// Event is what a Hook receives.
type Event = interrupt.Event

// UpdatePayload is the afterUpdate event payload.
type UpdatePayload = interrupt.UpdatePayload

// Interrupt points accepted by WithHook.
const (
	HookCreate       = interrupt.Create
	HookBeforeUpdate = interrupt.BeforeUpdate
	HookAfterUpdate  = interrupt.AfterUpdate
)

// New creates a new App with the given options.
// Example:
//
//	app, err := blueprint.New(
//	    blueprint.WithFileConfig("config.yaml"),
//	    blueprint.WithSQLite("./data/blueprint.db"),
//	)
var New = runtime.New

// Configuration options
var (
	// Config sources
	WithFileConfig     = runtime.WithFileConfig
	WithConfigProvider = runtime.WithConfigProvider

	// Storage
	WithSQLite      = runtime.WithSQLite
	WithPostgres    = runtime.WithPostgres
	WithMemoryStore = runtime.WithMemoryStore
	WithStoreOpener = runtime.WithStoreOpener

	// Hooks
	WithHook = runtime.WithHook

	// Advanced options
	WithLogger = runtime.WithLogger
)
