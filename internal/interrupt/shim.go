// Package interrupt normalizes caller-supplied extension points into a
// complete set of named hooks invoked by the action pipelines.
package interrupt

import (
	"context"
	"net/http"

	"github.com/tjfontaine/blueprint-api/internal/core/domain"
)

// Hook names bound to pipeline boundaries.
const (
	Create       = "create"
	BeforeUpdate = "beforeUpdate"
	AfterUpdate  = "afterUpdate"
)

// Event is what a hook receives. Payload depends on the hook point: the new
// record for create, the request data for beforeUpdate and an UpdatePayload
// for afterUpdate.
type Event struct {
	Name     string
	Request  *http.Request
	Response http.ResponseWriter
	Model    *domain.Model
	Payload  any
}

// UpdatePayload is the afterUpdate payload.
type UpdatePayload struct {
	Before domain.Record `json:"before"`
	After  domain.Record `json:"after"`
}

// Hook is an extension point awaited by the pipeline. Returning nil lets the
// pipeline continue; an error aborts it.
type Hook func(ctx context.Context, ev *Event) error

// Noop continues immediately without side effects.
func Noop(context.Context, *Event) error { return nil }

type configKind int

const (
	kindNone configKind = iota
	kindSingle
	kindNamed
)

// Config is the caller-supplied interrupt configuration: nothing, a single
// hook, or a mapping of named hooks. The zero value is None.
type Config struct {
	kind   configKind
	single Hook
	named  map[string]Hook
}

// None supplies no hooks.
func None() Config { return Config{} }

// Single supplies one hook, bound to the default name at normalization.
func Single(h Hook) Config {
	if h == nil {
		return None()
	}
	return Config{kind: kindSingle, single: h}
}

// Named supplies hooks by name.
func Named(hooks map[string]Hook) Config {
	if len(hooks) == 0 {
		return None()
	}
	return Config{kind: kindNamed, named: hooks}
}

// Hooks is a normalized hook set. Lookups of names that were not supplied
// return Noop.
type Hooks struct {
	hooks map[string]Hook
}

// Normalize converts cfg into a hook set, binding a single hook to defaultName.
func Normalize(cfg Config, defaultName string) Hooks {
	out := make(map[string]Hook)
	switch cfg.kind {
	case kindSingle:
		out[defaultName] = cfg.single
	case kindNamed:
		for name, h := range cfg.named {
			if h != nil {
				out[name] = h
			}
		}
	}
	return Hooks{hooks: out}
}

// Get returns the hook bound to name, or Noop.
func (h Hooks) Get(name string) Hook {
	if hook, ok := h.hooks[name]; ok {
		return hook
	}
	return Noop
}

// Has reports whether the caller supplied a hook for name.
func (h Hooks) Has(name string) bool {
	_, ok := h.hooks[name]
	return ok
}

// Merge returns a copy of h overlaid with the hooks supplied in other.
func (h Hooks) Merge(other Hooks) Hooks {
	out := make(map[string]Hook, len(h.hooks)+len(other.hooks))
	for name, hook := range h.hooks {
		out[name] = hook
	}
	for name, hook := range other.hooks {
		out[name] = hook
	}
	return Hooks{hooks: out}
}

// Chain runs hooks in order, stopping at the first error.
func Chain(hooks ...Hook) Hook {
	return func(ctx context.Context, ev *Event) error {
		for _, h := range hooks {
			if h == nil {
				continue
			}
			if err := h(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	}
}

// ForModel scopes a hook to events for the named model.
func ForModel(model string, h Hook) Hook {
	return func(ctx context.Context, ev *Event) error {
		if ev.Model == nil || ev.Model.Name != model {
			return nil
		}
		return h(ctx, ev)
	}
}
