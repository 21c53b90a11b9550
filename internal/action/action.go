// Package action builds the generic create and update HTTP handlers for
// model-driven routes.
package action

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/blueprint-api/internal/core/domain"
	"github.com/tjfontaine/blueprint-api/internal/core/ports"
	"github.com/tjfontaine/blueprint-api/internal/interrupt"
	"github.com/tjfontaine/blueprint-api/internal/negotiate"
	"github.com/tjfontaine/blueprint-api/internal/pipeline"
	"github.com/tjfontaine/blueprint-api/internal/relation"
	"github.com/tjfontaine/blueprint-api/internal/server"
)

// Route parameters read by the handlers.
const (
	ParamModel = "model"
	ParamID    = "id"
)

// Deps are the collaborators shared by the actions.
type Deps struct {
	Models  ports.ModelResolver
	Store   ports.Persistence
	Builder ports.ResponseBuilder
	// Notifier is optional; nil disables announcements.
	Notifier   ports.Notifier
	Negotiator *negotiate.Negotiator
	Logger     *slog.Logger
}

func (d Deps) flowDeps() pipeline.Deps {
	return pipeline.Deps{
		Store:    d.Store,
		Builder:  d.Builder,
		Notifier: d.Notifier,
		Logger:   d.Logger,
	}
}

// NewCreate returns the create handler. A single hook in interrupts is bound
// to "create".
func NewCreate(deps Deps, interrupts interrupt.Config) http.HandlerFunc {
	deps = withDefaults(deps)
	flow := pipeline.NewCreateFlow(deps.flowDeps(), interrupt.Normalize(interrupts, interrupt.Create))

	return func(w http.ResponseWriter, r *http.Request) {
		model, ok := resolve(deps, w, r)
		if !ok {
			return
		}

		data, err := parseBody(r, model)
		if err != nil {
			deps.Negotiator.Failure(w, r, err)
			return
		}

		st, err := newState(deps, w, r, model, data)
		if err != nil {
			deps.Negotiator.Failure(w, r, err)
			return
		}
		out := flow.Execute(r.Context(), st)
		server.AddLogField(r.Context(), server.FieldOutcome, out.Status.String())
		deps.Negotiator.Outcome(w, r, out, http.StatusCreated)
	}
}

// NewUpdate returns the update handler. A single hook in interrupts is
// bound to "beforeUpdate"; afterUpdate supplies or overrides the
// "afterUpdate" hook.
func NewUpdate(deps Deps, interrupts interrupt.Config, afterUpdate interrupt.Config) http.HandlerFunc {
	deps = withDefaults(deps)
	hooks := interrupt.Normalize(interrupts, interrupt.BeforeUpdate).
		Merge(interrupt.Normalize(afterUpdate, interrupt.AfterUpdate))
	flow := pipeline.NewUpdateFlow(deps.flowDeps(), hooks)

	return func(w http.ResponseWriter, r *http.Request) {
		model, ok := resolve(deps, w, r)
		if !ok {
			return
		}

		pk, err := model.ParsePK(chi.URLParam(r, ParamID))
		if err != nil {
			deps.Negotiator.Failure(w, r, err)
			return
		}
		server.AddLogField(r.Context(), server.FieldKey, domain.IDString(pk))

		data, err := parseBody(r, model)
		if err != nil {
			deps.Negotiator.Failure(w, r, err)
			return
		}

		st, err := newState(deps, w, r, model, data)
		if err != nil {
			deps.Negotiator.Failure(w, r, err)
			return
		}
		st.PK = pk
		out := flow.Execute(r.Context(), st)
		server.AddLogField(r.Context(), server.FieldOutcome, out.Status.String())
		deps.Negotiator.Outcome(w, r, out, http.StatusOK)
	}
}

func withDefaults(deps Deps) Deps {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Negotiator == nil {
		deps.Negotiator = negotiate.New(true, deps.Logger)
	}
	return deps
}

func resolve(deps Deps, w http.ResponseWriter, r *http.Request) (*domain.Model, bool) {
	name := chi.URLParam(r, ParamModel)
	model, ok := deps.Models.Resolve(name)
	if !ok {
		deps.Negotiator.Failure(w, r, domain.ErrNotFound("unknown model "+name).WithCode(domain.ErrorCodeUnknownModel))
		return nil, false
	}
	server.AddLogField(r.Context(), server.FieldModel, model.Name)
	return model, true
}

func newState(deps Deps, w http.ResponseWriter, r *http.Request, model *domain.Model, data domain.Record) (*ports.State, error) {
	rels, base, err := relation.Prepare(deps.Models, model.Associations, data)
	if err != nil {
		return nil, err
	}
	st := &ports.State{
		Request:   r,
		Response:  w,
		Model:     model,
		Data:      base,
		Relations: rels,
	}
	if deps.Notifier != nil {
		st.Origin = deps.Notifier.Origin(r)
		server.AddLogField(r.Context(), server.FieldSocket, st.Origin)
	}
	return st, nil
}
