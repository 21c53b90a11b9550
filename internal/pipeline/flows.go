package pipeline

import (
	"log/slog"

	"github.com/tjfontaine/blueprint-api/internal/core/ports"
	"github.com/tjfontaine/blueprint-api/internal/interrupt"
)

// Deps are the collaborators shared by the create and update flows.
type Deps struct {
	Store   ports.Persistence
	Builder ports.ResponseBuilder
	// Notifier is optional. Without it the flows end at assemble.
	Notifier ports.Notifier
	Logger   *slog.Logger
}

// NewCreateFlow builds the create pipeline.
func NewCreateFlow(deps Deps, hooks interrupt.Hooks) *Executor {
	stages := []ports.Stage{
		&CreateStage{Store: deps.Store},
		&LinkStage{Store: deps.Store},
		&HookStage{Hook: interrupt.Create, Hooks: hooks, Payload: createdRecord},
		&PopulateStage{Store: deps.Store, Action: "create"},
		&AssembleStage{Builder: deps.Builder},
	}
	if deps.Notifier != nil {
		stages = append(stages, &AnnounceStage{Notifier: deps.Notifier})
	}
	return NewExecutor("create", stages...)
}

// NewUpdateFlow builds the update pipeline.
func NewUpdateFlow(deps Deps, hooks interrupt.Hooks) *Executor {
	stages := []ports.Stage{
		&LoadStage{Store: deps.Store},
		&HookStage{Hook: interrupt.BeforeUpdate, Hooks: hooks, Payload: requestData},
		&UpdateStage{Store: deps.Store, Logger: deps.Logger},
		&LinkStage{Store: deps.Store},
		&HookStage{Hook: interrupt.AfterUpdate, Hooks: hooks, Payload: updatePair},
		&PopulateStage{Store: deps.Store, Action: "update"},
		&AssembleStage{Builder: deps.Builder},
	}
	if deps.Notifier != nil {
		stages = append(stages, &AnnounceStage{Notifier: deps.Notifier, Update: true})
	}
	return NewExecutor("update", stages...)
}
