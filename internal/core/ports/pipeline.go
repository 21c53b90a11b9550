// Package ports defines the core interfaces for the action pipeline.
// This file contains the stage interfaces and the state threaded through them.
package ports

import (
	"context"
	"net/http"

	"github.com/tjfontaine/blueprint-api/internal/core/domain"
)

// State is the accumulating result threaded through the stages of one
// pipeline execution. It is owned by a single request and discarded when the
// pipeline completes.
type State struct {
	// Request and Response are the HTTP exchange that triggered the pipeline.
	// Hooks receive them; stages never write to Response.
	Request  *http.Request
	Response http.ResponseWriter

	Model *domain.Model
	// Data is the request payload with collection associations removed.
	Data domain.Record
	// Relations holds the collection memberships to assign after the write.
	Relations []domain.PreparedRelation

	// PK is the primary key of the entity under operation.
	PK any
	// Existing is the snapshot loaded before an update.
	Existing domain.Record
	// Record is the most recently written record.
	Record domain.Record
	// Populated is the re-fetched record with associations resolved.
	Populated domain.Record
	// Index holds identifier lists for collection associations that are not
	// populated.
	Index map[string][]any
	// Envelope is the assembled success payload.
	Envelope domain.Envelope

	// Origin identifies the realtime socket that issued the request, if any.
	Origin string

	halted domain.OutcomeStatus
	halt   bool
}

// Halt stops the pipeline after the current stage with a terminal outcome
// that is not a failure, such as OutcomeNotFound.
func (s *State) Halt(status domain.OutcomeStatus) {
	s.halted = status
	s.halt = true
}

// Halted reports whether a stage requested termination and with which status.
func (s *State) Halted() (domain.OutcomeStatus, bool) {
	return s.halted, s.halt
}

// Stage is one step of a pipeline.
type Stage interface {
	// Name returns the identifier for this stage.
	Name() string
	// Run executes the stage logic, reading and extending the state.
	Run(ctx context.Context, st *State) error
}

// PipelineExecutor runs an ordered list of stages to a terminal outcome.
type PipelineExecutor interface {
	Execute(ctx context.Context, st *State) domain.Outcome
}
