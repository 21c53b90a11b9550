package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/blueprint-api/internal/core/domain"
	"github.com/tjfontaine/blueprint-api/internal/core/ports"
)

const tracerName = "github.com/tjfontaine/blueprint-api/internal/pipeline"

// Executor runs an ordered list of stages to a terminal outcome.
type Executor struct {
	name   string
	stages []ports.Stage
	tracer trace.Tracer
}

// NewExecutor creates an executor for the given stages. Name labels the
// flow in traces.
func NewExecutor(name string, stages ...ports.Stage) *Executor {
	return &Executor{
		name:   name,
		stages: stages,
		tracer: otel.Tracer(tracerName),
	}
}

// Stages returns the stage names in execution order.
func (e *Executor) Stages() []string {
	names := make([]string, len(e.stages))
	for i, s := range e.stages {
		names[i] = s.Name()
	}
	return names
}

// Execute runs every stage in order. The first stage error ends the flow
// with OutcomeFailed; a stage calling State.Halt ends it with the requested
// status once that stage returns.
func (e *Executor) Execute(ctx context.Context, st *ports.State) domain.Outcome {
	ctx, span := e.tracer.Start(ctx, "pipeline."+e.name)
	defer span.End()

	for _, stage := range e.stages {
		if err := e.runStage(ctx, stage, st); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return domain.Outcome{Status: domain.OutcomeFailed, PK: st.PK, Err: err}
		}
		if status, halted := st.Halted(); halted {
			span.SetAttributes(attribute.String("pipeline.outcome", status.String()))
			return domain.Outcome{Status: status, PK: st.PK}
		}
	}

	span.SetAttributes(attribute.String("pipeline.outcome", domain.OutcomeOK.String()))
	return domain.Outcome{Status: domain.OutcomeOK, Envelope: st.Envelope, PK: st.PK}
}

func (e *Executor) runStage(ctx context.Context, stage ports.Stage, st *ports.State) error {
	ctx, span := e.tracer.Start(ctx, "stage."+stage.Name())
	defer span.End()

	if err := stage.Run(ctx, st); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &StageError{Stage: stage.Name(), Err: err}
	}
	return nil
}

// StageError is returned when a stage fails.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage returns the name of the stage that produced err, if any.
func FailedStage(err error) (string, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// Ensure Executor implements the interface.
var _ ports.PipelineExecutor = (*Executor)(nil)
