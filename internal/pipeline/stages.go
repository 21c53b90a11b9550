package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/tjfontaine/blueprint-api/internal/core/domain"
	"github.com/tjfontaine/blueprint-api/internal/core/ports"
	"github.com/tjfontaine/blueprint-api/internal/interrupt"
)

// CreateStage inserts the request data and records the stored entity.
type CreateStage struct {
	Store ports.Persistence
}

func (s *CreateStage) Name() string { return "persist" }

func (s *CreateStage) Run(ctx context.Context, st *ports.State) error {
	record, err := s.Store.Create(ctx, st.Model, st.Data)
	if err != nil {
		return fmt.Errorf("create %s: %w", st.Model.Name, err)
	}
	if record == nil {
		return fmt.Errorf("%w: create %s returned no record", domain.ErrConsistency, st.Model.Name)
	}
	st.Record = record
	st.PK = st.Model.PK(record)
	return nil
}

// LoadStage fetches the snapshot an update starts from. An absent record
// halts the flow with OutcomeNotFound.
type LoadStage struct {
	Store ports.Persistence
}

func (s *LoadStage) Name() string { return "load" }

func (s *LoadStage) Run(ctx context.Context, st *ports.State) error {
	existing, err := s.Store.FindOne(ctx, st.Model, st.PK, nil)
	if err != nil {
		return fmt.Errorf("load %s %v: %w", st.Model.Name, st.PK, err)
	}
	if existing == nil {
		st.Halt(domain.OutcomeNotFound)
		return nil
	}
	st.Existing = existing
	return nil
}

// UpdateStage merges the request data into the loaded entity. Exactly one
// updated record is expected; extra records are logged and ignored.
type UpdateStage struct {
	Store  ports.Persistence
	Logger *slog.Logger
}

func (s *UpdateStage) Name() string { return "persist" }

func (s *UpdateStage) Run(ctx context.Context, st *ports.State) error {
	records, err := s.Store.Update(ctx, st.Model, st.PK, st.Data)
	if err != nil {
		return fmt.Errorf("update %s %v: %w", st.Model.Name, st.PK, err)
	}
	// The record was found moments ago, so an empty result is an anomaly of
	// the store. The flow carries on and populate re-reads by st.PK.
	if len(records) == 0 {
		logger(s.Logger).Warn("update returned no records, continuing with the requested key",
			slog.String("model", st.Model.Name),
			slog.String("pk", domain.IDString(st.PK)),
			slog.Bool("nil_result", records == nil),
		)
		st.Record = nil
		return nil
	}
	if len(records) > 1 {
		logger(s.Logger).Warn("update returned multiple records, using the first",
			slog.String("model", st.Model.Name),
			slog.String("pk", domain.IDString(st.PK)),
			slog.Int("count", len(records)),
		)
	}
	st.Record = records[0]
	return nil
}

// LinkStage replaces the membership of every prepared collection on the
// entity. Replacements run concurrently; all are attempted and the first
// failure is reported. Replacements that succeeded are not undone.
type LinkStage struct {
	Store ports.Persistence
}

func (s *LinkStage) Name() string { return "link" }

func (s *LinkStage) Run(ctx context.Context, st *ports.State) error {
	var g errgroup.Group
	for _, rel := range st.Relations {
		g.Go(func() error {
			if err := s.Store.ReplaceCollection(ctx, st.Model, st.PK, rel.Collection, rel.Values); err != nil {
				return fmt.Errorf("replace %s.%s: %w", st.Model.Name, rel.Collection, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// HookStage invokes one named interrupt. Payload selects what the hook
// receives from the state.
type HookStage struct {
	Hook    string
	Hooks   interrupt.Hooks
	Payload func(st *ports.State) any
}

func (s *HookStage) Name() string { return "interrupt:" + s.Hook }

func (s *HookStage) Run(ctx context.Context, st *ports.State) error {
	ev := &interrupt.Event{
		Name:     s.Hook,
		Request:  st.Request,
		Response: st.Response,
		Model:    st.Model,
	}
	if s.Payload != nil {
		ev.Payload = s.Payload(st)
	}
	return s.Hooks.Get(s.Hook)(ctx, ev)
}

// createdRecord hands the create hook the stored record. Hooks may add
// attributes to it but cannot swap it out.
func createdRecord(st *ports.State) any { return st.Record }

// requestData hands beforeUpdate the request data. The loaded snapshot is
// not exposed so it stays intact for afterUpdate and announce.
func requestData(st *ports.State) any { return st.Data }

func updatePair(st *ports.State) any {
	return interrupt.UpdatePayload{Before: st.Existing.Clone(), After: st.Record}
}

// AssembleStage builds the success envelope.
type AssembleStage struct {
	Builder ports.ResponseBuilder
}

func (s *AssembleStage) Name() string { return "assemble" }

func (s *AssembleStage) Run(ctx context.Context, st *ports.State) error {
	env, err := s.Builder.Build(st.Model, st.Populated, st.Model.Associations, st.Index)
	if err != nil {
		return fmt.Errorf("build %s response: %w", st.Model.Name, err)
	}
	st.Envelope = env
	return nil
}

// AnnounceStage publishes the write to realtime subscribers.
type AnnounceStage struct {
	Notifier ports.Notifier
	Update   bool
}

func (s *AnnounceStage) Name() string { return "announce" }

func (s *AnnounceStage) Run(ctx context.Context, st *ports.State) error {
	if s.Notifier == nil {
		return nil
	}
	if s.Update {
		s.Notifier.Updated(ctx, st.Origin, st.Model, st.PK, st.Data, st.Existing)
		return nil
	}
	s.Notifier.Created(ctx, st.Origin, st.Model, st.Record)
	return nil
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
