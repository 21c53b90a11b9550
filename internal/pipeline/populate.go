package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/tjfontaine/blueprint-api/internal/core/domain"
	"github.com/tjfontaine/blueprint-api/internal/core/ports"
)

// PopulateStage re-fetches the written entity with its populated
// associations resolved and, concurrently, lists the member identifiers of
// every collection that is not populated. A missing record is a consistency
// failure.
type PopulateStage struct {
	Store ports.Persistence
	// Action names the write in the consistency error ("create", "update").
	Action string
}

func (s *PopulateStage) Name() string { return "populate" }

func (s *PopulateStage) Run(ctx context.Context, st *ports.State) error {
	pk, err := s.key(st)
	if err != nil {
		return err
	}

	populated, index, err := Populate(ctx, s.Store, st.Model, pk)
	if err != nil {
		return err
	}
	if populated == nil {
		return fmt.Errorf("%w: record missing after %s", domain.ErrConsistency, s.Action)
	}

	st.PK = pk
	st.Populated = populated
	st.Index = index
	return nil
}

// key resolves the identity of the written record, preferring the key it
// was stored under over the one the request addressed.
func (s *PopulateStage) key(st *ports.State) (any, error) {
	raw := st.Model.PK(st.Record)
	if raw == nil {
		raw = st.PK
	}
	pk, err := st.Model.ParsePK(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s written without a usable key: %v", domain.ErrConsistency, st.Model.Name, err)
	}
	return pk, nil
}

// Populate loads the record identified by pk with its Populate associations
// resolved, together with the identifier index of its remaining collection
// associations. Both lookups must succeed. The record is nil when absent.
func Populate(ctx context.Context, store ports.Persistence, model *domain.Model, pk any) (domain.Record, map[string][]any, error) {
	var (
		populate []domain.Association
		indexed  []domain.Association
	)
	for _, a := range model.Associations {
		switch {
		case a.Populate:
			populate = append(populate, a)
		case a.IsCollection():
			indexed = append(indexed, a)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	var record domain.Record
	g.Go(func() error {
		r, err := store.FindOne(gctx, model, pk, populate)
		if err != nil {
			return fmt.Errorf("populate %s %v: %w", model.Name, pk, err)
		}
		record = r
		return nil
	})

	ids := make([][]any, len(indexed))
	for i, a := range indexed {
		g.Go(func() error {
			list, err := store.CollectionIDs(gctx, model, pk, a.Name)
			if err != nil {
				return fmt.Errorf("index %s.%s: %w", model.Name, a.Name, err)
			}
			if list == nil {
				list = []any{}
			}
			ids[i] = list
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	index := make(map[string][]any, len(indexed))
	for i, a := range indexed {
		index[a.Name] = ids[i]
	}
	return record, index, nil
}
