// Package memory provides an in-memory record store.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tjfontaine/blueprint-api/internal/core/domain"
	"github.com/tjfontaine/blueprint-api/internal/core/ports"
	"github.com/tjfontaine/blueprint-api/internal/storage"
)

type linkKey struct {
	model       string
	id          string
	association string
}

// Store is an in-memory implementation of ports.Persistence.
type Store struct {
	mu      sync.RWMutex
	models  ports.ModelResolver
	records map[string]map[string]domain.Record // model -> pk -> record
	links   map[linkKey][]any
	seq     map[string]int64
	now     func() time.Time
}

// New creates a new in-memory store. Association targets are resolved
// through models.
func New(models ports.ModelResolver) *Store {
	return &Store{
		models:  models,
		records: make(map[string]map[string]domain.Record),
		links:   make(map[linkKey][]any),
		seq:     make(map[string]int64),
		now:     time.Now,
	}
}

func (s *Store) Create(ctx context.Context, model *domain.Model, data domain.Record) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pk, err := storage.NewKey(model, data, func() (int64, error) {
		s.seq[model.Name]++
		return s.seq[model.Name], nil
	})
	if err != nil {
		return nil, err
	}

	table := s.records[model.Name]
	if table == nil {
		table = make(map[string]domain.Record)
		s.records[model.Name] = table
	}
	key := domain.IDString(pk)
	if _, exists := table[key]; exists {
		return nil, domain.ErrConflict(fmt.Sprintf("%s %s already exists", model.Name, key))
	}

	rec := storage.Base(model, data)
	rec[model.PrimaryKey] = pk
	now := s.now().UTC()
	rec["createdAt"] = now
	rec["updatedAt"] = now
	table[key] = rec

	return rec.Clone(), nil
}

func (s *Store) Update(ctx context.Context, model *domain.Model, pk any, data domain.Record) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[model.Name][domain.IDString(pk)]
	if !ok {
		return []domain.Record{}, nil
	}
	for k, v := range storage.Base(model, data) {
		rec[k] = v
	}
	rec["updatedAt"] = s.now().UTC()
	return []domain.Record{rec.Clone()}, nil
}

func (s *Store) FindOne(ctx context.Context, model *domain.Model, pk any, populate []domain.Association) (domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec := s.get(model, pk)
	if rec == nil {
		return nil, nil
	}

	fetch := func(ctx context.Context, m *domain.Model, id any) (domain.Record, error) {
		return s.get(m, id), nil
	}
	members := func(ctx context.Context, association string) ([]any, error) {
		return s.members(model, pk, association), nil
	}
	if err := storage.Resolve(ctx, s.models, rec, populate, fetch, members); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) ReplaceCollection(ctx context.Context, model *domain.Model, pk any, association string, ids []any) error {
	_, target, err := storage.Target(s.models, model, association)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.get(model, pk) == nil {
		return domain.ErrNotFound(fmt.Sprintf("%s %v does not exist", model.Name, pk))
	}

	members := make([]any, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, raw := range ids {
		id, err := target.ParsePK(raw)
		if err != nil {
			return storage.UnknownRelation(association, target, raw)
		}
		related := s.get(target, id)
		if related == nil {
			return storage.UnknownRelation(association, target, raw)
		}
		key := domain.IDString(id)
		if seen[key] {
			continue
		}
		seen[key] = true
		members = append(members, target.PK(related))
	}

	s.links[linkKey{model.Name, domain.IDString(pk), association}] = members
	return nil
}

func (s *Store) CollectionIDs(ctx context.Context, model *domain.Model, pk any, association string) ([]any, error) {
	if _, ok := model.Association(association); !ok {
		return nil, fmt.Errorf("%s has no association %q", model.Name, association)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.members(model, pk, association), nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// get returns a copy of a stored record. Callers hold the lock.
func (s *Store) get(model *domain.Model, pk any) domain.Record {
	rec, ok := s.records[model.Name][domain.IDString(pk)]
	if !ok {
		return nil
	}
	return rec.Clone()
}

func (s *Store) members(model *domain.Model, pk any, association string) []any {
	ids := s.links[linkKey{model.Name, domain.IDString(pk), association}]
	out := make([]any, len(ids))
	copy(out, ids)
	return out
}

var _ ports.Persistence = (*Store)(nil)
