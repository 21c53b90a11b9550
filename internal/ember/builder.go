// Package ember assembles Ember Data style response envelopes: the primary
// record under the model name with related records sideloaded under their
// plural keys.
package ember

import (
	"fmt"

	"github.com/tjfontaine/blueprint-api/internal/core/domain"
	"github.com/tjfontaine/blueprint-api/internal/core/ports"
)

// Builder implements ports.ResponseBuilder.
type Builder struct {
	models ports.ModelResolver
}

// NewBuilder returns a builder that looks up association targets through
// models. A nil resolver falls back to default naming (plural "<target>s",
// key "id").
func NewBuilder(models ports.ModelResolver) *Builder {
	return &Builder{models: models}
}

// Build returns
//
//	{"<model>": record, "<target plural>": [related...], ...}
//
// Populated associations are reduced to identifiers in the primary record
// and their records sideloaded once per key. Associations present in index
// are written as identifier lists. Hidden attributes are removed throughout.
func (b *Builder) Build(model *domain.Model, populated domain.Record, associations []domain.Association, index map[string][]any) (domain.Envelope, error) {
	if populated == nil {
		return nil, fmt.Errorf("build %s envelope: no record", model.Name)
	}

	primary := model.Visible(populated)
	side := newSideloads()

	for _, assoc := range associations {
		if ids, ok := index[assoc.Name]; ok && !assoc.Populate {
			primary[assoc.Name] = ids
			continue
		}
		if !assoc.Populate {
			continue
		}
		value, ok := primary[assoc.Name]
		if !ok || value == nil {
			continue
		}

		target := b.target(assoc.Target)
		if assoc.IsCollection() {
			members := records(value)
			ids := make([]any, 0, len(members))
			for _, member := range members {
				ids = append(ids, target.PK(member))
				side.add(target, member)
			}
			primary[assoc.Name] = ids
			continue
		}

		if member, ok := asRecord(value); ok {
			primary[assoc.Name] = target.PK(member)
			side.add(target, member)
		}
	}

	env := domain.Envelope{model.Name: primary}
	for _, key := range side.order {
		if key == model.Name {
			continue
		}
		env[key] = side.lists[key]
	}
	return env, nil
}

// Serialize returns the client-facing form of a single record.
func Serialize(model *domain.Model, record domain.Record) domain.Record {
	if record == nil {
		return nil
	}
	return model.Visible(record)
}

func (b *Builder) target(name string) *domain.Model {
	if b.models != nil {
		if m, ok := b.models.Resolve(name); ok {
			return m
		}
	}
	return &domain.Model{Name: name, Plural: name + "s", PrimaryKey: "id"}
}

type sideloads struct {
	order []string
	lists map[string][]domain.Record
	seen  map[string]map[string]bool
}

func newSideloads() *sideloads {
	return &sideloads{
		lists: make(map[string][]domain.Record),
		seen:  make(map[string]map[string]bool),
	}
}

func (s *sideloads) add(target *domain.Model, r domain.Record) {
	key := target.Plural
	if _, ok := s.lists[key]; !ok {
		s.order = append(s.order, key)
		s.lists[key] = []domain.Record{}
		s.seen[key] = make(map[string]bool)
	}
	id := domain.IDString(target.PK(r))
	if id != "" && s.seen[key][id] {
		return
	}
	s.seen[key][id] = true
	s.lists[key] = append(s.lists[key], target.Visible(r))
}

func records(v any) []domain.Record {
	switch t := v.(type) {
	case []domain.Record:
		return t
	case []any:
		out := make([]domain.Record, 0, len(t))
		for _, e := range t {
			if r, ok := asRecord(e); ok {
				out = append(out, r)
			}
		}
		return out
	case []map[string]any:
		out := make([]domain.Record, len(t))
		for i, e := range t {
			out[i] = domain.Record(e)
		}
		return out
	default:
		return nil
	}
}

func asRecord(v any) (domain.Record, bool) {
	switch t := v.(type) {
	case domain.Record:
		return t, true
	case map[string]any:
		return domain.Record(t), true
	default:
		return nil, false
	}
}

var _ ports.ResponseBuilder = (*Builder)(nil)
