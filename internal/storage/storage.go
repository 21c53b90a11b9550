// Package storage holds the record semantics shared by the store
// implementations: key assignment, base field extraction, relation target
// lookup and association population.
package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tjfontaine/blueprint-api/internal/core/domain"
	"github.com/tjfontaine/blueprint-api/internal/core/ports"
)

// Store is the persistence contract the actions write through.
type Store = ports.Persistence

// Base returns the attributes of data that are stored on the record itself:
// everything except the primary key and collection associations.
func Base(model *domain.Model, data domain.Record) domain.Record {
	out := data.Clone()
	if out == nil {
		out = domain.Record{}
	}
	delete(out, model.PrimaryKey)
	for _, a := range model.Associations {
		if a.IsCollection() {
			delete(out, a.Name)
		}
	}
	return out
}

// NewKey assigns the primary key of a record being created. Integer keys
// come from next. UUID keys honor a well-formed client value and are
// generated otherwise.
func NewKey(model *domain.Model, data domain.Record, next func() (int64, error)) (any, error) {
	if model.KeyType == domain.KeyUUID {
		if raw, ok := data[model.PrimaryKey]; ok && raw != nil {
			return model.ParsePK(raw)
		}
		return uuid.NewString(), nil
	}
	return next()
}

// Target resolves the model a collection association points at.
func Target(models ports.ModelResolver, model *domain.Model, association string) (domain.Association, *domain.Model, error) {
	assoc, ok := model.Association(association)
	if !ok {
		return domain.Association{}, nil, domain.ErrInvalidRequest(fmt.Sprintf("%s has no association %q", model.Name, association)).
			WithCode(domain.ErrorCodeUnknownRelation).
			WithParam(association)
	}
	target, ok := models.Resolve(assoc.Target)
	if !ok {
		return domain.Association{}, nil, fmt.Errorf("association %s.%s targets unknown model %q", model.Name, association, assoc.Target)
	}
	return assoc, target, nil
}

// UnknownRelation reports a relation identifier that names no record.
func UnknownRelation(association string, target *domain.Model, id any) error {
	return domain.ErrInvalidRequest(fmt.Sprintf("%s %v does not exist", target.Name, id)).
		WithCode(domain.ErrorCodeUnknownRelation).
		WithParam(association)
}

// Fetcher loads a single record of a model, returning nil when absent.
type Fetcher func(ctx context.Context, model *domain.Model, pk any) (domain.Record, error)

// Members lists the member identifiers of a collection association.
type Members func(ctx context.Context, association string) ([]any, error)

// Resolve replaces the listed associations on rec with related records:
// singular foreign keys by the record they name, collections by the list of
// member records. Dangling references are left as they are.
func Resolve(ctx context.Context, models ports.ModelResolver, rec domain.Record, populate []domain.Association, fetch Fetcher, members Members) error {
	for _, a := range populate {
		target, ok := models.Resolve(a.Target)
		if !ok {
			return fmt.Errorf("association %s targets unknown model %q", a.Name, a.Target)
		}

		if !a.IsCollection() {
			fk, ok := rec[a.Name]
			if !ok || fk == nil {
				continue
			}
			pk, err := target.ParsePK(fk)
			if err != nil {
				continue
			}
			related, err := fetch(ctx, target, pk)
			if err != nil {
				return fmt.Errorf("populate %s: %w", a.Name, err)
			}
			if related != nil {
				rec[a.Name] = related
			}
			continue
		}

		ids, err := members(ctx, a.Name)
		if err != nil {
			return fmt.Errorf("populate %s: %w", a.Name, err)
		}
		list := make([]any, 0, len(ids))
		for _, id := range ids {
			related, err := fetch(ctx, target, id)
			if err != nil {
				return fmt.Errorf("populate %s: %w", a.Name, err)
			}
			if related != nil {
				list = append(list, related)
			}
		}
		rec[a.Name] = list
	}
	return nil
}
