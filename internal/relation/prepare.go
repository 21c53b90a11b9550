// Package relation extracts collection association memberships from request
// data so they can be assigned once the owning record exists.
package relation

import (
	"fmt"

	"github.com/tjfontaine/blueprint-api/internal/core/domain"
	"github.com/tjfontaine/blueprint-api/internal/core/ports"
)

// Prepare returns one PreparedRelation for every collection association
// named in data, in association declaration order, together with a copy of
// data that no longer carries those keys. Singular associations are left in
// place for the persistence layer to assign as ordinary attributes.
//
// Embedded objects are reduced to the primary key of the association's
// target model, resolved through models. A nil resolver or an unknown target
// falls back to "id".
func Prepare(models ports.ModelResolver, associations []domain.Association, data domain.Record) ([]domain.PreparedRelation, domain.Record, error) {
	base := data.Clone()
	if base == nil {
		base = domain.Record{}
	}

	var prepared []domain.PreparedRelation
	for _, assoc := range associations {
		if !assoc.IsCollection() {
			continue
		}
		raw, ok := base[assoc.Name]
		if !ok {
			continue
		}
		delete(base, assoc.Name)

		ids, err := Identifiers(raw, targetKey(models, assoc))
		if err != nil {
			return nil, nil, domain.ErrInvalidRequest(fmt.Sprintf("%s: %v", assoc.Name, err)).
				WithCode(domain.ErrorCodeInvalidBody).
				WithParam(assoc.Name)
		}
		prepared = append(prepared, domain.PreparedRelation{
			Collection: assoc.Name,
			Values:     ids,
		})
	}
	return prepared, base, nil
}

func targetKey(models ports.ModelResolver, assoc domain.Association) string {
	if models != nil {
		if target, ok := models.Resolve(assoc.Target); ok && target.PrimaryKey != "" {
			return target.PrimaryKey
		}
	}
	return "id"
}

// Identifiers coerces a raw association value into an ordered identifier
// list. Arrays keep their order, null entries are skipped and embedded
// objects contribute their key attribute. Anything other than an array
// yields an empty, non-nil list. An embedded object without key is an error.
func Identifiers(raw any, key string) ([]any, error) {
	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case []domain.Record:
		items = make([]any, len(v))
		for i, r := range v {
			items[i] = r
		}
	case []string:
		items = make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
	case []int64:
		items = make([]any, len(v))
		for i, n := range v {
			items[i] = n
		}
	default:
		return []any{}, nil
	}

	ids := make([]any, 0, len(items))
	for i, item := range items {
		id, err := identifier(item, key)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if id != nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func identifier(item any, key string) (any, error) {
	var obj map[string]any
	switch v := item.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		obj = v
	case domain.Record:
		obj = v
	default:
		return v, nil
	}
	id, ok := obj[key]
	if !ok || id == nil {
		return nil, fmt.Errorf("embedded object has no %q", key)
	}
	return id, nil
}
