package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// AssociationKind is the cardinality of an association.
type AssociationKind string

const (
	// KindSingular is a to-one association stored as a foreign key attribute.
	KindSingular AssociationKind = "singular"
	// KindCollection is a to-many association backed by a replaceable join.
	KindCollection AssociationKind = "collection"
)

// KeyType is the type of a model's primary key values.
type KeyType string

const (
	KeyInteger KeyType = "integer"
	KeyUUID    KeyType = "uuid"
)

// Association describes one relation on a Model.
type Association struct {
	Name   string          `json:"name" koanf:"name"`
	Kind   AssociationKind `json:"kind" koanf:"kind"`
	Target string          `json:"target" koanf:"target"`
	// Populate sideloads the related records in detail responses. When false,
	// collections are returned as identifier indexes only.
	Populate bool `json:"populate" koanf:"populate"`
}

// IsCollection reports whether the association is to-many.
func (a Association) IsCollection() bool {
	return a.Kind == KindCollection
}

// Model describes an entity type exposed through the generic actions.
type Model struct {
	Name         string        `json:"name" koanf:"name"`
	Plural       string        `json:"plural" koanf:"plural"`
	PrimaryKey   string        `json:"primary_key" koanf:"primary_key"`
	KeyType      KeyType       `json:"key_type" koanf:"key_type"`
	Hidden       []string      `json:"hidden,omitempty" koanf:"hidden"`
	Associations []Association `json:"associations,omitempty" koanf:"associations"`
}

// Normalize fills defaults and validates the model definition.
func (m *Model) Normalize() error {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return fmt.Errorf("model name is required")
	}
	if m.Plural == "" {
		m.Plural = m.Name + "s"
	}
	if m.PrimaryKey == "" {
		m.PrimaryKey = "id"
	}
	switch m.KeyType {
	case "":
		m.KeyType = KeyInteger
	case KeyInteger, KeyUUID:
	default:
		return fmt.Errorf("model %s: invalid key_type %q (must be 'integer' or 'uuid')", m.Name, m.KeyType)
	}

	seen := make(map[string]bool, len(m.Associations))
	for i := range m.Associations {
		a := &m.Associations[i]
		if a.Name == "" || a.Target == "" {
			return fmt.Errorf("model %s: association %d needs a name and a target", m.Name, i)
		}
		if seen[a.Name] {
			return fmt.Errorf("model %s: duplicate association %q", m.Name, a.Name)
		}
		seen[a.Name] = true
		switch a.Kind {
		case KindSingular, KindCollection:
		default:
			return fmt.Errorf("model %s: association %s has invalid kind %q", m.Name, a.Name, a.Kind)
		}
	}
	return nil
}

// Association returns the named association.
func (m *Model) Association(name string) (Association, bool) {
	for _, a := range m.Associations {
		if a.Name == name {
			return a, true
		}
	}
	return Association{}, false
}

// PK returns the primary key value held by a record of this model.
func (m *Model) PK(r Record) any {
	if r == nil {
		return nil
	}
	return r[m.PrimaryKey]
}

// ParsePK converts a raw key (from a URL, a JSON body or a store) into the
// model's canonical key type: int64 for integer keys, string for uuid keys.
func (m *Model) ParsePK(raw any) (any, error) {
	s := IDString(raw)
	if s == "" {
		return nil, ErrInvalidRequest("primary key is required").WithCode(ErrorCodeInvalidPrimaryKey)
	}
	switch m.KeyType {
	case KeyUUID:
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, ErrInvalidRequest(fmt.Sprintf("invalid %s key %q", m.Name, s)).WithCode(ErrorCodeInvalidPrimaryKey)
		}
		return id.String(), nil
	default:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, ErrInvalidRequest(fmt.Sprintf("invalid %s key %q", m.Name, s)).WithCode(ErrorCodeInvalidPrimaryKey)
		}
		return n, nil
	}
}

// Visible returns a copy of r without the model's hidden attributes.
func (m *Model) Visible(r Record) Record {
	out := r.Clone()
	for _, h := range m.Hidden {
		delete(out, h)
	}
	return out
}
