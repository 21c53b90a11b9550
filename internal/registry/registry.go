// Package registry holds the model definitions served by the actions and
// resolves them by singular name or plural route segment.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tjfontaine/blueprint-api/internal/core/domain"
	"github.com/tjfontaine/blueprint-api/internal/core/ports"
)

// Registry is a concurrency-safe set of models. Definitions can be swapped
// wholesale at runtime when the config file changes.
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]*domain.Model
	byPlural map[string]*domain.Model
}

// New creates a registry holding models.
func New(models []domain.Model) (*Registry, error) {
	r := &Registry{}
	if err := r.Replace(models); err != nil {
		return nil, err
	}
	return r, nil
}

// Replace validates models and atomically swaps them in. On error the
// current definitions are kept.
func (r *Registry) Replace(models []domain.Model) error {
	byName := make(map[string]*domain.Model, len(models))
	byPlural := make(map[string]*domain.Model, len(models))

	for i := range models {
		m := models[i]
		m.Associations = append([]domain.Association(nil), models[i].Associations...)
		m.Hidden = append([]string(nil), models[i].Hidden...)
		if err := m.Normalize(); err != nil {
			return err
		}
		if _, dup := byName[m.Name]; dup {
			return fmt.Errorf("duplicate model %q", m.Name)
		}
		if other, dup := byPlural[m.Plural]; dup {
			return fmt.Errorf("models %q and %q share plural %q", other.Name, m.Name, m.Plural)
		}
		byName[m.Name] = &m
		byPlural[m.Plural] = &m
	}

	for _, m := range byName {
		for _, a := range m.Associations {
			if _, ok := byName[a.Target]; !ok {
				return fmt.Errorf("model %s: association %s targets unknown model %q", m.Name, a.Name, a.Target)
			}
		}
	}

	r.mu.Lock()
	r.byName = byName
	r.byPlural = byPlural
	r.mu.Unlock()
	return nil
}

// Resolve looks a model up by singular name or plural.
func (r *Registry) Resolve(name string) (*domain.Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.byName[name]; ok {
		return m, true
	}
	m, ok := r.byPlural[name]
	return m, ok
}

// Models returns all models sorted by name.
func (r *Registry) Models() []*domain.Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Model, 0, len(r.byName))
	for _, m := range r.byName {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

var _ ports.ModelResolver = (*Registry)(nil)
