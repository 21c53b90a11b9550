package ports

import (
	"context"
	"net/http"

	"github.com/tjfontaine/blueprint-api/internal/core/domain"
	"github.com/tjfontaine/blueprint-api/internal/pkg/config"
)

// ModelResolver looks up the model an action operates on.
type ModelResolver interface {
	// Resolve accepts either the singular name or the plural route segment.
	Resolve(name string) (*domain.Model, bool)
}

// ResponseBuilder turns a populated record into the client-facing envelope.
type ResponseBuilder interface {
	Build(model *domain.Model, populated domain.Record, associations []domain.Association, index map[string][]any) (domain.Envelope, error)
}

// Notifier announces writes to realtime subscribers.
// Implementations: in-process socket hub.
type Notifier interface {
	// Origin returns the socket identity that issued r, or "" for plain HTTP.
	Origin(r *http.Request) string
	// Created subscribes the origin to the new record, introduces it to model
	// watchers and publishes the creation.
	Created(ctx context.Context, origin string, model *domain.Model, record domain.Record)
	// Updated subscribes the origin and publishes the change set along with
	// the previous snapshot.
	Updated(ctx context.Context, origin string, model *domain.Model, pk any, changes domain.Record, previous domain.Record)
}

// ConfigProvider loads and manages configuration.
// Implementations: file-based with hot-reload.
type ConfigProvider interface {
	Load(ctx context.Context) (*config.Config, error)
	Watch(ctx context.Context, onChange func(*config.Config)) error
	Close() error
}
