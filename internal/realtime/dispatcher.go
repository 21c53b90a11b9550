package realtime

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/blueprint-api/internal/core/domain"
	"github.com/tjfontaine/blueprint-api/internal/core/ports"
	"github.com/tjfontaine/blueprint-api/internal/ember"
)

// SocketHeader names the socket an HTTP request was issued from.
const SocketHeader = "X-Socket-Id"

// Dispatcher announces writes through a Hub. It implements ports.Notifier.
type Dispatcher struct {
	hub *Hub
	// mirror also delivers announcements to the socket that caused them.
	mirror bool
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher publishing through hub.
func NewDispatcher(hub *Hub, mirror bool, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{hub: hub, mirror: mirror, logger: logger}
}

// Origin returns the live socket named by the request, or "".
func (d *Dispatcher) Origin(r *http.Request) string {
	id := r.Header.Get(SocketHeader)
	if !d.hub.Has(id) {
		return ""
	}
	return id
}

// Created subscribes the origin to the record, introduces it to the
// model's watchers and publishes it.
func (d *Dispatcher) Created(ctx context.Context, origin string, model *domain.Model, record domain.Record) {
	pk := model.PK(record)
	if origin != "" {
		d.hub.Subscribe(origin, model.Name, pk)
	}
	d.hub.Introduce(model.Name, pk)
	d.hub.PublishCreate(model.Name, pk, ember.Serialize(model, record), d.exclude(origin))

	d.logger.Debug("announced create",
		slog.String("model", model.Name),
		slog.String("pk", domain.IDString(pk)),
	)
}

// Updated subscribes the origin and publishes a copy of the change set with
// the serialized previous snapshot.
func (d *Dispatcher) Updated(ctx context.Context, origin string, model *domain.Model, pk any, changes, previous domain.Record) {
	if origin != "" {
		d.hub.Subscribe(origin, model.Name, pk)
	}
	d.hub.PublishUpdate(model.Name, pk, ember.Serialize(model, changes), ember.Serialize(model, previous), d.exclude(origin))

	d.logger.Debug("announced update",
		slog.String("model", model.Name),
		slog.String("pk", domain.IDString(pk)),
	)
}

func (d *Dispatcher) exclude(origin string) string {
	if d.mirror {
		return ""
	}
	return origin
}

var _ ports.Notifier = (*Dispatcher)(nil)
