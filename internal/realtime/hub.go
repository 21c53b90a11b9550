// Package realtime announces record writes to websocket subscribers.
//
// Sockets can watch a model (they hear about every new record of it) or
// subscribe to individual records (they hear about updates to them). A
// socket that creates or updates a record over HTTP, identified by the
// X-Socket-Id header, is subscribed to that record automatically.
package realtime

import (
	"log/slog"
	"sync"

	"github.com/tjfontaine/blueprint-api/internal/core/domain"
)

// Verbs carried by Message.
const (
	VerbHello   = "hello"
	VerbAck     = "ok"
	VerbError   = "error"
	VerbCreated = "created"
	VerbUpdated = "updated"
)

// Message is a single frame sent to a socket.
type Message struct {
	Verb     string        `json:"verb"`
	Model    string        `json:"model,omitempty"`
	ID       any           `json:"id,omitempty"`
	Data     any           `json:"data,omitempty"`
	Previous domain.Record `json:"previous,omitempty"`
}

// Client is a registered socket. Messages queue on a bounded buffer that the
// transport drains.
type Client struct {
	ID   string
	send chan Message
}

// NewClient creates a client with room for buffer pending messages.
func NewClient(id string, buffer int) *Client {
	return &Client{ID: id, send: make(chan Message, buffer)}
}

// Messages returns the client's outbound queue.
func (c *Client) Messages() <-chan Message { return c.send }

type set map[string]struct{}

// Hub tracks sockets, model watchers and record subscriptions.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	watchers map[string]set            // model -> sockets
	records  map[string]map[string]set // model -> record id -> sockets
	logger   *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:  make(map[string]*Client),
		watchers: make(map[string]set),
		records:  make(map[string]map[string]set),
		logger:   logger,
	}
}

// Register adds a client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

// Unregister removes a client and all of its subscriptions, then closes its
// queue.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if !ok {
		return
	}
	delete(h.clients, id)
	for model, sockets := range h.watchers {
		delete(sockets, id)
		if len(sockets) == 0 {
			delete(h.watchers, model)
		}
	}
	for model, byID := range h.records {
		for key, sockets := range byID {
			delete(sockets, id)
			if len(sockets) == 0 {
				delete(byID, key)
			}
		}
		if len(byID) == 0 {
			delete(h.records, model)
		}
	}
	close(c.send)
}

// Has reports whether id names a live socket.
func (h *Hub) Has(id string) bool {
	if id == "" {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[id]
	return ok
}

// Watch subscribes a socket to creations of model.
func (h *Hub) Watch(socket, model string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[socket]; !ok {
		return
	}
	if h.watchers[model] == nil {
		h.watchers[model] = make(set)
	}
	h.watchers[model][socket] = struct{}{}
}

// Subscribe subscribes a socket to updates of the given records.
func (h *Hub) Subscribe(socket, model string, ids ...any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[socket]; !ok {
		return
	}
	for _, id := range ids {
		h.subscribeLocked(socket, model, domain.IDString(id))
	}
}

func (h *Hub) subscribeLocked(socket, model, id string) {
	if id == "" {
		return
	}
	if h.records[model] == nil {
		h.records[model] = make(map[string]set)
	}
	if h.records[model][id] == nil {
		h.records[model][id] = make(set)
	}
	h.records[model][id][socket] = struct{}{}
}

// Introduce subscribes every watcher of model to a new record.
func (h *Hub) Introduce(model string, id any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := domain.IDString(id)
	for socket := range h.watchers[model] {
		h.subscribeLocked(socket, model, key)
	}
}

// PublishCreate sends a creation to the model's watchers, skipping exclude.
func (h *Hub) PublishCreate(model string, id any, data domain.Record, exclude string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	msg := Message{Verb: VerbCreated, Model: model, ID: id, Data: data}
	for socket := range h.watchers[model] {
		if socket != exclude {
			h.deliverLocked(socket, msg)
		}
	}
}

// PublishUpdate sends a change set to the record's subscribers, skipping
// exclude.
func (h *Hub) PublishUpdate(model string, id any, changes, previous domain.Record, exclude string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	msg := Message{Verb: VerbUpdated, Model: model, ID: id, Data: changes, Previous: previous}
	for socket := range h.records[model][domain.IDString(id)] {
		if socket != exclude {
			h.deliverLocked(socket, msg)
		}
	}
}

// Send queues a message for one socket.
func (h *Hub) Send(socket string, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.deliverLocked(socket, msg)
}

func (h *Hub) deliverLocked(socket string, msg Message) {
	c, ok := h.clients[socket]
	if !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
		h.logger.Warn("socket queue full, dropping message",
			slog.String("socket", socket),
			slog.String("verb", msg.Verb),
			slog.String("model", msg.Model),
		)
	}
}
