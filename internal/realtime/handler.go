package realtime

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tjfontaine/blueprint-api/internal/core/ports"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = (pongWait * 9) / 10
	queueLength = 64
)

// Command is a frame sent by a socket.
type Command struct {
	Action string `json:"action"`
	Model  string `json:"model"`
	IDs    []any  `json:"ids,omitempty"`
}

// Handler upgrades HTTP requests to sockets registered with a Hub.
type Handler struct {
	hub      *Hub
	models   ports.ModelResolver
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates the socket endpoint. Model names in commands are
// resolved through models so plurals are accepted.
func NewHandler(hub *Hub, models ports.ModelResolver, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		hub:    hub,
		models: models,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := NewClient(uuid.New().String(), queueLength)
	h.hub.Register(client)
	h.hub.Send(client.ID, Message{Verb: VerbHello, ID: client.ID})
	h.logger.Info("socket connected", slog.String("socket", client.ID))

	go h.writeLoop(conn, client)
	h.readLoop(conn, client)
}

func (h *Handler) readLoop(conn *websocket.Conn, client *Client) {
	defer func() {
		h.hub.Unregister(client.ID)
		conn.Close()
		h.logger.Info("socket disconnected", slog.String("socket", client.ID))
	}()

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("socket read failed", slog.String("socket", client.ID), slog.String("error", err.Error()))
			}
			return
		}
		h.hub.Send(client.ID, h.apply(client.ID, cmd))
	}
}

func (h *Handler) apply(socket string, cmd Command) Message {
	model, ok := h.models.Resolve(cmd.Model)
	if !ok {
		return Message{Verb: VerbError, Model: cmd.Model, Data: "unknown model"}
	}

	switch cmd.Action {
	case "watch":
		h.hub.Watch(socket, model.Name)
	case "subscribe":
		h.hub.Subscribe(socket, model.Name, cmd.IDs...)
	default:
		return Message{Verb: VerbError, Model: model.Name, Data: "unknown action " + cmd.Action}
	}
	return Message{Verb: VerbAck, Model: model.Name, Data: cmd.Action}
}

func (h *Handler) writeLoop(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.Messages():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
