package ws

import (
	"context"
	"net/http"

	"github.com/HerbHall/heartbeat/internal/event"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// Subscriber is the side of the event bus the handler needs.
type Subscriber interface {
	Subscribe(topic string, handler event.Handler) (unsubscribe func())
}

// Handler serves the live result stream.
type Handler struct {
	hub    *Hub
	logger *zap.Logger
	unsubs []func()
}

// Compile-time check that Handler can be mounted on the server.
var _ interface {
	RegisterRoutes(mux *http.ServeMux)
} = (*Handler)(nil)

// NewHandler creates a handler that forwards heartbeat events from bus.
func NewHandler(bus Subscriber, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{hub: NewHub(logger), logger: logger}
	if bus != nil {
		forward := func(_ context.Context, e event.Event) {
			if msg, ok := messageFor(e); ok {
				h.hub.Broadcast(msg)
			}
		}
		for _, topic := range []string{event.TopicResult, event.TopicRegistered, event.TopicRemoved} {
			h.unsubs = append(h.unsubs, bus.Subscribe(topic, forward))
		}
	}
	return h
}

// Hub returns the handler's hub.
func (h *Handler) Hub() *Hub { return h.hub }

// Close detaches the handler from the event bus.
func (h *Handler) Close() {
	for _, unsub := range h.unsubs {
		unsub()
	}
	h.unsubs = nil
}

// RegisterRoutes mounts the stream endpoint.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/ws/results", h.handleResults)
}

// handleResults upgrades the request and streams messages until the client
// goes away. ?namespace= limits the stream to one namespace.
func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}

	client := newClient(conn, r.RemoteAddr, r.URL.Query().Get("namespace"), h.logger)
	h.hub.Register(client)

	ctx, cancel := context.WithCancel(r.Context())
	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		cancel()
		close(done)
	}()

	client.readPump(ctx)

	cancel()
	h.hub.Unregister(client)
	conn.Close(websocket.StatusNormalClosure, "")
	<-done
}
