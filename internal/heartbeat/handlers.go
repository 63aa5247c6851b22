package heartbeat

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/HerbHall/heartbeat/internal/definition"
	"github.com/HerbHall/heartbeat/internal/event"
	"github.com/HerbHall/heartbeat/internal/monitor"
	"github.com/HerbHall/heartbeat/internal/server"
	"go.uber.org/zap"
)

const maxDocumentBytes = 1 << 20

// DefinitionStore persists API-registered definitions.
type DefinitionStore interface {
	Save(ctx context.Context, def monitor.Definition) error
	Delete(ctx context.Context, name string) (bool, error)
}

// MonitorView is the JSON form of a registered monitor.
type MonitorView struct {
	Key       string     `json:"key"`
	Name      string     `json:"name"`
	Namespace string     `json:"namespace,omitempty"`
	Type      string     `json:"type"`
	Interval  int64      `json:"interval_ms"`
	Timeout   int64      `json:"timeout_ms"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	Up        int64      `json:"up"`
}

func viewOf(key string, m *monitor.Monitor) MonitorView {
	v := MonitorView{
		Key:       key,
		Name:      m.Name(),
		Namespace: m.Namespace(),
		Type:      string(m.CheckType()),
		Interval:  m.Interval().Milliseconds(),
		Timeout:   m.Timeout().Milliseconds(),
		Up:        m.Up(),
	}
	if last := m.LastRun(); !last.IsZero() {
		v.LastRun = &last
	}
	return v
}

// Handler serves /api/v1/monitors.
type Handler struct {
	engine      *Engine
	store       DefinitionStore
	events      event.Publisher
	requireAuth func(http.Handler) http.Handler
	clock       monitor.Clock
	logger      *zap.Logger
}

// NewHandler creates the monitors API. store, events and requireAuth may
// be nil; a nil requireAuth leaves the write routes open.
func NewHandler(engine *Engine, store DefinitionStore, events event.Publisher, requireAuth func(http.Handler) http.Handler, logger *zap.Logger) *Handler {
	if requireAuth == nil {
		requireAuth = func(next http.Handler) http.Handler { return next }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		engine:      engine,
		store:       store,
		events:      events,
		requireAuth: requireAuth,
		clock:       time.Now,
		logger:      logger,
	}
}

// RegisterRoutes mounts the monitors API. Keys may contain slashes, so the
// single-monitor routes take the rest of the path.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/monitors", h.handleList)
	mux.HandleFunc("GET /api/v1/monitors/{key...}", h.handleGet)
	mux.Handle("POST /api/v1/monitors", h.requireAuth(http.HandlerFunc(h.handleCreate)))
	mux.Handle("DELETE /api/v1/monitors/{key...}", h.requireAuth(http.HandlerFunc(h.handleDelete)))
}

func (h *Handler) handleList(w http.ResponseWriter, _ *http.Request) {
	entries := h.engine.Registry().Entries()
	views := make([]MonitorView, 0, len(entries))
	for _, e := range entries {
		views = append(views, viewOf(e.Key, e.Monitor))
	}
	server.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	key, m, ok := h.lookup(r.PathValue("key"))
	if !ok {
		server.NotFound(w, "monitor not found", r.URL.Path)
		return
	}
	server.WriteJSON(w, http.StatusOK, viewOf(key, m))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err != nil {
		server.BadRequest(w, "failed to read request body", r.URL.Path)
		return
	}
	def, err := definition.Decode(body, requestFormat(r))
	if err != nil {
		server.BadRequest(w, err.Error(), r.URL.Path)
		return
	}
	// API definitions are keyed by name.
	def.Source = ""
	def.UpdatedAt = h.clock()

	prev, _ := h.engine.Registry().Get(def.Key())
	key, err := h.engine.Register(def)
	switch {
	case errors.Is(err, ErrStopped):
		server.Unavailable(w, "engine is stopped", r.URL.Path)
		return
	case errors.Is(err, ErrNameConflict):
		server.Conflict(w, err.Error(), r.URL.Path)
		return
	case err != nil:
		server.BadRequest(w, err.Error(), r.URL.Path)
		return
	}

	if h.store != nil {
		if err := h.store.Save(r.Context(), def); err != nil {
			h.engine.Restore(key, prev)
			h.logger.Error("failed to persist monitor definition", zap.String("monitor", def.Name), zap.Error(err))
			server.InternalError(w, "failed to persist monitor definition", r.URL.Path)
			return
		}
	}

	m, ok := h.engine.Registry().Get(key)
	if !ok {
		// Removed by a concurrent DELETE.
		server.NotFound(w, "monitor was removed before it could be returned", r.URL.Path)
		return
	}
	h.publish(r.Context(), event.TopicRegistered, key, m)
	h.logger.Info("monitor registered", zap.String("key", key), zap.String("type", string(def.CheckType())))

	w.Header().Set("Location", "/api/v1/monitors/"+key)
	server.WriteJSON(w, http.StatusCreated, viewOf(key, m))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	key, m, ok := h.lookup(r.PathValue("key"))
	if !ok || !h.engine.Unregister(key) {
		server.NotFound(w, "monitor not found", r.URL.Path)
		return
	}

	// Only name-keyed monitors came from the API and live in the store.
	if h.store != nil && key == m.Name() {
		if _, err := h.store.Delete(r.Context(), key); err != nil {
			h.logger.Error("failed to delete stored monitor definition", zap.String("monitor", key), zap.Error(err))
			server.InternalError(w, "monitor removed but stored definition could not be deleted", r.URL.Path)
			return
		}
	}

	h.publish(r.Context(), event.TopicRemoved, key, m)
	h.logger.Info("monitor removed", zap.String("key", key))
	w.WriteHeader(http.StatusNoContent)
}

// lookup resolves a path key. The mux collapses the leading slash of an
// absolute file path, so "/"+key is tried as well.
func (h *Handler) lookup(key string) (string, *monitor.Monitor, bool) {
	reg := h.engine.Registry()
	for _, k := range []string{key, "/" + key} {
		if m, ok := reg.Get(k); ok {
			return k, m, true
		}
	}
	return "", nil, false
}

func (h *Handler) publish(ctx context.Context, topic, key string, m *monitor.Monitor) {
	if h.events == nil || m == nil {
		return
	}
	h.events.Publish(ctx, event.Event{
		Topic:  topic,
		Source: EventSource,
		Payload: event.MonitorChange{
			Key:       key,
			Name:      m.Name(),
			Namespace: m.Namespace(),
			CheckType: string(m.CheckType()),
		},
	})
}

func requestFormat(r *http.Request) definition.Format {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mt {
	case "application/yaml", "application/x-yaml", "text/yaml":
		return definition.FormatYAML
	default:
		return definition.FormatJSON
	}
}
