package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/coursepulse/coursepulse/pkg/channel"
	"github.com/coursepulse/coursepulse/server/internal/history"
	"github.com/coursepulse/coursepulse/server/internal/hub"
)

// maxPublishBody bounds the request body for POST /api/v1/publish.
const maxPublishBody = 64 * 1024

// Availability reports whether the cross-instance bridge is connected.
// Nil means no bridge is configured.
type Availability interface {
	Available() bool
}

// Handler is the HTTP handler for all /api/v1/* endpoints and /metrics.
// It reads live state from the hub and retained envelopes from the history
// store, and accepts backend publishes.
type Handler struct {
	hub    *hub.Hub
	hist   *history.Store
	bridge Availability
	mux    *http.ServeMux
}

// New creates a Handler wired to the given hub and history store and
// registers all routes. bridge may be nil when no bridge is configured.
func New(h *hub.Hub, st *history.Store, bridge Availability) http.Handler {
	a := &Handler{hub: h, hist: st, bridge: bridge, mux: http.NewServeMux()}

	a.mux.HandleFunc("/api/v1/publish", a.publish)
	a.mux.HandleFunc("/api/v1/streams", a.listStreams)
	a.mux.HandleFunc("/api/v1/streams/", a.streamHistory) // subtree, extracts {key}
	a.mux.HandleFunc("/api/v1/health", a.health)
	a.mux.HandleFunc("/metrics", a.metrics)

	return a
}

func (a *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// publish handles POST /api/v1/publish, the backend ingress: course services
// push envelopes onto a stream without holding a WebSocket connection.
func (a *Handler) publish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req PublishRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPublishBody))
	if err := dec.Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Envelope.Type == "" {
		jsonErr(w, http.StatusBadRequest, "envelope.type must not be empty")
		return
	}
	if req.Stream == "" {
		req.Stream = channel.DefaultStream
	}

	req.Envelope.Stamp()
	a.hub.Publish(req.Stream, req.Envelope)

	jsonResp(w, http.StatusAccepted, PublishResponse{
		Stream:    req.Stream,
		Timestamp: req.Envelope.Timestamp,
	})
}

// listStreams handles GET /api/v1/streams — live streams with subscriber
// counts plus streams that only have retained history.
func (a *Handler) listStreams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	live := a.hub.Streams()
	names := make(map[string]struct{}, len(live))
	for name := range live {
		names[name] = struct{}{}
	}
	for _, name := range a.hist.Streams() {
		names[name] = struct{}{}
	}

	out := make([]StreamResponse, 0, len(names))
	for name := range names {
		out = append(out, StreamResponse{
			Stream:      name,
			Subscribers: live[name],
			Retained:    a.hist.Len(name),
			Room:        channel.IsRoom(name),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stream < out[j].Stream })

	jsonResp(w, http.StatusOK, out)
}

// streamHistory handles GET /api/v1/streams/{key}/history — the retained
// envelopes for one stream, oldest first.
func (a *Handler) streamHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/streams/")
	key, ok := strings.CutSuffix(rest, "/history")
	if !ok || key == "" || strings.Contains(key, "/") {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}

	envs := a.hist.List(key)
	if envs == nil {
		envs = []channel.Envelope{}
	}
	jsonResp(w, http.StatusOK, HistoryResponse{
		Stream:    key,
		Count:     len(envs),
		Envelopes: envs,
	})
}

// health handles GET /api/v1/health — hub counters and bridge state.
func (a *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stats := a.hub.Stats()
	resp := HealthResponse{
		State:     "ok",
		Clients:   stats.Clients,
		Streams:   stats.Streams,
		Published: stats.Published,
		Dropped:   stats.Dropped,
		Bridge:    "disabled",
	}
	if a.bridge != nil {
		if a.bridge.Available() {
			resp.Bridge = "connected"
		} else {
			resp.Bridge = "disconnected"
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
