package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coursepulse/coursepulse/pkg/channel"
	"github.com/coursepulse/coursepulse/server/internal/history"
)

const (
	// writeTimeout is the deadline for a single write to a subscriber.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-subscriber outgoing message buffer depth.
	sendBufSize = 32

	// maxFrameSize bounds inbound frames. Envelope payloads are opaque but
	// small; anything larger is a misbehaving client.
	maxFrameSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Allow all origins — callers should apply CORS at the reverse-proxy level.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Bridge forwards published envelopes to other server instances.
// Defined here to avoid a circular import with the bridge package.
type Bridge interface {
	Publish(stream string, env channel.Envelope) error
	Available() bool
}

// Notifier observes publishes that reached no connected subscriber on this
// instance, for offline delivery.
type Notifier interface {
	PublishMissed(stream string, env channel.Envelope)
}

// Stats is a point-in-time snapshot of hub activity.
type Stats struct {
	Clients   int
	Streams   int
	Published uint64
	Dropped   uint64
}

// Hub manages WebSocket subscribers keyed by stream and fans published
// envelopes out to them. Late joiners receive the stream's retained history
// on connect. Collaboration room subscribers may publish back into their room;
// subscribers of other streams are receive-only.
type Hub struct {
	hist *history.Store

	mu      sync.RWMutex
	streams map[string]map[*subscriber]struct{}

	bridge   Bridge
	notifier Notifier

	published atomic.Uint64
	dropped   atomic.Uint64
}

// subscriber represents one connected WebSocket client. The send channel is
// only written and closed through trySend/closeSend, which serialize against
// each other so a fan-out can never hit a just-closed channel.
type subscriber struct {
	stream string
	conn   *websocket.Conn
	send   chan []byte

	mu     sync.Mutex
	closed bool
}

// trySend queues data without blocking. queued reports whether the data was
// accepted; full reports that the buffer had no room (the slow-client case).
// A closed subscriber reports neither.
func (s *subscriber) trySend(data []byte) (queued, full bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, false
	}
	select {
	case s.send <- data:
		return true, false
	default:
		return false, true
	}
}

// closeSend closes the send channel exactly once.
func (s *subscriber) closeSend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

// New creates a Hub that retains and replays history from hist.
func New(hist *history.Store) *Hub {
	return &Hub{
		hist:    hist,
		streams: make(map[string]map[*subscriber]struct{}),
	}
}

// SetBridge attaches a cross-instance bridge. Published envelopes are then
// also forwarded to other instances.
func (h *Hub) SetBridge(b Bridge) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bridge = b
}

// SetNotifier attaches an offline-delivery notifier.
func (h *Hub) SetNotifier(n Notifier) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notifier = n
}

// Run blocks until ctx is cancelled, then closes all active connections.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Publish stamps an envelope, records it in history, delivers it to local
// subscribers, and forwards it to the bridge when one is attached. A publish
// that reaches no local subscriber is handed to the notifier.
func (h *Hub) Publish(stream string, env channel.Envelope) {
	env.Stamp()
	h.hist.Append(stream, env)
	delivered := h.fanOut(stream, env)
	h.published.Add(1)

	h.mu.RLock()
	b := h.bridge
	n := h.notifier
	h.mu.RUnlock()

	if b != nil && b.Available() {
		if err := b.Publish(stream, env); err != nil {
			slog.Error("hub: bridge publish failed", "stream", stream, "err", err)
		}
	}
	if delivered == 0 && n != nil {
		n.PublishMissed(stream, env)
	}
}

// PublishLocal records and delivers an envelope to local subscribers only.
// Used for envelopes arriving from the bridge, preventing re-publish loops.
func (h *Hub) PublishLocal(stream string, env channel.Envelope) {
	env.Stamp()
	h.hist.Append(stream, env)
	h.fanOut(stream, env)
}

// ServeHTTP upgrades the HTTP connection to WebSocket and serves the
// subscriber: resolves the stream from the query parameters, replays the
// stream's retained history, then pumps until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	stream := channel.StreamKey(r.URL.Query())
	sub := &subscriber{
		stream: stream,
		conn:   conn,
		send:   make(chan []byte, sendBufSize),
	}

	// Replay retained history before live traffic so a late joiner has
	// recent context right away.
	for _, env := range h.hist.List(stream) {
		data, err := json.Marshal(env)
		if err != nil {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			return
		}
	}

	h.register(sub)
	defer h.unregister(sub)

	slog.Info("hub: subscriber joined", "stream", stream, "remote", r.RemoteAddr)

	go sub.writePump()
	h.readPump(sub) // blocks until connection closes

	slog.Info("hub: subscriber left", "stream", stream, "remote", r.RemoteAddr)
}

// SubscriberCount returns the number of connected subscribers on one stream.
func (h *Hub) SubscriberCount(stream string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams[stream])
}

// Streams returns stream names with their current subscriber counts.
func (h *Hub) Streams() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]int, len(h.streams))
	for name, subs := range h.streams {
		out[name] = len(subs)
	}
	return out
}

// Count returns the number of currently connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, subs := range h.streams {
		n += len(subs)
	}
	return n
}

// Stats returns a point-in-time snapshot of hub activity.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	clients := 0
	for _, subs := range h.streams {
		clients += len(subs)
	}
	streams := len(h.streams)
	h.mu.RUnlock()

	return Stats{
		Clients:   clients,
		Streams:   streams,
		Published: h.published.Load(),
		Dropped:   h.dropped.Load(),
	}
}

// --- internal ---------------------------------------------------------------

func (h *Hub) register(s *subscriber) {
	h.mu.Lock()
	if h.streams[s.stream] == nil {
		h.streams[s.stream] = make(map[*subscriber]struct{})
	}
	h.streams[s.stream][s] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(s *subscriber) {
	h.mu.Lock()
	if subs, ok := h.streams[s.stream]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(h.streams, s.stream)
		}
	}
	h.mu.Unlock()
	s.closeSend()
}

// fanOut delivers an envelope to every subscriber of a stream and returns the
// number of subscribers it reached. A subscriber whose buffer is full is
// disconnected rather than allowed to stall the stream.
func (h *Hub) fanOut(stream string, env channel.Envelope) int {
	data, err := json.Marshal(env)
	if err != nil {
		slog.Error("hub: marshal envelope", "stream", stream, "err", err)
		return 0
	}

	h.mu.RLock()
	targets := make([]*subscriber, 0, len(h.streams[stream]))
	for s := range h.streams[stream] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, s := range targets {
		queued, full := s.trySend(data)
		if queued {
			delivered++
			continue
		}
		if full {
			// Subscriber's outgoing buffer is full — disconnect it.
			h.dropped.Add(1)
			slog.Warn("hub: subscriber too slow, disconnecting", "stream", stream)
			h.unregister(s)
		}
	}
	return delivered
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	all := make([]*subscriber, 0)
	for name, subs := range h.streams {
		for s := range subs {
			all = append(all, s)
			delete(subs, s)
		}
		delete(h.streams, name)
	}
	h.mu.Unlock()

	for _, s := range all {
		s.closeSend()
	}
}

// readPump reads frames from the connection to process control messages and
// detect disconnects. On collaboration rooms inbound envelopes are published
// back into the room; on other streams data frames are ignored. Blocks until
// the connection closes.
func (h *Hub) readPump(s *subscriber) {
	defer s.conn.Close()
	s.conn.SetReadLimit(maxFrameSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	room := channel.IsRoom(s.stream)
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if !room {
			continue
		}
		env := channel.Decode(raw)
		h.Publish(s.stream, env)
	}
}

// writePump drains the subscriber's send channel and forwards envelopes to
// the WebSocket connection. It also sends periodic ping frames. Runs in its
// own goroutine per subscriber.
func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Channel was closed (hub is shutting down or subscriber removed).
				s.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
