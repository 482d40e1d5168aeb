package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coursepulse/coursepulse/pkg/channel"
)

// State is the connection state of a Client. Transitions are driven solely by
// the transport; application code never sets a state directly.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

// Defaults applied when the corresponding Config fields are zero.
const (
	DefaultMaxAttempts    = 5
	DefaultBackoffInitial = 1 * time.Second
	DefaultBackoffMax     = 30 * time.Second
)

// historyLimit bounds the message history ring. Oldest entries are evicted
// first once the limit is reached.
const historyLimit = 100

// Handlers holds the caller's event callbacks. Any field may be nil.
// OnMessage receives envelopes in transport order — no reordering or
// deduplication is performed.
type Handlers struct {
	OnMessage func(channel.Envelope)
	OnOpen    func()
	OnClose   func()
	OnError   func(error)
}

// Config configures a Client. BaseURL and Path are required when Enabled.
type Config struct {
	// BaseURL is the server's HTTP(S) endpoint; the scheme is upgraded to
	// ws(s) when dialing.
	BaseURL string

	// Path is the subscription path, e.g. "/notifications/42" or
	// "/collaboration/room9". Connection parameters are derived from it by
	// channel.ParseParams.
	Path string

	// Enabled gates whether any connection is attempted at all. When false
	// (the default) Connect is a no-op.
	Enabled bool

	// Header holds extra headers sent on the upgrade request, e.g. an API key.
	Header http.Header

	// DisableReconnect turns off automatic reconnection after a connection
	// loss. A disabled client that was manually closed is never re-opened
	// by Connect.
	DisableReconnect bool

	// MaxAttempts is the dial attempt budget per outage. When exhausted the
	// client enters the error state and waits for Reconnect or a wake signal.
	MaxAttempts int

	// BackoffInitial and BackoffMax bound the truncated exponential backoff
	// between dial attempts.
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// Wake is an optional host-supplied signal (window focus, app resume).
	// Each signal triggers at most one reconnect, and only while the client
	// is disconnected or errored and reconnection is not disabled.
	Wake <-chan struct{}

	Handlers Handlers
	Logger   *slog.Logger
}

// transport is the subset of *websocket.Conn the client uses. Abstracted so
// tests can inject an in-memory transport.
type transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// dialFunc opens the websocket transport. Injectable for tests.
type dialFunc func(ctx context.Context, url string, hdr http.Header) (transport, error)

func defaultDial(ctx context.Context, url string, hdr http.Header) (transport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, hdr)
	return conn, err
}

// Client maintains one logical stream subscription. Create with New, start
// with Connect, release with Close. Safe for concurrent use.
type Client struct {
	cfg    Config
	log    *slog.Logger
	dialFn dialFunc

	mu           sync.Mutex
	state        State
	conn         transport
	ctx          context.Context
	running      bool
	intentional  bool // current close is caller-initiated
	manualClosed bool // Close has been called at least once

	history  *history
	kick     chan struct{}
	wakeOnce sync.Once
}

// New creates a Client. The client does not connect until Connect is called.
func New(cfg Config) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = DefaultBackoffInitial
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = DefaultBackoffMax
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		log:     log,
		dialFn:  defaultDial,
		state:   StateDisconnected,
		history: newHistory(historyLimit),
		kick:    make(chan struct{}, 1),
	}
}

// Connect starts the connection supervisor. It is idempotent: a client that
// is already connecting or connected is left alone. When the feature flag is
// off, or reconnection is disabled and the client was manually closed, no
// transport is ever opened. ctx bounds the client's lifetime.
func (c *Client) Connect(ctx context.Context) {
	if !c.cfg.Enabled {
		c.log.Debug("realtime: disabled, skipping connect", "path", c.cfg.Path)
		return
	}

	c.mu.Lock()
	if c.running || (c.cfg.DisableReconnect && c.manualClosed) {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.intentional = false
	c.ctx = ctx
	c.mu.Unlock()

	if c.cfg.Wake != nil {
		c.wakeOnce.Do(func() { go c.wakeLoop(ctx) })
	}
	go c.run(ctx)
}

// Send stamps and forwards an envelope over the transport, recording it in
// the message history. While not connected the envelope is dropped with a
// logged warning and history is left unchanged.
func (c *Client) Send(env channel.Envelope) {
	c.mu.Lock()
	conn := c.conn
	state := c.state
	c.mu.Unlock()

	if state != StateConnected || conn == nil {
		c.log.Warn("realtime: send while not connected, dropping",
			"type", env.Type, "state", string(state))
		return
	}

	env.Stamp()
	raw, err := json.Marshal(env)
	if err != nil {
		c.log.Error("realtime: marshal envelope", "type", env.Type, "err", err)
		return
	}
	c.history.add(env)

	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		c.log.Error("realtime: write failed", "type", env.Type, "err", err)
		c.callOnError(err)
	}
}

// Reconnect forces a fresh connection attempt regardless of current state.
// A live connection is dropped first; an exited supervisor is restarted.
func (c *Client) Reconnect() {
	if !c.cfg.Enabled {
		return
	}

	c.mu.Lock()
	conn := c.conn
	running := c.running
	ctx := c.ctx
	c.intentional = false
	c.manualClosed = false
	if !running && ctx != nil {
		c.running = true
	}
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	select {
	case c.kick <- struct{}{}:
	default:
	}
	if !running && ctx != nil {
		go c.run(ctx)
	}
}

// Close marks the shutdown as intentional — suppressing auto-reconnect — and
// releases the transport. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	c.intentional = true
	c.manualClosed = true
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// History returns a copy of the retained envelopes, oldest first. Both sent
// and received messages are recorded, bounded to the last 100.
func (c *Client) History() []channel.Envelope {
	return c.history.list()
}

// --- supervisor -------------------------------------------------------------

// run dials, pumps, and reconnects until the lifetime context is cancelled,
// the close is intentional, or reconnection is disabled after a loss.
func (c *Client) run(ctx context.Context) {
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	bo := newBackoff(c.cfg.BackoffInitial, c.cfg.BackoffMax)
	attempts := 0

	for {
		if ctx.Err() != nil || c.closedIntentionally() {
			c.setState(StateDisconnected)
			return
		}

		c.setState(StateConnecting)
		conn, err := c.dialFn(ctx, c.endpoint(), c.cfg.Header)
		if err != nil {
			attempts++
			if attempts >= c.cfg.MaxAttempts {
				c.log.Error("realtime: connect failed, attempts exhausted",
					"path", c.cfg.Path, "attempts", attempts, "err", err)
				c.setState(StateError)
				c.callOnError(err)
				// No self-healing from here: wait for Reconnect or a wake signal.
				select {
				case <-ctx.Done():
					return
				case <-c.kick:
					attempts = 0
					bo.reset()
					continue
				}
			}

			wait := bo.next()
			c.log.Warn("realtime: dial failed, will retry",
				"path", c.cfg.Path, "attempt", attempts, "retry_in", wait, "err", err)
			select {
			case <-ctx.Done():
				c.setState(StateDisconnected)
				return
			case <-c.kick:
			case <-time.After(wait):
			}
			continue
		}

		attempts = 0
		bo.reset()

		c.mu.Lock()
		if c.intentional || ctx.Err() != nil {
			// Close raced the dial: the caller gave up while the handshake
			// was in flight, so release the fresh transport untouched.
			c.mu.Unlock()
			conn.Close()
			c.setState(StateDisconnected)
			return
		}
		c.conn = conn
		c.state = StateConnected
		c.mu.Unlock()
		c.log.Info("realtime: connected", "path", c.cfg.Path)
		c.callOnOpen()

		readErr := c.readLoop(conn)
		conn.Close()

		c.mu.Lock()
		c.conn = nil
		c.state = StateDisconnected
		intentional := c.intentional
		c.mu.Unlock()
		c.callOnClose()

		if intentional || ctx.Err() != nil {
			c.log.Info("realtime: closed", "path", c.cfg.Path)
			return
		}
		if c.cfg.DisableReconnect {
			c.log.Info("realtime: connection lost, reconnect disabled",
				"path", c.cfg.Path, "err", readErr)
			return
		}

		wait := bo.next()
		c.log.Warn("realtime: connection lost, will reconnect",
			"path", c.cfg.Path, "retry_in", wait, "err", readErr)
		select {
		case <-ctx.Done():
			c.setState(StateDisconnected)
			return
		case <-c.kick:
		case <-time.After(wait):
		}
	}
}

// readLoop delivers inbound frames until the connection fails or closes.
// Every frame is normalized defensively — a malformed payload becomes a
// fallback envelope rather than an error in the handler chain.
func (c *Client) readLoop(conn transport) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		env := channel.Decode(raw)
		c.history.add(env)
		if c.cfg.Handlers.OnMessage != nil {
			c.cfg.Handlers.OnMessage(env)
		}
	}
}

// wakeLoop retries on host wake signals while the client is down.
func (c *Client) wakeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-c.cfg.Wake:
			if !ok {
				return
			}
			if c.cfg.DisableReconnect {
				continue
			}
			if s := c.State(); s == StateDisconnected || s == StateError {
				c.log.Debug("realtime: wake signal, reconnecting", "path", c.cfg.Path)
				c.Reconnect()
			}
		}
	}
}

// endpoint builds the dial URL: BaseURL upgraded to the ws scheme, the /ws
// mount point, and the query parameters derived from the subscription path.
func (c *Client) endpoint() string {
	base := strings.TrimSuffix(c.cfg.BaseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	u := base + "/ws"
	if params := channel.ParseParams(c.cfg.Path); len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (c *Client) closedIntentionally() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intentional
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) callOnOpen() {
	if c.cfg.Handlers.OnOpen != nil {
		c.cfg.Handlers.OnOpen()
	}
}

func (c *Client) callOnClose() {
	if c.cfg.Handlers.OnClose != nil {
		c.cfg.Handlers.OnClose()
	}
}

func (c *Client) callOnError(err error) {
	if c.cfg.Handlers.OnError != nil {
		c.cfg.Handlers.OnError(err)
	}
}
