// ABOUTME: Push channel adapter over a single websocket connection per user
// ABOUTME: Named-event handlers with one active subscription per event per connection

package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/arham771790/Chat-Frontend/internal/broadcast"
)

// Server-pushed event names.
const (
	EventOnlineUsers = "getOnlineUsers"
	EventNewMessage  = "newMessage"
)

const (
	writeWait    = 10 * time.Second
	maxFrameSize = 32 << 20 // messages may carry inline images

	DefaultHandshakeTimeout = 10 * time.Second
	DefaultPingInterval     = 25 * time.Second
)

// Channel errors
var (
	ErrNoIdentity        = errors.New("push: no user id")
	ErrNotConnected      = errors.New("push: not connected")
	ErrHandlerRegistered = errors.New("push: handler already registered for event")
)

// Frame is the wire envelope for every pushed event.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handler receives the raw payload of one event. Handlers run on the
// connection's read goroutine and must not block for long.
type Handler func(data json.RawMessage)

// Status describes the channel's connection.
type Status struct {
	Connected bool
	UserID    string
}

// Options configure a Channel.
type Options struct {
	URL              string // websocket endpoint; userId is added as a query parameter
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	Header           http.Header // extra handshake headers, e.g. cookies
	Logger           *slog.Logger
}

// Channel owns at most one live push connection at a time.
type Channel struct {
	opMu sync.Mutex // serializes Connect and Disconnect

	mu     sync.Mutex
	conn   *connection
	nextID uint64

	endpoint     string
	dialer       *websocket.Dialer
	header       http.Header
	pingInterval time.Duration
	presence     *Presence
	status       *broadcast.Broadcaster[Status]
	logger       *slog.Logger
}

type handlerEntry struct {
	id uint64
	fn Handler
}

// connection is one dialed websocket plus the handlers registered on it.
// handlers is guarded by Channel.mu.
type connection struct {
	ws       *websocket.Conn
	userID   string
	handlers map[string]handlerEntry
	writeMu  sync.Mutex
	done     chan struct{}
	once     sync.Once
}

func (c *connection) close() {
	c.once.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		_ = c.ws.Close()
	})
}

// NewChannel creates a disconnected channel.
func NewChannel(opts Options) (*Channel, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing push url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("push url must be ws or wss, got %q", opts.URL)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	handshake := opts.HandshakeTimeout
	if handshake <= 0 {
		handshake = DefaultHandshakeTimeout
	}
	ping := opts.PingInterval
	if ping <= 0 {
		ping = DefaultPingInterval
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = handshake

	return &Channel{
		endpoint:     u.String(),
		dialer:       &dialer,
		header:       opts.Header,
		pingInterval: ping,
		presence:     NewPresence(logger),
		status:       broadcast.New[Status](logger, "push-status"),
		logger:       logger.With("component", "push"),
	}, nil
}

// Presence returns the channel's online-user set.
func (c *Channel) Presence() *Presence {
	return c.presence
}

// Connect dials the push endpoint as userID. Connecting again as the same
// user is a no-op; a different user replaces the connection.
func (c *Channel) Connect(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrNoIdentity
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	old := c.conn
	if old != nil && old.userID == userID {
		c.mu.Unlock()
		return nil
	}
	c.conn = nil
	c.mu.Unlock()

	if old != nil {
		c.logger.Info("switching push identity", "from", old.userID, "to", userID)
		old.close()
		c.presence.Clear()
	}

	target, err := url.Parse(c.endpoint)
	if err != nil {
		return fmt.Errorf("parsing push url: %w", err)
	}
	q := target.Query()
	q.Set("userId", userID)
	target.RawQuery = q.Encode()

	ws, resp, err := c.dialer.DialContext(ctx, target.String(), c.header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.publishStatus()
		return fmt.Errorf("dialing push channel: %w", err)
	}

	conn := &connection{
		ws:       ws,
		userID:   userID,
		handlers: make(map[string]handlerEntry),
		done:     make(chan struct{}),
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn)
	go c.pingLoop(conn)

	c.logger.Info("push channel connected", "user_id", userID)
	c.publishStatus()
	return nil
}

// Disconnect closes the live connection, if any, dropping its handlers and
// the presence set. Disconnecting twice is a no-op.
func (c *Channel) Disconnect() {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return
	}

	conn.close()
	c.presence.Clear()
	c.logger.Info("push channel disconnected", "user_id", conn.userID)
	c.publishStatus()
}

// Connected reports whether a connection is live.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// UserID returns the identity of the live connection, or "".
func (c *Channel) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ""
	}
	return c.conn.userID
}

// Status returns a snapshot of the connection state.
func (c *Channel) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return Status{}
	}
	return Status{Connected: true, UserID: c.conn.userID}
}

// Subscribe returns a channel receiving the status after every change.
func (c *Channel) Subscribe(ctx context.Context) (<-chan Status, string) {
	return c.status.Subscribe(ctx)
}

// Unsubscribe removes a subscription created by Subscribe.
func (c *Channel) Unsubscribe(id string) {
	c.status.Unsubscribe(id)
}

// On registers the handler for event on the live connection. Only one
// handler per event may be active; release the returned Subscription
// before registering another.
func (c *Channel) On(event string, fn Handler) (*Subscription, error) {
	if event == "" || fn == nil {
		return nil, errors.New("push: event name and handler are required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, ErrNotConnected
	}
	if _, exists := c.conn.handlers[event]; exists {
		return nil, fmt.Errorf("%w: %s", ErrHandlerRegistered, event)
	}

	c.nextID++
	c.conn.handlers[event] = handlerEntry{id: c.nextID, fn: fn}
	return &Subscription{channel: c, conn: c.conn, event: event, id: c.nextID}, nil
}

// Off removes whatever handler is registered for event.
func (c *Channel) Off(event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		delete(c.conn.handlers, event)
	}
}

// HasHandler reports whether a handler is registered for event.
func (c *Channel) HasHandler(event string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return false
	}
	_, ok := c.conn.handlers[event]
	return ok
}

func (c *Channel) publishStatus() {
	c.status.Publish(c.Status())
}

func (c *Channel) readLoop(conn *connection) {
	conn.ws.SetReadLimit(maxFrameSize)
	pongWait := 2 * c.pingInterval
	_ = conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := conn.ws.ReadMessage()
		if err != nil {
			c.connectionLost(conn, err)
			return
		}
		// Any traffic proves the peer is alive
		_ = conn.ws.SetReadDeadline(time.Now().Add(pongWait))

		var frame Frame
		if err := json.Unmarshal(payload, &frame); err != nil || frame.Event == "" {
			c.logger.Warn("ignoring malformed push frame", "user_id", conn.userID, "error", err)
			continue
		}
		c.dispatch(conn, frame)
	}
}

func (c *Channel) dispatch(conn *connection, frame Frame) {
	if frame.Event == EventOnlineUsers {
		var ids []string
		if err := json.Unmarshal(frame.Data, &ids); err != nil {
			c.logger.Warn("ignoring malformed presence update", "error", err)
		} else {
			c.replacePresence(conn, ids)
		}
	}

	c.mu.Lock()
	var fn Handler
	if c.conn == conn {
		if entry, ok := conn.handlers[frame.Event]; ok {
			fn = entry.fn
		}
	}
	c.mu.Unlock()

	if fn == nil {
		c.logger.Debug("no handler for push event", "event", frame.Event)
		return
	}
	fn(frame.Data)
}

// replacePresence applies a presence update from conn. The check and the
// replace happen under mu so a concurrent disconnect, which clears presence
// after detaching the connection, cannot be overwritten by a late update.
func (c *Channel) replacePresence(conn *connection, ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		return
	}
	c.presence.Replace(ids)
}

// connectionLost handles a read failure. A connection that was already
// replaced or closed locally is ignored.
func (c *Channel) connectionLost(conn *connection, err error) {
	c.mu.Lock()
	current := c.conn == conn
	if current {
		c.conn = nil
	}
	c.mu.Unlock()

	conn.close()
	if !current {
		return
	}

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.logger.Info("push channel closed by server", "user_id", conn.userID)
	} else {
		c.logger.Warn("push channel lost", "user_id", conn.userID, "error", err)
	}
	c.presence.Clear()
	c.publishStatus()
}

func (c *Channel) pingLoop(conn *connection) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-conn.done:
			return
		case <-ticker.C:
			conn.writeMu.Lock()
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.ws.WriteMessage(websocket.PingMessage, nil)
			conn.writeMu.Unlock()
			if err != nil {
				c.logger.Debug("ping failed", "user_id", conn.userID, "error", err)
				// Closing unblocks the read loop, which reports the loss
				_ = conn.ws.Close()
				return
			}
		}
	}
}

// Subscription is the handle for one registered handler.
type Subscription struct {
	channel  *Channel
	conn     *connection
	event    string
	id       uint64
	released sync.Once
}

// Event returns the event name the handler was registered for.
func (s *Subscription) Event() string {
	return s.event
}

// Release removes the handler. It does nothing if the handler was already
// released or replaced, or if its connection is gone.
func (s *Subscription) Release() {
	if s == nil {
		return
	}
	s.released.Do(func() {
		c := s.channel
		c.mu.Lock()
		defer c.mu.Unlock()

		if c.conn != s.conn {
			return
		}
		if entry, ok := s.conn.handlers[s.event]; ok && entry.id == s.id {
			delete(s.conn.handlers, s.event)
		}
	})
}
