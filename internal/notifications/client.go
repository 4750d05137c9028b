package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/comandaclub/boardsync/pkg/event"
)

const (
	// channelPath is the namespaced realtime endpoint on the backend.
	channelPath = "/notifications"

	maxReconnections   = 12
	baseReconnectDelay = time.Second
	maxReconnectDelay  = 30 * time.Second
	heartbeatInterval  = 25 * time.Second
	dedupCacheSize     = 100
	dialTimeout        = 10 * time.Second
)

// EventCallback receives every deduplicated envelope of a subscribed type.
type EventCallback func(event.Envelope)

// SubscriptionID is the opaque handle returned by On, used to
// unregister exactly that callback with Off.
type SubscriptionID string

// Stats is the connection statistics snapshot exposed to consumers.
type Stats struct {
	Connected            bool `json:"connected"`
	ReconnectionAttempts int  `json:"reconnectionAttempts"`
	ProcessedEvents      int  `json:"processedEvents"`
}

// TokenSource supplies a valid bearer token, refreshing it when needed.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// frame is the wire format of the channel: a named event with an
// optional JSON body.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// handshake is the first frame sent after dialing.
type handshake struct {
	Auth struct {
		Token string `json:"token"`
	} `json:"auth"`
}

// Client maintains the single shared connection to the backend's
// notifications channel: authenticated dial, heartbeat, bounded
// exponential reconnection, envelope validation, deduplication and
// fan-out to local subscribers. All connection state lives behind the
// client's mutex; the socket handle is never exposed.
type Client struct {
	tokens TokenSource
	logger aqm.Logger
	dialer *websocket.Dialer

	mu                   sync.Mutex
	conn                 *websocket.Conn
	url                  string
	connected            bool
	manualDisconnect     bool
	reconnectionAttempts int
	reconnectTimer       *time.Timer
	heartbeatStop        chan struct{}
	callbacks            map[string]map[SubscriptionID]EventCallback
	dedup                *dedupCache

	// writeMu serializes writes; the websocket allows one writer at a time.
	writeMu sync.Mutex
}

// NewClient creates a disconnected client.
func NewClient(tokens TokenSource, logger aqm.Logger) *Client {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Client{
		tokens:    tokens,
		logger:    logger,
		dialer:    &websocket.Dialer{HandshakeTimeout: dialTimeout},
		callbacks: make(map[string]map[SubscriptionID]EventCallback),
		dedup:     newDedupCache(dedupCacheSize),
	}
}

// Connect opens the shared connection. It is a no-op when already
// connected. A token failure aborts the attempt (the consumer must
// re-authenticate); a dial failure starts the reconnection schedule.
func (c *Client) Connect(ctx context.Context, rawURL string) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		c.logger.Info("already connected to notifications channel")
		return nil
	}
	c.manualDisconnect = false
	c.url = rawURL
	c.mu.Unlock()

	token, err := c.tokens.Token(ctx)
	if err != nil {
		c.logger.Errorf("cannot connect without valid token: %v", err)
		return fmt.Errorf("obtaining access token: %w", err)
	}

	if err := c.dial(ctx, token); err != nil {
		c.logger.Errorf("initial connection failed: %v", err)
		c.scheduleReconnect()
		return err
	}
	return nil
}

func (c *Client) dial(ctx context.Context, token string) error {
	endpoint, err := websocketURL(c.currentURL())
	if err != nil {
		return err
	}

	conn, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", endpoint, err)
	}

	var hs handshake
	hs.Auth.Token = token
	if err := conn.WriteJSON(hs); err != nil {
		conn.Close()
		return fmt.Errorf("sending auth handshake: %w", err)
	}

	stop := make(chan struct{})

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.reconnectionAttempts = 0
	c.heartbeatStop = stop
	c.mu.Unlock()

	go c.readLoop(conn)
	go c.heartbeat(stop)

	c.logger.Info("connected to notifications channel", "url", endpoint)
	return nil
}

func (c *Client) currentURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

// websocketURL turns the configured backend URL into the ws endpoint of
// the notifications namespace.
func websocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid channel url %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported channel scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + channelPath
	return u.String(), nil
}

// Disconnect tears the connection down and suppresses any further
// reconnection until the next Connect. Timers are stopped before the
// socket is released so no stale timer can touch a freed handle.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.manualDisconnect = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	stop := c.heartbeatStop
	c.heartbeatStop = nil
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if conn != nil {
		conn.Close()
	}
	c.logger.Info("disconnected from notifications channel")
}

// On registers a callback for an event type and returns the handle that
// removes it again. Multiple callbacks per type are supported.
func (c *Client) On(eventType string, cb EventCallback) SubscriptionID {
	id := SubscriptionID(uuid.NewString())
	c.mu.Lock()
	if c.callbacks[eventType] == nil {
		c.callbacks[eventType] = make(map[SubscriptionID]EventCallback)
	}
	c.callbacks[eventType][id] = cb
	c.mu.Unlock()
	return id
}

// Off removes exactly the callback registered under id. Unknown handles
// are ignored.
func (c *Client) Off(eventType string, id SubscriptionID) {
	c.mu.Lock()
	if set, ok := c.callbacks[eventType]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(c.callbacks, eventType)
		}
	}
	c.mu.Unlock()
}

// JoinBusinessRoom asks the server to scope events to one business.
// A no-op while disconnected; room membership is re-established by the
// consumer after reconnects.
func (c *Client) JoinBusinessRoom(id int) {
	if !c.isConnected() {
		c.logger.Info("cannot join business room, not connected", "business_id", id)
		return
	}
	if err := c.emit(event.EmitJoinBusinessRoom, event.JoinBusinessRoomPayload{IDNegocio: id}); err != nil {
		c.logger.Errorf("failed to join business room %d: %v", id, err)
		return
	}
	c.logger.Info("joining business room", "business_id", id)
}

// JoinOrderRoom asks the server for events about a single order.
func (c *Client) JoinOrderRoom(id int) {
	if !c.isConnected() {
		c.logger.Info("cannot join order room, not connected", "order_id", id)
		return
	}
	if err := c.emit(event.EmitJoinOrderRoom, event.JoinOrderRoomPayload{IDPedido: id}); err != nil {
		c.logger.Errorf("failed to join order room %d: %v", id, err)
		return
	}
	c.logger.Info("joining order room", "order_id", id)
}

// Stats returns the connection statistics snapshot.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Connected:            c.connected,
		ReconnectionAttempts: c.reconnectionAttempts,
		ProcessedEvents:      c.dedup.Len(),
	}
}

func (c *Client) isConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) emit(eventName string, payload interface{}) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}

	f := frame{Event: eventName}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding %s payload: %w", eventName, err)
		}
		f.Data = data
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(f)
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDrop(conn, err)
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.Info("unreadable frame, discarding", "error", err)
			continue
		}
		c.handleFrame(f)
	}
}

func (c *Client) handleFrame(f frame) {
	switch f.Event {
	case event.TypeConnected:
		c.logger.Info("server confirmed connection")
	case event.TypeJoinedRoom:
		c.logger.Info("joined room", "data", string(f.Data))
	case "error":
		c.logger.Errorf("server error: %s", string(f.Data))
	case event.TypeOrderCreated, event.TypeOrderStatusChanged, event.TypeRoomClosing:
		var env event.Envelope
		if err := json.Unmarshal(f.Data, &env); err != nil {
			c.logger.Info("invalid event structure, discarding", "event", f.Event, "error", err)
			return
		}
		c.processEnvelope(f.Event, env)
		if f.Event == event.TypeRoomClosing {
			c.logger.Info("room closing, disconnecting")
			c.Disconnect()
		}
	default:
		c.logger.Debug("ignoring unknown event", "event", f.Event)
	}
}

// processEnvelope validates, deduplicates and dispatches one envelope.
// Each subscriber callback runs isolated: a panic in one is recovered
// and logged without skipping its siblings.
func (c *Client) processEnvelope(eventType string, env event.Envelope) {
	if !env.Valid() {
		c.logger.Info("invalid event structure, discarding", "event", eventType)
		return
	}

	c.mu.Lock()
	fresh := c.dedup.Remember(env.EventID)
	var cbs []EventCallback
	if fresh {
		// Copy before iterating so Off during dispatch cannot race the map.
		for _, cb := range c.callbacks[eventType] {
			cbs = append(cbs, cb)
		}
	}
	c.mu.Unlock()

	if !fresh {
		c.logger.Debug("event already processed, skipping", "event_id", env.EventID)
		return
	}

	c.logger.Debug("processing event", "event", eventType, "event_id", env.EventID)
	for _, cb := range cbs {
		c.safeDispatch(eventType, cb, env)
	}
}

func (c *Client) safeDispatch(eventType string, cb EventCallback, env event.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorf("subscriber panic for %s: %v", eventType, r)
		}
	}()
	cb(env)
}

// handleDrop runs when the read loop exits. Manual disconnects are
// final; anything else enters the reconnection schedule.
func (c *Client) handleDrop(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		// A stale read loop from a connection already replaced.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.connected = false
	manual := c.manualDisconnect
	stop := c.heartbeatStop
	c.heartbeatStop = nil
	c.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if manual {
		return
	}

	c.logger.Info("connection dropped", "error", err)
	c.scheduleReconnect()
}

// scheduleReconnect arms the next reconnection attempt, or gives up
// after the budget is spent. Each retry refreshes the token first.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.manualDisconnect {
		c.mu.Unlock()
		return
	}
	if c.reconnectionAttempts >= maxReconnections {
		c.mu.Unlock()
		c.handleMaxReconnections()
		return
	}
	c.reconnectionAttempts++
	attempt := c.reconnectionAttempts
	delay := reconnectDelay(attempt)
	c.reconnectTimer = time.AfterFunc(delay, c.attemptReconnect)
	c.mu.Unlock()

	c.logger.Infof("reconnection attempt %d/%d in %s", attempt, maxReconnections, delay)
}

// reconnectDelay is the backoff schedule: 1s, 2s, 4s, ... capped at 30s.
func reconnectDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := baseReconnectDelay << (attempt - 1)
	if delay <= 0 || delay > maxReconnectDelay {
		return maxReconnectDelay
	}
	return delay
}

func (c *Client) attemptReconnect() {
	c.mu.Lock()
	if c.manualDisconnect || c.connected {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	token, err := c.tokens.Token(ctx)
	if err != nil {
		c.logger.Errorf("token refresh failed during reconnect: %v", err)
		c.scheduleReconnect()
		return
	}

	if err := c.dial(ctx, token); err != nil {
		c.logger.Errorf("reconnect failed: %v", err)
		c.scheduleReconnect()
		return
	}
}

// handleMaxReconnections dispatches the synthetic terminal envelope
// through the normal path so subscribers learn the connection is gone
// for good, then force-disconnects.
func (c *Client) handleMaxReconnections() {
	c.mu.Lock()
	attempts := c.reconnectionAttempts
	c.mu.Unlock()

	c.logger.Error("maximum reconnection attempts reached")

	now := time.Now().UnixMilli()
	payload, _ := json.Marshal(event.MaxReconnectionsPayload{
		Message:  "Connection lost. Please reload the page.",
		Attempts: attempts,
	})
	c.processEnvelope(event.TypeMaxReconnections, event.Envelope{
		EventID:   fmt.Sprintf("max-reconnect-%d", now),
		Type:      event.TypeMaxReconnections,
		Timestamp: now,
		Payload:   payload,
	})

	c.Disconnect()
}

// heartbeat emits an application-level ping while connected; it is a
// liveness probe only, nothing reads the answer.
func (c *Client) heartbeat(stop chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.emit(event.EmitPing, nil); err != nil {
				c.logger.Debug("heartbeat ping failed", "error", err)
			}
		}
	}
}
