package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/robotlan-core/internal/infrastructure/config"
	"github.com/nerrad567/robotlan-core/internal/infrastructure/logging"
	"github.com/nerrad567/robotlan-core/internal/session"
)

// Message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// Event channels a client can subscribe to.
const (
	ChannelConnection = "robot.connection"
	ChannelStatus     = "robot.status"
	ChannelUnexpected = "robot.unexpected"
)

var knownChannels = []string{ChannelConnection, ChannelStatus, ChannelUnexpected}

const (
	// wsSendBufferSize is the per-client outbound queue. A client that
	// falls this far behind misses events.
	wsSendBufferSize = 256

	defaultPingInterval = 30 * time.Second
	defaultPongTimeout  = 10 * time.Second
)

// WSMessage is sent to clients. Requests from clients share its type and
// id fields.
type WSMessage struct {
	Type      string    `json:"type"`
	ID        string    `json:"id,omitempty"`
	EventType string    `json:"event_type,omitempty"`
	RobotID   string    `json:"robot_id,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
	Payload   any       `json:"payload,omitempty"`
}

type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe requests.
// Robots narrows delivery to the listed robot ids; empty means every robot.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
	Robots   []string `json:"robots,omitempty"`
}

// Hub fans session events out to WebSocket clients.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// WSClient is one WebSocket connection.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu            sync.RWMutex
	closed        bool
	subscriptions map[string]struct{}
	robots        map[string]struct{}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// corsMiddleware has already vetted the origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewHub creates a hub. Run must be called to close clients on shutdown.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

// Register adds a client.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// Unregister removes a client and closes its send queue.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	c.close()
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues an event for every client subscribed to channel and
// interested in robotID.
func (h *Hub) Broadcast(channel, robotID string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		RobotID:   robotID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("encoding websocket event failed", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if c.wants(channel, robotID) {
			c.trySend(data)
		}
	}
}

// Relay broadcasts events until events is closed or ctx ends.
func (h *Hub) Relay(ctx context.Context, events <-chan session.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if channel, payload := eventChannel(ev); channel != "" {
				h.Broadcast(channel, ev.RobotID(), payload)
			}
		}
	}
}

func eventChannel(ev session.Event) (string, any) {
	switch e := ev.(type) {
	case session.ConnectionChanged:
		return ChannelConnection, connectionView(e.State, e.Address, e.Time, e.Robot)
	case session.StatusChanged:
		return ChannelStatus, e
	case session.UnexpectedValue:
		return ChannelUnexpected, e
	default:
		return "", nil
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "request_id", requestID(r))
		return
	}

	c := &WSClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	s.hub.Register(c)

	go c.writePump(s.wsCfg)
	go c.readPump(s.wsCfg)
}

func wsTimings(cfg config.WebSocketConfig) (ping, pong time.Duration) {
	ping, pong = defaultPingInterval, defaultPongTimeout
	if cfg.PingInterval > 0 {
		ping = time.Duration(cfg.PingInterval) * time.Second
	}
	if cfg.PongTimeout > 0 {
		pong = time.Duration(cfg.PongTimeout) * time.Second
	}
	return ping, pong
}

func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	ping, pong := wsTimings(cfg)
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(ping + pong)) }

	if cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	}
	extend() //nolint:errcheck // Best-effort deadline
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		// Browsers do not always answer protocol pings, so any request
		// keeps the connection alive too.
		extend() //nolint:errcheck // Best-effort deadline
		c.handleRequest(data)
	}
}

func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	ping, pong := wsTimings(cfg)
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(pong)) //nolint:errcheck // Write error is checked
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // Best-effort close frame
				return
			}
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleRequest(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch req.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var sub WSSubscribePayload
		if len(req.Payload) == 0 || json.Unmarshal(req.Payload, &sub) != nil {
			c.sendError(req.ID, "invalid "+req.Type+" payload")
			return
		}
		if err := validateChannels(sub.Channels); err != nil {
			c.sendError(req.ID, err.Error())
			return
		}
		if req.Type == WSTypeSubscribe {
			c.subscribe(sub)
			c.hub.logger.Debug("websocket client subscribed", "channels", sub.Channels, "robots", sub.Robots)
			c.reply(req.ID, WSTypeResponse, map[string]any{"subscribed": sub.Channels, "robots": sub.Robots})
		} else {
			c.unsubscribe(sub.Channels)
			c.reply(req.ID, WSTypeResponse, map[string]any{"unsubscribed": sub.Channels})
		}
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	default:
		c.sendError(req.ID, "unknown message type: "+req.Type)
	}
}

func validateChannels(channels []string) error {
	if len(channels) == 0 {
		return errors.New("channels is required")
	}
	for _, ch := range channels {
		if !slices.Contains(knownChannels, ch) {
			return fmt.Errorf("unknown channel: %s", ch)
		}
	}
	return nil
}

// subscribe adds channels. A non-empty robot list replaces the filter.
func (c *WSClient) subscribe(sub WSSubscribePayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range sub.Channels {
		c.subscriptions[ch] = struct{}{}
	}
	if len(sub.Robots) > 0 {
		c.robots = make(map[string]struct{}, len(sub.Robots))
		for _, id := range sub.Robots {
			c.robots[id] = struct{}{}
		}
	}
}

// unsubscribe drops channels. The robot filter is cleared with the last one.
func (c *WSClient) unsubscribe(channels []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		delete(c.subscriptions, ch)
	}
	if len(c.subscriptions) == 0 {
		c.robots = nil
	}
}

func (c *WSClient) wants(channel, robotID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.subscriptions[channel]; !ok {
		return false
	}
	if len(c.robots) == 0 {
		return true
	}
	_, ok := c.robots[robotID]
	return ok
}

// trySend queues data without blocking. Full or closed queues drop it.
func (c *WSClient) trySend(data []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *WSClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(id, message string) {
	c.reply(id, WSTypeError, map[string]string{"message": message})
}
