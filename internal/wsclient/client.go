// Package wsclient maintains the single logical WebSocket connection to the
// tracking backend: lifecycle state, heartbeat latency probing, capped
// exponential reconnect backoff, an order-preserving outbound queue, and
// typed fan-out of inbound messages to registered handlers.
package wsclient

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ajisai-dev/multicam-monitor/internal/logger"
	"github.com/ajisai-dev/multicam-monitor/internal/metrics"
	"github.com/ajisai-dev/multicam-monitor/pkg/types"
)

// Latency thresholds for the connection-quality tiers.
const (
	qualityExcellentBelow = 50 * time.Millisecond
	qualityGoodBelow      = 150 * time.Millisecond
	qualityPoorBelow      = 400 * time.Millisecond
)

// Options configures a Client.
type Options struct {
	URL                  string
	HeartbeatInterval    time.Duration
	ReconnectBase        time.Duration
	ReconnectMaxDelay    time.Duration
	ReconnectMaxAttempts int
	// Dialer may be overridden in tests; nil uses the default dialer.
	Dialer *websocket.Dialer
}

// Client is an explicitly constructed WebSocket client. Lifecycle is owned
// by the caller through Start and Stop.
type Client struct {
	opts    Options
	metrics *metrics.Metrics

	mu         sync.Mutex
	conn       *websocket.Conn
	status     types.ConnectionStatus
	quality    types.ConnectionQuality
	lastRTT    time.Duration
	attempt    int
	pending    []types.Envelope
	heartbeats map[string]time.Time
	reconnect  *time.Timer
	stop       chan struct{}
	stopped    bool

	// writeMu serializes data writes; the connection supports only one
	// concurrent writer.
	writeMu sync.Mutex

	dispatcher *dispatcher
}

// New creates a Client. metrics may be nil (tests).
func New(opts Options, m *metrics.Metrics) *Client {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 10 * time.Second
	}
	if opts.ReconnectBase <= 0 {
		opts.ReconnectBase = time.Second
	}
	if opts.ReconnectMaxDelay <= 0 {
		opts.ReconnectMaxDelay = 30 * time.Second
	}
	if opts.ReconnectMaxAttempts <= 0 {
		opts.ReconnectMaxAttempts = 10
	}
	return &Client{
		opts:       opts,
		metrics:    m,
		status:     types.StatusDisconnected,
		quality:    types.QualityCritical,
		heartbeats: make(map[string]time.Time),
		stop:       make(chan struct{}),
		dispatcher: newDispatcher(m),
	}
}

// Start begins connecting. It returns immediately; connection progress is
// observable through Status.
func (c *Client) Start() {
	go c.connect()
}

// Stop closes the connection and cancels any scheduled reconnect. The client
// cannot be restarted afterwards.
func (c *Client) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	close(c.stop)
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	conn := c.conn
	c.conn = nil
	c.status = types.StatusDisconnected
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client shutdown"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
}

// Status returns the connection state and its latency-derived quality tier.
func (c *Client) Status() (types.ConnectionStatus, types.ConnectionQuality) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.quality
}

// LastRTT returns the most recent heartbeat round-trip time.
func (c *Client) LastRTT() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRTT
}

// OnMessage registers a handler for one message type. Handlers for a type
// run in registration order.
func (c *Client) OnMessage(msgType string, h Handler) Subscription {
	return c.dispatcher.subscribe(msgType, h)
}

// OffMessage removes a previously registered handler by its subscription.
func (c *Client) OffMessage(sub Subscription) {
	c.dispatcher.unsubscribe(sub)
}

// Send delivers an envelope to the backend. While disconnected the message
// is queued and flushed in order on reconnection (at-least-once, no
// deduplication).
func (c *Client) Send(env types.Envelope) error {
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now().UTC()
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return fmt.Errorf("client is stopped")
	}
	conn := c.conn
	if conn == nil {
		c.pending = append(c.pending, env)
		depth := len(c.pending)
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.QueueDepth.Store(uint64(depth))
		}
		logger.Debug("WSClient", "queued %s message while disconnected (depth %d)", env.Type, depth)
		return nil
	}
	c.mu.Unlock()

	return c.writeJSON(conn, env)
}

// writeJSON is the single choke point for data writes on a connection.
func (c *Client) writeJSON(conn *websocket.Conn, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(v)
}

func (c *Client) connect() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.status = types.StatusConnecting
	c.mu.Unlock()

	dialer := c.opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, _, err := dialer.Dial(c.opts.URL, nil)
	if err != nil {
		logger.Warn("WSClient", "dial %s failed: %v", c.opts.URL, err)
		if c.metrics != nil {
			c.metrics.ConnectionFailures.Add(1)
		}
		c.mu.Lock()
		c.status = types.StatusError
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.status = types.StatusConnected
	c.attempt = 0 // successful connection resets the retry budget
	c.mu.Unlock()

	logger.Info("WSClient", "connected to %s", c.opts.URL)
	c.flushPending(conn)

	go c.readLoop(conn)
	go c.heartbeatLoop(conn)
}

// flushPending writes the queued envelopes in order. A write failure puts
// the failed envelope and everything behind it back at the head of the
// queue, so the next successful connection delivers them (at-least-once).
func (c *Client) flushPending(conn *websocket.Conn) {
	c.mu.Lock()
	flush := c.pending
	c.pending = nil
	c.mu.Unlock()

	for i, env := range flush {
		if err := c.writeJSON(conn, env); err != nil {
			logger.Warn("WSClient", "flush of queued %s message failed, re-queueing %d: %v",
				env.Type, len(flush)-i, err)
			c.mu.Lock()
			c.pending = append(flush[i:], c.pending...)
			depth := len(c.pending)
			c.mu.Unlock()
			if c.metrics != nil {
				c.metrics.QueueDepth.Store(uint64(depth))
			}
			return
		}
	}
	if c.metrics != nil {
		c.metrics.QueueDepth.Store(0)
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(conn, err)
			return
		}
		if c.metrics != nil {
			c.metrics.MessagesDispatched.Add(1)
		}
		c.handleInbound(msgType, data)
	}
}

// handleInbound parses a raw frame and fans it out. Binary frames flow
// through the same dispatch path under the synthetic "binary" type.
func (c *Client) handleInbound(msgType int, data []byte) {
	var msg Message

	if msgType == websocket.BinaryMessage {
		msg = Message{
			Envelope: types.Envelope{Type: types.MessageBinary, Timestamp: time.Now().UTC()},
			Binary:   data,
		}
		if c.metrics != nil {
			c.metrics.FramesReceived.Add(1)
		}
	} else {
		var env types.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logger.Warn("WSClient", "discarding malformed message: %v", err)
			return
		}
		if env.Timestamp.IsZero() {
			env.Timestamp = time.Now().UTC()
		}
		msg = Message{Envelope: env}
	}

	if msg.Type == types.MessageHeartbeat {
		c.handleHeartbeatEcho(msg.Envelope)
	}

	c.dispatcher.dispatch(msg)
}

func (c *Client) handleDisconnect(conn *websocket.Conn, err error) {
	clean := websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != conn {
		// A newer connection already replaced this one.
		return
	}
	c.conn = nil
	_ = conn.Close()

	if c.stopped || clean {
		c.status = types.StatusDisconnected
		logger.Info("WSClient", "connection closed cleanly")
		return
	}

	logger.Warn("WSClient", "connection lost: %v", err)
	c.status = types.StatusError
	c.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the backoff timer for the next attempt.
// Callers hold c.mu.
func (c *Client) scheduleReconnectLocked() {
	if c.stopped {
		return
	}
	if c.attempt >= c.opts.ReconnectMaxAttempts {
		// Retry budget exhausted: terminal error state, manual restart only.
		logger.Error("WSClient", "giving up after %d reconnect attempts", c.attempt)
		c.status = types.StatusError
		return
	}

	delay := computeBackoff(c.opts.ReconnectBase, c.opts.ReconnectMaxDelay, c.attempt)
	c.attempt++
	if c.metrics != nil {
		c.metrics.Reconnects.Add(1)
	}
	logger.Info("WSClient", "reconnecting in %v (attempt %d/%d)", delay, c.attempt, c.opts.ReconnectMaxAttempts)

	c.reconnect = time.AfterFunc(delay, c.connect)
}

// computeBackoff returns base * 2^attempt capped at max.
func computeBackoff(base, max time.Duration, attempt int) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

func (c *Client) heartbeatLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.conn != conn {
				c.mu.Unlock()
				return
			}
			c.expireHeartbeatsLocked(time.Now())
			id := uuid.NewString()
			c.heartbeats[id] = time.Now()
			c.mu.Unlock()

			env := types.Envelope{
				Type:      types.MessageHeartbeat,
				Timestamp: time.Now().UTC(),
				ID:        id,
			}
			if err := c.writeJSON(conn, env); err != nil {
				logger.Debug("WSClient", "heartbeat write failed: %v", err)
				return
			}
		}
	}
}

// staleHeartbeatIntervals is how many heartbeat intervals an unanswered
// probe stays outstanding before it is discarded.
const staleHeartbeatIntervals = 3

// expireHeartbeatsLocked drops probes the server never echoed so the
// outstanding map stays bounded. Callers hold c.mu.
func (c *Client) expireHeartbeatsLocked(now time.Time) {
	cutoff := time.Duration(staleHeartbeatIntervals) * c.opts.HeartbeatInterval
	for id, sent := range c.heartbeats {
		if now.Sub(sent) > cutoff {
			delete(c.heartbeats, id)
		}
	}
}

// handleHeartbeatEcho resolves an outstanding heartbeat by ID and refreshes
// the latency-derived quality tier.
func (c *Client) handleHeartbeatEcho(env types.Envelope) {
	c.mu.Lock()
	sent, ok := c.heartbeats[env.ID]
	if ok {
		delete(c.heartbeats, env.ID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	rtt := time.Since(sent)
	quality := classifyLatency(rtt)

	c.mu.Lock()
	c.lastRTT = rtt
	c.quality = quality
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.UpdateHeartbeatLatency(rtt)
	}
	logger.Debug("WSClient", "heartbeat rtt=%v quality=%s", rtt, quality)
}

// classifyLatency maps a round-trip time onto the four quality tiers.
func classifyLatency(rtt time.Duration) types.ConnectionQuality {
	switch {
	case rtt < qualityExcellentBelow:
		return types.QualityExcellent
	case rtt < qualityGoodBelow:
		return types.QualityGood
	case rtt < qualityPoorBelow:
		return types.QualityPoor
	default:
		return types.QualityCritical
	}
}
