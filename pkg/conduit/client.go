package conduit

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meridianhq/conduit/pkg/conduit/o11y"
)

// ErrMissingToken is returned by Connect when no authentication token is
// available from any source: explicit argument, TokenProvider, or a token
// remembered from an earlier connection.
var ErrMissingToken = errors.New("no authentication token available")

// SendResult reports how Send disposed of a message.
type SendResult int

const (
	// SendSent means the message was handed to the connection writer.
	SendSent SendResult = iota

	// SendQueued means the message was parked in the outbound queue and
	// will be flushed after the next successful connection.
	SendQueued

	// SendDropped means the message could not be serialized and was
	// discarded.
	SendDropped
)

func (r SendResult) String() string {
	switch r {
	case SendSent:
		return "sent"
	case SendQueued:
		return "queued"
	case SendDropped:
		return "dropped"
	default:
		return fmt.Sprintf("SendResult(%d)", int(r))
	}
}

// Client is a WebSocket transport client for the collaboration gateway. It
// presents one logical connection: physical connections come and go behind
// automatic reconnection, heartbeat-based dead connection detection, offline
// queueing, and room membership replay.
//
// Create a Client with NewClient().Build(). All methods are safe for
// concurrent use.
type Client struct {
	// Configuration (immutable after Build)
	url               string
	logger            *zap.Logger
	dialTimeout       time.Duration
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	initialDelay      time.Duration
	maxDelay          time.Duration
	backoffFactor     float64
	maxReconnects     int
	autoReconnect     bool
	writeChannelSize  int
	readLimit         int64
	tokenProvider     TokenProvider
	monitor           ClientMonitor
	metrics           *clientMetrics
	tracing           o11y.TracingProvider

	registry *listenerRegistry

	// Connection state, guarded by mu. generation increments on every
	// connection attempt and teardown; goroutines and timers carry the
	// generation they were started under and stand down when it has moved
	// on. This is what makes "no reconnect after Disconnect" hold even for
	// timers that have already fired.
	mu          sync.Mutex
	state       ConnectionState
	generation  uint64
	token       string
	conn        *websocket.Conn
	connCancel  context.CancelFunc
	writeCh     chan queuedFrame
	sessionID   string
	connectedAt time.Time
	attempts    int
	queue       *sendQueue
	rooms       *roomSet

	reconnectTimer *time.Timer
	ackTimer       *time.Timer

	// Listener notifications pending dispatch, guarded by mu. Transitions
	// append in order; a single flusher drains, so listeners observe state
	// changes in the order they happened even when transitions race.
	pending  []func()
	flushing bool
}

// Connect establishes the connection using the stored token or the
// TokenProvider. It is a no-op when already connecting or connected. The
// dial runs synchronously: on success the offline queue has been handed to
// the writer and room memberships replayed by the time Connect returns. On
// dial failure the error is returned and, with auto-reconnect enabled, a
// reconnection attempt is already scheduled.
func (c *Client) Connect(ctx context.Context) error {
	return c.connect(ctx, "")
}

// ConnectWithToken is Connect with an explicit token. The token is
// remembered for subsequent reconnections.
func (c *Client) ConnectWithToken(ctx context.Context, token string) error {
	return c.connect(ctx, token)
}

func (c *Client) connect(ctx context.Context, token string) error {
	c.mu.Lock()
	if token != "" {
		c.token = token
	}
	if c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		c.logger.Debug("Connect ignored, already connecting or connected")
		return nil
	}
	resolved := c.token
	c.mu.Unlock()

	// The provider outranks the stored token so refreshed credentials are
	// picked up; an explicit token outranks both.
	if token == "" && c.tokenProvider != nil {
		fresh, err := c.tokenProvider(ctx)
		switch {
		case err != nil && resolved == "":
			return fmt.Errorf("token provider: %w", err)
		case err != nil:
			c.logger.Warn("Token provider failed, reusing previous token", zap.Error(err))
		case fresh != "":
			c.mu.Lock()
			c.token = fresh
			c.mu.Unlock()
			resolved = fresh
		}
	}
	if resolved == "" {
		return ErrMissingToken
	}

	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	c.generation++
	gen := c.generation
	c.stopReconnectTimerLocked()
	c.setStateLocked(StateConnecting, nil)
	c.mu.Unlock()
	c.flushNotifications()

	return c.dial(ctx, gen, resolved)
}

// dial performs one connection attempt. Failures route through the same
// loss handling as an established connection dropping, so reconnection
// scheduling works identically for both.
func (c *Client) dial(ctx context.Context, gen uint64, token string) error {
	wsURL, err := tokenURL(c.url, token)
	if err != nil {
		c.handleConnectionLoss(gen, err)
		return err
	}

	var span o11y.Span
	if c.tracing != nil {
		ctx, span = c.tracing.StartSpan(ctx, "conduit.connect")
		span.SetAttributes(o11y.Label{Key: "url", Value: c.url})
		defer span.End()
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, wsURL, nil)
	if err != nil {
		err = fmt.Errorf("dial %s: %w", c.url, err)
		if span != nil {
			span.SetStatus(o11y.SpanStatusError, err.Error())
		}
		c.metrics.RecordConnectFailure(context.Background())
		c.handleConnectionLoss(gen, err)
		return err
	}
	conn.SetReadLimit(c.readLimit)
	if span != nil {
		span.SetStatus(o11y.SpanStatusOK, "")
	}

	c.open(gen, conn)
	return nil
}

// open installs a freshly dialed connection and runs the on-open sequence:
// reset the reconnect counter, start the writer and heartbeat, flush the
// offline queue, replay room memberships, then notify listeners.
func (c *Client) open(gen uint64, conn *websocket.Conn) {
	connCtx, connCancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.generation != gen {
		// Disconnect (or a competing connect) superseded this dial.
		c.mu.Unlock()
		connCancel()
		conn.Close(websocket.StatusNormalClosure, "superseded")
		return
	}
	c.conn = conn
	c.connCancel = connCancel
	c.writeCh = make(chan queuedFrame, c.writeChannelSize)
	writeCh := c.writeCh
	c.sessionID = uuid.NewString()
	sessionID := c.sessionID
	c.connectedAt = time.Now()
	c.attempts = 0

	var frames []queuedFrame
	for {
		frame, ok := c.queue.pop()
		if !ok {
			break
		}
		frames = append(frames, frame)
	}
	rooms := c.rooms.list()

	c.setStateLocked(StateConnected, nil)
	c.pending = append(c.pending, func() {
		c.registry.dispatch(Event{Type: TypeConnected, Data: map[string]any{"session_id": sessionID}})
		if c.monitor != nil {
			c.monitor.OnConnect(context.Background(), c)
		}
	})
	c.mu.Unlock()

	go c.writeLoop(gen, conn, connCtx, writeCh)
	go c.heartbeatLoop(gen, connCtx, writeCh)

	// Queued messages flush ahead of room rejoins, and both are on the
	// write channel before listeners hear about the connection, so anything
	// sent from a "connected" callback lands after them on the wire.
	for _, frame := range frames {
		select {
		case writeCh <- frame:
		case <-connCtx.Done():
			return
		}
	}
	for _, roomID := range rooms {
		data, err := encodeFrame(TypeJoinRoom, roomData(roomID))
		if err != nil {
			continue
		}
		select {
		case writeCh <- queuedFrame{msgType: TypeJoinRoom, data: data}:
		case <-connCtx.Done():
			return
		}
	}

	c.logger.Info("Connected",
		zap.String("url", c.url),
		zap.String("session_id", sessionID),
		zap.Int("flushed", len(frames)),
		zap.Int("rooms", len(rooms)))
	c.metrics.RecordConnect(context.Background())
	c.metrics.SetQueueDepth(context.Background(), 0)

	c.flushNotifications()

	// Reading starts only after the connected notifications went out, so an
	// inbound message can never be dispatched ahead of them.
	go c.readLoop(gen, conn, connCtx)
}

// writeLoop is the single writer for a connection. All outbound frames
// funnel through writeCh, so wire order matches enqueue order.
func (c *Client) writeLoop(gen uint64, conn *websocket.Conn, ctx context.Context, writeCh <-chan queuedFrame) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-writeCh:
			if err := conn.Write(ctx, websocket.MessageText, frame.data); err != nil {
				if ctx.Err() == nil {
					c.logger.Error("Write failed",
						zap.String("type", frame.msgType), zap.Error(err))
					c.handleConnectionLoss(gen, err)
				}
				return
			}
			c.metrics.RecordMessageSent(context.Background(), frame.msgType)
		}
	}
}

func (c *Client) readLoop(gen uint64, conn *websocket.Conn, ctx context.Context) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.handleConnectionLoss(gen, err)
			}
			return
		}
		c.handleFrame(gen, data)
	}
}

// handleFrame decodes one inbound frame and routes it. Malformed frames are
// logged and discarded without disturbing the connection.
func (c *Client) handleFrame(gen uint64, data []byte) {
	event, ok := decodeFrame(data)
	if !ok {
		c.logger.Debug("Discarding malformed frame", zap.Int("bytes", len(data)))
		c.metrics.RecordFrameDiscarded(context.Background())
		return
	}

	// Heartbeat acknowledgements clear the pending deadline and are not
	// forwarded to listeners. A late ack, after the deadline fired or the
	// connection turned over, is a no-op.
	if event.Type == TypeHeartbeatAck {
		c.mu.Lock()
		if c.generation == gen && c.ackTimer != nil {
			c.ackTimer.Stop()
			c.ackTimer = nil
		}
		c.mu.Unlock()
		return
	}

	c.metrics.RecordMessageReceived(context.Background(), event.Type)
	c.registry.dispatch(event)
}

// heartbeatLoop sends application-level heartbeats while the connection is
// up. Each send arms a one-shot acknowledgement deadline; if it expires the
// connection is forced closed and the usual abnormal-close handling takes
// over.
func (c *Client) heartbeatLoop(gen uint64, ctx context.Context, writeCh chan<- queuedFrame) {
	ticker := time.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sendHeartbeat(gen, writeCh)
		}
	}
}

func (c *Client) sendHeartbeat(gen uint64, writeCh chan<- queuedFrame) {
	data, err := encodeFrame(TypeHeartbeat, nil)
	if err != nil {
		return
	}

	// Heartbeats never queue. If the writer is backed up, skip this round.
	select {
	case writeCh <- queuedFrame{msgType: TypeHeartbeat, data: data}:
	default:
		c.logger.Debug("Write channel full, skipping heartbeat")
		return
	}

	c.mu.Lock()
	if c.generation == gen && c.ackTimer == nil {
		c.ackTimer = time.AfterFunc(c.heartbeatTimeout, func() {
			c.onHeartbeatTimeout(gen)
		})
	}
	c.mu.Unlock()

	c.metrics.RecordHeartbeatSent(context.Background())
}

func (c *Client) onHeartbeatTimeout(gen uint64) {
	c.mu.Lock()
	if c.generation != gen || c.ackTimer == nil {
		c.mu.Unlock()
		return
	}
	c.ackTimer = nil
	conn := c.conn
	c.mu.Unlock()

	c.logger.Warn("Heartbeat acknowledgement missed, closing connection",
		zap.Duration("timeout", c.heartbeatTimeout))
	c.metrics.RecordHeartbeatTimeout(context.Background())

	if conn != nil {
		// Forcing the close fails the read loop, which drives the normal
		// abnormal-close handling and reconnection.
		conn.Close(StatusHeartbeatTimeout, "heartbeat timeout")
	}
}

// handleConnectionLoss tears down the current connection and either
// schedules a reconnection attempt or parks the client in StateClosed. Only
// the first caller for a generation proceeds; late calls from the other
// loop or from stale timers are ignored.
func (c *Client) handleConnectionLoss(gen uint64, err error) {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return
	}
	c.generation++
	conn := c.teardownLocked()

	var duration time.Duration
	if !c.connectedAt.IsZero() {
		duration = time.Since(c.connectedAt)
		c.connectedAt = time.Time{}
	}

	code := websocket.CloseStatus(err)
	reason := ""
	var closeErr websocket.CloseError
	if errors.As(err, &closeErr) {
		reason = closeErr.Reason
	}

	var attempt int
	var delay time.Duration
	reconnecting := c.autoReconnect && c.attempts < c.maxReconnects
	if reconnecting {
		c.attempts++
		attempt = c.attempts
		delay = reconnectDelay(attempt, c.initialDelay, c.maxDelay, c.backoffFactor)
		nextGen := c.generation
		c.reconnectTimer = time.AfterFunc(delay, func() {
			c.reconnect(nextGen)
		})
		c.setStateLocked(StateReconnecting, err)
	} else {
		c.setStateLocked(StateClosed, err)
	}

	c.pending = append(c.pending, func() {
		if code == -1 {
			// Not a close frame: a genuine transport error. Surface it
			// before the disconnect notification, states stay untouched.
			c.registry.dispatch(Event{Type: TypeError, Data: map[string]any{"error": err.Error()}})
		}
		c.registry.dispatch(Event{Type: TypeDisconnected, Data: map[string]any{
			"code":   int(code),
			"reason": reason,
		}})
		if c.monitor != nil {
			c.monitor.OnDisconnect(context.Background(), c, err)
		}
	})
	if reconnecting {
		c.pending = append(c.pending, func() {
			if c.monitor != nil {
				c.monitor.OnReconnectScheduled(context.Background(), c, attempt, delay)
			}
		})
	}
	c.mu.Unlock()

	if reconnecting {
		c.logger.Warn("Connection lost, reconnect scheduled",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay))
		c.metrics.RecordReconnectScheduled(context.Background(), attempt)
	} else if c.autoReconnect {
		c.logger.Error("Reconnect attempts exhausted, giving up",
			zap.Error(err),
			zap.Int("attempts", c.maxReconnects))
	} else {
		c.logger.Warn("Connection lost", zap.Error(err))
	}

	if duration > 0 {
		c.metrics.RecordDisconnect(context.Background(), duration)
	}
	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "teardown")
	}

	c.flushNotifications()
}

// reconnect runs when a scheduled backoff delay elapses.
func (c *Client) reconnect(gen uint64) {
	c.mu.Lock()
	if c.generation != gen || c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = nil
	c.generation++
	nextGen := c.generation
	attempt := c.attempts
	token := c.token
	c.setStateLocked(StateConnecting, nil)
	c.mu.Unlock()
	c.flushNotifications()

	ctx := context.Background()
	if c.tokenProvider != nil {
		if fresh, err := c.tokenProvider(ctx); err != nil {
			c.logger.Warn("Token provider failed, reusing previous token", zap.Error(err))
		} else if fresh != "" {
			c.mu.Lock()
			c.token = fresh
			c.mu.Unlock()
			token = fresh
		}
	}

	c.logger.Info("Reconnecting", zap.String("url", c.url), zap.Int("attempt", attempt))
	_ = c.dial(ctx, nextGen, token)
}

// Disconnect closes the connection and stops all reconnection activity,
// including attempts already scheduled. It is safe to call from any state
// and always leaves the client in StateClosed with an empty room membership
// set. Messages still in the outbound queue are kept and flush if the
// caller connects again.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.generation++
	conn := c.teardownLocked()
	c.attempts = 0
	c.rooms.clear()
	if c.state == StateClosed {
		c.mu.Unlock()
		if conn != nil {
			conn.Close(websocket.StatusNormalClosure, "client disconnect")
		}
		return
	}
	var duration time.Duration
	if !c.connectedAt.IsZero() {
		duration = time.Since(c.connectedAt)
		c.connectedAt = time.Time{}
	}
	c.setStateLocked(StateClosed, nil)
	c.pending = append(c.pending, func() {
		if c.monitor != nil {
			c.monitor.OnDisconnect(context.Background(), c, nil)
		}
	})
	c.mu.Unlock()

	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	c.logger.Info("Disconnected")
	if duration > 0 {
		c.metrics.RecordDisconnect(context.Background(), duration)
	}
	c.metrics.SetJoinedRooms(context.Background(), 0)

	c.flushNotifications()
}

// Send serializes the message and hands it to the connection writer, or
// parks it in the bounded outbound queue when not connected (or when the
// writer is backed up). It never blocks on the network and never fails:
// the result reports sent, queued, or dropped as unserializable. When the
// queue is full the oldest message is evicted to admit the newest.
func (c *Client) Send(msgType string, payload any) SendResult {
	data, err := encodeFrame(msgType, payload)
	if err != nil {
		c.logger.Warn("Dropping unserializable message",
			zap.String("type", msgType), zap.Error(err))
		c.metrics.RecordMessageDropped(context.Background(), msgType)
		c.registry.dispatch(Event{Type: TypeError, Data: map[string]any{
			"error": fmt.Sprintf("serialize %s: %v", msgType, err),
		}})
		return SendDropped
	}
	frame := queuedFrame{msgType: msgType, data: data}

	c.mu.Lock()
	if c.state == StateConnected && c.writeCh != nil {
		select {
		case c.writeCh <- frame:
			c.mu.Unlock()
			return SendSent
		default:
			// Writer backed up: treat like a transmission failure and fall
			// through to the queue.
		}
	}
	evicted, full := c.queue.push(frame)
	depth := c.queue.len()
	c.mu.Unlock()

	if full {
		c.logger.Debug("Outbound queue full, evicting oldest message",
			zap.String("evicted_type", evicted.msgType))
		c.metrics.RecordQueueEviction(context.Background())
	}
	c.metrics.RecordMessageQueued(context.Background(), msgType)
	c.metrics.SetQueueDepth(context.Background(), depth)
	return SendQueued
}

// JoinRoom adds roomID to the membership set and, when connected, sends a
// join request. Membership is remembered across reconnects: every new
// connection replays one join per room. Join requests never enter the
// outbound queue; the membership set is the replay mechanism.
func (c *Client) JoinRoom(roomID string) {
	if roomID == "" {
		return
	}
	c.mu.Lock()
	if !c.rooms.add(roomID) {
		c.mu.Unlock()
		return
	}
	count := c.rooms.len()
	var writeCh chan queuedFrame
	if c.state == StateConnected {
		writeCh = c.writeCh
	}
	c.mu.Unlock()

	if writeCh != nil {
		c.sendRoomFrame(writeCh, TypeJoinRoom, roomID)
	}
	c.logger.Debug("Joined room", zap.String("room", roomID))
	c.metrics.SetJoinedRooms(context.Background(), count)
	if c.monitor != nil {
		c.monitor.OnRoomJoin(context.Background(), c, roomID)
	}
}

// LeaveRoom removes roomID from the membership set and, when connected,
// sends a leave request. The room is not rejoined on reconnect.
func (c *Client) LeaveRoom(roomID string) {
	c.mu.Lock()
	if !c.rooms.remove(roomID) {
		c.mu.Unlock()
		return
	}
	count := c.rooms.len()
	var writeCh chan queuedFrame
	if c.state == StateConnected {
		writeCh = c.writeCh
	}
	c.mu.Unlock()

	if writeCh != nil {
		c.sendRoomFrame(writeCh, TypeLeaveRoom, roomID)
	}
	c.logger.Debug("Left room", zap.String("room", roomID))
	c.metrics.SetJoinedRooms(context.Background(), count)
	if c.monitor != nil {
		c.monitor.OnRoomLeave(context.Background(), c, roomID)
	}
}

func (c *Client) sendRoomFrame(writeCh chan<- queuedFrame, msgType, roomID string) {
	data, err := encodeFrame(msgType, roomData(roomID))
	if err != nil {
		return
	}
	select {
	case writeCh <- queuedFrame{msgType: msgType, data: data}:
	default:
		// The membership set already reflects the change; the next
		// connection replays it.
		c.logger.Debug("Write channel full, room request not sent",
			zap.String("type", msgType), zap.String("room", roomID))
	}
}

func roomData(roomID string) map[string]any {
	return map[string]any{"room_id": roomID}
}

// On registers fn for events whose type matches key: an exact event type,
// the "*" wildcard for all events, or an MQTT-style pattern with "+"/"#"
// wildcards (e.g. "task/+/updated"). The returned subscription deregisters
// via Cancel or Off. Listeners also receive the synthetic lifecycle events
// (TypeConnected, TypeDisconnected, TypeError).
func (c *Client) On(key string, fn Listener) *Subscription {
	return c.registry.on(key, fn)
}

// OnStateChange registers fn for connection state transitions.
func (c *Client) OnStateChange(fn StateListener) *Subscription {
	return c.registry.onStateChange(fn)
}

// Off deregisters a subscription returned by On or OnStateChange.
func (c *Client) Off(sub *Subscription) {
	c.registry.off(sub)
}

// OffAll removes every registered listener, event and state alike.
func (c *Client) OffAll() {
	c.registry.clear()
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the identifier assigned to the current connection, or
// "" when not connected. Every successful connection gets a fresh id.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Rooms returns the membership set in join order.
func (c *Client) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rooms.list()
}

// QueueLen returns the number of messages waiting in the outbound queue.
func (c *Client) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.len()
}

// setStateLocked transitions to the given state and enqueues the state
// change notification. Callers must hold mu.
func (c *Client) setStateLocked(to ConnectionState, err error) {
	if c.state == to {
		return
	}
	change := StateChange{From: c.state, To: to, Err: err}
	c.state = to
	c.pending = append(c.pending, func() {
		c.registry.dispatchState(change)
	})
}

// teardownLocked cancels the connection context and timers and detaches the
// connection, returning it so the caller can close it outside the lock.
// Callers must hold mu.
func (c *Client) teardownLocked() *websocket.Conn {
	if c.connCancel != nil {
		c.connCancel()
		c.connCancel = nil
	}
	c.stopReconnectTimerLocked()
	if c.ackTimer != nil {
		c.ackTimer.Stop()
		c.ackTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.writeCh = nil
	c.sessionID = ""
	return conn
}

func (c *Client) stopReconnectTimerLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

// flushNotifications drains pending listener notifications. Only one
// goroutine flushes at a time and no lock is held while listeners run, so
// callbacks may call back into the client freely.
func (c *Client) flushNotifications() {
	c.mu.Lock()
	if c.flushing {
		c.mu.Unlock()
		return
	}
	c.flushing = true
	for len(c.pending) > 0 {
		batch := c.pending
		c.pending = nil
		c.mu.Unlock()
		for _, fn := range batch {
			fn()
		}
		c.mu.Lock()
	}
	c.flushing = false
	c.mu.Unlock()
}

// tokenURL returns rawURL with the token attached as the "token" query
// parameter, the credential form the gateway expects.
func tokenURL(rawURL, token string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
