package conduit

import (
	"context"
	"strconv"
	"time"

	"github.com/meridianhq/conduit/pkg/conduit/o11y"
)

// clientMetrics holds the metric instruments a Client reports into. All
// methods are safe to call on a nil receiver, which is what you get when no
// MetricsProvider is configured.
type clientMetrics struct {
	// Connection metrics
	connects            o11y.Counter   // Successful connection establishments
	connectFailures     o11y.Counter   // Dial failures
	connectionDuration  o11y.Histogram // Lifetime of each connection
	reconnectsScheduled o11y.Counter   // Reconnection attempts scheduled

	// Message metrics
	messagesSent     o11y.Counter // Frames written to the connection
	messagesReceived o11y.Counter // Frames dispatched to listeners
	messagesQueued   o11y.Counter // Messages parked in the outbound queue
	messagesDropped  o11y.Counter // Unserializable messages discarded
	framesDiscarded  o11y.Counter // Malformed inbound frames discarded
	queueEvictions   o11y.Counter // Oldest-message evictions from a full queue
	queueDepth       o11y.Gauge   // Current outbound queue depth

	// Health metrics
	heartbeatsSent    o11y.Counter // Heartbeat frames sent
	heartbeatTimeouts o11y.Counter // Missed heartbeat acknowledgements
	joinedRooms       o11y.Gauge   // Current room membership count
}

// newClientMetrics creates the client's metric instruments using the
// provided MetricsProvider. If the provider is nil, returns nil (no metrics
// will be collected).
func newClientMetrics(provider o11y.MetricsProvider) *clientMetrics {
	if provider == nil {
		return nil
	}

	return &clientMetrics{
		connects:            provider.Counter("conduit_connects_total"),
		connectFailures:     provider.Counter("conduit_connect_failures_total"),
		connectionDuration:  provider.Histogram("conduit_connection_duration_seconds"),
		reconnectsScheduled: provider.Counter("conduit_reconnects_scheduled_total"),

		messagesSent:     provider.Counter("conduit_messages_sent_total"),
		messagesReceived: provider.Counter("conduit_messages_received_total"),
		messagesQueued:   provider.Counter("conduit_messages_queued_total"),
		messagesDropped:  provider.Counter("conduit_messages_dropped_total"),
		framesDiscarded:  provider.Counter("conduit_frames_discarded_total"),
		queueEvictions:   provider.Counter("conduit_queue_evictions_total"),
		queueDepth:       provider.Gauge("conduit_queue_depth"),

		heartbeatsSent:    provider.Counter("conduit_heartbeats_sent_total"),
		heartbeatTimeouts: provider.Counter("conduit_heartbeat_timeouts_total"),
		joinedRooms:       provider.Gauge("conduit_joined_rooms"),
	}
}

// RecordConnect records a successful connection establishment.
func (m *clientMetrics) RecordConnect(ctx context.Context) {
	if m == nil {
		return
	}
	m.connects.Add(ctx, 1)
}

// RecordConnectFailure records a failed dial attempt.
func (m *clientMetrics) RecordConnectFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.connectFailures.Add(ctx, 1)
}

// RecordDisconnect records the end of a connection and its duration.
func (m *clientMetrics) RecordDisconnect(ctx context.Context, duration time.Duration) {
	if m == nil {
		return
	}
	m.connectionDuration.Record(ctx, duration.Seconds())
}

// RecordReconnectScheduled records that a reconnection attempt was scheduled.
func (m *clientMetrics) RecordReconnectScheduled(ctx context.Context, attempt int) {
	if m == nil {
		return
	}
	m.reconnectsScheduled.Add(ctx, 1, o11y.Label{Key: "attempt", Value: strconv.Itoa(attempt)})
}

// RecordMessageSent records a frame written to the connection.
func (m *clientMetrics) RecordMessageSent(ctx context.Context, msgType string) {
	if m == nil {
		return
	}
	m.messagesSent.Add(ctx, 1, o11y.Label{Key: "type", Value: msgType})
}

// RecordMessageReceived records an inbound message dispatched to listeners.
func (m *clientMetrics) RecordMessageReceived(ctx context.Context, msgType string) {
	if m == nil {
		return
	}
	m.messagesReceived.Add(ctx, 1, o11y.Label{Key: "type", Value: msgType})
}

// RecordMessageQueued records a message parked in the outbound queue.
func (m *clientMetrics) RecordMessageQueued(ctx context.Context, msgType string) {
	if m == nil {
		return
	}
	m.messagesQueued.Add(ctx, 1, o11y.Label{Key: "type", Value: msgType})
}

// RecordMessageDropped records an unserializable message that was discarded.
func (m *clientMetrics) RecordMessageDropped(ctx context.Context, msgType string) {
	if m == nil {
		return
	}
	m.messagesDropped.Add(ctx, 1, o11y.Label{Key: "type", Value: msgType})
}

// RecordFrameDiscarded records a malformed inbound frame.
func (m *clientMetrics) RecordFrameDiscarded(ctx context.Context) {
	if m == nil {
		return
	}
	m.framesDiscarded.Add(ctx, 1)
}

// RecordQueueEviction records the eviction of the oldest queued message.
func (m *clientMetrics) RecordQueueEviction(ctx context.Context) {
	if m == nil {
		return
	}
	m.queueEvictions.Add(ctx, 1)
}

// SetQueueDepth updates the outbound queue depth gauge.
func (m *clientMetrics) SetQueueDepth(ctx context.Context, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(ctx, float64(depth))
}

// RecordHeartbeatSent records a heartbeat frame handed to the writer.
func (m *clientMetrics) RecordHeartbeatSent(ctx context.Context) {
	if m == nil {
		return
	}
	m.heartbeatsSent.Add(ctx, 1)
}

// RecordHeartbeatTimeout records a missed heartbeat acknowledgement.
func (m *clientMetrics) RecordHeartbeatTimeout(ctx context.Context) {
	if m == nil {
		return
	}
	m.heartbeatTimeouts.Add(ctx, 1)
}

// SetJoinedRooms updates the room membership gauge.
func (m *clientMetrics) SetJoinedRooms(ctx context.Context, count int) {
	if m == nil {
		return
	}
	m.joinedRooms.Set(ctx, float64(count))
}
