package conduit

import (
	"encoding/json"

	"github.com/coder/websocket"
)

// Event is a typed message. On the wire every frame, in either direction, is
// the JSON envelope { "type": string, "data": object }; inbound frames decode
// into an Event and are delivered to listeners as-is. Application message
// types are opaque to the client; it only routes them.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Listener receives dispatched events. Invocations are panic-wrapped, so a
// misbehaving listener cannot corrupt the client or starve other listeners.
type Listener func(event Event)

// Control and notification message types recognized on the wire. Everything
// else is an application type and passes straight through to listeners.
const (
	// TypeConnected is emitted to listeners when the client reaches
	// StateConnected. Servers may also send it as a post-handshake greeting.
	TypeConnected = "connected"

	// TypeDisconnected is a synthetic, locally generated event emitted when
	// the connection is lost. Data carries "code" and "reason".
	TypeDisconnected = "disconnected"

	// TypeError is a synthetic event for transport-level errors. It never
	// changes state by itself; the close event that follows does.
	TypeError = "error"

	// TypeJoinRoom and TypeLeaveRoom are the outbound room membership
	// requests; TypeRoomJoined and TypeRoomLeft are the server confirmations,
	// which are dispatched like any other event.
	TypeJoinRoom   = "join_room"
	TypeLeaveRoom  = "leave_room"
	TypeRoomJoined = "room_joined"
	TypeRoomLeft   = "room_left"

	// TypeHeartbeat is sent on a fixed interval while connected. The matching
	// TypeHeartbeatAck cancels the ack deadline and is not forwarded to
	// listeners.
	TypeHeartbeat    = "heartbeat"
	TypeHeartbeatAck = "heartbeat_ack"
)

// StatusHeartbeatTimeout is the close code used when the heartbeat ack
// deadline fires. It is in the private-use range so the server can tell a
// liveness close from a protocol failure.
const StatusHeartbeatTimeout websocket.StatusCode = 4008

// encodeFrame serializes an outbound frame. The data payload may be any
// JSON-serializable value; it is the caller's contract that it encodes to an
// object (the server rejects non-object payloads, but this layer does not).
func encodeFrame(msgType string, data any) ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Data any    `json:"data,omitempty"`
	}{Type: msgType, Data: data})
}

// decodeFrame parses an inbound frame. It returns false for anything that
// does not decode to an envelope with a non-empty type; malformed frames are
// discarded by the caller without raising.
func decodeFrame(data []byte) (Event, bool) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return Event{}, false
	}
	if event.Type == "" {
		return Event{}, false
	}
	return event, true
}
