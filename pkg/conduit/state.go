package conduit

import "fmt"

// ConnectionState describes the client's position in the connection lifecycle.
// Transitions are owned exclusively by the Client; external code observes them
// through OnStateChange listeners or the State() accessor.
type ConnectionState int32

const (
	// StateDisconnected is the initial state: no token presented yet, or the
	// client has never been asked to connect.
	StateDisconnected ConnectionState = iota

	// StateConnecting means a handshake is in flight.
	StateConnecting

	// StateConnected means the connection is open and heartbeats are active.
	StateConnected

	// StateReconnecting means an abnormal close occurred and a retry is
	// scheduled or in flight.
	StateReconnecting

	// StateClosed is terminal: either the reconnect budget was exhausted or the
	// caller explicitly disconnected. Only an explicit Connect leaves it.
	StateClosed
)

// String returns a human-readable state name.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// StateChange is delivered to state listeners on every transition.
type StateChange struct {
	From ConnectionState
	To   ConnectionState

	// Err is the error that triggered the transition, if any. It is set for
	// abnormal closes and dial failures, nil for caller-initiated transitions
	// and successful connects.
	Err error
}

// StateListener receives state transitions. Like event listeners, invocations
// are panic-wrapped, so a misbehaving listener cannot disturb the client.
type StateListener func(change StateChange)
