package conduit

import (
	"context"
	"time"
)

// ClientMonitor receives lifecycle callbacks from a Client. Implementations
// can drive UI state (connection indicators, room presence) or feed external
// health checks. Callbacks run on client goroutines and must not block for
// long periods.
type ClientMonitor interface {
	// OnConnect is called after a connection is established, once the
	// offline queue and room rejoin requests are on the write path.
	OnConnect(ctx context.Context, client *Client)

	// OnDisconnect is called when the connection is lost or closed. err is
	// nil for caller-initiated disconnects.
	OnDisconnect(ctx context.Context, client *Client, err error)

	// OnRoomJoin is called when a room is added to the membership set.
	OnRoomJoin(ctx context.Context, client *Client, roomID string)

	// OnRoomLeave is called when a room is removed from the membership set.
	OnRoomLeave(ctx context.Context, client *Client, roomID string)

	// OnReconnectScheduled is called each time a reconnection attempt is
	// scheduled, with the 1-based attempt number and the backoff delay.
	OnReconnectScheduled(ctx context.Context, client *Client, attempt int, delay time.Duration)
}

// BaseMonitor is a no-op ClientMonitor. Embed it to implement only the
// callbacks you care about.
type BaseMonitor struct{}

func (BaseMonitor) OnConnect(ctx context.Context, client *Client) {}

func (BaseMonitor) OnDisconnect(ctx context.Context, client *Client, err error) {}

func (BaseMonitor) OnRoomJoin(ctx context.Context, client *Client, roomID string) {}

func (BaseMonitor) OnRoomLeave(ctx context.Context, client *Client, roomID string) {}

func (BaseMonitor) OnReconnectScheduled(ctx context.Context, client *Client, attempt int, delay time.Duration) {
}
