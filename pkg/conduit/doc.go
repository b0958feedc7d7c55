// Package conduit implements the real-time transport client that Meridian
// frontends use to talk to the collaboration gateway over WebSocket.
//
// A Client maintains one logical connection through physical connection
// churn: it reconnects with exponential backoff, detects dead connections
// with application-level heartbeats, queues outbound messages while offline
// in a bounded FIFO queue, and replays room memberships after every
// reconnect. Inbound messages fan out to listeners registered by message
// type, with a "*" wildcard and MQTT-style "+"/"#" patterns supported.
//
// Clients are constructed with a fluent builder:
//
//	client, err := conduit.NewClient().
//		WithURL("wss://gateway.example.com/realtime").
//		WithToken(token).
//		WithLogger(logger).
//		Build()
//
// All Client methods are safe for concurrent use.
package conduit
