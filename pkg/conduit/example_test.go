package conduit

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"
)

// ExampleClient demonstrates basic usage of the transport client.
func ExampleClient() {
	logger, _ := zap.NewDevelopment()

	// Create client using fluent builder pattern
	client, err := NewClient().
		WithURL("wss://sync.example.com/ws").
		WithToken("example-token-123").
		WithLogger(logger).
		WithDialTimeout(10 * time.Second).
		WithQueueCapacity(200). // Buffer up to 200 messages across disconnects
		Build()
	if err != nil {
		log.Fatal(err)
	}

	// Listen for task updates and for everything
	client.On("task_updated", func(event Event) {
		fmt.Printf("task updated: %v\n", event.Data)
	})
	client.On(Wildcard, func(event Event) {
		fmt.Printf("event: %s\n", event.Type)
	})

	// Connect to the server
	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		log.Fatal(err)
	}
	defer client.Disconnect()

	// Join rooms; membership survives reconnects
	client.JoinRoom("project:alpha")
	client.JoinRoom("task:42")

	// Send some events
	client.Send("presence/viewing", map[string]string{"task_id": "42"})
	client.Send("user_typing", map[string]string{"room_id": "project:alpha"})

	// Listeners receive events asynchronously
	time.Sleep(100 * time.Millisecond)
}

// ExampleClient_offline demonstrates that sends and room joins issued
// while disconnected are delivered once the connection opens.
func ExampleClient_offline() {
	client, err := NewClient().
		WithURL("wss://sync.example.com/ws").
		WithToken("example-token-123").
		Build()
	if err != nil {
		log.Fatal(err)
	}

	// Neither of these requires a connection. The join is replayed and the
	// send is flushed, in order, when Connect succeeds.
	client.JoinRoom("project:alpha")
	result := client.Send("user_typing", map[string]string{"room_id": "project:alpha"})
	fmt.Println(result)

	// Output: queued
}

// ExampleClient_tokenProvider demonstrates refreshing the auth token on
// every reconnect attempt.
func ExampleClient_tokenProvider() {
	tokenProvider := func(ctx context.Context) (string, error) {
		// In a real application, this might:
		// - Refresh an expired JWT
		// - Read credentials from the session store
		return "fresh-token", nil
	}

	client, err := NewClient().
		WithURL("wss://sync.example.com/ws").
		WithTokenProvider(tokenProvider). // Re-consulted before each reconnect
		WithMaxReconnectAttempts(5).
		Build()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		log.Fatal(err)
	}
	defer client.Disconnect()
}

// ExampleClient_onStateChange demonstrates observing connection state.
func ExampleClient_onStateChange() {
	client, err := NewClient().
		WithURL("wss://sync.example.com/ws").
		WithToken("example-token-123").
		Build()
	if err != nil {
		log.Fatal(err)
	}

	sub := client.OnStateChange(func(change StateChange) {
		fmt.Printf("%s -> %s\n", change.From, change.To)
	})
	defer client.Off(sub)

	if err := client.Connect(context.Background()); err != nil {
		log.Fatal(err)
	}
	defer client.Disconnect()
}
