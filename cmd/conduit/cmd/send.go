package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridianhq/conduit/pkg/conduit"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send <websocket-url> <event-type> [json-data]",
	Short: "Send a single event to a collaboration server",
	Long: `Connect to a collaboration server, send one event, and disconnect.

The first argument is the WebSocket URL, the second is the event type,
and the optional third is the event data as a JSON document.

The authentication token comes from --token or the MERIDIAN_TOKEN
environment variable. Rooms given with --room are joined before the
event is sent.

Examples:
  conduit send wss://sync.example.com/ws presence/viewing '{"task_id":"T-42"}'
  conduit send wss://sync.example.com/ws user_typing '{"room_id":"project:alpha"}' --room project:alpha
  conduit send wss://sync.example.com/ws ping`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runSend,
}

var (
	sendToken       string
	sendRooms       []string
	sendDialTimeout time.Duration
	sendTimeout     time.Duration
	sendLinger      time.Duration
)

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVar(&sendToken, "token", "", "authentication token (defaults to $MERIDIAN_TOKEN)")
	sendCmd.Flags().StringArrayVar(&sendRooms, "room", nil, "room to join before sending (repeatable)")
	sendCmd.Flags().DurationVar(&sendDialTimeout, "dial-timeout", 10*time.Second, "WebSocket dial timeout")
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 30*time.Second, "Total operation timeout")
	sendCmd.Flags().DurationVar(&sendLinger, "linger", 500*time.Millisecond, "Time to allow the event to flush before disconnecting")
}

func runSend(cmd *cobra.Command, args []string) error {
	// Setup logger
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	wsURL := args[0]
	eventType := args[1]

	var payload any
	if len(args) > 2 {
		if err := json.Unmarshal([]byte(args[2]), &payload); err != nil {
			return fmt.Errorf("invalid json data: %w", err)
		}
	}

	token := sendToken
	if token == "" {
		token = os.Getenv("MERIDIAN_TOKEN")
	}

	logger.Info("Sending event",
		zap.String("url", wsURL),
		zap.String("type", eventType),
		zap.Strings("rooms", sendRooms),
		zap.Duration("timeout", sendTimeout),
	)

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	client, err := conduit.NewClient().
		WithURL(wsURL).
		WithToken(token).
		WithLogger(logger).
		WithDialTimeout(sendDialTimeout).
		WithAutoReconnect(false).
		Build()
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	for _, room := range sendRooms {
		client.JoinRoom(room)
	}

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer client.Disconnect()

	logger.Info("Connected to server", zap.String("url", wsURL))

	result := client.Send(eventType, payload)
	if result == conduit.SendDropped {
		return fmt.Errorf("event was dropped (unserializable payload)")
	}

	// The write happens on the writer goroutine; give it a moment to flush
	// before tearing the connection down.
	time.Sleep(sendLinger)

	logger.Info("Event sent",
		zap.String("type", eventType),
		zap.Stringer("result", result),
	)

	return nil
}
