package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridianhq/conduit/pkg/conduit"
	"github.com/meridianhq/conduit/pkg/conduit/o11y"
	"github.com/meridianhq/conduit/pkg/conduit/transform"
)

// listenCmd represents the listen command
var listenCmd = &cobra.Command{
	Use:   "listen <websocket-url> [rooms...]",
	Short: "Connect to a collaboration server and print events",
	Long: `Connect to a collaboration server, join the given rooms, and print
received events to stdout as "type<TAB>json" lines.

The first argument is the WebSocket URL to connect to. Additional
arguments are rooms to join; the connection receives session-wide events
even with no rooms.

The authentication token comes from --token or the MERIDIAN_TOKEN
environment variable.

Examples:
  conduit listen wss://sync.example.com/ws
  conduit listen wss://sync.example.com/ws project:alpha task:42
  conduit listen wss://sync.example.com/ws project:alpha --jq '{id: .id}'
  conduit listen wss://sync.example.com/ws --delta --stats`,
	Args: cobra.MinimumNArgs(1),
	RunE: runListen,
}

var (
	listenToken       string
	listenDialTimeout time.Duration
	listenJq          string
	listenDelta       bool
	listenStats       bool
)

func init() {
	rootCmd.AddCommand(listenCmd)

	listenCmd.Flags().StringVar(&listenToken, "token", "", "authentication token (defaults to $MERIDIAN_TOKEN)")
	listenCmd.Flags().DurationVar(&listenDialTimeout, "dial-timeout", 10*time.Second, "WebSocket dial timeout")
	listenCmd.Flags().StringVar(&listenJq, "jq", "", "jq query applied to each event's data before printing")
	listenCmd.Flags().BoolVar(&listenDelta, "delta", false, "collapse old/new payloads to structural deltas")
	listenCmd.Flags().BoolVar(&listenStats, "stats", false, "print a metrics snapshot on exit")
}

func runListen(cmd *cobra.Command, args []string) error {
	// Setup logger
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsURL := args[0]
	rooms := args[1:]

	token := listenToken
	if token == "" {
		token = os.Getenv("MERIDIAN_TOKEN")
	}

	logger.Info("Starting listener",
		zap.String("url", wsURL),
		zap.Strings("rooms", rooms),
		zap.Duration("dial-timeout", listenDialTimeout),
	)

	pipeline, err := buildPipeline(logger)
	if err != nil {
		return err
	}

	builder := conduit.NewClient().
		WithURL(wsURL).
		WithToken(token).
		WithLogger(logger).
		WithDialTimeout(listenDialTimeout)

	var snapshots *o11y.SnapshotProvider
	if listenStats {
		snapshots = o11y.NewSnapshotProvider()
		builder = builder.WithMetricsProvider(snapshots)
	}

	client, err := builder.Build()
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	client.On(conduit.Wildcard, func(event conduit.Event) {
		printEvent(event, pipeline)
	})

	// Rooms join before connect; membership replays when the connection opens.
	for _, room := range rooms {
		client.JoinRoom(room)
	}

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	logger.Info("Connected to server", zap.String("url", wsURL), zap.String("session", client.SessionID()))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Listening for events... (Press Ctrl+C to exit)")

	select {
	case sig := <-sigChan:
		logger.Debug("Signal received, exiting", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down...")
	}

	client.Disconnect()

	if snapshots != nil {
		printSnapshot(snapshots)
	}

	logger.Info("Shutdown complete")
	return nil
}

// buildPipeline assembles the event transform pipeline from the --delta
// and --jq flags. Returns nil when no transform is requested.
func buildPipeline(logger *zap.Logger) (transform.TransformFunc, error) {
	var transforms []transform.TransformFunc

	if listenDelta {
		transforms = append(transforms, transform.ModifyData(transform.DeltaTransform))
	}

	if listenJq != "" {
		jqTransform, err := transform.JqTransform(listenJq, logger)
		if err != nil {
			return nil, fmt.Errorf("invalid jq query: %w", err)
		}
		transforms = append(transforms, jqTransform)
	}

	if len(transforms) == 0 {
		return nil, nil
	}

	return transform.Chain(transforms...), nil
}

func printEvent(event conduit.Event, pipeline transform.TransformFunc) {
	out := &event
	if pipeline != nil {
		out, _ = pipeline(out)
		if out == nil {
			return
		}
	}

	jsonBytes, err := json.Marshal(out.Data)
	if err != nil {
		fmt.Printf("%s\t<error marshaling JSON: %v>\n", out.Type, err)
		return
	}
	fmt.Printf("%s\t%s\n", out.Type, string(jsonBytes))
}

func printSnapshot(snapshots *o11y.SnapshotProvider) {
	snapshot := snapshots.Snapshot()
	jsonBytes, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error marshaling stats: %v\n", err)
		return
	}
	fmt.Fprintln(os.Stderr, string(jsonBytes))
}
