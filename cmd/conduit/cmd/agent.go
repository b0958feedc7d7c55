package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridianhq/conduit/pkg/conduit"
	"github.com/meridianhq/conduit/pkg/conduit/config"
	"github.com/meridianhq/conduit/pkg/conduit/listeners"
)

// agentCmd represents the agent command
var agentCmd = &cobra.Command{
	Use:   "agent [config-files-or-directories...]",
	Short: "Run a long-lived configuration-driven client agent",
	Long: `Run a long-lived agent driven by HCL configuration files.

The agent loads client and schedule blocks from the given files and
directories (directories are walked for .hcl files), connects every
configured client, joins their rooms, and runs scheduled event sends
until interrupted.

Examples:
  conduit agent agent.hcl
  conduit agent ./conf.d/
  conduit agent base.hcl overrides.hcl`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAgent,
}

var agentLogEvents bool

func init() {
	rootCmd.AddCommand(agentCmd)

	agentCmd.Flags().BoolVar(&agentLogEvents, "log-events", false, "log every received event")
}

func runAgent(cmd *cobra.Command, args []string) error {
	// Setup logger
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Starting agent",
		zap.Strings("config-paths", args),
		zap.String("log-level", logLevel),
	)

	cfg, diags := config.NewConfig().
		WithLogger(logger).
		WithSources(stringSliceToAnySlice(args)...).
		Build()

	if diags.HasErrors() {
		logger.Error("Failed to build config", zap.Any("diags", diags))
		return diags
	}

	if agentLogEvents {
		for name, client := range cfg.Clients {
			logListener := listeners.NewNamedLoggingListener(nil, logger, zap.InfoLevel, name)
			client.On(conduit.Wildcard, logListener.Listen)
			client.OnStateChange(logListener.StateListen)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Agent running... (Press Ctrl+C to exit)")

	select {
	case sig := <-sigChan:
		logger.Debug("Signal received, exiting", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down...")
	}

	cfg.Stop()

	logger.Info("Shutdown complete")
	return nil
}

// Helper to convert []string to []any
func stringSliceToAnySlice(strs []string) []any {
	anys := make([]any, len(strs))
	for i, s := range strs {
		anys[i] = s
	}
	return anys
}
