// ABOUTME: CLI command for starting the MCP server.
// ABOUTME: Authenticates once, then serves Garmin tools over stdio.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/harperreed/garmin-mcp/internal/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server",
	Long: `Start the Model Context Protocol (MCP) server for AI assistant integration.

The server communicates via stdin/stdout and logs to stderr. It restores the
saved Garmin session at startup; if that fails it still starts, and every
tool call retries authentication until one succeeds.

Multi-factor codes cannot be entered over stdio. Accounts with MFA enabled
must run 'garmin-mcp auth login' first so the server can use saved tokens.

AVAILABLE TOOLS:

  get_daily_summary       Combined daily overview
  get_body_battery        Body battery levels and events
  get_sleep_data          Sleep summary
  get_sleep_detail        Granular overnight sleep data
  get_heart_rate          Daily heart rate
  get_resting_heart_rate  Resting heart rate
  get_stress              Stress levels and zones
  get_steps               Step count
  get_menstrual_cycle     Cycle day, phase and predictions
  update_menstrual_cycle  Log or correct a period
  get_hrv                 Heart rate variability
  get_hydration           Water intake
  add_hydration           Log water intake
  get_activities          Recent activities

AVAILABLE RESOURCES:

  garmin://session        Authentication state
  garmin://today          Today's daily summary`,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager := newManager(cfg, logger, nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Handle shutdown signals
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigChan
			cancel()
		}()

		if _, err := manager.Authenticate(ctx); err != nil {
			logger.Warn("starting without a Garmin session", "err", err)
		}

		server, err := mcp.NewServer(manager, mcp.WithLogger(logger), mcp.WithVersion(version))
		if err != nil {
			return err
		}
		logger.Info("serving MCP on stdio", "tokenstore", cfg.TokenStore)
		return server.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
