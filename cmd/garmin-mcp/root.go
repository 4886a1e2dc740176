// ABOUTME: Root Cobra command for the garmin-mcp CLI.
// ABOUTME: Loads configuration and builds the logger and session manager.
package main

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/garmin-mcp/internal/config"
	"github.com/harperreed/garmin-mcp/internal/garmin"
	"github.com/harperreed/garmin-mcp/internal/session"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	v      = config.NewViper()
	cfg    *config.Config
	logger *log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "garmin-mcp",
	Short: "Garmin Connect health data for AI assistants",
	Long: `garmin-mcp exposes one Garmin Connect account's health data as MCP tools.

QUICK START:

  $ garmin-mcp auth login     # Sign in once, tokens are saved
  $ garmin-mcp auth status    # Check the saved session
  $ garmin-mcp mcp            # Run the MCP server on stdio

CONFIGURATION:

  GARMIN_EMAIL, GARMIN_PASSWORD   Credentials, used when saved tokens fail
  GARMIN_TOKENSTORE               Token directory (default ~/.garminconnect)
  GARMIN_DOMAIN                   garmin.com, or garmin.cn
  GARMIN_USER_PROFILE_PK          Profile id for menstrual calendar writes
  GARMIN_LOG_LEVEL                debug, info, warn or error
  GARMIN_HTTP_TIMEOUT             e.g. 30s

  The same keys (lowercase, without the prefix) may be set in
  ~/.config/garmin-mcp/config.toml. A .env file in the working directory
  or the config directory is loaded first.

MCP INTEGRATION:

  {
    "mcpServers": {
      "garmin": { "command": "garmin-mcp", "args": ["mcp"] }
    }
  }`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config for commands that don't need it
		if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "install-skill" {
			return nil
		}
		return loadConfig(v, cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.PersistentFlags().String("tokenstore", "", "token directory (default ~/.garminconnect)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	_ = v.BindPFlag(config.KeyTokenStore, rootCmd.PersistentFlags().Lookup("tokenstore"))
	_ = v.BindPFlag(config.KeyLogLevel, rootCmd.PersistentFlags().Lookup("log-level"))
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig(v *viper.Viper, logOut io.Writer) error {
	if _, err := config.LoadDotEnv(); err != nil {
		return err
	}
	loaded, err := config.Load(v)
	if err != nil {
		return err
	}
	l, err := newLogger(logOut, loaded.LogLevel)
	if err != nil {
		return err
	}
	cfg, logger = loaded, l
	if cfg.File != "" {
		logger.Debug("loaded config", "file", cfg.File)
	}
	return nil
}

// newLogger builds a logger on w, which must not be stdout when serving MCP.
func newLogger(w io.Writer, level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		Prefix:          "garmin-mcp",
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	}), nil
}

// newManager builds a session manager from c. extra options are applied
// after the configured ones.
func newManager(c *config.Config, l *log.Logger, prompt garmin.MFAPrompter, extra ...garmin.Option) *session.Manager {
	opts := []garmin.Option{
		garmin.WithDomain(c.Domain),
		garmin.WithHTTPClient(&http.Client{Timeout: c.HTTPTimeout}),
	}
	return session.New(session.Config{
		TokenDir:      c.TokenStore,
		Credentials:   garmin.Credentials{Email: c.Email, Password: c.Password},
		UserProfilePK: c.UserProfilePK,
		Prompt:        prompt,
		ClientOptions: append(opts, extra...),
		Logger:        l,
	})
}
