package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/coordinate/internal/logging"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking COORDINATE_SERVER
// first.
func defaultServer() string {
	if s := os.Getenv("COORDINATE_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for coordctl.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "coordctl",
		Short: "coordctl — admin CLI for the work coordinator",
		Long:  "coordctl submits work, checks status, and inspects the coordinator's admission queue.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)
			client = NewClient(flagServer, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "coordinator server URL (or COORDINATE_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "log format (text, json)")

	root.AddCommand(
		newSubmitCmd(),
		newStatusCmd(),
		newListCmd(),
		newCancelCmd(),
		newDebugBlockedCmd(),
	)

	return root
}
