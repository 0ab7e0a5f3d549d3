// Package cli implements the griddispatch command line.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/xraph/griddispatch/internal/config"
	"github.com/xraph/griddispatch/internal/logging"
)

// Version is stamped at build time.
var Version = "dev"

var (
	flagConfig    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	cfg    config.File
	logger *slog.Logger
)

// defaultConfigPath checks GRIDDISPATCH_CONFIG.
func defaultConfigPath() string {
	return os.Getenv("GRIDDISPATCH_CONFIG")
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "griddispatch",
		Short: "Cluster job dispatcher",
		Long:  "griddispatch runs a dispatch node that claims jobs from a shared queue while the cluster has free capacity.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(flagConfig)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") || cfg.Log.Level == "" {
				cfg.Log.Level = flagLogLevel
			}
			if cmd.Flags().Changed("log-format") || cfg.Log.Format == "" {
				cfg.Log.Format = flagLogFormat
			}
			if flagDebug {
				cfg.Log.Level = "debug"
			}
			logger = logging.NewLoggerWithWriter(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format, cmd.ErrOrStderr())
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", defaultConfigPath(), "Config file (or GRIDDISPATCH_CONFIG env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newRunCmd(),
		newEnqueueCmd(),
		newFailuresCmd(),
		newNodesCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write([]byte("griddispatch " + Version + "\n"))
			return err
		},
	}
}
