// Package cli wires the commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"wordpress-sync/internal/config"
	"wordpress-sync/internal/infra/logx"
)

var (
	flagVerbose  bool
	flagLogLevel string

	settings *config.Settings
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "wpsync",
		Short:         "Synchronize content between WordPress instances",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.LoadSettings()
			if err != nil {
				return err
			}
			settings = s
			level := s.LogLevel
			if flagLogLevel != "" {
				level = flagLogLevel
			}
			logx.Init(level, os.Stderr)
			logx.SetVerbose(flagVerbose)
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log full payloads without truncation")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(newSyncCmd())
	root.AddCommand(newProfilesCmd())
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "wpsync:", err)
		logx.Sync()
		return 1
	}
	logx.Sync()
	return 0
}
