// Package cli implements the reflexd command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/bjaus/reflex"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Config string
}

// NewRootCommand creates the root command for reflexd.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "reflexd",
		Short: "reflexd - serve reflex invocations",
		Long:  "Serves reflex invocations over websockets and NATS, with sessions kept in memory or Redis.",

		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Config, "config", reflex.DefaultConfigPath, "path to the reflex configuration file")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}
