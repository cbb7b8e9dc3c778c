package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bjaus/reflex"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the reflex configuration",
	}

	cmd.AddCommand(newConfigInitCommand(rootOpts))
	cmd.AddCommand(newConfigShowCommand(rootOpts))

	return cmd
}

func newConfigInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Long: `Write the default reflex configuration to the --config path.

Existing files are never overwritten.

Example:
  reflexd config init --config config/reflex.yaml`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := reflex.WriteDefaultConfig(rootOpts.Config); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", rootOpts.Config)
			return nil
		},
	}
}

func newConfigShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration reflexd would run with: the defaults,
overlaid with the --config file and REFLEX_* environment variables.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := reflex.LoadConfig(rootOpts.Config)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config:                  %s\n", cfg.ConfigPath)
			fmt.Fprintf(out, "version:                 %s\n", cfg.Version)
			fmt.Fprintf(out, "on_failed_sanity_checks: %s\n", cfg.OnFailedSanityChecks)
			fmt.Fprintf(out, "development:             %t\n", cfg.Development)
			fmt.Fprintf(out, "channel_name:            %s\n", cfg.ChannelName)
			fmt.Fprintf(out, "logging:                 %t\n", cfg.Logging)
			fmt.Fprintf(out, "log_level:               %s\n", cfg.LogLevel)
			fmt.Fprintf(out, "session_ttl:             %s\n", cfg.SessionTTL)
			return nil
		},
	}
}
