package commands

import (
	"github.com/spf13/cobra"

	"github.com/kapctl/kap/cmd/kap/handlers"
)

// ResetArgs returns the reset-args command.
func ResetArgs(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-args",
		Short: "Restore the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.ResetArgs(cmd.Context(), g.options())
		},
	}
}

// ListArgs returns the list-args command.
func ListArgs(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list-args",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.ListArgs(cmd.Context(), g.options())
		},
	}
}
