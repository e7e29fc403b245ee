package commands

import (
	"github.com/spf13/cobra"

	"github.com/kapctl/kap/cmd/kap/handlers"
)

// JoinCluster returns the join-cluster command.
func JoinCluster(g *globalFlags) *cobra.Command {
	var flags *specFlags

	cmd := &cobra.Command{
		Use:   "join-cluster",
		Short: "Retrieve the kubeconfig of a running cluster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := g.options()
			opts.Overrides = flags.overrides(cmd)
			return handlers.Join(cmd.Context(), opts)
		},
	}
	flags = bindSpecFlags(cmd)

	return cmd
}
