package commands

import (
	"github.com/spf13/cobra"

	"github.com/kapctl/kap/cmd/kap/handlers"
)

// Destroy returns the destroy command.
func Destroy(g *globalFlags) *cobra.Command {
	var flags *specFlags

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Destroy the cluster infrastructure",
		Long: `Destroy tears down the Infra_deploy workspace after confirmation and removes
the local kubeconfig. The backup bucket is left in place.

WARNING: This operation is irreversible. Save the cluster state first if needed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := g.options()
			opts.Overrides = flags.overrides(cmd)
			return handlers.Destroy(cmd.Context(), opts)
		},
	}
	flags = bindSpecFlags(cmd)

	return cmd
}
