package commands

import (
	"github.com/spf13/cobra"

	"github.com/kapctl/kap/cmd/kap/handlers"
)

// Save returns the save command.
func Save(g *globalFlags) *cobra.Command {
	var flags *specFlags

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Back up the cluster with velero",
		Long: `Save waits for the backup bucket and creates a velero backup of the
configured namespaces from the service node.

Example:
  kap save --backup nightly --backup-namespaces default`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := g.options()
			opts.Overrides = flags.overrides(cmd)
			return handlers.Save(cmd.Context(), opts)
		},
	}
	flags = bindSpecFlags(cmd)

	return cmd
}
