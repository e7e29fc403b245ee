package commands

import (
	"github.com/spf13/cobra"

	"github.com/kapctl/kap/cmd/kap/handlers"
)

// Create returns the create command.
func Create(g *globalFlags) *cobra.Command {
	var flags *specFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a cluster or apply changes to an existing one",
		Long: `Create provisions the cluster infrastructure with terraform and configures it
from the service node.

The command:
  - Provisions the backup bucket when --backup is given
  - Plans and applies the Infra_deploy workspace, optionally after a review
  - Waits for the service node and pushes the inventory, variables and keys
  - Runs the ansible playbook on the service node
  - Retrieves the kubeconfig into --kube-dir

Running create against an existing cluster applies the changes. Node counts
can grow but never shrink.

Example:
  kap create -n 3:2 --region eu-west-3 --private-key-path ~/.ssh/kap-key.pem`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := g.options()
			opts.Overrides = flags.overrides(cmd)
			return handlers.Create(cmd.Context(), opts)
		},
	}
	flags = bindSpecFlags(cmd)

	return cmd
}
