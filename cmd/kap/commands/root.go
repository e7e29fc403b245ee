// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/kapctl/kap/cmd/kap/handlers"
)

// globalFlags are shared by every subcommand through the root's persistent flags.
type globalFlags struct {
	configPath string
	verbose    int
}

func (g *globalFlags) options() handlers.Options {
	return handlers.Options{ConfigPath: g.configPath, Verbosity: g.verbose}
}

// Root returns the root command for the kap CLI.
func Root() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "kap",
		Short:         "Provision and operate Kubernetes clusters on AWS",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "",
		"Path to the kap configuration file (default: kap.yaml in the current directory or a parent)")
	cmd.PersistentFlags().CountVarP(&g.verbose, "verbose", "v", "Increase log verbosity (repeatable)")

	// Lifecycle commands
	cmd.AddCommand(Create(g))
	cmd.AddCommand(Destroy(g))
	cmd.AddCommand(JoinCluster(g))
	cmd.AddCommand(Save(g))

	// Configuration commands
	cmd.AddCommand(ResetArgs(g))
	cmd.AddCommand(ListArgs(g))

	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}
