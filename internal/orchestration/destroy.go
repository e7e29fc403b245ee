package orchestration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/kapctl/kap/internal/config"
	"github.com/kapctl/kap/internal/provisioning"
)

const destroyQuestion = "Do you want to destroy the cluster?\nRemember to save your changes on an external datastore if needed!"

// Destroy tears the infrastructure down after the operator confirms and
// removes the local kubeconfig.
func (o *Orchestrator) Destroy(ctx *provisioning.Context) error {
	if err := requireDeps(
		dependency{"provisioner", o.deps.Provisioner != nil},
		dependency{"prompter", o.deps.Prompter != nil},
	); err != nil {
		return err
	}

	stages := append([]provisioning.Stage{
		provisioning.PreflightStage(provisioning.Checks{InfraWorkspace: true}),
	}, o.persistStages()...)
	return provisioning.RunStages(ctx, append(stages,
		provisioning.Stage{
			Name: "confirm",
			Run: func(ctx *provisioning.Context) error {
				ok, err := o.confirm(ctx, destroyQuestion)
				if err != nil {
					return err
				}
				if !ok {
					ctx.Observer.Printf("Destruction cancelled.")
					return provisioning.ErrCancelled
				}
				return nil
			},
		},
		provisioning.Stage{
			Name:     "destroy-infra",
			Resource: config.InfraWorkspace,
			Run: func(ctx *provisioning.Context) error {
				ws := infraWorkspace(ctx.Spec)
				if err := config.MergeJSONFile(ws.VarFile, ctx.Spec.TerraformVars()); err != nil {
					return err
				}
				ctx.Observer.Printf("Destroying cluster...")
				if err := o.deps.Provisioner.Destroy(ctx, ws); err != nil {
					return err
				}
				provisioning.LogResourceDeleted(ctx.Observer, "destroy-infra", "workspace", config.InfraWorkspace)
				return nil
			},
		},
		provisioning.Stage{
			Name: "remove-kubeconfig",
			Done: func(ctx *provisioning.Context) (bool, error) {
				_, err := os.Stat(ctx.Spec.KubeconfigPath())
				if errors.Is(err, fs.ErrNotExist) {
					return true, nil
				}
				return false, err
			},
			Run: func(ctx *provisioning.Context) error {
				path := ctx.Spec.KubeconfigPath()
				ctx.Observer.Printf("Removing Kubernetes configuration...")
				if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("failed to remove kubeconfig: %w", err)
				}
				provisioning.LogResourceDeleted(ctx.Observer, "remove-kubeconfig", "kubeconfig", path)
				return nil
			},
		},
	))
}
