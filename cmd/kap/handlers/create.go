package handlers

import (
	"context"

	"github.com/kapctl/kap/internal/orchestration"
)

// Create handles the create command.
//
// It provisions or updates the infrastructure, configures the cluster from
// the service node and retrieves the kubeconfig.
func Create(ctx context.Context, opts Options) error {
	if err := checkPrerequisites(); err != nil {
		return err
	}

	pCtx, err := newRun(ctx, opts, "create")
	if err != nil {
		return err
	}

	orch := orchestration.New(orchestration.Dependencies{
		Provisioner: newProvisioner(pCtx, stdout),
		Locator:     newLocator(pCtx),
		Dialer:      newDialer(pCtx.Spec),
		Prompter:    newPrompter(),
		Persist:     persistSpec(opts),
		Output:      stdout,
	})

	if err := finish(pCtx, orch.Create(pCtx)); err != nil {
		return err
	}

	printAccess(pCtx)
	return nil
}
