package handlers

import (
	"context"

	"github.com/kapctl/kap/internal/orchestration"
)

// Destroy handles the destroy command.
//
// The infrastructure workspace is torn down after confirmation. The backup
// bucket is left untouched.
func Destroy(ctx context.Context, opts Options) error {
	if err := checkPrerequisites(); err != nil {
		return err
	}

	pCtx, err := newRun(ctx, opts, "destroy")
	if err != nil {
		return err
	}

	orch := orchestration.New(orchestration.Dependencies{
		Provisioner: newProvisioner(pCtx, stdout),
		Prompter:    newPrompter(),
		Persist:     persistSpec(opts),
		Output:      stdout,
	})

	if err := finish(pCtx, orch.Destroy(pCtx)); err != nil {
		return err
	}

	newPrinter(stdout).Success("The cluster has been destroyed.")
	return nil
}
