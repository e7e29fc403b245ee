package handlers

import (
	"context"

	"github.com/kapctl/kap/internal/orchestration"
)

// Join handles the join-cluster command.
func Join(ctx context.Context, opts Options) error {
	pCtx, err := newRun(ctx, opts, "join-cluster")
	if err != nil {
		return err
	}

	orch := orchestration.New(orchestration.Dependencies{
		Locator: newLocator(pCtx),
		Dialer:  newDialer(pCtx.Spec),
		Persist: persistSpec(opts),
		Output:  stdout,
	})

	if err := finish(pCtx, orch.Join(pCtx)); err != nil {
		return err
	}

	printAccess(pCtx)
	return nil
}
