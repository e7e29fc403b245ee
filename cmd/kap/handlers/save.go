package handlers

import (
	"context"

	"github.com/kapctl/kap/internal/orchestration"
)

// Save handles the save command.
func Save(ctx context.Context, opts Options) error {
	pCtx, err := newRun(ctx, opts, "save")
	if err != nil {
		return err
	}

	buckets, err := newBucketProber(ctx, pCtx.Spec)
	if err != nil {
		return err
	}

	orch := orchestration.New(orchestration.Dependencies{
		Buckets: buckets,
		Locator: newLocator(pCtx),
		Dialer:  newDialer(pCtx.Spec),
		Persist: persistSpec(opts),
		Output:  stdout,
	})

	return finish(pCtx, orch.Save(pCtx))
}
