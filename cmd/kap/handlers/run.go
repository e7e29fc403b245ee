package handlers

import (
	"context"

	"github.com/kapctl/kap/internal/provisioning"
)

// newRun loads the cluster spec and creates the context of one operation.
func newRun(ctx context.Context, opts Options, operation string) (*provisioning.Context, error) {
	spec, err := loadSpec(opts)
	if err != nil {
		return nil, err
	}
	return newProvisioningContext(ctx, operation, spec, newObserver(opts.Verbosity)), nil
}

// finish flushes the run metrics and passes err through.
func finish(pCtx *provisioning.Context, err error) error {
	if werr := pCtx.Metrics.WriteTextfile(pCtx.Spec.MetricsTextfile); werr != nil {
		pCtx.Observer.Printf("Warning: failed to write metrics: %v", werr)
	}
	return err
}
