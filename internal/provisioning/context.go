package provisioning

import (
	"context"

	"github.com/google/uuid"

	"github.com/kapctl/kap/internal/config"
	"github.com/kapctl/kap/internal/inventory"
	"github.com/kapctl/kap/internal/kubeconfig"
	"github.com/kapctl/kap/internal/metrics"
	"github.com/kapctl/kap/internal/platform/ec2"
	"github.com/kapctl/kap/internal/util/retry"
)

// State holds results that later stages of the same run consume.
type State struct {
	// ReviewPlan records the operator's choice to see the plan before apply.
	ReviewPlan        bool
	Endpoint          *ec2.ServiceEndpoint
	ProvisionerOutput []byte
	Inventory         *inventory.Document
	Kubeconfig        *kubeconfig.Info
}

// Context wraps everything a stage needs for one invocation.
type Context struct {
	context.Context
	Operation string
	RunID     string
	Spec      *config.ClusterSpec
	Bounds    *config.RetryBounds
	State     *State
	Observer  Observer
	Metrics   *metrics.Recorder
}

// NewContext creates the context of one operation run. The observer is
// tagged with the operation and a fresh run id.
func NewContext(ctx context.Context, operation string, spec *config.ClusterSpec, observer Observer) *Context {
	runID := uuid.NewString()
	if observer == nil {
		observer = NewConsoleObserver()
	}
	return &Context{
		Context:   ctx,
		Operation: operation,
		RunID:     runID,
		Spec:      spec,
		Bounds:    config.LoadRetryBounds(),
		State:     &State{},
		Observer:  observer.WithFields(map[string]string{"run": runID, "operation": operation}),
		Metrics:   metrics.NewRecorder(),
	}
}

// RetryOptions are the options every poll of this run shares.
func (c *Context) RetryOptions() []retry.Option {
	return []retry.Option{retry.WithObserver(c.Metrics.ObserveRetry)}
}
