package orchestration

import "github.com/kapctl/kap/internal/provisioning"

// Join retrieves the kubeconfig of a running cluster without changing it.
func (o *Orchestrator) Join(ctx *provisioning.Context) error {
	if err := requireDeps(
		dependency{"endpoint locator", o.deps.Locator != nil},
		dependency{"SSH dialer", o.deps.Dialer != nil},
	); err != nil {
		return err
	}

	stages := append([]provisioning.Stage{
		provisioning.PreflightStage(provisioning.Checks{PrivateKey: true}),
	}, o.persistStages()...)
	return provisioning.RunStages(ctx, append(stages,
		o.awaitEndpointStage(),
		o.retrieveKubeconfigStage(ctx.Spec.Remote.ClusterKubeconfig),
	))
}
