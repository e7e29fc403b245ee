package orchestration

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kapctl/kap/internal/config"
	"github.com/kapctl/kap/internal/kubeconfig"
	"github.com/kapctl/kap/internal/platform/ssh"
	"github.com/kapctl/kap/internal/platform/terraform"
	"github.com/kapctl/kap/internal/provisioning"
	"github.com/kapctl/kap/internal/ui/prompt"
	"github.com/kapctl/kap/internal/util/retry"
)

// Dependencies are the external collaborators of the lifecycle operations.
// An operation only touches the ones it needs; the rest may be nil.
type Dependencies struct {
	Provisioner Provisioner
	Locator     EndpointLocator
	Dialer      ssh.Dialer
	Buckets     BucketProber
	Prompter    Prompter

	// Persist stores the accepted cluster spec. It runs once the request has
	// passed its checks and before anything is changed.
	Persist func(*config.ClusterSpec) error

	// Output receives the relayed output of remote tools. Defaults to stdout.
	Output io.Writer
}

// Orchestrator runs the lifecycle operations.
type Orchestrator struct {
	deps Dependencies
}

// New creates an orchestrator.
func New(deps Dependencies) *Orchestrator {
	if deps.Output == nil {
		deps.Output = os.Stdout
	}
	return &Orchestrator{deps: deps}
}

var (
	errNoDialer   = errors.New("no SSH dialer configured")
	errNoEndpoint = errors.New("service endpoint has not been resolved")
)

func infraWorkspace(spec *config.ClusterSpec) terraform.Workspace {
	return terraform.Workspace{
		Dir:      spec.InfraDir(),
		VarFile:  spec.VarFile(),
		PlanFile: filepath.Join(spec.InfraDir(), config.PlanFileName),
	}
}

func backupWorkspace(spec *config.ClusterSpec) terraform.Workspace {
	return terraform.Workspace{
		Dir:      spec.BackupDir(),
		PlanFile: filepath.Join(spec.BackupDir(), config.PlanFileName),
	}
}

// withSession opens a session to the resolved endpoint for the duration of fn.
func (o *Orchestrator) withSession(ctx *provisioning.Context, fn func(*ssh.Session) error) error {
	if o.deps.Dialer == nil {
		return errNoDialer
	}
	endpoint := ctx.State.Endpoint
	if endpoint == nil {
		return errNoEndpoint
	}
	return ssh.WithSession(ctx, o.deps.Dialer, endpoint.Address(), ctx.Bounds.SessionPolicy(), fn,
		ssh.WithSessionLogger(ctx.Observer.Logr()),
		ssh.WithConnectOptions(ctx.RetryOptions()...))
}

// confirm asks question. An interrupted prompt cancels the operation.
func (o *Orchestrator) confirm(ctx *provisioning.Context, question string) (bool, error) {
	ok, err := o.deps.Prompter.Confirm(ctx, question)
	if errors.Is(err, prompt.ErrAborted) {
		return false, provisioning.ErrCancelled
	}
	return ok, err
}

// persistStages saves the accepted spec. It is left out when nothing persists.
func (o *Orchestrator) persistStages() []provisioning.Stage {
	if o.deps.Persist == nil {
		return nil
	}
	return []provisioning.Stage{{
		Name: "persist-config",
		Run: func(ctx *provisioning.Context) error {
			return o.deps.Persist(ctx.Spec)
		},
	}}
}

// transfer retries one file copy under the transfer policy.
func transfer(ctx *provisioning.Context, copyFile func() error) error {
	opts := append([]retry.Option{
		retry.OnFailure(func(int, error) {
			ctx.Observer.Printf("Configuring cluster environment...")
		}),
	}, ctx.RetryOptions()...)
	return retry.Do(ctx, ctx.Bounds.TransferPolicy(), copyFile, opts...)
}

func (o *Orchestrator) awaitEndpointStage() provisioning.Stage {
	return provisioning.Stage{
		Name: "await-endpoint",
		Run: func(ctx *provisioning.Context) error {
			spec := ctx.Spec
			endpoint, err := o.deps.Locator.Locate(ctx, spec.Cluster.EndpointTag, spec.Cluster.Region)
			if err != nil {
				return err
			}
			ctx.State.Endpoint = endpoint
			ctx.Observer.Printf("Service node %s found at %s", endpoint.InstanceID, endpoint.Address())
			return nil
		},
	}
}

// retrieveKubeconfigStage pulls remotePath to the local kube dir and checks it.
func (o *Orchestrator) retrieveKubeconfigStage(remotePath string) provisioning.Stage {
	return provisioning.Stage{
		Name:     "retrieve-kubeconfig",
		Resource: remotePath,
		Run: func(ctx *provisioning.Context) error {
			ctx.Observer.Printf("Setting local environment...")
			local := ctx.Spec.KubeconfigPath()

			err := o.withSession(ctx, func(s *ssh.Session) error {
				return transfer(ctx, func() error { return s.GetFile(ctx, remotePath, local) })
			})
			if err != nil {
				return err
			}

			info, err := kubeconfig.Inspect(local)
			if err != nil {
				return err
			}
			ctx.State.Kubeconfig = info
			provisioning.LogResourceCreated(ctx.Observer, "retrieve-kubeconfig", "kubeconfig", local)
			ctx.Observer.Printf("Kubeconfig for %s written to %s", info.Server, local)
			return nil
		},
	}
}

type dependency struct {
	name string
	set  bool
}

// requireDeps fails on the first dependency the operation needs but was not given.
func requireDeps(deps ...dependency) error {
	for _, d := range deps {
		if !d.set {
			return fmt.Errorf("orchestrator is missing its %s", d.name)
		}
	}
	return nil
}

// stream runs command with its output relayed to the operator. A nonzero
// exit status is a CommandError.
func (o *Orchestrator) stream(ctx *provisioning.Context, s *ssh.Session, command string) error {
	status, err := s.Stream(ctx, command, o.deps.Output, o.deps.Output)
	if err != nil {
		return err
	}
	if status != 0 {
		return &ssh.CommandError{Host: s.Host(), Command: command, ExitStatus: status}
	}
	return nil
}
