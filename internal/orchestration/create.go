package orchestration

import (
	"fmt"
	"os"

	"github.com/kapctl/kap/internal/config"
	"github.com/kapctl/kap/internal/inventory"
	"github.com/kapctl/kap/internal/platform/ssh"
	"github.com/kapctl/kap/internal/provisioning"
	"github.com/kapctl/kap/internal/util/retry"
)

const (
	reviewQuestion = "Would you like to check the changes that will be applied to your AWS account before applying?"
	applyQuestion  = "Would you like to apply this changes?"
)

// Create provisions the infrastructure, configures the service node, runs
// the remote automation and retrieves the kubeconfig.
func (o *Orchestrator) Create(ctx *provisioning.Context) error {
	if err := requireDeps(
		dependency{"provisioner", o.deps.Provisioner != nil},
		dependency{"endpoint locator", o.deps.Locator != nil},
		dependency{"SSH dialer", o.deps.Dialer != nil},
		dependency{"prompter", o.deps.Prompter != nil},
	); err != nil {
		return err
	}

	stages := []provisioning.Stage{
		provisioning.PreflightStage(provisioning.Checks{
			InfraWorkspace:    true,
			PrivateKey:        true,
			BackupCredentials: true,
		}),
		o.scalingGuardStage(),
		o.confirmReviewStage(),
	}
	stages = append(stages, o.persistStages()...)
	if ctx.Spec.Backup.Enabled {
		stages = append(stages, o.backupStorageStage())
	}
	stages = append(stages,
		o.infraInitStage(),
		o.provisionStage(),
		o.awaitEndpointStage(),
		o.awaitEnvironmentStage(),
		o.configureEnvironmentStage(),
		o.remoteAutomationStage(),
		o.retrieveKubeconfigStage(ctx.Spec.Remote.Kubeconfig),
	)

	if err := provisioning.RunStages(ctx, stages); err != nil {
		return err
	}
	ctx.Observer.Printf("The cluster has been successfully deployed")
	return nil
}

// scalingGuardStage rejects a request that would remove nodes from a
// cluster recorded in the infrastructure workspace state.
func (o *Orchestrator) scalingGuardStage() provisioning.Stage {
	return provisioning.Stage{
		Name: "scaling-guard",
		Run: func(ctx *provisioning.Context) error {
			ws := infraWorkspace(ctx.Spec)
			if !o.deps.Provisioner.Initialized(ws) {
				return nil
			}
			output, err := o.deps.Provisioner.Output(ctx, ws)
			if err != nil {
				return err
			}
			deployed, err := inventory.ReadShape(output)
			if err != nil {
				return err
			}
			if deployed != nil {
				ctx.Observer.Printf("A cluster was found. Applying modifications...")
			}
			return CheckScaling(ctx.Spec.Shape(), deployed)
		},
	}
}

// confirmReviewStage asks whether to show the plan before applying. It runs
// ahead of every terraform command so an invalid answer changes nothing.
func (o *Orchestrator) confirmReviewStage() provisioning.Stage {
	return provisioning.Stage{
		Name: "confirm-review",
		Run: func(ctx *provisioning.Context) error {
			review, err := o.confirm(ctx, reviewQuestion)
			if err != nil {
				return err
			}
			ctx.State.ReviewPlan = review
			return nil
		},
	}
}

func (o *Orchestrator) backupStorageStage() provisioning.Stage {
	return provisioning.Stage{
		Name:     "backup-storage",
		Resource: config.BackupWorkspace,
		Run: func(ctx *provisioning.Context) error {
			ctx.Observer.Printf("Setting backup storage...")
			ws := backupWorkspace(ctx.Spec)
			if !o.deps.Provisioner.Initialized(ws) {
				if err := o.deps.Provisioner.Init(ctx, ws); err != nil {
					return err
				}
			}
			if err := o.deps.Provisioner.Plan(ctx, ws); err != nil {
				return err
			}
			if err := o.deps.Provisioner.Apply(ctx, ws); err != nil {
				return err
			}
			provisioning.LogResourceCreated(ctx.Observer, "backup-storage", "bucket", ctx.Spec.Backup.Bucket)
			return nil
		},
	}
}

func (o *Orchestrator) infraInitStage() provisioning.Stage {
	return provisioning.Stage{
		Name:     "infra-init",
		Resource: config.InfraWorkspace,
		Done: func(ctx *provisioning.Context) (bool, error) {
			return o.deps.Provisioner.Initialized(infraWorkspace(ctx.Spec)), nil
		},
		Run: func(ctx *provisioning.Context) error {
			ctx.Observer.Printf("Initializing Terraform environment...")
			return o.deps.Provisioner.Init(ctx, infraWorkspace(ctx.Spec))
		},
	}
}

// provisionStage writes the variable file and applies the infrastructure
// plan, asking for approval first when the operator chose to review it.
func (o *Orchestrator) provisionStage() provisioning.Stage {
	return provisioning.Stage{
		Name:     "provision-infra",
		Resource: config.InfraWorkspace,
		Run: func(ctx *provisioning.Context) error {
			ws := infraWorkspace(ctx.Spec)
			if err := config.MergeJSONFile(ws.VarFile, ctx.Spec.TerraformVars()); err != nil {
				return err
			}

			review := ctx.State.ReviewPlan
			if review {
				ctx.Observer.Printf("Printing changes...")
			}
			if err := o.deps.Provisioner.Plan(ctx, ws); err != nil {
				return err
			}

			if review {
				apply, err := o.confirm(ctx, applyQuestion)
				if err != nil {
					return err
				}
				if !apply {
					ctx.Observer.Printf("Apply cancelled.")
					ctx.Observer.Printf("Review the terraform files in %s before trying again.", ws.Dir)
					return provisioning.ErrCancelled
				}
			}

			ctx.Observer.Printf("Applying changes...")
			return o.deps.Provisioner.Apply(ctx, ws)
		},
	}
}

// awaitEnvironmentStage waits for the service node to finish its own
// bootstrap, signalled by the presence of the remote playbook directory.
func (o *Orchestrator) awaitEnvironmentStage() provisioning.Stage {
	return provisioning.Stage{
		Name: "await-environment",
		Run: func(ctx *provisioning.Context) error {
			dir := ctx.Spec.Remote.WorkDir
			return o.withSession(ctx, func(s *ssh.Session) error {
				probe := func() error {
					found, err := s.RemoteFileExists(ctx, dir)
					if err != nil {
						return err
					}
					if !found {
						return fmt.Errorf("%s not present yet", dir)
					}
					return nil
				}
				opts := append([]retry.Option{
					retry.OnFailure(func(attempt int, _ error) {
						ctx.Observer.Printf("Configuring cluster environment...")
						ctx.Observer.Progress("await-environment", attempt, ctx.Bounds.Readiness)
					}),
				}, ctx.RetryOptions()...)
				if err := retry.Do(ctx, ctx.Bounds.ReadinessPolicy(), probe, opts...); err != nil {
					return err
				}
				ctx.Observer.Printf("KAP directory found")
				return nil
			})
		},
	}
}

// configureEnvironmentStage regenerates the inventory and playbook
// variables and pushes them with the credentials to the service node.
func (o *Orchestrator) configureEnvironmentStage() provisioning.Stage {
	return provisioning.Stage{
		Name: "configure-environment",
		Run: func(ctx *provisioning.Context) error {
			spec := ctx.Spec

			output, err := o.deps.Provisioner.Output(ctx, infraWorkspace(spec))
			if err != nil {
				return err
			}
			ctx.State.ProvisionerOutput = output

			doc, err := inventory.Build(output, inventory.Vars{User: spec.Remote.User, KeyPath: spec.RemoteKeyPath()})
			if err != nil {
				return err
			}
			ctx.State.Inventory = doc
			data, err := doc.Encode()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(spec.Paths.WorkDir, 0o755); err != nil {
				return fmt.Errorf("failed to create work directory: %w", err)
			}
			if err := os.WriteFile(spec.InventoryFile(), data, 0o644); err != nil {
				return fmt.Errorf("failed to write inventory: %w", err)
			}
			ctx.Observer.Printf("Inventory written with %d hosts", len(doc.Hosts()))

			vars := spec.DynamicVars()
			vars["lb_address_pub"] = ctx.State.Endpoint.Address()
			if err := config.MergeJSONFile(spec.DynamicVarsFile(), vars); err != nil {
				return err
			}

			return o.withSession(ctx, func(s *ssh.Session) error {
				ctx.Observer.Printf("Copying configuration files to Service Machine...")
				uploads := []struct{ local, remote string }{
					{spec.DynamicVarsFile(), spec.RemoteWorkFile(config.DynamicVarsName)},
					{spec.InventoryFile(), spec.RemoteWorkFile(config.InventoryFileName)},
				}
				for _, u := range uploads {
					if err := transfer(ctx, func() error { return s.PutFile(ctx, u.local, u.remote) }); err != nil {
						return err
					}
				}

				ctx.Observer.Printf("Copying SSH key to Service Machine...")
				if err := pushCredential(ctx, s, "ssh-key", spec.Paths.PrivateKey, spec.RemoteKeyPath()); err != nil {
					return err
				}
				if spec.Backup.Enabled {
					if err := pushCredential(ctx, s, "backup-credentials", spec.Paths.BackupCredentials, spec.RemoteBackupCredentialsPath()); err != nil {
						return err
					}
				}

				ctx.Observer.Printf("The cluster environment has been successfully configured.")
				return nil
			})
		},
	}
}

// pushCredential copies a secret file once and restricts it to its owner.
// A copy already present on the node is left untouched.
func pushCredential(ctx *provisioning.Context, s *ssh.Session, kind, local, remote string) error {
	exists, err := s.RemoteFileExists(ctx, remote)
	if err != nil {
		return err
	}
	if exists {
		provisioning.LogResourceExists(ctx.Observer, "configure-environment", kind, remote)
		return nil
	}
	if err := transfer(ctx, func() error { return s.PutFile(ctx, local, remote) }); err != nil {
		return err
	}
	if _, err := s.Run(ctx, "chmod 400 "+ssh.Quote(remote)); err != nil {
		return fmt.Errorf("failed to restrict %s: %w", remote, err)
	}
	provisioning.LogResourceCreated(ctx.Observer, "configure-environment", kind, remote)
	return nil
}

func (o *Orchestrator) remoteAutomationStage() provisioning.Stage {
	return provisioning.Stage{
		Name: "remote-automation",
		Run: func(ctx *provisioning.Context) error {
			remote := ctx.Spec.Remote
			ctx.Observer.Printf("Deploying Cluster...")
			command := fmt.Sprintf("cd %s && ansible-playbook %s", ssh.Quote(remote.WorkDir), ssh.Quote(remote.Playbook))
			return o.withSession(ctx, func(s *ssh.Session) error {
				return o.stream(ctx, s, command)
			})
		},
	}
}
