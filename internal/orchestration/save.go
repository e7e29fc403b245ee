package orchestration

import (
	"fmt"

	"github.com/kapctl/kap/internal/platform/ssh"
	"github.com/kapctl/kap/internal/provisioning"
	"github.com/kapctl/kap/internal/util/retry"
)

// Save snapshots the configured namespaces into the backup bucket.
func (o *Orchestrator) Save(ctx *provisioning.Context) error {
	if err := requireDeps(
		dependency{"bucket prober", o.deps.Buckets != nil},
		dependency{"endpoint locator", o.deps.Locator != nil},
		dependency{"SSH dialer", o.deps.Dialer != nil},
	); err != nil {
		return err
	}

	stages := append([]provisioning.Stage{
		provisioning.PreflightStage(provisioning.Checks{PrivateKey: true, BackupName: true}),
	}, o.persistStages()...)
	err := provisioning.RunStages(ctx, append(stages,
		o.awaitBackupTargetStage(),
		o.awaitEndpointStage(),
		o.backupStage(),
	))
	if err != nil {
		return err
	}
	ctx.Observer.Printf("Cluster saved successfully!")
	return nil
}

// awaitBackupTargetStage polls until the bucket exists.
func (o *Orchestrator) awaitBackupTargetStage() provisioning.Stage {
	return provisioning.Stage{
		Name: "await-backup-target",
		Run: func(ctx *provisioning.Context) error {
			bucket := ctx.Spec.Backup.Bucket
			probe := func() error {
				exists, err := o.deps.Buckets.BucketExists(ctx, bucket)
				if err != nil {
					return err
				}
				if !exists {
					return fmt.Errorf("bucket %s does not exist yet", bucket)
				}
				return nil
			}
			opts := append([]retry.Option{
				retry.OnFailure(func(int, error) {
					ctx.Observer.Printf("Waiting for backup bucket %s...", bucket)
				}),
			}, ctx.RetryOptions()...)
			return retry.Do(ctx, ctx.Bounds.BackupTargetPolicy(), probe, opts...)
		},
	}
}

func (o *Orchestrator) backupStage() provisioning.Stage {
	return provisioning.Stage{
		Name: "backup",
		Run: func(ctx *provisioning.Context) error {
			backup := ctx.Spec.Backup
			ctx.Observer.Printf("Saving cluster state to backup %s...", backup.Name)
			command := fmt.Sprintf("velero backup create %s --include-namespaces %s",
				ssh.Quote(backup.Name), ssh.Quote(backup.Namespaces))
			return o.withSession(ctx, func(s *ssh.Session) error {
				return o.stream(ctx, s, command)
			})
		},
	}
}
