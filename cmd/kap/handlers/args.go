package handlers

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/kapctl/kap/internal/config"
	"github.com/kapctl/kap/internal/ui/style"
)

// ResetArgs handles the reset-args command. The configuration file is
// rewritten with the defaults, and so is the terraform variable file when
// its workspace exists.
func ResetArgs(_ context.Context, opts Options) error {
	path, err := configPath(opts)
	if err != nil {
		return err
	}

	spec := config.Default()
	if err := config.Save(spec, path); err != nil {
		return err
	}
	if info, err := os.Stat(spec.InfraDir()); err == nil && info.IsDir() {
		if err := config.MergeJSONFile(spec.VarFile(), spec.TerraformVars()); err != nil {
			return err
		}
	}

	newPrinter(stdout).Success("Arguments reset successfully")
	return nil
}

// ListArgs handles the list-args command.
func ListArgs(_ context.Context, opts Options) error {
	path, err := configPath(opts)
	if err != nil {
		return err
	}
	spec, err := config.Load(path)
	if err != nil {
		return err
	}

	p := newPrinter(stdout)
	p.Title(fmt.Sprintf("Current configuration (%s):", path))
	p.Sections(argSections(spec))
	return nil
}

func argSections(spec *config.ClusterSpec) []style.Section {
	c := spec.Cluster
	b := spec.Backup
	return []style.Section{
		{
			Title: "Environmental configuration:",
			Rows: []style.Row{
				{Key: "tf_dir", Value: spec.Paths.TerraformDir},
				{Key: "kube_dir", Value: spec.Paths.KubeDir},
				{Key: "private_key_path", Value: spec.Paths.PrivateKey},
				{Key: "s3_credentials_path", Value: spec.Paths.BackupCredentials},
				{Key: "work_dir", Value: spec.Paths.WorkDir},
			},
		},
		{
			Title: "Terraform configuration:",
			Rows: []style.Row{
				{Key: "region", Value: c.Region},
				{Key: "num_masters", Value: strconv.Itoa(c.Masters)},
				{Key: "num_workers", Value: strconv.Itoa(c.Workers)},
				{Key: "master_instance_type", Value: c.MasterInstanceType},
				{Key: "worker_instance_type", Value: c.WorkerInstanceType},
				{Key: "service_instance_type", Value: c.ServiceInstanceType},
				{Key: "key_name", Value: spec.KeyName()},
			},
		},
		{
			Title: "Cluster configuration:",
			Rows: []style.Row{
				{Key: "kubernetes_version", Value: c.KubernetesVersion},
				{Key: "backup", Value: strconv.FormatBool(b.Enabled)},
				{Key: "backup_name", Value: b.Name},
				{Key: "backup_bucket", Value: b.Bucket},
				{Key: "backup_namespaces", Value: b.Namespaces},
			},
		},
	}
}
