package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kapctl/kap/internal/config"
)

// shapeValue parses -n master:worker during flag parsing.
type shapeValue struct {
	shape config.DeployedShape
}

var _ pflag.Value = (*shapeValue)(nil)

func (v *shapeValue) String() string {
	if v.shape == (config.DeployedShape{}) {
		return ""
	}
	return v.shape.String()
}

func (v *shapeValue) Set(s string) error {
	shape, err := config.ParseShape(s)
	if err != nil {
		return err
	}
	v.shape = shape
	return nil
}

func (v *shapeValue) Type() string { return "master:worker" }

// specFlags binds the configuration overrides shared by the lifecycle commands.
type specFlags struct {
	shape               shapeValue
	kubernetesVersion   string
	region              string
	terraformDir        string
	kubeDir             string
	privateKey          string
	backupCredentials   string
	backupNamespaces    string
	instanceType        string
	masterInstanceType  string
	workerInstanceType  string
	serviceInstanceType string
	backup              string
}

func bindSpecFlags(cmd *cobra.Command) *specFlags {
	f := &specFlags{}
	fs := cmd.Flags()
	fs.VarP(&f.shape, "nodes", "n", "Master and worker count, e.g. 3:2")
	fs.StringVar(&f.kubernetesVersion, "kubernetes-version", "", "Kubernetes version installed by the playbook")
	fs.StringVar(&f.region, "region", "", "AWS region")
	fs.StringVar(&f.terraformDir, "tf-dir", "", "Directory holding the Infra_deploy and s3_deploy workspaces")
	fs.StringVar(&f.kubeDir, "kube-dir", "", "Directory receiving the kubeconfig")
	fs.StringVar(&f.privateKey, "private-key-path", "", "Private key of the cluster key pair")
	fs.StringVar(&f.backupCredentials, "s3-credentials-path", "", "Credentials file for the backup bucket")
	fs.StringVar(&f.backupNamespaces, "backup-namespaces", "", "Namespaces included in backups")
	fs.StringVar(&f.instanceType, "instance-type", "", "Instance type for every node role")
	fs.StringVar(&f.masterInstanceType, "master-instance-type", "", "Instance type of the masters")
	fs.StringVar(&f.workerInstanceType, "worker-instance-type", "", "Instance type of the workers")
	fs.StringVar(&f.serviceInstanceType, "service-instance-type", "", "Instance type of the service node")
	fs.StringVar(&f.backup, "backup", "", "Enable backups under this name")
	return f
}

// overrides returns only the flags that were set on the command line.
func (f *specFlags) overrides(cmd *cobra.Command) config.Overrides {
	fs := cmd.Flags()
	str := func(name, value string) *string {
		if !fs.Changed(name) {
			return nil
		}
		return &value
	}

	o := config.Overrides{
		KubernetesVersion:   str("kubernetes-version", f.kubernetesVersion),
		Region:              str("region", f.region),
		TerraformDir:        str("tf-dir", f.terraformDir),
		KubeDir:             str("kube-dir", f.kubeDir),
		PrivateKey:          str("private-key-path", f.privateKey),
		BackupCredentials:   str("s3-credentials-path", f.backupCredentials),
		BackupNamespaces:    str("backup-namespaces", f.backupNamespaces),
		InstanceType:        str("instance-type", f.instanceType),
		MasterInstanceType:  str("master-instance-type", f.masterInstanceType),
		WorkerInstanceType:  str("worker-instance-type", f.workerInstanceType),
		ServiceInstanceType: str("service-instance-type", f.serviceInstanceType),
		Backup:              str("backup", f.backup),
	}
	if fs.Changed("nodes") {
		shape := f.shape.shape
		o.Shape = &shape
	}
	return o
}
