package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Workspace and file names shared with the terraform modules and the remote playbook.
const (
	InfraWorkspace    = "Infra_deploy"
	BackupWorkspace   = "s3_deploy"
	VarFileName       = "dev.json"
	PlanFileName      = "k8s-plan.tfplan"
	DynamicVarsName   = "k8s_dinamic_vars.json"
	InventoryFileName = "inventory.json"
	KubeconfigName    = "config"

	// DefaultEndpointTag is the Name tag of the service node.
	DefaultEndpointTag = "kservice"
)

// ClusterSpec is the desired state of one cluster.
type ClusterSpec struct {
	Cluster Cluster `yaml:"cluster"`
	Paths   Paths   `yaml:"paths"`
	Backup  Backup  `yaml:"backup"`
	Remote  Remote  `yaml:"remote"`

	// MetricsTextfile, when set, receives stage and retry metrics in the
	// Prometheus text format after every run.
	MetricsTextfile string `yaml:"metrics_textfile,omitempty"`
}

// Cluster holds the provisioning parameters handed to terraform.
type Cluster struct {
	Region              string `yaml:"region" validate:"required"`
	Masters             int    `yaml:"masters" validate:"gte=1"`
	Workers             int    `yaml:"workers" validate:"gte=0"`
	MasterInstanceType  string `yaml:"master_instance_type" validate:"required"`
	WorkerInstanceType  string `yaml:"worker_instance_type" validate:"required"`
	ServiceInstanceType string `yaml:"service_instance_type" validate:"required"`
	KubernetesVersion   string `yaml:"kubernetes_version" validate:"required"`
	EndpointTag         string `yaml:"endpoint_tag" validate:"required"`
}

// Paths locates the local inputs and outputs of an operation.
type Paths struct {
	TerraformDir      string `yaml:"terraform_dir" validate:"required"`
	KubeDir           string `yaml:"kube_dir" validate:"required"`
	PrivateKey        string `yaml:"private_key" validate:"required"`
	BackupCredentials string `yaml:"backup_credentials,omitempty"`
	WorkDir           string `yaml:"work_dir" validate:"required"`
}

// Backup configures velero snapshots and the bucket they are written to.
type Backup struct {
	Enabled    bool   `yaml:"enabled"`
	Name       string `yaml:"name,omitempty" validate:"required_if=Enabled true"`
	Bucket     string `yaml:"bucket" validate:"required"`
	Namespaces string `yaml:"namespaces" validate:"required"`
}

// Remote describes the layout of the service node.
type Remote struct {
	User              string `yaml:"user" validate:"required"`
	Home              string `yaml:"home" validate:"required"`
	WorkDir           string `yaml:"work_dir" validate:"required"`
	Playbook          string `yaml:"playbook" validate:"required"`
	Kubeconfig        string `yaml:"kubeconfig" validate:"required"`
	ClusterKubeconfig string `yaml:"cluster_kubeconfig" validate:"required"`
}

// DeployedShape is the master/worker count of a cluster that already exists.
type DeployedShape struct {
	Masters int
	Workers int
}

// Default returns the built-in specification.
func Default() *ClusterSpec {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return &ClusterSpec{
		Cluster: Cluster{
			Region:              "eu-west-3",
			Masters:             3,
			Workers:             2,
			MasterInstanceType:  "t4g.small",
			WorkerInstanceType:  "t4g.small",
			ServiceInstanceType: "t4g.small",
			KubernetesVersion:   "1.31",
			EndpointTag:         DefaultEndpointTag,
		},
		Paths: Paths{
			TerraformDir:      "terraform",
			KubeDir:           filepath.Join(home, ".kube"),
			PrivateKey:        filepath.Join(home, ".ssh", "kap-key.pem"),
			BackupCredentials: filepath.Join(home, ".aws", "kap-s3-credentials"),
			WorkDir:           ".",
		},
		Backup: Backup{
			Bucket:     "kap-bucket",
			Namespaces: "default",
		},
		Remote: Remote{
			User:              "ubuntu",
			Home:              "/home/ubuntu",
			WorkDir:           "/home/ubuntu/kap",
			Playbook:          "k8s_deploy.yaml",
			Kubeconfig:        "/tmp/kap/kubeconfig",
			ClusterKubeconfig: "/home/ubuntu/.kube/config",
		},
	}
}

// InfraDir is the terraform workspace of the cluster itself.
func (s *ClusterSpec) InfraDir() string {
	return filepath.Join(s.Paths.TerraformDir, InfraWorkspace)
}

// BackupDir is the terraform workspace of the backup bucket.
func (s *ClusterSpec) BackupDir() string {
	return filepath.Join(s.Paths.TerraformDir, BackupWorkspace)
}

// VarFile is the terraform variable file of the infrastructure workspace.
func (s *ClusterSpec) VarFile() string {
	return filepath.Join(s.InfraDir(), VarFileName)
}

// DynamicVarsFile holds the playbook variables pushed to the service node.
func (s *ClusterSpec) DynamicVarsFile() string {
	return filepath.Join(s.Paths.WorkDir, DynamicVarsName)
}

// InventoryFile is where the generated ansible inventory is written.
func (s *ClusterSpec) InventoryFile() string {
	return filepath.Join(s.Paths.WorkDir, InventoryFileName)
}

// KubeconfigPath is the local cluster-access credential.
func (s *ClusterSpec) KubeconfigPath() string {
	return filepath.Join(s.Paths.KubeDir, KubeconfigName)
}

// KeyName is the cloud key pair name, derived from the private key file stem.
func (s *ClusterSpec) KeyName() string {
	base := filepath.Base(s.Paths.PrivateKey)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// RemoteKeyPath is where the private key lives on the service node.
func (s *ClusterSpec) RemoteKeyPath() string {
	return remoteJoin(s.Remote.Home, filepath.Base(s.Paths.PrivateKey))
}

// RemoteBackupCredentialsPath is where the bucket credentials live on the service node.
func (s *ClusterSpec) RemoteBackupCredentialsPath() string {
	return remoteJoin(s.Remote.Home, filepath.Base(s.Paths.BackupCredentials))
}

// RemoteWorkFile returns name inside the remote playbook directory.
func (s *ClusterSpec) RemoteWorkFile(name string) string {
	return remoteJoin(s.Remote.WorkDir, name)
}

// Shape returns the requested master/worker count.
func (s *ClusterSpec) Shape() DeployedShape {
	return DeployedShape{Masters: s.Cluster.Masters, Workers: s.Cluster.Workers}
}

// TerraformVars is the overlay written to the infrastructure variable file.
func (s *ClusterSpec) TerraformVars() map[string]any {
	return map[string]any{
		"region":                s.Cluster.Region,
		"num_masters":           s.Cluster.Masters,
		"num_workers":           s.Cluster.Workers,
		"master_instance_type":  s.Cluster.MasterInstanceType,
		"worker_instance_type":  s.Cluster.WorkerInstanceType,
		"service_instance_type": s.Cluster.ServiceInstanceType,
		"key_name":              s.KeyName(),
	}
}

// DynamicVars is the overlay written to the playbook variable file.
func (s *ClusterSpec) DynamicVars() map[string]any {
	return map[string]any{
		"kubernetes_version": s.Cluster.KubernetesVersion,
		"backup":             s.Backup.Enabled,
		"backup_name":        s.Backup.Name,
	}
}

// remoteJoin joins slash-separated paths on the service node regardless of the local OS.
func remoteJoin(dir, name string) string {
	return strings.TrimRight(dir, "/") + "/" + name
}
