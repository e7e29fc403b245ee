package config

// Overrides are the values set explicitly on the command line.
// A nil field leaves the persisted or default value in place.
type Overrides struct {
	Shape             *DeployedShape
	KubernetesVersion *string
	Region            *string
	TerraformDir      *string
	KubeDir           *string
	PrivateKey        *string
	BackupCredentials *string
	BackupNamespaces  *string

	// InstanceType sets all three instance types and wins over the per-role values.
	InstanceType        *string
	MasterInstanceType  *string
	WorkerInstanceType  *string
	ServiceInstanceType *string

	// Backup names the snapshot to take. Backup is enabled for the invocation
	// only when it is set.
	Backup *string
}

// Apply returns a copy of spec with the overrides layered on top.
func (o Overrides) Apply(spec *ClusterSpec) *ClusterSpec {
	merged := *spec

	if o.Shape != nil {
		merged.Cluster.Masters = o.Shape.Masters
		merged.Cluster.Workers = o.Shape.Workers
	}
	set(&merged.Cluster.KubernetesVersion, o.KubernetesVersion)
	set(&merged.Cluster.Region, o.Region)
	set(&merged.Paths.TerraformDir, o.TerraformDir)
	set(&merged.Paths.KubeDir, o.KubeDir)
	set(&merged.Paths.PrivateKey, o.PrivateKey)
	set(&merged.Paths.BackupCredentials, o.BackupCredentials)
	set(&merged.Backup.Namespaces, o.BackupNamespaces)

	set(&merged.Cluster.MasterInstanceType, o.MasterInstanceType)
	set(&merged.Cluster.WorkerInstanceType, o.WorkerInstanceType)
	set(&merged.Cluster.ServiceInstanceType, o.ServiceInstanceType)
	if o.InstanceType != nil {
		merged.Cluster.MasterInstanceType = *o.InstanceType
		merged.Cluster.WorkerInstanceType = *o.InstanceType
		merged.Cluster.ServiceInstanceType = *o.InstanceType
	}

	merged.Backup.Enabled = o.Backup != nil
	set(&merged.Backup.Name, o.Backup)

	return &merged
}

func set(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
