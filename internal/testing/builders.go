package testing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kapctl/kap/internal/config"
)

// SpecBuilder provides a fluent interface for constructing test specs.
// Each method returns a new builder (immutable) for chaining.
type SpecBuilder struct {
	t    *testing.T
	spec config.ClusterSpec
}

// NewSpecBuilder starts from the defaults with every local path moved into
// a fresh temp dir. The infrastructure workspace and private key exist.
func NewSpecBuilder(t *testing.T) *SpecBuilder {
	t.Helper()
	dir := t.TempDir()

	spec := *config.Default()
	spec.Paths = config.Paths{
		TerraformDir:      filepath.Join(dir, "terraform"),
		KubeDir:           filepath.Join(dir, ".kube"),
		PrivateKey:        filepath.Join(dir, "kap-key.pem"),
		BackupCredentials: filepath.Join(dir, "kap-s3-credentials"),
		WorkDir:           filepath.Join(dir, "work"),
	}

	for _, d := range []string{spec.InfraDir(), spec.BackupDir(), spec.Paths.WorkDir} {
		mustMkdir(t, d)
	}
	mustWrite(t, spec.Paths.PrivateKey, "private-key")
	mustWrite(t, spec.Paths.BackupCredentials, "[default]\naws_access_key_id=x\n")

	return &SpecBuilder{t: t, spec: spec}
}

// WithShape sets the requested master and worker counts.
func (b *SpecBuilder) WithShape(masters, workers int) *SpecBuilder {
	nb := b.clone()
	nb.spec.Cluster.Masters = masters
	nb.spec.Cluster.Workers = workers
	return nb
}

// WithBackup enables backup under name.
func (b *SpecBuilder) WithBackup(name string) *SpecBuilder {
	nb := b.clone()
	nb.spec.Backup.Enabled = true
	nb.spec.Backup.Name = name
	return nb
}

// WithRegion sets the region.
func (b *SpecBuilder) WithRegion(region string) *SpecBuilder {
	nb := b.clone()
	nb.spec.Cluster.Region = region
	return nb
}

// Build returns the constructed spec.
func (b *SpecBuilder) Build() *config.ClusterSpec {
	spec := b.spec // copy
	return &spec
}

func (b *SpecBuilder) clone() *SpecBuilder {
	return &SpecBuilder{t: b.t, spec: b.spec}
}

func mustMkdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
