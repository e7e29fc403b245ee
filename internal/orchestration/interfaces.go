package orchestration

import (
	"context"

	"github.com/kapctl/kap/internal/platform/ec2"
	"github.com/kapctl/kap/internal/platform/terraform"
)

// Provisioner drives terraform workspaces. Implemented by terraform.Runner.
type Provisioner interface {
	Initialized(ws terraform.Workspace) bool
	Init(ctx context.Context, ws terraform.Workspace) error
	Plan(ctx context.Context, ws terraform.Workspace) error
	Apply(ctx context.Context, ws terraform.Workspace) error
	Destroy(ctx context.Context, ws terraform.Workspace) error
	Output(ctx context.Context, ws terraform.Workspace) ([]byte, error)
}

// EndpointLocator resolves the service node. Implemented by ec2.Locator.
type EndpointLocator interface {
	Locate(ctx context.Context, tag, region string) (*ec2.ServiceEndpoint, error)
}

// BucketProber checks whether the backup bucket exists. Implemented by s3.Client.
type BucketProber interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
}

// Prompter asks yes/no questions. Implemented by prompt.Console.
type Prompter interface {
	Confirm(ctx context.Context, question string) (bool, error)
}
