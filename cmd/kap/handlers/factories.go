package handlers

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/kapctl/kap/internal/config"
	"github.com/kapctl/kap/internal/orchestration"
	"github.com/kapctl/kap/internal/platform/ec2"
	"github.com/kapctl/kap/internal/platform/s3"
	"github.com/kapctl/kap/internal/platform/ssh"
	"github.com/kapctl/kap/internal/platform/terraform"
	"github.com/kapctl/kap/internal/provisioning"
	"github.com/kapctl/kap/internal/ui/prompt"
	"github.com/kapctl/kap/internal/ui/style"
	"github.com/kapctl/kap/internal/util/prerequisites"
	"github.com/kapctl/kap/internal/util/retry"
)

// Factory function variables - can be replaced in tests.
var (
	stdout io.Writer = os.Stdout

	newProvisioningContext = provisioning.NewContext

	newObserver = func(verbosity int) provisioning.Observer {
		return provisioning.NewConsoleObserver(provisioning.WithVerbosity(verbosity))
	}

	newProvisioner = func(pCtx *provisioning.Context, out io.Writer) orchestration.Provisioner {
		return terraform.NewRunner(out, terraform.WithLogger(pCtx.Observer.Logr()))
	}

	newLocator = func(pCtx *provisioning.Context) orchestration.EndpointLocator {
		return ec2.NewLocator(pCtx.Bounds.DiscoveryPolicy(),
			ec2.WithLogger(pCtx.Observer.Logr()),
			ec2.WithRetryOptions(pCtx.RetryOptions()...))
	}

	newDialer = func(spec *config.ClusterSpec) ssh.Dialer {
		return &keyFileDialer{user: spec.Remote.User, path: spec.Paths.PrivateKey}
	}

	newBucketProber = func(ctx context.Context, spec *config.ClusterSpec) (orchestration.BucketProber, error) {
		client, err := s3.NewClient(ctx, spec.Cluster.Region)
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	newPrompter = func() orchestration.Prompter {
		return prompt.NewConsole()
	}

	newPrinter = style.NewPrinter

	checkPrerequisites = func() error {
		return prerequisites.CheckDefault().Error()
	}

	missingOptionalTools = func() []prerequisites.Tool {
		return prerequisites.Check(prerequisites.OptionalTools()).Missing
	}
)

// keyFileDialer reads the private key on the first dial, after preflight
// had a chance to report a missing file.
type keyFileDialer struct {
	user, path string

	once   sync.Once
	dialer ssh.Dialer
	err    error
}

func (d *keyFileDialer) Dial(ctx context.Context, host string) (ssh.Transport, error) {
	d.once.Do(func() {
		d.dialer, d.err = ssh.NewKeyDialerFromFile(d.user, d.path)
	})
	if d.err != nil {
		return nil, retry.Fatal(d.err)
	}
	return d.dialer.Dial(ctx, host)
}
