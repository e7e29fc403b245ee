package ec2

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/go-logr/logr"

	"github.com/kapctl/kap/internal/util/retry"
)

// ErrNotFound is returned when no running instance carries the tag.
var ErrNotFound = errors.New("no running instance found")

// AmbiguousMatchError is returned when more than one running instance carries the tag.
type AmbiguousMatchError struct {
	Tag         string
	InstanceIDs []string
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("%d running instances are tagged Name=%s (%s); exactly one is expected",
		len(e.InstanceIDs), e.Tag, strings.Join(e.InstanceIDs, ", "))
}

// EndpointUnreachableError is returned when the lookup policy is exhausted.
type EndpointUnreachableError struct {
	Tag    string
	Region string
	Err    error
}

func (e *EndpointUnreachableError) Error() string {
	return fmt.Sprintf("unable to reach %s in %s: %v", e.Tag, e.Region, e.Err)
}

func (e *EndpointUnreachableError) Unwrap() error {
	return e.Err
}

// ServiceEndpoint is the resolved service node.
type ServiceEndpoint struct {
	InstanceID string
	PublicDNS  string
	PublicIP   string
	State      string
}

// Address returns the host name used to reach the node.
func (e *ServiceEndpoint) Address() string {
	if e.PublicDNS != "" {
		return e.PublicDNS
	}
	return e.PublicIP
}

// DescribeInstancesAPI is the subset of the EC2 API used by Locator.
type DescribeInstancesAPI interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

// ClientFactory builds an EC2 client for a region.
type ClientFactory func(ctx context.Context, region string) (DescribeInstancesAPI, error)

// NewClient builds an EC2 client from the default credential chain.
func NewClient(ctx context.Context, region string) (DescribeInstancesAPI, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return ec2.NewFromConfig(cfg), nil
}

// Locator finds the service node, polling until it is running.
type Locator struct {
	newClient ClientFactory
	policy    retry.Policy
	log       logr.Logger
	opts      []retry.Option
}

// LocatorOption configures a Locator.
type LocatorOption func(*Locator)

// WithClientFactory replaces the EC2 client constructor.
func WithClientFactory(f ClientFactory) LocatorOption {
	return func(l *Locator) { l.newClient = f }
}

// WithLogger sets the logger used for progress lines.
func WithLogger(log logr.Logger) LocatorOption {
	return func(l *Locator) { l.log = log }
}

// WithRetryOptions forwards options to every poll.
func WithRetryOptions(opts ...retry.Option) LocatorOption {
	return func(l *Locator) { l.opts = append(l.opts, opts...) }
}

// NewLocator creates a Locator bounded by policy.
func NewLocator(policy retry.Policy, opts ...LocatorOption) *Locator {
	l := &Locator{
		newClient: NewClient,
		policy:    policy,
		log:       logr.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Locate polls for exactly one running instance tagged Name=tag in region.
func (l *Locator) Locate(ctx context.Context, tag, region string) (*ServiceEndpoint, error) {
	client, err := l.newClient(ctx, region)
	if err != nil {
		return nil, err
	}

	opts := append([]retry.Option{
		retry.OnFailure(func(attempt int, err error) {
			l.log.Info("waiting for service node", "tag", tag, "region", region,
				"attempt", attempt, "max", l.policy.MaxAttempts, "reason", err.Error())
		}),
	}, l.opts...)

	endpoint, err := retry.Await(ctx, l.policy, func() (*ServiceEndpoint, error) {
		return Find(ctx, client, tag)
	}, opts...)
	if err != nil {
		if retry.IsExhausted(err) {
			return nil, &EndpointUnreachableError{Tag: tag, Region: region, Err: err}
		}
		return nil, err
	}

	l.log.V(1).Info("service node resolved", "instance", endpoint.InstanceID, "address", endpoint.Address())
	return endpoint, nil
}

// Find performs a single lookup. It returns ErrNotFound when nothing matches
// and a fatal AmbiguousMatchError when more than one instance matches.
func Find(ctx context.Context, client DescribeInstancesAPI, tag string) (*ServiceEndpoint, error) {
	input := &ec2.DescribeInstancesInput{
		Filters: []types.Filter{
			{Name: aws.String("instance-state-name"), Values: []string{string(types.InstanceStateNameRunning)}},
			{Name: aws.String("tag:Name"), Values: []string{tag}},
		},
	}

	var matches []types.Instance
	paginator := ec2.NewDescribeInstancesPaginator(client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe instances: %w", err)
		}
		for _, r := range page.Reservations {
			matches = append(matches, r.Instances...)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: Name=%s", ErrNotFound, tag)
	case 1:
		endpoint := toEndpoint(matches[0])
		if endpoint.Address() == "" {
			return nil, fmt.Errorf("%w: %s has no public address yet", ErrNotFound, endpoint.InstanceID)
		}
		return endpoint, nil
	default:
		ids := make([]string, 0, len(matches))
		for _, inst := range matches {
			ids = append(ids, aws.ToString(inst.InstanceId))
		}
		return nil, retry.Fatal(&AmbiguousMatchError{Tag: tag, InstanceIDs: ids})
	}
}

func toEndpoint(inst types.Instance) *ServiceEndpoint {
	endpoint := &ServiceEndpoint{
		InstanceID: aws.ToString(inst.InstanceId),
		PublicDNS:  aws.ToString(inst.PublicDnsName),
		PublicIP:   aws.ToString(inst.PublicIpAddress),
	}
	if inst.State != nil {
		endpoint.State = string(inst.State.Name)
	}
	return endpoint
}
