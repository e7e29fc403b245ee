package ec2

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapctl/kap/internal/util/retry"
)

type fakeEC2 struct {
	outputs []*ec2.DescribeInstancesOutput
	err     error
	calls   int
	inputs  []*ec2.DescribeInstancesInput
}

func (f *fakeEC2) DescribeInstances(_ context.Context, in *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	f.calls++
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	idx := f.calls - 1
	if idx >= len(f.outputs) {
		idx = len(f.outputs) - 1
	}
	return f.outputs[idx], nil
}

func instance(id, dns string) types.Instance {
	return types.Instance{
		InstanceId:    aws.String(id),
		PublicDnsName: aws.String(dns),
		State:         &types.InstanceState{Name: types.InstanceStateNameRunning},
	}
}

func reservations(instances ...types.Instance) *ec2.DescribeInstancesOutput {
	out := &ec2.DescribeInstancesOutput{}
	for _, inst := range instances {
		out.Reservations = append(out.Reservations, types.Reservation{Instances: []types.Instance{inst}})
	}
	return out
}

func testPolicy(n int) retry.Policy {
	return retry.Policy{Name: "discovery", Interval: time.Millisecond, MaxAttempts: n}
}

func TestFind(t *testing.T) {
	t.Parallel()

	t.Run("zero matches is retryable not found", func(t *testing.T) {
		t.Parallel()
		_, err := Find(context.Background(), &fakeEC2{outputs: []*ec2.DescribeInstancesOutput{reservations()}}, "kservice")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.False(t, retry.IsFatal(err))
	})

	t.Run("exactly one match", func(t *testing.T) {
		t.Parallel()
		api := &fakeEC2{outputs: []*ec2.DescribeInstancesOutput{reservations(instance("i-1", "ec2-1.compute.amazonaws.com"))}}
		got, err := Find(context.Background(), api, "kservice")
		require.NoError(t, err)
		assert.Equal(t, "i-1", got.InstanceID)
		assert.Equal(t, "ec2-1.compute.amazonaws.com", got.Address())
		assert.Equal(t, "running", got.State)

		require.Len(t, api.inputs, 1)
		filters := map[string][]string{}
		for _, f := range api.inputs[0].Filters {
			filters[aws.ToString(f.Name)] = f.Values
		}
		assert.Equal(t, []string{"running"}, filters["instance-state-name"])
		assert.Equal(t, []string{"kservice"}, filters["tag:Name"])
	})

	t.Run("two matches is fatal ambiguous match", func(t *testing.T) {
		t.Parallel()
		api := &fakeEC2{outputs: []*ec2.DescribeInstancesOutput{reservations(instance("i-1", "a"), instance("i-2", "b"))}}
		_, err := Find(context.Background(), api, "kservice")
		require.Error(t, err)
		assert.True(t, retry.IsFatal(err))
		var amb *AmbiguousMatchError
		require.ErrorAs(t, err, &amb)
		assert.Equal(t, []string{"i-1", "i-2"}, amb.InstanceIDs)
	})

	t.Run("instance without address is not found yet", func(t *testing.T) {
		t.Parallel()
		api := &fakeEC2{outputs: []*ec2.DescribeInstancesOutput{reservations(instance("i-1", ""))}}
		_, err := Find(context.Background(), api, "kservice")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestLocator_Locate(t *testing.T) {
	t.Parallel()

	t.Run("found after instance boots", func(t *testing.T) {
		t.Parallel()
		api := &fakeEC2{outputs: []*ec2.DescribeInstancesOutput{
			reservations(),
			reservations(),
			reservations(instance("i-9", "ec2-9")),
		}}
		var region string
		l := NewLocator(testPolicy(6), WithClientFactory(func(_ context.Context, r string) (DescribeInstancesAPI, error) {
			region = r
			return api, nil
		}))

		got, err := l.Locate(context.Background(), "kservice", "eu-west-3")
		require.NoError(t, err)
		assert.Equal(t, "i-9", got.InstanceID)
		assert.Equal(t, 3, api.calls)
		assert.Equal(t, "eu-west-3", region)
	})

	t.Run("exhaustion is endpoint unreachable", func(t *testing.T) {
		t.Parallel()
		api := &fakeEC2{outputs: []*ec2.DescribeInstancesOutput{reservations()}}
		l := NewLocator(testPolicy(6), WithClientFactory(func(context.Context, string) (DescribeInstancesAPI, error) { return api, nil }))

		_, err := l.Locate(context.Background(), "kservice", "eu-west-3")
		require.Error(t, err)
		var unreachable *EndpointUnreachableError
		require.ErrorAs(t, err, &unreachable)
		assert.True(t, retry.IsExhausted(err))
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, 6, api.calls)
	})

	t.Run("ambiguous match is not retried", func(t *testing.T) {
		t.Parallel()
		api := &fakeEC2{outputs: []*ec2.DescribeInstancesOutput{reservations(instance("i-1", "a"), instance("i-2", "b"))}}
		l := NewLocator(testPolicy(6), WithClientFactory(func(context.Context, string) (DescribeInstancesAPI, error) { return api, nil }))

		_, err := l.Locate(context.Background(), "kservice", "eu-west-3")
		var amb *AmbiguousMatchError
		require.ErrorAs(t, err, &amb)
		assert.Equal(t, 1, api.calls)
	})

	t.Run("api errors are retried", func(t *testing.T) {
		t.Parallel()
		api := &fakeEC2{err: errors.New("throttled")}
		l := NewLocator(testPolicy(2), WithClientFactory(func(context.Context, string) (DescribeInstancesAPI, error) { return api, nil }))

		_, err := l.Locate(context.Background(), "kservice", "eu-west-3")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "throttled")
		assert.Equal(t, 2, api.calls)
	})
}
