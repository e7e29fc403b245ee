package orchestration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kapctl/kap/internal/config"
	"github.com/kapctl/kap/internal/inventory"
	"github.com/kapctl/kap/internal/platform/ssh"
	"github.com/kapctl/kap/internal/provisioning"
	kaptest "github.com/kapctl/kap/internal/testing"
	"github.com/kapctl/kap/internal/ui/prompt"
	"github.com/kapctl/kap/internal/util/retry"
)

const serviceHost = "ec2-13-38-0-1.eu-west-3.compute.amazonaws.com"

type harness struct {
	log         *kaptest.CallLog
	provisioner *kaptest.FakeProvisioner
	locator     *kaptest.FakeLocator
	remote      *kaptest.FakeRemote
	dialer      *kaptest.FakeDialer
	buckets     *kaptest.MockBucketProber
	prompter    *kaptest.ScriptedPrompter
	observer    *kaptest.RecordingObserver
	persisted   []string
	out         bytes.Buffer
}

// newHarness wires fakes for a service node that has finished its bootstrap
// and a cluster of three masters and two workers.
func newHarness(answers ...string) *harness {
	log := &kaptest.CallLog{}
	remote := kaptest.NewFakeRemote(log)
	remote.Put("/home/ubuntu/kap/k8s_deploy.yaml", []byte("- hosts: all"))
	remote.Put("/tmp/kap/kubeconfig", []byte(kaptest.Kubeconfig))
	remote.Put("/home/ubuntu/.kube/config", []byte(kaptest.Kubeconfig))

	return &harness{
		log:         log,
		provisioner: &kaptest.FakeProvisioner{Log: log, OutputJSON: kaptest.TerraformOutput(3, 2)},
		locator:     kaptest.NewFakeLocator(log),
		remote:      remote,
		dialer:      &kaptest.FakeDialer{Log: log, Remote: remote},
		buckets:     &kaptest.MockBucketProber{},
		prompter:    &kaptest.ScriptedPrompter{Answers: answers},
		observer:    kaptest.NewRecordingObserver(),
	}
}

func (h *harness) orchestrator() *Orchestrator {
	return New(Dependencies{
		Provisioner: h.provisioner,
		Locator:     h.locator,
		Dialer:      h.dialer,
		Buckets:     h.buckets,
		Prompter:    h.prompter,
		Persist: func(spec *config.ClusterSpec) error {
			h.persisted = append(h.persisted, spec.Shape().String())
			return nil
		},
		Output: &h.out,
	})
}

// abortingPrompter stands in for an operator who interrupts the form.
type abortingPrompter struct {
	questions []string
}

func (p *abortingPrompter) Confirm(_ context.Context, question string) (bool, error) {
	p.questions = append(p.questions, question)
	return false, prompt.ErrAborted
}

func (h *harness) context(t *testing.T, operation string, spec *config.ClusterSpec) *provisioning.Context {
	ctx := provisioning.NewContext(kaptest.TestContext(t), operation, spec, h.observer)
	ctx.Bounds = &config.RetryBounds{Discovery: 2, Session: 3, Readiness: 5, Transfer: 3, BackupTarget: 6}
	return ctx
}

func TestCreate_FreshClusterWithoutBackup(t *testing.T) {
	t.Parallel()
	h := newHarness("no")
	spec := kaptest.NewSpecBuilder(t).Build()
	ctx := h.context(t, "create", spec)

	require.NoError(t, h.orchestrator().Create(ctx))

	assert.Equal(t, []string{
		"terraform.init Infra_deploy",
		"terraform.plan Infra_deploy",
		"terraform.apply Infra_deploy",
		"ec2.locate kservice eu-west-3",
		"ssh.open " + serviceHost,
		"ssh.run test -e '/home/ubuntu/kap'",
		"ssh.close",
		"terraform.output Infra_deploy",
		"ssh.open " + serviceHost,
		"ssh.put /home/ubuntu/kap/k8s_dinamic_vars.json",
		"ssh.put /home/ubuntu/kap/inventory.json",
		"ssh.run test -e '/home/ubuntu/kap-key.pem'",
		"ssh.put /home/ubuntu/kap-key.pem",
		"ssh.run chmod 400 '/home/ubuntu/kap-key.pem'",
		"ssh.close",
		"ssh.open " + serviceHost,
		"ssh.run cd '/home/ubuntu/kap' && ansible-playbook 'k8s_deploy.yaml'",
		"ssh.close",
		"ssh.open " + serviceHost,
		"ssh.get /tmp/kap/kubeconfig",
		"ssh.close",
	}, h.log.Calls())

	assert.Empty(t, h.log.WithPrefix("terraform.init s3_deploy"))
	h.buckets.AssertNotCalled(t, "BucketExists", mock.Anything, mock.Anything)
	assert.True(t, h.dialer.Balanced())

	require.NotNil(t, ctx.State.Kubeconfig)
	assert.Equal(t, "https://kap-lb.eu-west-3.elb.amazonaws.com:6443", ctx.State.Kubeconfig.Server)
	_, err := os.Stat(spec.KubeconfigPath())
	assert.NoError(t, err)

	out := h.observer.Output()
	kaptest.AssertContains(t, out, "KAP directory found")
	kaptest.AssertContains(t, out, "Inventory written with 5 hosts")
	kaptest.AssertContains(t, out, "The cluster has been successfully deployed")
	assert.Equal(t, []string{reviewQuestion}, h.prompter.Questions)
	assert.Equal(t, []string{"3:2"}, h.persisted)
}

func TestCreate_WritesPlaybookInputs(t *testing.T) {
	t.Parallel()
	h := newHarness("no")
	spec := kaptest.NewSpecBuilder(t).Build()

	require.NoError(t, h.orchestrator().Create(h.context(t, "create", spec)))

	data, ok := h.remote.File("/home/ubuntu/kap/inventory.json")
	require.True(t, ok)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "all")

	data, ok = h.remote.File("/home/ubuntu/kap/k8s_dinamic_vars.json")
	require.True(t, ok)
	var vars map[string]any
	require.NoError(t, json.Unmarshal(data, &vars))
	assert.Equal(t, serviceHost, vars["lb_address_pub"])
	assert.Equal(t, spec.Cluster.KubernetesVersion, vars["kubernetes_version"])

	tfvars, err := os.ReadFile(spec.VarFile())
	require.NoError(t, err)
	var tf map[string]any
	require.NoError(t, json.Unmarshal(tfvars, &tf))
	assert.Equal(t, "kap-key", tf["key_name"])
	assert.EqualValues(t, 3, tf["num_masters"])
}

func TestCreate_InitializedWorkspaceSkipsInit(t *testing.T) {
	t.Parallel()
	h := newHarness("no")
	h.provisioner.InitializedDirs = map[string]bool{config.InfraWorkspace: true}
	spec := kaptest.NewSpecBuilder(t).Build()

	require.NoError(t, h.orchestrator().Create(h.context(t, "create", spec)))

	terraform := h.log.WithPrefix("terraform.")
	assert.Equal(t, []string{
		"terraform.output Infra_deploy",
		"terraform.plan Infra_deploy",
		"terraform.apply Infra_deploy",
		"terraform.output Infra_deploy",
	}, terraform)
	kaptest.AssertContains(t, h.observer.Output(), "A cluster was found. Applying modifications...")
	assert.Len(t, h.observer.EventsOf(provisioning.EventStageSkipped), 1)
	assert.NotEmpty(t, h.log.WithPrefix("ssh.run cd "))
}

func TestCreate_DescaleRejectedBeforeMutation(t *testing.T) {
	t.Parallel()
	h := newHarness("no")
	h.provisioner.InitializedDirs = map[string]bool{config.InfraWorkspace: true}
	spec := kaptest.NewSpecBuilder(t).WithShape(3, 1).Build()

	err := h.orchestrator().Create(h.context(t, "create", spec))

	var descale *DescaleRejectedError
	require.ErrorAs(t, err, &descale)
	assert.Equal(t, config.DeployedShape{Masters: 3, Workers: 2}, descale.Deployed)
	assert.Equal(t, []string{"terraform.output Infra_deploy"}, h.log.Calls())
	assert.Empty(t, h.prompter.Questions)
	assert.Empty(t, h.persisted)
}

func TestCreate_ReviewThenApply(t *testing.T) {
	t.Parallel()
	h := newHarness("yes", "yes")
	spec := kaptest.NewSpecBuilder(t).Build()

	require.NoError(t, h.orchestrator().Create(h.context(t, "create", spec)))
	assert.Equal(t, []string{reviewQuestion, applyQuestion}, h.prompter.Questions)
	assert.Len(t, h.log.WithPrefix("terraform.apply"), 1)
}

func TestCreate_ReviewThenCancel(t *testing.T) {
	t.Parallel()
	h := newHarness("yes", "no")
	spec := kaptest.NewSpecBuilder(t).Build()

	err := h.orchestrator().Create(h.context(t, "create", spec))

	require.True(t, provisioning.IsCancelled(err))
	assert.Equal(t, []string{
		"terraform.init Infra_deploy",
		"terraform.plan Infra_deploy",
	}, h.log.Calls())
	assert.Zero(t, h.locator.Calls)
	kaptest.AssertContains(t, h.observer.Output(), "Apply cancelled.")
}

func TestCreate_InvalidAnswer(t *testing.T) {
	t.Parallel()
	h := newHarness("maybe")
	spec := kaptest.NewSpecBuilder(t).WithBackup("nightly").Build()

	err := h.orchestrator().Create(h.context(t, "create", spec))

	var invalid *prompt.InvalidAnswerError
	require.ErrorAs(t, err, &invalid)
	assert.Empty(t, h.log.WithPrefix("terraform."))
	assert.Empty(t, h.log.Calls())
	assert.Empty(t, h.persisted)
}

func TestCreate_AbortedPromptCancels(t *testing.T) {
	t.Parallel()
	h := newHarness()
	prompter := &abortingPrompter{}
	orch := New(Dependencies{
		Provisioner: h.provisioner,
		Locator:     h.locator,
		Dialer:      h.dialer,
		Prompter:    prompter,
		Output:      &h.out,
	})
	spec := kaptest.NewSpecBuilder(t).WithBackup("nightly").Build()

	err := orch.Create(h.context(t, "create", spec))

	require.True(t, provisioning.IsCancelled(err))
	assert.Equal(t, []string{reviewQuestion}, prompter.questions)
	assert.Empty(t, h.log.WithPrefix("terraform.plan"))
	assert.Empty(t, h.log.WithPrefix("terraform.apply"))
	assert.Empty(t, h.log.Calls())
}

func TestDestroy_AbortedPromptCancels(t *testing.T) {
	t.Parallel()
	h := newHarness()
	orch := New(Dependencies{Provisioner: h.provisioner, Prompter: &abortingPrompter{}, Output: &h.out})
	spec := kaptest.NewSpecBuilder(t).Build()

	err := orch.Destroy(h.context(t, "destroy", spec))

	require.True(t, provisioning.IsCancelled(err))
	assert.Empty(t, h.log.WithPrefix("terraform.destroy"))
}

func TestCreate_WithBackup(t *testing.T) {
	t.Parallel()
	h := newHarness("no")
	spec := kaptest.NewSpecBuilder(t).WithBackup("nightly").Build()

	require.NoError(t, h.orchestrator().Create(h.context(t, "create", spec)))

	calls := h.log.Calls()
	assert.Equal(t, []string{
		"terraform.init s3_deploy",
		"terraform.plan s3_deploy",
		"terraform.apply s3_deploy",
		"terraform.init Infra_deploy",
	}, calls[:4])
	assert.Contains(t, calls, "ssh.put /home/ubuntu/kap-s3-credentials")
	assert.Contains(t, calls, "ssh.run chmod 400 '/home/ubuntu/kap-s3-credentials'")
	h.buckets.AssertNotCalled(t, "BucketExists", mock.Anything, mock.Anything)
}

func TestCreate_CredentialsAlreadyPresent(t *testing.T) {
	t.Parallel()
	h := newHarness("no")
	h.remote.Put("/home/ubuntu/kap-key.pem", []byte("private-key"))
	spec := kaptest.NewSpecBuilder(t).Build()

	require.NoError(t, h.orchestrator().Create(h.context(t, "create", spec)))

	assert.NotContains(t, h.log.Calls(), "ssh.put /home/ubuntu/kap-key.pem")
	assert.Empty(t, h.log.WithPrefix("ssh.run chmod"))
	assert.Len(t, h.observer.EventsOf(provisioning.EventResourceExists), 1)
}

func TestCreate_WaitsForEnvironment(t *testing.T) {
	t.Parallel()
	h := newHarness("no")
	h.remote.Pending["/home/ubuntu/kap"] = true
	h.remote.ReadyAfter = 3
	spec := kaptest.NewSpecBuilder(t).Build()

	require.NoError(t, h.orchestrator().Create(h.context(t, "create", spec)))

	assert.Len(t, h.log.WithPrefix("ssh.run test -e '/home/ubuntu/kap'"), 4)
	assert.True(t, h.dialer.Balanced())

	progress := h.observer.EventsOf(provisioning.EventProgress)
	require.Len(t, progress, 3)
	for i, event := range progress {
		assert.Equal(t, "await-environment", event.Stage)
		assert.Equal(t, fmt.Sprint(i+1), event.Fields["current"])
		assert.Equal(t, "5", event.Fields["total"])
	}
}

func TestCreate_EnvironmentNeverReady(t *testing.T) {
	t.Parallel()
	h := newHarness("no")
	h.remote.Pending["/home/ubuntu/kap"] = true
	h.remote.ReadyAfter = 100
	spec := kaptest.NewSpecBuilder(t).Build()

	err := h.orchestrator().Create(h.context(t, "create", spec))

	require.True(t, retry.IsExhausted(err))
	var stageErr *provisioning.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "await-environment", stageErr.Stage)
	assert.Len(t, h.log.WithPrefix("ssh.run test -e"), 5)
	assert.Empty(t, h.log.WithPrefix("ssh.put"))
	assert.True(t, h.dialer.Balanced())
}

func TestCreate_RetriesTransfers(t *testing.T) {
	t.Parallel()
	h := newHarness("no")
	h.remote.UploadFailures = 2
	spec := kaptest.NewSpecBuilder(t).Build()

	require.NoError(t, h.orchestrator().Create(h.context(t, "create", spec)))
	assert.Len(t, h.log.WithPrefix("ssh.put-failed"), 2)
	_, ok := h.remote.File("/home/ubuntu/kap/inventory.json")
	assert.True(t, ok)
}

func TestCreate_PlaybookFailure(t *testing.T) {
	t.Parallel()
	h := newHarness("no")
	h.remote.ExitStatus["ansible-playbook"] = 2
	h.remote.Output["ansible-playbook"] = "PLAY RECAP\n"
	spec := kaptest.NewSpecBuilder(t).Build()

	err := h.orchestrator().Create(h.context(t, "create", spec))

	var cmdErr *ssh.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, 2, cmdErr.ExitStatus)
	assert.Equal(t, "PLAY RECAP\n", h.out.String())
	assert.Empty(t, h.log.WithPrefix("ssh.get"))
	assert.True(t, h.dialer.Balanced())
}

func TestCreate_EndpointNotFound(t *testing.T) {
	t.Parallel()
	h := newHarness("no")
	h.locator.Err = errors.New("no running instance tagged kservice")
	spec := kaptest.NewSpecBuilder(t).Build()

	err := h.orchestrator().Create(h.context(t, "create", spec))

	require.Error(t, err)
	assert.Zero(t, h.dialer.Opened())
}

func TestDestroy_Confirmed(t *testing.T) {
	t.Parallel()
	h := newHarness("yes")
	spec := kaptest.NewSpecBuilder(t).Build()
	require.NoError(t, os.MkdirAll(spec.Paths.KubeDir, 0o755))
	require.NoError(t, os.WriteFile(spec.KubeconfigPath(), []byte(kaptest.Kubeconfig), 0o600))

	require.NoError(t, h.orchestrator().Destroy(h.context(t, "destroy", spec)))

	assert.Equal(t, []string{"terraform.destroy Infra_deploy"}, h.log.Calls())
	_, err := os.Stat(spec.KubeconfigPath())
	assert.True(t, os.IsNotExist(err))
	assert.Len(t, h.observer.EventsOf(provisioning.EventResourceDeleted), 2)
}

func TestDestroy_DeclinedHasNoSideEffects(t *testing.T) {
	t.Parallel()
	h := newHarness("no")
	spec := kaptest.NewSpecBuilder(t).Build()
	require.NoError(t, os.MkdirAll(spec.Paths.KubeDir, 0o755))
	require.NoError(t, os.WriteFile(spec.KubeconfigPath(), []byte(kaptest.Kubeconfig), 0o600))

	err := h.orchestrator().Destroy(h.context(t, "destroy", spec))

	require.True(t, provisioning.IsCancelled(err))
	assert.Empty(t, h.log.Calls())
	_, statErr := os.Stat(spec.KubeconfigPath())
	assert.NoError(t, statErr)
	_, statErr = os.Stat(spec.VarFile())
	assert.True(t, os.IsNotExist(statErr))
	kaptest.AssertContains(t, h.observer.Output(), "Destruction cancelled.")
}

func TestDestroy_WithoutKubeconfig(t *testing.T) {
	t.Parallel()
	h := newHarness("yes")
	spec := kaptest.NewSpecBuilder(t).Build()

	require.NoError(t, h.orchestrator().Destroy(h.context(t, "destroy", spec)))
	assert.Len(t, h.observer.EventsOf(provisioning.EventStageSkipped), 1)
}

func TestJoin(t *testing.T) {
	t.Parallel()
	h := newHarness()
	spec := kaptest.NewSpecBuilder(t).Build()
	ctx := h.context(t, "join-cluster", spec)

	require.NoError(t, h.orchestrator().Join(ctx))

	assert.Equal(t, []string{
		"ec2.locate kservice eu-west-3",
		"ssh.open " + serviceHost,
		"ssh.get /home/ubuntu/.kube/config",
		"ssh.close",
	}, h.log.Calls())
	require.NotNil(t, ctx.State.Kubeconfig)
	assert.Equal(t, "kubernetes-admin@kubernetes", ctx.State.Kubeconfig.Context)
	assert.True(t, h.dialer.Balanced())
}

func TestJoin_InvalidKubeconfig(t *testing.T) {
	t.Parallel()
	h := newHarness()
	h.remote.Put("/home/ubuntu/.kube/config", []byte("not: [a kubeconfig"))
	spec := kaptest.NewSpecBuilder(t).Build()

	err := h.orchestrator().Join(h.context(t, "join-cluster", spec))
	require.Error(t, err)
	assert.True(t, h.dialer.Balanced())
}

func TestSave(t *testing.T) {
	t.Parallel()
	h := newHarness()
	h.buckets.On("BucketExists", mock.Anything, "kap-bucket").Return(false, nil).Twice()
	h.buckets.On("BucketExists", mock.Anything, "kap-bucket").Return(true, nil).Once()
	spec := kaptest.NewSpecBuilder(t).WithBackup("nightly").Build()

	require.NoError(t, h.orchestrator().Save(h.context(t, "save", spec)))

	assert.Equal(t, []string{
		"ec2.locate kservice eu-west-3",
		"ssh.open " + serviceHost,
		"ssh.run velero backup create 'nightly' --include-namespaces 'default'",
		"ssh.close",
	}, h.log.Calls())
	h.buckets.AssertNumberOfCalls(t, "BucketExists", 3)
	kaptest.AssertContains(t, h.observer.Output(), "Cluster saved successfully!")
}

func TestSave_BucketNeverAvailable(t *testing.T) {
	t.Parallel()
	h := newHarness()
	h.buckets.On("BucketExists", mock.Anything, "kap-bucket").Return(false, nil)
	spec := kaptest.NewSpecBuilder(t).WithBackup("nightly").Build()

	err := h.orchestrator().Save(h.context(t, "save", spec))

	require.True(t, retry.IsExhausted(err))
	var exhausted *retry.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 6, exhausted.Attempts)
	h.buckets.AssertNumberOfCalls(t, "BucketExists", 6)
	assert.Zero(t, h.locator.Calls)
	assert.Zero(t, h.dialer.Opened())
}

func TestSave_RequiresBackupName(t *testing.T) {
	t.Parallel()
	h := newHarness()
	spec := kaptest.NewSpecBuilder(t).Build()

	err := h.orchestrator().Save(h.context(t, "save", spec))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Backup.Name")
	h.buckets.AssertNotCalled(t, "BucketExists", mock.Anything, mock.Anything)
}

func TestOperations_MissingDependencies(t *testing.T) {
	t.Parallel()
	spec := kaptest.NewSpecBuilder(t).Build()
	o := New(Dependencies{})
	h := newHarness()

	assert.ErrorContains(t, o.Create(h.context(t, "create", spec)), "provisioner")
	assert.ErrorContains(t, o.Destroy(h.context(t, "destroy", spec)), "provisioner")
	assert.ErrorContains(t, o.Join(h.context(t, "join-cluster", spec)), "endpoint locator")
	assert.ErrorContains(t, o.Save(h.context(t, "save", spec)), "bucket prober")
}

func TestInventoryMatchesState(t *testing.T) {
	t.Parallel()
	h := newHarness("no")
	spec := kaptest.NewSpecBuilder(t).Build()
	ctx := h.context(t, "create", spec)

	require.NoError(t, h.orchestrator().Create(ctx))

	want, err := inventory.Build(kaptest.TerraformOutput(3, 2), inventory.Vars{User: "ubuntu", KeyPath: spec.RemoteKeyPath()})
	require.NoError(t, err)
	assert.Equal(t, want, ctx.State.Inventory)

	local, err := os.ReadFile(spec.InventoryFile())
	require.NoError(t, err)
	remote, _ := h.remote.File("/home/ubuntu/kap/inventory.json")
	assert.Equal(t, local, remote)
}
