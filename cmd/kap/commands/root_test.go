package commands

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapctl/kap/internal/config"
)

func TestRoot(t *testing.T) {
	cmd := Root()

	require.NotNil(t, cmd)
	assert.Equal(t, "kap", cmd.Use)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().ShorthandLookup("v"))
}

func TestRoot_HasSubcommands(t *testing.T) {
	cmd := Root()

	expected := []string{
		"create",
		"destroy",
		"join-cluster",
		"save",
		"reset-args",
		"list-args",
		"version",
		"completion",
	}

	subcommands := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}
	for _, name := range expected {
		assert.True(t, subcommands[name], "Expected subcommand %s not found", name)
	}
	assert.Len(t, cmd.Commands(), len(expected))
}

func TestRoot_LifecycleCommandsShareFlags(t *testing.T) {
	cmd := Root()
	for _, name := range []string{"create", "destroy", "join-cluster", "save"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		for _, flag := range []string{"nodes", "region", "tf-dir", "kube-dir", "private-key-path", "backup", "instance-type"} {
			assert.NotNil(t, sub.Flags().Lookup(flag), "%s is missing --%s", name, flag)
		}
	}
}

func TestRoot_RejectsMalformedShape(t *testing.T) {
	cmd := Root()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"create", "-n", "three:two"})

	err := cmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "int:int")
}

func newFlagCommand(args ...string) (*cobra.Command, *specFlags, error) {
	cmd := &cobra.Command{Use: "test"}
	flags := bindSpecFlags(cmd)
	return cmd, flags, cmd.ParseFlags(args)
}

func TestSpecFlags_OnlyChangedFlags(t *testing.T) {
	cmd, flags, err := newFlagCommand("--region", "eu-central-1", "-n", "5:3")
	require.NoError(t, err)

	o := flags.overrides(cmd)

	require.NotNil(t, o.Region)
	assert.Equal(t, "eu-central-1", *o.Region)
	require.NotNil(t, o.Shape)
	assert.Equal(t, config.DeployedShape{Masters: 5, Workers: 3}, *o.Shape)
	assert.Nil(t, o.KubernetesVersion)
	assert.Nil(t, o.InstanceType)
	assert.Nil(t, o.Backup)
}

func TestSpecFlags_NoFlags(t *testing.T) {
	cmd, flags, err := newFlagCommand()
	require.NoError(t, err)
	assert.Equal(t, config.Overrides{}, flags.overrides(cmd))
}

func TestSpecFlags_ExplicitEmptyValue(t *testing.T) {
	cmd, flags, err := newFlagCommand("--backup", "")
	require.NoError(t, err)

	o := flags.overrides(cmd)
	require.NotNil(t, o.Backup)
	assert.Equal(t, "", *o.Backup)
}

func TestShapeValue(t *testing.T) {
	var v shapeValue
	assert.Equal(t, "", v.String())
	assert.Equal(t, "master:worker", v.Type())

	require.NoError(t, v.Set("3:2"))
	assert.Equal(t, "3:2", v.String())

	require.Error(t, v.Set("3"))
	require.Error(t, v.Set("-1:2"))
	assert.Equal(t, "3:2", v.String())
}
