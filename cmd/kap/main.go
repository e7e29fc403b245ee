// Package main is the entry point for the kap CLI.
//
// kap provisions a Kubernetes cluster on AWS with terraform, configures it
// from a service node over SSH with ansible, and retrieves the kubeconfig.
//
// Commands: create, destroy, join-cluster, save, reset-args, list-args.
//
// For detailed usage information, run:
//
//	kap --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kapctl/kap/cmd/kap/commands"
	"github.com/kapctl/kap/internal/provisioning"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.SetVersionInfo(version, commit, date)
	err := commands.Root().ExecuteContext(ctx)
	if err == nil || provisioning.IsCancelled(err) {
		return
	}
	stop()
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
