// Package terraform drives the terraform CLI for the cluster workspaces.
//
// Commands run through terratest's terraform module so that their output is
// relayed line by line as it is produced. Failures are returned as errors;
// terraform itself is never retried because its failures are rarely transient.
package terraform
