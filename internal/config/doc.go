// Package config defines the cluster specification consumed by every
// lifecycle operation.
//
// A [ClusterSpec] is built once per invocation by layering command-line
// overrides over the persisted kap.yaml file over built-in defaults, then
// validated and treated as read-only. The package also owns the retry
// bounds used by the polling stages and the JSON overlay files shared with
// terraform and the remote playbook.
package config
