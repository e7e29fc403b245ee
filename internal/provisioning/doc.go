// Package provisioning runs lifecycle operations as ordered stages.
//
// # Core Types
//
// Context carries the cluster spec, retry bounds, per-run state, the
// observer and the metrics recorder. Stage describes one step with an
// optional idempotence check. RunStages executes a stage list in order,
// stopping at the first failure and wrapping it in a StageError.
package provisioning
