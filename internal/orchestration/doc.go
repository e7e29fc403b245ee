// Package orchestration implements the cluster lifecycle operations.
//
// Each operation (create, destroy, join, save) is a fixed list of
// provisioning stages run in order. Stages that reach the service node open
// their own short-lived SSH session; no session is shared between stages.
// Failures abort the remaining stages without rolling back completed ones:
// re-running the same operation is the recovery path, and every stage is
// safe to repeat.
package orchestration
