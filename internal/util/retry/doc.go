// Package retry provides fixed-interval polling for conditions that become true asynchronously.
//
// The [Await] function calls an operation until it succeeds or a [Policy]'s attempt budget
// is spent. It is used for instance discovery, login-service availability, remote
// directory readiness, file transfers and backup destination readiness.
package retry
