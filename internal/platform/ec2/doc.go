// Package ec2 resolves the service node of a cluster on AWS.
//
// The service node is the single running instance carrying the cluster's
// Name tag. Lookups that find nothing are retried because the instance may
// still be booting; lookups that find several instances fail at once.
package ec2
