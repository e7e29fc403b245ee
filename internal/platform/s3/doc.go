// Package s3 checks the backup bucket that velero snapshots are written to.
//
// The bucket is provisioned by its own terraform workspace during create;
// save polls this package until the bucket is visible before asking the
// cluster for a snapshot.
package s3
