// Package ssh provides the remote session used to drive the service node.
//
// A [Session] owns exactly one authenticated connection. It is opened with
// bounded retries because the node's SSH daemon may not accept connections
// yet, runs commands and reports their exit status without judging it, and
// moves whole files over SFTP. Every opened session is closed exactly once.
package ssh
