package config

import (
	"os"
	"strconv"
	"time"

	"github.com/kapctl/kap/internal/util/retry"
)

// RetryBounds holds the polling bounds of every waiting stage.
// These values can be customized via environment variables.
type RetryBounds struct {
	Interval     time.Duration // Sleep between two attempts of any poll
	Discovery    int           // Attempts to find the service node
	Session      int           // Attempts to open an SSH session
	Readiness    int           // Attempts to see the remote playbook directory
	Transfer     int           // Attempts to push the playbook inputs
	BackupTarget int           // Attempts to see the backup bucket
}

// LoadRetryBounds loads retry bounds from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - KAP_RETRY_INTERVAL (default: 5s)
//   - KAP_RETRY_DISCOVERY_ATTEMPTS (default: 6)
//   - KAP_RETRY_SESSION_ATTEMPTS (default: 24)
//   - KAP_RETRY_READINESS_ATTEMPTS (default: 60)
//   - KAP_RETRY_TRANSFER_ATTEMPTS (default: 6)
//   - KAP_RETRY_BACKUP_TARGET_ATTEMPTS (default: 6)
func LoadRetryBounds() *RetryBounds {
	return &RetryBounds{
		Interval:     parseDuration("KAP_RETRY_INTERVAL", 5*time.Second),
		Discovery:    parseInt("KAP_RETRY_DISCOVERY_ATTEMPTS", 6),
		Session:      parseInt("KAP_RETRY_SESSION_ATTEMPTS", 24),
		Readiness:    parseInt("KAP_RETRY_READINESS_ATTEMPTS", 60),
		Transfer:     parseInt("KAP_RETRY_TRANSFER_ATTEMPTS", 6),
		BackupTarget: parseInt("KAP_RETRY_BACKUP_TARGET_ATTEMPTS", 6),
	}
}

// DiscoveryPolicy bounds the lookup of the service node.
func (b *RetryBounds) DiscoveryPolicy() retry.Policy {
	return retry.Policy{Name: "discovery", Interval: b.Interval, MaxAttempts: b.Discovery}
}

// SessionPolicy bounds the SSH handshake.
func (b *RetryBounds) SessionPolicy() retry.Policy {
	return retry.Policy{Name: "session", Interval: b.Interval, MaxAttempts: b.Session}
}

// ReadinessPolicy bounds the wait for the remote playbook directory.
func (b *RetryBounds) ReadinessPolicy() retry.Policy {
	return retry.Policy{Name: "readiness", Interval: b.Interval, MaxAttempts: b.Readiness}
}

// TransferPolicy bounds the push of the inventory and variable files.
func (b *RetryBounds) TransferPolicy() retry.Policy {
	return retry.Policy{Name: "transfer", Interval: b.Interval, MaxAttempts: b.Transfer}
}

// BackupTargetPolicy bounds the wait for the backup bucket.
func (b *RetryBounds) BackupTargetPolicy() retry.Policy {
	return retry.Policy{Name: "backup-target", Interval: b.Interval, MaxAttempts: b.BackupTarget}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}
