package provisioning

import (
	"fmt"
	"os"
	"strings"
)

// ValidationError represents a preflight error or warning.
type ValidationError struct {
	Field    string // Configuration field that failed validation
	Message  string // Human-readable error message
	Severity string // "error" or "warning"
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", ve.Severity, ve.Field, ve.Message)
}

// IsError returns true if this is an error (not a warning).
func (ve ValidationError) IsError() bool {
	return ve.Severity == "error"
}

// Checks selecting what PreflightStage verifies.
type Checks struct {
	InfraWorkspace    bool
	PrivateKey        bool
	BackupCredentials bool
	BackupName        bool
}

// PreflightStage validates the cluster spec and the local files an operation reads
// before anything is mutated.
func PreflightStage(checks Checks) Stage {
	return Stage{
		Name: "preflight",
		Run: func(ctx *Context) error {
			var errs, warnings []ValidationError
			for _, ve := range validate(ctx, checks) {
				if ve.IsError() {
					errs = append(errs, ve)
				} else {
					warnings = append(warnings, ve)
				}
			}

			for _, w := range warnings {
				ctx.Observer.Event(Event{
					Type:    EventValidationWarning,
					Stage:   "preflight",
					Message: w.Message,
					Fields:  map[string]string{"field": w.Field},
				})
			}

			if len(errs) > 0 {
				msgs := make([]string, 0, len(errs))
				for _, e := range errs {
					msgs = append(msgs, e.Error())
				}
				return fmt.Errorf("preflight validation failed:\n  %s", strings.Join(msgs, "\n  "))
			}
			return nil
		},
	}
}

// validate runs all checks and returns any errors or warnings.
func validate(ctx *Context, checks Checks) []ValidationError {
	var errs []ValidationError
	spec := ctx.Spec

	if err := spec.Validate(); err != nil {
		errs = append(errs, ValidationError{
			Field:    "spec",
			Message:  err.Error(),
			Severity: "error",
		})
	}

	// --- Local files ---

	if checks.InfraWorkspace && !isDir(spec.InfraDir()) {
		errs = append(errs, ValidationError{
			Field:    "Paths.TerraformDir",
			Message:  fmt.Sprintf("terraform workspace %s not found", spec.InfraDir()),
			Severity: "error",
		})
	}

	if checks.PrivateKey && !isFile(spec.Paths.PrivateKey) {
		errs = append(errs, ValidationError{
			Field:    "Paths.PrivateKey",
			Message:  fmt.Sprintf("private key %s not found", spec.Paths.PrivateKey),
			Severity: "error",
		})
	}

	if checks.BackupCredentials && spec.Backup.Enabled && !isFile(spec.Paths.BackupCredentials) {
		errs = append(errs, ValidationError{
			Field:    "Paths.BackupCredentials",
			Message:  fmt.Sprintf("backup credentials %s not found", spec.Paths.BackupCredentials),
			Severity: "error",
		})
	}

	if checks.BackupName && spec.Backup.Name == "" {
		errs = append(errs, ValidationError{
			Field:    "Backup.Name",
			Message:  "a backup name is required (--backup)",
			Severity: "error",
		})
	}

	// --- Shape ---

	if spec.Cluster.Masters > 1 && spec.Cluster.Masters%2 == 0 {
		errs = append(errs, ValidationError{
			Field:    "Cluster.Masters",
			Message:  fmt.Sprintf("%d masters tolerate no more failures than %d", spec.Cluster.Masters, spec.Cluster.Masters-1),
			Severity: "warning",
		})
	}

	if spec.Cluster.Workers == 0 {
		errs = append(errs, ValidationError{
			Field:    "Cluster.Workers",
			Message:  "no worker nodes, workloads will only run on masters",
			Severity: "warning",
		})
	}

	// --- Version format ---

	if strings.HasPrefix(spec.Cluster.KubernetesVersion, "v") {
		errs = append(errs, ValidationError{
			Field:    "Cluster.KubernetesVersion",
			Message:  "version should not start with 'v' (e.g., '1.31')",
			Severity: "warning",
		})
	}

	return errs
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
