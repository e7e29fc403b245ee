package provisioning

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned when the operator declines a confirmation. It is
// a clean stop, not a failure.
var ErrCancelled = errors.New("operation cancelled")

// StageError identifies the stage an operation failed in.
type StageError struct {
	Operation string
	Stage     string
	Resource  string
	Err       error
}

func (e *StageError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s stage failed on %s: %v", e.Operation, e.Stage, e.Resource, e.Err)
	}
	return fmt.Sprintf("%s: %s stage failed: %v", e.Operation, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// IsCancelled reports whether err is an operator cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
