package provisioning

// Logger is the printf-style surface shared by every observer.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Stage is one discrete step of a lifecycle operation.
type Stage struct {
	// Name identifies the stage in logs, metrics and errors.
	Name string

	// Resource is the external object the stage acts on, if any.
	Resource string

	// Done reports whether the stage's effect is already in place, in
	// which case Run is skipped. Nil means the stage always runs.
	Done func(ctx *Context) (bool, error)

	// Run performs the stage. Retry bounds are applied inside Run.
	Run func(ctx *Context) error
}
