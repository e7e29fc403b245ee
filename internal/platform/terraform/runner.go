package terraform

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-logr/logr"
	"github.com/gruntwork-io/terratest/modules/logger"
	tt "github.com/gruntwork-io/terratest/modules/terraform"
	"github.com/gruntwork-io/terratest/modules/testing"
)

// Workspace is one terraform root module.
type Workspace struct {
	Dir      string
	VarFile  string // optional
	PlanFile string
}

// Initialized reports whether terraform init already ran in the workspace.
func (w Workspace) Initialized() bool {
	info, err := os.Stat(filepath.Join(w.Dir, ".terraform"))
	return err == nil && info.IsDir()
}

// Runner executes terraform commands.
type Runner struct {
	binary string
	out    io.Writer
	log    logr.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithBinary overrides the terraform executable.
func WithBinary(path string) Option {
	return func(r *Runner) { r.binary = path }
}

// WithLogger sets the logger used for command lines.
func WithLogger(log logr.Logger) Option {
	return func(r *Runner) { r.log = log }
}

// NewRunner creates a runner relaying terraform output to out.
func NewRunner(out io.Writer, opts ...Option) *Runner {
	r := &Runner{binary: "terraform", out: out, log: logr.Discard()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Initialized reports whether terraform init already ran in ws.
func (r *Runner) Initialized(ws Workspace) bool {
	return ws.Initialized()
}

// Init runs terraform init.
func (r *Runner) Init(ctx context.Context, ws Workspace) error {
	return r.run(ctx, ws, "init", "-input=false")
}

// Plan writes a plan for ws to its PlanFile.
func (r *Runner) Plan(ctx context.Context, ws Workspace) error {
	args := []string{"plan", "-input=false", "-out=" + ws.PlanFile}
	if ws.VarFile != "" {
		args = append(args, "-var-file="+ws.VarFile)
	}
	return r.run(ctx, ws, args...)
}

// Apply applies the plan saved by Plan.
func (r *Runner) Apply(ctx context.Context, ws Workspace) error {
	return r.run(ctx, ws, "apply", "-input=false", ws.PlanFile)
}

// Destroy tears down every resource of ws without prompting.
func (r *Runner) Destroy(ctx context.Context, ws Workspace) error {
	args := []string{"destroy", "-input=false", "-auto-approve"}
	if ws.VarFile != "" {
		args = append(args, "-var-file="+ws.VarFile)
	}
	return r.run(ctx, ws, args...)
}

// Output returns `terraform output -json` for ws.
func (r *Runner) Output(ctx context.Context, ws Workspace) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := newCommandT("output")
	// Outputs are parsed, not shown, so they bypass the relay.
	opts := r.options(ws, logger.Discard)
	out, err := tt.OutputJsonE(t, opts, "")
	if err != nil {
		return nil, fmt.Errorf("terraform output in %s failed: %w", ws.Dir, err)
	}
	return []byte(out), nil
}

func (r *Runner) run(ctx context.Context, ws Workspace, args ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.log.V(1).Info("terraform", "dir", ws.Dir, "args", args)

	t := newCommandT(args[0])
	opts := r.options(ws, logger.New(&relay{out: r.out}))
	if _, err := tt.RunTerraformCommandE(t, opts, args...); err != nil {
		return fmt.Errorf("terraform %s in %s failed: %w", args[0], ws.Dir, err)
	}
	return nil
}

func (r *Runner) options(ws Workspace, l *logger.Logger) *tt.Options {
	return &tt.Options{
		TerraformDir:    ws.Dir,
		TerraformBinary: r.binary,
		NoColor:         true,
		Lock:            true,
		Logger:          l,
	}
}

// relay writes every line terratest logs to out unchanged.
type relay struct {
	mu  sync.Mutex
	out io.Writer
}

func (r *relay) Logf(_ testing.TestingT, format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintf(r.out, format+"\n", args...)
}

// commandT satisfies terratest's TestingT outside of a test binary. The E
// variants used here report failures through their error return, so the
// failure methods only record state.
type commandT struct {
	name   string
	failed bool
}

func newCommandT(name string) *commandT { return &commandT{name: "terraform-" + name} }

func (c *commandT) Fail()                                  { c.failed = true }
func (c *commandT) FailNow()                               { c.failed = true }
func (c *commandT) Fatal(args ...interface{})              { c.failed = true }
func (c *commandT) Fatalf(format string, a ...interface{}) { c.failed = true }
func (c *commandT) Error(args ...interface{})              { c.failed = true }
func (c *commandT) Errorf(format string, a ...interface{}) { c.failed = true }
func (c *commandT) Name() string                           { return c.name }
