package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/mock"

	"github.com/kapctl/kap/internal/platform/ec2"
	"github.com/kapctl/kap/internal/platform/ssh"
	"github.com/kapctl/kap/internal/platform/terraform"
	"github.com/kapctl/kap/internal/provisioning"
	"github.com/kapctl/kap/internal/ui/prompt"
)

// CallLog records calls across fakes in the order they happen.
type CallLog struct {
	mu    sync.Mutex
	calls []string
}

// Record appends one formatted entry. A nil log ignores the call.
func (l *CallLog) Record(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

// Calls returns a copy of the entries.
func (l *CallLog) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// WithPrefix returns the entries starting with prefix.
func (l *CallLog) WithPrefix(prefix string) []string {
	var out []string
	for _, c := range l.Calls() {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// FakeProvisioner records terraform commands. Workspaces are identified by
// their directory base name (Infra_deploy, s3_deploy).
type FakeProvisioner struct {
	Log *CallLog

	// InitializedDirs marks workspaces whose .terraform directory exists.
	InitializedDirs map[string]bool
	// OutputJSON is returned by Output; nil means an empty state.
	OutputJSON []byte
	// Errors fails the named command ("plan", "apply", ...).
	Errors map[string]error
}

func (p *FakeProvisioner) call(cmd string, ws terraform.Workspace) error {
	p.Log.Record("terraform.%s %s", cmd, filepath.Base(ws.Dir))
	return p.Errors[cmd]
}

// Initialized reports the configured marker for ws.
func (p *FakeProvisioner) Initialized(ws terraform.Workspace) bool {
	return p.InitializedDirs[filepath.Base(ws.Dir)]
}

func (p *FakeProvisioner) Init(_ context.Context, ws terraform.Workspace) error {
	if err := p.call("init", ws); err != nil {
		return err
	}
	if p.InitializedDirs == nil {
		p.InitializedDirs = map[string]bool{}
	}
	p.InitializedDirs[filepath.Base(ws.Dir)] = true
	return nil
}

func (p *FakeProvisioner) Plan(_ context.Context, ws terraform.Workspace) error {
	return p.call("plan", ws)
}

func (p *FakeProvisioner) Apply(_ context.Context, ws terraform.Workspace) error {
	return p.call("apply", ws)
}

func (p *FakeProvisioner) Destroy(_ context.Context, ws terraform.Workspace) error {
	return p.call("destroy", ws)
}

func (p *FakeProvisioner) Output(_ context.Context, ws terraform.Workspace) ([]byte, error) {
	if err := p.call("output", ws); err != nil {
		return nil, err
	}
	if p.OutputJSON == nil {
		return []byte("{}"), nil
	}
	return p.OutputJSON, nil
}

// FakeLocator returns a fixed endpoint.
type FakeLocator struct {
	Log      *CallLog
	Endpoint *ec2.ServiceEndpoint
	Err      error
	Calls    int
}

// NewFakeLocator resolves to a running service node.
func NewFakeLocator(log *CallLog) *FakeLocator {
	return &FakeLocator{
		Log: log,
		Endpoint: &ec2.ServiceEndpoint{
			InstanceID: "i-0123456789abcdef0",
			PublicDNS:  "ec2-13-38-0-1.eu-west-3.compute.amazonaws.com",
			PublicIP:   "13.38.0.1",
			State:      "running",
		},
	}
}

func (l *FakeLocator) Locate(_ context.Context, tag, region string) (*ec2.ServiceEndpoint, error) {
	l.Calls++
	l.Log.Record("ec2.locate %s %s", tag, region)
	if l.Err != nil {
		return nil, l.Err
	}
	return l.Endpoint, nil
}

// FakeRemote is the filesystem and command behavior of a fake service node.
type FakeRemote struct {
	Log *CallLog

	mu    sync.Mutex
	files map[string][]byte

	// ReadyAfter makes `test -e` on a path in Pending fail this many times.
	ReadyAfter int
	Pending    map[string]bool
	probes     map[string]int

	// ExitStatus overrides the exit status of commands containing the key.
	ExitStatus map[string]int
	// Output is written to stdout for commands containing the key.
	Output map[string]string
	// UploadFailures fails this many uploads before succeeding.
	UploadFailures int
}

// NewFakeRemote creates an empty remote.
func NewFakeRemote(log *CallLog) *FakeRemote {
	return &FakeRemote{
		Log:        log,
		files:      map[string][]byte{},
		Pending:    map[string]bool{},
		probes:     map[string]int{},
		ExitStatus: map[string]int{},
		Output:     map[string]string{},
	}
}

// Put places a file on the remote.
func (r *FakeRemote) Put(path string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[path] = data
}

// File returns a remote file and whether it exists.
func (r *FakeRemote) File(path string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.files[path]
	return data, ok
}

func (r *FakeRemote) exists(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Pending[path] {
		r.probes[path]++
		if r.probes[path] <= r.ReadyAfter {
			return false
		}
		return true
	}
	if _, ok := r.files[path]; ok {
		return true
	}
	prefix := strings.TrimRight(path, "/") + "/"
	for p := range r.files {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func (r *FakeRemote) run(command string, stdout io.Writer) int {
	r.Log.Record("ssh.run %s", command)

	if strings.HasPrefix(command, "test -e ") {
		if r.exists(unquote(strings.TrimPrefix(command, "test -e "))) {
			return 0
		}
		return 1
	}

	for key, out := range r.Output {
		if strings.Contains(command, key) {
			_, _ = io.WriteString(stdout, out)
		}
	}
	for key, status := range r.ExitStatus {
		if strings.Contains(command, key) {
			return status
		}
	}
	return 0
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return strings.ReplaceAll(s[1:len(s)-1], `'\''`, "'")
	}
	return s
}

// FakeDialer opens FakeTransports onto Remote and tracks their lifetime.
type FakeDialer struct {
	Log    *CallLog
	Remote *FakeRemote

	// FailFirst fails this many dials before succeeding.
	FailFirst int

	mu           sync.Mutex
	dials        int
	opened       int
	closed       int
	doubleClosed int
}

// Dial implements ssh.Dialer.
func (d *FakeDialer) Dial(_ context.Context, host string) (ssh.Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.dials <= d.FailFirst {
		return nil, errors.New("connection refused")
	}
	d.opened++
	d.Log.Record("ssh.open %s", host)
	return &FakeTransport{dialer: d, remote: d.Remote}, nil
}

// Opened returns the number of transports handed out.
func (d *FakeDialer) Opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

// Closed returns the number of transports closed.
func (d *FakeDialer) Closed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Balanced reports whether every opened transport was closed exactly once.
func (d *FakeDialer) Balanced() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened == d.closed && d.doubleClosed == 0
}

// FakeTransport is one connection to a FakeRemote.
type FakeTransport struct {
	dialer *FakeDialer
	remote *FakeRemote
	closed bool
}

func (t *FakeTransport) Run(_ context.Context, command string, stdout, _ io.Writer) (int, error) {
	if t.closed {
		return -1, errors.New("use of closed transport")
	}
	return t.remote.run(command, stdout), nil
}

func (t *FakeTransport) Upload(_ context.Context, localPath, remotePath string) error {
	r := t.remote
	r.mu.Lock()
	if r.UploadFailures > 0 {
		r.UploadFailures--
		r.mu.Unlock()
		r.Log.Record("ssh.put-failed %s", remotePath)
		return errors.New("sftp: connection lost")
	}
	r.mu.Unlock()

	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	r.Log.Record("ssh.put %s", remotePath)
	r.Put(remotePath, data)
	return nil
}

func (t *FakeTransport) Download(_ context.Context, remotePath, localPath string) error {
	data, ok := t.remote.File(remotePath)
	if !ok {
		return fmt.Errorf("sftp: %s: file does not exist", remotePath)
	}
	t.remote.Log.Record("ssh.get %s", remotePath)
	if err := os.MkdirAll(filepath.Dir(localPath), 0o700); err != nil {
		return err
	}
	return os.WriteFile(localPath, data, 0o600)
}

func (t *FakeTransport) Close() error {
	d := t.dialer
	d.mu.Lock()
	defer d.mu.Unlock()
	if t.closed {
		d.doubleClosed++
		return nil
	}
	t.closed = true
	d.closed++
	d.Log.Record("ssh.close")
	return nil
}

// MockBucketProber is a mock of the backup bucket readiness probe.
type MockBucketProber struct {
	mock.Mock
}

// BucketExists returns the configured answer.
func (m *MockBucketProber) BucketExists(ctx context.Context, bucket string) (bool, error) {
	args := m.Called(ctx, bucket)
	return args.Bool(0), args.Error(1)
}

// ScriptedPrompter answers confirmations from Answers in order.
type ScriptedPrompter struct {
	Answers   []string
	Questions []string
}

// Confirm returns the next scripted answer parsed like a console answer.
func (p *ScriptedPrompter) Confirm(_ context.Context, question string) (bool, error) {
	p.Questions = append(p.Questions, question)
	if len(p.Questions) > len(p.Answers) {
		return false, fmt.Errorf("unexpected question %q", question)
	}
	return prompt.Parse(p.Answers[len(p.Questions)-1])
}

// RecordingObserver is an Observer that keeps every line and event.
type RecordingObserver struct {
	mu       sync.Mutex
	Messages []string
	Events   []provisioning.Event
	Fields   map[string]string
}

// NewRecordingObserver creates an empty observer.
func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{Fields: map[string]string{}}
}

func (o *RecordingObserver) Printf(format string, v ...interface{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Messages = append(o.Messages, fmt.Sprintf(format, v...))
}

func (o *RecordingObserver) Event(event provisioning.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Events = append(o.Events, event)
}

func (o *RecordingObserver) Progress(stage string, current, total int) {
	o.Event(provisioning.Event{
		Type:    provisioning.EventProgress,
		Stage:   stage,
		Message: fmt.Sprintf("%d/%d", current, total),
		Fields:  map[string]string{"current": fmt.Sprint(current), "total": fmt.Sprint(total)},
	})
}

// WithFields records the fields and returns the same observer.
func (o *RecordingObserver) WithFields(fields map[string]string) provisioning.Observer {
	o.mu.Lock()
	defer o.mu.Unlock()
	for k, v := range fields {
		o.Fields[k] = v
	}
	return o
}

func (o *RecordingObserver) Logr() logr.Logger { return logr.Discard() }

// Output joins every recorded message.
func (o *RecordingObserver) Output() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return strings.Join(o.Messages, "\n")
}

// EventsOf returns the events of type t.
func (o *RecordingObserver) EventsOf(t provisioning.EventType) []provisioning.Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []provisioning.Event
	for _, e := range o.Events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
