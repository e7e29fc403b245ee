package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-logr/logr"

	"github.com/kapctl/kap/internal/util/retry"
)

// State is the lifecycle position of a Session.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrNotConnected is returned by operations on a session that is not connected.
var ErrNotConnected = errors.New("session is not connected")

// CommandError reports a command whose nonzero exit status the caller treats as fatal.
type CommandError struct {
	Host       string
	Command    string
	ExitStatus int
	Stderr     string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q on %s exited with status %d", e.Command, e.Host, e.ExitStatus)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// Result is the outcome of a buffered command.
type Result struct {
	ExitStatus int
	Stdout     string
	Stderr     string
}

// Session is a single-use remote session bound to one host.
// It is not safe for concurrent use.
type Session struct {
	dialer    Dialer
	host      string
	policy    retry.Policy
	log       logr.Logger
	retryOpts []retry.Option

	state     State
	transport Transport
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionLogger sets the logger used for progress lines.
func WithSessionLogger(log logr.Logger) SessionOption {
	return func(s *Session) { s.log = log }
}

// WithConnectOptions forwards options to the connect poll.
func WithConnectOptions(opts ...retry.Option) SessionOption {
	return func(s *Session) { s.retryOpts = append(s.retryOpts, opts...) }
}

// NewSession creates a disconnected session to host. policy bounds Connect.
func NewSession(dialer Dialer, host string, policy retry.Policy, opts ...SessionOption) *Session {
	s := &Session{
		dialer: dialer,
		host:   host,
		policy: policy,
		log:    logr.Discard(),
		state:  Disconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Host returns the address the session is bound to.
func (s *Session) Host() string { return s.host }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Connect performs the handshake, retrying authentication and network
// failures up to the session policy. A session that fails to connect is
// closed and cannot be reused.
func (s *Session) Connect(ctx context.Context) error {
	if s.state != Disconnected {
		return fmt.Errorf("cannot connect a session that is %s", s.state)
	}
	s.state = Connecting

	opts := append([]retry.Option{
		retry.OnFailure(func(attempt int, err error) {
			s.log.Info(fmt.Sprintf("Establishing SSH connection with host %s...", s.host),
				"attempt", attempt, "max", s.policy.MaxAttempts, "reason", err.Error())
		}),
	}, s.retryOpts...)

	transport, err := retry.Await(ctx, s.policy, func() (Transport, error) {
		return s.dialer.Dial(ctx, s.host)
	}, opts...)
	if err != nil {
		s.state = Closed
		return fmt.Errorf("unable to establish SSH connection with %s: %w", s.host, err)
	}

	s.transport = transport
	s.state = Connected
	s.log.Info(fmt.Sprintf("Successful SSH connection with host %s", s.host))
	return nil
}

// Stream runs command with its output copied to stdout and stderr as it arrives.
func (s *Session) Stream(ctx context.Context, command string, stdout, stderr io.Writer) (int, error) {
	if s.state != Connected {
		return -1, ErrNotConnected
	}
	s.log.V(1).Info("remote command", "host", s.host, "command", command)
	status, err := s.transport.Run(ctx, command, stdout, stderr)
	if err != nil {
		return status, err
	}
	s.log.V(1).Info("remote command finished", "host", s.host, "status", status)
	return status, nil
}

// Execute runs command and buffers its output.
func (s *Session) Execute(ctx context.Context, command string) (*Result, error) {
	var stdout, stderr bytes.Buffer
	status, err := s.Stream(ctx, command, &stdout, &stderr)
	if err != nil {
		return nil, err
	}
	return &Result{ExitStatus: status, Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

// Run executes command and converts a nonzero exit status into a CommandError.
func (s *Session) Run(ctx context.Context, command string) (*Result, error) {
	res, err := s.Execute(ctx, command)
	if err != nil {
		return nil, err
	}
	if res.ExitStatus != 0 {
		return res, &CommandError{Host: s.host, Command: command, ExitStatus: res.ExitStatus, Stderr: res.Stderr}
	}
	return res, nil
}

// PutFile copies a local file to remotePath.
func (s *Session) PutFile(ctx context.Context, localPath, remotePath string) error {
	if s.state != Connected {
		return ErrNotConnected
	}
	s.log.V(1).Info("upload", "host", s.host, "local", localPath, "remote", remotePath)
	return s.transport.Upload(ctx, localPath, remotePath)
}

// GetFile copies remotePath to a local file.
func (s *Session) GetFile(ctx context.Context, remotePath, localPath string) error {
	if s.state != Connected {
		return ErrNotConnected
	}
	s.log.V(1).Info("download", "host", s.host, "remote", remotePath, "local", localPath)
	return s.transport.Download(ctx, remotePath, localPath)
}

// RemoteFileExists reports whether path exists on the host. It never
// modifies the remote filesystem: exit status 0 means present, 1 means
// absent, anything else is an error.
func (s *Session) RemoteFileExists(ctx context.Context, path string) (bool, error) {
	command := "test -e " + Quote(path)
	res, err := s.Execute(ctx, command)
	if err != nil {
		return false, err
	}
	switch res.ExitStatus {
	case 0:
		return true, nil
	case 1:
		return false, nil
	default:
		return false, &CommandError{Host: s.host, Command: command, ExitStatus: res.ExitStatus, Stderr: res.Stderr}
	}
}

// Close releases the connection. It is safe to call more than once; only
// the first call on a connected session closes the transport.
func (s *Session) Close() error {
	if s.state != Connected {
		s.state = Closed
		return nil
	}
	s.state = Closed
	err := s.transport.Close()
	s.transport = nil
	if err != nil {
		return fmt.Errorf("failed to close SSH connection to %s: %w", s.host, err)
	}
	return nil
}

// WithSession opens a session, runs fn and closes the session on every exit path.
func WithSession(ctx context.Context, dialer Dialer, host string, policy retry.Policy, fn func(*Session) error, opts ...SessionOption) (err error) {
	s := NewSession(dialer, host, policy, opts...)
	if err := s.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return fn(s)
}

// Quote returns s as a single-quoted POSIX shell word.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
