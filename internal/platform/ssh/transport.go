package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

const (
	defaultPort        = 22
	defaultDialTimeout = 10 * time.Second
)

// Transport is one authenticated connection to a host.
type Transport interface {
	// Run executes command and returns its exit status. A nonzero status is
	// not an error; err is reserved for failures of the connection itself.
	Run(ctx context.Context, command string, stdout, stderr io.Writer) (int, error)
	Upload(ctx context.Context, localPath, remotePath string) error
	Download(ctx context.Context, remotePath, localPath string) error
	Close() error
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, host string) (Transport, error)
}

// Config holds SSH client configuration.
type Config struct {
	User       string
	PrivateKey []byte
	Port       int

	// DialTimeout is the timeout for establishing the TCP connection.
	// If zero, defaultDialTimeout is used.
	DialTimeout time.Duration

	// HostKeyCallback handles host key verification.
	// If nil, ssh.InsecureIgnoreHostKey() is used: service nodes are recreated
	// with every cluster and their host keys are never known in advance.
	HostKeyCallback ssh.HostKeyCallback
}

// KeyDialer dials hosts with public key authentication.
// It parses the private key once during construction.
type KeyDialer struct {
	config *Config
	signer ssh.Signer
}

// NewKeyDialer creates a dialer and validates the private key.
func NewKeyDialer(cfg *Config) (*KeyDialer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("config user cannot be empty")
	}
	if len(cfg.PrivateKey) == 0 {
		return nil, fmt.Errorf("config private key cannot be empty")
	}

	// Copy config to avoid mutating caller's struct
	configCopy := *cfg
	if configCopy.Port == 0 {
		configCopy.Port = defaultPort
	}
	if configCopy.DialTimeout == 0 {
		configCopy.DialTimeout = defaultDialTimeout
	}
	if configCopy.HostKeyCallback == nil {
		configCopy.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // service nodes are ephemeral
	}

	signer, err := ssh.ParsePrivateKey(configCopy.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &KeyDialer{config: &configCopy, signer: signer}, nil
}

// NewKeyDialerFromFile reads the identity file at path.
func NewKeyDialerFromFile(user, path string) (*KeyDialer, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key %s: %w", path, err)
	}
	return NewKeyDialer(&Config{User: user, PrivateKey: key})
}

// Dial performs a single handshake attempt with host. host may carry a port.
func (d *KeyDialer) Dial(ctx context.Context, host string) (Transport, error) {
	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, strconv.Itoa(d.config.Port))
	}

	clientConfig := &ssh.ClientConfig{
		User:            d.config.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(d.signer)},
		HostKeyCallback: d.config.HostKeyCallback,
		Timeout:         d.config.DialTimeout,
	}

	dialer := &net.Dialer{Timeout: d.config.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("SSH handshake with %s failed: %w", addr, err)
	}

	return &clientTransport{client: ssh.NewClient(c, chans, reqs), addr: addr}, nil
}

type clientTransport struct {
	client *ssh.Client
	addr   string
}

func (t *clientTransport) Run(_ context.Context, command string, stdout, stderr io.Writer) (int, error) {
	session, err := t.client.NewSession()
	if err != nil {
		return -1, fmt.Errorf("failed to create SSH session on %s: %w", t.addr, err)
	}
	defer func() { _ = session.Close() }()

	session.Stdout = stdout
	session.Stderr = stderr

	err = session.Run(command)
	if err == nil {
		return 0, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitStatus(), nil
	}
	return -1, fmt.Errorf("command did not complete on %s: %w", t.addr, err)
}

func (t *clientTransport) Upload(ctx context.Context, localPath, remotePath string) error {
	client, err := sftp.NewClient(t.client)
	if err != nil {
		return fmt.Errorf("failed to create SFTP client: %w", err)
	}
	defer func() { _ = client.Close() }()

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file: %w", err)
	}
	defer func() { _ = src.Close() }()

	dst, err := client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("failed to create remote file %s: %w", remotePath, err)
	}
	defer func() { _ = dst.Close() }()

	if _, err := copyWithContext(ctx, dst, src); err != nil {
		return fmt.Errorf("failed to upload %s: %w", localPath, err)
	}
	return nil
}

func (t *clientTransport) Download(ctx context.Context, remotePath, localPath string) error {
	client, err := sftp.NewClient(t.client)
	if err != nil {
		return fmt.Errorf("failed to create SFTP client: %w", err)
	}
	defer func() { _ = client.Close() }()

	src, err := client.Open(remotePath)
	if err != nil {
		return fmt.Errorf("failed to open remote file %s: %w", remotePath, err)
	}
	defer func() { _ = src.Close() }()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o700); err != nil {
		return fmt.Errorf("failed to create local directory: %w", err)
	}
	dst, err := os.OpenFile(localPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create local file: %w", err)
	}
	defer func() { _ = dst.Close() }()

	if _, err := copyWithContext(ctx, dst, src); err != nil {
		return fmt.Errorf("failed to download %s: %w", remotePath, err)
	}
	return nil
}

func (t *clientTransport) Close() error {
	return t.client.Close()
}

// copyWithContext copies in chunks, checking for cancellation between them.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			written += int64(w)
			if werr != nil {
				return written, werr
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}
