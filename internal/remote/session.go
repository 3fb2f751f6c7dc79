// Package remote runs shell commands on cluster hosts over ssh and uploads
// small files with scp.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	scp "github.com/bramvdbogaerde/go-scp"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/crypto/ssh"

	"github.com/mila-iqia/milatools/internal/config"
	milaerrors "github.com/mila-iqia/milatools/internal/errors"
	"github.com/mila-iqia/milatools/internal/security"
)

var hostStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))

// DialOptions configure how a Session is opened.
type DialOptions struct {
	// KnownHostsPath defaults to ~/.ssh/known_hosts.
	KnownHostsPath string
	// InsecureHostKey skips host key verification. Only tests use it.
	InsecureHostKey bool
	// HomeDir is searched for default keys; defaults to the user's home.
	HomeDir  string
	Prompter Prompter
	// Out receives the "(host) $ cmd" echo of commands.
	Out io.Writer
	// Warn receives host key notices.
	Warn    io.Writer
	Logger  *log.Logger
	Timeout time.Duration
}

func (o *DialOptions) setDefaults() {
	if o.HomeDir == "" {
		o.HomeDir, _ = os.UserHomeDir()
	}
	if o.KnownHostsPath == "" {
		o.KnownHostsPath = filepath.Join(o.HomeDir, config.SSHConfigDirName, config.KnownHostsFileName)
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.Warn == nil {
		o.Warn = defaultWarnWriter
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard, "", 0)
	}
	if o.Timeout == 0 {
		o.Timeout = config.SSHConnectTimeout * time.Second
	}
}

// RunOptions control a single remote command.
type RunOptions struct {
	// Warn reports a non-zero exit in the Result instead of as an error.
	Warn bool
	// Hide suppresses the "(host) $ cmd" echo.
	Hide bool
}

// Result is the outcome of a remote command.
type Result struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
}

// OK reports whether the command exited with status 0.
func (r *Result) OK() bool { return r.ExitCode == 0 }

// ExitError is returned for a non-zero exit when RunOptions.Warn is false.
type ExitError struct {
	Host   string
	Result *Result
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("command on %s exited with status %d: %s", e.Host, e.Result.ExitCode, e.Result.Command)
	if stderr := strings.TrimSpace(e.Result.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

// Session is an open ssh connection to one host.
type Session struct {
	target Target
	client *ssh.Client
	jump   *ssh.Client
	out    io.Writer
	logger *log.Logger

	homeOnce sync.Once
	home     string
	homeErr  error
}

// Dial opens an ssh connection to t, going through t.Jump when set.
func Dial(ctx context.Context, t Target, opts DialOptions) (*Session, error) {
	opts.setDefaults()

	var jumpClient *ssh.Client
	var conn net.Conn
	var err error
	if t.Jump != nil {
		jumpClient, err = dialClient(ctx, *t.Jump, nil, &opts)
		if err != nil {
			return nil, fmt.Errorf("connect to jump host %s: %w", t.Jump, err)
		}
		conn, err = jumpClient.DialContext(ctx, "tcp", t.Addr())
		if err != nil {
			jumpClient.Close()
			return nil, fmt.Errorf("dial %s through %s: %w", t.Addr(), t.Jump, err)
		}
	}

	client, err := dialClient(ctx, t, conn, &opts)
	if err != nil {
		if jumpClient != nil {
			jumpClient.Close()
		}
		return nil, err
	}

	return &Session{
		target: t,
		client: client,
		jump:   jumpClient,
		out:    opts.Out,
		logger: opts.Logger,
	}, nil
}

func dialClient(ctx context.Context, t Target, conn net.Conn, opts *DialOptions) (*ssh.Client, error) {
	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if opts.InsecureHostKey {
		opts.Logger.Printf("WARNING: Host key verification is disabled for %s", t)
	} else {
		var err error
		hostKeyCallback, err = HostKeyCallback(opts.KnownHostsPath, t.User, opts.Prompter, opts.Warn, opts.Logger)
		if err != nil {
			return nil, fmt.Errorf("could not set up host key verification: %w", err)
		}
	}

	cfg := &ssh.ClientConfig{
		User:            t.User,
		Auth:            authMethods(t, opts.HomeDir, opts.Prompter, opts.Logger),
		HostKeyCallback: hostKeyCallback,
		Timeout:         opts.Timeout,
	}

	if conn == nil {
		opts.Logger.Printf("Dialing %s (%s)", t, t.Addr())
		dialer := net.Dialer{Timeout: opts.Timeout}
		var err error
		conn, err = dialer.DialContext(ctx, "tcp", t.Addr())
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", t.Addr(), err)
		}
	}

	// the handshake may prompt the user, so it is bounded by the context
	// rather than by a fixed deadline
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, t.Addr(), cfg)
	if err != nil {
		conn.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if milaerrors.CodeOf(err) == milaerrors.ErrCodeUnknown && strings.Contains(err.Error(), "unable to authenticate") {
			return nil, milaerrors.NewSSHAuthError(t.User, t.String(), err)
		}
		return nil, fmt.Errorf("ssh handshake with %s failed: %w", t, err)
	}
	opts.Logger.Printf("SSH connection to %s established", t)
	return ssh.NewClient(sshConn, chans, reqs), nil
}

// Target returns the host this session is connected to.
func (s *Session) Target() Target { return s.target }

// Close closes the connection and any jump connection under it.
func (s *Session) Close() error {
	err := s.client.Close()
	if s.jump != nil {
		if jerr := s.jump.Close(); err == nil {
			err = jerr
		}
	}
	return err
}

// Display echoes cmd as "(host) $ cmd".
func (s *Session) Display(cmd string) {
	fmt.Fprintln(s.out, hostStyle.Render(fmt.Sprintf("(%s) $ ", s.target))+cmd)
}

// Run runs cmd in the remote login shell and waits for it. Cancelling ctx
// closes the channel, which ends the command.
func (s *Session) Run(ctx context.Context, cmd string, opts RunOptions) (*Result, error) {
	if !opts.Hide {
		s.Display(cmd)
	}
	s.logger.Printf("Running remote command on %s: %s", s.target, cmd)

	sess, err := s.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH session: %w", err)
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- sess.Run(cmd) }()

	var runErr error
	select {
	case runErr = <-done:
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGTERM)
		sess.Close()
		return nil, ctx.Err()
	}

	res := &Result{Command: cmd, Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *ssh.ExitError
	switch {
	case runErr == nil:
	case errors.As(runErr, &exitErr):
		res.ExitCode = exitErr.ExitStatus()
	default:
		return nil, fmt.Errorf("remote command on %s failed: %w", s.target, runErr)
	}

	s.logger.Printf("Remote command on %s exited with status %d", s.target, res.ExitCode)
	if res.ExitCode != 0 && !opts.Warn {
		return res, &ExitError{Host: s.target.String(), Result: res}
	}
	return res, nil
}

// GetOutput runs cmd without echoing it and returns its trimmed output.
func (s *Session) GetOutput(ctx context.Context, cmd string) (string, error) {
	res, err := s.Run(ctx, cmd, RunOptions{Hide: true})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// GetLines runs cmd and returns the non-empty lines of its output.
func (s *Session) GetLines(ctx context.Context, cmd string) ([]string, error) {
	out, err := s.GetOutput(ctx, cmd)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// Home returns the remote home directory.
func (s *Session) Home(ctx context.Context) (string, error) {
	s.homeOnce.Do(func() {
		s.home, s.homeErr = s.GetOutput(ctx, "echo $HOME")
	})
	return s.home, s.homeErr
}

// PutText writes text to dest on the remote host, creating the parent
// directory first. Relative paths are relative to the remote home.
func (s *Session) PutText(ctx context.Context, text, dest string) error {
	if err := security.ValidateRemotePath(dest); err != nil {
		return fmt.Errorf("invalid remote path: %w", err)
	}
	if dir := path.Dir(dest); dir != "." && dir != "/" {
		if _, err := s.Run(ctx, "mkdir -p "+security.ShellQuote(dir), RunOptions{Hide: true}); err != nil {
			return err
		}
	}

	scpClient, err := scp.NewClientBySSH(s.client)
	if err != nil {
		return fmt.Errorf("error creating new SCP client: %w", err)
	}
	defer scpClient.Close()

	s.logger.Printf("Uploading %d bytes to %s:%s", len(text), s.target, dest)
	if err := scpClient.CopyFile(ctx, strings.NewReader(text), dest, "0644"); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("upload cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("error uploading %s: %w", dest, err)
	}
	return nil
}
