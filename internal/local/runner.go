// Package local runs commands on the user's machine and echoes them the
// way they would be typed.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mila-iqia/milatools/internal/security"
)

var promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))

// Command is a program and its arguments. Stdin, when set, is fed to the
// program's standard input.
type Command struct {
	Name  string
	Args  []string
	Stdin string
}

// Cmd builds a Command.
func Cmd(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// String renders the command as it could be pasted into a shell.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, security.ShellQuote(c.Name))
	for _, a := range c.Args {
		parts = append(parts, security.ShellQuote(a))
	}
	return strings.Join(parts, " ")
}

// Options control how a command is run.
type Options struct {
	// Warn reports a non-zero exit in the Result instead of as an error.
	Warn bool
	// Hide suppresses the "(local) $ cmd" echo.
	Hide bool
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env is added to the inherited environment.
	Env []string
}

// Result is the outcome of a finished command.
type Result struct {
	Command  Command
	ExitCode int
	Stdout   string
	Stderr   string
}

// OK reports whether the command exited with status 0.
func (r *Result) OK() bool { return r.ExitCode == 0 }

// CommandNotFoundError is returned when the program is not on PATH.
type CommandNotFoundError struct {
	Name string
}

func (e *CommandNotFoundError) Error() string {
	return fmt.Sprintf("command not found: %s", e.Name)
}

// ExitError is returned for a non-zero exit when Options.Warn is false.
type ExitError struct {
	Result *Result
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Result.Command.Name, e.Result.ExitCode)
	if stderr := strings.TrimSpace(e.Result.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

// Runner executes local commands.
type Runner struct {
	out    io.Writer
	logger *log.Logger

	// lookPath is replaced in tests
	lookPath func(string) (string, error)
}

// NewRunner returns a Runner that echoes commands to out.
func NewRunner(out io.Writer, logger *log.Logger) *Runner {
	if out == nil {
		out = os.Stdout
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Runner{out: out, logger: logger, lookPath: exec.LookPath}
}

// Display echoes cmd as "(local) $ cmd".
func (r *Runner) Display(cmd Command) {
	fmt.Fprintln(r.out, promptStyle.Render("(local) $ ")+cmd.String())
}

func (r *Runner) prepare(ctx context.Context, cmd Command, opts Options) (*exec.Cmd, error) {
	path, err := r.lookPath(cmd.Name)
	if err != nil {
		return nil, &CommandNotFoundError{Name: cmd.Name}
	}
	if !opts.Hide {
		r.Display(cmd)
	}
	r.logger.Printf("Running local command: %s", cmd)

	c := exec.CommandContext(ctx, path, cmd.Args...)
	c.Dir = opts.Dir
	if len(opts.Env) > 0 {
		c.Env = append(os.Environ(), opts.Env...)
	}
	if cmd.Stdin != "" {
		c.Stdin = strings.NewReader(cmd.Stdin)
	}
	return c, nil
}

// Run runs cmd to completion and captures its output.
func (r *Runner) Run(ctx context.Context, cmd Command, opts Options) (*Result, error) {
	c, err := r.prepare(ctx, cmd, opts)
	if err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	return r.finish(cmd, opts, c.Run(), &stdout, &stderr)
}

func (r *Runner) finish(cmd Command, opts Options, runErr error, stdout, stderr *bytes.Buffer) (*Result, error) {
	res := &Result{Command: cmd, Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
	case errors.As(runErr, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		return nil, fmt.Errorf("failed to run %s: %w", cmd.Name, runErr)
	}

	r.logger.Printf("Local command %s exited with status %d", cmd.Name, res.ExitCode)
	if res.ExitCode != 0 && !opts.Warn {
		return res, &ExitError{Result: res}
	}
	return res, nil
}

// Get runs cmd and returns its trimmed standard output.
func (r *Runner) Get(ctx context.Context, cmd Command, opts Options) (string, error) {
	res, err := r.Run(ctx, cmd, opts)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// Process is a command started with Start.
type Process struct {
	runner *Runner
	cmd    Command
	opts   Options
	c      *exec.Cmd
	stdout bytes.Buffer
	stderr bytes.Buffer
}

// Start launches cmd without waiting for it.
func (r *Runner) Start(ctx context.Context, cmd Command, opts Options) (*Process, error) {
	c, err := r.prepare(ctx, cmd, opts)
	if err != nil {
		return nil, err
	}
	p := &Process{runner: r, cmd: cmd, opts: opts, c: c}
	c.Stdout = &p.stdout
	c.Stderr = &p.stderr
	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", cmd.Name, err)
	}
	return p, nil
}

// Pid returns the process id.
func (p *Process) Pid() int { return p.c.Process.Pid }

// Wait blocks until the process exits.
func (p *Process) Wait() (*Result, error) {
	return p.runner.finish(p.cmd, p.opts, p.c.Wait(), &p.stdout, &p.stderr)
}

// ErrUnexpectedSSHFailure is returned by CheckPasswordless when ssh fails
// for a reason other than a refused key.
var ErrUnexpectedSSHFailure = errors.New("could not understand ssh error")

// CheckPasswordless reports whether host accepts public key authentication
// without prompting.
func (r *Runner) CheckPasswordless(ctx context.Context, host string) (bool, error) {
	res, err := r.Run(ctx, Cmd("ssh", "-oPreferredAuthentications=publickey", host, "echo OK"), Options{Warn: true})
	if err != nil {
		return false, err
	}
	if res.OK() {
		return true, nil
	}
	if strings.Contains(res.Stderr, "Permission denied") {
		return false, nil
	}
	return false, fmt.Errorf("failed to connect to %s: %w: %s", host, ErrUnexpectedSSHFailure, strings.TrimSpace(res.Stderr))
}
