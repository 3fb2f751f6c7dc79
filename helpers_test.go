package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mila-iqia/milatools/internal/local"
	"github.com/mila-iqia/milatools/internal/remote"
)

// fakePrompter answers from canned values and records the questions.
type fakePrompter struct {
	input     string
	confirm   bool
	questions []string
}

func (p *fakePrompter) Input(title string, validate func(string) error) (string, error) {
	p.questions = append(p.questions, title)
	if validate != nil {
		if err := validate(p.input); err != nil {
			return "", err
		}
	}
	return p.input, nil
}

func (p *fakePrompter) Confirm(title string) (bool, error) {
	p.questions = append(p.questions, title)
	return p.confirm, nil
}

// fakeRunner records local commands instead of running them.
type fakeRunner struct {
	passwordless bool
	checkErr     error
	commands     []string
	checked      []string
}

func (r *fakeRunner) Run(ctx context.Context, cmd local.Command, opts local.Options) (*local.Result, error) {
	r.commands = append(r.commands, cmd.String())
	return &local.Result{Command: cmd}, nil
}

func (r *fakeRunner) CheckPasswordless(ctx context.Context, host string) (bool, error) {
	r.checked = append(r.checked, host)
	return r.passwordless, r.checkErr
}

// fakeShell replays canned results for remote commands. Commands without
// a reply succeed with no output.
type fakeShell struct {
	replies  map[string]remote.Result
	commands []string
	closed   bool
}

func newFakeShell() *fakeShell {
	return &fakeShell{replies: make(map[string]remote.Result)}
}

func (s *fakeShell) on(cmd, stdout string, status int) {
	s.replies[cmd] = remote.Result{Stdout: stdout, ExitCode: status}
}

func (s *fakeShell) Run(ctx context.Context, cmd string, opts remote.RunOptions) (*remote.Result, error) {
	s.commands = append(s.commands, cmd)
	res := s.replies[cmd]
	res.Command = cmd
	if res.ExitCode != 0 && !opts.Warn {
		return &res, &remote.ExitError{Host: "mila", Result: &res}
	}
	return &res, nil
}

func (s *fakeShell) GetOutput(ctx context.Context, cmd string) (string, error) {
	res, err := s.Run(ctx, cmd, remote.RunOptions{Hide: true})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

func (s *fakeShell) GetLines(ctx context.Context, cmd string) ([]string, error) {
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

func (s *fakeShell) Close() error {
	s.closed = true
	return nil
}

// ran reports whether cmd was sent to the shell.
func (s *fakeShell) ran(cmd string) bool {
	for _, c := range s.commands {
		if c == cmd {
			return true
		}
	}
	return false
}

// testEnv is a Config wired to fakes inside a temporary home.
type testEnv struct {
	cfg    *Config
	out    *bytes.Buffer
	errOut *bytes.Buffer
	prompt *fakePrompter
	runner *fakeRunner
	shell  *fakeShell
	home   string
}

// newTestEnv isolates HOME and the MILATOOLS_* environment and returns a
// loaded Config.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	for _, key := range []string{"MILATOOLS_USERNAME", "MILATOOLS_LANG", "MILATOOLS_SSH_CONFIG", "MILATOOLS_CLUSTER_ALIAS"} {
		t.Setenv(key, "")
	}

	env := &testEnv{
		out:    &bytes.Buffer{},
		errOut: &bytes.Buffer{},
		prompt: &fakePrompter{},
		runner: &fakeRunner{passwordless: true},
		shell:  newFakeShell(),
		home:   home,
	}
	cfg := newConfig()
	cfg.out = env.out
	cfg.errOut = env.errOut
	cfg.prompt = env.prompt
	cfg.runner = env.runner
	cfg.connect = func(context.Context) (remoteShell, error) { return env.shell, nil }
	env.cfg = cfg
	return env
}

// load applies the global options the way PersistentPreRunE does.
func (e *testEnv) load(t *testing.T) *Config {
	t.Helper()
	if e.cfg.SSHConfigFile == "" {
		e.cfg.SSHConfigFile = e.sshConfigPath()
	}
	e.cfg.Language = LangEnglish
	if err := e.cfg.load(); err != nil {
		t.Fatalf("load() error = %v", err)
	}
	return e.cfg
}

func (e *testEnv) sshConfigPath() string {
	return filepath.Join(e.home, ".ssh", "config")
}
