package local

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeScript creates an executable shell script named name in dir.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

// newTestRunner resolves the given names to scripts and everything else via PATH.
func newTestRunner(out *bytes.Buffer, scripts map[string]string) *Runner {
	r := NewRunner(out, nil)
	real := r.lookPath
	r.lookPath = func(name string) (string, error) {
		if p, ok := scripts[name]; ok {
			return p, nil
		}
		return real(name)
	}
	return r
}

func TestCommandString(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{Cmd("squeue", "-j", "1234", "-ho", "%T"), "squeue -j 1234 -ho %T"},
		{Cmd("ssh", "mila", "echo OK"), "ssh mila 'echo OK'"},
		{Cmd("echo", ""), "echo ''"},
	}
	for _, tt := range tests {
		if got := tt.cmd.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestRunCapturesOutput(t *testing.T) {
	var out bytes.Buffer
	r := NewRunner(&out, nil)

	res, err := r.Run(context.Background(), Cmd("sh", "-c", "echo hello; echo oops >&2"), Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Stdout != "hello\n" || res.Stderr != "oops\n" || !res.OK() {
		t.Errorf("Run() = %+v", res)
	}
	if !strings.Contains(out.String(), "(local) $ ") || !strings.Contains(out.String(), "sh -c") {
		t.Errorf("command not echoed: %q", out.String())
	}
}

func TestRunHide(t *testing.T) {
	var out bytes.Buffer
	r := NewRunner(&out, nil)
	if _, err := r.Run(context.Background(), Cmd("true"), Options{Hide: true}); err != nil {
		t.Fatal(err)
	}
	if out.Len() != 0 {
		t.Errorf("Hide should suppress the echo, got %q", out.String())
	}
}

func TestRunStdin(t *testing.T) {
	r := NewRunner(&bytes.Buffer{}, nil)
	got, err := r.Get(context.Background(), Command{Name: "cat", Stdin: "from stdin\n"}, Options{Hide: true})
	if err != nil {
		t.Fatal(err)
	}
	if got != "from stdin" {
		t.Errorf("Get() = %q", got)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	r := NewRunner(&bytes.Buffer{}, nil)
	cmd := Cmd("sh", "-c", "echo failing >&2; exit 3")

	res, err := r.Run(context.Background(), cmd, Options{Hide: true})
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Run() error = %v, want *ExitError", err)
	}
	if exitErr.Result.ExitCode != 3 || res.ExitCode != 3 {
		t.Errorf("exit code = %d", exitErr.Result.ExitCode)
	}
	if !strings.Contains(err.Error(), "failing") {
		t.Errorf("error should carry stderr: %v", err)
	}

	res, err = r.Run(context.Background(), cmd, Options{Hide: true, Warn: true})
	if err != nil {
		t.Fatalf("Run() with Warn error = %v", err)
	}
	if res.ExitCode != 3 || res.OK() {
		t.Errorf("Run() with Warn = %+v", res)
	}
}

func TestRunCommandNotFound(t *testing.T) {
	var out bytes.Buffer
	r := NewRunner(&out, nil)
	_, err := r.Run(context.Background(), Cmd("definitely-not-a-real-binary-xyz"), Options{})

	var notFound *CommandNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Run() error = %v, want *CommandNotFoundError", err)
	}
	if notFound.Name != "definitely-not-a-real-binary-xyz" {
		t.Errorf("Name = %q", notFound.Name)
	}
	if out.Len() != 0 {
		t.Error("a missing command should not be echoed")
	}
}

func TestRunDirAndEnv(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(&bytes.Buffer{}, nil)
	got, err := r.Get(context.Background(), Cmd("sh", "-c", "pwd; echo $MILA_TEST_VAR"), Options{Hide: true, Dir: dir, Env: []string{"MILA_TEST_VAR=set"}})
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(got, "\n")
	wantDir, _ := filepath.EvalSymlinks(dir)
	gotDir, _ := filepath.EvalSymlinks(lines[0])
	if gotDir != wantDir || lines[1] != "set" {
		t.Errorf("Get() = %q", got)
	}
}

func TestStartWait(t *testing.T) {
	r := NewRunner(&bytes.Buffer{}, nil)
	p, err := r.Start(context.Background(), Cmd("sh", "-c", "sleep 0.1; echo done"), Options{Hide: true})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if p.Pid() <= 0 {
		t.Errorf("Pid() = %d", p.Pid())
	}
	res, err := p.Wait()
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if res.Stdout != "done\n" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
}

func TestRunContextCancel(t *testing.T) {
	r := NewRunner(&bytes.Buffer{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.Run(ctx, Cmd("sleep", "5"), Options{Hide: true})
	if err == nil {
		t.Fatal("Run() should fail when the context is cancelled")
	}
	if time.Since(start) > 3*time.Second {
		t.Error("Run() did not stop on context cancellation")
	}
}

func TestCheckPasswordless(t *testing.T) {
	dir := t.TempDir()
	ssh := writeScript(t, dir, "ssh", `
case "$2" in
  good) echo OK; exit 0 ;;
  denied) echo "bob@login: Permission denied (publickey)." >&2; exit 255 ;;
  *) echo "ssh: Could not resolve hostname $2" >&2; exit 255 ;;
esac
`)

	tests := []struct {
		host    string
		want    bool
		wantErr bool
	}{
		{"good", true, false},
		{"denied", false, false},
		{"unknown", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			var out bytes.Buffer
			r := newTestRunner(&out, map[string]string{"ssh": ssh})
			got, err := r.CheckPasswordless(context.Background(), tt.host)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckPasswordless() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrUnexpectedSSHFailure) {
				t.Errorf("error = %v, want ErrUnexpectedSSHFailure", err)
			}
			if got != tt.want {
				t.Errorf("CheckPasswordless() = %v, want %v", got, tt.want)
			}
			if !strings.Contains(out.String(), "ssh -oPreferredAuthentications=publickey "+tt.host+" 'echo OK'") {
				t.Errorf("echo = %q", out.String())
			}
		})
	}
}
