package remote

import (
	"os"
	"path/filepath"
	"testing"
)

const targetConfig = `Host mila
  HostName login.server.mila.quebec
  User bob
  Port 2222
  IdentityFile ~/.ssh/id_mila

Host *.server.mila.quebec !*login.server.mila.quebec
  HostName %h
  User bob
  ProxyJump mila

Host loop
  ProxyJump loop
`

func writeTargetConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	if err := os.WriteFile(path, []byte(targetConfig), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolveTarget(t *testing.T) {
	t.Setenv("HOME", "/home/bob")
	path := writeTargetConfig(t)

	got, err := ResolveTarget(path, "mila")
	if err != nil {
		t.Fatalf("ResolveTarget() error = %v", err)
	}
	if got.Host != "login.server.mila.quebec" || got.Port != "2222" || got.User != "bob" {
		t.Errorf("ResolveTarget() = %+v", got)
	}
	if len(got.IdentityFiles) != 1 || got.IdentityFiles[0] != "/home/bob/.ssh/id_mila" {
		t.Errorf("IdentityFiles = %v", got.IdentityFiles)
	}
	if got.Jump != nil {
		t.Errorf("Jump = %+v, want nil", got.Jump)
	}
	if got.Addr() != "login.server.mila.quebec:2222" {
		t.Errorf("Addr() = %q", got.Addr())
	}
}

func TestResolveTargetProxyJump(t *testing.T) {
	path := writeTargetConfig(t)

	got, err := ResolveTarget(path, "cn-c001.server.mila.quebec")
	if err != nil {
		t.Fatalf("ResolveTarget() error = %v", err)
	}
	if got.Host != "cn-c001.server.mila.quebec" || got.Port != "22" {
		t.Errorf("ResolveTarget() = %+v", got)
	}
	if got.Jump == nil || got.Jump.Host != "login.server.mila.quebec" || got.Jump.Port != "2222" {
		t.Fatalf("Jump = %+v", got.Jump)
	}

	login, err := ResolveTarget(path, "login.server.mila.quebec")
	if err != nil {
		t.Fatal(err)
	}
	if login.Jump != nil {
		t.Errorf("the negated pattern should not apply to login nodes: %+v", login.Jump)
	}
}

func TestResolveTargetJumpLoop(t *testing.T) {
	path := writeTargetConfig(t)
	if _, err := ResolveTarget(path, "loop"); err == nil {
		t.Error("ResolveTarget() should fail on a ProxyJump loop")
	}
}

func TestResolveTargetDestination(t *testing.T) {
	path := writeTargetConfig(t)

	got, err := ResolveTarget(path, "alice@example.org:2200")
	if err != nil {
		t.Fatal(err)
	}
	if got.User != "alice" || got.Host != "example.org" || got.Port != "2200" {
		t.Errorf("ResolveTarget() = %+v", got)
	}
}

func TestResolveTargetRejectsBadHostName(t *testing.T) {
	tests := []struct {
		name     string
		hostName string
	}{
		{"command substitution", "$(touch pwned)"},
		{"shell separator", "login;id"},
		{"empty label", "login..mila.quebec"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config")
			content := "Host bad\n  HostName " + tt.hostName + "\n"
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := ResolveTarget(path, "bad"); err == nil {
				t.Errorf("ResolveTarget() should reject HostName %q", tt.hostName)
			}
		})
	}
}

func TestResolveTargetMissingConfig(t *testing.T) {
	got, err := ResolveTarget(filepath.Join(t.TempDir(), "nope"), "example.org")
	if err != nil {
		t.Fatal(err)
	}
	if got.Host != "example.org" || got.Port != "22" {
		t.Errorf("ResolveTarget() = %+v", got)
	}
}

func TestSplitDestination(t *testing.T) {
	tests := []struct {
		in                           string
		wantUser, wantHost, wantPort string
	}{
		{"mila", "", "mila", ""},
		{"bob@mila", "bob", "mila", ""},
		{"bob@mila:2222", "bob", "mila", "2222"},
		{"[::1]:22", "", "::1", "22"},
	}
	for _, tt := range tests {
		u, h, p := splitDestination(tt.in)
		if u != tt.wantUser || h != tt.wantHost || p != tt.wantPort {
			t.Errorf("splitDestination(%q) = %q, %q, %q", tt.in, u, h, p)
		}
	}
}
