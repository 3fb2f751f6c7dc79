package security

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestAuditLoggerDisabledByDefault(t *testing.T) {
	t.Setenv("MILATOOLS_SECURITY_AUDIT", "")
	if err := InitAuditLogger(); err != nil {
		t.Fatalf("InitAuditLogger() error = %v", err)
	}
	defer CloseAuditLogger()

	// Must not panic or create anything
	LogConfigChange("/tmp/config", "add_host", "mila", true, "")
}

func TestAuditLoggerWritesJSONEvents(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit", "audit.log")
	t.Setenv("MILATOOLS_SECURITY_AUDIT", "1")
	t.Setenv("MILATOOLS_AUDIT_LOG", logPath)

	if err := InitAuditLogger(); err != nil {
		t.Fatalf("InitAuditLogger() error = %v", err)
	}
	LogConfigChange("~/.ssh/config", "add_host", "mila-cpu", true, "3 directives")
	LogHostKeyVerification("login.server.mila.quebec", "bob", "verification_failed", false)
	LogSSHKeyAuthentication("mila", "bob", "~/.ssh/id_ed25519", "ssh-ed25519", true)
	CloseAuditLogger()

	info, err := os.Stat(logPath)
	if err != nil {
		t.Fatalf("audit log not created: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("audit log permissions = %v, want 0600", info.Mode().Perm())
	}

	f, err := os.Open(logPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var events []AuditEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("line is not JSON: %q: %v", scanner.Text(), err)
		}
		events = append(events, ev)
	}

	wantTypes := []string{"AUDIT_INIT", "SSH_CONFIG", "HOST_KEY_VERIFICATION", "SSH_AUTH", "AUDIT_CLOSE"}
	if len(events) != len(wantTypes) {
		t.Fatalf("got %d events, want %d", len(events), len(wantTypes))
	}
	for i, want := range wantTypes {
		if events[i].EventType != want {
			t.Errorf("event %d type = %s, want %s", i, events[i].EventType, want)
		}
		if events[i].Client == "" || events[i].Timestamp.IsZero() {
			t.Errorf("event %d missing client or timestamp: %+v", i, events[i])
		}
	}
	if events[1].Host != "mila-cpu" || !events[1].Success {
		t.Errorf("config event = %+v", events[1])
	}
	if events[2].Severity != "HIGH" || events[2].Success {
		t.Errorf("failed host key event = %+v", events[2])
	}
}
