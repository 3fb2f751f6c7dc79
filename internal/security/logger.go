package security

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mila-iqia/milatools/internal/config"
)

// AuditEvent is one line of the audit log.
type AuditEvent struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	Severity  string    `json:"severity"`
	User      string    `json:"user,omitempty"`
	Host      string    `json:"host,omitempty"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	Client    string    `json:"client"`
	Success   bool      `json:"success"`
}

// AuditLogger appends JSON events to a private log file. The zero value
// discards everything.
type AuditLogger struct {
	mu      sync.Mutex
	enabled bool
	logFile *os.File
	logger  *log.Logger
}

var (
	auditMu     sync.Mutex
	auditLogger *AuditLogger
)

// InitAuditLogger enables audit logging when MILATOOLS_SECURITY_AUDIT is set.
// Events go to MILATOOLS_AUDIT_LOG, or ~/.milatools/audit.log by default.
func InitAuditLogger() error {
	auditMu.Lock()
	defer auditMu.Unlock()

	if os.Getenv("MILATOOLS_SECURITY_AUDIT") == "" {
		auditLogger = &AuditLogger{}
		return nil
	}

	logPath := os.Getenv("MILATOOLS_AUDIT_LOG")
	if logPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to determine home directory for audit log: %w", err)
		}
		logPath = filepath.Join(homeDir, ".milatools", "audit.log")
	}
	if err := os.MkdirAll(filepath.Dir(logPath), config.SecureDirectoryPermissions); err != nil {
		return fmt.Errorf("failed to create audit log directory: %w", err)
	}

	logFile, err := CreateSecureFileForAppend(logPath, config.SecureFilePermissions)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	auditLogger = &AuditLogger{
		enabled: true,
		logFile: logFile,
		logger:  log.New(logFile, "", 0),
	}
	auditLogger.log(AuditEvent{
		EventType: "AUDIT_INIT",
		Severity:  "INFO",
		Action:    "audit_logging_initialized",
		Details:   fmt.Sprintf("Audit logging enabled, log file: %s", logPath),
		Success:   true,
	})
	return nil
}

// CloseAuditLogger flushes and closes the audit log, if open.
func CloseAuditLogger() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditLogger != nil && auditLogger.enabled && auditLogger.logFile != nil {
		auditLogger.log(AuditEvent{
			EventType: "AUDIT_CLOSE",
			Severity:  "INFO",
			Action:    "audit_logging_closed",
			Details:   "Audit logging session ended",
			Success:   true,
		})
		auditLogger.logFile.Close()
	}
	auditLogger = nil
}

func current() *AuditLogger {
	auditMu.Lock()
	defer auditMu.Unlock()
	return auditLogger
}

func (al *AuditLogger) log(event AuditEvent) {
	if al == nil || !al.enabled || al.logger == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Client == "" {
		event.Client = fmt.Sprintf("%s/%s", config.ClientName, config.Version)
	}

	al.mu.Lock()
	defer al.mu.Unlock()

	eventJSON, err := json.Marshal(event)
	if err != nil {
		al.logger.Printf("[AUDIT] %s %s %s: %s - %s",
			event.Timestamp.Format(time.RFC3339),
			event.Severity,
			event.EventType,
			event.Action,
			event.Details)
		return
	}
	al.logger.Printf("%s", eventJSON)
}

func severityFor(success bool, failure string) string {
	if success {
		return "INFO"
	}
	return failure
}

// LogConfigChange records a change made to the user's ssh config, such as
// adding, removing or renaming a Host stanza.
func LogConfigChange(path, action, host string, success bool, details string) {
	current().log(AuditEvent{
		EventType: "SSH_CONFIG",
		Severity:  severityFor(success, "WARNING"),
		Host:      host,
		Action:    action,
		Details:   fmt.Sprintf("%s in %s: %s", action, path, details),
		Success:   success,
	})
}

// LogSSHKeyAuthentication records a public key authentication attempt.
func LogSSHKeyAuthentication(host, user, keyPath, keyType string, success bool) {
	details := fmt.Sprintf("SSH key authentication using %s (%s)", keyType, keyPath)
	if !success {
		details += " - failed"
	}
	current().log(AuditEvent{
		EventType: "SSH_AUTH",
		Severity:  severityFor(success, "WARNING"),
		User:      user,
		Host:      host,
		Action:    "ssh_key_authentication",
		Details:   details,
		Success:   success,
	})
}

// LogHostKeyVerification records the outcome of checking a server's host key.
// action is one of known_host, new_host_accepted, new_host_rejected or
// verification_failed.
func LogHostKeyVerification(host, user string, action string, success bool) {
	details := fmt.Sprintf("Host key verification for %s", host)
	switch action {
	case "known_host":
		details += " - verified against known_hosts"
	case "new_host_accepted":
		details += " - new host key accepted by user"
	case "new_host_rejected":
		details += " - new host key rejected by user"
	case "verification_failed":
		details += " - verification failed"
	}
	current().log(AuditEvent{
		EventType: "HOST_KEY_VERIFICATION",
		Severity:  severityFor(success, "HIGH"),
		User:      user,
		Host:      host,
		Action:    action,
		Details:   details,
		Success:   success,
	})
}

// LogSecureFileOperation records a write to a security-relevant file.
func LogSecureFileOperation(operation, filePath string, success bool, details string) {
	current().log(AuditEvent{
		EventType: "FILE_OPERATION",
		Severity:  severityFor(success, "WARNING"),
		Action:    operation,
		Details:   fmt.Sprintf("File operation: %s on %s - %s", operation, filePath, details),
		Success:   success,
	})
}
