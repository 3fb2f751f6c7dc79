package errors

import (
	stderrors "errors"
	"fmt"
	"log"
	"os"
)

// ErrorCode represents different types of errors in mila
type ErrorCode int

const (
	// Application errors
	ErrCodeUnknown ErrorCode = iota
	ErrCodeConfigValidation
	ErrCodeFileOperation
	ErrCodeSSHConnection
	ErrCodeSSHAuth
	ErrCodeHostKeyVerification
	ErrCodeRemoteCommand
	ErrCodeScheduler
	ErrCodeUserInput
	ErrCodeConfiguration
	ErrCodeProcess
)

// MilaError represents a structured error with operation context and error code
type MilaError struct {
	Op      string    // Operation that failed (e.g., "add_host", "ssh_connect")
	Code    ErrorCode // Error classification
	Err     error     // Underlying error
	Context string    // Additional context (optional)
	Fatal   bool      // Whether this error should cause program exit
}

// Error implements the error interface
func (e *MilaError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Context, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error wrapping support
func (e *MilaError) Unwrap() error {
	return e.Err
}

// IsFatal returns whether this error should cause program termination
func (e *MilaError) IsFatal() bool {
	return e.Fatal
}

// CodeOf returns the code of the first MilaError in err's chain, or
// ErrCodeUnknown.
func CodeOf(err error) ErrorCode {
	var me *MilaError
	if stderrors.As(err, &me) {
		return me.Code
	}
	return ErrCodeUnknown
}

// ErrorHandler provides standardized error handling across the application
type ErrorHandler struct {
	logger *log.Logger
	debug  bool
	exit   func(int)
}

// NewErrorHandler creates a new error handler with the given logger
func NewErrorHandler(logger *log.Logger, debug bool) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
		debug:  debug,
		exit:   os.Exit,
	}
}

// Handle logs err and exits when it is fatal.
func (eh *ErrorHandler) Handle(err error) {
	if err == nil {
		return
	}

	var milaErr *MilaError
	if !stderrors.As(err, &milaErr) {
		milaErr = &MilaError{
			Op:   "unknown_operation",
			Code: ErrCodeUnknown,
			Err:  err,
		}
	}

	if eh.debug {
		eh.logger.Printf("[%s] %s", CodeString(milaErr.Code), milaErr.Error())
	} else {
		eh.logger.Printf("Error: %s", milaErr.Error())
	}

	if milaErr.IsFatal() {
		eh.logger.Printf("Fatal error encountered, exiting...")
		eh.exit(1)
	}
}

// HandleWithExit is a convenience function for fatal errors
func (eh *ErrorHandler) HandleWithExit(err error) {
	if err == nil {
		return
	}

	var milaErr *MilaError
	if !stderrors.As(err, &milaErr) {
		milaErr = &MilaError{
			Op:   "unknown_operation",
			Code: ErrCodeUnknown,
			Err:  err,
		}
	}

	milaErr.Fatal = true
	eh.Handle(milaErr)
}

// CodeString converts error codes to readable strings
func CodeString(code ErrorCode) string {
	switch code {
	case ErrCodeConfigValidation:
		return "CONFIG_VALIDATION"
	case ErrCodeFileOperation:
		return "FILE_OPERATION"
	case ErrCodeSSHConnection:
		return "SSH_CONNECTION"
	case ErrCodeSSHAuth:
		return "SSH_AUTH"
	case ErrCodeHostKeyVerification:
		return "HOST_KEY_VERIFICATION"
	case ErrCodeRemoteCommand:
		return "REMOTE_COMMAND"
	case ErrCodeScheduler:
		return "SCHEDULER"
	case ErrCodeUserInput:
		return "USER_INPUT"
	case ErrCodeConfiguration:
		return "CONFIGURATION"
	case ErrCodeProcess:
		return "PROCESS"
	default:
		return "UNKNOWN"
	}
}

// Helper functions for creating common error types

// NewConfigValidationError wraps a rejected ssh config entry for host
func NewConfigValidationError(host string, err error) *MilaError {
	return &MilaError{
		Op:      "validate_entry",
		Code:    ErrCodeConfigValidation,
		Err:     err,
		Context: fmt.Sprintf("host: %s", host),
	}
}

// NewFileOperationError creates a file operation error
func NewFileOperationError(operation, path string, err error) *MilaError {
	return &MilaError{
		Op:      "file_operation",
		Code:    ErrCodeFileOperation,
		Err:     err,
		Context: fmt.Sprintf("operation: %s, path: %s", operation, path),
	}
}

// NewSSHConnectionError creates an SSH connection error
func NewSSHConnectionError(host string, err error) *MilaError {
	return &MilaError{
		Op:      "ssh_connect",
		Code:    ErrCodeSSHConnection,
		Err:     err,
		Context: fmt.Sprintf("host: %s", host),
	}
}

// NewSSHAuthError creates an SSH authentication error
func NewSSHAuthError(user, host string, err error) *MilaError {
	return &MilaError{
		Op:      "ssh_auth",
		Code:    ErrCodeSSHAuth,
		Err:     err,
		Context: fmt.Sprintf("user: %s, host: %s", user, host),
	}
}

// NewHostKeyVerificationError creates a host key verification error
func NewHostKeyVerificationError(host string, err error) *MilaError {
	return &MilaError{
		Op:      "host_key_verification",
		Code:    ErrCodeHostKeyVerification,
		Err:     err,
		Context: fmt.Sprintf("host: %s", host),
	}
}

// NewRemoteCommandError creates an error for a command that failed on the cluster
func NewRemoteCommandError(host, command string, err error) *MilaError {
	return &MilaError{
		Op:      "remote_command",
		Code:    ErrCodeRemoteCommand,
		Err:     err,
		Context: fmt.Sprintf("host: %s, command: %s", host, command),
	}
}

// NewSchedulerError creates a SLURM error
func NewSchedulerError(operation string, err error) *MilaError {
	return &MilaError{
		Op:      "scheduler",
		Code:    ErrCodeScheduler,
		Err:     err,
		Context: operation,
	}
}

// NewUserInputError creates a user input error
func NewUserInputError(prompt string, err error) *MilaError {
	return &MilaError{
		Op:      "user_input",
		Code:    ErrCodeUserInput,
		Err:     err,
		Context: fmt.Sprintf("prompt: %s", prompt),
	}
}

// NewConfigurationError creates an error for unusable settings
func NewConfigurationError(key string, err error) *MilaError {
	return &MilaError{
		Op:      "configuration",
		Code:    ErrCodeConfiguration,
		Err:     err,
		Context: fmt.Sprintf("key: %s", key),
		Fatal:   true,
	}
}

// NewProcessError creates an error for a local command
func NewProcessError(command string, err error) *MilaError {
	return &MilaError{
		Op:      "local_command",
		Code:    ErrCodeProcess,
		Err:     err,
		Context: command,
	}
}
