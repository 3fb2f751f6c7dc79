package security

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// InputValidator validates user input that ends up in the ssh config or in
// commands run on the cluster.
type InputValidator struct {
	MaxHostnameLength   int
	MaxPathLength       int
	AllowedHostChars    *regexp.Regexp
	AllowedUserChars    *regexp.Regexp
	AllowedPatternChars *regexp.Regexp
}

// Limits for input validation
const (
	MaxHostnameLength = 253  // RFC 1035 limit
	MaxPathLength     = 4096 // Common filesystem limit
	MaxPortNumber     = 65535
	MinPortNumber     = 1
	MaxSSHUserLength  = 32
)

// NewInputValidator creates a new input validator with secure defaults
func NewInputValidator() *InputValidator {
	return &InputValidator{
		MaxHostnameLength:   MaxHostnameLength,
		MaxPathLength:       MaxPathLength,
		AllowedHostChars:    regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9.-]*[a-zA-Z0-9]$|^[a-zA-Z0-9]$`),
		AllowedUserChars:    regexp.MustCompile(`^[a-zA-Z0-9_.\-]+$`),
		AllowedPatternChars: regexp.MustCompile(`^!?[a-zA-Z0-9.*?%_\-]+$`),
	}
}

// ValidateHostname validates hostnames against RFC standards
func (iv *InputValidator) ValidateHostname(hostname string) error {
	if hostname == "" {
		return fmt.Errorf("hostname cannot be empty")
	}

	if len(hostname) > iv.MaxHostnameLength {
		return fmt.Errorf("hostname too long: %d characters (max %d)", len(hostname), iv.MaxHostnameLength)
	}

	dangerousChars := ";|&`$(){}[]<>\\\"'!*? \t"
	if strings.ContainsAny(hostname, dangerousChars) {
		return fmt.Errorf("hostname contains invalid characters")
	}

	if net.ParseIP(hostname) != nil {
		return nil
	}

	if !iv.AllowedHostChars.MatchString(hostname) {
		return fmt.Errorf("hostname format invalid (must comply with RFC 1123)")
	}

	for _, label := range strings.Split(hostname, ".") {
		if len(label) == 0 {
			return fmt.Errorf("hostname contains empty label")
		}
		if len(label) > 63 {
			return fmt.Errorf("hostname label too long: %s (max 63 characters)", label)
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return fmt.Errorf("hostname label cannot start or end with hyphen: %s", label)
		}
	}

	return nil
}

// ValidateHostPattern validates the argument of a Host line: one or more
// whitespace separated patterns, each optionally negated with '!'. A
// pattern list made only of negations never matches anything.
func (iv *InputValidator) ValidateHostPattern(pattern string) error {
	fields := strings.Fields(pattern)
	if len(fields) == 0 {
		return fmt.Errorf("host pattern cannot be empty")
	}

	positive := false
	for _, f := range fields {
		if !iv.AllowedPatternChars.MatchString(f) || f == "!" {
			return fmt.Errorf("invalid host pattern: %q", f)
		}
		if !strings.HasPrefix(f, "!") {
			positive = true
		}
	}
	if !positive {
		return fmt.Errorf("host pattern %q only has negations and would never match", pattern)
	}
	return nil
}

// ValidateSSHUser validates SSH usernames
func (iv *InputValidator) ValidateSSHUser(username string) error {
	if username == "" {
		return fmt.Errorf("SSH username cannot be empty")
	}

	if len(username) > MaxSSHUserLength {
		return fmt.Errorf("SSH username too long: %d characters (max %d)", len(username), MaxSSHUserLength)
	}

	if !iv.AllowedUserChars.MatchString(username) {
		return fmt.Errorf("SSH username contains invalid characters (only alphanumeric, dot, hyphen, underscore allowed)")
	}

	if strings.HasPrefix(username, "-") || unicode.IsDigit(rune(username[0])) {
		return fmt.Errorf("SSH username cannot start with hyphen or number")
	}

	return nil
}

// ValidatePort validates network port numbers
func (iv *InputValidator) ValidatePort(port string) error {
	if port == "" {
		return fmt.Errorf("port cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil || strings.ContainsAny(port, "+-") {
		return fmt.Errorf("port must be numeric")
	}

	if portNum < MinPortNumber || portNum > MaxPortNumber {
		return fmt.Errorf("port number out of range: %d (must be %d-%d)", portNum, MinPortNumber, MaxPortNumber)
	}

	return nil
}

// ValidateRemotePath validates a path on the cluster that is interpolated
// into a shell command.
func (iv *InputValidator) ValidateRemotePath(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}

	if len(path) > iv.MaxPathLength {
		return fmt.Errorf("file path too long: %d characters (max %d)", len(path), iv.MaxPathLength)
	}

	for _, r := range path {
		if r == 0 {
			return fmt.Errorf("file path contains null byte")
		}
		if unicode.IsControl(r) {
			return fmt.Errorf("file path contains control character: %U", r)
		}
	}

	for _, part := range strings.Split(path, "/") {
		if part == ".." {
			return fmt.Errorf("path traversal attempt detected: %s", path)
		}
	}

	return nil
}

// ShellQuote quotes arg for a POSIX shell. Arguments made only of safe
// characters are returned unchanged.
func ShellQuote(arg string) string {
	if arg == "" {
		return "''"
	}
	if safeShellArg.MatchString(arg) {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'"'"'`) + "'"
}

var safeShellArg = regexp.MustCompile(`^[a-zA-Z0-9_@%+=:,./\-]+$`)

// DefaultValidator is used by the package level helpers.
var DefaultValidator = NewInputValidator()

func ValidateHostname(hostname string) error {
	return DefaultValidator.ValidateHostname(hostname)
}

func ValidateHostPattern(pattern string) error {
	return DefaultValidator.ValidateHostPattern(pattern)
}

func ValidateSSHUser(username string) error {
	return DefaultValidator.ValidateSSHUser(username)
}

func ValidatePort(port string) error {
	return DefaultValidator.ValidatePort(port)
}

func ValidateRemotePath(path string) error {
	return DefaultValidator.ValidateRemotePath(path)
}
