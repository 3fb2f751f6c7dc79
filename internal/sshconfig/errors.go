package sshconfig

import (
	"fmt"
	"strings"
)

// UnrecognizedDirectiveError is returned when an entry names directives that
// are not in the catalog. Keys keeps the offending keys in input order.
type UnrecognizedDirectiveError struct {
	Keys []string
}

func (e *UnrecognizedDirectiveError) Error() string {
	if len(e.Keys) == 1 {
		return fmt.Sprintf("Invalid key: %s", quoteKey(e.Keys[0]))
	}
	quoted := make([]string, len(e.Keys))
	for i, k := range e.Keys {
		quoted[i] = quoteKey(k)
	}
	return fmt.Sprintf("Invalid keys: [%s]", strings.Join(quoted, ", "))
}

// DuplicateDirectiveError is returned when several spellings of the same
// directive are supplied together. Neither value is picked.
type DuplicateDirectiveError struct {
	// Directive is the canonical name that was supplied more than once.
	Directive string
	// Keys are the colliding spellings, in input order.
	Keys []string
}

func (e *DuplicateDirectiveError) Error() string {
	return "Key collision: Can't have multiple keys with the same lowercase value."
}

// Detail describes which spellings collided.
func (e *DuplicateDirectiveError) Detail() string {
	quoted := make([]string, len(e.Keys))
	for i, k := range e.Keys {
		quoted[i] = quoteKey(k)
	}
	return fmt.Sprintf("%s given as %s", e.Directive, strings.Join(quoted, ", "))
}

// ValueError reports a directive argument that does not fit the directive's ValueKind.
type ValueError struct {
	Directive string
	Value     string
	Kind      ValueKind
	Allowed   []string
}

func (e *ValueError) Error() string {
	switch e.Kind {
	case KindInt:
		return fmt.Sprintf("%s expects an integer, got %s", e.Directive, quoteKey(e.Value))
	case KindIntOrEnum:
		return fmt.Sprintf("%s expects an integer or one of %s, got %s",
			e.Directive, strings.Join(e.Allowed, ", "), quoteKey(e.Value))
	default:
		return fmt.Sprintf("%s expects one of %s, got %s",
			e.Directive, strings.Join(e.Allowed, ", "), quoteKey(e.Value))
	}
}

// MalformedValueError reports a directive value that cannot be written as a
// single config line: it is blank or spans several lines.
type MalformedValueError struct {
	Directive string
	Value     string
}

func (e *MalformedValueError) Error() string {
	if strings.TrimSpace(e.Value) == "" {
		return fmt.Sprintf("%s needs a value", e.Directive)
	}
	return fmt.Sprintf("%s value must fit on one line, got %s", e.Directive, quoteKey(e.Value))
}

// checkLine rejects a directive value ssh would not read back as one line
// with one argument.
func checkLine(directive, value string) error {
	if strings.TrimSpace(value) == "" || strings.ContainsAny(value, "\r\n") {
		return &MalformedValueError{Directive: directive, Value: value}
	}
	return nil
}

// quoteKey quotes s the way the error messages print keys: in single
// quotes, or in double quotes when s holds a single quote and no double
// quote. Backslashes, the quote in use and control characters are escaped.
func quoteKey(s string) string {
	quote := '\''
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		quote = '"'
	}

	var b strings.Builder
	b.WriteRune(quote)
	for _, r := range s {
		switch {
		case r == '\\' || r == quote:
			b.WriteRune('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteRune(quote)
	return b.String()
}
