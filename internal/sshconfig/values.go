package sshconfig

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// sshd_config(5) TIME FORMATS, e.g. "10m" or "1h30m".
var timeFormat = regexp.MustCompile(`^([0-9]+[sSmMhHdDwW]?)+$`)

// caseInsensitiveValues lists directives whose literals ssh accepts in any case.
var caseInsensitiveValues = map[string]bool{
	"LogLevel":       true,
	"SyslogFacility": true,
}

// ValidateValue checks value against the ValueKind of the directive named
// by key. Free-form directives always pass. It returns an error wrapping
// *UnrecognizedDirectiveError when key is not in the catalog.
//
// This is a lint: ToCanonicalEntry never calls it and never rewrites values.
func ValidateValue(key, value string) error {
	d, ok := Lookup(key)
	if !ok {
		return fmt.Errorf("validate value: %w", &UnrecognizedDirectiveError{Keys: []string{key}})
	}

	value = strings.TrimSpace(value)
	switch d.Kind {
	case KindString:
		return nil
	case KindInt:
		if _, err := strconv.Atoi(value); err != nil {
			return &ValueError{Directive: d.Name, Value: value, Kind: d.Kind}
		}
		return nil
	case KindEnum:
		if d.allows(value) {
			return nil
		}
	case KindIntOrEnum:
		if _, err := strconv.Atoi(value); err == nil {
			return nil
		}
		if d.allows(value) {
			return nil
		}
		// ControlPersist also takes a time interval.
		if d.Name == "ControlPersist" && timeFormat.MatchString(value) {
			return nil
		}
		// IPQoS takes one or two classes.
		if d.Name == "IPQoS" {
			if fields := strings.Fields(value); len(fields) == 2 && d.allowsIntOrLiteral(fields[0]) && d.allowsIntOrLiteral(fields[1]) {
				return nil
			}
		}
	}
	return &ValueError{Directive: d.Name, Value: value, Kind: d.Kind, Allowed: d.Values}
}

func (d Directive) allows(value string) bool {
	for _, v := range d.Values {
		if v == value || (caseInsensitiveValues[d.Name] && strings.EqualFold(v, value)) {
			return true
		}
	}
	return false
}

func (d Directive) allowsIntOrLiteral(value string) bool {
	if _, err := strconv.Atoi(value); err == nil {
		return true
	}
	return d.allows(value)
}
