package sshconfig

import (
	"fmt"
	"sort"
	"strings"
)

// KeyValue is one directive assignment as supplied by a caller.
type KeyValue struct {
	Key   string
	Value string
}

// Pairs is a raw, ordered host entry. Keys may use any casing and are not
// yet validated. Order matters for error messages and for the order in
// which directives are written.
type Pairs []KeyValue

// PairsFromMap builds Pairs from m with keys sorted, so callers without a
// natural order still get deterministic results.
func PairsFromMap(m map[string]string) Pairs {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make(Pairs, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, KeyValue{Key: k, Value: m[k]})
	}
	return pairs
}

// ParseAssignments parses command-line style "Key=Value" arguments. The
// value may not be blank.
func ParseAssignments(args []string) (Pairs, error) {
	pairs := make(Pairs, 0, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected Key=Value, got %q", arg)
		}
		if strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("missing value for %s in %q", key, arg)
		}
		pairs = append(pairs, KeyValue{Key: key, Value: value})
	}
	return pairs, nil
}

// CanonicalEntry is a validated host entry keyed by canonical directive
// names. A well-formed CanonicalEntry always carries a Host value.
type CanonicalEntry map[string]string

// Host returns the host pattern the entry is scoped to.
func (e CanonicalEntry) Host() string { return e["Host"] }

// Keys returns the entry's directives in catalog order.
func (e CanonicalEntry) Keys() []string {
	keys := make([]string, 0, len(e))
	for _, d := range catalog {
		if _, ok := e[d.Name]; ok {
			keys = append(keys, d.Name)
		}
	}
	return keys
}

// LowercaseEntry is a host entry keyed by lowercased directive names. It is
// also the shape returned when reading a stanza back from a file, in which
// case it may hold directives outside the catalog.
type LowercaseEntry map[string]string

// FindInvalidKeys returns, in input order, every key that is not a catalog directive.
func FindInvalidKeys(pairs Pairs) []string {
	var invalid []string
	for _, kv := range pairs {
		if !IsRecognizedKey(kv.Key) {
			invalid = append(invalid, kv.Key)
		}
	}
	return invalid
}

// HasValidKeys reports whether every key in pairs is a catalog directive.
func HasValidKeys(pairs Pairs) bool {
	return len(FindInvalidKeys(pairs)) == 0
}

// ToCanonicalEntry validates pairs and renames every key to its canonical
// spelling. Values are passed through untouched.
//
// Unknown keys yield an *UnrecognizedDirectiveError. Two keys naming the same
// directive in different casings yield a *DuplicateDirectiveError, whatever
// their values.
func ToCanonicalEntry(pairs Pairs) (CanonicalEntry, error) {
	if invalid := FindInvalidKeys(pairs); len(invalid) > 0 {
		return nil, &UnrecognizedDirectiveError{Keys: invalid}
	}

	seen := make(map[string][]string, len(pairs))
	var order []string
	for _, kv := range pairs {
		lower := strings.ToLower(kv.Key)
		if _, ok := seen[lower]; !ok {
			order = append(order, lower)
		}
		seen[lower] = append(seen[lower], kv.Key)
	}
	if len(seen) != len(pairs) {
		for _, lower := range order {
			if spellings := seen[lower]; len(spellings) > 1 {
				return nil, &DuplicateDirectiveError{
					Directive: lowercaseToCanonical[lower],
					Keys:      spellings,
				}
			}
		}
	}

	entry := make(CanonicalEntry, len(pairs))
	for _, kv := range pairs {
		entry[lowercaseToCanonical[strings.ToLower(kv.Key)]] = kv.Value
	}
	return entry, nil
}

// ToLowercaseEntry lowercases every key of an already canonical entry.
func ToLowercaseEntry(entry CanonicalEntry) LowercaseEntry {
	out := make(LowercaseEntry, len(entry))
	for k, v := range entry {
		if lower, ok := canonicalToLowercase[k]; ok {
			out[lower] = v
			continue
		}
		out[strings.ToLower(k)] = v
	}
	return out
}

// ToCanonicalCase maps every lowercase key back to its canonical spelling.
// Keys outside the catalog are kept as they are.
func ToCanonicalCase(entry LowercaseEntry) CanonicalEntry {
	out := make(CanonicalEntry, len(entry))
	for k, v := range entry {
		if name, ok := lowercaseToCanonical[k]; ok {
			out[name] = v
			continue
		}
		out[k] = v
	}
	return out
}

// Pairs returns the lowercase entry as Pairs in catalog order, followed by
// any foreign keys sorted by name.
func (e LowercaseEntry) Pairs() Pairs {
	pairs := make(Pairs, 0, len(e))
	for _, d := range catalog {
		lower := canonicalToLowercase[d.Name]
		if v, ok := e[lower]; ok {
			pairs = append(pairs, KeyValue{Key: lower, Value: v})
		}
	}
	var foreign []string
	for k := range e {
		if _, ok := lowercaseToCanonical[k]; !ok {
			foreign = append(foreign, k)
		}
	}
	sort.Strings(foreign)
	for _, k := range foreign {
		pairs = append(pairs, KeyValue{Key: k, Value: e[k]})
	}
	return pairs
}
