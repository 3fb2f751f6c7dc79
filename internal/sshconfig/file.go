package sshconfig

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/mila-iqia/milatools/internal/config"
	"github.com/mila-iqia/milatools/internal/security"
)

// ErrHostNotFound is returned when a Host stanza does not exist in the file.
var ErrHostNotFound = errors.New("host not found in ssh config")

// ErrHostExists is returned when renaming onto a Host pattern that is already used.
var ErrHostExists = errors.New("host already exists in ssh config")

const defaultIndent = "  "

// configLine is one physical line. key is empty for blank lines and comments.
type configLine struct {
	raw   string
	key   string
	value string
}

// stanza is a Host or Match block, or the global section before the first one.
type stanza struct {
	keyword string // "host", "match" or "" for the global section
	pattern string
	header  string
	lines   []configLine
}

func (s *stanza) indent() string {
	for _, l := range s.lines {
		if l.key != "" {
			return l.raw[:len(l.raw)-len(strings.TrimLeft(l.raw, " \t"))]
		}
	}
	return defaultIndent
}

// File is an ssh client configuration file held in memory. Lines it does not
// touch, including comments and directives outside the catalog, are written
// back verbatim. Include directives are kept but not followed.
type File struct {
	path    string
	stanzas []*stanza
}

// Read loads the ssh config at path. A missing file reads as empty.
func Read(path string) (*File, error) {
	f := &File{path: path}
	data, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		f.stanzas = []*stanza{{}}
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open SSH config file %s: %w", path, err)
	}
	defer data.Close()

	if err := f.parse(data); err != nil {
		return nil, fmt.Errorf("error reading SSH config file %s: %w", path, err)
	}
	return f, nil
}

// Parse reads an ssh config from r. The returned File has no path and
// cannot be saved.
func Parse(r io.Reader) (*File, error) {
	f := &File{}
	if err := f.parse(r); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) parse(r io.Reader) error {
	current := &stanza{}
	f.stanzas = []*stanza{current}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		raw := scanner.Text()
		key, value := splitDirective(raw)

		switch strings.ToLower(key) {
		case "host", "match":
			current = &stanza{
				keyword: strings.ToLower(key),
				pattern: value,
				header:  raw,
			}
			f.stanzas = append(f.stanzas, current)
			continue
		}
		current.lines = append(current.lines, configLine{raw: raw, key: key, value: value})
	}
	return scanner.Err()
}

// splitDirective splits "Key value", "Key=value" or "Key = value". Blank
// lines and comments yield an empty key.
func splitDirective(raw string) (key, value string) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", ""
	}
	end := strings.IndexAny(line, " \t=")
	if end < 0 {
		return line, ""
	}
	key = line[:end]
	rest := strings.TrimLeft(line[end:], " \t")
	rest = strings.TrimPrefix(rest, "=")
	return key, strings.TrimSpace(rest)
}

// Path returns the file the config was read from.
func (f *File) Path() string { return f.path }

func (f *File) find(host string) (int, *stanza) {
	for i, s := range f.stanzas {
		if s.keyword == "host" && s.pattern == host {
			return i, s
		}
	}
	return -1, nil
}

// Hosts returns the patterns of every Host stanza, in file order.
func (f *File) Hosts() []string {
	var hosts []string
	for _, s := range f.stanzas {
		if s.keyword == "host" {
			hosts = append(hosts, s.pattern)
		}
	}
	return hosts
}

// Host returns the directives of the stanza whose Host line is exactly host,
// keyed as written in the file. The Host keyword itself is not included.
// When a directive repeats, the first value wins, as it does for ssh.
// It returns nil when there is no such stanza.
func (f *File) Host(host string) map[string]string {
	_, s := f.find(host)
	if s == nil {
		return nil
	}
	out := make(map[string]string)
	seen := make(map[string]bool)
	for _, l := range s.lines {
		if l.key == "" || seen[strings.ToLower(l.key)] {
			continue
		}
		seen[strings.ToLower(l.key)] = true
		out[l.key] = l.value
	}
	return out
}

// Add appends a stanza for host, or merges entry into the existing one:
// directives already present get the new value in place and the rest are
// appended. order fixes the write order of new directives; without it the
// catalog order is used. The Host key of entry, if any, is ignored. Nothing
// is changed when a value is blank or spans several lines.
func (f *File) Add(host string, entry CanonicalEntry, order ...string) error {
	if host == "" {
		return errors.New("host pattern cannot be empty")
	}
	if err := checkLine("Host", host); err != nil {
		return err
	}
	for key, value := range entry {
		if err := checkLine(key, value); err != nil {
			return err
		}
	}
	if len(order) == 0 {
		order = entry.Keys()
	}

	_, s := f.find(host)
	if s == nil {
		s = &stanza{keyword: "host", pattern: host, header: "Host " + host}
		f.ensureTrailingBlank()
		f.stanzas = append(f.stanzas, s)
	}
	indent := s.indent()

	for _, key := range order {
		value, ok := entry[key]
		if !ok || strings.EqualFold(key, "Host") {
			continue
		}
		replaced := false
		for i := range s.lines {
			if strings.EqualFold(s.lines[i].key, key) {
				s.lines[i] = configLine{raw: indent + key + " " + value, key: key, value: value}
				replaced = true
				break
			}
		}
		if !replaced {
			s.insert(configLine{raw: indent + key + " " + value, key: key, value: value})
		}
	}
	return nil
}

// insert adds l after the last directive, keeping trailing blank lines and
// comments that separate this stanza from the next.
func (s *stanza) insert(l configLine) {
	at := len(s.lines)
	for at > 0 && s.lines[at-1].key == "" {
		at--
	}
	s.lines = append(s.lines, configLine{})
	copy(s.lines[at+1:], s.lines[at:])
	s.lines[at] = l
}

func (f *File) ensureTrailingBlank() {
	last := f.stanzas[len(f.stanzas)-1]
	if last.keyword == "" && len(last.lines) == 0 {
		return
	}
	if n := len(last.lines); n > 0 && strings.TrimSpace(last.lines[n-1].raw) == "" {
		return
	}
	last.lines = append(last.lines, configLine{})
}

// Remove deletes the Host stanza for host.
func (f *File) Remove(host string) error {
	i, s := f.find(host)
	if s == nil {
		return fmt.Errorf("%w: %s", ErrHostNotFound, host)
	}
	f.stanzas = append(f.stanzas[:i], f.stanzas[i+1:]...)
	return nil
}

// Rename changes the pattern of the Host stanza for oldHost.
func (f *File) Rename(oldHost, newHost string) error {
	_, s := f.find(oldHost)
	if s == nil {
		return fmt.Errorf("%w: %s", ErrHostNotFound, oldHost)
	}
	if _, other := f.find(newHost); other != nil {
		return fmt.Errorf("%w: %s", ErrHostExists, newHost)
	}
	lead := s.header[:len(s.header)-len(strings.TrimLeft(s.header, " \t"))]
	s.pattern = newHost
	s.header = lead + "Host " + newHost
	return nil
}

// HostString returns the stanza for host as it would be written.
func (f *File) HostString(host string) string {
	_, s := f.find(host)
	if s == nil {
		return ""
	}
	var b strings.Builder
	s.writeTo(&b)
	return strings.TrimRight(b.String(), "\n")
}

func (s *stanza) writeTo(b *strings.Builder) {
	if s.keyword != "" {
		b.WriteString(s.header)
		b.WriteByte('\n')
	}
	for _, l := range s.lines {
		b.WriteString(l.raw)
		b.WriteByte('\n')
	}
}

// String renders the whole file.
func (f *File) String() string {
	var b strings.Builder
	for _, s := range f.stanzas {
		s.writeTo(&b)
	}
	return b.String()
}

// Save writes the file back to the path it was read from, atomically and
// readable only by the owner.
func (f *File) Save() error {
	if f.path == "" {
		return errors.New("ssh config has no path to save to")
	}
	return security.WriteFileAtomic(f.path, []byte(f.String()), config.SecureFilePermissions)
}
