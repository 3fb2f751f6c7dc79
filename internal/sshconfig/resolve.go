package sshconfig

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	sshcfg "github.com/kevinburke/ssh_config"
)

// Resolver answers "what would ssh use for this directive on this host",
// applying Host pattern matching, first-match-wins and ssh defaults.
type Resolver struct {
	cfg *sshcfg.Config
}

// NewResolver decodes an ssh config from r.
func NewResolver(r io.Reader) (*Resolver, error) {
	cfg, err := sshcfg.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode ssh config: %w", err)
	}
	return &Resolver{cfg: cfg}, nil
}

// LoadResolver decodes the ssh config at path. A missing file resolves
// every directive to its default.
func LoadResolver(path string) (*Resolver, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Resolver{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open SSH config file %s: %w", path, err)
	}
	defer f.Close()
	return NewResolver(f)
}

// Get returns the effective value of key for alias, or the ssh default
// when no stanza sets it.
func (r *Resolver) Get(alias, key string) (string, error) {
	name, ok := CanonicalName(key)
	if !ok {
		return "", &UnrecognizedDirectiveError{Keys: []string{key}}
	}
	if r.cfg != nil {
		value, err := r.cfg.Get(alias, name)
		if err != nil {
			return "", fmt.Errorf("resolve %s for %s: %w", name, alias, err)
		}
		if value != "" {
			return value, nil
		}
	}
	return sshcfg.Default(name), nil
}

// GetAll returns every value of a directive that may repeat, such as IdentityFile.
func (r *Resolver) GetAll(alias, key string) ([]string, error) {
	name, ok := CanonicalName(key)
	if !ok {
		return nil, &UnrecognizedDirectiveError{Keys: []string{key}}
	}
	if r.cfg != nil {
		values, err := r.cfg.GetAll(alias, name)
		if err != nil {
			return nil, fmt.Errorf("resolve %s for %s: %w", name, alias, err)
		}
		if len(values) > 0 {
			return values, nil
		}
	}
	if def := sshcfg.Default(name); def != "" {
		return []string{def}, nil
	}
	return nil, nil
}
