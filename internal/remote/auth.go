package remote

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/crypto/ssh"
	"golang.org/x/term"

	"github.com/mila-iqia/milatools/internal/config"
	"github.com/mila-iqia/milatools/internal/security"
)

// Prompter asks the user for secrets and yes/no answers while a
// connection is being set up.
type Prompter interface {
	Secret(prompt string) (string, error)
	Confirm(question string) (bool, error)
}

// TerminalPrompter reads secrets from the terminal without echo and asks
// confirmations with a huh form.
type TerminalPrompter struct{}

func (TerminalPrompter) Secret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("cannot prompt for a secret: stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return string(b), nil
}

func (TerminalPrompter) Confirm(question string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(question).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	return ok, err
}

// LoadPrivateKey loads an SSH private key from the given path.
// It supports unencrypted keys and keys encrypted with a passphrase,
// asking prompter for it if needed.
func LoadPrivateKey(path string, prompter Prompter, logger *log.Logger) (ssh.Signer, error) {
	if path == "" {
		return nil, errors.New("private key path is empty")
	}
	keyBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file %q failed: %w", path, err)
	}

	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err == nil {
		return signer, nil
	}

	var passphraseErr *ssh.PassphraseMissingError
	if !errors.As(err, &passphraseErr) {
		return nil, fmt.Errorf("parsing private key %q failed: %w", path, err)
	}
	if prompter == nil {
		return nil, fmt.Errorf("key %q is passphrase protected and no prompt is available", path)
	}

	logger.Printf("SSH key %s is passphrase protected.", path)
	passphrase, err := prompter.Secret(fmt.Sprintf("Enter passphrase for key %s: ", path))
	if err != nil {
		return nil, err
	}
	signer, err = ssh.ParsePrivateKeyWithPassphrase(keyBytes, []byte(passphrase))
	if err != nil {
		if strings.Contains(err.Error(), "incorrect passphrase") || strings.Contains(err.Error(), "decryption") {
			return nil, fmt.Errorf("incorrect passphrase for key %q", path)
		}
		return nil, fmt.Errorf("parsing key %q with passphrase failed: %w", path, err)
	}
	return signer, nil
}

// discoverKeys returns the private keys in homeDir/.ssh in order of
// preference. Keys readable by group or others are skipped.
func discoverKeys(homeDir string, logger *log.Logger) []string {
	if homeDir == "" {
		logger.Printf("Cannot discover SSH keys: home directory unknown")
		return nil
	}
	sshDir := filepath.Join(homeDir, config.SSHConfigDirName)

	var found []string
	for _, keyType := range config.ModernKeyTypes {
		keyPath := filepath.Join(sshDir, keyType)
		info, err := os.Stat(keyPath)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Mode().Perm()&0044 != 0 {
			logger.Printf("Warning: SSH key %s has overly permissive permissions (%o), skipping", keyPath, info.Mode().Perm())
			continue
		}
		logger.Printf("Found SSH key: %s (type: %s)", keyPath, keyType)
		found = append(found, keyPath)
	}
	if len(found) == 0 {
		logger.Printf("No suitable SSH private keys found in %s (searched: %v)", sshDir, config.ModernKeyTypes)
	}
	return found
}

// authMethods builds the authentication methods for t: every usable
// identity file from the ssh config, then discovered keys, then
// keyboard-interactive. The cluster uses keyboard-interactive for
// password login.
func authMethods(t Target, homeDir string, prompter Prompter, logger *log.Logger) []ssh.AuthMethod {
	candidates := append([]string{}, t.IdentityFiles...)
	candidates = append(candidates, discoverKeys(homeDir, logger)...)

	seen := make(map[string]bool)
	var signers []ssh.Signer
	for _, path := range candidates {
		if seen[path] {
			continue
		}
		seen[path] = true
		if _, err := os.Stat(path); err != nil {
			continue
		}
		signer, err := LoadPrivateKey(path, prompter, logger)
		if err != nil {
			logger.Printf("Failed to load key %s: %v", path, err)
			security.LogSSHKeyAuthentication(t.Host, t.User, path, "unknown", false)
			continue
		}
		logger.Printf("Using SSH key: %s (%s)", path, signer.PublicKey().Type())
		security.LogSSHKeyAuthentication(t.Host, t.User, path, signer.PublicKey().Type(), true)
		signers = append(signers, signer)
	}

	var methods []ssh.AuthMethod
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}
	if prompter != nil {
		methods = append(methods, ssh.KeyboardInteractive(keyboardInteractive(t, prompter)))
	}

	logger.Printf("Created %d authentication methods (keys: %d)", len(methods), len(signers))
	return methods
}

func keyboardInteractive(t Target, prompter Prompter) ssh.KeyboardInteractiveChallenge {
	return func(name, instruction string, questions []string, echos []bool) ([]string, error) {
		if instruction != "" {
			fmt.Fprintln(os.Stderr, instruction)
		}
		answers := make([]string, len(questions))
		for i, q := range questions {
			if strings.TrimSpace(q) == "" {
				q = fmt.Sprintf("%s@%s's password: ", t.User, t.Host)
			}
			a, err := prompter.Secret(q)
			if err != nil {
				return nil, err
			}
			answers[i] = a
		}
		return answers, nil
	}
}
