package remote

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	milaerrors "github.com/mila-iqia/milatools/internal/errors"
	"github.com/mila-iqia/milatools/internal/security"
)

// ErrHostKeyRejected is returned when the user declines an unknown host key.
var ErrHostKeyRejected = errors.New("host key verification failed: user declined")

// HostKeyCallback returns a ssh.HostKeyCallback backed by the known_hosts
// file at knownHostsPath. Unknown hosts are shown to the user through
// prompter and appended once accepted. A changed key is always an error.
func HostKeyCallback(knownHostsPath, sshUser string, prompter Prompter, warn io.Writer, logger *log.Logger) (ssh.HostKeyCallback, error) {
	if err := security.EnsureKnownHostsFile(knownHostsPath); err != nil {
		logger.Printf("Unable to create known_hosts file %s: %v", knownHostsPath, err)
	}

	known, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("could not read known_hosts %s: %w", knownHostsPath, err)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := known(hostname, remote, key)
		if err == nil {
			security.LogHostKeyVerification(hostname, sshUser, "known_host", true)
			return nil
		}

		var keyErr *knownhosts.KeyError
		if !errors.As(err, &keyErr) {
			security.LogHostKeyVerification(hostname, sshUser, "verification_failed", false)
			return milaerrors.NewHostKeyVerificationError(hostname, fmt.Errorf("unexpected error during host key verification: %w", err))
		}

		if len(keyErr.Want) > 0 {
			security.LogHostKeyVerification(hostname, sshUser, "verification_failed", false)
			writeChangedKeyWarning(warn, hostname, remote, key, keyErr)
			return milaerrors.NewHostKeyVerificationError(hostname, keyErr)
		}

		fmt.Fprintf(warn, "The authenticity of host '%s (%s)' can't be established.\n", hostname, remote)
		fmt.Fprintf(warn, "%s key fingerprint is %s.\n", key.Type(), ssh.FingerprintSHA256(key))
		if prompter == nil {
			security.LogHostKeyVerification(hostname, sshUser, "new_host_rejected", false)
			return milaerrors.NewHostKeyVerificationError(hostname, ErrHostKeyRejected)
		}
		ok, err := prompter.Confirm("Are you sure you want to continue connecting?")
		if err != nil {
			return fmt.Errorf("failed to read user confirmation: %w", err)
		}
		if !ok {
			security.LogHostKeyVerification(hostname, sshUser, "new_host_rejected", false)
			return milaerrors.NewHostKeyVerificationError(hostname, ErrHostKeyRejected)
		}
		security.LogHostKeyVerification(hostname, sshUser, "new_host_accepted", true)
		return appendKnownHost(knownHostsPath, hostname, key, warn, logger)
	}, nil
}

func writeChangedKeyWarning(w io.Writer, hostname string, remote net.Addr, key ssh.PublicKey, keyErr *knownhosts.KeyError) {
	fmt.Fprintf(w, "\n@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@\n")
	fmt.Fprintf(w, "@    WARNING: REMOTE HOST IDENTIFICATION HAS CHANGED!     @\n")
	fmt.Fprintf(w, "@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@@\n")
	fmt.Fprintf(w, "The fingerprint for the %s key sent by the remote host %s (%s) is:\n%s\n",
		key.Type(), hostname, remote, ssh.FingerprintSHA256(key))
	for _, kh := range keyErr.Want {
		fmt.Fprintf(w, "Offending key in %s:%d\n", kh.Filename, kh.Line)
	}
}

func appendKnownHost(knownHostsPath, hostname string, key ssh.PublicKey, warn io.Writer, logger *log.Logger) error {
	f, err := security.CreateSecureFileForAppend(knownHostsPath, 0600)
	if err != nil {
		return fmt.Errorf("failed to open %s to append new key: %w", knownHostsPath, err)
	}
	defer f.Close()

	line := knownhosts.Line([]string{hostname}, key)
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("failed to write host key to %s: %w", knownHostsPath, err)
	}
	logger.Printf("Host key for %s (%s) added to %s.", hostname, key.Type(), knownHostsPath)
	fmt.Fprintf(warn, "Warning: Permanently added '%s' (%s) to the list of known hosts.\n", hostname, key.Type())
	return nil
}

// defaultWarnWriter is where host key notices go when no writer is given.
var defaultWarnWriter io.Writer = os.Stderr
