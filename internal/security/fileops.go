package security

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CreateSecureFile creates a new file with the given permissions. It fails
// if the file already exists.
func CreateSecureFile(filename string, mode os.FileMode) (*os.File, error) {
	// O_EXCL so nothing can swap the file in between creation and chmod
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to create secure file %s: %w", filename, err)
	}

	// umask may have stripped bits
	if err := file.Chmod(mode); err != nil {
		file.Close()
		os.Remove(filename)
		return nil, fmt.Errorf("failed to set file permissions: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		os.Remove(filename)
		return nil, fmt.Errorf("failed to verify file permissions: %w", err)
	}
	if info.Mode().Perm() != mode.Perm() {
		file.Close()
		os.Remove(filename)
		return nil, fmt.Errorf("file permissions not set correctly: expected %v, got %v", mode, info.Mode())
	}

	return file, nil
}

// CreateSecureFileForAppend opens filename for appending, creating it with
// mode if needed. An existing file is brought back to mode first.
func CreateSecureFileForAppend(filename string, mode os.FileMode) (*os.File, error) {
	if _, err := os.Stat(filename); err == nil {
		if err := VerifyFilePermissions(filename, mode); err != nil {
			return nil, fmt.Errorf("existing file has insecure permissions: %w", err)
		}
		return os.OpenFile(filename, os.O_WRONLY|os.O_APPEND, mode)
	}
	return CreateSecureFile(filename, mode)
}

// VerifyFilePermissions resets filename to expectedMode if it differs.
func VerifyFilePermissions(filename string, expectedMode os.FileMode) error {
	info, err := os.Stat(filename)
	if err != nil {
		return err
	}
	if info.Mode().Perm() != expectedMode.Perm() {
		return os.Chmod(filename, expectedMode)
	}
	return nil
}

// EnsureKnownHostsFile creates ~/.ssh and an empty known_hosts file, both
// private to the user, so new host keys can be appended to it.
func EnsureKnownHostsFile(knownHostsPath string) error {
	if err := os.MkdirAll(filepath.Dir(knownHostsPath), 0700); err != nil {
		return fmt.Errorf("failed to create ssh directory: %w", err)
	}

	file, err := CreateSecureFileForAppend(knownHostsPath, 0600)
	if err != nil {
		return err
	}
	defer file.Close()

	LogSecureFileOperation("known_hosts_ensure", knownHostsPath, true, "")
	return nil
}

// WriteFileAtomic replaces path with data. The content is written to a
// temporary file in the same directory and renamed over path, so readers
// never see a partial file. The parent directory is created if needed.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tempPath := path + ".tmp." + generateRandomSuffix()
	file, err := CreateSecureFile(tempPath, perm)
	if err != nil {
		return err
	}

	cleanup := func() {
		file.Close()
		os.Remove(tempPath)
	}

	if _, err := file.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write %s: %w", tempPath, err)
	}
	if err := file.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync %s: %w", tempPath, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		LogSecureFileOperation("atomic_write", path, false, err.Error())
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	LogSecureFileOperation("atomic_write", path, true, fmt.Sprintf("%d bytes", len(data)))
	return nil
}

// generateRandomSuffix generates a random suffix for temporary files
func generateRandomSuffix() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("%x", bytes)
}
