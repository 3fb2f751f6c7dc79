package security

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestCreateSecureFile(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name     string
		filename string
		mode     os.FileMode
		wantErr  bool
	}{
		{
			name:     "create new file with 0600",
			filename: "test1.txt",
			mode:     0600,
			wantErr:  false,
		},
		{
			name:     "create new file with 0644",
			filename: "test2.txt",
			mode:     0644,
			wantErr:  false,
		},
		{
			name:     "fail when file exists",
			filename: "test1.txt", // Same as first test
			mode:     0600,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fullPath := filepath.Join(tempDir, tt.filename)

			file, err := CreateSecureFile(fullPath, tt.mode)
			if (err != nil) != tt.wantErr {
				t.Errorf("CreateSecureFile() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			defer file.Close()

			info, err := file.Stat()
			if err != nil {
				t.Fatalf("Failed to stat created file: %v", err)
			}
			if info.Mode().Perm() != tt.mode {
				t.Errorf("File permissions = %v, want %v", info.Mode().Perm(), tt.mode)
			}
		})
	}
}

func TestCreateSecureFileForAppend(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "append-test.txt")

	file1, err := CreateSecureFileForAppend(testFile, 0600)
	if err != nil {
		t.Fatalf("First CreateSecureFileForAppend() failed: %v", err)
	}
	file1.WriteString("one\n")
	file1.Close()

	// Loosen permissions; the second open must tighten them again
	if err := os.Chmod(testFile, 0644); err != nil {
		t.Fatal(err)
	}

	file2, err := CreateSecureFileForAppend(testFile, 0600)
	if err != nil {
		t.Fatalf("Second CreateSecureFileForAppend() failed: %v", err)
	}
	file2.WriteString("two\n")
	file2.Close()

	info, err := os.Stat(testFile)
	if err != nil {
		t.Fatalf("Failed to stat file: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("File permissions = %v, want %v", info.Mode().Perm(), os.FileMode(0600))
	}

	content, err := os.ReadFile(testFile)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "one\ntwo\n" {
		t.Errorf("content = %q", content)
	}
}

func TestEnsureKnownHostsFile(t *testing.T) {
	sshDir := filepath.Join(t.TempDir(), ".ssh")
	knownHostsPath := filepath.Join(sshDir, "known_hosts")

	if err := EnsureKnownHostsFile(knownHostsPath); err != nil {
		t.Fatalf("EnsureKnownHostsFile() failed: %v", err)
	}

	dirInfo, err := os.Stat(sshDir)
	if err != nil {
		t.Fatalf("SSH directory not created: %v", err)
	}
	if dirInfo.Mode().Perm() != 0700 {
		t.Errorf("SSH directory permissions = %v, want 0700", dirInfo.Mode().Perm())
	}

	fileInfo, err := os.Stat(knownHostsPath)
	if err != nil {
		t.Fatalf("Known hosts file not created: %v", err)
	}
	if fileInfo.Mode().Perm() != 0600 {
		t.Errorf("Known hosts file permissions = %v, want 0600", fileInfo.Mode().Perm())
	}

	// Existing content is left alone
	if err := os.WriteFile(knownHostsPath, []byte("[login.server.mila.quebec]:2222 ssh-ed25519 AAAA\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := EnsureKnownHostsFile(knownHostsPath); err != nil {
		t.Errorf("EnsureKnownHostsFile() should succeed on existing file: %v", err)
	}
	content, _ := os.ReadFile(knownHostsPath)
	if !strings.HasPrefix(string(content), "[login.server.mila.quebec]:2222") {
		t.Errorf("existing known_hosts was modified: %q", content)
	}
}

func TestVerifyFilePermissions(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test-perms.txt")
	if err := os.WriteFile(testFile, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := VerifyFilePermissions(testFile, 0600); err != nil {
		t.Fatalf("VerifyFilePermissions() error = %v", err)
	}
	info, _ := os.Stat(testFile)
	if info.Mode().Perm() != 0600 {
		t.Errorf("permissions = %v, want 0600", info.Mode().Perm())
	}

	if err := VerifyFilePermissions(filepath.Join(t.TempDir(), "missing"), 0600); err == nil {
		t.Error("VerifyFilePermissions() on a missing file should fail")
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config")

	if err := WriteFileAtomic(path, []byte("Host mila\n"), 0600); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}
	if err := WriteFileAtomic(path, []byte("Host mila-cpu\n"), 0600); err != nil {
		t.Fatalf("second WriteFileAtomic() error = %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "Host mila-cpu\n" {
		t.Errorf("content = %q", content)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("permissions = %v, want 0600", info.Mode().Perm())
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestWriteFileAtomicTightensExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	if err := os.WriteFile(path, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(path, []byte("new"), 0600); err != nil {
		t.Fatal(err)
	}
	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0600 {
		t.Errorf("permissions = %v, want 0600", info.Mode().Perm())
	}
}

func TestGenerateRandomSuffix(t *testing.T) {
	suffixes := make(map[string]bool)
	for i := 0; i < 100; i++ {
		suffix := generateRandomSuffix()
		if len(suffix) != 16 {
			t.Errorf("suffix length = %d, want 16", len(suffix))
		}
		if suffixes[suffix] {
			t.Errorf("duplicate suffix generated: %s", suffix)
		}
		suffixes[suffix] = true
	}
}

func TestWriteFileAtomicConcurrency(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	const writers = 10

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- WriteFileAtomic(path, []byte(strings.Repeat("x", i+1)), 0600)
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("concurrent WriteFileAtomic() error = %v", err)
		}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Trim(string(content), "x") != "" || len(content) == 0 {
		t.Errorf("file holds a torn write: %q", content)
	}
}
