//go:build darwin
// +build darwin

package platform

// openCommandPlatform uses open(1) on macOS
func openCommandPlatform(target string) (string, []string) {
	return "open", []string{target}
}
