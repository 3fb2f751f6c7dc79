//go:build !windows && !linux && !darwin
// +build !windows,!linux,!darwin

package platform

// openCommandPlatform assumes the BSDs ship xdg-utils
func openCommandPlatform(target string) (string, []string) {
	return "xdg-open", []string{target}
}
