//go:build linux
// +build linux

package platform

// openCommandPlatform uses xdg-open from xdg-utils
func openCommandPlatform(target string) (string, []string) {
	return "xdg-open", []string{target}
}
