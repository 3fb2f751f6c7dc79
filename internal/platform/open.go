// Package platform holds the per-OS bits of launching helper programs.
package platform

import (
	"fmt"
	"net/url"
)

// OpenCommand returns the program and arguments that open target in the
// user's default browser.
func OpenCommand(target string) (string, []string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", nil, fmt.Errorf("invalid URL %q: %w", target, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", nil, fmt.Errorf("refusing to open non-web URL %q", target)
	}
	name, args := openCommandPlatform(u.String())
	return name, args, nil
}
