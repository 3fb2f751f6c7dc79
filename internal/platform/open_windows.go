//go:build windows
// +build windows

package platform

// openCommandPlatform goes through the URL protocol handler, since start is a
// cmd.exe builtin and mangles '&' in query strings
func openCommandPlatform(target string) (string, []string) {
	return "rundll32", []string{"url.dll,FileProtocolHandler", target}
}
