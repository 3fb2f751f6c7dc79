//go:build windows

package main

import "os"

// shutdownSignals are the signals that cancel the running command.
// Windows only delivers os.Interrupt.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
