//go:build !windows

package main

import (
	"os"
	"syscall"
)

// shutdownSignals are the signals that cancel the running command.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}
}
