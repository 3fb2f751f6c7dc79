package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/mila-iqia/milatools/internal/config"
	milaerrors "github.com/mila-iqia/milatools/internal/errors"
	"github.com/mila-iqia/milatools/internal/security"
)

// version is set at build time via -ldflags
var version = config.Version

func main() {
	// Initialize security audit logging
	if err := security.InitAuditLogger(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to initialize security audit logging: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
	err := ExecuteWithFang(ctx)
	stop()
	security.CloseAuditLogger()

	if err != nil {
		// fang already printed the error; with -v also show its classification
		if hasVerboseFlag(os.Args) {
			milaerrors.NewErrorHandler(log.New(os.Stderr, "", 0), true).HandleWithExit(err)
		}
		os.Exit(1)
	}
}

// hasVerboseFlag reports whether -v or --verbose was passed.
func hasVerboseFlag(args []string) bool {
	for _, arg := range args {
		if arg == "-v" || arg == "--verbose" {
			return true
		}
	}
	return false
}
