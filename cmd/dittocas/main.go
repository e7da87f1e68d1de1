package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/dittocas/pkg/content"
)

// Exit codes beyond the generic failure, so scripts can tell a cache miss
// from a corrupted entry.
const (
	exitFailure   = 1
	exitNotFound  = 2
	exitIntegrity = 3
)

func main() {
	// Interrupts cancel in-flight writes, which discard their temp files.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, content.ErrIntegrityMismatch):
		return exitIntegrity
	case errors.Is(err, content.ErrContentNotFound):
		return exitNotFound
	default:
		return exitFailure
	}
}
