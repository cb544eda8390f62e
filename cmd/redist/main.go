package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	orchestrators "github.com/ochairo/redist/internal/domain-orchestrators"
	"github.com/ochairo/redist/internal/domain/entities"
)

// Exit codes
const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(os.Stdout, os.Stderr)
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	stop()
	os.Exit(exitCode(err))
}

// exitCode maps configuration problems to 2 and every other failure to 1
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, entities.ErrConfiguration), errors.Is(err, orchestrators.ErrUnknownStage):
		return exitConfig
	default:
		return exitFailed
	}
}
