// Command skull runs the animatronic skull: audio detection, conversation
// and jaw movement wired together as actors on one event hive.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/randalmurphal/eventhive/pkg/eventhive/config"
)

// Exit codes.
const (
	exitOK     = 0
	exitError  = 1
	exitConfig = 2
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "skull:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps startup failures to a process exit status. A bad backend
// selection is a configuration error, not a crash.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var modeErr *config.ModeError
	if errors.As(err, &modeErr) {
		return exitConfig
	}
	return exitError
}
