package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/walkthrough/cmd"
	"github.com/xkilldash9x/walkthrough/internal/observability"
)

const panicLogFile = "walkthrough-panic.log"

// Exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitPanic       = 2
	exitInterrupted = 130
)

// Function variables for mocking in tests.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
	execute     = cmd.Execute
)

func main() {
	defer handlePanic()

	// Ctrl-C cancels the run; the runner records the in-flight step as failed.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	osExit(exitCode(execute(ctx)))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	default:
		return exitFailure
	}
}

// handlePanic records an unexpected crash to panicLogFile and exits.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}
	observability.Sync()

	panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogFile, []byte(panicMessage), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
		osExit(exitPanic)
		return
	}
	fmt.Fprintf(os.Stderr, "walkthrough crashed: %v\nDetails logged to %s\n", r, panicLogFile)
	osExit(exitPanic)
}
