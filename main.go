// ./main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/umbra/cmd"
	"github.com/xkilldash9x/umbra/internal/observability"
)

const panicLogFile = "panic.log"

// Function variables so handlePanic can be exercised in tests.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
)

// main is the entry point for the umbra CLI.
func main() {
	defer handlePanic()

	// Commands observe the context so Ctrl-C interrupts a running script
	// instead of killing the process mid-write.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.Execute(ctx)
}

// handlePanic writes a crash report to panic.log before exiting, so a
// failure deep inside a script run leaves something to debug from.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}

	// Flush whatever the logger buffered before the crash.
	observability.Sync()

	report := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogFile, []byte(report), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "%s\n", report)
		osExit(1)
		return
	}

	fmt.Fprintf(os.Stderr, "umbra crashed; details written to %s\n", panicLogFile)
	osExit(1)
}
