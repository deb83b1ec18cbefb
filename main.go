// ./main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/crawlkit/careerscout/cmd"
)

// main is the entry point for the careerscout CLI application.
func main() {
	// Interrupts cancel the run; in-flight attempts wind down and whatever
	// records were written stay written.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.ExecuteContext(ctx)
}
