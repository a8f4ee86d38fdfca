// Command audd reconciles datasets: it builds canonical IRs from files and
// databases, diffs them, plans a resolution and applies it.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/audd/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
