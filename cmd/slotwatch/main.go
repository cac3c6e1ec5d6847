// Command slotwatch performs a single monitoring run and exits 0 when the
// run succeeded, 1 otherwise.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/use-agent/slotwatch/cmd/slotwatch/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := commands.ExecuteContext(ctx)
	stop()
	os.Exit(code)
}
