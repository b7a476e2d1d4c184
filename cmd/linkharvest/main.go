package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshsymonds/linkharvest/internal/logging"
	"github.com/joshsymonds/linkharvest/internal/runtime"
)

// version is set at build time.
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(&options{}).ExecuteContext(ctx); err != nil {
		runtime.DefaultLogger().Error("linkharvest failed", logging.Err(err))
		cancel()
		os.Exit(1)
	}
}
