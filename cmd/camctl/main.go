package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"scheinicam/internal/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmd, cleanup := newRootCommand()
	err := cmd.ExecuteContext(ctx)
	cleanup()
	stop()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "camctl:", services.UserMessage(err))
		}
		os.Exit(1)
	}
}
