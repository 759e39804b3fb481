package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "go.uber.org/automaxprocs"

	"github.com/ItzDerock/virtual-gamepads/application"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.New().Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "virtual-gamepads: %v\n", err)
		os.Exit(1)
	}
}
