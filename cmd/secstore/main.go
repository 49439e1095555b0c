package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := NewApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "secstore: %v\n", err)
		os.Exit(1)
	}
}
