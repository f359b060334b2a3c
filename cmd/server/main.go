// Package main implements the entry point for the Atlaris API server,
// which manages AI-generated learning plans: plan CRUD, asynchronous
// generation through a durable priority job queue, and per-user quotas.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := app.run(ctx); err != nil {
		app.logger.Error("server exited with error", "error", err)
		app.cleanup()
		os.Exit(1)
	}

	app.cleanup()
}
