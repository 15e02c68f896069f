// Package app provides the ragchat server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/ragchat/cmd/ragchat/app/options"
	"github.com/kart-io/ragchat/internal/ragchat"
	"github.com/kart-io/ragchat/pkg/infra/app"
)

// commandDesc is the description of the command.
const commandDesc = `ragchat

A retrieval-augmented chat service.

This server provides:
  - Document ingestion into a vector store (chromem, Qdrant or Milvus)
  - Per-session conversations grounded on retrieved chunks
  - Query optimization before retrieval
  - Ollama and OpenAI compatible model providers`

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(ragchat.Name),
		app.WithShortDescription("Retrieval-augmented chat service"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}
		return server.Run(ctx)
	}
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
// A second signal exits immediately.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
