package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "embed"

	"github.com/tidewaterlab/gemflux/internal/app"
	"github.com/tidewaterlab/gemflux/internal/support/logger"
)

// embeddedConfig embeds the content of the application's YAML configuration file.
// This file is used to load configuration at application startup.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// main is the entry point of the application.
// It manages the startup of the batch application, signal handling, and execution of the Fx container.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handling for graceful shutdown (e.g., Ctrl+C)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Stopping after the current day...", sig)
		cancel()
	}()

	// Get the path to the .env file from environment variables. Use ".env" as default if not set.
	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	app.RunApplication(ctx, envFilePath, embeddedConfig)
	os.Exit(0)
}
