package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/qj0r9j0vc2/chat-relay/internal/app"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config/config.yaml"
	}

	application, err := app.New(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := application.Start(ctx)
	if err := application.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "exited with error: %v\n", runErr)
		os.Exit(1)
	}
}
