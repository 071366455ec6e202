package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"TasteClient/internal/app"
	"TasteClient/internal/config"
	"TasteClient/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(ctx, cfg, logger, os.Stdout)
	if err != nil {
		logger.Error("client setup failed", "error", err)
		os.Exit(1)
	}

	runErr := application.Run(ctx, os.Args[1:])
	if err := application.Close(); err != nil {
		logger.Warn("close storage", "error", err)
	}

	if runErr != nil {
		fmt.Fprintln(os.Stderr, app.Describe(runErr))
		if errors.Is(runErr, app.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
