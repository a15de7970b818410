// Command web serves the state and crop catalog and the pipeline API.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sachi-35/crop-yield-prediction/internal/app"
	"github.com/Sachi-35/crop-yield-prediction/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	application, err := app.NewApplication(cfg)
	if err != nil {
		slog.Error("application_init_failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		slog.Error("application_error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
