// Package main содержит точку входа ежедневной очистки удалённых аккаунтов.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/journal-accounts/internal/app/sweeper"
	"github.com/magabrotheeeer/journal-accounts/internal/config"
	"github.com/magabrotheeeer/journal-accounts/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger.Info("starting deletion-sweeper", slog.String("env", cfg.Env))
	logger.Debug("config loaded", slog.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := sweeper.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize deletion-sweeper", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("deletion-sweeper stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("deletion-sweeper stopped gracefully")
}
