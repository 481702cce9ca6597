// Package main Subscription Webhook API
//
// @title           Subscription Webhook API
// @version         1.0
// @description     Приём вебхуков платёжного провайдера и чтение подписок пользователей

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /api/v1
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/subscription-webhook/internal/app/webhook"
	"github.com/magabrotheeeer/subscription-webhook/internal/config"
	"github.com/magabrotheeeer/subscription-webhook/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()

	level := slog.LevelInfo
	if cfg.IsDevelopment() {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	logger.Info("starting subscription-webhook",
		slog.String("env", cfg.Env),
		slog.String("backend", cfg.Storage.Backend),
	)
	logger.Debug("loaded config", slog.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := webhook.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("subscription-webhook stopped gracefully")
}
