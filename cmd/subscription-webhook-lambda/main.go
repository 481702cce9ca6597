// Package main — точка входа AWS Lambda для вебхука подписок (API Gateway proxy).
package main

import (
	"context"
	"log/slog"
	"os"

	awslambda "github.com/aws/aws-lambda-go/lambda"

	"github.com/magabrotheeeer/subscription-webhook/internal/app/webhook"
	"github.com/magabrotheeeer/subscription-webhook/internal/config"
	"github.com/magabrotheeeer/subscription-webhook/internal/lambda"
	"github.com/magabrotheeeer/subscription-webhook/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()

	level := slog.LevelInfo
	if cfg.IsDevelopment() {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	// Соединения создаются один раз на контейнер и переиспользуются между вызовами.
	deps, err := webhook.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", sl.Err(err))
		os.Exit(1)
	}

	handler := lambda.New(logger, deps.Dispatcher, deps.Metrics, cfg.Webhook.Secret, cfg.Webhook.SignatureHeader)
	awslambda.Start(handler.Handle)
}
