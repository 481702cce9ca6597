package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-webhook/internal/cache"
	"github.com/magabrotheeeer/subscription-webhook/internal/config"
	"github.com/magabrotheeeer/subscription-webhook/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-webhook/internal/metrics"
	"github.com/magabrotheeeer/subscription-webhook/internal/migrations"
	"github.com/magabrotheeeer/subscription-webhook/internal/rabbitmq"
	"github.com/magabrotheeeer/subscription-webhook/internal/services/dispatcher"
	"github.com/magabrotheeeer/subscription-webhook/internal/services/plan"
	"github.com/magabrotheeeer/subscription-webhook/internal/services/subscription"
	"github.com/magabrotheeeer/subscription-webhook/internal/services/view"
	"github.com/magabrotheeeer/subscription-webhook/internal/storage"
	"github.com/magabrotheeeer/subscription-webhook/internal/storage/dynamo"
	"github.com/magabrotheeeer/subscription-webhook/internal/storage/memory"
	"github.com/magabrotheeeer/subscription-webhook/internal/storage/postgres"
)

// tableWaitTimeout — сколько ждать готовности созданных таблиц DynamoDB.
const tableWaitTimeout = 2 * time.Minute

// Deps — собранные зависимости, общие для HTTP-сервера и Lambda.
type Deps struct {
	Dispatcher *dispatcher.Dispatcher
	Metrics    *metrics.Metrics
	closers    []func() error
}

// Build подключает хранилище, кеш и брокер согласно конфигу и собирает диспетчер.
// Redis и RabbitMQ необязательны: без адреса используются заглушки.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Deps, error) {
	const op = "app.webhook.Build"
	deps := &Deps{Metrics: metrics.New()}

	subsTable, plansTable, err := deps.tables(ctx, cfg, logger)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	subs := storage.NewSubscriptions(subsTable)
	plans := storage.NewPlans(plansTable)

	var viewCache view.Cache = cache.Noop{}
	if cfg.Redis.Address != "" {
		redisCache, err := cache.InitServer(ctx, cfg.Redis)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		deps.closers = append(deps.closers, redisCache.Close)
		viewCache = redisCache
	} else {
		logger.Info("redis address is empty, view cache disabled")
	}

	var notifier dispatcher.Notifier = rabbitmq.Noop{}
	if cfg.RabbitMQ.URL != "" {
		conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.Retries, cfg.RabbitMQ.RetryDelay)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		deps.closers = append(deps.closers, conn.Close)
		ch, err := rabbitmq.SetupChannel(conn, cfg.RabbitMQ.Exchange, rabbitmq.ReconciliationQueues())
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		publisher := rabbitmq.NewPublisher(ch, cfg.RabbitMQ.Exchange)
		deps.closers = append(deps.closers, publisher.Close)
		notifier = publisher
	} else {
		logger.Info("rabbitmq url is empty, reconciliation notices disabled")
	}

	deps.Dispatcher = dispatcher.New(
		plan.NewService(plans, cfg.Plans, cfg.PlanCatalog, logger),
		subscription.NewService(subs, plans, logger),
		view.NewService(subs, plans, viewCache, cfg.Redis.ViewTTL, logger),
		notifier,
		deps.Metrics,
		logger,
	)
	return deps, nil
}

func (d *Deps) tables(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Table, storage.Table, error) {
	names := cfg.Storage
	log := logger.With(slog.String("backend", names.Backend))

	switch names.Backend {
	case config.BackendDynamoDB:
		client, err := dynamo.NewClient(ctx, cfg.AWS, cfg.IsDevelopment())
		if err != nil {
			return nil, nil, err
		}
		if cfg.IsDevelopment() && cfg.AWS.CreateTables {
			log.Info("ensuring dynamodb tables")
			if err := dynamo.EnsureTables(ctx, client, tableWaitTimeout, names.SubscriptionsTable, names.PlansTable); err != nil {
				return nil, nil, err
			}
		}
		log.Info("storage ready")
		return dynamo.New(client, names.SubscriptionsTable), dynamo.New(client, names.PlansTable), nil

	case config.BackendPostgres:
		db, err := postgres.New(names.ConnectionString)
		if err != nil {
			return nil, nil, err
		}
		d.closers = append(d.closers, db.Close)
		if err := migrations.Run(db.DB, names.MigrationsPath); err != nil {
			return nil, nil, err
		}
		log.Info("storage ready")
		return db.Table(names.SubscriptionsTable), db.Table(names.PlansTable), nil

	case config.BackendMemory:
		log.Warn("using in-memory storage, records are lost on restart")
		return memory.New(names.SubscriptionsTable), memory.New(names.PlansTable), nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", names.Backend)
	}
}

// Close закрывает соединения в обратном порядке.
func (d *Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

func logClose(log *slog.Logger, d *Deps) {
	if err := d.Close(); err != nil {
		log.Warn("failed to close dependencies", sl.Err(err))
	}
}
