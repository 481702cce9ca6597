// Package view собирает представление подписки вместе с её планом для чтения.
package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-webhook/internal/cache"
	"github.com/magabrotheeeer/subscription-webhook/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-webhook/internal/models"
	"github.com/magabrotheeeer/subscription-webhook/internal/services/subscription"
	"github.com/magabrotheeeer/subscription-webhook/internal/storage"
)

type SubscriptionFinder interface {
	FindByUser(ctx context.Context, userID string) (*models.SubscriptionRecord, error)
}

type PlanFinder interface {
	FindBySku(ctx context.Context, sku string) (*models.PlanRecord, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(ctx context.Context, key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(ctx context.Context, key string) error
}

type Service struct {
	subs  SubscriptionFinder
	plans PlanFinder
	cache Cache
	ttl   time.Duration
	log   *slog.Logger
}

func NewService(subs SubscriptionFinder, plans PlanFinder, cache Cache, ttl time.Duration, log *slog.Logger) *Service {
	return &Service{
		subs:  subs,
		plans: plans,
		cache: cache,
		ttl:   ttl,
		log:   log,
	}
}

// AssembleView возвращает подписку пользователя вместе с планом и вычисленным статусом.
// Ошибки кеша только логируются.
func (s *Service) AssembleView(ctx context.Context, userID string) (*models.SubscriptionView, error) {
	const op = "services.view.AssembleView"
	log := s.log.With(sl.Op(op), slog.String("user_id", userID))
	key := cache.ViewKey(userID)

	var cached models.SubscriptionView
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		log.Warn("failed to read view from cache", slog.String("key", key), sl.Err(err))
	}
	if found {
		log.Debug("view served from cache")
		return &cached, nil
	}

	sub, err := s.subs.FindByUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrSubscriptionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	plan, err := s.plans.FindBySku(ctx, sub.PlanSku)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %s: %w", op, sub.PlanSku, models.ErrPlanNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	view, err := Assemble(*sub, *plan)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.cache.Set(ctx, key, view, s.ttl); err != nil {
		log.Warn("failed to cache view", slog.String("key", key), sl.Err(err))
	}
	return view, nil
}

// Invalidate сбрасывает закешированное представление пользователя.
func (s *Service) Invalidate(ctx context.Context, userID string) {
	key := cache.ViewKey(userID)
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.log.Warn("failed to remove view from cache", slog.String("key", key), sl.Err(err))
	}
}

// Assemble склеивает записи подписки и плана в плоское представление.
func Assemble(sub models.SubscriptionRecord, plan models.PlanRecord) (*models.SubscriptionView, error) {
	status, err := subscription.ComputeStatus(sub)
	if err != nil {
		return nil, err
	}

	features := plan.Features
	if features == nil {
		features = []string{}
	}
	return &models.SubscriptionView{
		UserID:         sub.UserID(),
		SubscriptionID: sub.SubscriptionID(),
		Plan: models.PlanView{
			Sku:          plan.PK,
			Name:         plan.Name,
			Price:        plan.Price,
			Currency:     plan.Currency,
			BillingCycle: plan.BillingCycle,
			Features:     features,
		},
		StartDate: sub.StartDate,
		ExpiresAt: sub.ExpiresAt,
		Status:    status,
		Attributes: models.ViewAttributes{
			AutoRenew:     sub.Attributes.AutoRenew,
			PaymentMethod: sub.Attributes.PaymentMethod,
		},
		CancelledAt: sub.CancelledAt,
	}, nil
}
