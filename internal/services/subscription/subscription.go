// Package subscription применяет события жизненного цикла подписки к хранилищу
// и вычисляет статус подписки по её временным меткам.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/subscription-webhook/internal/lib/isotime"
	"github.com/magabrotheeeer/subscription-webhook/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-webhook/internal/models"
	"github.com/magabrotheeeer/subscription-webhook/internal/storage"
)

// Outcome — результат применения события.
type Outcome string

const (
	OutcomeCreated          Outcome = "created"
	OutcomeRenewedUpdated   Outcome = "renewed_updated"
	OutcomeCancelledUpdated Outcome = "cancelled_updated"
	OutcomeNoOp             Outcome = "noop"
)

// Changed сообщает, была ли запись в хранилище.
func (o Outcome) Changed() bool {
	return o != OutcomeNoOp && o != ""
}

// SubscriptionRepository определяет методы для работы с подписками в хранилище.
type SubscriptionRepository interface {
	// FindByUser возвращает подписку пользователя или ошибку с storage.ErrNotFound.
	FindByUser(ctx context.Context, userID string) (*models.SubscriptionRecord, error)
	// Save записывает новую подписку целиком.
	Save(ctx context.Context, rec models.SubscriptionRecord) error
	// Patch меняет отдельные атрибуты; nil удаляет атрибут.
	Patch(ctx context.Context, pk, sk string, attrs map[string]any) error
}

// PlanFinder ищет план по SKU.
type PlanFinder interface {
	FindBySku(ctx context.Context, sku string) (*models.PlanRecord, error)
}

// Service решает, создаёт ли событие подписку, продлевает или отменяет её.
type Service struct {
	subs  SubscriptionRepository
	plans PlanFinder
	log   *slog.Logger
}

func NewService(subs SubscriptionRepository, plans PlanFinder, log *slog.Logger) *Service {
	return &Service{
		subs:  subs,
		plans: plans,
		log:   log,
	}
}

// Reconcile применяет событие. План события должен существовать и быть активным,
// иначе возвращается models.ErrPlanUnavailable и ничего не пишется.
//
// Первое событие пользователя всегда создаёт подписку, какого бы типа оно ни было.
func (s *Service) Reconcile(ctx context.Context, payload models.SubscriptionEventPayload) (Outcome, error) {
	const op = "services.subscription.Reconcile"
	log := s.log.With(
		sl.Op(op),
		slog.String("event_id", payload.EventID),
		slog.String("event_type", string(payload.EventType)),
		slog.String("user_id", payload.UserID),
	)

	if err := s.checkPlan(ctx, payload.Metadata.PlanSku); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	existing, err := s.subs.FindByUser(ctx, payload.UserID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if existing == nil {
		rec, err := newRecord(payload)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		if err := s.subs.Save(ctx, rec); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		log.Info("created subscription", slog.String("sk", rec.SK))
		return OutcomeCreated, nil
	}

	var (
		attrs   map[string]any
		outcome Outcome
	)
	switch payload.EventType {
	case models.EventSubscriptionRenewed:
		attrs, err = renewal(payload)
		outcome = OutcomeRenewedUpdated
	case models.EventSubscriptionCancelled:
		attrs, err = cancellation(payload)
		outcome = OutcomeCancelledUpdated
	default:
		log.Info("event does not change existing subscription", slog.String("sk", existing.SK))
		return OutcomeNoOp, nil
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := s.subs.Patch(ctx, existing.PK, existing.SK, attrs); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	log.Info("updated subscription", slog.String("sk", existing.SK), slog.String("outcome", string(outcome)))
	return outcome, nil
}

func (s *Service) checkPlan(ctx context.Context, sku string) error {
	plan, err := s.plans.FindBySku(ctx, sku)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s not found", models.ErrPlanUnavailable, sku)
	}
	if err != nil {
		return err
	}
	if !plan.IsActive() {
		return fmt.Errorf("%w: %s is %s", models.ErrPlanUnavailable, sku, plan.Status)
	}
	return nil
}

func newRecord(p models.SubscriptionEventPayload) (models.SubscriptionRecord, error) {
	ts, err := isotime.Normalize(p.Timestamp)
	if err != nil {
		return models.SubscriptionRecord{}, models.NewValidationError("field timestamp must be an ISO-8601 timestamp")
	}
	expiresAt, err := isotime.Normalize(p.ExpiresAt)
	if err != nil {
		return models.SubscriptionRecord{}, models.NewValidationError("field expiresAt must be an ISO-8601 timestamp")
	}

	rec := models.SubscriptionRecord{
		PK:           models.SubscriptionPK(p.UserID),
		SK:           models.SubscriptionSK(p.SubscriptionID),
		Type:         models.RecordTypeSubscription,
		PlanSku:      p.Metadata.PlanSku,
		StartDate:    ts,
		ExpiresAt:    expiresAt,
		LastModified: ts,
		Status:       models.MarkerActive,
		Attributes: models.SubscriptionAttributes{
			Provider:      p.Provider,
			PaymentID:     p.PaymentID,
			CustomerID:    p.CustomerID,
			AutoRenew:     p.Metadata.AutoRenew,
			PaymentMethod: p.Metadata.PaymentMethod,
		},
	}
	if p.IsCancelled() {
		cancelledAt, err := isotime.Normalize(p.CancelledAt)
		if err != nil {
			return models.SubscriptionRecord{}, models.NewValidationError("field cancelledAt must be an ISO-8601 timestamp")
		}
		rec.CancelledAt = cancelledAt
		rec.Status = models.MarkerCancelled
	}
	return rec, nil
}

func renewal(p models.SubscriptionEventPayload) (map[string]any, error) {
	ts, expiresAt, err := eventTimes(p)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		models.AttrLastModified: ts,
		models.AttrExpiresAt:    expiresAt,
		models.AttrCancelledAt:  nil,
		models.AttrStatus:       string(models.MarkerActive),
	}, nil
}

func cancellation(p models.SubscriptionEventPayload) (map[string]any, error) {
	ts, expiresAt, err := eventTimes(p)
	if err != nil {
		return nil, err
	}
	// Без cancelledAt моментом отмены считается время события.
	cancelledAt := ts
	if p.IsCancelled() {
		cancelledAt, err = isotime.Normalize(p.CancelledAt)
		if err != nil {
			return nil, models.NewValidationError("field cancelledAt must be an ISO-8601 timestamp")
		}
	}
	return map[string]any{
		models.AttrLastModified: ts,
		models.AttrExpiresAt:    expiresAt,
		models.AttrCancelledAt:  cancelledAt,
		models.AttrStatus:       string(models.MarkerCancelled),
	}, nil
}

func eventTimes(p models.SubscriptionEventPayload) (string, string, error) {
	ts, err := isotime.Normalize(p.Timestamp)
	if err != nil {
		return "", "", models.NewValidationError("field timestamp must be an ISO-8601 timestamp")
	}
	expiresAt, err := isotime.Normalize(p.ExpiresAt)
	if err != nil {
		return "", "", models.NewValidationError("field expiresAt must be an ISO-8601 timestamp")
	}
	return ts, expiresAt, nil
}
