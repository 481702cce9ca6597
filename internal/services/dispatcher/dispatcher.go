// Package dispatcher направляет входящий запрос на путь чтения или записи.
package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscription-webhook/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-webhook/internal/lib/validate"
	"github.com/magabrotheeeer/subscription-webhook/internal/models"
	"github.com/magabrotheeeer/subscription-webhook/internal/services/subscription"
)

// Сообщения успешных ответов.
const (
	MessageProcessed = "Subscription and Plan processed successfully"
	MessageRetrieved = "Subscription retrieved successfully"
)

type PlanEnsurer interface {
	EnsurePlan(ctx context.Context, payload models.SubscriptionEventPayload) (bool, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, payload models.SubscriptionEventPayload) (subscription.Outcome, error)
}

type ViewAssembler interface {
	AssembleView(ctx context.Context, userID string) (*models.SubscriptionView, error)
	Invalidate(ctx context.Context, userID string)
}

// Notifier сообщает подписчикам брокера о применённом событии.
type Notifier interface {
	Publish(ctx context.Context, ev models.ReconciledEvent) error
}

// Observer учитывает результаты обработки в метриках.
type Observer interface {
	ObserveOutcome(outcome string)
	PlanCreated()
}

// Result — успешный результат обработки запроса.
type Result struct {
	Message string
	Data    any
}

type Dispatcher struct {
	plans    PlanEnsurer
	subs     Reconciler
	views    ViewAssembler
	notifier Notifier
	observer Observer
	validate *validator.Validate
	log      *slog.Logger
}

func New(
	plans PlanEnsurer,
	subs Reconciler,
	views ViewAssembler,
	notifier Notifier,
	observer Observer,
	log *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		plans:    plans,
		subs:     subs,
		views:    views,
		notifier: notifier,
		observer: observer,
		validate: validate.New(),
		log:      log,
	}
}

// Dispatch обрабатывает событие: GET читает подписку, POST применяет вебхук.
// Остальные методы возвращают models.ErrMethodNotAllowed.
func (d *Dispatcher) Dispatch(ctx context.Context, ev models.Event) (Result, error) {
	switch ev.HTTPMethod {
	case http.MethodGet:
		return d.read(ctx, ev)
	case http.MethodPost:
		return d.ingest(ctx, ev)
	default:
		return Result{}, fmt.Errorf("%w: %s", models.ErrMethodNotAllowed, ev.HTTPMethod)
	}
}

func (d *Dispatcher) read(ctx context.Context, ev models.Event) (Result, error) {
	const op = "services.dispatcher.read"

	userID := ev.UserID()
	if userID == "" {
		return Result{}, models.NewValidationError("path parameter userId is required")
	}

	view, err := d.views.AssembleView(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	return Result{Message: MessageRetrieved, Data: view}, nil
}

func (d *Dispatcher) ingest(ctx context.Context, ev models.Event) (Result, error) {
	const op = "services.dispatcher.ingest"

	payload, err := d.decode(ev.Body)
	if err != nil {
		return Result{}, err
	}
	log := d.log.With(
		sl.Op(op),
		slog.String("event_id", payload.EventID),
		slog.String("event_type", string(payload.EventType)),
	)

	planCreated, err := d.plans.EnsurePlan(ctx, payload)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	if planCreated {
		d.observer.PlanCreated()
	}

	outcome, err := d.subs.Reconcile(ctx, payload)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	d.observer.ObserveOutcome(string(outcome))

	if outcome.Changed() {
		d.views.Invalidate(ctx, payload.UserID)
	}

	notice := models.ReconciledEvent{
		EventID:        payload.EventID,
		EventType:      string(payload.EventType),
		UserID:         payload.UserID,
		SubscriptionID: payload.SubscriptionID,
		PlanSku:        payload.Metadata.PlanSku,
		Outcome:        string(outcome),
		PlanCreated:    planCreated,
		OccurredAt:     payload.Timestamp,
	}
	if err := d.notifier.Publish(ctx, notice); err != nil {
		log.Warn("failed to publish reconciliation notice", sl.Err(err))
	}

	log.Info("event processed", slog.String("outcome", string(outcome)), slog.Bool("plan_created", planCreated))
	return Result{Message: MessageProcessed}, nil
}

func (d *Dispatcher) decode(body []byte) (models.SubscriptionEventPayload, error) {
	var payload models.SubscriptionEventPayload

	if len(bytes.TrimSpace(body)) == 0 {
		return payload, models.NewValidationError("request body is empty")
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return payload, models.NewValidationError("failed to decode request: " + err.Error())
	}
	if err := validate.Struct(d.validate, payload); err != nil {
		return payload, err
	}
	return payload, nil
}
