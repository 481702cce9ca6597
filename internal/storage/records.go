package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/subscription-webhook/internal/models"
)

// Subscriptions — типизированный доступ к таблице подписок.
type Subscriptions struct {
	table Table
}

func NewSubscriptions(table Table) *Subscriptions {
	return &Subscriptions{table: table}
}

// FindByUser возвращает подписку пользователя.
// У пользователя не больше одной подписки; если записей несколько, берётся первая.
func (s *Subscriptions) FindByUser(ctx context.Context, userID string) (*models.SubscriptionRecord, error) {
	const op = "storage.Subscriptions.FindByUser"

	var records []models.SubscriptionRecord
	if err := s.table.Query(ctx, models.SubscriptionPK(userID), &records); err != nil {
		return nil, &models.StoreError{Op: op, Err: err}
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return &records[0], nil
}

// Save записывает подписку целиком.
func (s *Subscriptions) Save(ctx context.Context, rec models.SubscriptionRecord) error {
	const op = "storage.Subscriptions.Save"

	if err := s.table.Put(ctx, rec); err != nil {
		return &models.StoreError{Op: op, Err: err}
	}
	return nil
}

// Patch частично обновляет подписку по ключу.
func (s *Subscriptions) Patch(ctx context.Context, pk, sk string, attrs map[string]any) error {
	const op = "storage.Subscriptions.Patch"

	if err := s.table.Update(ctx, Key{PK: pk, SK: sk}, attrs); err != nil {
		return &models.StoreError{Op: op, Err: err}
	}
	return nil
}

// Plans — типизированный доступ к таблице планов.
type Plans struct {
	table Table
}

func NewPlans(table Table) *Plans {
	return &Plans{table: table}
}

// FindBySku возвращает план по SKU (partition key).
func (p *Plans) FindBySku(ctx context.Context, sku string) (*models.PlanRecord, error) {
	const op = "storage.Plans.FindBySku"

	var records []models.PlanRecord
	if err := p.table.Query(ctx, sku, &records); err != nil {
		return nil, &models.StoreError{Op: op, Err: err}
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return &records[0], nil
}

// Get читает план по полному ключу (SKU и способ оплаты).
func (p *Plans) Get(ctx context.Context, sku, paymentMethod string) (*models.PlanRecord, error) {
	const op = "storage.Plans.Get"

	var rec models.PlanRecord
	err := p.table.Get(ctx, Key{PK: sku, SK: paymentMethod}, &rec)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, &models.StoreError{Op: op, Err: err}
	}
	return &rec, nil
}

// Save записывает план.
func (p *Plans) Save(ctx context.Context, rec models.PlanRecord) error {
	const op = "storage.Plans.Save"

	if err := p.table.Put(ctx, rec); err != nil {
		return &models.StoreError{Op: op, Err: err}
	}
	return nil
}
