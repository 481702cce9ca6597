// Package plan гарантирует наличие записи плана для SKU из события.
package plan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/magabrotheeeer/subscription-webhook/internal/config"
	"github.com/magabrotheeeer/subscription-webhook/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-webhook/internal/models"
	"github.com/magabrotheeeer/subscription-webhook/internal/storage"
)

type PlanRepository interface {
	FindBySku(ctx context.Context, sku string) (*models.PlanRecord, error)
	Save(ctx context.Context, rec models.PlanRecord) error
}

// DefaultFeatures используется, когда в конфиге не задан список возможностей.
var DefaultFeatures = []string{"standard_access"}

type Service struct {
	repo     PlanRepository
	catalog  map[string]config.PlanDefinition
	defaults config.PlanDefaults
	log      *slog.Logger
}

func NewService(repo PlanRepository, defaults config.PlanDefaults, catalog []config.PlanDefinition, log *slog.Logger) *Service {
	bySku := make(map[string]config.PlanDefinition, len(catalog))
	for _, def := range catalog {
		bySku[def.Sku] = def
	}
	return &Service{
		repo:     repo,
		catalog:  bySku,
		defaults: defaults,
		log:      log,
	}
}

// EnsurePlan создаёт план для SKU события, если его ещё нет.
// Существующий план не меняется. created == true, если была запись.
func (s *Service) EnsurePlan(ctx context.Context, payload models.SubscriptionEventPayload) (bool, error) {
	const op = "services.plan.EnsurePlan"
	log := s.log.With(sl.Op(op), slog.String("plan_sku", payload.Metadata.PlanSku))

	_, err := s.repo.FindBySku(ctx, payload.Metadata.PlanSku)
	if err == nil {
		log.Debug("plan already exists")
		return false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	rec := s.Build(payload.Metadata.PlanSku, payload.Metadata.PaymentMethod)
	if err := s.repo.Save(ctx, rec); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("created plan",
		slog.String("payment_method", rec.SK),
		slog.String("billing_cycle", string(rec.BillingCycle)),
	)
	return true, nil
}

// Build собирает запись плана из каталога или из значений по умолчанию.
func (s *Service) Build(sku, paymentMethod string) models.PlanRecord {
	rec := models.PlanRecord{
		PK:     sku,
		SK:     paymentMethod,
		Type:   models.RecordTypePlan,
		Name:   NameFromSku(sku),
		Status: models.PlanActive,
	}

	priced := false
	if def, ok := s.catalog[sku]; ok {
		if def.Name != "" {
			rec.Name = def.Name
		}
		if def.Price != nil {
			rec.Price = *def.Price
			priced = true
		}
		rec.Currency = def.Currency
		rec.BillingCycle = models.BillingCycle(def.BillingCycle)
		rec.Features = append([]string(nil), def.Features...)
		if def.Inactive {
			rec.Status = models.PlanInactive
		}
	}

	if rec.BillingCycle == "" {
		rec.BillingCycle = CycleFromSku(sku)
	}
	if rec.Currency == "" {
		rec.Currency = s.defaults.Currency
	}
	if !priced {
		rec.Price = s.defaults.MonthlyPrice
		if rec.BillingCycle == models.BillingYearly {
			rec.Price = s.defaults.YearlyPrice
		}
	}
	if len(rec.Features) == 0 {
		rec.Features = append([]string(nil), s.defaults.Features...)
	}
	if len(rec.Features) == 0 {
		rec.Features = append([]string(nil), DefaultFeatures...)
	}
	return rec
}

// NameFromSku: "PREMIUM_MONTHLY" -> "Premium Monthly".
func NameFromSku(sku string) string {
	words := strings.Fields(strings.ReplaceAll(sku, "_", " "))
	for i, w := range words {
		w = strings.ToLower(w)
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// CycleFromSku выбирает годовой цикл для SKU с YEAR или ANNUAL, иначе месячный.
func CycleFromSku(sku string) models.BillingCycle {
	upper := strings.ToUpper(sku)
	if strings.Contains(upper, "YEAR") || strings.Contains(upper, "ANNUAL") {
		return models.BillingYearly
	}
	return models.BillingMonthly
}
