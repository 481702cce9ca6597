package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-webhook/internal/models"
	"github.com/magabrotheeeer/subscription-webhook/internal/storage"
	"github.com/magabrotheeeer/subscription-webhook/internal/storage/memory"
)

type failingTable struct{ err error }

func (f failingTable) Put(context.Context, ...any) error                          { return f.err }
func (f failingTable) Get(context.Context, storage.Key, any) error                { return f.err }
func (f failingTable) Query(context.Context, string, any) error                   { return f.err }
func (f failingTable) Update(context.Context, storage.Key, map[string]any) error { return f.err }

func TestSubscriptions_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	subs := storage.NewSubscriptions(memory.New("subs"))

	rec := models.SubscriptionRecord{
		PK:           models.SubscriptionPK("123"),
		SK:           models.SubscriptionSK("456"),
		Type:         models.RecordTypeSubscription,
		PlanSku:      "PREMIUM_MONTHLY",
		StartDate:    "2024-03-20T10:00:00Z",
		ExpiresAt:    "2024-04-20T10:00:00Z",
		LastModified: "2024-03-20T10:00:00Z",
		Status:       models.MarkerActive,
	}
	require.NoError(t, subs.Save(ctx, rec))

	got, err := subs.FindByUser(ctx, "123")
	require.NoError(t, err)
	assert.Equal(t, rec, *got)
	assert.Equal(t, "123", got.UserID())
	assert.Equal(t, "456", got.SubscriptionID())

	require.NoError(t, subs.Patch(ctx, rec.PK, rec.SK, map[string]any{models.AttrExpiresAt: "2024-05-20T10:00:00Z"}))
	got, err = subs.FindByUser(ctx, "123")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-20T10:00:00Z", got.ExpiresAt)
}

func TestSubscriptions_FindMissing(t *testing.T) {
	subs := storage.NewSubscriptions(memory.New("subs"))

	_, err := subs.FindByUser(context.Background(), "nobody")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	var storeErr *models.StoreError
	assert.False(t, errors.As(err, &storeErr))
}

func TestSubscriptions_StoreFailure(t *testing.T) {
	boom := errors.New("throttled")
	subs := storage.NewSubscriptions(failingTable{err: boom})

	_, err := subs.FindByUser(context.Background(), "123")
	var storeErr *models.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "storage.Subscriptions.FindByUser", storeErr.Op)
	assert.True(t, errors.Is(err, boom))

	err = subs.Save(context.Background(), models.SubscriptionRecord{})
	assert.True(t, errors.As(err, &storeErr))
}

func TestPlans_SaveFindGet(t *testing.T) {
	ctx := context.Background()
	plans := storage.NewPlans(memory.New("plans"))

	rec := models.PlanRecord{
		PK:           "PREMIUM_MONTHLY",
		SK:           "CREDIT_CARD",
		Type:         models.RecordTypePlan,
		Name:         "Premium Monthly",
		Price:        9.99,
		Currency:     "USD",
		BillingCycle: models.BillingMonthly,
		Features:     []string{"a", "b"},
		Status:       models.PlanActive,
	}
	require.NoError(t, plans.Save(ctx, rec))

	got, err := plans.FindBySku(ctx, "PREMIUM_MONTHLY")
	require.NoError(t, err)
	assert.Equal(t, rec, *got)

	got, err = plans.Get(ctx, "PREMIUM_MONTHLY", "CREDIT_CARD")
	require.NoError(t, err)
	assert.Equal(t, rec, *got)

	_, err = plans.Get(ctx, "PREMIUM_MONTHLY", "PAYPAL")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	_, err = plans.FindBySku(ctx, "BASIC")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestMerge(t *testing.T) {
	item := storage.Item{"pk": "a", "sk": "b", "x": 1, "y": 2}

	require.NoError(t, storage.Merge(item, map[string]any{"x": 3, "y": nil}))
	assert.Equal(t, storage.Item{"pk": "a", "sk": "b", "x": 3}, item)

	assert.Error(t, storage.Merge(item, map[string]any{"pk": "c"}))
}
