package dynamo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/subscription-webhook/internal/config"
	"github.com/magabrotheeeer/subscription-webhook/internal/models"
	"github.com/magabrotheeeer/subscription-webhook/internal/storage"
)

// setupDynamoLocal поднимает amazon/dynamodb-local и возвращает его endpoint.
func setupDynamoLocal(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "amazon/dynamodb-local:latest",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"-jar", "DynamoDBLocal.jar", "-inMemory", "-sharedDb"},
			WaitingFor:   wait.ForListeningPort("8000/tcp").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate dynamodb container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "8000/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("http://%s:%s", host, port.Port())
}

func TestIntegration_DynamoTable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping dynamodb-local integration test in short mode")
	}
	ctx := context.Background()
	endpoint := setupDynamoLocal(ctx, t)

	client, err := NewClient(ctx, config.AWS{
		Region:          "us-east-1",
		AccessKeyID:     "local",
		SecretAccessKey: "local",
		Endpoint:        endpoint,
	}, true)
	require.NoError(t, err)

	require.NoError(t, EnsureTables(ctx, client, time.Minute, "FenderSubscriptions"))
	// повторный вызов не пересоздаёт таблицу
	require.NoError(t, EnsureTables(ctx, client, time.Minute, "FenderSubscriptions"))

	tbl := New(client, "FenderSubscriptions")
	rec := models.SubscriptionRecord{
		PK:           models.SubscriptionPK("123"),
		SK:           models.SubscriptionSK("456"),
		Type:         models.RecordTypeSubscription,
		PlanSku:      "PREMIUM_MONTHLY",
		StartDate:    "2024-03-20T10:00:00Z",
		ExpiresAt:    "2024-04-20T10:00:00Z",
		CancelledAt:  "2024-03-25T10:00:00Z",
		LastModified: "2024-03-20T10:00:00Z",
		Status:       models.MarkerCancelled,
		Attributes: models.SubscriptionAttributes{
			Provider:      "STRIPE",
			PaymentID:     "pm_123456",
			CustomerID:    "cus_789012",
			AutoRenew:     true,
			PaymentMethod: "CREDIT_CARD",
		},
	}
	require.NoError(t, tbl.Put(ctx, rec))

	var list []models.SubscriptionRecord
	require.NoError(t, tbl.Query(ctx, rec.PK, &list))
	require.Len(t, list, 1)
	assert.Equal(t, rec, list[0])

	key := storage.Key{PK: rec.PK, SK: rec.SK}
	require.NoError(t, tbl.Update(ctx, key, map[string]any{
		models.AttrExpiresAt:   "2024-05-20T10:00:00Z",
		models.AttrCancelledAt: nil,
		models.AttrStatus:      models.MarkerActive,
	}))

	var got models.SubscriptionRecord
	require.NoError(t, tbl.Get(ctx, key, &got))
	assert.Equal(t, "2024-05-20T10:00:00Z", got.ExpiresAt)
	assert.Empty(t, got.CancelledAt)
	assert.Equal(t, models.MarkerActive, got.Status)
	assert.Equal(t, rec.StartDate, got.StartDate)

	err = tbl.Update(ctx, storage.Key{PK: "user:missing", SK: "sub:missing"}, map[string]any{"status": "active"})
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}
