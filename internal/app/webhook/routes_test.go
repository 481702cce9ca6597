package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-webhook/internal/config"
	"github.com/magabrotheeeer/subscription-webhook/internal/http/middlewarectx"
)

const createdEvent = `{
	"eventId": "evt_123456789",
	"eventType": "subscription.created",
	"timestamp": "2024-03-20T10:00:00Z",
	"provider": "STRIPE",
	"subscriptionId": "sub_456789",
	"paymentId": "pm_123456",
	"userId": "123",
	"customerId": "cus_789012",
	"expiresAt": "2024-04-20T10:00:00Z",
	"metadata": {"planSku": "PREMIUM_MONTHLY", "autoRenew": true, "paymentMethod": "CREDIT_CARD"}
}`

func testConfig() *config.Config {
	return &config.Config{
		Env: config.EnvDevelopment,
		Storage: config.Storage{
			Backend:            config.BackendMemory,
			SubscriptionsTable: "FenderSubscriptions",
			PlansTable:         "FenderPlans",
		},
		Redis: config.RedisConnection{ViewTTL: time.Hour},
		HTTPServer: config.HTTPServer{
			RateLimit: 100,
			RateBurst: 100,
		},
		Webhook: config.Webhook{SignatureHeader: "X-Api-Signature"},
		Plans:   config.PlanDefaults{Currency: "USD", MonthlyPrice: 9.99, YearlyPrice: 99.99},
	}
}

func newRouter(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	deps, err := Build(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })

	r := chi.NewRouter()
	RegisterRoutes(r, logger, cfg, deps)
	return r
}

func do(t *testing.T, h http.Handler, method, url, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRoutes_WebhookThenRead(t *testing.T) {
	r := newRouter(t, testConfig())

	rr := do(t, r, http.MethodPost, "/api/v1/webhooks/subscriptions", createdEvent, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"message":"Subscription and Plan processed successfully"}`, rr.Body.String())

	rr = do(t, r, http.MethodGet, "/api/v1/subscriptions/123", "", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body struct {
		Message string `json:"message"`
		Data    struct {
			UserID         string `json:"userId"`
			SubscriptionID string `json:"subscriptionId"`
			Status         string `json:"status"`
			Plan           struct {
				Sku          string `json:"sku"`
				BillingCycle string `json:"billingCycle"`
			} `json:"plan"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "123", body.Data.UserID)
	assert.Equal(t, "sub_456789", body.Data.SubscriptionID)
	assert.Equal(t, "active", body.Data.Status)
	assert.Equal(t, "PREMIUM_MONTHLY", body.Data.Plan.Sku)
	assert.Equal(t, "monthly", body.Data.Plan.BillingCycle)
	assert.NotContains(t, rr.Body.String(), "cancelledAt")
}

func TestRoutes_Errors(t *testing.T) {
	r := newRouter(t, testConfig())

	tests := []struct {
		name     string
		method   string
		url      string
		body     string
		wantCode int
	}{
		{"unknown user", http.MethodGet, "/api/v1/subscriptions/999", "", http.StatusNotFound},
		{"put webhook", http.MethodPut, "/api/v1/webhooks/subscriptions", createdEvent, http.StatusMethodNotAllowed},
		{"delete subscription", http.MethodDelete, "/api/v1/subscriptions/123", "", http.StatusMethodNotAllowed},
		{"invalid payload", http.MethodPost, "/api/v1/webhooks/subscriptions", `{"eventId":"x"}`, http.StatusBadRequest},
		{"malformed json", http.MethodPost, "/api/v1/webhooks/subscriptions", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, r, tt.method, tt.url, tt.body, nil)
			assert.Equal(t, tt.wantCode, rr.Code, rr.Body.String())

			var body map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestRoutes_Signature(t *testing.T) {
	cfg := testConfig()
	cfg.Webhook.Secret = "whsec_test"
	r := newRouter(t, cfg)

	rr := do(t, r, http.MethodPost, "/api/v1/webhooks/subscriptions", createdEvent, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, r, http.MethodPost, "/api/v1/webhooks/subscriptions", createdEvent, map[string]string{
		"X-Api-Signature": middlewarectx.Sign("whsec_test", []byte(createdEvent)),
	})
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestRoutes_ViewCacheIsInvalidated(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := testConfig()
	cfg.Redis.Address = mr.Addr()
	r := newRouter(t, cfg)

	require.Equal(t, http.StatusOK, do(t, r, http.MethodPost, "/api/v1/webhooks/subscriptions", createdEvent, nil).Code)
	require.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/api/v1/subscriptions/123", "", nil).Code)
	assert.True(t, mr.Exists("subscription_view:123"))

	cancel := strings.Replace(createdEvent, "subscription.created", "subscription.cancelled", 1)
	cancel = strings.Replace(cancel, `"timestamp": "2024-03-20T10:00:00Z"`, `"timestamp": "2024-05-20T10:00:00Z"`, 1)
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPost, "/api/v1/webhooks/subscriptions", cancel, nil).Code)
	assert.False(t, mr.Exists("subscription_view:123"))

	rr := do(t, r, http.MethodGet, "/api/v1/subscriptions/123", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"cancelled"`)
	assert.Contains(t, rr.Body.String(), `"cancelledAt":"2024-05-20T10:00:00Z"`)
}

func TestRoutes_Metrics(t *testing.T) {
	r := newRouter(t, testConfig())
	do(t, r, http.MethodPost, "/api/v1/webhooks/subscriptions", createdEvent, nil)

	rr := do(t, r, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `subscription_webhook_reconcile_outcomes_total{outcome="created"} 1`)
	assert.Contains(t, rr.Body.String(), `subscription_webhook_plans_created_total 1`)
}

func TestRoutes_Docs(t *testing.T) {
	h := newRouter(t, testConfig())

	rr := do(t, h, http.MethodGet, "/docs/index.html", "", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "swagger")
}

func TestBuild_UnknownBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Backend = "cassandra"

	_, err := Build(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
