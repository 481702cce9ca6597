package lambda

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-webhook/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-webhook/internal/models"
	"github.com/magabrotheeeer/subscription-webhook/internal/services/dispatcher"
)

type MockDispatcher struct{ mock.Mock }

func (m *MockDispatcher) Dispatch(ctx context.Context, ev models.Event) (dispatcher.Result, error) {
	args := m.Called(ctx, ev)
	return args.Get(0).(dispatcher.Result), args.Error(1)
}

type noopRecorder struct{}

func (noopRecorder) ObserveRequest(string, int, time.Duration) {}

func NewNoopLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestHandler_Handle(t *testing.T) {
	const body = `{"eventId":"evt_123456789"}`

	tests := []struct {
		name       string
		secret     string
		req        events.APIGatewayProxyRequest
		setupMock  func(m *MockDispatcher)
		wantStatus int
		wantBody   string
	}{
		{
			name: "get view",
			req: events.APIGatewayProxyRequest{
				HTTPMethod:     http.MethodGet,
				Path:           "/subscriptions/123",
				PathParameters: map[string]string{"userId": "123"},
			},
			setupMock: func(m *MockDispatcher) {
				m.On("Dispatch", mock.Anything, models.Event{
					HTTPMethod:     http.MethodGet,
					Path:           "/subscriptions/123",
					PathParameters: map[string]string{"userId": "123"},
				}).Return(dispatcher.Result{
					Message: dispatcher.MessageRetrieved,
					Data:    &models.SubscriptionView{UserID: "123", Status: models.StatusPending},
				}, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody: `{"message":"Subscription retrieved successfully","data":{
				"userId":"123","subscriptionId":"","startDate":"","expiresAt":"","status":"pending",
				"plan":{"sku":"","name":"","price":0,"currency":"","billingCycle":"","features":null},
				"attributes":{"autoRenew":false,"paymentMethod":""}}}`,
		},
		{
			name: "base64 webhook body",
			req: events.APIGatewayProxyRequest{
				HTTPMethod:      http.MethodPost,
				Path:            "/webhooks/subscriptions",
				Body:            base64.StdEncoding.EncodeToString([]byte(body)),
				IsBase64Encoded: true,
			},
			setupMock: func(m *MockDispatcher) {
				m.On("Dispatch", mock.Anything, models.Event{
					HTTPMethod: http.MethodPost,
					Path:       "/webhooks/subscriptions",
					Body:       []byte(body),
				}).Return(dispatcher.Result{Message: dispatcher.MessageProcessed}, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   `{"message":"Subscription and Plan processed successfully"}`,
		},
		{
			name:       "broken base64",
			req:        events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, Body: "%%%", IsBase64Encoded: true},
			setupMock:  func(_ *MockDispatcher) {},
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"failed to read request body"}`,
		},
		{
			name:   "signed webhook",
			secret: "whsec",
			req: events.APIGatewayProxyRequest{
				HTTPMethod: http.MethodPost,
				Body:       body,
				Headers:    map[string]string{"x-api-signature": middlewarectx.Sign("whsec", []byte(body))},
			},
			setupMock: func(m *MockDispatcher) {
				m.On("Dispatch", mock.Anything, mock.Anything).
					Return(dispatcher.Result{Message: dispatcher.MessageProcessed}, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   `{"message":"Subscription and Plan processed successfully"}`,
		},
		{
			name:       "unsigned webhook",
			secret:     "whsec",
			req:        events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, Body: body},
			setupMock:  func(_ *MockDispatcher) {},
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"error":"invalid webhook signature"}`,
		},
		{
			name: "method not allowed",
			req:  events.APIGatewayProxyRequest{HTTPMethod: http.MethodPut},
			setupMock: func(m *MockDispatcher) {
				m.On("Dispatch", mock.Anything, mock.Anything).
					Return(dispatcher.Result{}, models.ErrMethodNotAllowed).Once()
			},
			wantStatus: http.StatusMethodNotAllowed,
			wantBody:   `{"error":"method not allowed"}`,
		},
		{
			name: "store failure",
			req:  events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, Body: body},
			setupMock: func(m *MockDispatcher) {
				m.On("Dispatch", mock.Anything, mock.Anything).
					Return(dispatcher.Result{}, &models.StoreError{Op: "op", Err: errors.New("throttled")}).Once()
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"internal server error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockDispatcher)
			tt.setupMock(m)
			h := New(NewNoopLogger(), m, noopRecorder{}, tt.secret, "X-Api-Signature")

			resp, err := h.Handle(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Headers["Content-Type"])
			assert.JSONEq(t, tt.wantBody, resp.Body)
			m.AssertExpectations(t)
		})
	}
}
