package event

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/subscription-webhook/internal/models"
	"github.com/magabrotheeeer/subscription-webhook/internal/services/dispatcher"
)

// MockDispatcher реализует интерфейс event.Dispatcher
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, ev models.Event) (dispatcher.Result, error) {
	args := m.Called(ctx, ev)
	return args.Get(0).(dispatcher.Result), args.Error(1)
}

type recorder struct {
	codes []int
}

func (r *recorder) ObserveRequest(_ string, code int, _ time.Duration) {
	r.codes = append(r.codes, code)
}

func TestEventHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	view := &models.SubscriptionView{UserID: "123", SubscriptionID: "456", Status: models.StatusActive}

	tests := []struct {
		name           string
		method         string
		url            string
		userID         string
		body           string
		setupMock      func(*MockDispatcher)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "успешное чтение подписки",
			method: http.MethodGet,
			url:    "/api/v1/subscriptions/123",
			userID: "123",
			setupMock: func(m *MockDispatcher) {
				m.On("Dispatch", mock.Anything, models.Event{
					HTTPMethod:     http.MethodGet,
					Path:           "/api/v1/subscriptions/123",
					PathParameters: map[string]string{"userId": "123"},
				}).Return(dispatcher.Result{Message: dispatcher.MessageRetrieved, Data: view}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"subscriptionId":"456"`,
		},
		{
			name:   "успешная обработка вебхука",
			method: http.MethodPost,
			url:    "/api/v1/webhooks/subscriptions",
			body:   `{"eventId":"evt_1"}`,
			setupMock: func(m *MockDispatcher) {
				m.On("Dispatch", mock.Anything, models.Event{
					HTTPMethod: http.MethodPost,
					Path:       "/api/v1/webhooks/subscriptions",
					Body:       []byte(`{"eventId":"evt_1"}`),
				}).Return(dispatcher.Result{Message: dispatcher.MessageProcessed}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"message":"Subscription and Plan processed successfully"}`,
		},
		{
			name:   "ошибка валидации",
			method: http.MethodPost,
			url:    "/api/v1/webhooks/subscriptions",
			body:   `{}`,
			setupMock: func(m *MockDispatcher) {
				m.On("Dispatch", mock.Anything, mock.Anything).
					Return(dispatcher.Result{}, models.NewValidationError("field eventId is a required field")).Once()
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"field eventId is a required field"}`,
		},
		{
			name:   "подписка не найдена",
			method: http.MethodGet,
			url:    "/api/v1/subscriptions/404",
			userID: "404",
			setupMock: func(m *MockDispatcher) {
				m.On("Dispatch", mock.Anything, mock.Anything).
					Return(dispatcher.Result{}, models.ErrSubscriptionNotFound).Once()
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"error":"subscription not found"}`,
		},
		{
			name:   "неподдерживаемый метод",
			method: http.MethodPut,
			url:    "/api/v1/webhooks/subscriptions",
			setupMock: func(m *MockDispatcher) {
				m.On("Dispatch", mock.Anything, mock.Anything).
					Return(dispatcher.Result{}, models.ErrMethodNotAllowed).Once()
			},
			expectedStatus: http.StatusMethodNotAllowed,
			expectedBody:   `{"error":"method not allowed"}`,
		},
		{
			name:   "сбой хранилища",
			method: http.MethodPost,
			url:    "/api/v1/webhooks/subscriptions",
			body:   `{}`,
			setupMock: func(m *MockDispatcher) {
				m.On("Dispatch", mock.Anything, mock.Anything).
					Return(dispatcher.Result{}, &models.StoreError{Op: "save", Err: errors.New("timeout")}).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"error":"internal server error"}`,
		},
		{
			name:           "слишком большое тело",
			method:         http.MethodPost,
			url:            "/api/v1/webhooks/subscriptions",
			body:           strings.Repeat("a", MaxBodyBytes+1),
			setupMock:      func(_ *MockDispatcher) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"failed to read request body"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockDispatcher := new(MockDispatcher)
			tt.setupMock(mockDispatcher)
			rec := &recorder{}

			handler := New(logger, mockDispatcher, rec)

			var body io.Reader = http.NoBody
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(tt.method, tt.url, body)
			// Устанавливаем URL params с помощью роутера chi
			if tt.userID != "" {
				rctx := chi.NewRouteContext()
				rctx.URLParams.Add("userId", tt.userID)
				req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
			}
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			if strings.HasPrefix(tt.expectedBody, "{") {
				assert.JSONEq(t, tt.expectedBody, rr.Body.String())
			} else {
				assert.Contains(t, rr.Body.String(), tt.expectedBody)
			}
			assert.Equal(t, []int{tt.expectedStatus}, rec.codes)
			mockDispatcher.AssertExpectations(t)
		})
	}
}
