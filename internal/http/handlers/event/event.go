// Package event реализует HTTP-обработчик, который переводит запрос в
// models.Event и передаёт его диспетчеру.
//
// GET /subscriptions/{userId} читает подписку, POST /webhooks/subscriptions
// применяет событие провайдера. Ошибки диспетчера переводятся в статусы
// через пакет response.
package event

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-webhook/internal/http/response"
	"github.com/magabrotheeeer/subscription-webhook/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-webhook/internal/models"
	"github.com/magabrotheeeer/subscription-webhook/internal/services/dispatcher"
)

// MaxBodyBytes — предельный размер тела вебхука.
const MaxBodyBytes = 1 << 20

// Dispatcher описывает интерфейс обработки события.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev models.Event) (dispatcher.Result, error)
}

// Recorder учитывает обработанные запросы.
type Recorder interface {
	ObserveRequest(method string, code int, elapsed time.Duration)
}

// Handler обрабатывает запросы чтения подписки и вебхуки.
type Handler struct {
	log        *slog.Logger
	dispatcher Dispatcher
	recorder   Recorder
}

// New создает новый Handler.
func New(log *slog.Logger, dispatcher Dispatcher, recorder Recorder) *Handler {
	return &Handler{
		log:        log,
		dispatcher: dispatcher,
		recorder:   recorder,
	}
}

// ServeHTTP godoc
// @Summary Получить подписку или применить событие провайдера
// @Description GET возвращает подписку пользователя вместе с планом и вычисленным статусом.
// @Description POST применяет событие жизненного цикла подписки и при необходимости создаёт план.
// @Tags Subscriptions
// @Accept  json
// @Produce  json
// @Param userId path string false "ID пользователя (только GET)"
// @Param X-Api-Signature header string false "Подпись тела, если настроен секрет (только POST)"
// @Param request body models.SubscriptionEventPayload false "Событие провайдера (только POST)"
// @Success 200 {object} response.Response "Запрос обработан"
// @Failure 400 {object} response.Response "Некорректный запрос или ошибка валидации"
// @Failure 401 {object} response.Response "Неверная подпись вебхука"
// @Failure 404 {object} response.Response "Подписка или план не найдены"
// @Failure 405 {object} response.Response "Метод не поддерживается"
// @Failure 422 {object} response.Response "План неактивен"
// @Failure 500 {object} response.Response "Внутренняя ошибка сервера"
// @Router /subscriptions/{userId} [get]
// @Router /webhooks/subscriptions [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.event.ServeHTTP"
	started := time.Now()

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("method", r.Method),
	)

	ev, err := toEvent(r)
	if err != nil {
		log.Error("failed to read request body", sl.Err(err))
		h.write(w, r, started, http.StatusBadRequest, response.Error("failed to read request body"))
		return
	}

	res, err := h.dispatcher.Dispatch(r.Context(), ev)
	if err != nil {
		code, body := response.FromError(err)
		if code >= http.StatusInternalServerError {
			log.Error("failed to process request", sl.Err(err))
		} else {
			log.Info("request rejected", slog.Int("code", code), sl.Err(err))
		}
		h.write(w, r, started, code, body)
		return
	}

	log.Info("request processed", slog.String("message", res.Message))
	h.write(w, r, started, http.StatusOK, response.Success(res.Message, res.Data))
}

func (h *Handler) write(w http.ResponseWriter, r *http.Request, started time.Time, code int, body response.Response) {
	h.recorder.ObserveRequest(r.Method, code, time.Since(started))
	render.Status(r, code)
	render.JSON(w, r, body)
}

func toEvent(r *http.Request) (models.Event, error) {
	ev := models.Event{
		HTTPMethod: r.Method,
		Path:       r.URL.Path,
	}
	if userID := chi.URLParam(r, models.PathParamUserID); userID != "" {
		ev.PathParameters = map[string]string{models.PathParamUserID: userID}
	}
	if r.Body == nil || r.Body == http.NoBody {
		return ev, nil
	}
	defer func() { _ = r.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		return ev, err
	}
	if len(body) > MaxBodyBytes {
		return ev, errors.New("request body too large")
	}
	ev.Body = body
	return ev, nil
}
