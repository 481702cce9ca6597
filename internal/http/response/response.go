// Package response формирует унифицированные JSON-ответы: успех {message, data}
// и ошибка {error}, а также переводит ошибки сервиса в HTTP-статусы.
package response

import (
	"errors"
	"net/http"

	"github.com/magabrotheeeer/subscription-webhook/internal/models"
)

// Response описывает стандартную структуру JSON-ответа сервера.
type Response struct {
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// MsgInternal — текст ответа на непредвиденные сбои; подробности остаются в логах.
const MsgInternal = "internal server error"

// Success возвращает успешный Response.
func Success(message string, data any) Response {
	return Response{
		Message: message,
		Data:    data,
	}
}

// Error возвращает Response с ошибкой и переданным сообщением.
func Error(msg string) Response {
	return Response{
		Error: msg,
	}
}

// FromError подбирает HTTP-статус и тело ответа для ошибки обработки.
func FromError(err error) (int, Response) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, Error(verr.Error())
	case errors.Is(err, models.ErrSubscriptionNotFound):
		return http.StatusNotFound, Error(models.ErrSubscriptionNotFound.Error())
	case errors.Is(err, models.ErrPlanNotFound):
		return http.StatusNotFound, Error(models.ErrPlanNotFound.Error())
	case errors.Is(err, models.ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, Error(models.ErrMethodNotAllowed.Error())
	case errors.Is(err, models.ErrPlanUnavailable):
		return http.StatusUnprocessableEntity, Error(models.ErrPlanUnavailable.Error())
	default:
		return http.StatusInternalServerError, Error(MsgInternal)
	}
}
