// Package lambda адаптирует события API Gateway к диспетчеру и обратно.
package lambda

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/magabrotheeeer/subscription-webhook/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-webhook/internal/http/response"
	"github.com/magabrotheeeer/subscription-webhook/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-webhook/internal/models"
	"github.com/magabrotheeeer/subscription-webhook/internal/services/dispatcher"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, ev models.Event) (dispatcher.Result, error)
}

type Recorder interface {
	ObserveRequest(method string, code int, elapsed time.Duration)
}

// Handler обрабатывает proxy-события API Gateway.
type Handler struct {
	log             *slog.Logger
	dispatcher      Dispatcher
	recorder        Recorder
	secret          string
	signatureHeader string
}

// New создаёт Handler. С непустым secret POST-запросы должны нести подпись в signatureHeader.
func New(log *slog.Logger, dispatcher Dispatcher, recorder Recorder, secret, signatureHeader string) *Handler {
	return &Handler{
		log:             log,
		dispatcher:      dispatcher,
		recorder:        recorder,
		secret:          secret,
		signatureHeader: signatureHeader,
	}
}

// Handle — функция для lambda.Start.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	const op = "lambda.Handle"
	started := time.Now()
	log := h.log.With(
		sl.Op(op),
		slog.String("request_id", req.RequestContext.RequestID),
		slog.String("method", req.HTTPMethod),
	)

	ev, err := toEvent(req)
	if err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		return h.respond(req.HTTPMethod, started, http.StatusBadRequest, response.Error("failed to read request body"))
	}

	if h.secret != "" && req.HTTPMethod == http.MethodPost {
		if !middlewarectx.VerifySignature(h.secret, ev.Body, header(req.Headers, h.signatureHeader)) {
			log.Error("invalid or missing webhook signature")
			return h.respond(req.HTTPMethod, started, http.StatusUnauthorized, response.Error("invalid webhook signature"))
		}
	}

	res, err := h.dispatcher.Dispatch(ctx, ev)
	if err != nil {
		code, body := response.FromError(err)
		if code >= http.StatusInternalServerError {
			log.Error("failed to process request", sl.Err(err))
		} else {
			log.Info("request rejected", slog.Int("code", code), sl.Err(err))
		}
		return h.respond(req.HTTPMethod, started, code, body)
	}

	log.Info("request processed", slog.String("message", res.Message))
	return h.respond(req.HTTPMethod, started, http.StatusOK, response.Success(res.Message, res.Data))
}

func (h *Handler) respond(method string, started time.Time, code int, body response.Response) (events.APIGatewayProxyResponse, error) {
	h.recorder.ObserveRequest(method, code, time.Since(started))

	data, err := json.Marshal(body)
	if err != nil {
		code = http.StatusInternalServerError
		data = []byte(`{"error":"` + response.MsgInternal + `"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: code,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(data),
	}, nil
}

func toEvent(req events.APIGatewayProxyRequest) (models.Event, error) {
	ev := models.Event{
		HTTPMethod:     req.HTTPMethod,
		Path:           req.Path,
		PathParameters: req.PathParameters,
	}
	if req.Body == "" {
		return ev, nil
	}
	if req.IsBase64Encoded {
		body, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return ev, err
		}
		ev.Body = body
		return ev, nil
	}
	ev.Body = []byte(req.Body)
	return ev, nil
}

// Заголовки API Gateway приходят в произвольном регистре.
func header(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	canonical := http.CanonicalHeaderKey(name)
	for k, v := range headers {
		if http.CanonicalHeaderKey(k) == canonical {
			return v
		}
	}
	return ""
}
