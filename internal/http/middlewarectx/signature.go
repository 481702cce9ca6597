package middlewarectx

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-webhook/internal/http/handlers/event"
	"github.com/magabrotheeeer/subscription-webhook/internal/http/response"
	"github.com/magabrotheeeer/subscription-webhook/internal/lib/sl"
)

// Sign возвращает подпись тела: base64(HMAC-SHA256(secret, body)).
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature сравнивает подпись за постоянное время.
func VerifySignature(secret string, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}

// SignatureMiddleware проверяет подпись тела в заголовке header.
// С пустым secret проверка отключена. Тело восстанавливается для следующего обработчика.
func SignatureMiddleware(log *slog.Logger, secret, header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.SignatureMiddleware"
			log := log.With(
				sl.Op(op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, event.MaxBodyBytes))
			if err != nil {
				log.Error("failed to read webhook body", sl.Err(err))
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error("failed to read request body"))
				return
			}
			_ = r.Body.Close()

			signature := r.Header.Get(header)
			if signature == "" || !VerifySignature(secret, body, signature) {
				log.Error("invalid or missing webhook signature")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid webhook signature"))
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}
