// Package webhook принимает события платёжного провайдера. Подпись
// проверяется до любой обработки: событие с неверной подписью получает 400
// и не доходит до сервиса.
package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/journal-accounts/internal/lib/sl"
	"github.com/magabrotheeeer/journal-accounts/internal/models"
)

// SignatureHeader — заголовок с подписью события.
const SignatureHeader = "Stripe-Signature"

// DefaultMaxBodyBytes ограничивает размер тела события.
const DefaultMaxBodyBytes int64 = 65536

// EventParser проверяет подпись и разбирает событие.
type EventParser interface {
	ParseEvent(payload []byte, signature string) (*models.BillingEvent, error)
}

// Service применяет событие к записи пользователя.
type Service interface {
	HandleWebhookEvent(ctx context.Context, ev *models.BillingEvent) error
}

// Handler обрабатывает POST /api/v1/billing/webhook.
type Handler struct {
	log      *slog.Logger
	parser   EventParser
	service  Service
	maxBytes int64
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, parser EventParser, service Service, maxBytes int64) *Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return &Handler{log: log, parser: parser, service: service, maxBytes: maxBytes}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.webhook"
	log := h.log.With(slog.String("op", op))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn("webhook body too large", slog.Int64("limit", tooLarge.Limit))
		} else {
			log.Error("failed to read webhook body", sl.Err(err))
		}
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	event, err := h.parser.ParseEvent(body, r.Header.Get(SignatureHeader))
	if err != nil {
		log.Warn("webhook signature verification failed", sl.Err(err))
		http.Error(w, "Webhook Error: invalid signature", http.StatusBadRequest)
		return
	}

	if err := h.service.HandleWebhookEvent(r.Context(), event); err != nil {
		log.Error("failed to process webhook event",
			slog.String("event_id", event.ID), slog.String("event_type", event.Type), sl.Err(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	log.Info("webhook processed", slog.String("event_id", event.ID), slog.String("event_type", event.Type))
	render.JSON(w, r, map[string]bool{"received": true})
}
