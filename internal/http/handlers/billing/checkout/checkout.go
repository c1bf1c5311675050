// Package checkout реализует вызов createCheckoutSession: создаёт
// checkout-сессию подписки и возвращает её URL.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/journal-accounts/internal/http/middlewarectx"
	"github.com/magabrotheeeer/journal-accounts/internal/http/response"
	"github.com/magabrotheeeer/journal-accounts/internal/lib/apperr"
	"github.com/magabrotheeeer/journal-accounts/internal/lib/sl"
)

// Request — параметры checkout-сессии.
type Request struct {
	PriceID    string `json:"priceId"`
	SuccessURL string `json:"successUrl" validate:"omitempty,url"`
	CancelURL  string `json:"cancelUrl" validate:"omitempty,url"`
}

// Service создаёт checkout-сессию.
type Service interface {
	CreateCheckoutSession(ctx context.Context, uid, priceID, successURL, cancelURL string) (string, error)
}

// Handler обрабатывает POST /api/v1/billing/checkout.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New()}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.checkout"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	uid, ok := middlewarectx.UserUIDFrom(r.Context())
	if !ok {
		response.Fail(w, r, apperr.New(apperr.Unauthenticated, "authentication required"))
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.Fail(w, r, apperr.Wrap(apperr.InvalidArgument, "invalid request body", err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationError(verrs))
			return
		}
		response.Fail(w, r, err)
		return
	}

	url, err := h.service.CreateCheckoutSession(r.Context(), uid, req.PriceID, req.SuccessURL, req.CancelURL)
	if err != nil {
		log.Error("failed to create checkout session", slog.String("user_uid", uid), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(map[string]any{"url": url}))
}
