// Package verify реализует вызов verifyCheckoutSession: после возврата из
// checkout клиент подтверждает оплату, не дожидаясь вебхука.
package verify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/journal-accounts/internal/http/middlewarectx"
	"github.com/magabrotheeeer/journal-accounts/internal/http/response"
	"github.com/magabrotheeeer/journal-accounts/internal/lib/apperr"
	"github.com/magabrotheeeer/journal-accounts/internal/lib/sl"
	"github.com/magabrotheeeer/journal-accounts/internal/services/billing"
)

// Request — идентификатор checkout-сессии.
type Request struct {
	SessionID string `json:"sessionId"`
}

// Service проверяет checkout-сессию.
type Service interface {
	VerifyCheckoutSession(ctx context.Context, uid, sessionID string) (billing.VerifyResult, error)
}

// Handler обрабатывает POST /api/v1/billing/checkout/verify.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.verify"
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
		response.Fail(w, r, apperr.Wrap(apperr.InvalidArgument, "invalid request body", err))
		return
	}

	result, err := h.service.VerifyCheckoutSession(r.Context(), uid, req.SessionID)
	if err != nil {
		log.Error("failed to verify checkout session", slog.String("user_uid", uid), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(result))
}
