// Package portal реализует вызов createCustomerPortal.
package portal

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
)

// Request — адрес возврата из портала.
type Request struct {
	ReturnURL string `json:"returnUrl"`
}

// Service создаёт сессию портала клиента.
type Service interface {
	CreateCustomerPortal(ctx context.Context, uid, returnURL string) (string, error)
}

// Handler обрабатывает POST /api/v1/billing/portal.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.portal"
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

	url, err := h.service.CreateCustomerPortal(r.Context(), uid, req.ReturnURL)
	if err != nil {
		log.Error("failed to create portal session", slog.String("user_uid", uid), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(map[string]any{"url": url}))
}
