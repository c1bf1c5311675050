// Package syncsub реализует вызов syncSubscription: сверку подписки с
// провайдером по запросу пользователя.
package syncsub

import (
	"context"
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

// Service сверяет подписку.
type Service interface {
	SyncSubscription(ctx context.Context, uid string) (billing.SyncResult, error)
}

// Handler обрабатывает POST /api/v1/billing/sync.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP отвечает {success, status, found}. Отсутствие подписки не
// является ошибкой.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.sync"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	uid, ok := middlewarectx.UserUIDFrom(r.Context())
	if !ok {
		response.Fail(w, r, apperr.New(apperr.Unauthenticated, "authentication required"))
		return
	}

	result, err := h.service.SyncSubscription(r.Context(), uid)
	if err != nil {
		log.Error("failed to sync subscription", slog.String("user_uid", uid), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(map[string]any{
		"success": true,
		"status":  result.Status,
		"found":   result.Found,
	}))
}
