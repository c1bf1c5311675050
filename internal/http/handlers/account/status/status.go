// Package status реализует HTTP-обработчик состояния аккаунта: запись
// пользователя и вычисленный уровень доступа.
package status

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
	"github.com/magabrotheeeer/journal-accounts/internal/models"
)

// Service читает состояние аккаунта.
type Service interface {
	Status(ctx context.Context, uid string) (*models.AccountStatus, error)
}

// Handler обрабатывает GET /api/v1/account.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.status"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	uid, ok := middlewarectx.UserUIDFrom(r.Context())
	if !ok {
		response.Fail(w, r, apperr.New(apperr.Unauthenticated, "authentication required"))
		return
	}

	status, err := h.service.Status(r.Context(), uid)
	if err != nil {
		log.Error("failed to read account status", slog.String("user_uid", uid), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(status))
}
