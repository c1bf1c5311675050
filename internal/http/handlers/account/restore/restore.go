// Package restore реализует HTTP-обработчик отмены запланированного удаления.
package restore

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/journal-accounts/internal/http/middlewarectx"
	"github.com/magabrotheeeer/journal-accounts/internal/http/response"
	"github.com/magabrotheeeer/journal-accounts/internal/lib/apperr"
	"github.com/magabrotheeeer/journal-accounts/internal/lib/sl"
)

// Service снимает отметку об удалении.
type Service interface {
	Restore(ctx context.Context, uid string) (*time.Time, error)
}

// Handler обрабатывает DELETE /api/v1/account/deletion.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.restore"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	uid, ok := middlewarectx.UserUIDFrom(r.Context())
	if !ok {
		response.Fail(w, r, apperr.New(apperr.Unauthenticated, "authentication required"))
		return
	}

	prev, err := h.service.Restore(r.Context(), uid)
	if err != nil {
		log.Error("failed to restore account", slog.String("user_uid", uid), sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"success":  true,
		"restored": prev != nil,
	}))
}
