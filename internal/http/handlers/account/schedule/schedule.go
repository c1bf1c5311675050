// Package schedule реализует HTTP-обработчик планирования удаления аккаунта.
package schedule

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

// Service переводит аккаунт в период ожидания удаления.
type Service interface {
	ScheduleForDeletion(ctx context.Context, uid string) (time.Time, error)
}

// Handler обрабатывает POST /api/v1/account/deletion.
type Handler struct {
	log         *slog.Logger
	service     Service
	gracePeriod time.Duration
}

// New создает новый экземпляр Handler. gracePeriod нужен только для ответа.
func New(log *slog.Logger, service Service, gracePeriod time.Duration) *Handler {
	return &Handler{log: log, service: service, gracePeriod: gracePeriod}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.schedule"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	uid, ok := middlewarectx.UserUIDFrom(r.Context())
	if !ok {
		response.Fail(w, r, apperr.New(apperr.Unauthenticated, "authentication required"))
		return
	}

	at, err := h.service.ScheduleForDeletion(r.Context(), uid)
	if err != nil {
		log.Error("failed to schedule deletion", slog.String("user_uid", uid), sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	log.Info("account scheduled for deletion", slog.String("user_uid", uid))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"scheduled_for_deletion_at": at,
		"delete_after":              at.Add(h.gracePeriod),
	}))
}
