// Package remove реализует HTTP-обработчик немедленного удаления аккаунта
// по запросу пользователя.
package remove

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

// Service выполняет окончательное удаление.
type Service interface {
	PermanentlyDelete(ctx context.Context, uid string) error
}

// DefaultTimeout ограничивает удаление, если таймаут не задан.
const DefaultTimeout = 2 * time.Minute

// Handler обрабатывает POST /api/v1/account/delete.
type Handler struct {
	log     *slog.Logger
	service Service
	timeout time.Duration
}

// New создает новый экземпляр Handler. Удаление не прерывается отменой
// запроса и ограничено только timeout.
func New(log *slog.Logger, service Service, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Handler{log: log, service: service, timeout: timeout}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.remove"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	uid, ok := middlewarectx.UserUIDFrom(r.Context())
	if !ok {
		response.Fail(w, r, apperr.New(apperr.Unauthenticated, "authentication required"))
		return
	}

	// отключение клиента посреди удаления оставило бы учётную запись без данных
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.timeout)
	defer cancel()

	if err := h.service.PermanentlyDelete(ctx, uid); err != nil {
		log.Error("failed to delete account", slog.String("user_uid", uid), sl.Err(err))
		response.Fail(w, r, apperr.Wrap(apperr.Internal, "failed to delete account", err))
		return
	}

	log.Info("account deleted", slog.String("user_uid", uid))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"success": true,
	}))
}
