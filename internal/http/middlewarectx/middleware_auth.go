// Package middlewarectx содержит HTTP middleware API: проверку JWT и
// ограничение частоты запросов по вызывающему.
//
// JWTMiddleware проверяет наличие и валидность JWT токена в заголовке Authorization
// и в случае успеха добавляет в контекст uid и email вызывающего.
//
// В случае ошибки проверки возвращает HTTP 401 Unauthorized с видом unauthenticated.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/journal-accounts/internal/http/response"
	"github.com/magabrotheeeer/journal-accounts/internal/lib/apperr"
	customjwt "github.com/magabrotheeeer/journal-accounts/internal/lib/jwt"
	"github.com/magabrotheeeer/journal-accounts/internal/lib/sl"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// UserUID — ключ uid вызывающего в контексте.
	UserUID Key = "user_uid"
	// Email — ключ email вызывающего в контексте.
	Email Key = "email"
)

// TokenParser проверяет токен и возвращает его claims.
type TokenParser interface {
	ParseToken(token string) (*customjwt.CustomClaims, error)
}

// JWTMiddleware возвращает HTTP middleware, который проверяет JWT в заголовке Authorization.
func JWTMiddleware(parser TokenParser, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Info("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.ErrorWithKind(apperr.Unauthenticated, "missing or invalid authorization header"))
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			claims, err := parser.ParseToken(tokenStr)
			if err != nil || claims.UserUID() == "" {
				log.Info("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.ErrorWithKind(apperr.Unauthenticated, "invalid or expired token"))
				return
			}
			ctx := context.WithValue(r.Context(), UserUID, claims.UserUID())
			ctx = context.WithValue(ctx, Email, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserUIDFrom возвращает uid вызывающего, положенный JWTMiddleware.
func UserUIDFrom(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(UserUID).(string)
	return uid, ok && uid != ""
}
