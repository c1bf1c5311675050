package middlewarectx_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/journal-accounts/internal/http/middlewarectx"
	customjwt "github.com/magabrotheeeer/journal-accounts/internal/lib/jwt"
)

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestJWTMiddleware(t *testing.T) {
	maker := customjwt.NewJWTMaker("secret", time.Hour, "journal-accounts")
	valid, err := maker.GenerateToken("uid-1", "a@b.c")
	require.NoError(t, err)
	foreign, err := customjwt.NewJWTMaker("other", time.Hour, "journal-accounts").GenerateToken("uid-1", "a@b.c")
	require.NoError(t, err)
	expired, err := customjwt.NewJWTMaker("secret", -time.Minute, "journal-accounts").GenerateToken("uid-1", "a@b.c")
	require.NoError(t, err)

	tests := []struct {
		name           string
		authHeader     string
		wantStatusCode int
		wantCalled     bool
	}{
		{name: "нет заголовка", authHeader: "", wantStatusCode: http.StatusUnauthorized},
		{name: "не Bearer", authHeader: "Basic sometoken", wantStatusCode: http.StatusUnauthorized},
		{name: "мусор вместо токена", authHeader: "Bearer token", wantStatusCode: http.StatusUnauthorized},
		{name: "чужая подпись", authHeader: "Bearer " + foreign, wantStatusCode: http.StatusUnauthorized},
		{name: "истёкший токен", authHeader: "Bearer " + expired, wantStatusCode: http.StatusUnauthorized},
		{name: "валидный токен", authHeader: "Bearer " + valid, wantStatusCode: http.StatusOK, wantCalled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlerCalled := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
				uid, ok := middlewarectx.UserUIDFrom(r.Context())
				assert.True(t, ok)
				assert.Equal(t, "uid-1", uid)
				assert.Equal(t, "a@b.c", r.Context().Value(middlewarectx.Email))
				w.WriteHeader(http.StatusOK)
			})
			h := middlewarectx.JWTMiddleware(maker, newNoopLogger())(next)

			req := httptest.NewRequest(http.MethodGet, "/somepath", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			assert.Equal(t, tt.wantCalled, handlerCalled)
			if !tt.wantCalled {
				assert.Contains(t, rec.Body.String(), `"kind":"unauthenticated"`)
			}
		})
	}
}
