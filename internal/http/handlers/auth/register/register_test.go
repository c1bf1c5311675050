package register

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/journal-accounts/internal/lib/apperr"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Register(ctx context.Context, email, password string) (string, error) {
	args := m.Called(ctx, email, password)
	return args.String(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestRegisterHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setup          func(m *ServiceMock)
		wantStatusCode int
		wantBody       string
	}{
		{
			name: "успешная регистрация",
			body: `{"email":"a@b.c","password":"password123"}`,
			setup: func(m *ServiceMock) {
				m.On("Register", mock.Anything, "a@b.c", "password123").Return("uid-1", nil).Once()
			},
			wantStatusCode: http.StatusCreated,
			wantBody:       `"user_uid":"uid-1"`,
		},
		{
			name:           "некорректный email",
			body:           `{"email":"nope","password":"password123"}`,
			setup:          func(_ *ServiceMock) {},
			wantStatusCode: http.StatusBadRequest,
			wantBody:       "field Email is not a valid email",
		},
		{
			name:           "короткий пароль",
			body:           `{"email":"a@b.c","password":"short"}`,
			setup:          func(_ *ServiceMock) {},
			wantStatusCode: http.StatusBadRequest,
			wantBody:       "field Password is too short",
		},
		{
			name:           "битый json",
			body:           `{`,
			setup:          func(_ *ServiceMock) {},
			wantStatusCode: http.StatusBadRequest,
			wantBody:       "invalid request body",
		},
		{
			name: "email занят",
			body: `{"email":"a@b.c","password":"password123"}`,
			setup: func(m *ServiceMock) {
				m.On("Register", mock.Anything, "a@b.c", "password123").
					Return("", apperr.New(apperr.FailedPrecondition, "email already registered")).Once()
			},
			wantStatusCode: http.StatusPreconditionFailed,
			wantBody:       `"kind":"failed-precondition"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setup(svc)
			h := New(newNoopLogger(), svc)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewBufferString(tt.body))
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "reqid123"))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			svc.AssertExpectations(t)
		})
	}
}
