package remove

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/journal-accounts/internal/http/middlewarectx"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) PermanentlyDelete(ctx context.Context, uid string) error {
	return m.Called(ctx, uid).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestRemoveHandler(t *testing.T) {
	tests := []struct {
		name       string
		uid        string
		svcErr     error
		wantStatus int
		wantBody   string
	}{
		{name: "аккаунт удалён", uid: "u1", wantStatus: http.StatusOK, wantBody: `"success":true`},
		{name: "без аутентификации", wantStatus: http.StatusUnauthorized, wantBody: `"kind":"unauthenticated"`},
		{name: "не удалось удалить учётную запись", uid: "u1", svcErr: errors.New("identity down"),
			wantStatus: http.StatusInternalServerError, wantBody: `"kind":"internal"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.uid != "" {
				svc.On("PermanentlyDelete", mock.Anything, tt.uid).Return(tt.svcErr).Once()
			}
			h := New(newNoopLogger(), svc, time.Minute)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/account/delete", nil)
			if tt.uid != "" {
				req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserUID, tt.uid))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			svc.AssertExpectations(t)
		})
	}
}

func TestRemoveHandler_SurvivesClientDisconnect(t *testing.T) {
	svc := new(ServiceMock)
	svc.On("PermanentlyDelete", mock.MatchedBy(func(ctx context.Context) bool {
		_, hasDeadline := ctx.Deadline()
		return ctx.Err() == nil && hasDeadline
	}), "u1").Return(nil).Once()
	h := New(newNoopLogger(), svc, time.Minute)

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), middlewarectx.UserUID, "u1"))
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/account/delete", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}
