package schedule

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
	"github.com/magabrotheeeer/journal-accounts/internal/lib/apperr"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) ScheduleForDeletion(ctx context.Context, uid string) (time.Time, error) {
	args := m.Called(ctx, uid)
	return args.Get(0).(time.Time), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestScheduleHandler(t *testing.T) {
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		uid        string
		setup      func(m *ServiceMock)
		wantStatus int
		wantBody   string
	}{
		{
			name: "удаление запланировано",
			uid:  "u1",
			setup: func(m *ServiceMock) {
				m.On("ScheduleForDeletion", mock.Anything, "u1").Return(at, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   `"delete_after":"2025-07-01T10:00:00Z"`,
		},
		{
			name:       "без аутентификации",
			setup:      func(_ *ServiceMock) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "пользователь не найден",
			uid:  "u1",
			setup: func(m *ServiceMock) {
				m.On("ScheduleForDeletion", mock.Anything, "u1").
					Return(time.Time{}, apperr.Wrap(apperr.NotFound, "user not found", errors.New("no rows"))).Once()
			},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setup(svc)
			h := New(newNoopLogger(), svc, 30*24*time.Hour)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/account/deletion", nil)
			if tt.uid != "" {
				req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserUID, tt.uid))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
			svc.AssertExpectations(t)
		})
	}
}
