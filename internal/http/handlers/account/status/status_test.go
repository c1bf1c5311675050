package status

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/journal-accounts/internal/http/middlewarectx"
	"github.com/magabrotheeeer/journal-accounts/internal/lib/apperr"
	"github.com/magabrotheeeer/journal-accounts/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Status(ctx context.Context, uid string) (*models.AccountStatus, error) {
	args := m.Called(ctx, uid)
	st, _ := args.Get(0).(*models.AccountStatus)
	return st, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestStatusHandler(t *testing.T) {
	t.Run("состояние аккаунта", func(t *testing.T) {
		svc := new(ServiceMock)
		svc.On("Status", mock.Anything, "u1").Return(&models.AccountStatus{
			User:        &models.UserRecord{UID: "u1", SubscriptionStatus: models.StatusTrialing},
			AccessLevel: models.AccessTrial,
			CanWrite:    true,
		}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/account", nil)
		req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserUID, "u1"))
		rec := httptest.NewRecorder()
		New(newNoopLogger(), svc).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var got struct {
			Status string `json:"status"`
			Data   struct {
				AccessLevel string `json:"access_level"`
				CanWrite    bool   `json:"can_write"`
				User        struct {
					SubscriptionStatus string `json:"subscription_status"`
				} `json:"user"`
			} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		assert.Equal(t, "OK", got.Status)
		assert.Equal(t, "trial", got.Data.AccessLevel)
		assert.True(t, got.Data.CanWrite)
		assert.Equal(t, "trialing", got.Data.User.SubscriptionStatus)
	})

	t.Run("пользователь не найден", func(t *testing.T) {
		svc := new(ServiceMock)
		svc.On("Status", mock.Anything, "u1").Return(nil, apperr.New(apperr.NotFound, "user not found"))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/account", nil)
		req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserUID, "u1"))
		rec := httptest.NewRecorder()
		New(newNoopLogger(), svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
