package login

import (
	"bytes"
	"context"
	"encoding/json"
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

func (m *ServiceMock) Login(ctx context.Context, email, password string) (string, error) {
	args := m.Called(ctx, email, password)
	return args.String(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestLoginHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    any
		mockToken      string
		mockErr        error
		callService    bool
		wantStatusCode int
		wantStatus     string
		wantError      string
		wantToken      string
	}{
		{
			name:           "valid login",
			requestBody:    Request{Email: "a@b.c", Password: "password123"},
			mockToken:      "tok",
			callService:    true,
			wantStatusCode: http.StatusOK,
			wantStatus:     "OK",
			wantToken:      "tok",
		},
		{
			name:           "invalid json body",
			requestBody:    "not a json",
			wantStatusCode: http.StatusBadRequest,
			wantStatus:     "Error",
			wantError:      "invalid request body",
		},
		{
			name:           "validation error - missing password",
			requestBody:    Request{Email: "a@b.c"},
			wantStatusCode: http.StatusBadRequest,
			wantStatus:     "Error",
			wantError:      "field Password is a required field",
		},
		{
			name:           "invalid credentials",
			requestBody:    Request{Email: "a@b.c", Password: "password123"},
			mockErr:        apperr.New(apperr.Unauthenticated, "invalid credentials"),
			callService:    true,
			wantStatusCode: http.StatusUnauthorized,
			wantStatus:     "Error",
			wantError:      "invalid credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.callService {
				req := tt.requestBody.(Request)
				svc.On("Login", mock.Anything, req.Email, req.Password).Return(tt.mockToken, tt.mockErr).Once()
			}
			handler := New(newNoopLogger(), svc)

			var bodyBytes []byte
			switch v := tt.requestBody.(type) {
			case string:
				bodyBytes = []byte(v)
			default:
				var err error
				bodyBytes, err = json.Marshal(tt.requestBody)
				if err != nil {
					t.Fatal(err)
				}
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(bodyBytes))
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "reqid123"))
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)

			var got map[string]any
			assert.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.Equal(t, tt.wantStatus, got["status"])
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, got["error"])
			}
			if tt.wantToken != "" {
				data, ok := got["data"].(map[string]any)
				assert.True(t, ok)
				assert.Equal(t, tt.wantToken, data["token"])
			}
			svc.AssertExpectations(t)
		})
	}
}
