package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	stripewebhook "github.com/stripe/stripe-go/v75/webhook"

	"github.com/magabrotheeeer/journal-accounts/internal/billingprovider"
	"github.com/magabrotheeeer/journal-accounts/internal/config"
	"github.com/magabrotheeeer/journal-accounts/internal/models"
)

const testSecret = "whsec_test"

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) HandleWebhookEvent(ctx context.Context, ev *models.BillingEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func sign(secret string, payload []byte) string {
	return stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload: payload,
		Secret:  secret,
	}).Header
}

func payload(eventType, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","api_version":"2023-08-16","type":%q,"data":{"object":%s}}`,
		eventType, object))
}

const subscriptionObject = `{"id":"sub_1","object":"subscription","customer":"cus_1","status":"active",
	"current_period_end":1767225600,"cancel_at_period_end":false,
	"items":{"object":"list","data":[{"id":"si_1","price":{"id":"price_1"}}]}}`

func newHandler(t *testing.T, svc Service) *Handler {
	t.Helper()
	parser, err := billingprovider.New(config.Billing{SecretKey: "sk_test", WebhookSecret: testSecret})
	require.NoError(t, err)
	return New(newNoopLogger(), parser, svc, 0)
}

func TestWebhook(t *testing.T) {
	updated := payload("customer.subscription.updated", subscriptionObject)
	unknown := payload("invoice.paid", `{"id":"in_1","object":"invoice"}`)

	tests := []struct {
		name       string
		body       []byte
		signature  string
		setup      func(m *ServiceMock)
		wantStatus int
		wantBody   string
		wantCalled bool
	}{
		{
			name:       "неверная подпись",
			body:       updated,
			signature:  sign("whsec_other", updated),
			setup:      func(_ *ServiceMock) {},
			wantStatus: http.StatusBadRequest,
			wantBody:   "Webhook Error",
		},
		{
			name:       "нет подписи",
			body:       updated,
			signature:  "",
			setup:      func(_ *ServiceMock) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:      "обновление подписки",
			body:      updated,
			signature: sign(testSecret, updated),
			setup: func(m *ServiceMock) {
				m.On("HandleWebhookEvent", mock.Anything, mock.MatchedBy(func(ev *models.BillingEvent) bool {
					return ev.Kind == models.EventSubscriptionUpdated && ev.Subscription.ID == "sub_1"
				})).Return(nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   `{"received":true}`,
			wantCalled: true,
		},
		{
			name:      "неизвестное событие подтверждается",
			body:      unknown,
			signature: sign(testSecret, unknown),
			setup: func(m *ServiceMock) {
				m.On("HandleWebhookEvent", mock.Anything, mock.MatchedBy(func(ev *models.BillingEvent) bool {
					return ev.Kind == models.EventUnknown
				})).Return(nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   `{"received":true}`,
			wantCalled: true,
		},
		{
			name:      "ошибка обработки",
			body:      updated,
			signature: sign(testSecret, updated),
			setup: func(m *ServiceMock) {
				m.On("HandleWebhookEvent", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()
			},
			wantStatus: http.StatusInternalServerError,
			wantCalled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setup(svc)
			h := newHandler(t, svc)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhook", bytes.NewReader(tt.body))
			if tt.signature != "" {
				req.Header.Set(SignatureHeader, tt.signature)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
			if !tt.wantCalled {
				svc.AssertNotCalled(t, "HandleWebhookEvent", mock.Anything, mock.Anything)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestWebhook_BodyTooLarge(t *testing.T) {
	svc := new(ServiceMock)
	parser, err := billingprovider.New(config.Billing{SecretKey: "sk_test", WebhookSecret: testSecret})
	require.NoError(t, err)
	h := New(newNoopLogger(), parser, svc, 16)

	body := payload("customer.subscription.updated", subscriptionObject)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhook", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, sign(testSecret, body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "HandleWebhookEvent", mock.Anything, mock.Anything)
}
