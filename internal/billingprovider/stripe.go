// Package billingprovider — адаптер платёжного провайдера Stripe.
//
// Пакет переводит объекты Stripe в доменные снимки (models.SubscriptionSnapshot,
// models.CheckoutSession, models.BillingEvent) и скрывает от бизнес-логики
// детали SDK: параметры запросов, развёртывание связанных объектов и
// проверку подписи вебхуков.
package billingprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
	"github.com/stripe/stripe-go/v75/webhook"

	"github.com/magabrotheeeer/journal-accounts/internal/config"
	"github.com/magabrotheeeer/journal-accounts/internal/models"
)

var (
	// ErrInvalidEvent — подпись вебхука не прошла проверку или тело не разобрано.
	ErrInvalidEvent = errors.New("invalid webhook event")
	// ErrNotFound — объект у провайдера не найден.
	ErrNotFound = errors.New("billing object not found")
	// ErrNotConfigured — не задан ключ провайдера.
	ErrNotConfigured = errors.New("billing provider is not configured")
)

// Client реализует операции с провайдером поверх stripe-go.
type Client struct {
	api           *client.API
	webhookSecret string
}

// New создаёт клиент по настройкам billing.
func New(cfg config.Billing) (*Client, error) {
	return NewWithBackends(cfg, nil)
}

// NewWithBackends создаёт клиент с явно заданными бэкендами SDK.
// nil означает бэкенды по умолчанию.
func NewWithBackends(cfg config.Billing, backends *stripe.Backends) (*Client, error) {
	const op = "billingprovider.New"
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}
	sc := &client.API{}
	sc.Init(cfg.SecretKey, backends)
	return &Client{api: sc, webhookSecret: cfg.WebhookSecret}, nil
}

// ParseEvent проверяет подпись и разбирает событие вебхука. Неизвестные
// типы событий возвращаются с Kind = EventUnknown.
func (c *Client) ParseEvent(payload []byte, signature string) (*models.BillingEvent, error) {
	const op = "billingprovider.ParseEvent"

	event, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidEvent, err)
	}

	result := &models.BillingEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return nil, fmt.Errorf("%s: %w: empty data", op, ErrInvalidEvent)
	}

	switch models.BillingEventKind(event.Type) {
	case models.EventCheckoutCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidEvent, err)
		}
		result.Kind = models.EventCheckoutCompleted
		result.Checkout = checkoutFromStripe(&session)
	case models.EventSubscriptionUpdated, models.EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidEvent, err)
		}
		result.Kind = models.BillingEventKind(event.Type)
		result.Subscription = snapshotFromStripe(&sub)
	default:
		result.Kind = models.EventUnknown
	}
	return result, nil
}

// GetSubscription возвращает текущее состояние подписки.
func (c *Client) GetSubscription(ctx context.Context, id string) (*models.SubscriptionSnapshot, error) {
	const op = "billingprovider.GetSubscription"

	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := c.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return snapshotFromStripe(sub), nil
}

// ListSubscriptions возвращает неотменённые подписки клиента.
func (c *Client) ListSubscriptions(ctx context.Context, customerID string) ([]*models.SubscriptionSnapshot, error) {
	const op = "billingprovider.ListSubscriptions"

	params := &stripe.SubscriptionListParams{Customer: stripe.String(customerID)}
	params.Context = ctx
	iter := c.api.Subscriptions.List(params)

	var result []*models.SubscriptionSnapshot
	for iter.Next() {
		result = append(result, snapshotFromStripe(iter.Subscription()))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return result, nil
}

// SetCancelAtPeriodEnd включает или снимает отмену подписки в конце периода.
func (c *Client) SetCancelAtPeriodEnd(ctx context.Context, id string, cancel bool) (*models.SubscriptionSnapshot, error) {
	const op = "billingprovider.SetCancelAtPeriodEnd"

	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(cancel)}
	params.Context = ctx
	sub, err := c.api.Subscriptions.Update(id, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return snapshotFromStripe(sub), nil
}

// CancelSubscription немедленно отменяет подписку.
func (c *Client) CancelSubscription(ctx context.Context, id string) error {
	const op = "billingprovider.CancelSubscription"

	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	if _, err := c.api.Subscriptions.Cancel(id, params); err != nil {
		return fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return nil
}

// FindCustomersByEmail возвращает идентификаторы клиентов с указанным email.
func (c *Client) FindCustomersByEmail(ctx context.Context, email string) ([]string, error) {
	const op = "billingprovider.FindCustomersByEmail"

	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	iter := c.api.Customers.List(params)

	var ids []string
	for iter.Next() {
		ids = append(ids, iter.Customer().ID)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return ids, nil
}

// CreateCustomer создаёт клиента и сохраняет uid пользователя в метаданных.
func (c *Client) CreateCustomer(ctx context.Context, email, userUID string) (string, error) {
	const op = "billingprovider.CreateCustomer"

	params := &stripe.CustomerParams{}
	if email != "" {
		params.Email = stripe.String(email)
	}
	params.Context = ctx
	params.AddMetadata(models.MetadataUserID, userUID)
	cus, err := c.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return cus.ID, nil
}

// CreateCheckoutSession создаёт checkout-сессию оформления подписки.
func (c *Client) CreateCheckoutSession(ctx context.Context, p models.CheckoutParams) (*models.CheckoutSession, error) {
	const op = "billingprovider.CreateCheckoutSession"

	params := &stripe.CheckoutSessionParams{
		SuccessURL:          stripe.String(p.SuccessURL),
		CancelURL:           stripe.String(p.CancelURL),
		Mode:                stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:            stripe.String(p.CustomerID),
		AllowPromotionCodes: stripe.Bool(true),
		ClientReferenceID:   stripe.String(p.UserID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(p.PriceID), Quantity: stripe.Int64(1)},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{models.MetadataUserID: p.UserID},
		},
	}
	params.Context = ctx
	params.AddMetadata(models.MetadataUserID, p.UserID)

	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return checkoutFromStripe(s), nil
}

// GetCheckoutSession возвращает checkout-сессию с развёрнутой подпиской.
func (c *Client) GetCheckoutSession(ctx context.Context, id string) (*models.CheckoutSession, error) {
	const op = "billingprovider.GetCheckoutSession"

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("subscription")
	s, err := c.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return checkoutFromStripe(s), nil
}

// CreatePortalSession создаёт сессию портала самообслуживания клиента.
func (c *Client) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	const op = "billingprovider.CreatePortalSession"

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	s, err := c.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return s.URL, nil
}

func mapErr(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.HTTPStatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, se.Msg)
	}
	return err
}

func snapshotFromStripe(sub *stripe.Subscription) *models.SubscriptionSnapshot {
	if sub == nil {
		return nil
	}
	snap := &models.SubscriptionSnapshot{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		snap.CustomerID = sub.Customer.ID
	}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		snap.CurrentPeriodEnd = &end
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		snap.PriceID = sub.Items.Data[0].Price.ID
	}
	return snap
}

func checkoutFromStripe(s *stripe.CheckoutSession) *models.CheckoutSession {
	out := &models.CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		Mode:          string(s.Mode),
		Status:        string(s.Status),
		PaymentStatus: string(s.PaymentStatus),
		Metadata:      s.Metadata,
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Subscription != nil {
		out.SubscriptionID = s.Subscription.ID
		// Неразвёрнутая подписка содержит только id.
		if s.Subscription.Status != "" {
			out.Subscription = snapshotFromStripe(s.Subscription)
			if out.Subscription.CustomerID == "" {
				out.Subscription.CustomerID = out.CustomerID
			}
		}
	}
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	if _, ok := out.Metadata[models.MetadataUserID]; !ok && s.ClientReferenceID != "" {
		out.Metadata[models.MetadataUserID] = s.ClientReferenceID
	}
	return out
}
