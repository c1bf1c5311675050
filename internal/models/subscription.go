package models

import "time"

// CheckoutModeSubscription — режим checkout-сессии, оформляющей подписку.
const CheckoutModeSubscription = "subscription"

// MetadataUserID — ключ метаданных провайдера с идентификатором пользователя.
const MetadataUserID = "user_id"

// SubscriptionSnapshot — состояние подписки у провайдера на момент запроса
// или события. Снимок считается полной истиной, а не приращением.
type SubscriptionSnapshot struct {
	ID                string     `json:"id"`
	CustomerID        string     `json:"customer_id"`
	Status            string     `json:"status"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	PriceID           string     `json:"price_id,omitempty"`
}

// BillingState — набор billing-полей записи пользователя, записываемых за один раз.
type BillingState struct {
	CustomerID        string
	SubscriptionID    string
	PriceID           string
	Status            SubscriptionStatus
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd bool
}

// CheckoutSession — checkout-сессия провайдера.
type CheckoutSession struct {
	ID             string
	URL            string
	Mode           string
	Status         string
	PaymentStatus  string
	CustomerID     string
	SubscriptionID string
	Metadata       map[string]string
	// Subscription заполняется, если провайдер вернул развёрнутую подписку.
	Subscription *SubscriptionSnapshot
}

// CheckoutParams — параметры создания checkout-сессии.
type CheckoutParams struct {
	UserID     string
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// BillingEventKind — вид события вебхука провайдера.
type BillingEventKind string

const (
	EventCheckoutCompleted   BillingEventKind = "checkout.session.completed"
	EventSubscriptionUpdated BillingEventKind = "customer.subscription.updated"
	EventSubscriptionDeleted BillingEventKind = "customer.subscription.deleted"
	EventUnknown             BillingEventKind = "unknown"
)

// BillingEvent — проверенное событие вебхука. В зависимости от Kind
// заполнено либо Checkout, либо Subscription. Для EventUnknown исходный
// тип события сохраняется в Type.
type BillingEvent struct {
	ID           string
	Kind         BillingEventKind
	Type         string
	Checkout     *CheckoutSession
	Subscription *SubscriptionSnapshot
}

// CustomerID возвращает идентификатор клиента провайдера, к которому относится событие.
func (e *BillingEvent) CustomerID() string {
	switch {
	case e.Checkout != nil:
		return e.Checkout.CustomerID
	case e.Subscription != nil:
		return e.Subscription.CustomerID
	default:
		return ""
	}
}
