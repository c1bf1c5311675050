// Package models содержит доменные структуры сервиса учётных записей:
// запись пользователя, снимки подписки платёжного провайдера, события
// вебхуков, записи дневника и учётные записи провайдера идентификации.
// Структуры используются бизнес-логикой, хранилищем и HTTP-слоем.
package models

import "time"

// SubscriptionStatus — локальный статус подписки пользователя.
//
// Помимо перечисленных констант поле может содержать статус провайдера
// в исходном виде (например, past_due), если он не отображается в active.
type SubscriptionStatus string

const (
	StatusNone     SubscriptionStatus = "none"
	StatusTrialing SubscriptionStatus = "trialing"
	StatusActive   SubscriptionStatus = "active"
	StatusExpired  SubscriptionStatus = "expired"
	StatusCanceled SubscriptionStatus = "canceled"
)

// UserRecord представляет запись пользователя. Ключ — идентификатор
// учётной записи в провайдере идентификации.
//
// Пустые строки в billing-полях соответствуют отсутствующему значению.
type UserRecord struct {
	UID                      string             `json:"uid"`
	TrialStartAt             *time.Time         `json:"trial_start_at,omitempty"`
	TrialEndAt               *time.Time         `json:"trial_end_at,omitempty"`
	SubscriptionStatus       SubscriptionStatus `json:"subscription_status"`
	HasWrittenFirstEntry     bool               `json:"has_written_first_entry"`
	ProOverride              bool               `json:"pro_override"`
	BillingCustomerID        string             `json:"billing_customer_id,omitempty"`
	BillingSubscriptionID    string             `json:"billing_subscription_id,omitempty"`
	BillingPriceID           string             `json:"billing_price_id,omitempty"`
	BillingCurrentPeriodEnd  *time.Time         `json:"billing_current_period_end,omitempty"`
	BillingCancelAtPeriodEnd bool               `json:"billing_cancel_at_period_end"`
	ScheduledForDeletionAt   *time.Time         `json:"scheduled_for_deletion_at,omitempty"`
	Stickers                 []string           `json:"stickers,omitempty"`
	CreatedAt                time.Time          `json:"created_at"`
	UpdatedAt                time.Time          `json:"updated_at"`
}

// TrialStarted сообщает, заданы ли обе даты пробного периода.
func (u *UserRecord) TrialStarted() bool {
	return u.TrialStartAt != nil && u.TrialEndAt != nil
}

// ScheduledForDeletion сообщает, находится ли аккаунт в периоде ожидания удаления.
func (u *UserRecord) ScheduledForDeletion() bool {
	return u.ScheduledForDeletionAt != nil
}
