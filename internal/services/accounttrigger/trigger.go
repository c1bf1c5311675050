// Package accounttrigger реагирует на изменение поля
// scheduled_for_deletion_at: приостанавливает продление подписки при
// планировании удаления и возобновляет его при восстановлении аккаунта.
//
// Триггер пишет только billing_cancel_at_period_end, поэтому его
// собственные записи не порождают новых переходов.
package accounttrigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/journal-accounts/internal/lib/sl"
	"github.com/magabrotheeeer/journal-accounts/internal/metrics"
	"github.com/magabrotheeeer/journal-accounts/internal/models"
)

// Action — что сделал триггер.
type Action string

const (
	ActionNone               Action = "none"
	ActionNoSubscription     Action = "no_subscription"
	ActionBillingPaused      Action = "billing_paused"
	ActionBillingResumed     Action = "billing_resumed"
	ActionSubscriptionLapsed Action = "subscription_lapsed"
	ActionStale              Action = "stale"
)

// UserRepository описывает операции хранилища, нужные триггеру.
type UserRepository interface {
	GetUser(ctx context.Context, uid string) (*models.UserRecord, error)
	SetCancelAtPeriodEnd(ctx context.Context, uid string, cancel bool) error
}

// Provider описывает вызовы платёжного провайдера.
type Provider interface {
	GetSubscription(ctx context.Context, id string) (*models.SubscriptionSnapshot, error)
	SetCancelAtPeriodEnd(ctx context.Context, id string, cancel bool) (*models.SubscriptionSnapshot, error)
}

// Cache сбрасывает закэшированную запись пользователя.
type Cache interface {
	Invalidate(ctx context.Context, key string) error
}

// Trigger обрабатывает переходы планирования удаления.
type Trigger struct {
	repo     UserRepository
	provider Provider
	cache    Cache
	cacheKey func(uid string) string
	log      *slog.Logger
}

// New создаёт Trigger. cache может быть nil.
func New(repo UserRepository, provider Provider, cache Cache, cacheKey func(uid string) string, log *slog.Logger) *Trigger {
	return &Trigger{repo: repo, provider: provider, cache: cache, cacheKey: cacheKey, log: log}
}

// HandleChange выполняет действие для перехода change. Переходы, не
// меняющие наличие планирования, игнорируются. Переход, который уже не
// совпадает с текущим состоянием записи (сообщения пришли не по порядку),
// тоже пропускается: действует только последнее состояние.
func (t *Trigger) HandleChange(ctx context.Context, change models.AccountChange) (Action, error) {
	const op = "accounttrigger.HandleChange"
	log := t.log.With(slog.String("op", op), slog.String("user_uid", change.UserUID))

	if !change.Scheduled() && !change.Restored() {
		return ActionNone, nil
	}

	user, err := t.repo.GetUser(ctx, change.UserUID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			log.Info("user record absent, nothing to do")
			return ActionNone, nil
		}
		return ActionNone, fmt.Errorf("%s: %w", op, err)
	}
	if change.Scheduled() != (user.ScheduledForDeletionAt != nil) {
		log.Info("change is stale, skipping",
			slog.Bool("scheduled_now", user.ScheduledForDeletionAt != nil))
		return ActionStale, nil
	}
	if user.BillingSubscriptionID == "" {
		return ActionNoSubscription, nil
	}

	var action Action
	if change.Scheduled() {
		action, err = t.pause(ctx, user)
	} else {
		action, err = t.resume(ctx, user)
	}
	if err != nil {
		return ActionNone, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("account change handled", slog.String("action", string(action)))
	return action, nil
}

func (t *Trigger) pause(ctx context.Context, user *models.UserRecord) (Action, error) {
	if _, err := t.provider.SetCancelAtPeriodEnd(ctx, user.BillingSubscriptionID, true); err != nil {
		return ActionNone, err
	}
	if err := t.persist(ctx, user.UID, true); err != nil {
		return ActionNone, err
	}
	return ActionBillingPaused, nil
}

// resume снимает отмену только у подписки, которая ещё действует и
// помечена к отмене в конце периода.
func (t *Trigger) resume(ctx context.Context, user *models.UserRecord) (Action, error) {
	snap, err := t.provider.GetSubscription(ctx, user.BillingSubscriptionID)
	if err != nil {
		return ActionNone, err
	}
	if !snap.CancelAtPeriodEnd || (snap.Status != "active" && snap.Status != "trialing") {
		return ActionSubscriptionLapsed, nil
	}
	if _, err := t.provider.SetCancelAtPeriodEnd(ctx, user.BillingSubscriptionID, false); err != nil {
		return ActionNone, err
	}
	if err := t.persist(ctx, user.UID, false); err != nil {
		return ActionNone, err
	}
	return ActionBillingResumed, nil
}

func (t *Trigger) persist(ctx context.Context, uid string, cancel bool) error {
	if err := t.repo.SetCancelAtPeriodEnd(ctx, uid, cancel); err != nil {
		return err
	}
	if t.cache != nil && t.cacheKey != nil {
		if err := t.cache.Invalidate(ctx, t.cacheKey(uid)); err != nil {
			t.log.Warn("failed to invalidate user cache", slog.String("user_uid", uid), sl.Err(err))
		}
	}
	return nil
}

// HandleMessage разбирает сообщение очереди и выполняет HandleChange.
// Ошибка возвращается только для неразбираемого сообщения; сбой
// обработки логируется и автоматически не повторяется.
func (t *Trigger) HandleMessage(ctx context.Context, body []byte) error {
	const op = "accounttrigger.HandleMessage"

	var change models.AccountChange
	if err := json.Unmarshal(body, &change); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if change.UserUID == "" {
		return fmt.Errorf("%s: message without user_uid", op)
	}

	action, err := t.HandleChange(ctx, change)
	if err != nil {
		metrics.TriggerActions.WithLabelValues("failed").Inc()
		t.log.Error("account change failed", slog.String("op", op),
			slog.String("user_uid", change.UserUID), sl.Err(err))
		return nil
	}
	metrics.TriggerActions.WithLabelValues(string(action)).Inc()
	return nil
}
