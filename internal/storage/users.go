package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/journal-accounts/internal/models"
)

const userColumns = `uid, trial_start_at, trial_end_at, subscription_status, has_written_first_entry,
	pro_override, billing_customer_id, billing_subscription_id, billing_price_id,
	billing_current_period_end, billing_cancel_at_period_end, scheduled_for_deletion_at,
	stickers, created_at, updated_at`

func scanUser(row rowScanner) (*models.UserRecord, error) {
	var (
		u                                     models.UserRecord
		status                                string
		trialStart, trialEnd, periodEnd, sfda sql.NullTime
		customer, subscription, price         sql.NullString
		stickers                              []byte
	)
	err := row.Scan(&u.UID, &trialStart, &trialEnd, &status, &u.HasWrittenFirstEntry,
		&u.ProOverride, &customer, &subscription, &price,
		&periodEnd, &u.BillingCancelAtPeriodEnd, &sfda,
		&stickers, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.SubscriptionStatus = models.SubscriptionStatus(status)
	u.TrialStartAt = timePtr(trialStart)
	u.TrialEndAt = timePtr(trialEnd)
	u.BillingCurrentPeriodEnd = timePtr(periodEnd)
	u.ScheduledForDeletionAt = timePtr(sfda)
	u.BillingCustomerID = customer.String
	u.BillingSubscriptionID = subscription.String
	u.BillingPriceID = price.String
	if len(stickers) > 0 {
		if err := json.Unmarshal(stickers, &u.Stickers); err != nil {
			return nil, fmt.Errorf("decode stickers: %w", err)
		}
	}
	return &u, nil
}

// userLookupErr приводит «нет строки» и некорректный uid к ErrUserNotFound.
func userLookupErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) || pgCode(err) == pgInvalidTextPresent {
		return models.ErrUserNotFound
	}
	return err
}

// requireRow возвращает ErrUserNotFound, если запрос не затронул ни одной строки.
func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// GetUser возвращает запись пользователя по uid.
func (s *Storage) GetUser(ctx context.Context, uid string) (*models.UserRecord, error) {
	const op = "storage.GetUser"
	if err := alive(ctx, op); err != nil {
		return nil, err
	}

	row := s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE uid = $1`, uid)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, userLookupErr(err))
	}
	return user, nil
}

// FindUserByBillingCustomer ищет запись пользователя по идентификатору клиента провайдера.
func (s *Storage) FindUserByBillingCustomer(ctx context.Context, customerID string) (*models.UserRecord, error) {
	const op = "storage.FindUserByBillingCustomer"
	if err := alive(ctx, op); err != nil {
		return nil, err
	}

	row := s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users
		WHERE billing_customer_id = $1
		ORDER BY created_at
		LIMIT 1`, customerID)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, userLookupErr(err))
	}
	return user, nil
}

// StartTrial атомарно открывает пробный период. Возвращает false, если
// условия не выполнены: пробный период уже был, задан pro_override или
// подписка активна. Одновременные вызовы дают ровно один true.
func (s *Storage) StartTrial(ctx context.Context, uid string, start, end time.Time) (bool, error) {
	const op = "storage.StartTrial"
	if err := alive(ctx, op); err != nil {
		return false, err
	}

	result, err := s.DB.ExecContext(ctx, `UPDATE users
		SET has_written_first_entry = TRUE,
			trial_start_at = $2,
			trial_end_at = $3,
			subscription_status = 'trialing',
			updated_at = NOW()
		WHERE uid = $1
			AND trial_start_at IS NULL
			AND pro_override = FALSE
			AND subscription_status <> 'active'`, uid, start, end)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, userLookupErr(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// MarkFirstEntryWritten выставляет has_written_first_entry без изменения статуса.
func (s *Storage) MarkFirstEntryWritten(ctx context.Context, uid string) error {
	const op = "storage.MarkFirstEntryWritten"
	if err := alive(ctx, op); err != nil {
		return err
	}

	_, err := s.DB.ExecContext(ctx, `UPDATE users
		SET has_written_first_entry = TRUE, updated_at = NOW()
		WHERE uid = $1 AND has_written_first_entry = FALSE`, uid)
	if err != nil {
		return fmt.Errorf("%s: %w", op, userLookupErr(err))
	}
	return nil
}

// ExpireTrial переводит истёкший пробный период в expired. Возвращает
// true, если запись была изменена.
func (s *Storage) ExpireTrial(ctx context.Context, uid string, now time.Time) (bool, error) {
	const op = "storage.ExpireTrial"
	if err := alive(ctx, op); err != nil {
		return false, err
	}

	result, err := s.DB.ExecContext(ctx, `UPDATE users
		SET subscription_status = 'expired', updated_at = NOW()
		WHERE uid = $1
			AND subscription_status = 'trialing'
			AND trial_end_at IS NOT NULL
			AND trial_end_at < $2`, uid, now)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, userLookupErr(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// UpdateBillingState перезаписывает billing-поля записи целиком. Пустой
// CustomerID оставляет сохранённого клиента без изменений.
func (s *Storage) UpdateBillingState(ctx context.Context, uid string, state models.BillingState) error {
	const op = "storage.UpdateBillingState"
	if err := alive(ctx, op); err != nil {
		return err
	}

	result, err := s.DB.ExecContext(ctx, `UPDATE users
		SET billing_customer_id = COALESCE($2, billing_customer_id),
			billing_subscription_id = $3,
			billing_price_id = $4,
			subscription_status = $5,
			billing_current_period_end = $6,
			billing_cancel_at_period_end = $7,
			updated_at = NOW()
		WHERE uid = $1`,
		uid, nullString(state.CustomerID), nullString(state.SubscriptionID), nullString(state.PriceID),
		string(state.Status), nullTime(state.CurrentPeriodEnd), state.CancelAtPeriodEnd)
	if err != nil {
		return fmt.Errorf("%s: %w", op, userLookupErr(err))
	}
	if err := requireRow(result); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ClearSubscription отмечает подписку как завершённую: статус expired,
// идентификатор подписки, цена и конец периода очищаются. Клиент сохраняется.
func (s *Storage) ClearSubscription(ctx context.Context, uid string) error {
	const op = "storage.ClearSubscription"
	if err := alive(ctx, op); err != nil {
		return err
	}

	result, err := s.DB.ExecContext(ctx, `UPDATE users
		SET subscription_status = 'expired',
			billing_subscription_id = NULL,
			billing_price_id = NULL,
			billing_current_period_end = NULL,
			updated_at = NOW()
		WHERE uid = $1`, uid)
	if err != nil {
		return fmt.Errorf("%s: %w", op, userLookupErr(err))
	}
	if err := requireRow(result); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// LinkBillingCustomer привязывает клиента провайдера, если привязки ещё нет.
func (s *Storage) LinkBillingCustomer(ctx context.Context, uid, customerID string) error {
	const op = "storage.LinkBillingCustomer"
	if err := alive(ctx, op); err != nil {
		return err
	}

	_, err := s.DB.ExecContext(ctx, `UPDATE users
		SET billing_customer_id = $2, updated_at = NOW()
		WHERE uid = $1 AND billing_customer_id IS NULL`, uid, customerID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, userLookupErr(err))
	}
	return nil
}

// SetCancelAtPeriodEnd меняет только флаг billing_cancel_at_period_end.
func (s *Storage) SetCancelAtPeriodEnd(ctx context.Context, uid string, cancel bool) error {
	const op = "storage.SetCancelAtPeriodEnd"
	if err := alive(ctx, op); err != nil {
		return err
	}

	result, err := s.DB.ExecContext(ctx, `UPDATE users
		SET billing_cancel_at_period_end = $2, updated_at = NOW()
		WHERE uid = $1`, uid, cancel)
	if err != nil {
		return fmt.Errorf("%s: %w", op, userLookupErr(err))
	}
	if err := requireRow(result); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetScheduledForDeletion записывает scheduled_for_deletion_at (nil очищает
// поле) и возвращает предыдущее значение. Чтение и запись выполняются
// одним запросом под блокировкой строки.
func (s *Storage) SetScheduledForDeletion(ctx context.Context, uid string, at *time.Time) (*time.Time, error) {
	const op = "storage.SetScheduledForDeletion"
	if err := alive(ctx, op); err != nil {
		return nil, err
	}

	var previous sql.NullTime
	err := s.DB.QueryRowContext(ctx, `UPDATE users u
		SET scheduled_for_deletion_at = $2, updated_at = NOW()
		FROM (SELECT uid, scheduled_for_deletion_at FROM users WHERE uid = $1 FOR UPDATE) prev
		WHERE u.uid = prev.uid
		RETURNING prev.scheduled_for_deletion_at`, uid, nullTime(at)).Scan(&previous)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, userLookupErr(err))
	}
	return timePtr(previous), nil
}

// FindUsersScheduledBefore возвращает uid аккаунтов, удаление которых
// запланировано не позднее cutoff.
func (s *Storage) FindUsersScheduledBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	const op = "storage.FindUsersScheduledBefore"
	if err := alive(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT uid FROM users
		WHERE scheduled_for_deletion_at IS NOT NULL AND scheduled_for_deletion_at <= $1
		ORDER BY scheduled_for_deletion_at`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var uids []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		uids = append(uids, uid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return uids, nil
}

// DeleteUser удаляет запись пользователя. Возвращает false, если записи не было.
func (s *Storage) DeleteUser(ctx context.Context, uid string) (bool, error) {
	const op = "storage.DeleteUser"
	if err := alive(ctx, op); err != nil {
		return false, err
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM users WHERE uid = $1`, uid)
	if err != nil {
		if pgCode(err) == pgInvalidTextPresent {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// SetStickers заменяет список стикеров пользователя.
func (s *Storage) SetStickers(ctx context.Context, uid string, stickers []string) error {
	const op = "storage.SetStickers"
	if err := alive(ctx, op); err != nil {
		return err
	}
	if stickers == nil {
		stickers = []string{}
	}
	raw, err := json.Marshal(stickers)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	result, err := s.DB.ExecContext(ctx, `UPDATE users SET stickers = $2, updated_at = NOW() WHERE uid = $1`, uid, string(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", op, userLookupErr(err))
	}
	if err := requireRow(result); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
