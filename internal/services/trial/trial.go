// Package trial управляет пробным периодом: открывает его при первой
// записи дневника и переводит в expired по истечении.
package trial

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/journal-accounts/internal/lib/sl"
	"github.com/magabrotheeeer/journal-accounts/internal/metrics"
	"github.com/magabrotheeeer/journal-accounts/internal/models"
)

// DefaultLength — длительность пробного периода по умолчанию.
const DefaultLength = 30 * 24 * time.Hour

// SkipReason объясняет, почему пробный период не был открыт.
type SkipReason string

const (
	SkipNone           SkipReason = ""
	SkipAlreadyStarted SkipReason = "already_started"
	SkipProOverride    SkipReason = "pro_override"
	SkipActivePlan     SkipReason = "active_subscription"
	SkipNoUser         SkipReason = "user_not_found"
)

// Result — итог StartTrialIfEligible. Пропуск не является ошибкой.
type Result struct {
	Started    bool
	Reason     SkipReason
	TrialEndAt *time.Time
}

// UserRepository описывает операции хранилища, нужные менеджеру.
type UserRepository interface {
	GetUser(ctx context.Context, uid string) (*models.UserRecord, error)
	StartTrial(ctx context.Context, uid string, start, end time.Time) (bool, error)
	ExpireTrial(ctx context.Context, uid string, now time.Time) (bool, error)
	MarkFirstEntryWritten(ctx context.Context, uid string) error
}

// Manager реализует жизненный цикл пробного периода.
type Manager struct {
	repo   UserRepository
	length time.Duration
	now    func() time.Time
	log    *slog.Logger
}

// New создаёт Manager. Нулевая длительность заменяется DefaultLength.
func New(repo UserRepository, length time.Duration, log *slog.Logger) *Manager {
	if length <= 0 {
		length = DefaultLength
	}
	return &Manager{
		repo:   repo,
		length: length,
		now:    func() time.Time { return time.Now().UTC() },
		log:    log,
	}
}

// WithClock подменяет источник времени.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// StartTrialIfEligible открывает пробный период, если он ещё не открывался,
// не задан pro_override и подписка не активна. Проверка и запись выполняются
// одним условным обновлением, поэтому одновременные вызовы открывают период
// ровно один раз.
func (m *Manager) StartTrialIfEligible(ctx context.Context, uid string) (Result, error) {
	const op = "trial.StartTrialIfEligible"
	log := m.log.With(slog.String("op", op), slog.String("user_uid", uid))

	start := m.now()
	end := start.Add(m.length)
	started, err := m.repo.StartTrial(ctx, uid, start, end)
	if err != nil {
		metrics.TrialStarts.WithLabelValues(metrics.ResultError).Inc()
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	if started {
		metrics.TrialStarts.WithLabelValues(metrics.ResultOK).Inc()
		log.Info("trial started", slog.Time("trial_end_at", end))
		return Result{Started: true, TrialEndAt: &end}, nil
	}

	metrics.TrialStarts.WithLabelValues(metrics.ResultSkipped).Inc()
	user, err := m.repo.GetUser(ctx, uid)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return Result{Reason: SkipNoUser}, nil
		}
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	result := Result{Reason: skipReason(user), TrialEndAt: user.TrialEndAt}
	if !user.HasWrittenFirstEntry {
		if err := m.repo.MarkFirstEntryWritten(ctx, uid); err != nil {
			log.Warn("failed to mark first entry", sl.Err(err))
		}
	}
	log.Debug("trial skipped", slog.String("reason", string(result.Reason)))
	return result, nil
}

// ExpireTrialIfNeeded переводит пробный период в expired, если он истёк.
// Без записи в хранилище, если делать нечего. Возвращает true, если статус
// изменён этим вызовом.
func (m *Manager) ExpireTrialIfNeeded(ctx context.Context, uid string, user *models.UserRecord) (bool, error) {
	const op = "trial.ExpireTrialIfNeeded"

	now := m.now()
	if user == nil || user.SubscriptionStatus != models.StatusTrialing ||
		user.TrialEndAt == nil || !now.After(*user.TrialEndAt) {
		return false, nil
	}

	expired, err := m.repo.ExpireTrial(ctx, uid, now)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if expired {
		user.SubscriptionStatus = models.StatusExpired
		m.log.Info("trial expired", slog.String("op", op), slog.String("user_uid", uid))
	}
	return expired, nil
}

func skipReason(user *models.UserRecord) SkipReason {
	switch {
	case user.TrialStartAt != nil:
		return SkipAlreadyStarted
	case user.ProOverride:
		return SkipProOverride
	case user.SubscriptionStatus == models.StatusActive:
		return SkipActivePlan
	default:
		return SkipAlreadyStarted
	}
}
