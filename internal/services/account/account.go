// Package account отдаёт клиенту состояние аккаунта: поля записи
// пользователя и вычисленный уровень доступа.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/journal-accounts/internal/lib/apperr"
	"github.com/magabrotheeeer/journal-accounts/internal/lib/sl"
	"github.com/magabrotheeeer/journal-accounts/internal/models"
	"github.com/magabrotheeeer/journal-accounts/internal/services/access"
)

// DefaultCacheTTL — время жизни записи пользователя в кэше.
const DefaultCacheTTL = time.Minute

// UserReader читает запись пользователя.
type UserReader interface {
	GetUser(ctx context.Context, uid string) (*models.UserRecord, error)
}

// TrialExpirer переводит истёкший пробный период в expired.
type TrialExpirer interface {
	ExpireTrialIfNeeded(ctx context.Context, uid string, user *models.UserRecord) (bool, error)
}

// Cache — кэш записей пользователей.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Service читает состояние аккаунта.
type Service struct {
	repo     UserReader
	trials   TrialExpirer
	cache    Cache
	cacheKey func(uid string) string
	ttl      time.Duration
	now      func() time.Time
	log      *slog.Logger
}

// New создаёт Service. Кэш может быть nil.
func New(repo UserReader, trials TrialExpirer, cache Cache, cacheKey func(uid string) string,
	ttl time.Duration, log *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Service{
		repo:     repo,
		trials:   trials,
		cache:    cache,
		cacheKey: cacheKey,
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log,
	}
}

// WithClock подменяет источник времени.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Status возвращает запись пользователя и уровень доступа. Если пробный
// период истёк, статус сначала переводится в expired.
func (s *Service) Status(ctx context.Context, uid string) (*models.AccountStatus, error) {
	const op = "account.Status"
	log := s.log.With(slog.String("op", op), slog.String("user_uid", uid))

	user, err := s.readUser(ctx, uid, log)
	if err != nil {
		return nil, err
	}

	expired, err := s.trials.ExpireTrialIfNeeded(ctx, uid, user)
	if err != nil {
		log.Error("failed to expire trial", sl.Err(err))
		return nil, apperr.Wrap(apperr.Internal, "failed to read account", fmt.Errorf("%s: %w", op, err))
	}
	if expired {
		s.invalidate(ctx, uid, log)
	}

	level := access.Evaluate(user, s.now())
	return &models.AccountStatus{
		User:        user,
		AccessLevel: level,
		CanWrite:    access.CanCreateEntries(level),
	}, nil
}

func (s *Service) readUser(ctx context.Context, uid string, log *slog.Logger) (*models.UserRecord, error) {
	const op = "account.readUser"
	var user *models.UserRecord
	if s.cache != nil {
		found, err := s.cache.Get(ctx, s.cacheKey(uid), &user)
		if err != nil {
			log.Warn("failed to read user cache", sl.Err(err))
		}
		if found && user != nil {
			return user, nil
		}
	}

	user, err := s.repo.GetUser(ctx, uid)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, apperr.Wrap(apperr.NotFound, "user not found", err)
		}
		return nil, apperr.Wrap(apperr.Internal, "failed to read account", fmt.Errorf("%s: %w", op, err))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, s.cacheKey(uid), user, s.ttl); err != nil {
			log.Warn("failed to add to cache", sl.Err(err))
		}
	}
	return user, nil
}

func (s *Service) invalidate(ctx context.Context, uid string, log *slog.Logger) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, s.cacheKey(uid)); err != nil {
		log.Warn("failed to invalidate user cache", sl.Err(err))
	}
}
