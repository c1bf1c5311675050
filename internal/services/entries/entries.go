// Package entries создаёт записи дневника. Создание разрешено только при
// уровне доступа trial или pro; первая запись открывает пробный период.
package entries

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/journal-accounts/internal/lib/apperr"
	"github.com/magabrotheeeer/journal-accounts/internal/lib/sl"
	"github.com/magabrotheeeer/journal-accounts/internal/models"
	"github.com/magabrotheeeer/journal-accounts/internal/services/access"
	"github.com/magabrotheeeer/journal-accounts/internal/services/trial"
)

// Repository — операции хранилища для записей.
type Repository interface {
	GetUser(ctx context.Context, uid string) (*models.UserRecord, error)
	CreateEntry(ctx context.Context, entry models.JournalEntry) (*models.JournalEntry, error)
}

// TrialStarter открывает пробный период.
type TrialStarter interface {
	StartTrialIfEligible(ctx context.Context, uid string) (trial.Result, error)
}

// Invalidator сбрасывает закэшированную запись пользователя.
type Invalidator interface {
	Invalidate(ctx context.Context, key string) error
}

// Service создаёт записи дневника.
type Service struct {
	repo     Repository
	trials   TrialStarter
	cache    Invalidator
	cacheKey func(uid string) string
	now      func() time.Time
	log      *slog.Logger
}

// New создаёт Service. cache может быть nil.
func New(repo Repository, trials TrialStarter, cache Invalidator, cacheKey func(uid string) string,
	log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		trials:   trials,
		cache:    cache,
		cacheKey: cacheKey,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log,
	}
}

// WithClock подменяет источник времени.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create проверяет доступ, сохраняет запись и открывает пробный период,
// если это первая запись. Ошибка открытия пробного периода не отменяет
// уже сохранённую запись.
func (s *Service) Create(ctx context.Context, uid, content string, attachments []string) (*models.JournalEntry, error) {
	const op = "entries.Create"
	log := s.log.With(slog.String("op", op), slog.String("user_uid", uid))

	if strings.TrimSpace(content) == "" {
		return nil, apperr.New(apperr.InvalidArgument, "content is required")
	}

	user, err := s.repo.GetUser(ctx, uid)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, apperr.Wrap(apperr.NotFound, "user not found", err)
		}
		return nil, apperr.Wrap(apperr.Internal, "failed to read user", fmt.Errorf("%s: %w", op, err))
	}
	if user.ScheduledForDeletion() {
		return nil, apperr.New(apperr.FailedPrecondition, "account is scheduled for deletion")
	}
	if level := access.Evaluate(user, s.now()); !access.CanCreateEntries(level) {
		return nil, apperr.New(apperr.FailedPrecondition, "trial has ended, subscription required")
	}

	entry, err := s.repo.CreateEntry(ctx, models.JournalEntry{
		UserUID:     uid,
		Content:     content,
		Attachments: attachments,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to save entry", fmt.Errorf("%s: %w", op, err))
	}

	result, err := s.trials.StartTrialIfEligible(ctx, uid)
	if err != nil {
		log.Error("failed to start trial", sl.Err(err))
		return entry, nil
	}
	if result.Started {
		s.invalidate(ctx, uid, log)
	}
	return entry, nil
}

func (s *Service) invalidate(ctx context.Context, uid string, log *slog.Logger) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, s.cacheKey(uid)); err != nil {
		log.Warn("failed to invalidate user cache", sl.Err(err))
	}
}
