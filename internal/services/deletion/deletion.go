// Package deletion управляет удалением аккаунта: мягким удалением с
// периодом ожидания, восстановлением, полным удалением и ежедневной
// очисткой аккаунтов с истёкшим периодом ожидания.
package deletion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/journal-accounts/internal/lib/apperr"
	"github.com/magabrotheeeer/journal-accounts/internal/lib/sl"
	"github.com/magabrotheeeer/journal-accounts/internal/models"
)

// Значения по умолчанию для Options.
const (
	DefaultGracePeriod    = 30 * 24 * time.Hour
	DefaultSweepInterval  = 24 * time.Hour
	DefaultAccountTimeout = 2 * time.Minute
	DefaultEntryBatch     = 500
)

// Префиксы объектов пользователя в хранилище изображений.
const (
	StickersPrefix    = "stickers/"
	EntryImagesPrefix = "entry-images/"
)

// UserRepository описывает операции хранилища, нужные для удаления.
type UserRepository interface {
	GetUser(ctx context.Context, uid string) (*models.UserRecord, error)
	SetScheduledForDeletion(ctx context.Context, uid string, at *time.Time) (*time.Time, error)
	FindUsersScheduledBefore(ctx context.Context, cutoff time.Time) ([]string, error)
	ListEntries(ctx context.Context, uid string, limit, offset int) ([]*models.JournalEntry, error)
	DeleteEntriesBatch(ctx context.Context, uid string, limit int) (int, error)
	DeleteUser(ctx context.Context, uid string) (bool, error)
}

// BillingProvider описывает вызовы провайдера, нужные для отмены подписок.
type BillingProvider interface {
	FindCustomersByEmail(ctx context.Context, email string) ([]string, error)
	ListSubscriptions(ctx context.Context, customerID string) ([]*models.SubscriptionSnapshot, error)
	CancelSubscription(ctx context.Context, id string) error
}

// ObjectStore описывает удаление изображений.
type ObjectStore interface {
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
	DeleteByURL(ctx context.Context, rawURL string) error
	ManagedURLs(owned []string, texts ...string) []string
}

// Identity описывает провайдер идентификации.
type Identity interface {
	GetPrincipal(ctx context.Context, uid string) (*models.Principal, error)
	DeletePrincipal(ctx context.Context, uid string) error
}

// Publisher публикует изменения поля scheduled_for_deletion_at.
type Publisher interface {
	PublishAccountChange(ctx context.Context, change models.AccountChange) error
}

// Cache сбрасывает закэшированную запись пользователя.
type Cache interface {
	Invalidate(ctx context.Context, key string) error
}

// Options — сроки и размеры пакетов. Нулевые значения заменяются значениями по умолчанию.
type Options struct {
	GracePeriod    time.Duration
	SweepInterval  time.Duration
	AccountTimeout time.Duration
	EntryBatch     int
}

func (o Options) withDefaults() Options {
	if o.GracePeriod <= 0 {
		o.GracePeriod = DefaultGracePeriod
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = DefaultSweepInterval
	}
	if o.AccountTimeout <= 0 {
		o.AccountTimeout = DefaultAccountTimeout
	}
	if o.EntryBatch <= 0 {
		o.EntryBatch = DefaultEntryBatch
	}
	return o
}

// Service реализует жизненный цикл удаления аккаунта.
type Service struct {
	repo      UserRepository
	billing   BillingProvider
	objects   ObjectStore
	identity  Identity
	publisher Publisher
	cache     Cache
	cacheKey  func(uid string) string
	opts      Options
	now       func() time.Time
	log       *slog.Logger
}

// Deps — внешние зависимости Service. Publisher и Cache могут быть nil.
type Deps struct {
	Repo      UserRepository
	Billing   BillingProvider
	Objects   ObjectStore
	Identity  Identity
	Publisher Publisher
	Cache     Cache
	CacheKey  func(uid string) string
}

// New создаёт Service.
func New(deps Deps, opts Options, log *slog.Logger) *Service {
	return &Service{
		repo:      deps.Repo,
		billing:   deps.Billing,
		objects:   deps.Objects,
		identity:  deps.Identity,
		publisher: deps.Publisher,
		cache:     deps.Cache,
		cacheKey:  deps.CacheKey,
		opts:      opts.withDefaults(),
		now:       func() time.Time { return time.Now().UTC() },
		log:       log,
	}
}

// WithClock подменяет источник времени.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ScheduleForDeletion переводит аккаунт в период ожидания удаления.
// Возвращает момент планирования.
func (s *Service) ScheduleForDeletion(ctx context.Context, uid string) (time.Time, error) {
	at := s.now()
	if _, err := s.setSchedule(ctx, "deletion.ScheduleForDeletion", uid, &at); err != nil {
		return time.Time{}, err
	}
	return at, nil
}

// Restore возвращает аккаунт из периода ожидания. Возвращает прежнее
// значение scheduled_for_deletion_at (nil, если удаление не планировалось).
func (s *Service) Restore(ctx context.Context, uid string) (*time.Time, error) {
	return s.setSchedule(ctx, "deletion.Restore", uid, nil)
}

func (s *Service) setSchedule(ctx context.Context, op, uid string, at *time.Time) (*time.Time, error) {
	log := s.log.With(slog.String("op", op), slog.String("user_uid", uid))

	previous, err := s.repo.SetScheduledForDeletion(ctx, uid, at)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, apperr.Wrap(apperr.NotFound, "user not found", err)
		}
		return nil, apperr.Wrap(apperr.Internal, "failed to update account", fmt.Errorf("%s: %w", op, err))
	}
	s.invalidate(ctx, uid)

	change := models.AccountChange{UserUID: uid, Before: previous, After: at, ChangedAt: s.now()}
	if s.publisher != nil {
		if err := s.publisher.PublishAccountChange(ctx, change); err != nil {
			log.Error("failed to publish account change", sl.Err(err))
		}
	}
	log.Info("deletion schedule updated", slog.Bool("scheduled", at != nil))
	return previous, nil
}

func (s *Service) invalidate(ctx context.Context, uid string) {
	if s.cache == nil || s.cacheKey == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, s.cacheKey(uid)); err != nil {
		s.log.Warn("failed to invalidate user cache", slog.String("user_uid", uid), sl.Err(err))
	}
}
