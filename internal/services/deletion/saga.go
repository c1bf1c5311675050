package deletion

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

// Имена шагов полного удаления в порядке выполнения.
const (
	StepBilling     = "billing"
	StepPrefixes    = "object_prefixes"
	StepEntryImages = "entry_images"
	StepEntries     = "entries"
	StepUserRecord  = "user_record"
	StepIdentity    = "identity"
)

// target — то, что известно об аккаунте до начала удаления.
type target struct {
	uid   string
	user  *models.UserRecord
	email string
}

type step struct {
	name     string
	required bool
	run      func(ctx context.Context, t *target) error
}

func (s *Service) steps() []step {
	return []step{
		{name: StepBilling, run: s.cancelBilling},
		{name: StepPrefixes, run: s.deletePrefixes},
		{name: StepEntryImages, run: s.deleteEntryImages},
		{name: StepEntries, run: s.deleteEntries},
		{name: StepUserRecord, run: s.deleteUserRecord},
		{name: StepIdentity, required: true, run: s.deleteIdentity},
	}
}

// PermanentlyDelete удаляет аккаунт и все зависимые данные.
//
// Шаги выполняются по порядку: отмена подписок, удаление объектов по
// префиксам, удаление изображений из записей, удаление записей дневника,
// удаление записи пользователя, удаление учётной записи. Сбой любого шага,
// кроме последнего, логируется и не останавливает удаление. Ошибка
// возвращается только если не удалось удалить учётную запись; её
// отсутствие считается успехом, поэтому повторный вызов безопасен.
func (s *Service) PermanentlyDelete(ctx context.Context, uid string) error {
	const op = "deletion.PermanentlyDelete"
	log := s.log.With(slog.String("op", op), slog.String("user_uid", uid))
	started := time.Now()
	defer func() { metrics.DeletionDuration.Observe(time.Since(started).Seconds()) }()

	t := s.resolveTarget(ctx, log, uid)

	for _, st := range s.steps() {
		stepLog := log.With(slog.String("step", st.name))
		err := st.run(ctx, t)
		if err == nil {
			metrics.DeletionSteps.WithLabelValues(st.name, metrics.ResultOK).Inc()
			stepLog.Debug("step done")
			continue
		}
		metrics.DeletionSteps.WithLabelValues(st.name, metrics.ResultError).Inc()
		if st.required {
			stepLog.Error("required step failed", sl.Err(err))
			return fmt.Errorf("%s: %s: %w", op, st.name, err)
		}
		stepLog.Error("step failed, continuing", sl.Err(err))
	}

	log.Info("account permanently deleted")
	return nil
}

// resolveTarget читает запись пользователя и email до начала удаления.
// Отсутствие любого из них не мешает удалению.
func (s *Service) resolveTarget(ctx context.Context, log *slog.Logger, uid string) *target {
	t := &target{uid: uid}

	user, err := s.repo.GetUser(ctx, uid)
	switch {
	case err == nil:
		t.user = user
	case errors.Is(err, models.ErrUserNotFound):
		log.Info("user record already absent")
	default:
		log.Warn("failed to read user record", sl.Err(err))
	}

	principal, err := s.identity.GetPrincipal(ctx, uid)
	switch {
	case err == nil:
		t.email = principal.Email
	case errors.Is(err, models.ErrPrincipalNotFound):
		log.Info("principal already absent")
	default:
		log.Warn("failed to read principal", sl.Err(err))
	}
	return t
}

// cancelBilling отменяет подписки сохранённого клиента и всех клиентов
// провайдера с email пользователя.
func (s *Service) cancelBilling(ctx context.Context, t *target) error {
	customers := make(map[string]struct{})
	var errs []error

	if t.user != nil && t.user.BillingCustomerID != "" {
		customers[t.user.BillingCustomerID] = struct{}{}
	}
	if t.email != "" {
		found, err := s.billing.FindCustomersByEmail(ctx, t.email)
		if err != nil {
			errs = append(errs, fmt.Errorf("find customers by email: %w", err))
		}
		for _, id := range found {
			customers[id] = struct{}{}
		}
	}

	for customerID := range customers {
		subs, err := s.billing.ListSubscriptions(ctx, customerID)
		if err != nil {
			errs = append(errs, fmt.Errorf("list subscriptions of %s: %w", customerID, err))
			continue
		}
		for _, sub := range subs {
			if err := s.billing.CancelSubscription(ctx, sub.ID); err != nil {
				s.log.Warn("failed to cancel subscription",
					slog.String("user_uid", t.uid), slog.String("subscription_id", sub.ID), sl.Err(err))
				errs = append(errs, fmt.Errorf("cancel %s: %w", sub.ID, err))
			}
		}
	}
	return errors.Join(errs...)
}

// userPrefixes возвращает префиксы ключей, принадлежащих пользователю.
func userPrefixes(uid string) []string {
	return []string{StickersPrefix + uid + "/", EntryImagesPrefix + uid + "/"}
}

func (s *Service) deletePrefixes(ctx context.Context, t *target) error {
	var errs []error
	for _, prefix := range userPrefixes(t.uid) {
		if _, err := s.objects.DeleteByPrefix(ctx, prefix); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// deleteEntryImages удаляет изображения пользователя, на которые ссылаются
// записи дневника и стикеры. Ссылки на объекты других аккаунтов
// пропускаются: их может вставить в запись кто угодно.
func (s *Service) deleteEntryImages(ctx context.Context, t *target) error {
	var texts []string
	if t.user != nil {
		texts = append(texts, t.user.Stickers...)
	}
	for offset := 0; ; offset += s.opts.EntryBatch {
		entries, err := s.repo.ListEntries(ctx, t.uid, s.opts.EntryBatch, offset)
		if err != nil {
			return fmt.Errorf("list entries: %w", err)
		}
		for _, e := range entries {
			texts = append(texts, e.Content)
			texts = append(texts, e.Attachments...)
		}
		if len(entries) < s.opts.EntryBatch {
			break
		}
	}

	var errs []error
	for _, u := range s.objects.ManagedURLs(userPrefixes(t.uid), texts...) {
		if err := s.objects.DeleteByURL(ctx, u); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) deleteEntries(ctx context.Context, t *target) error {
	total := 0
	for {
		n, err := s.repo.DeleteEntriesBatch(ctx, t.uid, s.opts.EntryBatch)
		if err != nil {
			return fmt.Errorf("delete entries after %d: %w", total, err)
		}
		if n == 0 {
			break
		}
		total += n
	}
	s.log.Debug("entries deleted", slog.String("user_uid", t.uid), slog.Int("count", total))
	return nil
}

func (s *Service) deleteUserRecord(ctx context.Context, t *target) error {
	if _, err := s.repo.DeleteUser(ctx, t.uid); err != nil {
		return err
	}
	s.invalidate(ctx, t.uid)
	return nil
}

func (s *Service) deleteIdentity(ctx context.Context, t *target) error {
	err := s.identity.DeletePrincipal(ctx, t.uid)
	if err != nil && !errors.Is(err, models.ErrPrincipalNotFound) {
		return err
	}
	return nil
}
