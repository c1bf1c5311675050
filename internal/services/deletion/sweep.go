package deletion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/journal-accounts/internal/lib/sl"
	"github.com/magabrotheeeer/journal-accounts/internal/metrics"
)

// SweepReport — итог одного прохода очистки.
type SweepReport struct {
	Selected int
	Deleted  int
	Skipped  int
	Failed   int
}

// Sweep удаляет аккаунты, у которых scheduled_for_deletion_at <= now - grace.
// Каждый аккаунт обрабатывается со своим таймаутом; сбой или зависание
// одного аккаунта не мешает остальным. Аккаунт, восстановленный после
// выборки, пропускается.
func (s *Service) Sweep(ctx context.Context, now time.Time) (SweepReport, error) {
	const op = "deletion.Sweep"
	log := s.log.With(slog.String("op", op))

	cutoff := now.Add(-s.opts.GracePeriod)
	uids, err := s.repo.FindUsersScheduledBefore(ctx, cutoff)
	if err != nil {
		return SweepReport{}, fmt.Errorf("%s: %w", op, err)
	}
	report := SweepReport{Selected: len(uids)}
	log.Info("sweep started", slog.Int("selected", len(uids)), slog.Time("cutoff", cutoff))

	for _, uid := range uids {
		if ctx.Err() != nil {
			log.Warn("sweep interrupted", sl.Err(ctx.Err()))
			break
		}
		switch err := s.sweepOne(ctx, uid, cutoff); {
		case errors.Is(err, errRestored):
			report.Skipped++
			metrics.SweepAccounts.WithLabelValues(metrics.ResultSkipped).Inc()
		case err != nil:
			report.Failed++
			metrics.SweepAccounts.WithLabelValues(metrics.ResultError).Inc()
			log.Error("account deletion failed", slog.String("user_uid", uid), sl.Err(err))
		default:
			report.Deleted++
			metrics.SweepAccounts.WithLabelValues(metrics.ResultOK).Inc()
		}
	}

	log.Info("sweep finished",
		slog.Int("deleted", report.Deleted),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
	)
	return report, nil
}

type sweepError string

func (e sweepError) Error() string { return string(e) }

const errRestored = sweepError("account restored")

// sweepOne удаляет один аккаунт в отдельной горутине, чтобы зависший
// вызов внешнего сервиса не задерживал проход дольше таймаута.
func (s *Service) sweepOne(parent context.Context, uid string, cutoff time.Time) error {
	ctx, cancel := context.WithTimeout(parent, s.opts.AccountTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- s.deleteIfStillScheduled(ctx, uid, cutoff)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("account %s: %w", uid, ctx.Err())
	}
}

func (s *Service) deleteIfStillScheduled(ctx context.Context, uid string, cutoff time.Time) error {
	user, err := s.repo.GetUser(ctx, uid)
	if err != nil {
		return fmt.Errorf("re-read user: %w", err)
	}
	if user.ScheduledForDeletionAt == nil || user.ScheduledForDeletionAt.After(cutoff) {
		return errRestored
	}
	return s.PermanentlyDelete(ctx, uid)
}

// RunDaily выполняет очистку сразу и затем с интервалом SweepInterval,
// пока ctx не отменён.
func (s *Service) RunDaily(ctx context.Context) {
	s.runSweep(ctx)

	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.runSweep(ctx)
		}
	}
}

func (s *Service) runSweep(ctx context.Context) {
	if _, err := s.Sweep(ctx, s.now()); err != nil {
		s.log.Error("sweep failed", sl.Err(err))
	}
}
