// Package billing сверяет состояние подписки пользователя с платёжным
// провайдером.
//
// Все billing-поля записи пользователя пишутся только через
// UpsertSubscriptionState (и ClearSubscription для удалённой подписки).
// Каждый снимок провайдера считается полной истиной на момент снимка:
// повторный вызов с тем же снимком даёт то же состояние, а порядок
// доставки событий не отслеживается (побеждает последняя запись).
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/journal-accounts/internal/lib/apperr"
	"github.com/magabrotheeeer/journal-accounts/internal/lib/sl"
	"github.com/magabrotheeeer/journal-accounts/internal/metrics"
	"github.com/magabrotheeeer/journal-accounts/internal/models"
)

// UserRepository описывает операции хранилища с billing-полями.
type UserRepository interface {
	GetUser(ctx context.Context, uid string) (*models.UserRecord, error)
	FindUserByBillingCustomer(ctx context.Context, customerID string) (*models.UserRecord, error)
	UpdateBillingState(ctx context.Context, uid string, state models.BillingState) error
	ClearSubscription(ctx context.Context, uid string) error
	LinkBillingCustomer(ctx context.Context, uid, customerID string) error
}

// Provider описывает вызовы платёжного провайдера.
type Provider interface {
	GetSubscription(ctx context.Context, id string) (*models.SubscriptionSnapshot, error)
	ListSubscriptions(ctx context.Context, customerID string) ([]*models.SubscriptionSnapshot, error)
	SetCancelAtPeriodEnd(ctx context.Context, id string, cancel bool) (*models.SubscriptionSnapshot, error)
	CreateCustomer(ctx context.Context, email, userUID string) (string, error)
	CreateCheckoutSession(ctx context.Context, params models.CheckoutParams) (*models.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*models.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

// PrincipalReader возвращает учётную запись провайдера идентификации.
type PrincipalReader interface {
	GetPrincipal(ctx context.Context, uid string) (*models.Principal, error)
}

// Cache сбрасывает закэшированную запись пользователя после записи.
type Cache interface {
	Invalidate(ctx context.Context, key string) error
}

// SyncResult — итог ручной сверки. Found=false со статусом "none" —
// нормальное состояние пользователя без подписки.
type SyncResult struct {
	Found  bool   `json:"found"`
	Status string `json:"status"`
}

// VerifyResult — итог проверки checkout-сессии.
type VerifyResult struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
}

// Service реализует сверку подписок.
type Service struct {
	repo       UserRepository
	provider   Provider
	principals PrincipalReader
	cache      Cache
	cacheKey   func(uid string) string
	log        *slog.Logger
}

// New создаёт Service. cache может быть nil.
func New(repo UserRepository, provider Provider, principals PrincipalReader, cache Cache,
	cacheKey func(uid string) string, log *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		provider:   provider,
		principals: principals,
		cache:      cache,
		cacheKey:   cacheKey,
		log:        log,
	}
}

// LocalStatus переводит статус провайдера в локальный: active и trialing
// становятся active, остальные сохраняются как есть.
func LocalStatus(providerStatus string) models.SubscriptionStatus {
	switch providerStatus {
	case "active", "trialing":
		return models.StatusActive
	case "":
		return models.StatusNone
	default:
		return models.SubscriptionStatus(providerStatus)
	}
}

// UpsertSubscriptionState записывает billing-поля из снимка целиком.
// Пустой customerID берётся из снимка; если нет и там, сохранённый клиент
// не меняется.
func (s *Service) UpsertSubscriptionState(ctx context.Context, uid, customerID string, snap *models.SubscriptionSnapshot) error {
	const op = "billing.UpsertSubscriptionState"
	if snap == nil {
		return fmt.Errorf("%s: nil snapshot", op)
	}
	if customerID == "" {
		customerID = snap.CustomerID
	}

	state := models.BillingState{
		CustomerID:        customerID,
		SubscriptionID:    snap.ID,
		PriceID:           snap.PriceID,
		Status:            LocalStatus(snap.Status),
		CurrentPeriodEnd:  snap.CurrentPeriodEnd,
		CancelAtPeriodEnd: snap.CancelAtPeriodEnd,
	}
	if err := s.repo.UpdateBillingState(ctx, uid, state); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, uid)

	s.log.Info("subscription state upserted",
		slog.String("op", op),
		slog.String("user_uid", uid),
		slog.String("subscription_id", snap.ID),
		slog.String("status", string(state.Status)),
	)
	return nil
}

// HandleWebhookEvent обрабатывает проверенное событие провайдера.
// Событие, для которого не нашёлся пользователь, логируется и считается
// обработанным. Ошибка возвращается только при сбоях хранилища или
// провайдера, чтобы провайдер повторил доставку.
func (s *Service) HandleWebhookEvent(ctx context.Context, ev *models.BillingEvent) error {
	const op = "billing.HandleWebhookEvent"
	log := s.log.With(slog.String("op", op), slog.String("event_id", ev.ID), slog.String("event_type", ev.Type))

	var (
		handled bool
		err     error
	)
	switch ev.Kind {
	case models.EventCheckoutCompleted:
		handled, err = s.onCheckoutCompleted(ctx, log, ev.Checkout)
	case models.EventSubscriptionUpdated:
		handled, err = s.onSubscriptionUpdated(ctx, log, ev.Subscription)
	case models.EventSubscriptionDeleted:
		handled, err = s.onSubscriptionDeleted(ctx, log, ev.Subscription)
	default:
		log.Debug("event ignored")
	}

	switch {
	case err != nil:
		metrics.WebhookEvents.WithLabelValues(ev.Type, metrics.ResultError).Inc()
		log.Error("failed to handle event", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	case handled:
		metrics.WebhookEvents.WithLabelValues(ev.Type, metrics.ResultOK).Inc()
	default:
		metrics.WebhookEvents.WithLabelValues(ev.Type, metrics.ResultIgnored).Inc()
	}
	return nil
}

func (s *Service) onCheckoutCompleted(ctx context.Context, log *slog.Logger, session *models.CheckoutSession) (bool, error) {
	if session == nil || session.Mode != models.CheckoutModeSubscription {
		log.Debug("checkout is not a subscription")
		return false, nil
	}

	user, err := s.resolveCheckoutUser(ctx, session)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			log.Warn("no user for checkout session",
				slog.String("session_id", session.ID), slog.String("customer_id", session.CustomerID))
			return false, nil
		}
		return false, err
	}

	snap := session.Subscription
	if snap == nil {
		if session.SubscriptionID == "" {
			log.Warn("checkout session without subscription", slog.String("session_id", session.ID))
			return false, nil
		}
		snap, err = s.provider.GetSubscription(ctx, session.SubscriptionID)
		if err != nil {
			return false, err
		}
	}
	return true, s.UpsertSubscriptionState(ctx, user.UID, session.CustomerID, snap)
}

// resolveCheckoutUser ищет пользователя по user_id из метаданных сессии,
// затем по клиенту провайдера.
func (s *Service) resolveCheckoutUser(ctx context.Context, session *models.CheckoutSession) (*models.UserRecord, error) {
	if uid := session.Metadata[models.MetadataUserID]; uid != "" {
		user, err := s.repo.GetUser(ctx, uid)
		if err == nil || !errors.Is(err, models.ErrUserNotFound) {
			return user, err
		}
	}
	if session.CustomerID == "" {
		return nil, models.ErrUserNotFound
	}
	return s.repo.FindUserByBillingCustomer(ctx, session.CustomerID)
}

func (s *Service) onSubscriptionUpdated(ctx context.Context, log *slog.Logger, snap *models.SubscriptionSnapshot) (bool, error) {
	user, ok, err := s.userForSnapshot(ctx, log, snap)
	if err != nil || !ok {
		return false, err
	}
	return true, s.UpsertSubscriptionState(ctx, user.UID, snap.CustomerID, snap)
}

func (s *Service) onSubscriptionDeleted(ctx context.Context, log *slog.Logger, snap *models.SubscriptionSnapshot) (bool, error) {
	user, ok, err := s.userForSnapshot(ctx, log, snap)
	if err != nil || !ok {
		return false, err
	}
	if err := s.repo.ClearSubscription(ctx, user.UID); err != nil {
		return false, err
	}
	s.invalidate(ctx, user.UID)
	log.Info("subscription cleared", slog.String("user_uid", user.UID), slog.String("subscription_id", snap.ID))
	return true, nil
}

func (s *Service) userForSnapshot(ctx context.Context, log *slog.Logger, snap *models.SubscriptionSnapshot) (*models.UserRecord, bool, error) {
	if snap == nil || snap.CustomerID == "" {
		log.Warn("subscription event without customer")
		return nil, false, nil
	}
	user, err := s.repo.FindUserByBillingCustomer(ctx, snap.CustomerID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			log.Warn("no user for customer", slog.String("customer_id", snap.CustomerID))
			return nil, false, nil
		}
		return nil, false, err
	}
	return user, true, nil
}

// SyncSubscription сверяет подписку по запросу пользователя: по известной
// подписке, иначе по первой подписке известного клиента.
func (s *Service) SyncSubscription(ctx context.Context, uid string) (SyncResult, error) {
	const op = "billing.SyncSubscription"

	user, err := s.getUser(ctx, uid)
	if err != nil {
		return SyncResult{}, err
	}

	var snap *models.SubscriptionSnapshot
	switch {
	case user.BillingSubscriptionID != "":
		snap, err = s.provider.GetSubscription(ctx, user.BillingSubscriptionID)
		if err != nil {
			return SyncResult{}, apperr.Wrap(apperr.Internal, "failed to fetch subscription", fmt.Errorf("%s: %w", op, err))
		}
	case user.BillingCustomerID != "":
		subs, err := s.provider.ListSubscriptions(ctx, user.BillingCustomerID)
		if err != nil {
			return SyncResult{}, apperr.Wrap(apperr.Internal, "failed to list subscriptions", fmt.Errorf("%s: %w", op, err))
		}
		if len(subs) > 0 {
			snap = subs[0]
		}
	}
	if snap == nil {
		return SyncResult{Found: false, Status: string(models.StatusNone)}, nil
	}

	if err := s.UpsertSubscriptionState(ctx, uid, user.BillingCustomerID, snap); err != nil {
		return SyncResult{}, apperr.Wrap(apperr.Internal, "failed to save subscription", err)
	}
	return SyncResult{Found: true, Status: string(LocalStatus(snap.Status))}, nil
}

// ReactivateSubscription снимает отмену подписки в конце периода.
func (s *Service) ReactivateSubscription(ctx context.Context, uid string) error {
	const op = "billing.ReactivateSubscription"

	user, err := s.getUser(ctx, uid)
	if err != nil {
		return err
	}
	if user.BillingSubscriptionID == "" {
		return apperr.New(apperr.FailedPrecondition, "no subscription on file")
	}

	snap, err := s.provider.SetCancelAtPeriodEnd(ctx, user.BillingSubscriptionID, false)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to reactivate subscription", fmt.Errorf("%s: %w", op, err))
	}
	if err := s.UpsertSubscriptionState(ctx, uid, user.BillingCustomerID, snap); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to save subscription", err)
	}
	return nil
}

// CreateCheckoutSession создаёт checkout-сессию и возвращает её URL.
// Клиент провайдера создаётся и привязывается при первом обращении.
func (s *Service) CreateCheckoutSession(ctx context.Context, uid, priceID, successURL, cancelURL string) (string, error) {
	const op = "billing.CreateCheckoutSession"

	if priceID == "" {
		return "", apperr.New(apperr.InvalidArgument, "priceId is required")
	}
	user, err := s.getUser(ctx, uid)
	if err != nil {
		return "", err
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "failed to create customer", fmt.Errorf("%s: %w", op, err))
	}

	session, err := s.provider.CreateCheckoutSession(ctx, models.CheckoutParams{
		UserID:     uid,
		CustomerID: customerID,
		PriceID:    priceID,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
	})
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "failed to create checkout session", fmt.Errorf("%s: %w", op, err))
	}
	return session.URL, nil
}

func (s *Service) ensureCustomer(ctx context.Context, user *models.UserRecord) (string, error) {
	if user.BillingCustomerID != "" {
		return user.BillingCustomerID, nil
	}

	var email string
	principal, err := s.principals.GetPrincipal(ctx, user.UID)
	switch {
	case err == nil:
		email = principal.Email
	case errors.Is(err, models.ErrPrincipalNotFound):
		s.log.Warn("principal missing, creating customer without email", slog.String("user_uid", user.UID))
	default:
		return "", err
	}

	customerID, err := s.provider.CreateCustomer(ctx, email, user.UID)
	if err != nil {
		return "", err
	}
	if err := s.repo.LinkBillingCustomer(ctx, user.UID, customerID); err != nil {
		return "", err
	}
	s.invalidate(ctx, user.UID)
	return customerID, nil
}

// CreateCustomerPortal создаёт сессию портала клиента и возвращает её URL.
func (s *Service) CreateCustomerPortal(ctx context.Context, uid, returnURL string) (string, error) {
	const op = "billing.CreateCustomerPortal"

	if returnURL == "" {
		return "", apperr.New(apperr.InvalidArgument, "returnUrl is required")
	}
	user, err := s.getUser(ctx, uid)
	if err != nil {
		return "", err
	}
	if user.BillingCustomerID == "" {
		return "", apperr.New(apperr.FailedPrecondition, "no billing customer on file")
	}

	url, err := s.provider.CreatePortalSession(ctx, user.BillingCustomerID, returnURL)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "failed to create portal session", fmt.Errorf("%s: %w", op, err))
	}
	return url, nil
}

// VerifyCheckoutSession проверяет завершённую checkout-сессию и сразу
// записывает состояние подписки, не дожидаясь вебхука.
func (s *Service) VerifyCheckoutSession(ctx context.Context, uid, sessionID string) (VerifyResult, error) {
	const op = "billing.VerifyCheckoutSession"

	if sessionID == "" {
		return VerifyResult{}, apperr.New(apperr.InvalidArgument, "sessionId is required")
	}
	user, err := s.getUser(ctx, uid)
	if err != nil {
		return VerifyResult{}, err
	}

	session, err := s.provider.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return VerifyResult{}, apperr.Wrap(apperr.Internal, "failed to fetch checkout session", fmt.Errorf("%s: %w", op, err))
	}
	if !sessionBelongsTo(session, user) {
		return VerifyResult{}, apperr.New(apperr.NotFound, "checkout session not found")
	}
	if session.PaymentStatus != "paid" && session.PaymentStatus != "no_payment_required" {
		return VerifyResult{}, apperr.New(apperr.FailedPrecondition, "checkout session is not paid")
	}

	snap := session.Subscription
	if snap == nil {
		if session.SubscriptionID == "" {
			return VerifyResult{}, apperr.New(apperr.FailedPrecondition, "checkout session has no subscription")
		}
		snap, err = s.provider.GetSubscription(ctx, session.SubscriptionID)
		if err != nil {
			return VerifyResult{}, apperr.Wrap(apperr.Internal, "failed to fetch subscription", fmt.Errorf("%s: %w", op, err))
		}
	}

	if err := s.UpsertSubscriptionState(ctx, uid, session.CustomerID, snap); err != nil {
		return VerifyResult{}, apperr.Wrap(apperr.Internal, "failed to save subscription", err)
	}
	return VerifyResult{Success: true, Status: string(LocalStatus(snap.Status))}, nil
}

func sessionBelongsTo(session *models.CheckoutSession, user *models.UserRecord) bool {
	if uid := session.Metadata[models.MetadataUserID]; uid != "" {
		return uid == user.UID
	}
	return session.CustomerID != "" && session.CustomerID == user.BillingCustomerID
}

func (s *Service) getUser(ctx context.Context, uid string) (*models.UserRecord, error) {
	user, err := s.repo.GetUser(ctx, uid)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, apperr.Wrap(apperr.NotFound, "user not found", err)
		}
		return nil, apperr.Wrap(apperr.Internal, "failed to read user", err)
	}
	return user, nil
}

func (s *Service) invalidate(ctx context.Context, uid string) {
	if s.cache == nil || s.cacheKey == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, s.cacheKey(uid)); err != nil {
		s.log.Warn("failed to invalidate user cache", slog.String("user_uid", uid), sl.Err(err))
	}
}
