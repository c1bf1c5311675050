package billing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/journal-accounts/internal/lib/apperr"
	"github.com/magabrotheeeer/journal-accounts/internal/models"
	"github.com/magabrotheeeer/journal-accounts/internal/services/access"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

// memRepo хранит записи пользователей в памяти и считает записи billing-полей.
type memRepo struct {
	mu           sync.Mutex
	users        map[string]*models.UserRecord
	billingWrite int
	writeErr     error
}

func newMemRepo(users ...*models.UserRecord) *memRepo {
	r := &memRepo{users: make(map[string]*models.UserRecord)}
	for _, u := range users {
		r.users[u.UID] = u
	}
	return r
}

func (r *memRepo) get(uid string) models.UserRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.users[uid]
}

func (r *memRepo) GetUser(_ context.Context, uid string) (*models.UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[uid]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memRepo) FindUserByBillingCustomer(_ context.Context, customerID string) (*models.UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.BillingCustomerID == customerID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (r *memRepo) UpdateBillingState(_ context.Context, uid string, st models.BillingState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writeErr != nil {
		return r.writeErr
	}
	u, ok := r.users[uid]
	if !ok {
		return models.ErrUserNotFound
	}
	r.billingWrite++
	if st.CustomerID != "" {
		u.BillingCustomerID = st.CustomerID
	}
	u.BillingSubscriptionID = st.SubscriptionID
	u.BillingPriceID = st.PriceID
	u.SubscriptionStatus = st.Status
	u.BillingCurrentPeriodEnd = st.CurrentPeriodEnd
	u.BillingCancelAtPeriodEnd = st.CancelAtPeriodEnd
	return nil
}

func (r *memRepo) ClearSubscription(_ context.Context, uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[uid]
	if !ok {
		return models.ErrUserNotFound
	}
	u.SubscriptionStatus = models.StatusExpired
	u.BillingSubscriptionID = ""
	u.BillingPriceID = ""
	u.BillingCurrentPeriodEnd = nil
	return nil
}

func (r *memRepo) LinkBillingCustomer(_ context.Context, uid, customerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[uid]; ok && u.BillingCustomerID == "" {
		u.BillingCustomerID = customerID
	}
	return nil
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) GetSubscription(ctx context.Context, id string) (*models.SubscriptionSnapshot, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*models.SubscriptionSnapshot)
	return s, args.Error(1)
}

func (m *MockProvider) ListSubscriptions(ctx context.Context, customerID string) ([]*models.SubscriptionSnapshot, error) {
	args := m.Called(ctx, customerID)
	s, _ := args.Get(0).([]*models.SubscriptionSnapshot)
	return s, args.Error(1)
}

func (m *MockProvider) SetCancelAtPeriodEnd(ctx context.Context, id string, cancel bool) (*models.SubscriptionSnapshot, error) {
	args := m.Called(ctx, id, cancel)
	s, _ := args.Get(0).(*models.SubscriptionSnapshot)
	return s, args.Error(1)
}

func (m *MockProvider) CreateCustomer(ctx context.Context, email, uid string) (string, error) {
	args := m.Called(ctx, email, uid)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) CreateCheckoutSession(ctx context.Context, p models.CheckoutParams) (*models.CheckoutSession, error) {
	args := m.Called(ctx, p)
	s, _ := args.Get(0).(*models.CheckoutSession)
	return s, args.Error(1)
}

func (m *MockProvider) GetCheckoutSession(ctx context.Context, id string) (*models.CheckoutSession, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*models.CheckoutSession)
	return s, args.Error(1)
}

func (m *MockProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	args := m.Called(ctx, customerID, returnURL)
	return args.String(0), args.Error(1)
}

type stubPrincipals map[string]string

func (p stubPrincipals) GetPrincipal(_ context.Context, uid string) (*models.Principal, error) {
	email, ok := p[uid]
	if !ok {
		return nil, models.ErrPrincipalNotFound
	}
	return &models.Principal{UID: uid, Email: email}, nil
}

type recordingCache struct {
	mu   sync.Mutex
	keys []string
}

func (c *recordingCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, key)
	return nil
}

func newService(repo *memRepo, provider *MockProvider) *Service {
	return New(repo, provider, stubPrincipals{"u1": "u1@example.com"}, &recordingCache{},
		func(uid string) string { return "user:" + uid }, newNoopLogger())
}

func periodEnd() *time.Time {
	t := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	return &t
}

func activeSnapshot() *models.SubscriptionSnapshot {
	return &models.SubscriptionSnapshot{
		ID:               "sub_1",
		CustomerID:       "cus_1",
		Status:           "active",
		CurrentPeriodEnd: periodEnd(),
		PriceID:          "price_1",
	}
}

func TestLocalStatus(t *testing.T) {
	tests := []struct {
		in   string
		want models.SubscriptionStatus
	}{
		{in: "active", want: models.StatusActive},
		{in: "trialing", want: models.StatusActive},
		{in: "past_due", want: "past_due"},
		{in: "canceled", want: models.StatusCanceled},
		{in: "incomplete_expired", want: "incomplete_expired"},
		{in: "", want: models.StatusNone},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, LocalStatus(tt.in))
		})
	}
}

func TestUpsertSubscriptionState_Idempotent(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo(&models.UserRecord{UID: "u1", SubscriptionStatus: models.StatusTrialing})
	svc := newService(repo, new(MockProvider))

	snap := activeSnapshot()
	snap.Status = "trialing"
	snap.CancelAtPeriodEnd = true

	require.NoError(t, svc.UpsertSubscriptionState(ctx, "u1", "cus_1", snap))
	first := repo.get("u1")
	require.NoError(t, svc.UpsertSubscriptionState(ctx, "u1", "cus_1", snap))
	second := repo.get("u1")

	assert.Equal(t, first, second)
	assert.Equal(t, models.StatusActive, second.SubscriptionStatus)
	assert.Equal(t, "cus_1", second.BillingCustomerID)
	assert.Equal(t, "sub_1", second.BillingSubscriptionID)
	assert.Equal(t, "price_1", second.BillingPriceID)
	assert.True(t, second.BillingCancelAtPeriodEnd)
	assert.Equal(t, periodEnd(), second.BillingCurrentPeriodEnd)
}

func TestUpsertSubscriptionState_PassThroughStatus(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo(&models.UserRecord{UID: "u1", BillingCustomerID: "cus_1"})
	svc := newService(repo, new(MockProvider))

	snap := activeSnapshot()
	snap.Status = "past_due"
	require.NoError(t, svc.UpsertSubscriptionState(ctx, "u1", "", snap))
	assert.Equal(t, models.SubscriptionStatus("past_due"), repo.get("u1").SubscriptionStatus)
}

func TestHandleWebhookEvent_CheckoutCompleted(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo(&models.UserRecord{UID: "u1", BillingCustomerID: "cus_1", SubscriptionStatus: models.StatusTrialing})
	provider := new(MockProvider)
	provider.On("GetSubscription", ctx, "sub_1").Return(activeSnapshot(), nil).Once()
	svc := newService(repo, provider)

	err := svc.HandleWebhookEvent(ctx, &models.BillingEvent{
		ID:   "evt_1",
		Kind: models.EventCheckoutCompleted,
		Type: string(models.EventCheckoutCompleted),
		Checkout: &models.CheckoutSession{
			ID:             "cs_1",
			Mode:           models.CheckoutModeSubscription,
			CustomerID:     "cus_1",
			SubscriptionID: "sub_1",
			Metadata:       map[string]string{},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, repo.billingWrite, "ровно один upsert")
	user := repo.get("u1")
	assert.Equal(t, models.AccessPro, access.Evaluate(&user, time.Now()))
	provider.AssertExpectations(t)
}

func TestHandleWebhookEvent_CheckoutResolution(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		session    *models.CheckoutSession
		wantWrites int
		wantUser   string
	}{
		{
			name: "пользователь из метаданных",
			session: &models.CheckoutSession{
				Mode: models.CheckoutModeSubscription, CustomerID: "cus_new",
				Metadata:     map[string]string{models.MetadataUserID: "u2"},
				Subscription: activeSnapshot(),
			},
			wantWrites: 1,
			wantUser:   "u2",
		},
		{
			name: "метаданные указывают на удалённого пользователя, поиск по клиенту",
			session: &models.CheckoutSession{
				Mode: models.CheckoutModeSubscription, CustomerID: "cus_1",
				Metadata:     map[string]string{models.MetadataUserID: "ghost"},
				Subscription: activeSnapshot(),
			},
			wantWrites: 1,
			wantUser:   "u1",
		},
		{
			name: "не подписка",
			session: &models.CheckoutSession{
				Mode: "payment", CustomerID: "cus_1", Subscription: activeSnapshot(),
			},
		},
		{
			name: "пользователь не найден",
			session: &models.CheckoutSession{
				Mode: models.CheckoutModeSubscription, CustomerID: "cus_unknown", Subscription: activeSnapshot(),
			},
		},
		{
			name: "нет подписки в сессии",
			session: &models.CheckoutSession{
				Mode: models.CheckoutModeSubscription, CustomerID: "cus_1",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo(
				&models.UserRecord{UID: "u1", BillingCustomerID: "cus_1"},
				&models.UserRecord{UID: "u2"},
			)
			svc := newService(repo, new(MockProvider))
			err := svc.HandleWebhookEvent(ctx, &models.BillingEvent{
				Kind: models.EventCheckoutCompleted, Type: string(models.EventCheckoutCompleted), Checkout: tt.session,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantWrites, repo.billingWrite)
			if tt.wantUser != "" {
				assert.Equal(t, "sub_1", repo.get(tt.wantUser).BillingSubscriptionID)
			}
		})
	}
}

func TestHandleWebhookEvent_SubscriptionUpdated(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo(&models.UserRecord{UID: "u1", BillingCustomerID: "cus_1"})
	svc := newService(repo, new(MockProvider))

	snap := activeSnapshot()
	snap.CancelAtPeriodEnd = true
	ev := &models.BillingEvent{Kind: models.EventSubscriptionUpdated, Type: string(models.EventSubscriptionUpdated), Subscription: snap}

	require.NoError(t, svc.HandleWebhookEvent(ctx, ev))
	require.NoError(t, svc.HandleWebhookEvent(ctx, ev))
	user := repo.get("u1")
	assert.Equal(t, models.StatusActive, user.SubscriptionStatus)
	assert.True(t, user.BillingCancelAtPeriodEnd)
}

func TestHandleWebhookEvent_SubscriptionDeleted(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo(&models.UserRecord{
		UID:                     "u1",
		BillingCustomerID:       "cus_1",
		BillingSubscriptionID:   "sub_1",
		BillingPriceID:          "price_1",
		BillingCurrentPeriodEnd: periodEnd(),
		SubscriptionStatus:      models.StatusActive,
	})
	svc := newService(repo, new(MockProvider))

	snap := activeSnapshot()
	snap.Status = "canceled"
	err := svc.HandleWebhookEvent(ctx, &models.BillingEvent{
		Kind: models.EventSubscriptionDeleted, Type: string(models.EventSubscriptionDeleted), Subscription: snap,
	})
	require.NoError(t, err)

	user := repo.get("u1")
	assert.Equal(t, models.StatusExpired, user.SubscriptionStatus)
	assert.Empty(t, user.BillingSubscriptionID)
	assert.Empty(t, user.BillingPriceID)
	assert.Nil(t, user.BillingCurrentPeriodEnd)
	assert.Equal(t, "cus_1", user.BillingCustomerID)
}

func TestHandleWebhookEvent_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("ошибка провайдера возвращается", func(t *testing.T) {
		repo := newMemRepo(&models.UserRecord{UID: "u1", BillingCustomerID: "cus_1"})
		provider := new(MockProvider)
		provider.On("GetSubscription", ctx, "sub_1").Return(nil, errors.New("timeout"))
		svc := newService(repo, provider)

		err := svc.HandleWebhookEvent(ctx, &models.BillingEvent{
			Kind: models.EventCheckoutCompleted, Type: string(models.EventCheckoutCompleted),
			Checkout: &models.CheckoutSession{Mode: models.CheckoutModeSubscription, CustomerID: "cus_1", SubscriptionID: "sub_1"},
		})
		require.Error(t, err)
	})

	t.Run("ошибка хранилища возвращается", func(t *testing.T) {
		repo := newMemRepo(&models.UserRecord{UID: "u1", BillingCustomerID: "cus_1"})
		repo.writeErr = errors.New("db down")
		svc := newService(repo, new(MockProvider))

		err := svc.HandleWebhookEvent(ctx, &models.BillingEvent{
			Kind: models.EventSubscriptionUpdated, Type: string(models.EventSubscriptionUpdated), Subscription: activeSnapshot(),
		})
		require.Error(t, err)
	})

	t.Run("неизвестное событие игнорируется", func(t *testing.T) {
		repo := newMemRepo()
		svc := newService(repo, new(MockProvider))
		require.NoError(t, svc.HandleWebhookEvent(ctx, &models.BillingEvent{Kind: models.EventUnknown, Type: "invoice.paid"}))
	})
}

func TestSyncSubscription(t *testing.T) {
	ctx := context.Background()

	t.Run("по известной подписке", func(t *testing.T) {
		repo := newMemRepo(&models.UserRecord{UID: "u1", BillingCustomerID: "cus_1", BillingSubscriptionID: "sub_1"})
		provider := new(MockProvider)
		snap := activeSnapshot()
		snap.Status = "past_due"
		provider.On("GetSubscription", ctx, "sub_1").Return(snap, nil)

		res, err := newService(repo, provider).SyncSubscription(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, SyncResult{Found: true, Status: "past_due"}, res)
		assert.Equal(t, models.SubscriptionStatus("past_due"), repo.get("u1").SubscriptionStatus)
	})

	t.Run("по первой подписке клиента", func(t *testing.T) {
		repo := newMemRepo(&models.UserRecord{UID: "u1", BillingCustomerID: "cus_1"})
		provider := new(MockProvider)
		provider.On("ListSubscriptions", ctx, "cus_1").Return([]*models.SubscriptionSnapshot{activeSnapshot()}, nil)

		res, err := newService(repo, provider).SyncSubscription(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, SyncResult{Found: true, Status: "active"}, res)
		assert.Equal(t, "sub_1", repo.get("u1").BillingSubscriptionID)
	})

	t.Run("у клиента нет подписок", func(t *testing.T) {
		repo := newMemRepo(&models.UserRecord{UID: "u1", BillingCustomerID: "cus_1"})
		provider := new(MockProvider)
		provider.On("ListSubscriptions", ctx, "cus_1").Return([]*models.SubscriptionSnapshot{}, nil)

		res, err := newService(repo, provider).SyncSubscription(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, SyncResult{Found: false, Status: "none"}, res)
		assert.Zero(t, repo.billingWrite)
	})

	t.Run("нет ни подписки, ни клиента", func(t *testing.T) {
		repo := newMemRepo(&models.UserRecord{UID: "u1"})
		provider := new(MockProvider)

		res, err := newService(repo, provider).SyncSubscription(ctx, "u1")
		require.NoError(t, err)
		assert.False(t, res.Found)
		provider.AssertNotCalled(t, "ListSubscriptions", mock.Anything, mock.Anything)
	})

	t.Run("ошибка провайдера", func(t *testing.T) {
		repo := newMemRepo(&models.UserRecord{UID: "u1", BillingSubscriptionID: "sub_1"})
		provider := new(MockProvider)
		provider.On("GetSubscription", ctx, "sub_1").Return(nil, errors.New("timeout"))

		_, err := newService(repo, provider).SyncSubscription(ctx, "u1")
		assert.Equal(t, apperr.Internal, apperr.KindOf(err))
	})
}

func TestReactivateSubscription(t *testing.T) {
	ctx := context.Background()

	t.Run("без подписки", func(t *testing.T) {
		repo := newMemRepo(&models.UserRecord{UID: "u1"})
		err := newService(repo, new(MockProvider)).ReactivateSubscription(ctx, "u1")
		assert.Equal(t, apperr.FailedPrecondition, apperr.KindOf(err))
	})

	t.Run("снимает отмену", func(t *testing.T) {
		repo := newMemRepo(&models.UserRecord{
			UID: "u1", BillingCustomerID: "cus_1", BillingSubscriptionID: "sub_1", BillingCancelAtPeriodEnd: true,
		})
		provider := new(MockProvider)
		provider.On("SetCancelAtPeriodEnd", ctx, "sub_1", false).Return(activeSnapshot(), nil)

		require.NoError(t, newService(repo, provider).ReactivateSubscription(ctx, "u1"))
		assert.False(t, repo.get("u1").BillingCancelAtPeriodEnd)
		provider.AssertExpectations(t)
	})

	t.Run("нет пользователя", func(t *testing.T) {
		err := newService(newMemRepo(), new(MockProvider)).ReactivateSubscription(ctx, "ghost")
		assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	})
}

func TestCreateCheckoutSession(t *testing.T) {
	ctx := context.Background()

	t.Run("без priceId", func(t *testing.T) {
		_, err := newService(newMemRepo(), new(MockProvider)).CreateCheckoutSession(ctx, "u1", "", "s", "c")
		assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))
	})

	t.Run("нет пользователя", func(t *testing.T) {
		_, err := newService(newMemRepo(), new(MockProvider)).CreateCheckoutSession(ctx, "u1", "price_1", "s", "c")
		assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	})

	t.Run("создаёт и привязывает клиента", func(t *testing.T) {
		repo := newMemRepo(&models.UserRecord{UID: "u1"})
		provider := new(MockProvider)
		provider.On("CreateCustomer", ctx, "u1@example.com", "u1").Return("cus_new", nil).Once()
		provider.On("CreateCheckoutSession", ctx, models.CheckoutParams{
			UserID: "u1", CustomerID: "cus_new", PriceID: "price_1", SuccessURL: "https://app/ok", CancelURL: "https://app/no",
		}).Return(&models.CheckoutSession{ID: "cs_1", URL: "https://checkout/cs_1"}, nil)

		url, err := newService(repo, provider).CreateCheckoutSession(ctx, "u1", "price_1", "https://app/ok", "https://app/no")
		require.NoError(t, err)
		assert.Equal(t, "https://checkout/cs_1", url)
		assert.Equal(t, "cus_new", repo.get("u1").BillingCustomerID)
		provider.AssertExpectations(t)
	})

	t.Run("существующий клиент", func(t *testing.T) {
		repo := newMemRepo(&models.UserRecord{UID: "u1", BillingCustomerID: "cus_1"})
		provider := new(MockProvider)
		provider.On("CreateCheckoutSession", ctx, mock.MatchedBy(func(p models.CheckoutParams) bool {
			return p.CustomerID == "cus_1"
		})).Return(&models.CheckoutSession{URL: "https://checkout/x"}, nil)

		_, err := newService(repo, provider).CreateCheckoutSession(ctx, "u1", "price_1", "s", "c")
		require.NoError(t, err)
		provider.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCreateCustomerPortal(t *testing.T) {
	ctx := context.Background()

	t.Run("без клиента", func(t *testing.T) {
		repo := newMemRepo(&models.UserRecord{UID: "u1"})
		_, err := newService(repo, new(MockProvider)).CreateCustomerPortal(ctx, "u1", "https://app")
		assert.Equal(t, apperr.FailedPrecondition, apperr.KindOf(err))
	})

	t.Run("без returnUrl", func(t *testing.T) {
		_, err := newService(newMemRepo(), new(MockProvider)).CreateCustomerPortal(ctx, "u1", "")
		assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))
	})

	t.Run("успех", func(t *testing.T) {
		repo := newMemRepo(&models.UserRecord{UID: "u1", BillingCustomerID: "cus_1"})
		provider := new(MockProvider)
		provider.On("CreatePortalSession", ctx, "cus_1", "https://app").Return("https://portal/1", nil)

		url, err := newService(repo, provider).CreateCustomerPortal(ctx, "u1", "https://app")
		require.NoError(t, err)
		assert.Equal(t, "https://portal/1", url)
	})
}

func TestVerifyCheckoutSession(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		session  *models.CheckoutSession
		wantKind apperr.Kind
		want     VerifyResult
	}{
		{
			name: "оплачено",
			session: &models.CheckoutSession{
				ID: "cs_1", PaymentStatus: "paid", CustomerID: "cus_1",
				Metadata: map[string]string{models.MetadataUserID: "u1"}, Subscription: activeSnapshot(),
			},
			want: VerifyResult{Success: true, Status: "active"},
		},
		{
			name: "чужая сессия",
			session: &models.CheckoutSession{
				ID: "cs_1", PaymentStatus: "paid", Metadata: map[string]string{models.MetadataUserID: "u2"},
			},
			wantKind: apperr.NotFound,
		},
		{
			name: "не оплачено",
			session: &models.CheckoutSession{
				ID: "cs_1", PaymentStatus: "unpaid", CustomerID: "cus_1", Metadata: map[string]string{},
			},
			wantKind: apperr.FailedPrecondition,
		},
		{
			name: "без подписки",
			session: &models.CheckoutSession{
				ID: "cs_1", PaymentStatus: "paid", CustomerID: "cus_1", Metadata: map[string]string{},
			},
			wantKind: apperr.FailedPrecondition,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo(&models.UserRecord{UID: "u1", BillingCustomerID: "cus_1"})
			provider := new(MockProvider)
			provider.On("GetCheckoutSession", ctx, "cs_1").Return(tt.session, nil)

			res, err := newService(repo, provider).VerifyCheckoutSession(ctx, "u1", "cs_1")
			if tt.wantKind != "" {
				assert.Equal(t, tt.wantKind, apperr.KindOf(err))
				assert.Zero(t, repo.billingWrite)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, res)
			assert.Equal(t, 1, repo.billingWrite)
		})
	}

	t.Run("без sessionId", func(t *testing.T) {
		_, err := newService(newMemRepo(), new(MockProvider)).VerifyCheckoutSession(ctx, "u1", "")
		assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))
	})
}
