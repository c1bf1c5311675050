package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/journal-accounts/internal/lib/password"
	"github.com/magabrotheeeer/journal-accounts/internal/models"
)

type MockPrincipalRepository struct {
	mock.Mock
}

func (m *MockPrincipalRepository) RegisterPrincipal(ctx context.Context, email, hash string) (*models.Principal, error) {
	args := m.Called(ctx, email, hash)
	p, _ := args.Get(0).(*models.Principal)
	return p, args.Error(1)
}

func (m *MockPrincipalRepository) GetPrincipal(ctx context.Context, uid string) (*models.Principal, error) {
	args := m.Called(ctx, uid)
	p, _ := args.Get(0).(*models.Principal)
	return p, args.Error(1)
}

func (m *MockPrincipalRepository) GetPrincipalByEmail(ctx context.Context, email string) (*models.Principal, error) {
	args := m.Called(ctx, email)
	p, _ := args.Get(0).(*models.Principal)
	return p, args.Error(1)
}

func (m *MockPrincipalRepository) DeletePrincipal(ctx context.Context, uid string) (bool, error) {
	args := m.Called(ctx, uid)
	return args.Bool(0), args.Error(1)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("пароль хешируется", func(t *testing.T) {
		repo := new(MockPrincipalRepository)
		repo.On("RegisterPrincipal", ctx, "a@b.c", mock.MatchedBy(func(hash string) bool {
			return password.Compare(hash, "longenough") == nil
		})).Return(&models.Principal{UID: "u1", Email: "a@b.c"}, nil)

		p, err := New(repo).Register(ctx, "a@b.c", "longenough")
		require.NoError(t, err)
		assert.Equal(t, "u1", p.UID)
		repo.AssertExpectations(t)
	})

	t.Run("короткий пароль", func(t *testing.T) {
		repo := new(MockPrincipalRepository)
		_, err := New(repo).Register(ctx, "a@b.c", "short")
		require.ErrorIs(t, err, password.ErrTooShort)
		repo.AssertNotCalled(t, "RegisterPrincipal", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("занятый email", func(t *testing.T) {
		repo := new(MockPrincipalRepository)
		repo.On("RegisterPrincipal", ctx, "a@b.c", mock.Anything).Return(nil, models.ErrEmailTaken)
		_, err := New(repo).Register(ctx, "a@b.c", "longenough")
		require.ErrorIs(t, err, models.ErrEmailTaken)
	})
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	hash, err := password.Hash("correct-horse")
	require.NoError(t, err)

	tests := []struct {
		name    string
		setup   func(repo *MockPrincipalRepository)
		pass    string
		wantErr error
	}{
		{
			name: "верный пароль",
			setup: func(repo *MockPrincipalRepository) {
				repo.On("GetPrincipalByEmail", ctx, "a@b.c").Return(&models.Principal{UID: "u1", PasswordHash: hash}, nil)
			},
			pass: "correct-horse",
		},
		{
			name: "неверный пароль",
			setup: func(repo *MockPrincipalRepository) {
				repo.On("GetPrincipalByEmail", ctx, "a@b.c").Return(&models.Principal{UID: "u1", PasswordHash: hash}, nil)
			},
			pass:    "wrong-horse",
			wantErr: ErrInvalidCredentials,
		},
		{
			name: "неизвестный email",
			setup: func(repo *MockPrincipalRepository) {
				repo.On("GetPrincipalByEmail", ctx, "a@b.c").Return(nil, models.ErrPrincipalNotFound)
			},
			pass:    "correct-horse",
			wantErr: ErrInvalidCredentials,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockPrincipalRepository)
			tt.setup(repo)
			p, err := New(repo).Authenticate(ctx, "a@b.c", tt.pass)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "u1", p.UID)
		})
	}
}

func TestDeletePrincipal(t *testing.T) {
	ctx := context.Background()

	repo := new(MockPrincipalRepository)
	repo.On("DeletePrincipal", ctx, "u1").Return(true, nil).Once()
	repo.On("DeletePrincipal", ctx, "u2").Return(false, nil).Once()
	repo.On("DeletePrincipal", ctx, "u3").Return(false, errors.New("db down")).Once()
	p := New(repo)

	require.NoError(t, p.DeletePrincipal(ctx, "u1"))
	require.ErrorIs(t, p.DeletePrincipal(ctx, "u2"), models.ErrPrincipalNotFound)
	err := p.DeletePrincipal(ctx, "u3")
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrPrincipalNotFound)
}
