// Package identity — провайдер идентификации: регистрация и проверка
// учётных записей, чтение и удаление учётной записи по uid.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/journal-accounts/internal/lib/password"
	"github.com/magabrotheeeer/journal-accounts/internal/models"
)

// ErrInvalidCredentials — неизвестный email или неверный пароль.
var ErrInvalidCredentials = errors.New("invalid credentials")

// PrincipalRepository описывает хранилище учётных записей.
type PrincipalRepository interface {
	RegisterPrincipal(ctx context.Context, email, passwordHash string) (*models.Principal, error)
	GetPrincipal(ctx context.Context, uid string) (*models.Principal, error)
	GetPrincipalByEmail(ctx context.Context, email string) (*models.Principal, error)
	DeletePrincipal(ctx context.Context, uid string) (bool, error)
}

// Provider реализует операции провайдера идентификации.
type Provider struct {
	repo PrincipalRepository
}

// New создаёт Provider.
func New(repo PrincipalRepository) *Provider {
	return &Provider{repo: repo}
}

// Register создаёт учётную запись и пустую запись пользователя.
func (p *Provider) Register(ctx context.Context, email, plain string) (*models.Principal, error) {
	const op = "identity.Register"
	hash, err := password.Hash(plain)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	principal, err := p.repo.RegisterPrincipal(ctx, email, hash)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return principal, nil
}

// Authenticate проверяет email и пароль.
func (p *Provider) Authenticate(ctx context.Context, email, plain string) (*models.Principal, error) {
	const op = "identity.Authenticate"
	principal, err := p.repo.GetPrincipalByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrPrincipalNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := password.Compare(principal.PasswordHash, plain); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return principal, nil
}

// GetPrincipal возвращает учётную запись. Отсутствие — models.ErrPrincipalNotFound.
func (p *Provider) GetPrincipal(ctx context.Context, uid string) (*models.Principal, error) {
	const op = "identity.GetPrincipal"
	principal, err := p.repo.GetPrincipal(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return principal, nil
}

// DeletePrincipal удаляет учётную запись. Отсутствие — models.ErrPrincipalNotFound.
func (p *Provider) DeletePrincipal(ctx context.Context, uid string) error {
	const op = "identity.DeletePrincipal"
	deleted, err := p.repo.DeletePrincipal(ctx, uid)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !deleted {
		return fmt.Errorf("%s: %w", op, models.ErrPrincipalNotFound)
	}
	return nil
}
