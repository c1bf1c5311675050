// Package services содержит регистрацию и вход пользователей: учётная
// запись создаётся в провайдере идентификации, вызывающей стороне
// выдаётся JWT с uid учётной записи в subject.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/journal-accounts/internal/identity"
	"github.com/magabrotheeeer/journal-accounts/internal/lib/apperr"
	"github.com/magabrotheeeer/journal-accounts/internal/lib/jwt"
	"github.com/magabrotheeeer/journal-accounts/internal/lib/password"
	"github.com/magabrotheeeer/journal-accounts/internal/models"
)

// IdentityProvider описывает регистрацию и проверку учётных записей.
type IdentityProvider interface {
	Register(ctx context.Context, email, password string) (*models.Principal, error)
	Authenticate(ctx context.Context, email, password string) (*models.Principal, error)
}

// AuthService отвечает за регистрацию и вход.
type AuthService struct {
	identity IdentityProvider
	jwtMaker jwt.Maker
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(identity IdentityProvider, jwtMaker jwt.Maker) *AuthService {
	return &AuthService{
		identity: identity,
		jwtMaker: jwtMaker,
	}
}

// Register создаёт учётную запись и запись пользователя, возвращает uid.
func (s *AuthService) Register(ctx context.Context, email, rawPassword string) (string, error) {
	const op = "auth.Register"
	principal, err := s.identity.Register(ctx, email, rawPassword)
	switch {
	case err == nil:
		return principal.UID, nil
	case errors.Is(err, models.ErrEmailTaken):
		return "", apperr.Wrap(apperr.FailedPrecondition, "email already registered", err)
	case errors.Is(err, password.ErrTooShort):
		return "", apperr.Wrap(apperr.InvalidArgument, "password is too short", err)
	default:
		return "", apperr.Wrap(apperr.Internal, "failed to register", fmt.Errorf("%s: %w", op, err))
	}
}

// Login проверяет email и пароль и выдаёт токен.
func (s *AuthService) Login(ctx context.Context, email, rawPassword string) (string, error) {
	const op = "auth.Login"
	principal, err := s.identity.Authenticate(ctx, email, rawPassword)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return "", apperr.Wrap(apperr.Unauthenticated, "invalid credentials", err)
		}
		return "", apperr.Wrap(apperr.Internal, "failed to login", fmt.Errorf("%s: %w", op, err))
	}
	token, err := s.jwtMaker.GenerateToken(principal.UID, principal.Email)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "failed to issue token", fmt.Errorf("%s: %w", op, err))
	}
	return token, nil
}
