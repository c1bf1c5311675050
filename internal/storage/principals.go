package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/magabrotheeeer/journal-accounts/internal/models"
)

// RegisterPrincipal создаёт учётную запись и пустую запись пользователя
// в одной транзакции. Занятый email возвращает models.ErrEmailTaken.
func (s *Storage) RegisterPrincipal(ctx context.Context, email, passwordHash string) (*models.Principal, error) {
	const op = "storage.RegisterPrincipal"
	if err := alive(ctx, op); err != nil {
		return nil, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	p := models.Principal{Email: normalizeEmail(email), PasswordHash: passwordHash}
	err = tx.QueryRowContext(ctx, `INSERT INTO principals (email, password_hash)
		VALUES ($1, $2)
		RETURNING uid, created_at`, p.Email, p.PasswordHash).Scan(&p.UID, &p.CreatedAt)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return nil, fmt.Errorf("%s: %w", op, models.ErrEmailTaken)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO users (uid) VALUES ($1) ON CONFLICT (uid) DO NOTHING`, p.UID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}

// GetPrincipal возвращает учётную запись по uid.
func (s *Storage) GetPrincipal(ctx context.Context, uid string) (*models.Principal, error) {
	const op = "storage.GetPrincipal"
	if err := alive(ctx, op); err != nil {
		return nil, err
	}

	var p models.Principal
	err := s.DB.QueryRowContext(ctx, `SELECT uid, email, password_hash, created_at
		FROM principals WHERE uid = $1`, uid).Scan(&p.UID, &p.Email, &p.PasswordHash, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, principalLookupErr(err))
	}
	return &p, nil
}

// GetPrincipalByEmail возвращает учётную запись по email.
func (s *Storage) GetPrincipalByEmail(ctx context.Context, email string) (*models.Principal, error) {
	const op = "storage.GetPrincipalByEmail"
	if err := alive(ctx, op); err != nil {
		return nil, err
	}

	var p models.Principal
	err := s.DB.QueryRowContext(ctx, `SELECT uid, email, password_hash, created_at
		FROM principals WHERE email = $1`, normalizeEmail(email)).Scan(&p.UID, &p.Email, &p.PasswordHash, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, principalLookupErr(err))
	}
	return &p, nil
}

// DeletePrincipal удаляет учётную запись. Возвращает false, если её не было.
func (s *Storage) DeletePrincipal(ctx context.Context, uid string) (bool, error) {
	const op = "storage.DeletePrincipal"
	if err := alive(ctx, op); err != nil {
		return false, err
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM principals WHERE uid = $1`, uid)
	if err != nil {
		if pgCode(err) == pgInvalidTextPresent {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

func principalLookupErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) || pgCode(err) == pgInvalidTextPresent {
		return models.ErrPrincipalNotFound
	}
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
