// Package password хеширует и проверяет пароли учётных записей провайдера идентификации.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinLength — минимальная длина пароля.
const MinLength = 8

var (
	// ErrTooShort — пароль короче MinLength.
	ErrTooShort = errors.New("password is too short")
	// ErrMismatch — пароль не соответствует хэшу.
	ErrMismatch = errors.New("password does not match")
)

// Hash возвращает bcrypt-хэш пароля.
func Hash(password string) (string, error) {
	const op = "password.Hash"
	if len(password) < MinLength {
		return "", fmt.Errorf("%s: %w", op, ErrTooShort)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashed), nil
}

// Compare сравнивает хэш с введённым паролем. Несовпадение — ErrMismatch.
func Compare(hash, password string) error {
	const op = "password.Compare"
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return fmt.Errorf("%s: %w", op, ErrMismatch)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
