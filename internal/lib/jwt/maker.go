// Package jwt реализует выпуск и разбор JWT токенов, которыми клиент
// подтверждает свою личность при вызове операций сервиса.
//
// Субъект токена (sub) — идентификатор учётной записи провайдера
// идентификации, он же ключ записи пользователя.
package jwt

import (
	"time"
)

// Maker описывает выпуск и разбор токенов.
type Maker interface {
	GenerateToken(userUID, email string) (string, error)
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl реализует Maker на HMAC-SHA256 с общим секретом.
type MakerImpl struct {
	secretKey string        // Секретный ключ подписи
	tokenTTL  time.Duration // Время жизни токена
	issuer    string
}

// NewJWTMaker создаёт MakerImpl.
func NewJWTMaker(secretKey string, ttl time.Duration, issuer string) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
		issuer:    issuer,
	}
}
