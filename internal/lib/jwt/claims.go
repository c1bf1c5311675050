package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims — данные, которые сервис кладёт в токен.
type CustomClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// UserUID возвращает идентификатор пользователя из subject.
func (c *CustomClaims) UserUID() string {
	return c.Subject
}

// GenerateToken создаёт подписанный токен для пользователя.
func (j *MakerImpl) GenerateToken(userUID, email string) (string, error) {
	const op = "jwt.GenerateToken"
	if userUID == "" {
		return "", fmt.Errorf("%s: empty subject", op)
	}
	now := time.Now()
	claims := CustomClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userUID,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return signed, nil
}

// ParseToken проверяет подпись, срок действия и издателя токена.
func (j *MakerImpl) ParseToken(tokenStr string) (*CustomClaims, error) {
	const op = "jwt.ParseToken"
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(j.secretKey), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: invalid token", op)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%s: %w", op, errors.New("token has no subject"))
	}
	return claims, nil
}
