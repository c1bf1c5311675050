package models

import "time"

// Principal — учётная запись провайдера идентификации.
type Principal struct {
	UID          string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
