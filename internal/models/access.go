package models

// AccessLevel — производный уровень доступа пользователя. Не хранится.
type AccessLevel string

const (
	AccessTrial   AccessLevel = "trial"
	AccessPro     AccessLevel = "pro"
	AccessExpired AccessLevel = "expired"
)
