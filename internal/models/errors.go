package models

import "errors"

var (
	// ErrUserNotFound возвращается хранилищем, если записи пользователя нет.
	ErrUserNotFound = errors.New("user not found")
	// ErrPrincipalNotFound возвращается провайдером идентификации, если учётной записи нет.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrEmailTaken возвращается при регистрации на уже занятый email.
	ErrEmailTaken = errors.New("email already registered")
)
