package auth

import (
	"context"
	"errors"
)

// UserRepository — хранилище учетных записей. Реализации: память, MariaDB, MongoDB.
type UserRepository interface {
	// GetUserByUsername ищет без учета регистра; если записи нет — ErrUserNotFound.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	GetUserByID(ctx context.Context, id int64) (*User, error)

	// CreateUser ожидает уже захешированный пароль; при конфликте имени — ErrUserExists.
	CreateUser(ctx context.Context, username, passwordHash, group string) (*User, error)

	// SetUUID запоминает клиентский идентификатор для входа без пароля.
	SetUUID(ctx context.Context, id int64, uuid string) error

	// TouchLogin обновляет время последнего входа.
	TouchLogin(ctx context.Context, id int64) error
}

// Ошибки уровня домена.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)
