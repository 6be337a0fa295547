package auth

import "time"

// User — учетная запись игрока.
type User struct {
	ID           int64     // неизменяемый идентификатор
	Username     string    // уникальное имя (без учета регистра)
	PasswordHash string    // bcrypt или устаревший SHA-512 hex
	UUID         string    // клиентский идентификатор последнего входа
	Group        string    // группа прав
	CreatedAt    time.Time // время регистрации
	LastLogin    time.Time // последний успешный вход
}
