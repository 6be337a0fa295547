package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// MariaUserRepo реализует UserRepository для MariaDB
type MariaUserRepo struct {
	db *sql.DB
}

// NewMariaUserRepo открывает подключение по DSN и создает таблицу users, если ее нет.
func NewMariaUserRepo(dsn string) (*MariaUserRepo, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть подключение к MariaDB: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	repo := &MariaUserRepo{db: db}
	if err := repo.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицы: %w", err)
	}
	return repo, nil
}

// createTables создает необходимые таблицы в БД
func (m *MariaUserRepo) createTables() error {
	createUsersTable := `
	CREATE TABLE IF NOT EXISTS users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(50) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		uuid VARCHAR(128) NOT NULL DEFAULT '',
		group_name VARCHAR(64) NOT NULL DEFAULT 'default',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		last_login TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_username (username)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`

	if _, err := m.db.Exec(createUsersTable); err != nil {
		return fmt.Errorf("не удалось создать таблицу users: %w", err)
	}
	return nil
}

const selectUser = `SELECT id, username, password_hash, uuid, group_name, created_at, last_login FROM users`

func scanUser(row *sql.Row) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.UUID, &user.Group,
		&user.CreatedAt, &user.LastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении пользователя: %w", err)
	}
	return &user, nil
}

// GetUserByUsername получает пользователя по имени
func (m *MariaUserRepo) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(m.db.QueryRowContext(ctx, selectUser+` WHERE username = ?`, normalize(username)))
}

// GetUserByID получает пользователя по ID
func (m *MariaUserRepo) GetUserByID(ctx context.Context, id int64) (*User, error) {
	return scanUser(m.db.QueryRowContext(ctx, selectUser+` WHERE id = ?`, id))
}

// CreateUser создает нового пользователя
func (m *MariaUserRepo) CreateUser(ctx context.Context, username, passwordHash, group string) (*User, error) {
	lower := normalize(username)
	now := time.Now()

	query := `INSERT INTO users (username, password_hash, group_name, created_at, last_login)
			  VALUES (?, ?, ?, ?, ?)`

	result, err := m.db.ExecContext(ctx, query, lower, passwordHash, group, now, now)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == 1062 {
			return nil, ErrUserExists
		}
		if strings.Contains(err.Error(), "Duplicate entry") {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("ошибка при создании пользователя: %w", err)
	}

	userID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении ID пользователя: %w", err)
	}

	return &User{
		ID:           userID,
		Username:     lower,
		PasswordHash: passwordHash,
		Group:        group,
		CreatedAt:    now,
		LastLogin:    now,
	}, nil
}

// SetUUID запоминает клиентский идентификатор
func (m *MariaUserRepo) SetUUID(ctx context.Context, id int64, uuid string) error {
	if _, err := m.db.ExecContext(ctx, `UPDATE users SET uuid = ? WHERE id = ?`, uuid, id); err != nil {
		return fmt.Errorf("ошибка при обновлении uuid: %w", err)
	}
	return nil
}

// TouchLogin обновляет время последнего входа пользователя
func (m *MariaUserRepo) TouchLogin(ctx context.Context, id int64) error {
	if _, err := m.db.ExecContext(ctx, `UPDATE users SET last_login = CURRENT_TIMESTAMP WHERE id = ?`, id); err != nil {
		return fmt.Errorf("ошибка при обновлении времени входа: %w", err)
	}
	return nil
}

// Close закрывает подключение к БД
func (m *MariaUserRepo) Close() error {
	return m.db.Close()
}
