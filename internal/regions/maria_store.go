package regions

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql"
)

// MariaStore хранит регионы в таблице regions MariaDB/MySQL.
// Разрешенные учетные записи и группы лежат списками через запятую.
type MariaStore struct {
	db *sql.DB
}

// NewMariaStore подключается к базе и создает таблицу, если ее нет.
func NewMariaStore(dsn string) (*MariaStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}
	s := &MariaStore{db: db}
	if err := s.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицу: %w", err)
	}
	return s, nil
}

func (s *MariaStore) createTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS regions (
			id        BIGINT       AUTO_INCREMENT PRIMARY KEY,
			name      VARCHAR(64)  NOT NULL UNIQUE,
			x         INT          NOT NULL,
			y         INT          NOT NULL,
			width     INT          NOT NULL,
			height    INT          NOT NULL,
			owner     VARCHAR(64)  NOT NULL DEFAULT '',
			user_ids  TEXT         NOT NULL,
			groups_   TEXT         NOT NULL,
			protected BOOLEAN      NOT NULL DEFAULT TRUE,
			z         INT          NOT NULL DEFAULT 0
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("ошибка создания таблицы regions: %w", err)
	}
	return nil
}

// LoadRegions читает все регионы.
func (s *MariaStore) LoadRegions(ctx context.Context) ([]Region, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, x, y, width, height, owner, user_ids, groups_, protected, z FROM regions`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения регионов: %w", err)
	}
	defer rows.Close()

	var out []Region
	for rows.Next() {
		var (
			r      Region
			ids    string
			groups string
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Area.X, &r.Area.Y, &r.Area.Width, &r.Area.Height,
			&r.Owner, &ids, &groups, &r.DisableBuild, &r.Z); err != nil {
			return nil, fmt.Errorf("ошибка разбора региона: %w", err)
		}
		r.AllowedIDs, err = parseIDs(ids)
		if err != nil {
			return nil, fmt.Errorf("регион %q: %w", r.Name, err)
		}
		r.AllowedGroups = splitList(groups)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveRegion вставляет или обновляет регион по имени.
func (s *MariaStore) SaveRegion(ctx context.Context, r Region) error {
	query := `
		INSERT INTO regions (name, x, y, width, height, owner, user_ids, groups_, protected, z)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			x = VALUES(x), y = VALUES(y), width = VALUES(width), height = VALUES(height),
			owner = VALUES(owner), user_ids = VALUES(user_ids), groups_ = VALUES(groups_),
			protected = VALUES(protected), z = VALUES(z)
	`
	_, err := s.db.ExecContext(ctx, query, r.Name, r.Area.X, r.Area.Y, r.Area.Width, r.Area.Height,
		r.Owner, joinIDs(r.AllowedIDs), strings.Join(r.AllowedGroups, ","), r.DisableBuild, r.Z)
	if err != nil {
		return fmt.Errorf("ошибка сохранения региона %q: %w", r.Name, err)
	}
	return nil
}

func (s *MariaStore) DeleteRegion(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM regions WHERE name = ?`, name); err != nil {
		return fmt.Errorf("ошибка удаления региона %q: %w", name, err)
	}
	return nil
}

// Close закрывает соединение с базой данных.
func (s *MariaStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseIDs(s string) ([]int64, error) {
	var out []int64
	for _, part := range splitList(s) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("некорректный id %q: %w", part, err)
		}
		out = append(out, id)
	}
	return out, nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
