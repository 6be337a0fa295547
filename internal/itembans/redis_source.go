package itembans

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
)

// RedisSource хранит запреты в хеше Redis: поле — имя предмета,
// значение — разрешенные группы через запятую.
type RedisSource struct {
	client *redis.Client
	key    string
}

// NewRedisSource подключается к Redis и проверяет соединение.
func NewRedisSource(ctx context.Context, addr, password string, db int, key string) (*RedisSource, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("не удалось подключиться к Redis %s: %w", addr, err)
	}
	return &RedisSource{client: client, key: key}, nil
}

// NewRedisSourceWithClient использует готовый клиент.
func NewRedisSourceWithClient(client *redis.Client, key string) *RedisSource {
	return &RedisSource{client: client, key: key}
}

func (s *RedisSource) Load(ctx context.Context) ([]Ban, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения %s: %w", s.key, err)
	}
	bans := make([]Ban, 0, len(fields))
	for name, groups := range fields {
		bans = append(bans, Ban{Name: name, AllowedGroups: splitGroups(groups)})
	}
	return bans, nil
}

// Put сохраняет запрет.
func (s *RedisSource) Put(ctx context.Context, b Ban) error {
	if err := s.client.HSet(ctx, s.key, b.Name, strings.Join(b.AllowedGroups, ",")).Err(); err != nil {
		return fmt.Errorf("ошибка записи запрета %q: %w", b.Name, err)
	}
	return nil
}

func (s *RedisSource) Delete(ctx context.Context, name string) error {
	if err := s.client.HDel(ctx, s.key, name).Err(); err != nil {
		return fmt.Errorf("ошибка удаления запрета %q: %w", name, err)
	}
	return nil
}

func (s *RedisSource) Close() error {
	return s.client.Close()
}

func splitGroups(s string) []string {
	var out []string
	for _, g := range strings.Split(s, ",") {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}
