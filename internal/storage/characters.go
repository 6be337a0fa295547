package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v3"

	"github.com/annel0/packetguard/internal/player"
)

// CharacterStore хранит персонажей по ID учетной записи.
type CharacterStore interface {
	// LoadCharacter возвращает false, если персонаж еще не сохранялся.
	LoadCharacter(ctx context.Context, accountID int64) (player.Character, bool, error)
	SaveCharacter(ctx context.Context, accountID int64, c player.Character) error
}

// BadgerCharacterStore — персонажи в BadgerDB, JSON сжат zstd.
type BadgerCharacterStore struct {
	db *DB
}

func NewBadgerCharacterStore(db *DB) *BadgerCharacterStore {
	return &BadgerCharacterStore{db: db}
}

func characterKey(accountID int64) []byte {
	return []byte(fmt.Sprintf("character:%d", accountID))
}

func (s *BadgerCharacterStore) LoadCharacter(ctx context.Context, accountID int64) (player.Character, bool, error) {
	var c player.Character
	if err := ctx.Err(); err != nil {
		return c, false, err
	}
	var data []byte
	err := s.db.view(func(txn *badger.Txn) error {
		item, err := txn.Get(characterKey(accountID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return c, false, nil
	}
	if err != nil {
		return c, false, fmt.Errorf("ошибка чтения персонажа %d: %w", accountID, err)
	}

	raw, err := s.db.decompress(data)
	if err != nil {
		return c, false, fmt.Errorf("ошибка распаковки персонажа %d: %w", accountID, err)
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, false, fmt.Errorf("ошибка десериализации персонажа %d: %w", accountID, err)
	}
	return c, true, nil
}

func (s *BadgerCharacterStore) SaveCharacter(ctx context.Context, accountID int64, c player.Character) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("ошибка сериализации персонажа: %w", err)
	}
	return s.db.update(func(txn *badger.Txn) error {
		return txn.Set(characterKey(accountID), s.db.compress(data))
	})
}

// MemoryCharacterStore — хранилище в памяти.
type MemoryCharacterStore struct {
	mu    sync.RWMutex
	chars map[int64]player.Character
}

func NewMemoryCharacterStore() *MemoryCharacterStore {
	return &MemoryCharacterStore{chars: make(map[int64]player.Character)}
}

func (m *MemoryCharacterStore) LoadCharacter(_ context.Context, accountID int64) (player.Character, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chars[accountID]
	return c, ok, nil
}

func (m *MemoryCharacterStore) SaveCharacter(_ context.Context, accountID int64, c player.Character) error {
	m.mu.Lock()
	m.chars[accountID] = c
	m.mu.Unlock()
	return nil
}
