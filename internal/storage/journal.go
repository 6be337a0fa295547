package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/annel0/packetguard/internal/vec"
	"github.com/annel0/packetguard/internal/world"
)

var journalPrefix = []byte("edit:")

// JournalEntry — одна принятая правка клетки.
type JournalEntry struct {
	Seq     uint64     `json:"seq"`
	At      time.Time  `json:"at"`
	Player  int        `json:"player"`
	Account string     `json:"account,omitempty"`
	Kind    string     `json:"kind"`
	Pos     vec.Vec2   `json:"pos"`
	Before  world.Cell `json:"before"`
	After   world.Cell `json:"after"`
}

// EditJournal дописывает правки в порядке коммита. Ключи упорядочены по номеру,
// поэтому чтение с позиции — обычный проход итератора.
type EditJournal struct {
	db *DB

	mu   sync.Mutex
	next uint64
}

// NewEditJournal продолжает нумерацию после последней записи в базе.
func NewEditJournal(db *DB) (*EditJournal, error) {
	j := &EditJournal{db: db, next: 1}
	err := db.view(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()
		// обратный проход начинается с ключа не больше seek
		seek := append(append([]byte{}, journalPrefix...), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
		it.Seek(seek)
		if it.ValidForPrefix(journalPrefix) {
			j.next = seqFromKey(it.Item().Key()) + 1
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("journal: чтение последнего номера: %w", err)
	}
	return j, nil
}

func journalKey(seq uint64) []byte {
	key := make([]byte, len(journalPrefix)+8)
	copy(key, journalPrefix)
	binary.BigEndian.PutUint64(key[len(journalPrefix):], seq)
	return key
}

func seqFromKey(key []byte) uint64 {
	if len(key) < len(journalPrefix)+8 {
		return 0
	}
	return binary.BigEndian.Uint64(key[len(journalPrefix):])
}

// Append присваивает записи номер и сохраняет ее.
func (j *EditJournal) Append(ctx context.Context, e JournalEntry) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	e.Seq = j.next
	if e.At.IsZero() {
		e.At = time.Now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return 0, fmt.Errorf("journal: сериализация: %w", err)
	}
	err = j.db.update(func(txn *badger.Txn) error {
		return txn.Set(journalKey(e.Seq), j.db.compress(data))
	})
	if err != nil {
		return 0, fmt.Errorf("journal: запись %d: %w", e.Seq, err)
	}
	j.next++
	return e.Seq, nil
}

// Since возвращает до limit записей с номером >= from. limit <= 0 — без ограничения.
func (j *EditJournal) Since(ctx context.Context, from uint64, limit int) ([]JournalEntry, error) {
	var out []JournalEntry
	err := j.db.view(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(journalKey(from)); it.ValidForPrefix(journalPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if limit > 0 && len(out) >= limit {
				return nil
			}
			var e JournalEntry
			err := it.Item().Value(func(val []byte) error {
				raw, err := j.db.decompress(val)
				if err != nil {
					return err
				}
				return json.Unmarshal(raw, &e)
			})
			if err != nil {
				return fmt.Errorf("journal: запись %d: %w", seqFromKey(it.Item().Key()), err)
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

// Last — номер последней записи, 0 если журнал пуст.
func (j *EditJournal) Last() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.next - 1
}
