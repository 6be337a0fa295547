// Package storage — локальное хранилище на BadgerDB: журнал принятых правок мира
// и сохраненные персонажи. Значения сжимаются zstd.
package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"
)

// ErrClosed — хранилище уже закрыто.
var ErrClosed = errors.New("storage: хранилище закрыто")

// DB — общая база для журнала и персонажей.
type DB struct {
	db      *badger.DB
	mutex   sync.RWMutex
	isReady bool

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Open открывает базу в каталоге dataPath. Пустой путь — база в памяти (для тестов).
func Open(dataPath string) (*DB, error) {
	var opts badger.Options
	if dataPath == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(filepath.Clean(dataPath))
	}
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	return &DB{db: db, isReady: true, enc: enc, dec: dec}, nil
}

// Close закрывает базу. Повторный вызов ничего не делает.
func (d *DB) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if !d.isReady {
		return nil
	}
	d.isReady = false
	d.enc.Close()
	d.dec.Close()
	return d.db.Close()
}

func (d *DB) compress(data []byte) []byte {
	return d.enc.EncodeAll(data, make([]byte, 0, len(data)/2))
}

func (d *DB) decompress(data []byte) ([]byte, error) {
	return d.dec.DecodeAll(data, nil)
}

// view / update выполняют транзакцию, пока база открыта.
func (d *DB) view(fn func(txn *badger.Txn) error) error {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	if !d.isReady {
		return ErrClosed
	}
	return d.db.View(fn)
}

func (d *DB) update(fn func(txn *badger.Txn) error) error {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	if !d.isReady {
		return ErrClosed
	}
	return d.db.Update(fn)
}
