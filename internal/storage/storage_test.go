package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/packetguard/internal/player"
	"github.com/annel0/packetguard/internal/vec"
	"github.com/annel0/packetguard/internal/world"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestJournalAppendAndSince(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	j, err := NewEditJournal(db)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), j.Last())

	for i := 0; i < 5; i++ {
		seq, err := j.Append(ctx, JournalEntry{
			Player: 1,
			Kind:   "Tile",
			Pos:    vec.Vec2{X: 100 + i, Y: 50},
			Before: world.Cell{Active: true, Type: 1},
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), seq)
	}

	all, err := j.Since(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, 104, all[4].Pos.X)
	assert.Equal(t, uint16(1), all[0].Before.Type)
	assert.False(t, all[0].At.IsZero())

	page, err := j.Since(ctx, 3, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, uint64(3), page[0].Seq)
	assert.Equal(t, uint64(4), page[1].Seq)
}

func TestJournalContinuesNumbering(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	j, err := NewEditJournal(db)
	require.NoError(t, err)
	_, err = j.Append(ctx, JournalEntry{Kind: "Tile"})
	require.NoError(t, err)
	_, err = j.Append(ctx, JournalEntry{Kind: "Tile"})
	require.NoError(t, err)

	reopened, err := NewEditJournal(db)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), reopened.Last())
	seq, err := reopened.Append(ctx, JournalEntry{Kind: "Tile"})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), seq)
}

func TestCharacterStores(t *testing.T) {
	ctx := context.Background()
	var c player.Character
	c.MaxHealth = 400
	c.StoreSlot(0, player.Slot{Type: 1, Stack: 1})

	stores := map[string]CharacterStore{
		"badger": NewBadgerCharacterStore(openTestDB(t)),
		"memory": NewMemoryCharacterStore(),
	}
	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.LoadCharacter(ctx, 7)
			require.NoError(t, err)
			assert.False(t, ok, "персонаж еще не сохранен")

			require.NoError(t, s.SaveCharacter(ctx, 7, c))
			got, ok, err := s.LoadCharacter(ctx, 7)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, c, got)
		})
	}
}

func TestClosedDB(t *testing.T) {
	db, err := Open("")
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	err = NewBadgerCharacterStore(db).SaveCharacter(context.Background(), 1, player.Character{})
	assert.ErrorIs(t, err, ErrClosed)
}
