package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBcryptPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "hunter2"))
	assert.False(t, CheckPassword(hash, "Hunter2"))
	assert.False(t, NeedsRehash(hash))
}

func TestLegacyHashIsCaseInsensitive(t *testing.T) {
	upper := LegacyHash("hunter2")
	assert.Len(t, upper, 128)
	assert.True(t, CheckPassword(upper, "hunter2"))
	assert.True(t, CheckPassword(strings.ToLower(upper), "hunter2"), "регистр hex не важен")
	assert.False(t, CheckPassword(upper, "hunter3"))
	assert.False(t, CheckPassword("", ""))
	assert.True(t, NeedsRehash(upper))
}

func TestMemoryRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepo()
	u, err := repo.CreateUser(ctx, "Alice", "hash", "default")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)

	_, err = repo.CreateUser(ctx, "alice", "hash", "default")
	assert.ErrorIs(t, err, ErrUserExists)

	got, err := repo.GetUserByUsername(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Username)

	require.NoError(t, repo.SetUUID(ctx, u.ID, "uuid-1"))
	got, err = repo.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "uuid-1", got.UUID)

	_, err = repo.GetUserByUsername(ctx, "bob")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.ErrorIs(t, repo.TouchLogin(ctx, 99), ErrUserNotFound)
}
