package regions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/packetguard/internal/permissions"
	"github.com/annel0/packetguard/internal/player"
)

type memStore struct {
	regions map[string]Region
	failErr error
}

func (s *memStore) LoadRegions(ctx context.Context) ([]Region, error) {
	var out []Region
	for _, r := range s.regions {
		out = append(out, r)
	}
	return out, s.failErr
}

func (s *memStore) SaveRegion(ctx context.Context, r Region) error {
	if s.failErr != nil {
		return s.failErr
	}
	s.regions[r.Name] = r
	return nil
}

func (s *memStore) DeleteRegion(ctx context.Context, name string) error {
	delete(s.regions, name)
	return nil
}

func newPlayer(group string, loggedIn bool, account string, id int64) *player.Player {
	reg := permissions.DefaultRegistry()
	p := player.New(1, "127.0.0.1", reg.Get(group), time.Second)
	if loggedIn {
		p.Login(id, account, reg.Get(group))
	}
	return p
}

func TestContainsIsInclusive(t *testing.T) {
	r := Rect{X: 10, Y: 10, Width: 5, Height: 5}
	assert.True(t, r.Contains(10, 10))
	assert.True(t, r.Contains(15, 15), "правая нижняя граница включается")
	assert.False(t, r.Contains(16, 15))
	assert.False(t, r.Contains(9, 12))
}

func TestTopByZ(t *testing.T) {
	ctx := context.Background()
	m := NewManager(nil)
	require.NoError(t, m.Add(ctx, Region{Name: "low", Area: Rect{0, 0, 100, 100}, Z: 0}))
	require.NoError(t, m.Add(ctx, Region{Name: "high", Area: Rect{40, 40, 10, 10}, Z: 5}))
	require.NoError(t, m.Add(ctx, Region{Name: "same", Area: Rect{0, 0, 100, 100}, Z: 0}))
	assert.Error(t, m.Add(ctx, Region{Name: "low"}))

	top, ok := m.Top(45, 45)
	require.True(t, ok)
	assert.Equal(t, "high", top.Name)

	top, _ = m.Top(1, 1)
	assert.Equal(t, "low", top.Name, "при равном Z побеждает добавленный раньше")
	assert.Equal(t, []string{"high", "low", "same"}, m.Names(45, 45))
	assert.False(t, m.InArea(500, 500))
}

func TestCanBuild(t *testing.T) {
	ctx := context.Background()
	m := NewManager(nil)
	require.NoError(t, m.Add(ctx, Region{
		Name: "spawn", Area: Rect{0, 0, 50, 50}, DisableBuild: true,
		Owner: "bob", AllowedIDs: []int64{42}, AllowedGroups: []string{"vip"},
	}))
	require.NoError(t, m.Add(ctx, Region{Name: "open", Area: Rect{100, 100, 10, 10}}))

	cases := []struct {
		name string
		p    *player.Player
		want bool
	}{
		{"гость", newPlayer(permissions.GuestGroupName, false, "", 0), false},
		{"вошедший чужой", newPlayer("default", true, "alice", 1), false},
		{"владелец", newPlayer("default", true, "bob", 2), true},
		{"разрешенный id", newPlayer("default", true, "carol", 42), true},
		{"разрешенная группа", newPlayer("vip", true, "dave", 3), true},
		{"editregion", newPlayer("admin", false, "", 0), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, m.CanBuild(tc.p, 10, 10))
		})
	}

	guest := newPlayer(permissions.GuestGroupName, false, "", 0)
	assert.True(t, m.CanBuild(guest, 105, 105), "незащищенный регион")
	assert.True(t, m.CanBuild(guest, 500, 500), "вне регионов")
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := &memStore{regions: map[string]Region{}}
	m := NewManager(store)
	require.NoError(t, m.Add(ctx, Region{Name: "a", Area: Rect{0, 0, 1, 1}}))
	require.NoError(t, m.Remove(ctx, "a"))
	assert.Error(t, m.Remove(ctx, "a"))

	store.regions["b"] = Region{Name: "b", Area: Rect{0, 0, 1, 1}, Z: 1}
	require.NoError(t, m.Reload(ctx))
	assert.Equal(t, 1, m.Count())

	store.failErr = errors.New("db down")
	assert.Error(t, m.Reload(ctx))
	assert.Equal(t, 1, m.Count(), "при ошибке старый индекс сохраняется")
}

func TestListHelpers(t *testing.T) {
	ids, err := parseIDs(" 1, 2 ,,3")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)
	assert.Equal(t, "1,2,3", joinIDs(ids))
	_, err = parseIDs("x")
	assert.Error(t, err)
}
