package itembans

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/packetguard/internal/permissions"
)

type staticSource struct {
	bans []Ban
	err  error
}

func (s *staticSource) Load(ctx context.Context) ([]Ban, error) { return s.bans, s.err }

func TestIsBanned(t *testing.T) {
	groups := permissions.DefaultRegistry()
	r := NewRegistry(
		Ban{Name: "Lava Bucket"},
		Ban{Name: "Dynamite", AllowedGroups: []string{"vip"}},
	)

	assert.True(t, r.IsBanned("lava bucket", groups.Get("default")), "имя без учета регистра")
	assert.True(t, r.IsBanned("Dynamite", groups.Get("default")))
	assert.False(t, r.IsBanned("Dynamite", groups.Get("vip")))
	assert.False(t, r.IsBanned("Dynamite", groups.Get("admin")), "admin наследует vip")
	assert.False(t, r.IsBanned("Dirt Block", groups.Get("default")))
	assert.True(t, r.Listed("DYNAMITE"))

	assert.True(t, r.Remove("dynamite"))
	assert.False(t, r.Remove("dynamite"))
	assert.Len(t, r.List(), 1)
}

func TestReloadKeepsOldListOnError(t *testing.T) {
	r := NewRegistry(Ban{Name: "Bomb"})
	n, err := r.Reload(context.Background(), &staticSource{bans: []Ban{{Name: "Dynamite"}, {Name: "Sticky Bomb"}}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, r.Listed("Bomb"))

	_, err = r.Reload(context.Background(), &staticSource{err: errors.New("redis down")})
	assert.Error(t, err)
	assert.True(t, r.Listed("Dynamite"))
}

func TestWatcherHandle(t *testing.T) {
	r := NewRegistry()
	src := &staticSource{bans: []Ban{{Name: "Dynamite"}}}
	w := newWatcher("itembans.reload", "node-a", r, src)

	own, _ := json.Marshal(ReloadMessage{NodeID: "node-a"})
	w.handle(&nats.Msg{Subject: "itembans.reload", Data: own})
	assert.False(t, r.Listed("Dynamite"), "собственное уведомление игнорируется")

	other, _ := json.Marshal(ReloadMessage{NodeID: "node-b"})
	w.handle(&nats.Msg{Subject: "itembans.reload", Data: other})
	assert.True(t, r.Listed("Dynamite"))

	w.handle(&nats.Msg{Subject: "itembans.reload", Data: []byte("{")})
	src.err = errors.New("boom")
	w.handle(&nats.Msg{Subject: "itembans.reload"})
	reloads, failures := w.Stats()
	assert.Equal(t, int64(1), reloads)
	assert.Equal(t, int64(2), failures)
}

func TestSplitGroups(t *testing.T) {
	assert.Equal(t, []string{"vip", "admin"}, splitGroups(" vip, ,admin"))
	assert.Nil(t, splitGroups(""))
}
