package network

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/packetguard/internal/auth"
	"github.com/annel0/packetguard/internal/catalog"
	"github.com/annel0/packetguard/internal/config"
	"github.com/annel0/packetguard/internal/guard"
	"github.com/annel0/packetguard/internal/hooks"
	"github.com/annel0/packetguard/internal/permissions"
	"github.com/annel0/packetguard/internal/player"
	"github.com/annel0/packetguard/internal/protocol"
	"github.com/annel0/packetguard/internal/vec"
	"github.com/annel0/packetguard/internal/world"
)

const (
	itemDirtBlock = 2
	tileStone     = 1
	tileDirt      = 0
)

// recorder — Conn, запоминающий отправленные кадры.
type recorder struct {
	mu     sync.Mutex
	frames []protocol.Frame
	closed bool
}

func (r *recorder) Write(b []byte) (int, error) {
	f, err := protocol.SplitFrame(b)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
	return len(b), nil
}

func (r *recorder) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *recorder) kinds() []protocol.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]protocol.Kind, 0, len(r.frames))
	for _, f := range r.frames {
		out = append(out, f.Kind)
	}
	return out
}

func (r *recorder) last(t *testing.T, kind protocol.Kind) protocol.Record {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.frames) - 1; i >= 0; i-- {
		if r.frames[i].Kind != kind {
			continue
		}
		rec, err := protocol.Decode(kind, r.frames[i].Payload)
		if err != nil {
			rec, err = protocol.DecodeServer(kind, r.frames[i].Payload)
		}
		require.NoError(t, err)
		return rec
	}
	t.Fatalf("кадр %s не отправлен", kind)
	return nil
}

type fixture struct {
	w       *world.World
	g       *guard.Guard
	hub     *Hub
	metrics *Metrics
	d       *Dispatcher
}

func newFixture(t *testing.T, mutate func(*config.GuardConfig)) *fixture {
	t.Helper()
	wc := config.Default().World
	wc.Width, wc.Height = 400, 200
	wc.SpawnX, wc.SpawnY = 200, 100
	w := world.New(wc, catalog.Default())

	cfg := config.DefaultGuardConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	g := guard.New(cfg, guard.Deps{World: w, Users: auth.NewMemoryUserRepo()})
	hub := NewHub(8)
	m := NewMetrics(prometheus.NewRegistry())
	return &fixture{
		w:       w,
		g:       g,
		hub:     hub,
		metrics: m,
		d:       NewDispatcher(g, nil, NewRelay(g, hub, m), m),
	}
}

// join регистрирует авторизованного игрока на клетке (100, 48) с блоками земли.
func (f *fixture) join(t *testing.T) (*player.Player, *recorder) {
	t.Helper()
	rc := &recorder{}
	p, err := f.hub.Join(rc, func(index int) *player.Player {
		p := player.New(index, "127.0.0.1", permissions.DefaultRegistry().Get(permissions.DefaultGroupName), time.Second)
		p.Name = "tester"
		p.ReceivedInfo = true
		p.State = player.StateAuthenticated
		p.LastNetPosition = vec.Vec2Float{X: 100 * vec.TileSize, Y: 48 * vec.TileSize}
		p.Character.StoreSlot(0, player.Slot{Type: itemDirtBlock, Stack: 100})
		return p
	})
	require.NoError(t, err)
	f.w.JoinAvatar(world.Avatar{Index: p.Index, Name: p.Name, Pos: p.LastNetPosition, Life: 100, LifeMax: 100})
	return p, rc
}

func frameOf(t *testing.T, rec protocol.Record) protocol.Frame {
	t.Helper()
	f, err := protocol.SplitFrame(protocol.Encode(rec))
	require.NoError(t, err)
	return f
}

func TestCommittedEditIsRelayedToEveryone(t *testing.T) {
	f := newFixture(t, nil)
	p, sender := f.join(t)
	_, other := f.join(t)

	res := f.d.Handle(context.Background(), p, frameOf(t, &protocol.Tile{Action: protocol.TilePlaceTile, X: 100, Y: 50, EditData: tileDirt}))

	require.Equal(t, guard.Commit, res.Outcome)
	assert.Equal(t, []protocol.Kind{protocol.KindTile}, sender.kinds())
	assert.Equal(t, []protocol.Kind{protocol.KindTile}, other.kinds())
	tile := other.last(t, protocol.KindTile).(*protocol.Tile)
	assert.EqualValues(t, 100, tile.X)
	assert.Equal(t, uint64(1), p.Status().Messages)
}

func TestRejectedEditCorrectsOnlySender(t *testing.T) {
	f := newFixture(t, nil)
	p, sender := f.join(t)
	_, other := f.join(t)
	f.w.SetCell(vec.Vec2{X: 100, Y: 50}, world.Cell{Active: true, Type: tileStone})

	res := f.d.Handle(context.Background(), p, frameOf(t, &protocol.Tile{Action: protocol.TileKillTile, X: 100, Y: 50}))

	require.Equal(t, guard.Reject, res.Outcome)
	assert.Equal(t, []protocol.Kind{protocol.KindTileSendSquare}, sender.kinds())
	assert.Empty(t, other.kinds(), "другие соединения ничего не получают")
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.verdicts.WithLabelValues("Tile", "reject", "tool")))
}

func TestMalformedFrameIsDiscarded(t *testing.T) {
	f := newFixture(t, nil)
	p, sender := f.join(t)

	res := f.d.Handle(context.Background(), p, protocol.Frame{Kind: protocol.KindTile, Payload: []byte{1, 2}})

	assert.Equal(t, guard.Drop, res.Outcome)
	assert.Equal(t, "decode", res.Check)
	assert.Empty(t, sender.kinds())
	assert.False(t, p.Tracker.Disabled(), "битый кадр не влияет на соединение")
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.decodeErrors.WithLabelValues("Tile")))

	t.Run("следующее сообщение обрабатывается", func(t *testing.T) {
		res := f.d.Handle(context.Background(), p, frameOf(t, &protocol.Tile{Action: protocol.TilePlaceTile, X: 100, Y: 50, EditData: tileDirt}))
		assert.Equal(t, guard.Commit, res.Outcome)
	})
}

func TestHandledHookSkipsPipeline(t *testing.T) {
	f := newFixture(t, nil)
	p, sender := f.join(t)

	var seen int
	unsubscribe := hooks.On(f.d.Hooks(), "deny-tiles", func(rec *protocol.Tile, ev *hooks.Event) {
		seen++
		ev.Handled = true
	})

	res := f.d.Handle(context.Background(), p, frameOf(t, &protocol.Tile{Action: protocol.TilePlaceTile, X: 100, Y: 50, EditData: tileDirt}))
	assert.Equal(t, "hook", res.Check)
	assert.Equal(t, 1, seen)
	assert.False(t, f.w.Cell(vec.Vec2{X: 100, Y: 50}).Active, "коммита нет")
	assert.Empty(t, sender.kinds(), "и исправлений тоже")

	unsubscribe()
	res = f.d.Handle(context.Background(), p, frameOf(t, &protocol.Tile{Action: protocol.TilePlaceTile, X: 100, Y: 50, EditData: tileDirt}))
	assert.Equal(t, guard.Commit, res.Outcome)
	assert.Equal(t, 1, seen)
}

func TestHookCanRewriteRecord(t *testing.T) {
	f := newFixture(t, nil)
	p, _ := f.join(t)

	hooks.On(f.d.Hooks(), "shift", func(rec *protocol.Tile, ev *hooks.Event) {
		rec.X = 101
	})

	res := f.d.Handle(context.Background(), p, frameOf(t, &protocol.Tile{Action: protocol.TilePlaceTile, X: 100, Y: 50, EditData: tileDirt}))
	require.Equal(t, guard.Commit, res.Outcome)
	assert.True(t, f.w.Cell(vec.Vec2{X: 101, Y: 50}).Active)
	assert.False(t, f.w.Cell(vec.Vec2{X: 100, Y: 50}).Active)
}

func TestFatalSendsDisableNotice(t *testing.T) {
	f := newFixture(t, func(c *config.GuardConfig) { c.TilePlaceThreshold = 1 })
	p, sender := f.join(t)

	res := f.d.Handle(context.Background(), p, frameOf(t, &protocol.Tile{Action: protocol.TilePlaceTile, X: 100, Y: 50, EditData: tileDirt}))
	require.Equal(t, guard.Commit, res.Outcome)

	res = f.d.Handle(context.Background(), p, frameOf(t, &protocol.Tile{Action: protocol.TilePlaceTile, X: 101, Y: 50, EditData: tileDirt}))
	require.Equal(t, guard.Fatal, res.Outcome)
	assert.Contains(t, sender.kinds(), protocol.KindTileSendSquare)

	msg := sender.last(t, protocol.KindChatText).(*protocol.ChatText)
	assert.True(t, strings.HasPrefix(msg.Text, "You have been disabled"), msg.Text)
	assert.EqualValues(t, serverSpeaker, msg.PlayerID)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.disabled))
	assert.True(t, p.Status().Tracker.Disabled)
}

func TestKickSendsDisconnect(t *testing.T) {
	f := newFixture(t, nil)
	p, sender := f.join(t)
	p.State = player.StateConnecting
	p.ReceivedInfo = false

	res := f.d.Handle(context.Background(), p, frameOf(t, &protocol.PlayerInfo{PlayerID: uint8(p.Index), Name: ""}))

	require.Equal(t, guard.Kick, res.Outcome)
	bye := sender.last(t, protocol.KindDisconnect).(*protocol.Disconnect)
	assert.Equal(t, "Empty Name.", bye.Reason)
}

func TestHubAssignsLowestFreeIndex(t *testing.T) {
	hub := NewHub(3)
	mk := func(index int) *player.Player {
		return player.New(index, "127.0.0.1", permissions.DefaultRegistry().Guest(), time.Second)
	}

	for want := 0; want < 3; want++ {
		p, err := hub.Join(&recorder{}, mk)
		require.NoError(t, err)
		assert.Equal(t, want, p.Index)
	}
	_, err := hub.Join(&recorder{}, mk)
	assert.ErrorIs(t, err, ErrServerFull)

	hub.Leave(1)
	p, err := hub.Join(&recorder{}, mk)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Index, "занят освободившийся индекс")

	statuses := hub.Statuses()
	require.Len(t, statuses, 3)
	assert.Equal(t, 0, statuses[0].Index)
	assert.Equal(t, 2, statuses[2].Index)
}

func TestTCPServerKicksEmptyName(t *testing.T) {
	f := newFixture(t, nil)
	srv, err := NewTCPServer("127.0.0.1:0", ServerDeps{Hub: f.hub, Guard: f.g, Dispatcher: f.d, Metrics: f.metrics})
	require.NoError(t, err)
	srv.Start()
	defer srv.Stop()

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(protocol.Encode(&protocol.PlayerInfo{PlayerID: 0, Name: ""}))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	fr, err := protocol.ReadFrame(conn)
	require.NoError(t, err)
	require.Equal(t, protocol.KindDisconnect, fr.Kind)
	rec, err := protocol.DecodeServer(fr.Kind, fr.Payload)
	require.NoError(t, err)
	assert.Equal(t, "Empty Name.", rec.(*protocol.Disconnect).Reason)

	assert.Eventually(t, func() bool { return f.hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond,
		"после разрыва индекс освобождается")
}
