package guard

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/packetguard/internal/auth"
	"github.com/annel0/packetguard/internal/catalog"
	"github.com/annel0/packetguard/internal/config"
	"github.com/annel0/packetguard/internal/permissions"
	"github.com/annel0/packetguard/internal/player"
	"github.com/annel0/packetguard/internal/protocol"
	"github.com/annel0/packetguard/internal/vec"
	"github.com/annel0/packetguard/internal/world"
)

const (
	itemDirtBlock = 2
	itemPickaxe   = 1
	tileStone     = 1
	tileDirt      = 0
	tileGreyBrick = 25 // из семейства камня
)

type fixture struct {
	g      *Guard
	w      *world.World
	users  *auth.MemoryUserRepo
	groups *permissions.Registry
	now    time.Time
}

func newFixture(t *testing.T, mutate func(*config.GuardConfig)) *fixture {
	t.Helper()
	wc := config.Default().World
	wc.Width, wc.Height = 400, 200
	wc.SpawnX, wc.SpawnY = 200, 100
	wc.MaxChests = 10
	w := world.New(wc, catalog.Default())

	cfg := config.DefaultGuardConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	f := &fixture{
		w:      w,
		users:  auth.NewMemoryUserRepo(),
		groups: permissions.DefaultRegistry(),
		now:    time.Unix(1_700_000_000, 0),
	}
	f.g = New(cfg, Deps{World: w, Groups: f.groups, Users: f.users})
	return f
}

// join создает авторизованного игрока, стоящего на клетке (100, 48).
func (f *fixture) join(t *testing.T, index int) *player.Player {
	t.Helper()
	p := player.New(index, "127.0.0.1", f.groups.Get(permissions.DefaultGroupName), time.Second)
	p.SetClock(func() time.Time { return f.now })
	p.Name = "tester"
	p.ReceivedInfo = true
	p.State = player.StateAuthenticated
	p.LastNetPosition = vec.Vec2Float{X: 100 * vec.TileSize, Y: 48 * vec.TileSize}
	p.Character.StoreSlot(0, player.Slot{Type: itemDirtBlock, Stack: 100})
	f.w.JoinAvatar(world.Avatar{Index: index, Name: p.Name, Pos: p.LastNetPosition, Life: 100, LifeMax: 100})
	return p
}

func (f *fixture) handle(p *player.Player, rec protocol.Record) Result {
	return f.g.Handle(context.Background(), p, rec)
}

func TestBreakWithoutPickaxeIsRejected(t *testing.T) {
	f := newFixture(t, nil)
	p := f.join(t, 0)
	pos := vec.Vec2{X: 100, Y: 50}
	f.w.SetCell(pos, world.Cell{Active: true, Type: tileStone})

	res := f.handle(p, &protocol.Tile{Action: protocol.TileKillTile, X: 100, Y: 50})

	assert.Equal(t, Reject, res.Outcome)
	assert.Equal(t, "tool", res.Check)
	assert.Equal(t, RelayNone, res.Relay, "отклоненное сообщение не пересылается")
	require.Len(t, res.Corrections, 1)
	assert.False(t, res.Corrections[0].Broadcast, "исправление только отправителю")
	assert.True(t, f.w.Cell(pos).Active, "клетка не изменилась")

	sq, ok := f.g.Resolve(p, res.Corrections[0]).(*protocol.TileSendSquare)
	require.True(t, ok)
	assert.EqualValues(t, squareDefault, sq.Size)

	t.Run("с киркой разрешено", func(t *testing.T) {
		p.Character.StoreSlot(0, player.Slot{Type: itemPickaxe, Stack: 1})
		res := f.handle(p, &protocol.Tile{Action: protocol.TileKillTile, X: 100, Y: 50})
		assert.Equal(t, Commit, res.Outcome)
		assert.False(t, f.w.Cell(pos).Active)
		assert.Equal(t, 1, p.TilesDestroyed.Len())
	})
}

func TestPlaceTileCommitsAndRelays(t *testing.T) {
	f := newFixture(t, nil)
	p := f.join(t, 0)

	res := f.handle(p, &protocol.Tile{Action: protocol.TilePlaceTile, X: 100, Y: 50, EditData: tileDirt})

	assert.Equal(t, Commit, res.Outcome)
	assert.Equal(t, RelayAll, res.Relay)
	assert.Empty(t, res.Corrections)
	c := f.w.Cell(vec.Vec2{X: 100, Y: 50})
	assert.True(t, c.Active)
	assert.Equal(t, uint16(tileDirt), c.Type)
	assert.Equal(t, 1, p.Tracker.Window(player.CounterTilePlace))
}

func TestPlaceRequiresMatchingItem(t *testing.T) {
	f := newFixture(t, nil)
	p := f.join(t, 0)

	t.Run("чужой тип", func(t *testing.T) {
		res := f.handle(p, &protocol.Tile{Action: protocol.TilePlaceTile, X: 101, Y: 50, EditData: tileStone})
		assert.Equal(t, Reject, res.Outcome)
		assert.False(t, f.w.Cell(vec.Vec2{X: 101, Y: 50}).Active)
	})

	t.Run("замена внутри семейства", func(t *testing.T) {
		pos := vec.Vec2{X: 102, Y: 50}
		f.w.SetCell(pos, world.Cell{Active: true, Type: tileStone})
		res := f.handle(p, &protocol.Tile{Action: protocol.TilePlaceTile, X: 102, Y: 50, EditData: tileGreyBrick})
		assert.Equal(t, Commit, res.Outcome)
		assert.Equal(t, uint16(tileGreyBrick), f.w.Cell(pos).Type)
	})
}

func TestProtectedSpawn(t *testing.T) {
	f := newFixture(t, nil)
	p := f.join(t, 0)
	p.LastNetPosition = vec.Vec2Float{X: 200 * vec.TileSize, Y: 98 * vec.TileSize}

	res := f.handle(p, &protocol.Tile{Action: protocol.TilePlaceTile, X: 201, Y: 99, EditData: tileDirt})
	assert.Equal(t, Reject, res.Outcome)
	assert.Equal(t, "protection", res.Check)
	assert.Contains(t, res.Notices, "Spawn is protected from changes.")
}

func TestTilePlaceThresholdDisables(t *testing.T) {
	f := newFixture(t, func(c *config.GuardConfig) { c.TilePlaceThreshold = 10 })
	p := f.join(t, 0)

	for i := 0; i < 10; i++ {
		res := f.handle(p, &protocol.Tile{Action: protocol.TilePlaceTile, X: int32(90 + i), Y: 50, EditData: tileDirt})
		require.Equal(t, Commit, res.Outcome, "размещение %d", i)
	}

	res := f.handle(p, &protocol.Tile{Action: protocol.TilePlaceTile, X: 110, Y: 50, EditData: tileDirt})
	assert.Equal(t, Fatal, res.Outcome)
	assert.Equal(t, "Reached TilePlace threshold.", res.Reason)
	assert.True(t, res.Disabled)
	assert.True(t, p.Tracker.Disabled())
	assert.NotEmpty(t, res.Corrections)
	assert.False(t, f.w.Cell(vec.Vec2{X: 110, Y: 50}).Active)

	// дальше все правки отклоняются с исправлением
	res = f.handle(p, &protocol.Tile{Action: protocol.TilePlaceTile, X: 111, Y: 50, EditData: tileDirt})
	assert.Equal(t, Reject, res.Outcome)
	assert.NotEmpty(t, res.Corrections)
	assert.False(t, res.Disabled, "отключение сообщается один раз")
}

func TestProjectileDamageCapRejectsWithoutDisabling(t *testing.T) {
	f := newFixture(t, nil)
	p := f.join(t, 0)

	res := f.handle(p, &protocol.ProjectileNew{Ident: 5, Owner: 0, Type: 17, Damage: 500})

	assert.Equal(t, Reject, res.Outcome)
	assert.Equal(t, "damage", res.Check)
	assert.False(t, p.Tracker.Disabled())
	require.Len(t, res.Corrections, 1)
	rec := f.g.Resolve(p, res.Corrections[0])
	assert.Equal(t, &protocol.ProjectileDestroy{Ident: 5, Owner: 0}, rec, "снаряда нет — клиенту уходит удаление")
}

func TestProjectileOwnerSpoofingIsViolation(t *testing.T) {
	f := newFixture(t, func(c *config.GuardConfig) { c.ProtocolViolationLimit = 2 })
	p := f.join(t, 0)

	res := f.handle(p, &protocol.ProjectileNew{Ident: 1, Owner: 3, Type: 17, Damage: 10})
	assert.Equal(t, Reject, res.Outcome)
	assert.False(t, p.Tracker.Disabled())

	res = f.handle(p, &protocol.ProjectileNew{Ident: 2, Owner: 3, Type: 17, Damage: 10})
	assert.Equal(t, Fatal, res.Outcome, "повторные нарушения отключают соединение")
	assert.True(t, strings.HasPrefix(res.Reason, "Repeated protocol violations"))
}

func TestSharedProjectileOwnerIsNormalized(t *testing.T) {
	f := newFixture(t, nil)
	p := f.join(t, 2)

	rec := &protocol.ProjectileNew{Ident: 7, Owner: 9, Type: 290, Damage: 10}
	res := f.handle(p, rec)
	assert.Equal(t, Commit, res.Outcome)
	assert.EqualValues(t, 2, rec.Owner)
	_, ok := f.w.Projectile(world.ProjectileKey{Ident: 7, Owner: 2})
	assert.True(t, ok)
}

func TestLiquidWithoutBucket(t *testing.T) {
	f := newFixture(t, nil)
	p := f.join(t, 0)

	res := f.handle(p, &protocol.LiquidSet{X: 100, Y: 50, Amount: 255, Liquid: protocol.LiquidLava})
	assert.Equal(t, Fatal, res.Outcome)
	assert.Equal(t, "Spreading lava without holding a lava bucket", res.Reason)
	assert.Contains(t, res.Notices, noPermission)
	assert.Zero(t, f.w.Cell(vec.Vec2{X: 100, Y: 50}).LiquidAmount)

	t.Run("с ведром", func(t *testing.T) {
		f := newFixture(t, nil)
		p := f.join(t, 0)
		p.Character.StoreSlot(0, player.Slot{Type: 207, Stack: 1})
		res := f.handle(p, &protocol.LiquidSet{X: 100, Y: 50, Amount: 255, Liquid: protocol.LiquidLava})
		assert.Equal(t, Commit, res.Outcome)
		assert.Equal(t, RelayAllExceptSender, res.Relay)
	})
}

func TestNoclipSnapsBack(t *testing.T) {
	f := newFixture(t, nil)
	p := f.join(t, 0)
	last := p.LastNetPosition

	// глубоко в земле
	res := f.handle(p, &protocol.PlayerUpdate{PlayerID: 0, PosX: last.X, PosY: 150 * vec.TileSize})
	assert.Equal(t, Reject, res.Outcome)
	assert.Equal(t, "noclip", res.Check)
	require.Len(t, res.Corrections, 1)
	assert.Equal(t, &protocol.Teleport{PlayerID: 0, X: last.X, Y: last.Y}, f.g.Resolve(p, res.Corrections[0]))
	assert.Equal(t, last, p.LastNetPosition)

	res = f.handle(p, &protocol.PlayerUpdate{PlayerID: 0, PosX: last.X + 32, PosY: last.Y})
	assert.Equal(t, Commit, res.Outcome)
	assert.Equal(t, last.X+32, p.LastNetPosition.X)
}

func TestForcedPvp(t *testing.T) {
	f := newFixture(t, func(c *config.GuardConfig) { c.PvPMode = config.PvPAlways })
	p := f.join(t, 0)

	res := f.handle(p, &protocol.TogglePvp{PlayerID: 0, Hostile: false})
	assert.Equal(t, Reject, res.Outcome)
	assert.Contains(t, res.Notices, "PvP is forced! Enable PvP or else you can't do anything!")

	res = f.handle(p, &protocol.TogglePvp{PlayerID: 0, Hostile: true})
	assert.Equal(t, Commit, res.Outcome)
	assert.True(t, p.Hostile)
	require.Len(t, res.Announcements, 1)
	assert.Equal(t, "tester has enabled PvP!", res.Announcements[0])
}

func TestHandshake(t *testing.T) {
	f := newFixture(t, nil)
	// устаревший хеш в нижнем регистре
	_, err := f.users.CreateUser(context.Background(), "Alice", strings.ToLower(auth.LegacyHash("secret")), permissions.DefaultGroupName)
	require.NoError(t, err)

	connect := func(index int) *player.Player {
		p := player.New(index, "10.0.0.1", f.groups.Guest(), time.Second)
		res := f.handle(p, &protocol.PlayerInfo{PlayerID: uint8(index), Name: "alice"})
		require.Equal(t, Commit, res.Outcome)
		res = f.handle(p, &protocol.ContinueConnecting2{})
		require.Len(t, res.Replies, 1)
		assert.IsType(t, &protocol.PasswordRequired{}, res.Replies[0])
		assert.Equal(t, player.StateAwaitingCredential, p.State)
		return p
	}

	t.Run("верный пароль", func(t *testing.T) {
		p := connect(0)
		res := f.handle(p, &protocol.PasswordSend{Password: "secret"})
		assert.Equal(t, Commit, res.Outcome)
		assert.True(t, p.LoggedIn)
		assert.Equal(t, "Alice", p.AccountName)
		assert.Equal(t, player.StateAuthenticated, p.State)
		assert.Contains(t, res.Notices, "Authenticated as Alice successfully.")
		require.NotEmpty(t, res.Replies)
		assert.IsType(t, &protocol.WorldInfo{}, res.Replies[len(res.Replies)-1])
		_, ok := f.w.Avatar(0)
		assert.True(t, ok)
	})

	t.Run("неверный пароль", func(t *testing.T) {
		p := connect(1)
		res := f.handle(p, &protocol.PasswordSend{Password: "wrong"})
		assert.Equal(t, Kick, res.Outcome)
		assert.Equal(t, "Invalid user account password.", res.Reason)
		assert.False(t, p.LoggedIn)
	})

	t.Run("до рукопожатия игровые сообщения не принимаются", func(t *testing.T) {
		p := player.New(2, "10.0.0.2", f.groups.Guest(), time.Second)
		res := f.handle(p, &protocol.Tile{Action: protocol.TilePlaceTile, X: 100, Y: 50})
		assert.Equal(t, Drop, res.Outcome)
		assert.Equal(t, "gate", res.Check)
	})
}

func TestServerPassword(t *testing.T) {
	f := newFixture(t, func(c *config.GuardConfig) { c.ServerPassword = "letmein" })

	for _, tc := range []struct {
		name     string
		password string
		outcome  Outcome
	}{
		{"верный", "letmein", Commit},
		{"неверный", "nope", Kick},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := player.New(0, "10.0.0.1", f.groups.Guest(), time.Second)
			f.handle(p, &protocol.PlayerInfo{Name: "bob"})
			f.handle(p, &protocol.ContinueConnecting2{})
			res := f.handle(p, &protocol.PasswordSend{Password: tc.password})
			assert.Equal(t, tc.outcome, res.Outcome)
		})
	}
}

func TestCorrectionIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	p := f.join(t, 0)
	f.w.SetCell(vec.Vec2{X: 100, Y: 50}, world.Cell{Active: true, Type: tileStone})

	res := f.handle(p, &protocol.Tile{Action: protocol.TileKillTile, X: 100, Y: 50})
	require.NotEmpty(t, res.Corrections)
	first := f.g.Resolve(p, res.Corrections[0])
	second := f.g.Resolve(p, res.Corrections[0])
	assert.Equal(t, first, second)
}

func TestChestRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	p := f.join(t, 0)
	id, err := f.w.AddChest(100, 50)
	require.NoError(t, err)

	res := f.handle(p, &protocol.ChestItem{ChestID: int16(id), Slot: 0, Stack: 5, ItemType: itemDirtBlock})
	assert.Equal(t, Reject, res.Outcome, "сундук не открыт")

	res = f.handle(p, &protocol.ChestGetContents{X: 100, Y: 50})
	require.Equal(t, Commit, res.Outcome)
	assert.Equal(t, id, p.ActiveChest)
	assert.Len(t, res.Replies, catalog.Default().Limits.MaxChestItems)

	res = f.handle(p, &protocol.ChestItem{ChestID: int16(id), Slot: 0, Stack: 5, ItemType: itemDirtBlock})
	assert.Equal(t, Commit, res.Outcome)
	ch, _ := f.w.Chest(id)
	assert.Equal(t, world.ChestItem{Type: itemDirtBlock, Stack: 5}, ch.Items[0])
}

func TestHackedMaxHealth(t *testing.T) {
	f := newFixture(t, nil)
	p := f.join(t, 0)

	res := f.handle(p, &protocol.PlayerHp{PlayerID: 0, Cur: 100, Max: 100})
	assert.Equal(t, Commit, res.Outcome)

	res = f.handle(p, &protocol.PlayerHp{PlayerID: 0, Cur: 600, Max: 600})
	assert.Equal(t, Kick, res.Outcome)
	assert.Equal(t, "Hacked Client Detected.", res.Reason)
}

func TestPlayerDamage(t *testing.T) {
	t.Run("в пределах лимита", func(t *testing.T) {
		f := newFixture(t, nil)
		p := f.join(t, 0)
		f.join(t, 1)

		res := f.handle(p, &protocol.PlayerDamage{PlayerID: 1, Damage: 20})

		assert.Equal(t, Commit, res.Outcome)
		assert.Equal(t, RelayAllExceptSender, res.Relay)
		target, ok := f.w.Avatar(1)
		require.True(t, ok)
		assert.EqualValues(t, 80, target.Life)
	})

	t.Run("превышение лимита отключает", func(t *testing.T) {
		f := newFixture(t, nil)
		p := f.join(t, 0)
		f.join(t, 1)

		res := f.handle(p, &protocol.PlayerDamage{PlayerID: 1, Damage: 500})

		assert.Equal(t, Fatal, res.Outcome)
		assert.True(t, p.Tracker.Disabled())
		assert.NotEmpty(t, res.Corrections, "цель получает исправленное здоровье")
		target, _ := f.w.Avatar(1)
		assert.EqualValues(t, 100, target.Life, "здоровье не изменилось")
	})

	t.Run("pvp по мирному игроку", func(t *testing.T) {
		f := newFixture(t, nil)
		p := f.join(t, 0)
		f.join(t, 1)

		res := f.handle(p, &protocol.PlayerDamage{PlayerID: 1, Damage: 20, PvP: true})

		assert.Equal(t, Reject, res.Outcome)
		assert.Equal(t, "hostile", res.Check)
		assert.False(t, p.Tracker.Disabled())
	})

	t.Run("неизвестная цель", func(t *testing.T) {
		f := newFixture(t, nil)
		p := f.join(t, 0)

		res := f.handle(p, &protocol.PlayerDamage{PlayerID: 7, Damage: 20})
		assert.Equal(t, Drop, res.Outcome)
	})
}
