package guard

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/packetguard/internal/auth"
	"github.com/annel0/packetguard/internal/config"
	"github.com/annel0/packetguard/internal/permissions"
	"github.com/annel0/packetguard/internal/player"
	"github.com/annel0/packetguard/internal/protocol"
	"github.com/annel0/packetguard/internal/vec"
	"github.com/annel0/packetguard/internal/world"
)

const npcGuide = 3

// Отключенное соединение не меняет мир ни одним типом сообщений, даже если
// его группе разрешено всё.
func TestDisabledConnectionCannotMutateWorld(t *testing.T) {
	for _, tc := range []struct {
		name   string
		rec    protocol.Record
		target Target
		intact func(t *testing.T, f *fixture)
	}{
		{
			name:   "табличка",
			rec:    &protocol.SignNew{SignID: 0, X: 100, Y: 50, Text: "hi"},
			target: TargetSign,
			intact: func(t *testing.T, f *fixture) {
				s, _ := f.w.Sign(0)
				assert.NotEqual(t, "hi", s.Text, "текст таблички не изменился")
			},
		},
		{
			name:   "телепорт",
			rec:    &protocol.Teleport{PlayerID: 0, X: 5000, Y: 800},
			target: TargetPosition,
			intact: func(t *testing.T, f *fixture) {
				a, ok := f.w.Avatar(0)
				require.True(t, ok)
				assert.Equal(t, vec.Vec2Float{X: 100 * vec.TileSize, Y: 48 * vec.TileSize}, a.Pos)
			},
		},
		{
			name:   "дом NPC",
			rec:    &protocol.UpdateNPCHome{NpcID: npcGuide, HomeX: 100, HomeY: 40},
			target: TargetNPCHome,
			intact: func(t *testing.T, f *fixture) {
				n, ok := f.w.NPC(npcGuide)
				require.True(t, ok)
				assert.Equal(t, int16(10), n.HomeX)
				assert.Equal(t, int16(11), n.HomeY)
			},
		},
		{
			name: "квадрат клеток",
			rec: &protocol.TileSendSquare{Size: 1, X: 100, Y: 50,
				Tiles: []protocol.NetTile{{Active: true, Type: tileStone}}},
			target: TargetTileArea,
			intact: func(t *testing.T, f *fixture) {
				assert.False(t, f.w.Cell(vec.Vec2{X: 100, Y: 50}).Active)
			},
		},
		{
			name:   "разрушение пустой клетки",
			rec:    &protocol.Tile{Action: protocol.TileKillTile, X: 100, Y: 52},
			target: TargetTiles,
			intact: func(t *testing.T, f *fixture) {
				assert.False(t, f.w.Cell(vec.Vec2{X: 100, Y: 52}).Active)
			},
		},
		{
			name:   "размещение клетки",
			rec:    &protocol.Tile{Action: protocol.TilePlaceTile, X: 101, Y: 50, EditData: tileDirt},
			target: TargetTiles,
			intact: func(t *testing.T, f *fixture) {
				assert.False(t, f.w.Cell(vec.Vec2{X: 101, Y: 50}).Active)
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.w.SpawnNPC(world.NPC{ID: npcGuide, Town: true, Active: true, Life: 250, LifeMax: 250, HomeX: 10, HomeY: 11})
			p := f.join(t, 0)
			p.Group = f.groups.Get(permissions.SuperAdminGroupName)
			require.True(t, p.HasPermission(permissions.EditClientSide))
			require.True(t, p.Tracker.Disable("Reached TileKill threshold."))

			res := f.handle(p, tc.rec)

			assert.Equal(t, Reject, res.Outcome, "проверка %s", res.Check)
			require.NotEmpty(t, res.Corrections, "отправитель получает исправление")
			assert.Equal(t, tc.target, res.Corrections[0].Target)
			assert.NotNil(t, f.g.Resolve(p, res.Corrections[0]))
			tc.intact(t, f)
		})
	}
}

func TestBreakNothingResendsCell(t *testing.T) {
	f := newFixture(t, nil)
	p := f.join(t, 0)

	res := f.handle(p, &protocol.Tile{Action: protocol.TileKillTile, X: 100, Y: 52})

	assert.Equal(t, Drop, res.Outcome)
	require.Len(t, res.Corrections, 1, "клиент уже убрал клетку у себя")
	assert.Equal(t, TargetTiles, res.Corrections[0].Target)
}

func TestTileKillThresholdDisables(t *testing.T) {
	for _, threshold := range []int{1, 3, 10} {
		t.Run(fmt.Sprintf("порог %d", threshold), func(t *testing.T) {
			f := newFixture(t, func(c *config.GuardConfig) { c.TileKillThreshold = threshold })
			p := f.join(t, 0)
			p.Character.StoreSlot(0, player.Slot{Type: itemPickaxe, Stack: 1})
			for i := 0; i <= threshold; i++ {
				f.w.SetCell(vec.Vec2{X: 90 + i, Y: 50}, world.Cell{Active: true, Type: tileStone})
			}

			for i := 0; i < threshold; i++ {
				res := f.handle(p, &protocol.Tile{Action: protocol.TileKillTile, X: int32(90 + i), Y: 50})
				require.Equal(t, Commit, res.Outcome, "разрушение %d", i)
			}
			assert.False(t, p.Tracker.Disabled())

			last := vec.Vec2{X: 90 + threshold, Y: 50}
			res := f.handle(p, &protocol.Tile{Action: protocol.TileKillTile, X: int32(last.X), Y: int32(last.Y)})
			assert.Equal(t, Fatal, res.Outcome)
			assert.Equal(t, "Reached TileKill threshold.", res.Reason)
			assert.True(t, p.Tracker.Disabled())
			assert.NotEmpty(t, res.Corrections)
			assert.True(t, f.w.Cell(last).Active, "клетка осталась на месте")
			assert.Equal(t, threshold, p.Tracker.Total(player.CounterTileKill))
		})
	}
}

func TestLoginClearsOnlyExemptIgnores(t *testing.T) {
	for _, tc := range []struct {
		name      string
		group     string
		keepTrash bool
		keepCheat bool
	}{
		{"обычная группа", permissions.DefaultGroupName, true, true},
		{"администратор", "admin", false, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			_, err := f.users.CreateUser(context.Background(), "Alice", auth.LegacyHash("secret"), tc.group)
			require.NoError(t, err)

			p := player.New(0, "10.0.0.1", f.groups.Guest(), time.Second)
			f.handle(p, &protocol.PlayerInfo{PlayerID: 0, Name: "Alice"})
			f.handle(p, &protocol.ContinueConnecting2{})
			p.SetIgnore(player.IgnoreInventory, "not logged in")
			p.SetIgnore(player.IgnoreTrashCan, "trash can")
			p.SetIgnore(player.IgnoreCheating, "stack")

			res := f.handle(p, &protocol.PasswordSend{Password: "secret"})
			require.Equal(t, Commit, res.Outcome)

			assert.False(t, p.IsIgnoring(player.IgnoreInventory), "инвентарь снимается всегда")
			assert.Equal(t, tc.keepTrash, p.IsIgnoring(player.IgnoreTrashCan))
			assert.Equal(t, tc.keepCheat, p.IsIgnoring(player.IgnoreCheating))
		})
	}
}

func TestStackHackIgnoresActions(t *testing.T) {
	f := newFixture(t, nil)
	p := f.join(t, 0)

	res := f.handle(p, &protocol.PlayerSlot{PlayerID: 0, Slot: 5, Stack: 5, ItemType: itemPickaxe})
	require.Equal(t, Commit, res.Outcome)
	assert.True(t, p.IsIgnoring(player.IgnoreCheating))
	assert.Contains(t, p.IgnoreMessage(), "exceeds max stack of 1")

	res = f.handle(p, &protocol.Tile{Action: protocol.TilePlaceTile, X: 100, Y: 50, EditData: tileDirt})
	assert.Equal(t, Reject, res.Outcome)
	assert.Equal(t, "ignores", res.Check)

	t.Run("исправленный стек снимает игнор", func(t *testing.T) {
		f.handle(p, &protocol.PlayerSlot{PlayerID: 0, Slot: 5, Stack: 1, ItemType: itemPickaxe})
		assert.False(t, p.IsIgnoring(player.IgnoreCheating))
	})

	t.Run("группа с обходом не игнорируется", func(t *testing.T) {
		p.Group = f.groups.Get("admin")
		f.handle(p, &protocol.PlayerSlot{PlayerID: 0, Slot: 6, Stack: 9, ItemType: itemPickaxe})
		assert.False(t, p.IsIgnoring(player.IgnoreCheating))
	})
}

func TestResolveSkipsMissingAvatar(t *testing.T) {
	f := newFixture(t, nil)
	p := f.join(t, 0)

	for _, target := range []Target{TargetPlayerHp, TargetPlayerMana, TargetPlayerUpdate, TargetPvp, TargetTeam, TargetBuffs} {
		assert.Nil(t, f.g.Resolve(p, playerTarget(target, 9)), "цель %d", target)
		assert.NotNil(t, f.g.Resolve(p, playerTarget(target, 0)), "цель %d", target)
	}
	assert.Nil(t, f.g.Resolve(p, Correction{Target: TargetNPCHome, ID: 42}))
}
