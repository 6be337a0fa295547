package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/packetguard/internal/catalog"
	"github.com/annel0/packetguard/internal/config"
	"github.com/annel0/packetguard/internal/protocol"
	"github.com/annel0/packetguard/internal/vec"
)

func newTestWorld(t *testing.T) *World {
	t.Helper()
	cfg := config.Default().World
	cfg.Width, cfg.Height = 400, 200
	cfg.SpawnX, cfg.SpawnY = 200, 100
	cfg.MaxChests = 2
	return New(cfg, catalog.Default())
}

func TestGeneratedTerrain(t *testing.T) {
	w := newTestWorld(t)
	// плоская поверхность на SpawnY+3
	assert.False(t, w.Cell(vec.Vec2{X: 10, Y: 102}).Active)
	surface := w.Cell(vec.Vec2{X: 10, Y: 103})
	assert.True(t, surface.Active)
	assert.Equal(t, genGrass, surface.Type)
	assert.Equal(t, genStone, w.Cell(vec.Vec2{X: 10, Y: 190}).Type)
}

func TestNoisySurfaceIsDeterministic(t *testing.T) {
	a := NewGenerator(42, 100)
	b := NewGenerator(42, 100)
	for x := 0; x < 200; x += 7 {
		sa := a.SurfaceAt(x)
		assert.Equal(t, sa, b.SurfaceAt(x))
		assert.InDelta(t, 100, sa, a.Amplitude+1)
	}
}

func TestClampBeforeAccess(t *testing.T) {
	w := newTestWorld(t)
	assert.Equal(t, vec.Vec2{X: 0, Y: 199}, w.Clamp(vec.Vec2{X: -5, Y: 500}))
	w.SetCell(vec.Vec2{X: -1, Y: -1}, Cell{Active: true, Type: 30})
	assert.Equal(t, uint16(30), w.Cell(vec.Vec2{}).Type, "запись за границей попадает в крайнюю клетку")
	assert.False(t, w.InBounds(400, 0))
	assert.True(t, w.Solid(vec.Vec2{X: -1, Y: 0}), "за пределами мира твердо")
}

func TestApplyTile(t *testing.T) {
	w := newTestWorld(t)
	p := vec.Vec2{X: 100, Y: 50}

	before := w.ApplyTile(&protocol.Tile{Action: protocol.TilePlaceTile, X: 100, Y: 50, EditData: 30, Style: 2})
	assert.False(t, before.Active)
	c := w.Cell(p)
	assert.True(t, c.Active)
	assert.Equal(t, uint16(30), c.Type)
	assert.Equal(t, uint8(2), c.Style)

	w.ApplyTile(&protocol.Tile{Action: protocol.TileKillTile, X: 100, Y: 50, EditData: 1})
	assert.True(t, w.Cell(p).Active, "неудачный удар не ломает")
	w.ApplyTile(&protocol.Tile{Action: protocol.TileKillTile, X: 100, Y: 50})
	assert.False(t, w.Cell(p).Active)

	w.ApplyTile(&protocol.Tile{Action: protocol.TilePlaceWall, X: 100, Y: 50, EditData: 4})
	w.ApplyTile(&protocol.Tile{Action: protocol.TilePlaceWire, X: 100, Y: 50})
	c = w.Cell(p)
	assert.Equal(t, uint8(4), c.Wall)
	assert.True(t, c.Wire)
}

func TestSquareCorrection(t *testing.T) {
	w := newTestWorld(t)
	w.SetCell(vec.Vec2{X: 100, Y: 50}, Cell{Active: true, Type: 1})

	sq := w.Square(100, 50, 3)
	require.Equal(t, int16(3), sq.Size)
	assert.Equal(t, int32(99), sq.X)
	assert.Equal(t, int32(49), sq.Y)
	require.Len(t, sq.Tiles, 9)
	assert.Equal(t, uint16(1), sq.Tiles[1*3+1].Type, "центр квадрата — целевая клетка")

	edge := w.Square(0, 0, 5)
	assert.Equal(t, int32(0), edge.X, "квадрат не выходит за границу")

	// повторное исправление дает тот же результат
	assert.Equal(t, sq, w.Square(100, 50, 3))
}

func TestApplySquareRoundTrip(t *testing.T) {
	w := newTestWorld(t)
	sq := &protocol.TileSendSquare{Size: 2, X: 10, Y: 10, Tiles: []protocol.NetTile{
		{Active: true, Type: 2}, {}, {HasWall: true, Wall: 5}, {HasLiquid: true, LiquidAmount: 255, LiquidKind: protocol.LiquidLava},
	}}
	w.ApplySquare(sq)
	assert.Equal(t, sq, w.SquareAt(10, 10, 2))
}

func TestProjectilesAndDisconnect(t *testing.T) {
	w := newTestWorld(t)
	k1 := ProjectileKey{Ident: 1, Owner: 3}
	k2 := ProjectileKey{Ident: 1, Owner: 4}
	assert.True(t, w.UpsertProjectile(Projectile{Key: k1, Type: 1}))
	assert.False(t, w.UpsertProjectile(Projectile{Key: k1, Type: 2}), "тот же ключ обновляет")
	w.UpsertProjectile(Projectile{Key: k2, Type: 1})
	p, ok := w.Projectile(k1)
	require.True(t, ok)
	assert.Equal(t, int16(2), p.Type)
	assert.Equal(t, 2, w.ProjectileCount())

	w.JoinAvatar(Avatar{Index: 3, Name: "a"})
	assert.Equal(t, 1, w.RemoveConnection(3))
	_, ok = w.Avatar(3)
	assert.False(t, ok)
	_, ok = w.Projectile(k2)
	assert.True(t, ok, "чужие снаряды остаются")
}

func TestChests(t *testing.T) {
	w := newTestWorld(t)
	id, err := w.AddChest(20, 20)
	require.NoError(t, err)
	_, err = w.AddChest(21, 21)
	assert.ErrorIs(t, err, ErrChestExists, "сундук 2×2")

	c, ok := w.ChestAt(21, 21)
	require.True(t, ok)
	assert.Equal(t, id, c.ID)
	require.NoError(t, w.SetChestItem(id, 0, ChestItem{Type: 2, Stack: 5}))
	assert.ErrorIs(t, w.SetChestItem(id, 99, ChestItem{}), ErrBadSlot)

	_, err = w.AddChest(40, 40)
	require.NoError(t, err)
	_, err = w.AddChest(60, 60)
	assert.ErrorIs(t, err, ErrChestLimit)

	assert.True(t, w.RemoveChestAt(20, 21))
	assert.Equal(t, 1, w.ChestCount())
}

func TestNPCs(t *testing.T) {
	w := newTestWorld(t)
	w.SpawnNPC(NPC{ID: 5, Town: true, Active: true, Life: 100, LifeMax: 100})
	n, ok := w.StrikeNPC(5, 150)
	require.True(t, ok)
	assert.False(t, n.Active)
	_, ok = w.StrikeNPC(5, 1)
	assert.False(t, ok)

	n, ok = w.SetNPCHome(5, 10, 11, true)
	require.True(t, ok)
	assert.Equal(t, int16(11), n.Update().HomeY)
}
