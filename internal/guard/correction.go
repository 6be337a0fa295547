package guard

import (
	"github.com/annel0/packetguard/internal/player"
	"github.com/annel0/packetguard/internal/protocol"
	"github.com/annel0/packetguard/internal/vec"
	"github.com/annel0/packetguard/internal/world"
)

// Target — что именно нужно переотправить.
type Target uint8

const (
	// TargetTiles — квадрат Size×Size с центром в (X, Y).
	TargetTiles Target = iota + 1
	// TargetTileArea — квадрат Size×Size с левым верхним углом (X, Y).
	TargetTileArea
	TargetProjectile
	TargetItem
	TargetPlayerHp
	TargetPlayerMana
	TargetPlayerUpdate
	TargetPosition
	TargetPvp
	TargetTeam
	TargetBuffs
	TargetSlot
	TargetChestItem
	TargetSign
	TargetNPC
	TargetNPCHome
	TargetPaintTile
	TargetPaintWall
)

// Correction описывает, какую авторитетную истину переслать клиенту.
// Сама запись строится в момент отправки из текущего состояния мира,
// поэтому повторная отправка дает тот же результат.
type Correction struct {
	Target Target
	X, Y   int
	Size   int
	ID     int // снаряд, предмет, сундук, табличка, NPC
	Owner  int
	Player int
	Slot   int
	Pos    vec.Vec2Float
	// Broadcast — отправить всем, а не только отправителю.
	Broadcast bool
}

func tiles(x, y, size int) Correction {
	return Correction{Target: TargetTiles, X: x, Y: y, Size: size}
}

func tileArea(x, y, size int) Correction {
	return Correction{Target: TargetTileArea, X: x, Y: y, Size: size}
}

func projectile(ident int16, owner int) Correction {
	return Correction{Target: TargetProjectile, ID: int(ident), Owner: owner}
}

func playerTarget(t Target, index int) Correction {
	return Correction{Target: t, Player: index}
}

func position(index int, pos vec.Vec2Float) Correction {
	return Correction{Target: TargetPosition, Player: index, Pos: pos}
}

// Resolve строит запись исправления. p — соединение-отправитель.
// Для исчезнувших сущностей возвращается запись удаления, для
// отсутствующего аватара и NPC — nil (исправление пропускается).
func (g *Guard) Resolve(p *player.Player, c Correction) protocol.Record {
	w := g.world
	switch c.Target {
	case TargetTiles:
		return w.Square(c.X, c.Y, c.Size)
	case TargetTileArea:
		return w.SquareAt(c.X, c.Y, c.Size)
	case TargetProjectile:
		key := world.ProjectileKey{Ident: int16(c.ID), Owner: uint8(c.Owner)}
		if pr, ok := w.Projectile(key); ok {
			return &protocol.ProjectileNew{
				Ident: pr.Key.Ident, PosX: pr.Pos.X, PosY: pr.Pos.Y, VelX: pr.Vel.X, VelY: pr.Vel.Y,
				Knockback: pr.Knockback, Damage: pr.Damage, Owner: pr.Key.Owner, Type: pr.Type,
			}
		}
		return &protocol.ProjectileDestroy{Ident: int16(c.ID), Owner: uint8(c.Owner)}
	case TargetItem:
		if it, ok := w.Item(c.ID); ok {
			return &protocol.ItemDrop{
				ID: int16(it.ID), PosX: it.Pos.X, PosY: it.Pos.Y, VelX: it.Vel.X, VelY: it.Vel.Y,
				Stack: it.Stack, Prefix: it.Prefix, ItemType: it.Type,
			}
		}
		// нулевой тип — предмета нет
		return &protocol.ItemDrop{ID: int16(c.ID)}
	case TargetPlayerHp, TargetPlayerMana, TargetPlayerUpdate, TargetPvp, TargetTeam, TargetBuffs:
		a, ok := w.Avatar(c.Player)
		if !ok {
			// нечего исправлять: нулевые значения клиенту не шлем
			return nil
		}
		return avatarRecord(c.Target, c.Player, a)
	case TargetPosition:
		return &protocol.Teleport{PlayerID: int16(c.Player), X: c.Pos.X, Y: c.Pos.Y}
	case TargetSlot:
		var s player.Slot
		if c.Slot >= 0 && c.Slot < player.InventorySize {
			s = p.Character.Inventory[c.Slot]
		}
		return &protocol.PlayerSlot{
			PlayerID: uint8(p.Index), Slot: uint8(c.Slot), Stack: uint8(min(max(s.Stack, 0), 255)),
			Prefix: s.Prefix, ItemType: s.Type,
		}
	case TargetChestItem:
		var it world.ChestItem
		if ch, ok := w.Chest(c.ID); ok && c.Slot >= 0 && c.Slot < len(ch.Items) {
			it = ch.Items[c.Slot]
		}
		return &protocol.ChestItem{
			ChestID: int16(c.ID), Slot: uint8(c.Slot), Stack: uint8(min(max(it.Stack, 0), 255)),
			Prefix: it.Prefix, ItemType: it.Type,
		}
	case TargetSign:
		s, _ := w.Sign(c.ID)
		return &protocol.SignNew{SignID: int16(c.ID), X: int32(s.X), Y: int32(s.Y), Text: s.Text}
	case TargetNPC:
		if n, ok := w.NPC(c.ID); ok {
			return n.Update()
		}
		return &protocol.NpcUpdate{ID: int16(c.ID)}
	case TargetNPCHome:
		n, ok := w.NPC(c.ID)
		if !ok {
			return nil
		}
		var homeless uint8
		if n.Homeless {
			homeless = 1
		}
		return &protocol.UpdateNPCHome{NpcID: int16(c.ID), HomeX: n.HomeX, HomeY: n.HomeY, Homeless: homeless}
	case TargetPaintTile:
		cell := w.Cell(w.Clamp(vec.Vec2{X: c.X, Y: c.Y}))
		return &protocol.PaintTile{X: int32(c.X), Y: int32(c.Y), Color: cell.Color}
	case TargetPaintWall:
		cell := w.Cell(w.Clamp(vec.Vec2{X: c.X, Y: c.Y}))
		return &protocol.PaintWall{X: int32(c.X), Y: int32(c.Y), Color: cell.WallColor}
	}
	return nil
}

func avatarRecord(t Target, index int, a world.Avatar) protocol.Record {
	id := uint8(index)
	switch t {
	case TargetPlayerHp:
		return &protocol.PlayerHp{PlayerID: id, Cur: a.Life, Max: a.LifeMax}
	case TargetPlayerMana:
		return &protocol.PlayerMana{PlayerID: id, Cur: a.Mana, Max: a.ManaMax}
	case TargetPlayerUpdate:
		return &protocol.PlayerUpdate{PlayerID: id, PosX: a.Pos.X, PosY: a.Pos.Y, VelX: a.Vel.X, VelY: a.Vel.Y}
	case TargetPvp:
		return &protocol.TogglePvp{PlayerID: id, Hostile: a.Hostile}
	case TargetTeam:
		return &protocol.PlayerTeam{PlayerID: id, Team: a.Team}
	default:
		return &protocol.PlayerBuffs{PlayerID: id, Buffs: a.Buffs}
	}
}
