package guard

import (
	"context"

	"github.com/annel0/packetguard/internal/permissions"
	"github.com/annel0/packetguard/internal/player"
	"github.com/annel0/packetguard/internal/protocol"
	"github.com/annel0/packetguard/internal/vec"
	"github.com/annel0/packetguard/internal/world"
)

const (
	teleportFlagNPC   = 1
	teleportFlagStyle = 2
)

func (g *Guard) registerObjectChains() {
	register(g, protocol.KindChestGetContents, &chain[*protocol.ChestGetContents]{
		checks: []check[*protocol.ChestGetContents]{
			{"ignores", func(g *Guard, p *player.Player, r *protocol.ChestGetContents) Verdict {
				if g.ignoring(p) {
					return drop().because("ignoring actions")
				}
				return pass
			}},
			{"range", func(g *Guard, p *player.Player, r *protocol.ChestGetContents) Verdict {
				if g.outOfRange(p, int(r.X), int(r.Y), 0) {
					return drop().because("chest out of range")
				}
				return pass
			}},
			{"protection", func(g *Guard, p *player.Player, r *protocol.ChestGetContents) Verdict {
				if g.Config().RegionProtectChests && g.tileProtected(p, int(r.X), int(r.Y)) != "" {
					return drop().because("chest protected")
				}
				return pass
			}},
			{"lookup", func(g *Guard, p *player.Player, r *protocol.ChestGetContents) Verdict {
				if _, ok := g.world.ChestAt(int(r.X), int(r.Y)); !ok {
					return drop().because("no chest at %d,%d", r.X, r.Y)
				}
				return pass
			}},
		},
		commit: func(ctx context.Context, g *Guard, p *player.Player, r *protocol.ChestGetContents) Result {
			ch, _ := g.world.ChestAt(int(r.X), int(r.Y))
			p.ActiveChest = ch.ID
			res := committed(RelayNone)
			for slot, it := range ch.Items {
				res.Replies = append(res.Replies, &protocol.ChestItem{
					ChestID: int16(ch.ID), Slot: uint8(slot), Stack: uint8(min(max(it.Stack, 0), 255)),
					Prefix: it.Prefix, ItemType: it.Type,
				})
			}
			return res
		},
	})

	register(g, protocol.KindChestItem, &chain[*protocol.ChestItem]{
		correct: func(g *Guard, p *player.Player, r *protocol.ChestItem) []Correction {
			return []Correction{{Target: TargetChestItem, ID: int(r.ChestID), Slot: int(r.Slot)}}
		},
		checks: []check[*protocol.ChestItem]{
			{"active", func(g *Guard, p *player.Player, r *protocol.ChestItem) Verdict {
				if p.ActiveChest != int(r.ChestID) {
					return reject().because("chest %d is not open", r.ChestID)
				}
				if int(r.Slot) >= g.cat.Limits.MaxChestItems || !g.cat.KnownItemType(r.ItemType) {
					return violation("chest slot %d with item %d", r.Slot, r.ItemType)
				}
				return pass
			}},
			{"ignores", func(g *Guard, p *player.Player, r *protocol.ChestItem) Verdict {
				if g.ignoring(p) {
					return reject().because("ignoring actions")
				}
				return pass
			}},
			{"item", func(g *Guard, p *player.Player, r *protocol.ChestItem) Verdict {
				it := g.cat.Item(r.ItemType)
				if it.MaxStack > 0 && int(r.Stack) > it.MaxStack {
					return reject().because("stack %d of %s", r.Stack, it.Name)
				}
				if g.itemBanned(p, it) {
					return reject().because("banned item %s", it.Name)
				}
				return pass
			}},
			{"protection", func(g *Guard, p *player.Player, r *protocol.ChestItem) Verdict {
				ch, ok := g.world.Chest(int(r.ChestID))
				if !ok {
					return reject().because("no chest %d", r.ChestID)
				}
				if g.Config().RegionProtectChests && g.tileProtected(p, ch.X, ch.Y) != "" {
					return reject().because("chest protected")
				}
				if g.outOfRange(p, ch.X, ch.Y, 0) {
					return reject().because("chest out of range")
				}
				return pass
			}},
		},
		commit: func(ctx context.Context, g *Guard, p *player.Player, r *protocol.ChestItem) Result {
			err := g.world.SetChestItem(int(r.ChestID), int(r.Slot), world.ChestItem{
				Type: r.ItemType, Stack: int16(r.Stack), Prefix: r.Prefix,
			})
			if err != nil {
				g.log.Warn("Сундук %d: %v", r.ChestID, err)
				return Result{Outcome: Reject, Reason: err.Error(),
					Corrections: []Correction{{Target: TargetChestItem, ID: int(r.ChestID), Slot: int(r.Slot)}}}
			}
			return committed(RelayAllExceptSender)
		},
	})

	register(g, protocol.KindSignNew, &chain[*protocol.SignNew]{
		correct: func(g *Guard, p *player.Player, r *protocol.SignNew) []Correction {
			return []Correction{{Target: TargetSign, ID: int(r.SignID)}}
		},
		checks: []check[*protocol.SignNew]{
			{"bounds", func(g *Guard, p *player.Player, r *protocol.SignNew) Verdict {
				if r.SignID < 0 || int(r.SignID) >= world.MaxSigns || !g.world.InBounds(int(r.X), int(r.Y)) {
					return violation("sign %d at %d,%d", r.SignID, r.X, r.Y)
				}
				return pass
			}},
			{"ignores", func(g *Guard, p *player.Player, r *protocol.SignNew) Verdict {
				if g.frozen(p) {
					return reject().because("ignoring actions")
				}
				return pass
			}},
			{"protection", func(g *Guard, p *player.Player, r *protocol.SignNew) Verdict {
				if msg := g.tileProtected(p, int(r.X), int(r.Y)); msg != "" {
					return reject().because("protected")
				}
				return pass
			}},
			{"range", func(g *Guard, p *player.Player, r *protocol.SignNew) Verdict {
				if g.outOfRange(p, int(r.X), int(r.Y), 0) {
					return reject().because("sign out of range")
				}
				return pass
			}},
		},
		commit: func(ctx context.Context, g *Guard, p *player.Player, r *protocol.SignNew) Result {
			if err := g.world.SetSign(int(r.SignID), int(r.X), int(r.Y), r.Text); err != nil {
				return Result{Outcome: Reject, Reason: err.Error(),
					Corrections: []Correction{{Target: TargetSign, ID: int(r.SignID)}}}
			}
			return committed(RelayAllExceptSender)
		},
	})

	register(g, protocol.KindUpdateNPCHome, &chain[*protocol.UpdateNPCHome]{
		correct: func(g *Guard, p *player.Player, r *protocol.UpdateNPCHome) []Correction {
			return []Correction{{Target: TargetNPCHome, ID: int(r.NpcID)}}
		},
		checks: []check[*protocol.UpdateNPCHome]{
			{"lookup", func(g *Guard, p *player.Player, r *protocol.UpdateNPCHome) Verdict {
				if _, ok := g.world.NPC(int(r.NpcID)); !ok {
					return drop().because("no npc %d", r.NpcID)
				}
				return pass
			}},
			{"ignores", func(g *Guard, p *player.Player, r *protocol.UpdateNPCHome) Verdict {
				if g.frozen(p) {
					return reject().because("ignoring actions")
				}
				return pass
			}},
			{"permission", func(g *Guard, p *player.Player, r *protocol.UpdateNPCHome) Verdict {
				if !p.HasPermission(permissions.MoveNPC) {
					return reject().notify("You do not have permission to relocate NPCs.")
				}
				return pass
			}},
			{"protection", func(g *Guard, p *player.Player, r *protocol.UpdateNPCHome) Verdict {
				if g.tileProtected(p, int(r.HomeX), int(r.HomeY)) != "" {
					return reject().notify("You do not have access to modify this area.")
				}
				return pass
			}},
		},
		commit: func(ctx context.Context, g *Guard, p *player.Player, r *protocol.UpdateNPCHome) Result {
			g.world.SetNPCHome(int(r.NpcID), r.HomeX, r.HomeY, r.Homeless != 0)
			return committed(RelayAll)
		},
	})

	register(g, protocol.KindItemDrop, &chain[*protocol.ItemDrop]{
		correct: func(g *Guard, p *player.Player, r *protocol.ItemDrop) []Correction {
			return []Correction{{Target: TargetItem, ID: int(r.ID)}}
		},
		checks: []check[*protocol.ItemDrop]{
			{"bounds", func(g *Guard, p *player.Player, r *protocol.ItemDrop) Verdict {
				lim := g.cat.Limits
				if int(r.ItemType) < lim.MinItemType || int(r.ItemType) >= lim.MaxItemTypes {
					return violation("item type %d", r.ItemType)
				}
				return pass
			}},
			{"range", func(g *Guard, p *player.Player, r *protocol.ItemDrop) Verdict {
				if r.ItemType == 0 {
					return pass
				}
				t := vec.Vec2Float{X: r.PosX, Y: r.PosY}.ToTile()
				if g.outOfRange(p, t.X, t.Y, 0) {
					return reject().because("item out of range")
				}
				return pass
			}},
			{"item", func(g *Guard, p *player.Player, r *protocol.ItemDrop) Verdict {
				if r.ItemType == 0 {
					return pass
				}
				it := g.cat.Item(r.ItemType)
				if it.MaxStack > 0 && int(r.Stack) > it.MaxStack {
					return reject().because("stack %d of %s", r.Stack, it.Name)
				}
				if g.itemBanned(p, it) {
					return reject().because("banned item %s", it.Name)
				}
				return pass
			}},
			{"logon", func(g *Guard, p *player.Player, r *protocol.ItemDrop) Verdict {
				cfg := g.Config()
				if r.ItemType == 0 || !cfg.ServerSideCharacter || !p.LoggedIn {
					return pass
				}
				if p.Now().Sub(p.LoginAt) < cfg.LogonDiscardThreshold {
					name := g.cat.Item(r.ItemType).Name
					g.log.Info("Player %s tried to sneak %s onto the server!", displayName(p), name)
					return reject().because("drop right after login")
				}
				return pass
			}},
			{"ignores", func(g *Guard, p *player.Player, r *protocol.ItemDrop) Verdict {
				if g.ignoring(p) {
					return reject().because("ignoring actions")
				}
				return pass
			}},
		},
		commit: func(ctx context.Context, g *Guard, p *player.Player, r *protocol.ItemDrop) Result {
			if r.ItemType == 0 {
				g.world.RemoveItem(int(r.ID))
				return committed(RelayAll)
			}
			g.world.SetItem(world.DroppedItem{
				ID: int(r.ID), Type: r.ItemType, Stack: r.Stack, Prefix: r.Prefix,
				Pos: vec.Vec2Float{X: r.PosX, Y: r.PosY},
				Vel: vec.Vec2Float{X: r.VelX, Y: r.VelY},
			})
			return committed(RelayAll)
		},
	})

	register(g, protocol.KindTeleport, &chain[*protocol.Teleport]{
		checks: []check[*protocol.Teleport]{
			{"flags", func(g *Guard, p *player.Player, r *protocol.Teleport) Verdict {
				if r.Flag&(teleportFlagNPC|teleportFlagStyle) != 0 {
					return drop().because("teleport flag %d", r.Flag)
				}
				return pass
			}},
			{"identity", func(g *Guard, p *player.Player, r *protocol.Teleport) Verdict {
				if int(r.PlayerID) != p.Index {
					return violation("teleport of player %d from connection %d", r.PlayerID, p.Index)
				}
				if _, ok := g.world.Avatar(p.Index); !ok {
					return drop().because("no avatar")
				}
				return pass
			}},
			{"ignores", func(g *Guard, p *player.Player, r *protocol.Teleport) Verdict {
				if g.frozen(p) {
					return g.teleportBack(p).because("ignoring actions")
				}
				return pass
			}},
			{"permission", func(g *Guard, p *player.Player, r *protocol.Teleport) Verdict {
				if !p.HasPermission(permissions.Teleport) {
					return g.teleportBack(p).notify("You do not have permission to teleport.")
				}
				return pass
			}},
			{"range", func(g *Guard, p *player.Player, r *protocol.Teleport) Verdict {
				cfg := g.Config()
				if !cfg.TeleportRangeCheck || p.LastNetPosition.IsZero() {
					return pass
				}
				dest := vec.Vec2Float{X: r.X, Y: r.Y}
				if dest.DistanceTo(p.LastNetPosition)/vec.TileSize > float64(cfg.TeleportMaxRange) {
					return g.teleportBack(p).because("teleport too far")
				}
				return pass
			}},
		},
		commit: func(ctx context.Context, g *Guard, p *player.Player, r *protocol.Teleport) Result {
			p.LastNetPosition = vec.Vec2Float{X: r.X, Y: r.Y}
			g.world.UpdateAvatar(p.Index, func(a *world.Avatar) { a.Pos = p.LastNetPosition })
			return committed(RelayAll)
		},
	})
}

// teleportBack возвращает игрока туда, где его видит сервер.
func (g *Guard) teleportBack(p *player.Player) Verdict {
	a, _ := g.world.Avatar(p.Index)
	return rejectWith(position(p.Index, a.Pos))
}
