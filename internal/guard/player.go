package guard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/annel0/packetguard/internal/config"
	"github.com/annel0/packetguard/internal/permissions"
	"github.com/annel0/packetguard/internal/physics"
	"github.com/annel0/packetguard/internal/player"
	"github.com/annel0/packetguard/internal/protocol"
	"github.com/annel0/packetguard/internal/vec"
	"github.com/annel0/packetguard/internal/world"
)

const (
	controlUseItem  = 32
	pvpAnnounceGap  = 5 * time.Second
	snapbackHeight  = 48 // пикселей над последней позицией
	invisibilityBan = "Invisibility Potion"
)

func (g *Guard) registerPlayerChains() {
	register(g, protocol.KindPlayerInfo, &chain[*protocol.PlayerInfo]{
		checks: []check[*protocol.PlayerInfo]{
			{"identity", func(g *Guard, p *player.Player, r *protocol.PlayerInfo) Verdict { return identity(p, r.PlayerID) }},
			{"name", func(g *Guard, p *player.Player, r *protocol.PlayerInfo) Verdict {
				if strings.TrimSpace(r.Name) == "" {
					return kick("Empty Name.")
				}
				return pass
			}},
			{"received", func(g *Guard, p *player.Player, r *protocol.PlayerInfo) Verdict {
				if p.ReceivedInfo {
					return drop().because("info already received")
				}
				return pass
			}},
			{"difficulty", func(g *Guard, p *player.Player, r *protocol.PlayerInfo) Verdict {
				cfg := g.Config()
				if cfg.MediumcoreOnly && r.Difficulty < 1 {
					return kick("Server is set to mediumcore and above characters only!")
				}
				if cfg.HardcoreOnly && r.Difficulty < 2 {
					return kick("Server is set to hardcore characters only!")
				}
				return pass
			}},
		},
		commit: func(ctx context.Context, g *Guard, p *player.Player, r *protocol.PlayerInfo) Result {
			p.Name = strings.TrimSpace(r.Name)
			p.Difficulty = r.Difficulty
			p.ReceivedInfo = true
			return committed(RelayNone)
		},
	})

	register(g, protocol.KindPlayerSlot, &chain[*protocol.PlayerSlot]{
		checks: []check[*protocol.PlayerSlot]{
			{"identity", func(g *Guard, p *player.Player, r *protocol.PlayerSlot) Verdict { return identity(p, r.PlayerID) }},
			{"bounds", func(g *Guard, p *player.Player, r *protocol.PlayerSlot) Verdict {
				if int(r.Slot) >= player.InventorySize {
					return violation("inventory slot %d", r.Slot)
				}
				if !g.cat.KnownItemType(r.ItemType) {
					return violation("item type %d", r.ItemType)
				}
				return pass
			}},
		},
		commit: commitPlayerSlot,
	})

	register(g, protocol.KindPlayerUpdate, &chain[*protocol.PlayerUpdate]{
		checks: []check[*protocol.PlayerUpdate]{
			{"identity", func(g *Guard, p *player.Player, r *protocol.PlayerUpdate) Verdict { return identity(p, r.PlayerID) }},
			{"slot", func(g *Guard, p *player.Player, r *protocol.PlayerUpdate) Verdict {
				if int(r.SelectedItem) >= player.InventorySize {
					return violation("selected slot %d", r.SelectedItem)
				}
				return pass
			}},
			{"disabled_range", checkDisabledMovement},
			{"dead", func(g *Guard, p *player.Player, r *protocol.PlayerUpdate) Verdict {
				if moved(p, r) && p.Dead {
					return drop().because("dead")
				}
				return pass
			}},
			{"noclip", checkNoclip},
			{"banned_item", func(g *Guard, p *player.Player, r *protocol.PlayerUpdate) Verdict {
				if r.Control&controlUseItem == 0 {
					return pass
				}
				it := g.cat.Item(p.Character.Inventory[r.SelectedItem].Type)
				if g.itemBanned(p, it) {
					return fatal("Using banned item").
						notify(fmt.Sprintf("You cannot use %s on this server. Your actions are being ignored.", it.Name))
				}
				return pass
			}},
		},
		commit: commitPlayerUpdate,
	})

	register(g, protocol.KindPlayerHp, &chain[*protocol.PlayerHp]{
		checks: []check[*protocol.PlayerHp]{
			{"identity", func(g *Guard, p *player.Player, r *protocol.PlayerHp) Verdict { return identity(p, r.PlayerID) }},
			{"stats", func(g *Guard, p *player.Player, r *protocol.PlayerHp) Verdict {
				if p.FirstMaxHP == 0 {
					p.FirstMaxHP = r.Max
				}
				return g.statHack(p, int(r.Max), g.Config().MaxHealth, p.FirstMaxHP)
			}},
		},
		commit: func(ctx context.Context, g *Guard, p *player.Player, r *protocol.PlayerHp) Result {
			if p.LoggedIn {
				p.Character.MaxHealth = r.Max
			}
			g.world.UpdateAvatar(p.Index, func(a *world.Avatar) { a.Life, a.LifeMax = r.Cur, r.Max })
			return committed(RelayAllExceptSender)
		},
	})

	register(g, protocol.KindPlayerMana, &chain[*protocol.PlayerMana]{
		checks: []check[*protocol.PlayerMana]{
			{"identity", func(g *Guard, p *player.Player, r *protocol.PlayerMana) Verdict { return identity(p, r.PlayerID) }},
			{"stats", func(g *Guard, p *player.Player, r *protocol.PlayerMana) Verdict {
				if p.FirstMaxMP == 0 {
					p.FirstMaxMP = r.Max
				}
				return g.statHack(p, int(r.Max), g.Config().MaxMana, p.FirstMaxMP)
			}},
		},
		commit: func(ctx context.Context, g *Guard, p *player.Player, r *protocol.PlayerMana) Result {
			if p.LoggedIn {
				p.Character.MaxMana = r.Max
			}
			g.world.UpdateAvatar(p.Index, func(a *world.Avatar) { a.Mana, a.ManaMax = r.Cur, r.Max })
			return committed(RelayAllExceptSender)
		},
	})

	register(g, protocol.KindPlayerSpawn, &chain[*protocol.PlayerSpawn]{
		checks: []check[*protocol.PlayerSpawn]{
			{"identity", func(g *Guard, p *player.Player, r *protocol.PlayerSpawn) Verdict { return identity(p, r.PlayerID) }},
		},
		commit: func(ctx context.Context, g *Guard, p *player.Player, r *protocol.PlayerSpawn) Result {
			tile := g.world.Spawn()
			if g.world.InBounds(int(r.SpawnX), int(r.SpawnY)) {
				tile = vec.Vec2{X: int(r.SpawnX), Y: int(r.SpawnY)}
			}
			p.Dead = false
			p.Spawned = true
			p.LastNetPosition = spawnPixel(tile)
			g.world.UpdateAvatar(p.Index, func(a *world.Avatar) {
				a.Dead = false
				a.Pos = p.LastNetPosition
			})
			return committed(RelayAllExceptSender)
		},
	})

	register(g, protocol.KindPlayerKillMe, &chain[*protocol.PlayerKillMe]{
		checks: []check[*protocol.PlayerKillMe]{
			{"identity", func(g *Guard, p *player.Player, r *protocol.PlayerKillMe) Verdict { return identity(p, r.PlayerID) }},
		},
		commit: func(ctx context.Context, g *Guard, p *player.Player, r *protocol.PlayerKillMe) Result {
			p.Dead = true
			g.world.UpdateAvatar(p.Index, func(a *world.Avatar) { a.Dead = true })
			return committed(RelayAllExceptSender)
		},
	})

	register(g, protocol.KindTogglePvp, &chain[*protocol.TogglePvp]{
		correct: func(g *Guard, p *player.Player, r *protocol.TogglePvp) []Correction {
			return []Correction{playerTarget(TargetPvp, p.Index)}
		},
		checks: []check[*protocol.TogglePvp]{
			{"identity", func(g *Guard, p *player.Player, r *protocol.TogglePvp) Verdict { return identity(p, r.PlayerID) }},
			{"mode", func(g *Guard, p *player.Player, r *protocol.TogglePvp) Verdict {
				switch g.Config().PvPMode {
				case config.PvPDisabled:
					if r.Hostile {
						return reject().because("pvp disabled")
					}
				case config.PvPAlways:
					if !r.Hostile {
						return reject().notify("PvP is forced! Enable PvP or else you can't do anything!").because("pvp forced")
					}
				}
				return pass
			}},
		},
		commit: commitTogglePvp,
	})

	register(g, protocol.KindPlayerTeam, &chain[*protocol.PlayerTeam]{
		checks: []check[*protocol.PlayerTeam]{
			{"identity", func(g *Guard, p *player.Player, r *protocol.PlayerTeam) Verdict { return identity(p, r.PlayerID) }},
		},
		commit: func(ctx context.Context, g *Guard, p *player.Player, r *protocol.PlayerTeam) Result {
			p.Team = r.Team
			g.world.UpdateAvatar(p.Index, func(a *world.Avatar) { a.Team = r.Team })
			return committed(RelayAll)
		},
	})

	register(g, protocol.KindPlayerBuffs, &chain[*protocol.PlayerBuffs]{
		checks: []check[*protocol.PlayerBuffs]{
			{"identity", func(g *Guard, p *player.Player, r *protocol.PlayerBuffs) Verdict { return identity(p, r.PlayerID) }},
		},
		commit: func(ctx context.Context, g *Guard, p *player.Player, r *protocol.PlayerBuffs) Result {
			banned := !p.HasPermission(permissions.UseBannedItem) && g.bans.IsBanned(invisibilityBan, p.Group)
			for i, b := range r.Buffs {
				if b == g.cat.Special.InvisibilityBuf && banned {
					r.Buffs[i] = 0
				}
			}
			g.world.UpdateAvatar(p.Index, func(a *world.Avatar) { a.Buffs = r.Buffs })
			return committed(RelayAllExceptSender)
		},
	})

	register(g, protocol.KindChatText, &chain[*protocol.ChatText]{
		checks: []check[*protocol.ChatText]{
			{"identity", func(g *Guard, p *player.Player, r *protocol.ChatText) Verdict { return identity(p, r.PlayerID) }},
			{"text", func(g *Guard, p *player.Player, r *protocol.ChatText) Verdict {
				if strings.TrimSpace(r.Text) == "" {
					return drop().because("empty chat")
				}
				return pass
			}},
		},
		commit: func(ctx context.Context, g *Guard, p *player.Player, r *protocol.ChatText) Result {
			return committed(RelayAll)
		},
	})
}

func (g *Guard) statHack(p *player.Player, max, limit int, first int16) Verdict {
	if max > limit && max > int(first) && !p.HasPermission(permissions.IgnoreStatHack) {
		return kick("Hacked Client Detected.")
	}
	return pass
}

func commitPlayerSlot(ctx context.Context, g *Guard, p *player.Player, r *protocol.PlayerSlot) Result {
	cfg := g.Config()
	// клиент шлет весь инвентарь сразу после входа; последний слот завершает передачу
	initial := false
	if !p.HasSentInventory && int(r.Slot) == player.InventorySize-1 {
		p.HasSentInventory = true
		initial = true
	}
	p.Character.StoreSlot(int(r.Slot), player.Slot{Type: r.ItemType, Stack: int16(r.Stack), Prefix: r.Prefix})

	if !p.LoggedIn && cfg.ServerSideCharacter && cfg.DisableLoginBeforeJoin && !initial &&
		p.HasSentInventory && !p.HasPermission(permissions.BypassInventory) {
		// предмет мог уйти в мусорку до первой попытки входа
		p.SetIgnore(player.IgnoreTrashCan, "trash can")
	}
	g.checkStacks(p)
	return committed(RelayAllExceptSender)
}

// checkStacks игнорирует действия, пока в инвентаре есть стек больше допустимого.
func (g *Guard) checkStacks(p *player.Player) {
	if p.HasPermission(permissions.IgnoreStackHack) {
		p.ClearIgnore(player.IgnoreCheating)
		return
	}
	for _, s := range p.Character.Inventory {
		if s.Type == 0 {
			continue
		}
		it := g.cat.Item(s.Type)
		if s.Stack < 0 || (it.MaxStack > 0 && int(s.Stack) > it.MaxStack) {
			p.SetIgnore(player.IgnoreCheating,
				fmt.Sprintf("Remove item %s (%d) exceeds max stack of %d", it.Name, s.Stack, it.MaxStack))
			return
		}
	}
	p.ClearIgnore(player.IgnoreCheating)
}

func moved(p *player.Player, r *protocol.PlayerUpdate) bool {
	return !p.LastNetPosition.IsZero() && (vec.Vec2Float{X: r.PosX, Y: r.PosY}) != p.LastNetPosition
}

// ignoreNotice — почему действия игрока не принимаются.
func (g *Guard) ignoreNotice(p *player.Player) string {
	if msg := p.IgnoreMessage(); msg != "" {
		return msg
	}
	cfg := g.Config()
	switch {
	case cfg.RequireLogin && !p.LoggedIn:
		return "Please /register or /login to play!"
	case cfg.PvPMode == config.PvPAlways && !p.Hostile:
		return "PvP is forced! Enable PvP or else you can't do anything!"
	case p.Tracker.Disabled():
		return "You have been disabled: " + p.Tracker.Reason()
	}
	return ""
}

// checkDisabledMovement — игрок, чьи действия игнорируются, не может уходить далеко.
func checkDisabledMovement(g *Guard, p *player.Player, r *protocol.PlayerUpdate) Verdict {
	if !moved(p, r) || !g.ignoring(p) {
		return pass
	}
	pos := vec.Vec2Float{X: r.PosX, Y: r.PosY}
	distance := pos.DistanceTo(p.LastNetPosition) / vec.TileSize
	if distance <= float64(g.Config().MaxRangeForDisabled) {
		return drop().because("ignoring actions")
	}
	back := vec.Vec2Float{X: p.LastNetPosition.X, Y: p.LastNetPosition.Y - snapbackHeight}
	v := rejectWith(position(p.Index, back)).because("moved %.1f tiles while ignored", distance)
	if msg := g.ignoreNotice(p); msg != "" {
		v = v.notify(msg)
	}
	return v
}

func (g *Guard) collides(pos vec.Vec2Float) bool {
	return physics.SolidCollision(pos, physics.PlayerCollider(), g.world.Solid)
}

func checkNoclip(g *Guard, p *player.Player, r *protocol.PlayerUpdate) Verdict {
	if !moved(p, r) || g.Config().IgnoreNoClip || p.HasPermission(permissions.IgnoreNoClip) {
		return pass
	}
	if !g.collides(vec.Vec2Float{X: r.PosX, Y: r.PosY}) {
		return pass
	}
	if g.collides(p.LastNetPosition) {
		spawn := spawnPixel(g.world.Spawn())
		return rejectWith(position(p.Index, spawn)).
			notify("You got stuck in a solid object, Sent to spawn point.").
			because("noclip, stuck")
	}
	return rejectWith(position(p.Index, p.LastNetPosition)).because("noclip")
}

// spawnPixel — позиция аватара, стоящего на клетке tile.
func spawnPixel(tile vec.Vec2) vec.Vec2Float {
	return vec.Vec2Float{
		X: float32(tile.X * vec.TileSize),
		Y: float32(tile.Y*vec.TileSize - physics.PlayerHeight),
	}
}

func commitPlayerUpdate(ctx context.Context, g *Guard, p *player.Player, r *protocol.PlayerUpdate) Result {
	if r.Control&controlUseItem != 0 {
		g.useConsumable(p, g.cat.Item(p.Character.Inventory[r.SelectedItem].Type).Name)
	}
	p.SelectedItem = r.SelectedItem
	p.LastNetPosition = vec.Vec2Float{X: r.PosX, Y: r.PosY}
	g.world.UpdateAvatar(p.Index, func(a *world.Avatar) {
		a.Pos = p.LastNetPosition
		a.Vel = vec.Vec2Float{X: r.VelX, Y: r.VelY}
	})
	return committed(RelayAllExceptSender)
}

// useConsumable учитывает кристаллы и плоды, повышающие максимум здоровья и маны.
func (g *Guard) useConsumable(p *player.Player, name string) {
	c := &p.Character
	var hp, mp int16
	switch {
	case name == "Mana Crystal" && c.MaxMana <= 180:
		mp = 20
	case name == "Life Crystal" && c.MaxHealth <= 380:
		hp = 20
	case name == "Life Fruit" && c.MaxHealth >= 400:
		hp = 5
	default:
		return
	}
	c.MaxHealth += hp
	c.MaxMana += mp
	g.world.UpdateAvatar(p.Index, func(a *world.Avatar) {
		a.Life += hp
		a.LifeMax += hp
		a.Mana += mp
		a.ManaMax += mp
	})
}

func commitTogglePvp(ctx context.Context, g *Guard, p *player.Player, r *protocol.TogglePvp) Result {
	res := committed(RelayAll)
	if p.Hostile != r.Hostile {
		now := p.Now()
		if now.Sub(p.LastPvpChange) > pvpAnnounceGap {
			state := "disabled"
			if r.Hostile {
				state = "enabled"
			}
			res.Announcements = append(res.Announcements, fmt.Sprintf("%s has %s PvP!", displayName(p), state))
		}
		p.LastPvpChange = now
	}
	p.Hostile = r.Hostile
	g.world.UpdateAvatar(p.Index, func(a *world.Avatar) { a.Hostile = r.Hostile })
	return res
}
