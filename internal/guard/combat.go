package guard

import (
	"context"
	"fmt"

	"github.com/annel0/packetguard/internal/permissions"
	"github.com/annel0/packetguard/internal/player"
	"github.com/annel0/packetguard/internal/protocol"
	"github.com/annel0/packetguard/internal/world"
)

const (
	playerDamageRange = 100
	npcStrikeRange    = 128
	buffRange         = 50
)

func (g *Guard) registerCombatChains() {
	register(g, protocol.KindPlayerDamage, &chain[*protocol.PlayerDamage]{
		correct: func(g *Guard, p *player.Player, r *protocol.PlayerDamage) []Correction {
			return []Correction{
				playerTarget(TargetPlayerHp, int(r.PlayerID)),
				playerTarget(TargetPlayerUpdate, int(r.PlayerID)),
			}
		},
		checks: []check[*protocol.PlayerDamage]{
			{"target", func(g *Guard, p *player.Player, r *protocol.PlayerDamage) Verdict {
				if _, ok := g.world.Avatar(int(r.PlayerID)); !ok {
					return drop().because("no player %d", r.PlayerID)
				}
				return pass
			}},
			{"damage", func(g *Guard, p *player.Player, r *protocol.PlayerDamage) Verdict {
				limit := g.Config().MaxDamage
				if int(r.Damage) > limit && int(r.PlayerID) != p.Index && !p.HasPermission(permissions.IgnoreDamageCap) {
					return fatal(fmt.Sprintf("Player damage exceeded %d.", limit))
				}
				return pass
			}},
			{"hostile", func(g *Guard, p *player.Player, r *protocol.PlayerDamage) Verdict {
				target, _ := g.world.Avatar(int(r.PlayerID))
				if r.PvP && !target.Hostile && int(r.PlayerID) != p.Index {
					return reject().because("target %d is not hostile", r.PlayerID)
				}
				return pass
			}},
			{"ignores", func(g *Guard, p *player.Player, r *protocol.PlayerDamage) Verdict {
				if g.ignoring(p) {
					return reject().because("ignoring actions")
				}
				return pass
			}},
			{"range", func(g *Guard, p *player.Player, r *protocol.PlayerDamage) Verdict {
				target, _ := g.world.Avatar(int(r.PlayerID))
				t := target.Tile()
				if g.outOfRange(p, t.X, t.Y, playerDamageRange) {
					return reject().because("target out of range")
				}
				return pass
			}},
			{"cooldown", func(g *Guard, p *player.Player, r *protocol.PlayerDamage) Verdict {
				if g.cooling(p) {
					return reject().because("cooldown")
				}
				return pass
			}},
		},
		commit: func(ctx context.Context, g *Guard, p *player.Player, r *protocol.PlayerDamage) Result {
			g.world.UpdateAvatar(int(r.PlayerID), func(a *world.Avatar) {
				a.Life = max(a.Life-r.Damage, 0)
			})
			return committed(RelayAllExceptSender)
		},
	})

	register(g, protocol.KindNpcStrike, &chain[*protocol.NpcStrike]{
		correct: func(g *Guard, p *player.Player, r *protocol.NpcStrike) []Correction {
			return []Correction{{Target: TargetNPC, ID: int(r.NpcID)}}
		},
		checks: []check[*protocol.NpcStrike]{
			{"lookup", func(g *Guard, p *player.Player, r *protocol.NpcStrike) Verdict {
				if n, ok := g.world.NPC(int(r.NpcID)); !ok || !n.Active {
					return drop().because("no npc %d", r.NpcID)
				}
				return pass
			}},
			{"damage", func(g *Guard, p *player.Player, r *protocol.NpcStrike) Verdict {
				limit := g.Config().MaxDamage
				if int(r.Damage) > limit && !p.HasPermission(permissions.IgnoreDamageCap) {
					return fatal(fmt.Sprintf("NPC damage exceeded %d.", limit))
				}
				return pass
			}},
			{"ignores", func(g *Guard, p *player.Player, r *protocol.NpcStrike) Verdict {
				if g.ignoring(p) {
					return reject().because("ignoring actions")
				}
				return pass
			}},
			{"town", func(g *Guard, p *player.Player, r *protocol.NpcStrike) Verdict {
				n, _ := g.world.NPC(int(r.NpcID))
				if n.Town && !p.HasPermission(permissions.MoveNPC) {
					return reject().notify("You don't have permission to move this NPC.")
				}
				return pass
			}},
			{"range", func(g *Guard, p *player.Player, r *protocol.NpcStrike) Verdict {
				n, _ := g.world.NPC(int(r.NpcID))
				t := n.Pos.ToTile()
				if g.outOfRange(p, t.X, t.Y, npcStrikeRange) {
					return reject().because("npc out of range")
				}
				return pass
			}},
			{"cooldown", func(g *Guard, p *player.Player, r *protocol.NpcStrike) Verdict {
				if g.cooling(p) {
					return reject().because("cooldown")
				}
				return pass
			}},
		},
		commit: func(ctx context.Context, g *Guard, p *player.Player, r *protocol.NpcStrike) Result {
			n, ok := g.world.StrikeNPC(int(r.NpcID), int32(r.Damage))
			if !ok {
				return committed(RelayAll)
			}
			return committed(RelayAll, r, n.Update())
		},
	})

	register(g, protocol.KindPlayerAddBuff, &chain[*protocol.PlayerAddBuff]{
		correct: func(g *Guard, p *player.Player, r *protocol.PlayerAddBuff) []Correction {
			return []Correction{playerTarget(TargetBuffs, int(r.PlayerID))}
		},
		checks: []check[*protocol.PlayerAddBuff]{
			{"target", func(g *Guard, p *player.Player, r *protocol.PlayerAddBuff) Verdict {
				if _, ok := g.world.Avatar(int(r.PlayerID)); !ok {
					return drop().because("no player %d", r.PlayerID)
				}
				return pass
			}},
			{"ignores", func(g *Guard, p *player.Player, r *protocol.PlayerAddBuff) Verdict {
				if g.ignoring(p) {
					return reject().because("ignoring actions")
				}
				return pass
			}},
			{"hostile", func(g *Guard, p *player.Player, r *protocol.PlayerAddBuff) Verdict {
				target, _ := g.world.Avatar(int(r.PlayerID))
				if int(r.PlayerID) != p.Index && !target.Hostile {
					return reject().because("target %d is not hostile", r.PlayerID)
				}
				return pass
			}},
			{"range", func(g *Guard, p *player.Player, r *protocol.PlayerAddBuff) Verdict {
				target, _ := g.world.Avatar(int(r.PlayerID))
				t := target.Tile()
				if g.outOfRange(p, t.X, t.Y, buffRange) {
					return reject().because("target out of range")
				}
				return pass
			}},
			{"cooldown", func(g *Guard, p *player.Player, r *protocol.PlayerAddBuff) Verdict {
				if g.cooling(p) {
					return reject().because("cooldown")
				}
				return pass
			}},
			{"duration", func(g *Guard, p *player.Player, r *protocol.PlayerAddBuff) Verdict {
				limit := g.cat.BuffMaxTime(r.BuffType)
				if limit <= 0 || r.Time > limit || r.Time < 0 {
					return reject().because("buff %d for %d ticks", r.BuffType, r.Time)
				}
				return pass
			}},
		},
		commit: func(ctx context.Context, g *Guard, p *player.Player, r *protocol.PlayerAddBuff) Result {
			g.world.UpdateAvatar(int(r.PlayerID), func(a *world.Avatar) { addBuff(&a.Buffs, r.BuffType) })
			return committed(RelayAllExceptSender)
		},
	})
}

// addBuff кладет бафф в первый свободный слот, если его еще нет.
func addBuff(buffs *[protocol.MaxBuffs]uint8, b uint8) {
	free := -1
	for i, cur := range buffs {
		if cur == b {
			return
		}
		if cur == 0 && free < 0 {
			free = i
		}
	}
	if free >= 0 {
		buffs[free] = b
	}
}
