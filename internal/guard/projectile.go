package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/annel0/packetguard/internal/permissions"
	"github.com/annel0/packetguard/internal/player"
	"github.com/annel0/packetguard/internal/protocol"
	"github.com/annel0/packetguard/internal/vec"
	"github.com/annel0/packetguard/internal/world"
)

// fuseWindow — сколько после броска взрывчатки разрушения без инструмента не считаются читом.
const fuseWindow = 10 * time.Second

func (g *Guard) registerProjectileChains() {
	register(g, protocol.KindProjectileNew, &chain[*protocol.ProjectileNew]{
		correct: func(g *Guard, p *player.Player, pr *protocol.ProjectileNew) []Correction {
			return []Correction{projectile(pr.Ident, int(pr.Owner))}
		},
		checks: []check[*protocol.ProjectileNew]{
			{"identity", checkProjectileOwner},
			{"bounds", func(g *Guard, p *player.Player, pr *protocol.ProjectileNew) Verdict {
				if pr.Ident < 0 || int(pr.Ident) >= g.cat.Limits.MaxProjectile || pr.Type < 0 {
					return violation("projectile %d of type %d out of range", pr.Ident, pr.Type)
				}
				return pass
			}},
			{"damage", func(g *Guard, p *player.Player, pr *protocol.ProjectileNew) Verdict {
				cfg := g.Config()
				if int(pr.Damage) > cfg.MaxProjDamage && !p.HasPermission(permissions.IgnoreDamageCap) {
					return reject().because("projectile damage %d over %d", pr.Damage, cfg.MaxProjDamage)
				}
				return pass
			}},
			{"ignores", func(g *Guard, p *player.Player, pr *protocol.ProjectileNew) Verdict {
				if g.ignoring(p) {
					return reject().because("ignoring actions")
				}
				return pass
			}},
			{"permission", func(g *Guard, p *player.Player, pr *protocol.ProjectileNew) Verdict {
				if g.Config().IgnoreProjUpdate || !g.projectileForbidden(p, pr.Type) {
					return pass
				}
				if g.cat.SharedNewProjectile(pr.Type) {
					return drop().because("shared projectile %d ignored", pr.Type)
				}
				return fatal("Does not have projectile permission to update projectile.")
			}},
			{"threshold", func(g *Guard, p *player.Player, pr *protocol.ProjectileNew) Verdict {
				if p.Tracker.Exceeds(player.CounterProjectile, g.Config().ProjectileThreshold) {
					return fatal("Reached projectile update threshold.")
				}
				return pass
			}},
			{"cooldown", func(g *Guard, p *player.Player, pr *protocol.ProjectileNew) Verdict {
				if g.cooling(p) {
					return reject().because("cooldown")
				}
				return pass
			}},
		},
		commit: commitProjectile,
	})

	register(g, protocol.KindProjectileDestroy, &chain[*protocol.ProjectileDestroy]{
		correct: func(g *Guard, p *player.Player, pd *protocol.ProjectileDestroy) []Correction {
			return []Correction{projectile(pd.Ident, int(pd.Owner))}
		},
		checks: []check[*protocol.ProjectileDestroy]{
			{"lookup", func(g *Guard, p *player.Player, pd *protocol.ProjectileDestroy) Verdict {
				if _, ok := g.world.Projectile(world.ProjectileKey{Ident: pd.Ident, Owner: pd.Owner}); !ok {
					return drop().because("unknown projectile %d/%d", pd.Ident, pd.Owner)
				}
				return pass
			}},
			{"ignores", func(g *Guard, p *player.Player, pd *protocol.ProjectileDestroy) Verdict {
				if g.ignoring(p) {
					return reject().because("ignoring actions")
				}
				return pass
			}},
			{"ownership", checkProjectileKillOwnership},
			{"cooldown", func(g *Guard, p *player.Player, pd *protocol.ProjectileDestroy) Verdict {
				if g.cooling(p) {
					return reject().because("cooldown")
				}
				return pass
			}},
		},
		commit: func(ctx context.Context, g *Guard, p *player.Player, pd *protocol.ProjectileDestroy) Result {
			g.world.RemoveProjectile(world.ProjectileKey{Ident: pd.Ident, Owner: pd.Owner})
			return committed(RelayAllExceptSender)
		},
	})
}

// checkProjectileOwner — снаряд создается от имени отправителя. Для общих
// снарядов владелец приводится к отправителю, для остальных это подмена.
func checkProjectileOwner(g *Guard, p *player.Player, pr *protocol.ProjectileNew) Verdict {
	if int(pr.Owner) == p.Index {
		return pass
	}
	if g.cat.SharedNewProjectile(pr.Type) {
		pr.Owner = uint8(p.Index)
		return pass
	}
	return violation("projectile owner %d does not match connection %d", pr.Owner, p.Index).
		with(projectile(pr.Ident, int(pr.Owner)))
}

// projectileForbidden — враждебный снаряд или снаряд запрещенного предмета.
func (g *Guard) projectileForbidden(p *player.Player, typ int16) bool {
	info, ok := g.cat.Projectile(typ)
	if !ok {
		return false
	}
	if info.Hostile {
		return true
	}
	return info.SourceItem != "" && !p.HasPermission(permissions.UseBannedItem) &&
		g.bans.IsBanned(info.SourceItem, p.Group)
}

func checkProjectileKillOwnership(g *Guard, p *player.Player, pd *protocol.ProjectileDestroy) Verdict {
	if g.Config().IgnoreProjKill {
		return pass
	}
	pr, _ := g.world.Projectile(world.ProjectileKey{Ident: pd.Ident, Owner: pd.Owner})
	if g.cat.SharedKillProjectile(pr.Type) {
		return pass
	}
	if int(pr.Key.Owner) != p.Index || g.projectileForbidden(p, pr.Type) {
		return fatal("Does not have projectile permission to kill projectile.")
	}
	return pass
}

func commitProjectile(ctx context.Context, g *Guard, p *player.Player, pr *protocol.ProjectileNew) Result {
	cfg := g.Config()
	shrapnel := pr.Type == g.cat.Special.Shrapnel && cfg.ProjIgnoreShrapnel
	if !shrapnel && !p.HasPermission(permissions.IgnoreProjectile) {
		p.Tracker.Increment(player.CounterProjectile)
	}
	if info, ok := g.cat.Projectile(pr.Type); ok && info.Fuse {
		p.FuseUntil = p.Now().Add(fuseWindow)
	}

	created := g.world.UpsertProjectile(world.Projectile{
		Key:       world.ProjectileKey{Ident: pr.Ident, Owner: pr.Owner},
		Type:      pr.Type,
		Pos:       vec.Vec2Float{X: pr.PosX, Y: pr.PosY},
		Vel:       vec.Vec2Float{X: pr.VelX, Y: pr.VelY},
		Knockback: pr.Knockback,
		Damage:    pr.Damage,
	})
	res := committed(RelayAllExceptSender)
	if created {
		res.Reason = fmt.Sprintf("projectile %d created", pr.Ident)
	}
	return res
}
