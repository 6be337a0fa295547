package guard

import (
	"context"
	"fmt"

	"github.com/annel0/packetguard/internal/permissions"
	"github.com/annel0/packetguard/internal/player"
	"github.com/annel0/packetguard/internal/protocol"
	"github.com/annel0/packetguard/internal/vec"
)

const liquidRange = 16

// Коды ведер из каталога.
const (
	bucketEmpty = 0
	bucketWater = 1
	bucketLava  = 2
	bucketHoney = 3
)

var liquidNames = map[uint8]string{
	protocol.LiquidWater: "water",
	protocol.LiquidLava:  "lava",
	protocol.LiquidHoney: "honey",
}

var liquidBuckets = map[uint8]int{
	protocol.LiquidWater: bucketWater,
	protocol.LiquidLava:  bucketLava,
	protocol.LiquidHoney: bucketHoney,
}

var bucketItemNames = map[uint8]string{
	protocol.LiquidWater: "Water Bucket",
	protocol.LiquidLava:  "Lava Bucket",
	protocol.LiquidHoney: "Honey Bucket",
}

const noPermission = "You do not have permission to perform this action."

func (g *Guard) registerLiquidChain() {
	register(g, protocol.KindLiquidSet, &chain[*protocol.LiquidSet]{
		correct: func(g *Guard, p *player.Player, l *protocol.LiquidSet) []Correction {
			return []Correction{tiles(int(l.X), int(l.Y), squareMedium)}
		},
		checks: []check[*protocol.LiquidSet]{
			{"bounds", func(g *Guard, p *player.Player, l *protocol.LiquidSet) Verdict {
				if !g.world.InBounds(int(l.X), int(l.Y)) {
					return violation("liquid outside world at %d,%d", l.X, l.Y)
				}
				if _, ok := liquidNames[l.Liquid]; !ok {
					return violation("unknown liquid %d", l.Liquid)
				}
				return pass
			}},
			{"ignores", func(g *Guard, p *player.Player, l *protocol.LiquidSet) Verdict {
				if g.ignoring(p) {
					return reject().because("ignoring actions")
				}
				return pass
			}},
			{"threshold", checkLiquidThreshold},
			{"bucket", checkLiquidBucket},
			{"protection", func(g *Guard, p *player.Player, l *protocol.LiquidSet) Verdict {
				if msg := g.tileProtected(p, int(l.X), int(l.Y)); msg != "" {
					return reject().because("protected")
				}
				return pass
			}},
			{"range", func(g *Guard, p *player.Player, l *protocol.LiquidSet) Verdict {
				if g.outOfRange(p, int(l.X), int(l.Y), liquidRange) {
					return reject().because("out of range")
				}
				return pass
			}},
			{"cooldown", func(g *Guard, p *player.Player, l *protocol.LiquidSet) Verdict {
				if g.cooling(p) {
					return reject().because("cooldown")
				}
				return pass
			}},
		},
		commit: func(ctx context.Context, g *Guard, p *player.Player, l *protocol.LiquidSet) Result {
			pos := vec.Vec2{X: int(l.X), Y: int(l.Y)}
			before := g.world.SetLiquid(pos, l.Amount, l.Liquid)
			g.journalEdit(ctx, p, "liquid", pos, before)
			return committed(RelayAllExceptSender)
		},
	})
}

// checkLiquidThreshold считает каждое сообщение о жидкости, даже отклоненное дальше.
func checkLiquidThreshold(g *Guard, p *player.Player, l *protocol.LiquidSet) Verdict {
	if p.Tracker.Exceeds(player.CounterTileLiquid, g.Config().TileLiquidThreshold) {
		return fatal("Reached TileLiquid threshold.")
	}
	if !p.HasPermission(permissions.IgnoreLiquid) {
		p.Tracker.Increment(player.CounterTileLiquid)
	}
	return pass
}

// checkLiquidBucket — разлить жидкость можно только подходящим или пустым ведром.
func checkLiquidBucket(g *Guard, p *player.Player, l *protocol.LiquidSet) Verdict {
	if l.Amount == 0 {
		return pass
	}
	name := liquidNames[l.Liquid]
	bucket, ok := g.cat.Bucket(p.SelectedSlot().Type)
	if !ok || (bucket != bucketEmpty && bucket != liquidBuckets[l.Liquid]) {
		return fatal(fmt.Sprintf("Spreading %s without holding a %s bucket", name, name)).notify(noPermission)
	}
	if !p.HasPermission(permissions.UseBannedItem) && g.bans.IsBanned(bucketItemNames[l.Liquid], p.Group) {
		return fatal(fmt.Sprintf("Using banned %s bucket without permissions", name)).notify(noPermission)
	}
	return pass
}
