package guard

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/annel0/packetguard/internal/catalog"
	"github.com/annel0/packetguard/internal/permissions"
	"github.com/annel0/packetguard/internal/player"
	"github.com/annel0/packetguard/internal/protocol"
	"github.com/annel0/packetguard/internal/vec"
	"github.com/annel0/packetguard/internal/world"
)

// Размеры квадратов исправления вокруг клетки.
const (
	squareDefault = 4
	squareSmall   = 1
	squareMedium  = 3
)

func (g *Guard) registerTileChains() {
	register(g, protocol.KindTile, &chain[*protocol.Tile]{
		correct: func(g *Guard, p *player.Player, t *protocol.Tile) []Correction {
			return []Correction{tiles(int(t.X), int(t.Y), squareDefault)}
		},
		checks: []check[*protocol.Tile]{
			{"bounds", checkTileBounds},
			{"dead", checkTileDead},
			{"awaiting_name", checkAwaitingName},
			{"awaiting_point", checkAwaitingPoint},
			// отключенное соединение получает исправление раньше любых доменных проверок
			{"ignores", checkTileIgnores},
			{"tool", checkTileTool},
			{"cooldown", checkTileCooldown},
			{"protection", checkTileProtection},
			{"range", checkTileRange},
			{"threshold", checkTileThreshold},
		},
		commit: commitTile,
	})

	register(g, protocol.KindTileSendSquare, &chain[*protocol.TileSendSquare]{
		checks: []check[*protocol.TileSendSquare]{
			{"size", checkSquareSize},
			{"ignores", checkSquareIgnores},
			{"cooldown", checkSquareCooldown},
		},
		commit: commitSquare,
	})

	register(g, protocol.KindTileKill, &chain[*protocol.TileKill]{
		correct: func(g *Guard, p *player.Player, t *protocol.TileKill) []Correction {
			return []Correction{tiles(int(t.X), int(t.Y), squareMedium)}
		},
		checks: []check[*protocol.TileKill]{
			{"bounds", func(g *Guard, p *player.Player, t *protocol.TileKill) Verdict {
				if !g.world.InBounds(int(t.X), int(t.Y)) {
					return violation("chest kill outside world at %d,%d", t.X, t.Y)
				}
				return pass
			}},
			{"dead", func(g *Guard, p *player.Player, t *protocol.TileKill) Verdict {
				if p.Dead && g.Config().PreventDeadModification {
					return reject().because("dead")
				}
				return pass
			}},
			{"ignores", func(g *Guard, p *player.Player, t *protocol.TileKill) Verdict {
				if g.ignoring(p) {
					return reject().because("ignoring actions")
				}
				return pass
			}},
			{"chest", checkChestKillTarget},
			{"protection", func(g *Guard, p *player.Player, t *protocol.TileKill) Verdict {
				if msg := g.tileProtected(p, int(t.X), int(t.Y)); msg != "" {
					return reject().notify(msg).because("protected")
				}
				return pass
			}},
			{"range", func(g *Guard, p *player.Player, t *protocol.TileKill) Verdict {
				if g.outOfRange(p, int(t.X), int(t.Y), 0) {
					return reject().because("out of range")
				}
				return pass
			}},
			{"cooldown", func(g *Guard, p *player.Player, t *protocol.TileKill) Verdict {
				if g.cooling(p) {
					return reject().because("cooldown")
				}
				return pass
			}},
		},
		commit: commitChestKill,
	})

	register(g, protocol.KindPaintTile, &chain[*protocol.PaintTile]{
		checks: []check[*protocol.PaintTile]{
			{"protection", func(g *Guard, p *player.Player, t *protocol.PaintTile) Verdict {
				return g.paintAllowed(p, int(t.X), int(t.Y), TargetPaintTile)
			}},
		},
		commit: func(ctx context.Context, g *Guard, p *player.Player, t *protocol.PaintTile) Result {
			pos := vec.Vec2{X: int(t.X), Y: int(t.Y)}
			before := g.world.PaintTile(pos, t.Color)
			g.journalEdit(ctx, p, "paint_tile", pos, before)
			return committed(RelayAllExceptSender)
		},
	})

	register(g, protocol.KindPaintWall, &chain[*protocol.PaintWall]{
		checks: []check[*protocol.PaintWall]{
			{"protection", func(g *Guard, p *player.Player, t *protocol.PaintWall) Verdict {
				return g.paintAllowed(p, int(t.X), int(t.Y), TargetPaintWall)
			}},
		},
		commit: func(ctx context.Context, g *Guard, p *player.Player, t *protocol.PaintWall) Result {
			pos := vec.Vec2{X: int(t.X), Y: int(t.Y)}
			before := g.world.PaintWall(pos, t.Color)
			g.journalEdit(ctx, p, "paint_wall", pos, before)
			return committed(RelayAllExceptSender)
		},
	})
}

// --- Tile ---

func checkTileBounds(g *Guard, p *player.Player, t *protocol.Tile) Verdict {
	if !t.Action.Valid() {
		return violation("unknown tile action %d", t.Action)
	}
	if !g.world.InBounds(int(t.X), int(t.Y)) {
		return violation("tile edit outside world at %d,%d", t.X, t.Y)
	}
	return pass
}

func checkTileDead(g *Guard, p *player.Player, t *protocol.Tile) Verdict {
	if p.Dead && g.Config().PreventDeadModification {
		return reject().because("dead")
	}
	return pass
}

// checkAwaitingName отвечает на запрос «какие регионы в этой точке».
// Параметры: -u — включая незащищенные, -z — с Z, -p — не сбрасывать ожидание.
func checkAwaitingName(g *Guard, p *player.Player, t *protocol.Tile) Verdict {
	if !p.AwaitingName {
		return pass
	}
	var unprotected, withZ, persistent bool
	for _, param := range p.AwaitingNameParams {
		switch strings.ToLower(param) {
		case "-u":
			unprotected = true
		case "-z":
			withZ = true
		case "-p":
			persistent = true
		}
	}

	var names []string
	for _, r := range g.regions.At(int(t.X), int(t.Y)) {
		if !unprotected && !r.DisableBuild {
			continue
		}
		if withZ {
			names = append(names, fmt.Sprintf("%s (z:%d)", r.Name, r.Z))
		} else {
			names = append(names, r.Name)
		}
	}

	v := Verdict{Outcome: Drop, Reason: "region query", Corrections: []Correction{tiles(int(t.X), int(t.Y), squareSmall)}}
	switch {
	case len(names) == 0 && unprotected:
		v = v.notify("There are no regions at this point.")
	case len(names) == 0:
		v = v.notify("There are no regions at this point or they are not protected.")
	case unprotected:
		v = v.notify("Regions at this point:").notify(strings.Join(names, ", "))
	default:
		v = v.notify("Protected regions at this point:").notify(strings.Join(names, ", "))
	}
	if !persistent {
		p.AwaitingName = false
		p.AwaitingNameParams = nil
	}
	return v
}

func checkAwaitingPoint(g *Guard, p *player.Player, t *protocol.Tile) Verdict {
	n := p.AwaitingTempPoint
	if n < 1 || n > len(p.TempPoints) {
		return pass
	}
	p.TempPoints[n-1] = vec.Vec2{X: int(t.X), Y: int(t.Y)}
	p.AwaitingTempPoint = 0
	return Verdict{
		Outcome:     Drop,
		Reason:      "temp point",
		Corrections: []Correction{tiles(int(t.X), int(t.Y), squareSmall)},
	}.notify(fmt.Sprintf("Set temp point %d.", n))
}

// hasFuse — недавно брошенная взрывчатка может разрушать что угодно.
func hasFuse(p *player.Player) bool {
	return p.FuseUntil.After(p.Now())
}

// checkTileTool — доменная проверка: инструмент, предмет, стиль, лимиты.
func checkTileTool(g *Guard, p *player.Player, t *protocol.Tile) Verdict {
	x, y := int(t.X), int(t.Y)
	cell := g.world.Cell(vec.Vec2{X: x, Y: y})
	it := g.selectedItem(p)

	switch t.Action {
	case protocol.TileKillTile, protocol.TileKillTileNoItem:
		if !cell.Active {
			// клиент уже убрал клетку у себя
			return Verdict{Outcome: Drop, Corrections: []Correction{tiles(x, y, squareSmall)}}.because("nothing to break")
		}
		tool := g.cat.RequiredTool(cell.Type)
		if tool != catalog.ToolNone && !it.Has(tool) && !it.Explosive && !hasFuse(p) {
			return rejectWith(tiles(x, y, squareDefault)).because("breaking %d requires %s", cell.Type, tool)
		}

	case protocol.TileKillWall:
		if cell.Wall == 0 {
			return Verdict{Outcome: Drop, Corrections: []Correction{tiles(x, y, squareSmall)}}.because("no wall")
		}
		if !it.Has(catalog.ToolHammer) && !it.Explosive && !hasFuse(p) {
			return rejectWith(tiles(x, y, squareSmall)).because("breaking wall requires hammer")
		}

	case protocol.TilePlaceTile, protocol.TilePlaceWall:
		return g.checkPlacement(p, t, cell, it)

	case protocol.TilePlaceWire:
		if it.ID != g.cat.Special.Wrench {
			return rejectWith(tiles(x, y, squareSmall)).because("wire without wrench")
		}

	case protocol.TileKillWire:
		if it.ID != g.cat.Special.WireCutter {
			return rejectWith(tiles(x, y, squareSmall)).because("wire cut without cutter")
		}
	}
	return pass
}

func (g *Guard) checkPlacement(p *player.Player, t *protocol.Tile, cell world.Cell, it catalog.Item) Verdict {
	cfg := g.Config()
	x, y := int(t.X), int(t.Y)
	edit := t.EditData
	isTile := t.Action == protocol.TilePlaceTile
	sq := tiles(x, y, squareDefault)

	if isTile && cfg.PreventInvalidPlaceStyle {
		if maxStyle, ok := g.cat.MaxStyle(uint16(edit)); ok && t.Style > maxStyle {
			return rejectWith(sq).because("style %d over %d for tile %d", t.Style, maxStyle, edit)
		}
	}

	creates := it.CreateWall
	if isTile {
		creates = it.CreateTile
	}
	if int(edit) != creates && !(isTile && g.cat.PlaceExempt(uint16(edit))) && !g.familySubstitution(isTile, cell, edit) {
		return rejectWith(sq).because("selected item %d does not create %d", it.ID, edit)
	}

	limit := g.cat.Limits.MaxWallTypes
	if isTile {
		limit = g.cat.Limits.MaxTileSets
	}
	if g.itemBanned(p, it) || int(edit) >= limit {
		return rejectWith(sq).because("banned or unknown %d", edit)
	}
	if !isTile {
		return pass
	}

	if g.cat.IsPiggyBank(uint16(edit)) && cfg.ServerSideCharacter && cfg.DisablePiggybanksOnSSC {
		return rejectWith(tiles(x, y, squareMedium)).
			notify("You cannot place this tile because server side characters are enabled.").
			because("piggy bank under SSC")
	}
	if uint16(edit) == g.cat.Special.ChestTile {
		if g.world.ChestCount() >= g.world.MaxChests() {
			return rejectWith(tiles(x, y, squareMedium)).
				notify("The world's chest limit has been reached - unable to place more.").
				because("chest limit")
		}
		if g.boulderBelow(x, y) || g.boulderBelow(x+1, y) {
			return rejectWith(tiles(x, y, squareMedium)).because("chest on boulder")
		}
	}
	return pass
}

// familySubstitution — замена типа в пределах одного косметического семейства
// (сглаживание на клиенте), без требования держать создающий предмет.
func (g *Guard) familySubstitution(isTile bool, cell world.Cell, edit uint8) bool {
	if isTile {
		return cell.Active && g.cat.SameTileFamily(cell.Type, uint16(edit))
	}
	return cell.Wall != 0 && g.cat.SameWallFamily(cell.Wall, edit)
}

func (g *Guard) boulderBelow(x, y int) bool {
	if !g.world.InBounds(x, y+1) {
		return false
	}
	c := g.world.Cell(vec.Vec2{X: x, Y: y + 1})
	return c.Active && c.Type == g.cat.Special.BoulderTile
}

func checkTileIgnores(g *Guard, p *player.Player, t *protocol.Tile) Verdict {
	if g.ignoring(p) {
		return reject().because("ignoring actions")
	}
	return pass
}

func checkTileProtection(g *Guard, p *player.Player, t *protocol.Tile) Verdict {
	if msg := g.tileProtected(p, int(t.X), int(t.Y)); msg != "" {
		return reject().notify(msg).because("protected")
	}
	return pass
}

// breakExempt — разрушение льда от жезла и срезаемых тайлов не считается
// и не ограничивается дистанцией.
func (g *Guard) breakExempt(t *protocol.Tile) bool {
	if !t.Action.IsKillTile() {
		return false
	}
	c := g.world.Cell(vec.Vec2{X: int(t.X), Y: int(t.Y)})
	return c.Active && (c.Type == g.cat.Special.IceRodTile || g.cat.Tile(c.Type).Cut)
}

func checkTileRange(g *Guard, p *player.Player, t *protocol.Tile) Verdict {
	if g.breakExempt(t) {
		return pass
	}
	// веревка достраивается далеко от игрока
	if t.Action == protocol.TilePlaceTile && uint16(t.EditData) == g.cat.Special.RopeTile {
		return pass
	}
	if g.outOfRange(p, int(t.X), int(t.Y), 0) {
		return reject().because("out of range")
	}
	return pass
}

func checkTileThreshold(g *Guard, p *player.Player, t *protocol.Tile) Verdict {
	if g.breakExempt(t) {
		return pass
	}
	cfg := g.Config()
	if p.Tracker.Exceeds(player.CounterTileKill, cfg.TileKillThreshold) {
		return fatal("Reached TileKill threshold.")
	}
	if p.Tracker.Exceeds(player.CounterTilePlace, cfg.TilePlaceThreshold) {
		return fatal("Reached TilePlace threshold.")
	}
	return pass
}

func checkTileCooldown(g *Guard, p *player.Player, t *protocol.Tile) Verdict {
	if g.cooling(p) {
		return reject().because("cooldown")
	}
	return pass
}

func commitTile(ctx context.Context, g *Guard, p *player.Player, t *protocol.Tile) Result {
	pos := vec.Vec2{X: int(t.X), Y: int(t.Y)}
	solid := g.world.Solid(pos)
	exempt := g.breakExempt(t)

	before := g.world.ApplyTile(t)

	switch {
	case t.Action.IsPlace():
		if !p.HasPermission(permissions.IgnorePlaceTile) {
			p.Tracker.Increment(player.CounterTilePlace)
		}
		p.TilesCreated.Record(pos, before)
		if t.Action == protocol.TilePlaceTile && uint16(t.EditData) == g.cat.Special.ChestTile {
			if _, err := g.world.AddChest(pos.X, pos.Y); err != nil {
				g.log.Debug("Сундук в %d,%d не зарегистрирован: %v", pos.X, pos.Y, err)
			}
		}
	case t.Action.IsKillTile() || t.Action == protocol.TileKillWall:
		if solid && !exempt && !p.HasPermission(permissions.IgnoreKillTile) {
			p.Tracker.Increment(player.CounterTileKill)
		}
		p.TilesDestroyed.Record(pos, before)
	}

	g.journalEdit(ctx, p, tileActionName(t.Action), pos, before)
	return committed(RelayAll)
}

func tileActionName(a protocol.TileAction) string {
	switch a {
	case protocol.TileKillTile, protocol.TileKillTileNoItem:
		return "kill_tile"
	case protocol.TilePlaceTile:
		return "place_tile"
	case protocol.TileKillWall:
		return "kill_wall"
	case protocol.TilePlaceWall:
		return "place_wall"
	case protocol.TilePlaceWire:
		return "place_wire"
	case protocol.TileKillWire:
		return "kill_wire"
	}
	return "tile"
}

// --- TileSendSquare ---

func squareArea(sq *protocol.TileSendSquare) Correction {
	return tileArea(int(sq.X), int(sq.Y), max(int(sq.Size), 1))
}

func checkSquareSize(g *Guard, p *player.Player, sq *protocol.TileSendSquare) Verdict {
	if sq.Size < 1 || sq.Size > protocol.MaxSquareSize || len(sq.Tiles) != int(sq.Size)*int(sq.Size) {
		return violation("tile square size %d", sq.Size)
	}
	return pass
}

// checkSquareCooldown — editclientside снимает только кулдаун угрозы.
func checkSquareCooldown(g *Guard, p *player.Player, sq *protocol.TileSendSquare) Verdict {
	if p.HasPermission(permissions.EditClientSide) {
		return pass
	}
	if g.cooling(p) {
		return rejectWith(squareArea(sq)).because("cooldown")
	}
	return pass
}

func checkSquareIgnores(g *Guard, p *player.Player, sq *protocol.TileSendSquare) Verdict {
	if g.ignoring(p) {
		return rejectWith(squareArea(sq)).because("ignoring actions")
	}
	return pass
}

// commitSquare принимает из квадрата только безопасные изменения:
// поворот ориентируемых тайлов и замены внутри семейств.
func commitSquare(ctx context.Context, g *Guard, p *player.Player, sq *protocol.TileSendSquare) Result {
	size := int(sq.Size)
	if p.HasPermission(permissions.EditClientSide) {
		g.world.ApplySquare(sq)
		return committed(RelayAllExceptSender)
	}

	changed := false
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			x, y := int(sq.X)+i, int(sq.Y)+j
			if !g.world.InBounds(x, y) {
				continue
			}
			if g.tileProtected(p, x, y) != "" || g.outOfRange(p, x, y, 0) {
				continue
			}
			pos := vec.Vec2{X: x, Y: y}
			incoming := world.CellFromNet(sq.Tiles[i*size+j])
			var edited bool
			before := g.world.UpdateCell(pos, func(c *world.Cell) {
				edited = g.mergeSquareCell(c, incoming)
			})
			if edited {
				changed = true
				g.journalEdit(ctx, p, "square", pos, before)
			}
		}
	}

	area := g.world.SquareAt(int(sq.X), int(sq.Y), size)
	if !changed {
		return Result{Outcome: Reject, Check: "square", Reason: "nothing acceptable", Corrections: []Correction{squareArea(sq)}}
	}
	return committed(RelayAll, area)
}

func (g *Guard) mergeSquareCell(c *world.Cell, in world.Cell) bool {
	edited := false
	if c.Active && in.Active {
		switch {
		case c.Type == in.Type && g.cat.Tile(c.Type).Orientable:
			if c.Style != in.Style {
				c.Style = in.Style
				edited = true
			}
		case c.Type != in.Type && g.cat.SameTileFamily(c.Type, in.Type):
			c.Type = in.Type
			edited = true
		}
	}
	if c.Wall != in.Wall && c.Wall != 0 && g.cat.SameWallFamily(c.Wall, in.Wall) {
		c.Wall = in.Wall
		edited = true
	}
	return edited
}

// --- TileKill (сундук) ---

func checkChestKillTarget(g *Guard, p *player.Player, t *protocol.TileKill) Verdict {
	x, y := int(t.X), int(t.Y)
	cell := g.world.Cell(vec.Vec2{X: x, Y: y})
	if !cell.Active || cell.Type != g.cat.Special.ChestTile {
		return reject().because("not a chest")
	}
	ch, ok := g.world.ChestAt(x, y)
	if !ok {
		return reject().because("no chest at %d,%d", x, y)
	}
	if slices.ContainsFunc(ch.Items, func(it world.ChestItem) bool { return it.Type != 0 && it.Stack > 0 }) {
		return reject().because("chest is not empty")
	}
	return pass
}

func commitChestKill(ctx context.Context, g *Guard, p *player.Player, t *protocol.TileKill) Result {
	ch, ok := g.world.ChestAt(int(t.X), int(t.Y))
	if !ok || !g.world.RemoveChestAt(int(t.X), int(t.Y)) {
		return Result{Outcome: Drop, Check: "chest", Reason: "chest vanished"}
	}
	for dx := 0; dx <= 1; dx++ {
		for dy := 0; dy <= 1; dy++ {
			pos := vec.Vec2{X: ch.X + dx, Y: ch.Y + dy}
			if !g.world.InBounds(pos.X, pos.Y) {
				continue
			}
			before := g.world.UpdateCell(pos, func(c *world.Cell) {
				if c.Type == g.cat.Special.ChestTile {
					c.Active, c.Type, c.Style, c.Color = false, 0, 0, 0
				}
			})
			p.TilesDestroyed.Record(pos, before)
			g.journalEdit(ctx, p, "kill_chest", pos, before)
		}
	}
	return committed(RelayAll)
}

// --- краска ---

func (g *Guard) paintAllowed(p *player.Player, x, y int, target Target) Verdict {
	if !g.world.InBounds(x, y) {
		return violation("paint outside world at %d,%d", x, y)
	}
	if g.tileProtected(p, x, y) != "" || g.ignoring(p) {
		return rejectWith(Correction{Target: target, X: x, Y: y}).because("protected")
	}
	return pass
}
