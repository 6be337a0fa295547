// Package world — авторитетное состояние мира в памяти: клетки, аватары, снаряды,
// сундуки, таблички, NPC и выброшенные предметы.
//
// Клетки хранятся по чанкам с блокировкой на чанк, так что соединения, правящие
// разные участки, не мешают друг другу. Все координаты приводятся к границам мира
// до чтения или записи.
package world

import (
	"sync"

	"github.com/annel0/packetguard/internal/catalog"
	"github.com/annel0/packetguard/internal/config"
	"github.com/annel0/packetguard/internal/protocol"
	"github.com/annel0/packetguard/internal/vec"
)

// World — состояние мира.
type World struct {
	Name string
	ID   int32

	width, height int
	spawn         vec.Vec2
	maxChests     int
	cat           *catalog.Catalog
	gen           *Generator

	chunksMu sync.RWMutex
	chunks   map[vec.Vec2]*Chunk

	mu          sync.RWMutex // сущности
	avatars     map[int]*Avatar
	projectiles map[ProjectileKey]*Projectile
	chests      map[int]*Chest
	chestAt     map[vec.Vec2]int
	nextChest   int
	signs       map[int]*Sign
	signAt      map[vec.Vec2]int
	npcs        map[int]*NPC
	items       map[int]*DroppedItem
	time        int32
	dayTime     bool
}

// New создаёт мир указанного размера. Нетронутые клетки берутся из генератора.
func New(cfg config.WorldConfig, cat *catalog.Catalog) *World {
	return &World{
		Name:        "packetguard",
		width:       cfg.Width,
		height:      cfg.Height,
		spawn:       vec.Vec2{X: cfg.SpawnX, Y: cfg.SpawnY},
		maxChests:   cfg.MaxChests,
		cat:         cat,
		gen:         NewGenerator(cfg.Seed, cfg.SpawnY+3),
		chunks:      make(map[vec.Vec2]*Chunk),
		avatars:     make(map[int]*Avatar),
		projectiles: make(map[ProjectileKey]*Projectile),
		chests:      make(map[int]*Chest),
		chestAt:     make(map[vec.Vec2]int),
		signs:       make(map[int]*Sign),
		signAt:      make(map[vec.Vec2]int),
		npcs:        make(map[int]*NPC),
		items:       make(map[int]*DroppedItem),
		time:        13500,
		dayTime:     true,
	}
}

func (w *World) Width() int                { return w.width }
func (w *World) Height() int               { return w.height }
func (w *World) Spawn() vec.Vec2           { return w.spawn }
func (w *World) Catalog() *catalog.Catalog { return w.cat }

// InBounds сообщает, лежит ли клетка внутри мира.
func (w *World) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < w.width && y < w.height
}

// Clamp приводит координаты к границам мира.
func (w *World) Clamp(p vec.Vec2) vec.Vec2 {
	return vec.Vec2{X: clamp(p.X, 0, w.width-1), Y: clamp(p.Y, 0, w.height-1)}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (w *World) chunk(p vec.Vec2) *Chunk {
	coords := p.ToChunkCoords()

	w.chunksMu.RLock()
	c, ok := w.chunks[coords]
	w.chunksMu.RUnlock()
	if ok {
		return c
	}

	w.chunksMu.Lock()
	defer w.chunksMu.Unlock()
	if c, ok = w.chunks[coords]; ok {
		return c
	}
	c = w.gen.GenerateChunk(coords)
	w.chunks[coords] = c
	return c
}

// Cell возвращает клетку (координаты приводятся к границам).
func (w *World) Cell(p vec.Vec2) Cell {
	p = w.Clamp(p)
	return w.chunk(p).Get(p.LocalInChunk())
}

// SetCell записывает клетку и возвращает прежнее значение.
func (w *World) SetCell(p vec.Vec2, c Cell) Cell {
	p = w.Clamp(p)
	return w.chunk(p).Set(p.LocalInChunk(), c)
}

// UpdateCell изменяет клетку атомарно относительно других писателей чанка.
func (w *World) UpdateCell(p vec.Vec2, fn func(*Cell)) Cell {
	p = w.Clamp(p)
	return w.chunk(p).Update(p.LocalInChunk(), fn)
}

// Solid — клетка занята твердым тайлом.
func (w *World) Solid(p vec.Vec2) bool {
	if !w.InBounds(p.X, p.Y) {
		return true
	}
	c := w.Cell(p)
	return c.Active && w.cat.Tile(c.Type).Solid
}

// ApplyTile применяет правку клетки и возвращает состояние до нее.
// Для разрушений ненулевой EditData означает неудачный удар: клетка не меняется.
func (w *World) ApplyTile(t *protocol.Tile) Cell {
	return w.UpdateCell(vec.Vec2{X: int(t.X), Y: int(t.Y)}, func(c *Cell) {
		switch t.Action {
		case protocol.TileKillTile, protocol.TileKillTileNoItem:
			if t.EditData == 0 {
				c.Active, c.Type, c.Style, c.Color = false, 0, 0, 0
			}
		case protocol.TilePlaceTile:
			c.Active = true
			c.Type = uint16(t.EditData)
			c.Style = t.Style
		case protocol.TileKillWall:
			if t.EditData == 0 {
				c.Wall, c.WallColor = 0, 0
			}
		case protocol.TilePlaceWall:
			c.Wall = t.EditData
		case protocol.TilePlaceWire:
			c.Wire = true
		case protocol.TileKillWire:
			c.Wire = false
		}
	})
}

// SetLiquid задает жидкость в клетке.
func (w *World) SetLiquid(p vec.Vec2, amount, kind uint8) Cell {
	return w.UpdateCell(p, func(c *Cell) {
		c.LiquidAmount = amount
		c.LiquidKind = kind
		if amount == 0 {
			c.LiquidKind = 0
		}
	})
}

// PaintTile / PaintWall задают цвет краски.
func (w *World) PaintTile(p vec.Vec2, color uint8) Cell {
	return w.UpdateCell(p, func(c *Cell) { c.Color = color })
}

func (w *World) PaintWall(p vec.Vec2, color uint8) Cell {
	return w.UpdateCell(p, func(c *Cell) { c.WallColor = color })
}

// squareOrigin сдвигает угол так, чтобы квадрат size×size целиком лежал в мире.
func (w *World) squareOrigin(x, y, size int) vec.Vec2 {
	return vec.Vec2{X: clamp(x, 0, max(w.width-size, 0)), Y: clamp(y, 0, max(w.height-size, 0))}
}

// SquareAt строит квадрат клеток с левым верхним углом (x, y).
func (w *World) SquareAt(x, y, size int) *protocol.TileSendSquare {
	size = clamp(size, 1, protocol.MaxSquareSize)
	o := w.squareOrigin(x, y, size)
	sq := &protocol.TileSendSquare{
		Size:  int16(size),
		X:     int32(o.X),
		Y:     int32(o.Y),
		Tiles: make([]protocol.NetTile, size*size),
	}
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			sq.Tiles[i*size+j] = w.Cell(vec.Vec2{X: o.X + i, Y: o.Y + j}).Net()
		}
	}
	return sq
}

// Square строит квадрат с центром в клетке (x, y) — используется для исправлений.
func (w *World) Square(x, y, size int) *protocol.TileSendSquare {
	size = clamp(size, 1, protocol.MaxSquareSize)
	return w.SquareAt(x-(size-1)/2, y-(size-1)/2, size)
}

// ApplySquare записывает квадрат клеток; клетки за пределами мира пропускаются.
func (w *World) ApplySquare(sq *protocol.TileSendSquare) {
	size := int(sq.Size)
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			x, y := int(sq.X)+i, int(sq.Y)+j
			if !w.InBounds(x, y) {
				continue
			}
			w.SetCell(vec.Vec2{X: x, Y: y}, CellFromNet(sq.Tiles[i*size+j]))
		}
	}
}

// Info — описание мира для нового соединения.
func (w *World) Info() *protocol.WorldInfo {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return &protocol.WorldInfo{
		Time:    w.time,
		DayTime: w.dayTime,
		Width:   int32(w.width),
		Height:  int32(w.height),
		SpawnX:  int32(w.spawn.X),
		SpawnY:  int32(w.spawn.Y),
		WorldID: w.ID,
		Name:    w.Name,
	}
}

// LoadedChunks — число чанков, созданных в памяти.
func (w *World) LoadedChunks() int {
	w.chunksMu.RLock()
	defer w.chunksMu.RUnlock()
	return len(w.chunks)
}
