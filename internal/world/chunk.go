package world

import (
	"sync"

	"github.com/annel0/packetguard/internal/vec"
)

// ChunkSide — сторона чанка в клетках.
const ChunkSide = 1 << vec.ChunkShift

// Chunk — участок мира ChunkSide×ChunkSide клеток со своей блокировкой.
type Chunk struct {
	Coords vec.Vec2 // координаты чанка в мире

	cells [ChunkSide][ChunkSide]Cell // [x][y]

	ChangeCounter int
	mu            sync.RWMutex
}

// NewChunk создаёт пустой чанк с указанными координатами
func NewChunk(coords vec.Vec2) *Chunk {
	return &Chunk{Coords: coords}
}

// Get возвращает клетку по локальным координатам
func (c *Chunk) Get(local vec.Vec2) Cell {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cells[local.X][local.Y]
}

// Set записывает клетку и возвращает прежнее значение
func (c *Chunk) Set(local vec.Vec2, cell Cell) Cell {
	return c.Update(local, func(dst *Cell) { *dst = cell })
}

// Update изменяет клетку под блокировкой чанка, возвращает состояние до изменения.
func (c *Chunk) Update(local vec.Vec2, fn func(*Cell)) Cell {
	c.mu.Lock()
	defer c.mu.Unlock()
	before := c.cells[local.X][local.Y]
	fn(&c.cells[local.X][local.Y])
	if c.cells[local.X][local.Y] != before {
		c.ChangeCounter++
	}
	return before
}

// Changes — число изменений с момента создания.
func (c *Chunk) Changes() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ChangeCounter
}
