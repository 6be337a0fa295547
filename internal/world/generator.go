package world

import (
	"math"

	"github.com/aquilax/go-perlin"

	"github.com/annel0/packetguard/internal/vec"
)

// Типы, из которых собирается стартовый рельеф.
const (
	genDirt      uint16 = 0
	genStone     uint16 = 1
	genGrass     uint16 = 2
	genStoneWall uint8  = 1
	genDirtWall  uint8  = 2
)

// Generator строит исходное состояние клеток, которых еще никто не менял.
// Поверхность — одномерный шум Перлина вокруг SurfaceY; при нулевом сиде она плоская.
type Generator struct {
	Seed       int64
	SurfaceY   int
	Amplitude  float64 // максимальное отклонение поверхности в клетках
	NoiseScale float64
	DirtDepth  int

	noise *perlin.Perlin
}

// NewGenerator создаёт генератор рельефа
func NewGenerator(seed int64, surfaceY int) *Generator {
	g := &Generator{
		Seed:       seed,
		SurfaceY:   surfaceY,
		Amplitude:  12,
		NoiseScale: 0.02,
		DirtDepth:  40,
	}
	if seed != 0 {
		alpha := 2.0  // сглаживание
		beta := 2.0   // частота
		n := int32(3) // октавы
		g.noise = perlin.NewPerlin(alpha, beta, n, seed)
	}
	return g
}

// SurfaceAt — высота поверхности (первая непустая клетка) в колонке x.
func (g *Generator) SurfaceAt(x int) int {
	if g.noise == nil {
		return g.SurfaceY
	}
	n := g.noise.Noise1D(float64(x) * g.NoiseScale) // примерно -1..1
	return g.SurfaceY + int(math.Round(n*g.Amplitude))
}

// CellAt — исходная клетка.
func (g *Generator) CellAt(p vec.Vec2) Cell {
	surface := g.SurfaceAt(p.X)
	switch {
	case p.Y < surface:
		return Cell{}
	case p.Y == surface:
		return Cell{Active: true, Type: genGrass}
	case p.Y < surface+g.DirtDepth:
		return Cell{Active: true, Type: genDirt, Wall: genDirtWall}
	default:
		return Cell{Active: true, Type: genStone, Wall: genStoneWall}
	}
}

// GenerateChunk заполняет чанк исходными клетками
func (g *Generator) GenerateChunk(coords vec.Vec2) *Chunk {
	chunk := NewChunk(coords)
	startX := coords.X << vec.ChunkShift
	startY := coords.Y << vec.ChunkShift
	for x := 0; x < ChunkSide; x++ {
		for y := 0; y < ChunkSide; y++ {
			chunk.cells[x][y] = g.CellAt(vec.Vec2{X: startX + x, Y: startY + y})
		}
	}
	return chunk
}
