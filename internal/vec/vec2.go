// Package vec — координаты в клетках мира и в пикселях.
package vec

import "math"

// TileSize — размер клетки в пикселях.
const TileSize = 16

// ChunkShift — log2 стороны чанка в клетках.
const ChunkShift = 4

// Vec2 — координаты клетки.
type Vec2 struct {
	X, Y int
}

// ToChunkCoords преобразует координаты клетки в координаты чанка
func (v Vec2) ToChunkCoords() Vec2 {
	return Vec2{X: v.X >> ChunkShift, Y: v.Y >> ChunkShift}
}

// LocalInChunk возвращает локальные координаты внутри чанка
func (v Vec2) LocalInChunk() Vec2 {
	const mask = 1<<ChunkShift - 1
	return Vec2{X: v.X & mask, Y: v.Y & mask}
}

// DistanceTo вычисляет расстояние до другой клетки
func (v Vec2) DistanceTo(other Vec2) float64 {
	dx := float64(v.X - other.X)
	dy := float64(v.Y - other.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// Within — обе оси отличаются не более чем на r клеток.
func (v Vec2) Within(other Vec2, r int) bool {
	return abs(v.X-other.X) <= r && abs(v.Y-other.Y) <= r
}

// Center — пиксельный центр клетки.
func (v Vec2) Center() Vec2Float {
	return Vec2Float{X: float32(v.X*TileSize + TileSize/2), Y: float32(v.Y*TileSize + TileSize/2)}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
