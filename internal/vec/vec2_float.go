package vec

import "math"

// Vec2Float — позиция в пикселях.
type Vec2Float struct {
	X, Y float32
}

// ToTile возвращает клетку, в которой лежит точка
func (v Vec2Float) ToTile() Vec2 {
	return Vec2{X: int(math.Floor(float64(v.X) / TileSize)), Y: int(math.Floor(float64(v.Y) / TileSize))}
}

func (v Vec2Float) Add(other Vec2Float) Vec2Float {
	return Vec2Float{X: v.X + other.X, Y: v.Y + other.Y}
}

func (v Vec2Float) Sub(other Vec2Float) Vec2Float {
	return Vec2Float{X: v.X - other.X, Y: v.Y - other.Y}
}

func (v Vec2Float) Length() float64 {
	return math.Hypot(float64(v.X), float64(v.Y))
}

// DistanceTo — расстояние в пикселях
func (v Vec2Float) DistanceTo(other Vec2Float) float64 {
	return v.Sub(other).Length()
}

// IsZero — точка в начале координат (позиция еще не известна).
func (v Vec2Float) IsZero() bool {
	return v.X == 0 && v.Y == 0
}
