// Package physics — грубые проверки пересечения прямоугольника с твердыми клетками.
package physics

import (
	"math"

	"github.com/annel0/packetguard/internal/vec"
)

// Размеры аватара игрока в пикселях.
const (
	PlayerWidth  = 20
	PlayerHeight = 42
)

// BoxCollider — прямоугольник в пикселях, позиция задает левый верхний угол.
type BoxCollider struct {
	Width  float32
	Height float32
}

// NewBoxCollider создаёт новый коллайдер с указанными размерами
func NewBoxCollider(width, height float32) *BoxCollider {
	return &BoxCollider{Width: width, Height: height}
}

// PlayerCollider — коллайдер аватара.
func PlayerCollider() *BoxCollider {
	return NewBoxCollider(PlayerWidth, PlayerHeight)
}

// TilesCovered возвращает клетки, которые перекрывает коллайдер в позиции pos.
func (bc *BoxCollider) TilesCovered(pos vec.Vec2Float) []vec.Vec2 {
	minX := int(math.Floor(float64(pos.X) / vec.TileSize))
	minY := int(math.Floor(float64(pos.Y) / vec.TileSize))
	// правая и нижняя граница не включаются
	maxX := int(math.Ceil(float64(pos.X+bc.Width)/vec.TileSize)) - 1
	maxY := int(math.Ceil(float64(pos.Y+bc.Height)/vec.TileSize)) - 1

	points := make([]vec.Vec2, 0, (maxX-minX+1)*(maxY-minY+1))
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			points = append(points, vec.Vec2{X: x, Y: y})
		}
	}
	return points
}

// SolidCollision сообщает, пересекается ли коллайдер хотя бы с одной твердой клеткой.
// solid вызывается для каждой перекрытой клетки.
func SolidCollision(pos vec.Vec2Float, collider *BoxCollider, solid func(vec.Vec2) bool) bool {
	for _, p := range collider.TilesCovered(pos) {
		if solid(p) {
			return true
		}
	}
	return false
}

// CheckBoxCollision проверяет пересечение двух коллайдеров
func CheckBoxCollision(pos1 vec.Vec2Float, c1 *BoxCollider, pos2 vec.Vec2Float, c2 *BoxCollider) bool {
	return pos1.X < pos2.X+c2.Width &&
		pos1.X+c1.Width > pos2.X &&
		pos1.Y < pos2.Y+c2.Height &&
		pos1.Y+c1.Height > pos2.Y
}
