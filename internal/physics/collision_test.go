package physics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/annel0/packetguard/internal/vec"
)

func TestTilesCovered(t *testing.T) {
	c := PlayerCollider()
	tiles := c.TilesCovered(vec.Vec2Float{X: 160, Y: 160})
	// 20 пикселей — две колонки, 42 — три строки
	assert.Len(t, tiles, 6)
	assert.Contains(t, tiles, vec.Vec2{X: 10, Y: 10})
	assert.Contains(t, tiles, vec.Vec2{X: 11, Y: 12})
}

func TestSolidCollision(t *testing.T) {
	c := PlayerCollider()
	wall := vec.Vec2{X: 11, Y: 11}
	solid := func(p vec.Vec2) bool { return p == wall }

	assert.True(t, SolidCollision(vec.Vec2Float{X: 160, Y: 160}, c, solid))
	assert.False(t, SolidCollision(vec.Vec2Float{X: 320, Y: 160}, c, solid))
}

func TestCheckBoxCollision(t *testing.T) {
	a := NewBoxCollider(10, 10)
	assert.True(t, CheckBoxCollision(vec.Vec2Float{}, a, vec.Vec2Float{X: 5, Y: 5}, a))
	assert.False(t, CheckBoxCollision(vec.Vec2Float{}, a, vec.Vec2Float{X: 10, Y: 0}, a), "касание не пересечение")
}
