package player

import (
	"github.com/annel0/packetguard/internal/vec"
	"github.com/annel0/packetguard/internal/world"
)

// Edit — клетка до первой правки соединения по этой координате.
type Edit struct {
	Pos    vec.Vec2   `json:"pos"`
	Before world.Cell `json:"before"`
}

// EditLog хранит первое состояние каждой правленой клетки в порядке правок.
// Используется внешними инструментами аудита и отката.
type EditLog struct {
	order []vec.Vec2
	cells map[vec.Vec2]world.Cell
}

func NewEditLog() *EditLog {
	return &EditLog{cells: make(map[vec.Vec2]world.Cell)}
}

// Record запоминает состояние до правки; повторная правка той же клетки не перезаписывает его.
func (l *EditLog) Record(p vec.Vec2, before world.Cell) bool {
	if _, ok := l.cells[p]; ok {
		return false
	}
	l.cells[p] = before
	l.order = append(l.order, p)
	return true
}

func (l *EditLog) Before(p vec.Vec2) (world.Cell, bool) {
	c, ok := l.cells[p]
	return c, ok
}

func (l *EditLog) Len() int { return len(l.order) }

// Entries возвращает правки в порядке записи.
func (l *EditLog) Entries() []Edit {
	out := make([]Edit, len(l.order))
	for i, p := range l.order {
		out[i] = Edit{Pos: p, Before: l.cells[p]}
	}
	return out
}
