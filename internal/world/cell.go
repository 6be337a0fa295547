package world

import "github.com/annel0/packetguard/internal/protocol"

// Cell — состояние одной клетки мира.
type Cell struct {
	Active       bool
	Type         uint16
	Style        uint8 // ориентация / кадр
	Color        uint8
	Wall         uint8
	WallColor    uint8
	LiquidAmount uint8
	LiquidKind   uint8
	Wire         bool
}

// Net — сетевое представление клетки.
func (c Cell) Net() protocol.NetTile {
	return protocol.NetTile{
		Active:       c.Active,
		Type:         c.Type,
		Style:        c.Style,
		Color:        c.Color,
		HasWall:      c.Wall != 0,
		Wall:         c.Wall,
		WallColor:    c.WallColor,
		HasLiquid:    c.LiquidAmount > 0,
		LiquidAmount: c.LiquidAmount,
		LiquidKind:   c.LiquidKind,
		Wire:         c.Wire,
	}
}

// CellFromNet — обратное преобразование; отсутствующие части обнуляются.
func CellFromNet(t protocol.NetTile) Cell {
	c := Cell{Wire: t.Wire}
	if t.Active {
		c.Active = true
		c.Type = t.Type
		c.Style = t.Style
		c.Color = t.Color
	}
	if t.HasWall {
		c.Wall = t.Wall
		c.WallColor = t.WallColor
	}
	if t.HasLiquid {
		c.LiquidAmount = t.LiquidAmount
		c.LiquidKind = t.LiquidKind
	}
	return c
}
