package protocol

const (
	netTileActive uint8 = 1 << iota
	netTileWall
	netTileLiquid
	netTileWire
)

// NetTile — сетевое представление клетки внутри TileSendSquare.
type NetTile struct {
	Active       bool
	Type         uint16
	Style        uint8
	Color        uint8
	HasWall      bool
	Wall         uint8
	WallColor    uint8
	HasLiquid    bool
	LiquidAmount uint8
	LiquidKind   uint8
	Wire         bool
}

func (t NetTile) flags() uint8 {
	var f uint8
	if t.Active {
		f |= netTileActive
	}
	if t.HasWall {
		f |= netTileWall
	}
	if t.HasLiquid {
		f |= netTileLiquid
	}
	if t.Wire {
		f |= netTileWire
	}
	return f
}

func readNetTile(c *Cursor) NetTile {
	f := c.ReadUint8()
	t := NetTile{
		Active:    f&netTileActive != 0,
		HasWall:   f&netTileWall != 0,
		HasLiquid: f&netTileLiquid != 0,
		Wire:      f&netTileWire != 0,
	}
	if t.Active {
		t.Type = c.ReadUint16()
		t.Style = c.ReadUint8()
		t.Color = c.ReadUint8()
	}
	if t.HasWall {
		t.Wall = c.ReadUint8()
		t.WallColor = c.ReadUint8()
	}
	if t.HasLiquid {
		t.LiquidAmount = c.ReadUint8()
		t.LiquidKind = c.ReadUint8()
	}
	return t
}

func (t NetTile) write(w *Writer) {
	w.WriteUint8(t.flags())
	if t.Active {
		w.WriteUint16(t.Type)
		w.WriteUint8(t.Style)
		w.WriteUint8(t.Color)
	}
	if t.HasWall {
		w.WriteUint8(t.Wall)
		w.WriteUint8(t.WallColor)
	}
	if t.HasLiquid {
		w.WriteUint8(t.LiquidAmount)
		w.WriteUint8(t.LiquidKind)
	}
}
