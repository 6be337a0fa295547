package protocol

// Encode кодирует запись в полный кадр: длина (LE u32) + байт типа + полезная нагрузка.
func Encode(r Record) []byte {
	w := NewWriter(64)
	w.WriteUint32(0) // место под длину
	w.WriteUint8(uint8(r.Kind()))
	r.encode(w)
	buf := w.Bytes()
	l := uint32(len(buf) - 4)
	buf[0], buf[1], buf[2], buf[3] = byte(l), byte(l>>8), byte(l>>16), byte(l>>24)
	return buf
}

// EncodePayload кодирует только полезную нагрузку записи.
func EncodePayload(r Record) []byte {
	w := NewWriter(64)
	r.encode(w)
	return w.Bytes()
}

func (r Disconnect) encode(w *Writer) { w.WriteString(r.Reason) }

func (r PlayerInfo) encode(w *Writer) {
	w.WriteUint8(r.PlayerID)
	w.WriteUint8(r.Hair)
	w.WriteBool(r.Male)
	w.WriteBytes(r.Colors[:])
	w.WriteUint8(r.Difficulty)
	w.WriteString(r.Name)
}

func (r PlayerSlot) encode(w *Writer) {
	w.WriteUint8(r.PlayerID)
	w.WriteUint8(r.Slot)
	w.WriteUint8(r.Stack)
	w.WriteUint8(r.Prefix)
	w.WriteInt16(r.ItemType)
}

func (ContinueConnecting2) encode(*Writer) {}

func (r WorldInfo) encode(w *Writer) {
	w.WriteInt32(r.Time)
	w.WriteBool(r.DayTime)
	w.WriteInt32(r.Width)
	w.WriteInt32(r.Height)
	w.WriteInt32(r.SpawnX)
	w.WriteInt32(r.SpawnY)
	w.WriteInt32(r.WorldID)
	w.WriteString(r.Name)
}

func (r PlayerSpawn) encode(w *Writer) {
	w.WriteUint8(r.PlayerID)
	w.WriteInt32(r.SpawnX)
	w.WriteInt32(r.SpawnY)
}

func (r PlayerUpdate) encode(w *Writer) {
	w.WriteUint8(r.PlayerID)
	w.WriteUint8(r.Control)
	w.WriteUint8(r.SelectedItem)
	w.WriteFloat32(r.PosX)
	w.WriteFloat32(r.PosY)
	w.WriteFloat32(r.VelX)
	w.WriteFloat32(r.VelY)
	w.WriteUint8(r.Pulley)
}

func (r PlayerHp) encode(w *Writer) {
	w.WriteUint8(r.PlayerID)
	w.WriteInt16(r.Cur)
	w.WriteInt16(r.Max)
}

func (r PlayerMana) encode(w *Writer) {
	w.WriteUint8(r.PlayerID)
	w.WriteInt16(r.Cur)
	w.WriteInt16(r.Max)
}

func (r Tile) encode(w *Writer) {
	w.WriteUint8(uint8(r.Action))
	w.WriteInt32(r.X)
	w.WriteInt32(r.Y)
	w.WriteUint8(r.EditData)
	w.WriteUint8(r.Style)
}

func (r TileSendSquare) encode(w *Writer) {
	w.WriteInt16(r.Size)
	w.WriteInt32(r.X)
	w.WriteInt32(r.Y)
	for _, t := range r.Tiles {
		t.write(w)
	}
}

func (r ItemDrop) encode(w *Writer) {
	w.WriteInt16(r.ID)
	w.WriteFloat32(r.PosX)
	w.WriteFloat32(r.PosY)
	w.WriteFloat32(r.VelX)
	w.WriteFloat32(r.VelY)
	w.WriteInt16(r.Stack)
	w.WriteUint8(r.Prefix)
	w.WriteBool(r.NoDelay)
	w.WriteInt16(r.ItemType)
}

func (r NpcUpdate) encode(w *Writer) {
	w.WriteInt16(r.ID)
	w.WriteFloat32(r.PosX)
	w.WriteFloat32(r.PosY)
	w.WriteFloat32(r.VelX)
	w.WriteFloat32(r.VelY)
	w.WriteInt32(r.Life)
	w.WriteInt16(r.HomeX)
	w.WriteInt16(r.HomeY)
	w.WriteBool(r.Homeless)
}

func (r ChatText) encode(w *Writer) {
	w.WriteUint8(r.PlayerID)
	w.WriteUint8(r.R)
	w.WriteUint8(r.G)
	w.WriteUint8(r.B)
	w.WriteString(r.Text)
}

func (r PlayerDamage) encode(w *Writer) {
	w.WriteUint8(r.PlayerID)
	w.WriteUint8(r.Direction)
	w.WriteInt16(r.Damage)
	w.WriteBool(r.PvP)
	w.WriteBool(r.Crit)
	w.WriteString(r.Text)
}

func (r ProjectileNew) encode(w *Writer) {
	w.WriteInt16(r.Ident)
	w.WriteFloat32(r.PosX)
	w.WriteFloat32(r.PosY)
	w.WriteFloat32(r.VelX)
	w.WriteFloat32(r.VelY)
	w.WriteFloat32(r.Knockback)
	w.WriteInt16(r.Damage)
	w.WriteUint8(r.Owner)
	w.WriteInt16(r.Type)
}

func (r NpcStrike) encode(w *Writer) {
	w.WriteUint8(r.NpcID)
	w.WriteUint8(r.Direction)
	w.WriteInt16(r.Damage)
	w.WriteUint8(r.PvP)
	w.WriteUint8(r.Crit)
}

func (r ProjectileDestroy) encode(w *Writer) {
	w.WriteInt16(r.Ident)
	w.WriteUint8(r.Owner)
}

func (r TogglePvp) encode(w *Writer) {
	w.WriteUint8(r.PlayerID)
	w.WriteBool(r.Hostile)
}

func (r ChestGetContents) encode(w *Writer) {
	w.WriteInt32(r.X)
	w.WriteInt32(r.Y)
}

func (r ChestItem) encode(w *Writer) {
	w.WriteInt16(r.ChestID)
	w.WriteUint8(r.Slot)
	w.WriteUint8(r.Stack)
	w.WriteUint8(r.Prefix)
	w.WriteInt16(r.ItemType)
}

func (r TileKill) encode(w *Writer) {
	w.WriteInt32(r.X)
	w.WriteInt32(r.Y)
}

func (PasswordRequired) encode(*Writer) {}

func (r PasswordSend) encode(w *Writer) { w.WriteString(r.Password) }

func (r PlayerKillMe) encode(w *Writer) {
	w.WriteUint8(r.PlayerID)
	w.WriteUint8(r.Direction)
	w.WriteInt16(r.Damage)
	w.WriteUint8(r.PvP)
	w.WriteString(r.Text)
}

func (r PlayerTeam) encode(w *Writer) {
	w.WriteUint8(r.PlayerID)
	w.WriteUint8(r.Team)
}

func (r SignNew) encode(w *Writer) {
	w.WriteInt16(r.SignID)
	w.WriteInt32(r.X)
	w.WriteInt32(r.Y)
	w.WriteString(r.Text)
}

func (r LiquidSet) encode(w *Writer) {
	w.WriteInt32(r.X)
	w.WriteInt32(r.Y)
	w.WriteUint8(r.Amount)
	w.WriteUint8(r.Liquid)
}

func (r PlayerBuffs) encode(w *Writer) {
	w.WriteUint8(r.PlayerID)
	w.WriteBytes(r.Buffs[:])
}

func (r PlayerAddBuff) encode(w *Writer) {
	w.WriteUint8(r.PlayerID)
	w.WriteUint8(r.BuffType)
	w.WriteInt16(r.Time)
}

func (r UpdateNPCHome) encode(w *Writer) {
	w.WriteInt16(r.NpcID)
	w.WriteInt16(r.HomeX)
	w.WriteInt16(r.HomeY)
	w.WriteUint8(r.Homeless)
}

func (r PaintTile) encode(w *Writer) {
	w.WriteInt32(r.X)
	w.WriteInt32(r.Y)
	w.WriteUint8(r.Color)
}

func (r PaintWall) encode(w *Writer) {
	w.WriteInt32(r.X)
	w.WriteInt32(r.Y)
	w.WriteUint8(r.Color)
}

func (r Teleport) encode(w *Writer) {
	w.WriteUint8(r.Flag)
	w.WriteInt16(r.PlayerID)
	w.WriteFloat32(r.X)
	w.WriteFloat32(r.Y)
}
