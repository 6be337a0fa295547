package protocol

import (
	"errors"
	"fmt"
)

// DecodeError — кадр не удалось разобрать. Сообщение отбрасывается,
// соединение продолжает работу.
type DecodeError struct {
	Kind Kind
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

type decodeFunc func(c *Cursor) Record

// decoders — сообщения, которые клиент может присылать серверу.
var decoders = map[Kind]decodeFunc{
	KindPlayerInfo:          decodePlayerInfo,
	KindPlayerSlot:          decodePlayerSlot,
	KindContinueConnecting2: func(*Cursor) Record { return &ContinueConnecting2{} },
	KindPlayerSpawn:         decodePlayerSpawn,
	KindPlayerUpdate:        decodePlayerUpdate,
	KindPlayerHp:            decodePlayerHp,
	KindTile:                decodeTile,
	KindTileSendSquare:      decodeTileSendSquare,
	KindItemDrop:            decodeItemDrop,
	KindChatText:            decodeChatText,
	KindPlayerDamage:        decodePlayerDamage,
	KindProjectileNew:       decodeProjectileNew,
	KindNpcStrike:           decodeNpcStrike,
	KindProjectileDestroy:   decodeProjectileDestroy,
	KindTogglePvp:           decodeTogglePvp,
	KindChestGetContents:    decodeChestGetContents,
	KindChestItem:           decodeChestItem,
	KindTileKill:            decodeTileKill,
	KindPasswordSend:        func(c *Cursor) Record { return &PasswordSend{Password: c.RestString()} },
	KindPlayerMana:          decodePlayerMana,
	KindPlayerKillMe:        decodePlayerKillMe,
	KindPlayerTeam:          decodePlayerTeam,
	KindSignNew:             decodeSignNew,
	KindLiquidSet:           decodeLiquidSet,
	KindPlayerBuffs:         decodePlayerBuffs,
	KindPlayerAddBuff:       decodePlayerAddBuff,
	KindUpdateNPCHome:       decodeUpdateNPCHome,
	KindPaintTile:           decodePaintTile,
	KindPaintWall:           decodePaintWall,
	KindTeleport:            decodeTeleport,
}

// serverDecoders — сообщения, которые шлет только сервер (нужны клиентам и тестам).
var serverDecoders = map[Kind]decodeFunc{
	KindDisconnect:       func(c *Cursor) Record { return &Disconnect{Reason: c.RestString()} },
	KindWorldInfo:        decodeWorldInfo,
	KindNpcUpdate:        decodeNpcUpdate,
	KindPasswordRequired: func(*Cursor) Record { return &PasswordRequired{} },
}

// Decode разбирает полезную нагрузку входящего сообщения клиента.
// Чистая функция: одинаковые байты дают одинаковую запись.
func Decode(kind Kind, payload []byte) (Record, error) {
	fn, ok := decoders[kind]
	if !ok {
		return nil, &DecodeError{Kind: kind, Err: ErrUnknownKind}
	}
	return run(kind, fn, NewCursor(payload))
}

// DecodeServer разбирает любое сообщение, включая исходящие от сервера.
func DecodeServer(kind Kind, payload []byte) (Record, error) {
	fn, ok := decoders[kind]
	if !ok {
		if fn, ok = serverDecoders[kind]; !ok {
			return nil, &DecodeError{Kind: kind, Err: ErrUnknownKind}
		}
	}
	return run(kind, fn, NewCursor(payload))
}

func run(kind Kind, fn decodeFunc, c *Cursor) (Record, error) {
	rec := fn(c)
	c.ExpectEnd()
	if err := c.Err(); err != nil {
		return nil, &DecodeError{Kind: kind, Err: err}
	}
	return rec, nil
}

// IsDecodeError сообщает, является ли ошибка ошибкой декодирования.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

func decodePlayerInfo(c *Cursor) Record {
	r := &PlayerInfo{
		PlayerID: c.ReadUint8(),
		Hair:     c.ReadUint8(),
		Male:     c.ReadBool(),
	}
	copy(r.Colors[:], c.ReadBytes(len(r.Colors)))
	r.Difficulty = c.ReadUint8()
	r.Name = c.RestString()
	return r
}

func decodePlayerSlot(c *Cursor) Record {
	return &PlayerSlot{
		PlayerID: c.ReadUint8(),
		Slot:     c.ReadUint8(),
		Stack:    c.ReadUint8(),
		Prefix:   c.ReadUint8(),
		ItemType: c.ReadInt16(),
	}
}

func decodeWorldInfo(c *Cursor) Record {
	return &WorldInfo{
		Time:    c.ReadInt32(),
		DayTime: c.ReadBool(),
		Width:   c.ReadInt32(),
		Height:  c.ReadInt32(),
		SpawnX:  c.ReadInt32(),
		SpawnY:  c.ReadInt32(),
		WorldID: c.ReadInt32(),
		Name:    c.RestString(),
	}
}

func decodePlayerSpawn(c *Cursor) Record {
	return &PlayerSpawn{PlayerID: c.ReadUint8(), SpawnX: c.ReadInt32(), SpawnY: c.ReadInt32()}
}

func decodePlayerUpdate(c *Cursor) Record {
	return &PlayerUpdate{
		PlayerID:     c.ReadUint8(),
		Control:      c.ReadUint8(),
		SelectedItem: c.ReadUint8(),
		PosX:         c.ReadFloat32(),
		PosY:         c.ReadFloat32(),
		VelX:         c.ReadFloat32(),
		VelY:         c.ReadFloat32(),
		Pulley:       c.ReadUint8(),
	}
}

func decodePlayerHp(c *Cursor) Record {
	return &PlayerHp{PlayerID: c.ReadUint8(), Cur: c.ReadInt16(), Max: c.ReadInt16()}
}

func decodePlayerMana(c *Cursor) Record {
	return &PlayerMana{PlayerID: c.ReadUint8(), Cur: c.ReadInt16(), Max: c.ReadInt16()}
}

func decodeTile(c *Cursor) Record {
	return &Tile{
		Action:   TileAction(c.ReadUint8()),
		X:        c.ReadInt32(),
		Y:        c.ReadInt32(),
		EditData: c.ReadUint8(),
		Style:    c.ReadUint8(),
	}
}

func decodeTileSendSquare(c *Cursor) Record {
	r := &TileSendSquare{Size: c.ReadInt16(), X: c.ReadInt32(), Y: c.ReadInt32()}
	if r.Size < 0 || r.Size > MaxSquareSize {
		// Клетки не разбираем: проверка размера отклонит сообщение с коррекцией.
		c.Skip(c.Remaining())
		return r
	}
	n := int(r.Size) * int(r.Size)
	r.Tiles = make([]NetTile, 0, n)
	for i := 0; i < n && c.Err() == nil; i++ {
		r.Tiles = append(r.Tiles, readNetTile(c))
	}
	return r
}

func decodeItemDrop(c *Cursor) Record {
	return &ItemDrop{
		ID:       c.ReadInt16(),
		PosX:     c.ReadFloat32(),
		PosY:     c.ReadFloat32(),
		VelX:     c.ReadFloat32(),
		VelY:     c.ReadFloat32(),
		Stack:    c.ReadInt16(),
		Prefix:   c.ReadUint8(),
		NoDelay:  c.ReadBool(),
		ItemType: c.ReadInt16(),
	}
}

func decodeNpcUpdate(c *Cursor) Record {
	return &NpcUpdate{
		ID:       c.ReadInt16(),
		PosX:     c.ReadFloat32(),
		PosY:     c.ReadFloat32(),
		VelX:     c.ReadFloat32(),
		VelY:     c.ReadFloat32(),
		Life:     c.ReadInt32(),
		HomeX:    c.ReadInt16(),
		HomeY:    c.ReadInt16(),
		Homeless: c.ReadBool(),
	}
}

func decodeChatText(c *Cursor) Record {
	return &ChatText{
		PlayerID: c.ReadUint8(),
		R:        c.ReadUint8(),
		G:        c.ReadUint8(),
		B:        c.ReadUint8(),
		Text:     c.RestString(),
	}
}

func decodePlayerDamage(c *Cursor) Record {
	return &PlayerDamage{
		PlayerID:  c.ReadUint8(),
		Direction: c.ReadUint8(),
		Damage:    c.ReadInt16(),
		PvP:       c.ReadBool(),
		Crit:      c.ReadBool(),
		Text:      c.RestString(),
	}
}

func decodeProjectileNew(c *Cursor) Record {
	return &ProjectileNew{
		Ident:     c.ReadInt16(),
		PosX:      c.ReadFloat32(),
		PosY:      c.ReadFloat32(),
		VelX:      c.ReadFloat32(),
		VelY:      c.ReadFloat32(),
		Knockback: c.ReadFloat32(),
		Damage:    c.ReadInt16(),
		Owner:     c.ReadUint8(),
		Type:      c.ReadInt16(),
	}
}

func decodeNpcStrike(c *Cursor) Record {
	return &NpcStrike{
		NpcID:     c.ReadUint8(),
		Direction: c.ReadUint8(),
		Damage:    c.ReadInt16(),
		PvP:       c.ReadUint8(),
		Crit:      c.ReadUint8(),
	}
}

func decodeProjectileDestroy(c *Cursor) Record {
	return &ProjectileDestroy{Ident: c.ReadInt16(), Owner: c.ReadUint8()}
}

func decodeTogglePvp(c *Cursor) Record {
	return &TogglePvp{PlayerID: c.ReadUint8(), Hostile: c.ReadBool()}
}

func decodeChestGetContents(c *Cursor) Record {
	return &ChestGetContents{X: c.ReadInt32(), Y: c.ReadInt32()}
}

func decodeChestItem(c *Cursor) Record {
	return &ChestItem{
		ChestID:  c.ReadInt16(),
		Slot:     c.ReadUint8(),
		Stack:    c.ReadUint8(),
		Prefix:   c.ReadUint8(),
		ItemType: c.ReadInt16(),
	}
}

func decodeTileKill(c *Cursor) Record {
	return &TileKill{X: c.ReadInt32(), Y: c.ReadInt32()}
}

func decodePlayerKillMe(c *Cursor) Record {
	return &PlayerKillMe{
		PlayerID:  c.ReadUint8(),
		Direction: c.ReadUint8(),
		Damage:    c.ReadInt16(),
		PvP:       c.ReadUint8(),
		Text:      c.RestString(),
	}
}

func decodePlayerTeam(c *Cursor) Record {
	return &PlayerTeam{PlayerID: c.ReadUint8(), Team: c.ReadUint8()}
}

func decodeSignNew(c *Cursor) Record {
	return &SignNew{SignID: c.ReadInt16(), X: c.ReadInt32(), Y: c.ReadInt32(), Text: c.RestString()}
}

func decodeLiquidSet(c *Cursor) Record {
	return &LiquidSet{X: c.ReadInt32(), Y: c.ReadInt32(), Amount: c.ReadUint8(), Liquid: c.ReadUint8()}
}

func decodePlayerBuffs(c *Cursor) Record {
	r := &PlayerBuffs{PlayerID: c.ReadUint8()}
	for i := range r.Buffs {
		r.Buffs[i] = c.ReadUint8()
	}
	return r
}

func decodePlayerAddBuff(c *Cursor) Record {
	return &PlayerAddBuff{PlayerID: c.ReadUint8(), BuffType: c.ReadUint8(), Time: c.ReadInt16()}
}

func decodeUpdateNPCHome(c *Cursor) Record {
	return &UpdateNPCHome{
		NpcID:    c.ReadInt16(),
		HomeX:    c.ReadInt16(),
		HomeY:    c.ReadInt16(),
		Homeless: c.ReadUint8(),
	}
}

func decodePaintTile(c *Cursor) Record {
	return &PaintTile{X: c.ReadInt32(), Y: c.ReadInt32(), Color: c.ReadUint8()}
}

func decodePaintWall(c *Cursor) Record {
	return &PaintWall{X: c.ReadInt32(), Y: c.ReadInt32(), Color: c.ReadUint8()}
}

func decodeTeleport(c *Cursor) Record {
	return &Teleport{
		Flag:     c.ReadUint8(),
		PlayerID: c.ReadInt16(),
		X:        c.ReadFloat32(),
		Y:        c.ReadFloat32(),
	}
}
