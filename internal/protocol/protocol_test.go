package protocol

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorTypedReads(t *testing.T) {
	w := NewWriter(32)
	w.WriteUint8(0xFE)
	w.WriteInt16(-2)
	w.WriteInt32(-100000)
	w.WriteFloat32(1.5)
	w.WriteBool(true)
	w.WriteString("hi")

	c := NewCursor(w.Bytes())
	assert.Equal(t, uint8(0xFE), c.ReadUint8())
	assert.Equal(t, int16(-2), c.ReadInt16())
	assert.Equal(t, int32(-100000), c.ReadInt32())
	assert.Equal(t, float32(1.5), c.ReadFloat32())
	assert.True(t, c.ReadBool())
	assert.Equal(t, "hi", c.RestString())
	c.ExpectEnd()
	require.NoError(t, c.Err())
}

func TestCursorOutOfBoundsIsSticky(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3})
	assert.Equal(t, uint16(0x0201), c.ReadUint16())
	assert.Equal(t, uint32(0), c.ReadUint32(), "недостаточно байт")
	require.ErrorIs(t, c.Err(), ErrOutOfBounds)

	// После ошибки чтения не продвигают смещение.
	assert.Equal(t, uint8(0), c.ReadUint8())
	assert.Equal(t, 2, c.Offset())
}

func TestCursorRestStringUsesDeclaredLength(t *testing.T) {
	payload := []byte{7, 'a', 'b', 'c'}

	c := NewFrameCursor(len(payload)+1, payload)
	c.ReadUint8()
	assert.Equal(t, "abc", c.RestString())
	require.NoError(t, c.Err())

	// Объявлено больше, чем получено: хвост не читается за пределами буфера.
	c = NewFrameCursor(len(payload)+10, payload)
	c.ReadUint8()
	c.RestString()
	require.ErrorIs(t, c.Err(), ErrOutOfBounds)

	// Объявлено меньше: поля за объявленной границей недоступны.
	c = NewFrameCursor(2, payload)
	c.ReadUint8()
	c.ReadUint8()
	require.ErrorIs(t, c.Err(), ErrOutOfBounds)
}

func TestCursorSkipRewind(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3, 4})
	c.Skip(3)
	c.Rewind(2)
	assert.Equal(t, uint8(2), c.ReadUint8())
	c.Rewind(5)
	require.ErrorIs(t, c.Err(), ErrOutOfBounds)
}

func TestCursorRejectsNonFinite(t *testing.T) {
	b := binary.LittleEndian.AppendUint32(nil, math.Float32bits(float32(math.NaN())))
	c := NewCursor(b)
	c.ReadFloat32()
	require.ErrorIs(t, c.Err(), ErrNonFinite)
}

func TestDecodeTileLayout(t *testing.T) {
	// action=1, x=100, y=50, editData=30, style=2
	payload := []byte{1, 100, 0, 0, 0, 50, 0, 0, 0, 30, 2}
	rec, err := Decode(KindTile, payload)
	require.NoError(t, err)
	assert.Equal(t, &Tile{Action: TilePlaceTile, X: 100, Y: 50, EditData: 30, Style: 2}, rec)

	// Короткий и длинный кадры — ошибки декодирования, не паника.
	_, err = Decode(KindTile, payload[:len(payload)-1])
	require.ErrorIs(t, err, ErrOutOfBounds)
	_, err = Decode(KindTile, append(payload, 0))
	require.ErrorIs(t, err, ErrTrailingBytes)
	assert.True(t, IsDecodeError(err))
}

func TestDecodePlayerUpdateLayout(t *testing.T) {
	w := NewWriter(32)
	w.WriteUint8(3)
	w.WriteUint8(0x10)
	w.WriteUint8(9)
	for _, f := range []float32{16, 32, 1.25, -2} {
		w.WriteFloat32(f)
	}
	w.WriteUint8(0)
	require.Equal(t, 20, w.Len())

	rec, err := Decode(KindPlayerUpdate, w.Bytes())
	require.NoError(t, err)
	pu := rec.(*PlayerUpdate)
	assert.Equal(t, uint8(3), pu.PlayerID)
	assert.Equal(t, uint8(9), pu.SelectedItem)
	assert.Equal(t, float32(32), pu.PosY)
	assert.Equal(t, float32(-2), pu.VelY)
}

func TestDecodeProjectileNewLayout(t *testing.T) {
	w := NewWriter(32)
	w.WriteInt16(12)
	for _, f := range []float32{1, 2, 3, 4, 0.5} {
		w.WriteFloat32(f)
	}
	w.WriteInt16(999)
	w.WriteUint8(4)
	w.WriteInt16(28)
	require.Equal(t, 27, w.Len())

	rec, err := Decode(KindProjectileNew, w.Bytes())
	require.NoError(t, err)
	assert.Equal(t, &ProjectileNew{Ident: 12, PosX: 1, PosY: 2, VelX: 3, VelY: 4, Knockback: 0.5, Damage: 999, Owner: 4, Type: 28}, rec)
}

func TestDecodeIsPure(t *testing.T) {
	payload := EncodePayload(&SignNew{SignID: 3, X: 10, Y: 11, Text: "привет"})
	a, err := Decode(KindSignNew, payload)
	require.NoError(t, err)
	b, err := Decode(KindSignNew, payload)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, "привет", a.(*SignNew).Text)
}

func TestDecodeTileSquare(t *testing.T) {
	sq := &TileSendSquare{Size: 2, X: 5, Y: 6, Tiles: []NetTile{
		{Active: true, Type: 2},
		{HasWall: true, Wall: 1},
		{HasLiquid: true, LiquidAmount: 255, LiquidKind: LiquidLava},
		{Active: true, Type: 300, Style: 4, Wire: true},
	}}
	rec, err := Decode(KindTileSendSquare, EncodePayload(sq))
	require.NoError(t, err)
	assert.Equal(t, sq, rec)

	t.Run("oversized square keeps header only", func(t *testing.T) {
		w := NewWriter(16)
		w.WriteInt16(40)
		w.WriteInt32(1)
		w.WriteInt32(2)
		w.WriteBytes(bytes.Repeat([]byte{0}, 50))
		rec, err := Decode(KindTileSendSquare, w.Bytes())
		require.NoError(t, err)
		got := rec.(*TileSendSquare)
		assert.Equal(t, int16(40), got.Size)
		assert.Empty(t, got.Tiles)
	})

	t.Run("truncated tiles", func(t *testing.T) {
		payload := EncodePayload(sq)
		_, err := Decode(KindTileSendSquare, payload[:len(payload)-2])
		require.ErrorIs(t, err, ErrOutOfBounds)
	})
}

func TestDecodeUnknownKind(t *testing.T) {
	_, err := Decode(KindWorldInfo, nil)
	require.ErrorIs(t, err, ErrUnknownKind, "WorldInfo принимается только от сервера")
	_, err = Decode(Kind(200), nil)
	require.ErrorIs(t, err, ErrUnknownKind)

	rec, err := DecodeServer(KindWorldInfo, EncodePayload(&WorldInfo{Width: 10, Height: 20, Name: "w"}))
	require.NoError(t, err)
	assert.Equal(t, int32(20), rec.(*WorldInfo).Height)
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, &ChatText{PlayerID: 255, R: 255, Text: "disabled"}))
	require.NoError(t, WriteFrame(&buf, &ProjectileDestroy{Ident: 7, Owner: 1}))

	raw := buf.Bytes()
	assert.Equal(t, uint32(1+4+len("disabled")), binary.LittleEndian.Uint32(raw[:4]))

	f, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, KindChatText, f.Kind)
	rec, err := DecodeServer(f.Kind, f.Payload)
	require.NoError(t, err)
	assert.Equal(t, "disabled", rec.(*ChatText).Text)

	f, err = ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, KindProjectileDestroy, f.Kind)
	assert.Equal(t, []byte{7, 0, 1}, f.Payload)
}

func TestReadFrameRejectsBadLength(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0, 0, 0, 0}))
	assert.Error(t, err)
	_, err = ReadFrame(bytes.NewReader([]byte{0xFF, 0xFF, 0xFF, 0x7F, 1}))
	assert.Error(t, err)
	_, err = ReadFrame(bytes.NewReader([]byte{5, 0, 0, 0, 17, 1}))
	assert.Error(t, err, "усеченная полезная нагрузка")
}

func TestSplitFrame(t *testing.T) {
	raw := Encode(&TileKill{X: 1, Y: 2})
	f, err := SplitFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, KindTileKill, f.Kind)
	_, err = SplitFrame(raw[:len(raw)-1])
	require.ErrorIs(t, err, ErrOutOfBounds)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "Tile", KindTile.String())
	assert.Equal(t, "Kind(250)", Kind(250).String())
	assert.True(t, KindTile.Known())
	assert.False(t, KindDisconnect.Known())
}
