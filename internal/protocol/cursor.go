package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrOutOfBounds чтение вышло за объявленную границу кадра.
	ErrOutOfBounds = errors.New("protocol: read out of bounds")
	// ErrTrailingBytes после декодирования остались непрочитанные байты.
	ErrTrailingBytes = errors.New("protocol: trailing bytes after record")
	// ErrNonFinite NaN или Inf во float-поле.
	ErrNonFinite = errors.New("protocol: non-finite float")
	// ErrUnknownKind неизвестный или не принимаемый от клиента тип сообщения.
	ErrUnknownKind = errors.New("protocol: unknown message kind")
)

// Cursor последовательно читает поля из полезной нагрузки кадра.
//
// Ошибка "липкая": после первой неудачи все последующие чтения возвращают
// нулевые значения, а Err() сообщает первую ошибку. Декодер проверяет Err()
// один раз в конце.
type Cursor struct {
	buf      []byte
	off      int
	declared int // длина кадра из заголовка: байт типа + полезная нагрузка
	err      error
}

// NewCursor создает курсор над полезной нагрузкой, объявленная длина = len+1.
func NewCursor(payload []byte) *Cursor {
	return &Cursor{buf: payload, declared: len(payload) + 1}
}

// NewFrameCursor создает курсор с явной объявленной длиной кадра.
// Если объявленная длина больше фактической, чтение хвоста вернет ErrOutOfBounds.
func NewFrameCursor(declared int, payload []byte) *Cursor {
	return &Cursor{buf: payload, declared: declared}
}

func (c *Cursor) Err() error     { return c.err }
func (c *Cursor) Offset() int    { return c.off }
func (c *Cursor) Remaining() int { return c.limit() - c.off }

// limit — граница чтения: минимум из буфера и объявленной длины.
func (c *Cursor) limit() int {
	if n := c.declared - 1; n < len(c.buf) {
		if n < 0 {
			return 0
		}
		return n
	}
	return len(c.buf)
}

func (c *Cursor) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *Cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || c.off+n > c.limit() {
		c.fail(fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrOutOfBounds, n, c.off, c.limit()-c.off))
		return nil
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b
}

func (c *Cursor) ReadUint8() uint8 {
	b := c.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (c *Cursor) ReadInt8() int8 { return int8(c.ReadUint8()) }

func (c *Cursor) ReadBool() bool { return c.ReadUint8() != 0 }

func (c *Cursor) ReadUint16() uint16 {
	b := c.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (c *Cursor) ReadInt16() int16 { return int16(c.ReadUint16()) }

func (c *Cursor) ReadUint32() uint32 {
	b := c.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (c *Cursor) ReadInt32() int32 { return int32(c.ReadUint32()) }

// ReadFloat32 читает IEEE-754 float; NaN и Inf считаются ошибкой декодирования.
func (c *Cursor) ReadFloat32() float32 {
	b := c.take(4)
	if b == nil {
		return 0
	}
	f := math.Float32frombits(binary.LittleEndian.Uint32(b))
	if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
		c.fail(fmt.Errorf("%w at offset %d", ErrNonFinite, c.off-4))
		return 0
	}
	return f
}

// ReadBytes возвращает копию следующих n байт.
func (c *Cursor) ReadBytes(n int) []byte {
	b := c.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// RestString читает UTF-8 текст до конца кадра: declared - offset - 1 байт.
func (c *Cursor) RestString() string {
	if c.err != nil {
		return ""
	}
	n := c.declared - c.off - 1
	if n < 0 || c.off+n > len(c.buf) {
		c.fail(fmt.Errorf("%w: rest-of-frame text of %d bytes at offset %d", ErrOutOfBounds, n, c.off))
		return ""
	}
	return string(c.take(n))
}

func (c *Cursor) Skip(n int) { c.take(n) }

// Rewind сдвигает смещение назад на n байт.
func (c *Cursor) Rewind(n int) {
	if c.err != nil {
		return
	}
	if n < 0 || n > c.off {
		c.fail(fmt.Errorf("%w: rewind %d from offset %d", ErrOutOfBounds, n, c.off))
		return
	}
	c.off -= n
}

// ExpectEnd фиксирует ошибку, если в кадре остались непрочитанные байты.
func (c *Cursor) ExpectEnd() {
	if c.err == nil && c.off != len(c.buf) {
		c.fail(fmt.Errorf("%w: %d bytes", ErrTrailingBytes, len(c.buf)-c.off))
	}
}
