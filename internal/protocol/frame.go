package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize — верхняя граница объявленной длины кадра.
const MaxFrameSize = 1 << 16

// Frame — сырой входящий кадр: тип и полезная нагрузка (без заголовка).
type Frame struct {
	Kind    Kind
	Payload []byte
}

// ReadFrame читает один кадр из потока. Объявленная длина учитывает байт типа.
func ReadFrame(r io.Reader) (Frame, error) {
	var hdr [5]byte
	if _, err := io.ReadFull(r, hdr[:4]); err != nil {
		return Frame{}, err
	}
	l := binary.LittleEndian.Uint32(hdr[:4])
	if l == 0 || l > MaxFrameSize {
		return Frame{}, fmt.Errorf("некорректная длина кадра: %d", l)
	}
	if _, err := io.ReadFull(r, hdr[4:5]); err != nil {
		return Frame{}, err
	}
	payload := make([]byte, l-1)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, fmt.Errorf("усеченный кадр %s: %w", Kind(hdr[4]), err)
	}
	return Frame{Kind: Kind(hdr[4]), Payload: payload}, nil
}

// WriteFrame пишет запись в поток одним вызовом Write.
func WriteFrame(w io.Writer, r Record) error {
	_, err := w.Write(Encode(r))
	return err
}

// SplitFrame разбирает уже полностью полученный кадр с заголовком.
func SplitFrame(raw []byte) (Frame, error) {
	if len(raw) < 5 {
		return Frame{}, fmt.Errorf("%w: кадр короче заголовка", ErrOutOfBounds)
	}
	l := binary.LittleEndian.Uint32(raw[:4])
	if int(l) != len(raw)-4 {
		return Frame{}, fmt.Errorf("%w: объявлено %d, получено %d", ErrOutOfBounds, l, len(raw)-4)
	}
	return Frame{Kind: Kind(raw[4]), Payload: raw[5:]}, nil
}
