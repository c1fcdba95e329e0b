// Package binary writes the primitive encodings of the core module format.
package binary

import (
	"bytes"
	"encoding/binary"
)

// Writer accumulates encoded bytes.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter creates an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Byte writes a single byte.
func (w *Writer) Byte(b ...byte) {
	w.buf.Write(b)
}

// U32 writes an unsigned LEB128 value.
func (w *Writer) U32(v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.buf.WriteByte(b)
		if v == 0 {
			return
		}
	}
}

// S32 writes a signed LEB128 value.
func (w *Writer) S32(v int32) {
	w.S64(int64(v))
}

// S64 writes a signed LEB128 value.
func (w *Writer) S64(v int64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			w.buf.WriteByte(b)
			return
		}
		w.buf.WriteByte(b | 0x80)
	}
}

// Fixed32 writes v as 4 little-endian bytes.
func (w *Writer) Fixed32(v uint32) {
	w.buf.Write(binary.LittleEndian.AppendUint32(nil, v))
}

// Fixed64 writes v as 8 little-endian bytes.
func (w *Writer) Fixed64(v uint64) {
	w.buf.Write(binary.LittleEndian.AppendUint64(nil, v))
}

// Name writes a length-prefixed UTF-8 string.
func (w *Writer) Name(s string) {
	w.U32(uint32(len(s)))
	w.buf.WriteString(s)
}

// Section writes a section header followed by the body of sub.
func (w *Writer) Section(id byte, sub *Writer) {
	w.buf.WriteByte(id)
	w.U32(uint32(sub.Len()))
	w.buf.Write(sub.Bytes())
}
