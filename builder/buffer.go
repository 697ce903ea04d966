// Package builder assembles synthetic layered documents and descriptor
// payloads byte by byte. Tests and tooling use it to produce inputs with
// exactly the structure they need.
package builder

import (
	"bytes"
	"encoding/binary"
	"math"
	"unicode/utf16"
)

// Buffer is a big-endian byte sink.
type Buffer struct {
	bytes.Buffer
}

func (b *Buffer) U8(v uint8)   { b.WriteByte(v) }
func (b *Buffer) U16(v uint16) { b.Write(binary.BigEndian.AppendUint16(nil, v)) }
func (b *Buffer) I16(v int16)  { b.U16(uint16(v)) }
func (b *Buffer) U32(v uint32) { b.Write(binary.BigEndian.AppendUint32(nil, v)) }
func (b *Buffer) I32(v int32)  { b.U32(uint32(v)) }
func (b *Buffer) U64(v uint64) { b.Write(binary.BigEndian.AppendUint64(nil, v)) }
func (b *Buffer) F64(v float64) {
	b.U64(math.Float64bits(v))
}

// Length writes a block length, 64 bits wide for large documents.
func (b *Buffer) Length(n int, wide bool) {
	if wide {
		b.U64(uint64(n))
		return
	}
	b.U32(uint32(n))
}

// Sig writes a 4-character code.
func (b *Buffer) Sig(s string) { b.WriteString((s + "    ")[:4]) }

// Pascal writes a length-prefixed string padded to a multiple of pad.
func (b *Buffer) Pascal(s string, pad int) {
	b.U8(uint8(len(s)))
	b.WriteString(s)
	if pad > 1 {
		for n := len(s) + 1; n%pad != 0; n++ {
			b.U8(0)
		}
	}
}

// Unicode writes a code unit count followed by UTF-16BE text.
func (b *Buffer) Unicode(s string) {
	units := utf16.Encode([]rune(s))
	b.U32(uint32(len(units)))
	for _, u := range units {
		b.U16(u)
	}
}

// Block writes body prefixed by its 32-bit length.
func (b *Buffer) Block(body []byte) {
	b.U32(uint32(len(body)))
	b.Write(body)
}
