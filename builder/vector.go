package builder

import "math"

// Fixed824 writes a signed 8.24 fixed point number.
func (b *Buffer) Fixed824(v float64) {
	b.I32(int32(math.Round(v * (1 << 24))))
}

func pad26(b *Buffer, start int) {
	for b.Len()-start < 26 {
		b.U8(0)
	}
}

// VectorMask builds a 'vmsk' payload holding one sub-path of corner knots.
// Points are fractions of the document size.
func VectorMask(flags uint32, closed bool, pts ...[2]float64) []byte {
	var b Buffer
	b.U32(3)
	b.U32(flags)

	start := b.Len()
	b.U16(6) // fill rule
	pad26(&b, start)

	start = b.Len()
	b.U16(8)
	b.U16(0)
	pad26(&b, start)

	start = b.Len()
	lengthSel, knotSel := uint16(3), uint16(5)
	if closed {
		lengthSel, knotSel = 0, 2
	}
	b.U16(lengthSel)
	b.U16(uint16(len(pts)))
	pad26(&b, start)
	for _, p := range pts {
		b.U16(knotSel)
		for i := 0; i < 3; i++ {
			b.Fixed824(p[1])
			b.Fixed824(p[0])
		}
	}
	return b.Bytes()
}
