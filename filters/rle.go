package filters

import (
	"context"
	"encoding/binary"
	"fmt"
)

type rleDecoder struct{}

func (rleDecoder) Name() string { return "RLE" }

// NewRLEDecoder returns the scanline PackBits decoder. Its input starts with
// one byte count per row (16-bit, or 32-bit when Params.Wide is set).
func NewRLEDecoder() Decoder { return rleDecoder{} }

func (rleDecoder) Decode(ctx context.Context, in []byte, params Params) ([]byte, error) {
	countSize := 2
	if params.Wide {
		countSize = 4
	}
	header := params.Height * countSize
	if len(in) < header {
		return nil, fmt.Errorf("%w: row count table needs %d bytes, have %d", ErrCorrupt, header, len(in))
	}
	rowBytes := params.RowBytes()
	out := make([]byte, 0, params.PlaneBytes())
	pos := header
	for row := 0; row < params.Height; row++ {
		if row%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		var n int
		if countSize == 4 {
			n = int(binary.BigEndian.Uint32(in[row*4:]))
		} else {
			n = int(binary.BigEndian.Uint16(in[row*2:]))
		}
		if n < 0 || pos+n > len(in) {
			return nil, fmt.Errorf("%w: row %d length %d overruns input", ErrCorrupt, row, n)
		}
		var err error
		out, err = unpackBits(out, in[pos:pos+n], rowBytes)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		pos += n
	}
	return out, nil
}

// unpackBits appends exactly want decoded bytes of src to dst.
func unpackBits(dst, src []byte, want int) ([]byte, error) {
	start := len(dst)
	for i := 0; i < len(src); {
		n := int(int8(src[i]))
		i++
		switch {
		case n >= 0:
			count := n + 1
			if i+count > len(src) {
				return nil, fmt.Errorf("%w: literal run of %d past end", ErrCorrupt, count)
			}
			if len(dst)-start+count > want {
				return nil, fmt.Errorf("%w: scanline overflow", ErrCorrupt)
			}
			dst = append(dst, src[i:i+count]...)
			i += count
		case n == -128:
			// no-op
		default:
			count := 1 - n
			if i >= len(src) {
				return nil, fmt.Errorf("%w: repeat run without value", ErrCorrupt)
			}
			if len(dst)-start+count > want {
				return nil, fmt.Errorf("%w: scanline overflow", ErrCorrupt)
			}
			v := src[i]
			i++
			for k := 0; k < count; k++ {
				dst = append(dst, v)
			}
		}
	}
	if len(dst)-start != want {
		return nil, fmt.Errorf("%w: scanline has %d of %d bytes", ErrCorrupt, len(dst)-start, want)
	}
	return dst, nil
}
