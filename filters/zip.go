package filters

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

type zipDecoder struct {
	prediction bool
}

func (d zipDecoder) Name() string {
	if d.prediction {
		return "ZIPPrediction"
	}
	return "ZIP"
}

// NewZIPDecoder returns a zlib decoder; with prediction set it also undoes
// the per-row delta encoding (byte-planar for 32-bit samples).
func NewZIPDecoder(prediction bool) Decoder { return zipDecoder{prediction: prediction} }

func (d zipDecoder) Decode(ctx context.Context, in []byte, params Params) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer r.Close()

	want := params.PlaneBytes()
	out := make([]byte, want)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("%w: inflate: %v", ErrCorrupt, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.prediction {
		if err := unpredict(out, params); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func unpredict(plane []byte, params Params) error {
	rowBytes := params.RowBytes()
	for y := 0; y < params.Height; y++ {
		row := plane[y*rowBytes : (y+1)*rowBytes]
		switch params.Depth {
		case 8:
			for i := 1; i < len(row); i++ {
				row[i] += row[i-1]
			}
		case 16:
			prev := uint16(0)
			for i := 0; i+1 < len(row); i += 2 {
				v := binary.BigEndian.Uint16(row[i:]) + prev
				binary.BigEndian.PutUint16(row[i:], v)
				prev = v
			}
		case 32:
			for i := 1; i < len(row); i++ {
				row[i] += row[i-1]
			}
			// Bytes are stored as four planes (all most-significant bytes first).
			w := params.Width
			planar := append([]byte(nil), row...)
			for i := 0; i < w; i++ {
				row[i*4+0] = planar[i]
				row[i*4+1] = planar[w+i]
				row[i*4+2] = planar[2*w+i]
				row[i*4+3] = planar[3*w+i]
			}
		default:
			return fmt.Errorf("%w: prediction unsupported for depth %d", ErrCorrupt, params.Depth)
		}
	}
	return nil
}
