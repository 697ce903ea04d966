package filters

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Compression is the 16-bit method code that prefixes every channel's data.
type Compression uint16

const (
	CompressionRaw           Compression = 0
	CompressionRLE           Compression = 1
	CompressionZIP           Compression = 2
	CompressionZIPPrediction Compression = 3
)

func (c Compression) String() string {
	switch c {
	case CompressionRaw:
		return "Raw"
	case CompressionRLE:
		return "RLE"
	case CompressionZIP:
		return "ZIP"
	case CompressionZIPPrediction:
		return "ZIPPrediction"
	default:
		return fmt.Sprintf("Compression(%d)", uint16(c))
	}
}

// ErrCorrupt reports channel data that does not decode to the declared geometry.
var ErrCorrupt = errors.New("corrupt channel data")

// Params describes the plane a decoder must produce.
type Params struct {
	Width  int  // samples per row
	Height int  // rows
	Depth  int  // bits per sample: 1, 8, 16 or 32
	Wide   bool // large-document variant: RLE row counts are 32-bit
}

// RowBytes returns the byte length of one decoded scanline.
func (p Params) RowBytes() int {
	if p.Depth == 1 {
		return (p.Width + 7) / 8
	}
	return p.Width * (p.Depth / 8)
}

// PlaneBytes returns the byte length of the whole decoded plane.
func (p Params) PlaneBytes() int64 { return int64(p.RowBytes()) * int64(p.Height) }

type Decoder interface {
	Name() string
	Decode(ctx context.Context, input []byte, params Params) ([]byte, error)
}

type Pipeline struct {
	decoders map[Compression]Decoder
	limits   Limits
}

type Limits struct {
	MaxDecompressedSize int64
	MaxDecodeTime       time.Duration
}

// NewPipeline binds decoders to the compression codes they serve.
func NewPipeline(decoders map[Compression]Decoder, limits Limits) *Pipeline {
	return &Pipeline{decoders: decoders, limits: limits}
}

// NewDefaultPipeline returns a pipeline serving every compression method the format defines.
func NewDefaultPipeline(limits Limits) *Pipeline {
	return NewPipeline(map[Compression]Decoder{
		CompressionRaw:           NewRawDecoder(),
		CompressionRLE:           NewRLEDecoder(),
		CompressionZIP:           NewZIPDecoder(false),
		CompressionZIPPrediction: NewZIPDecoder(true),
	}, limits)
}

// Decode turns one channel's payload (without its compression code) into a
// plane of exactly params.PlaneBytes() bytes.
func (p *Pipeline) Decode(ctx context.Context, c Compression, input []byte, params Params) ([]byte, error) {
	dec, ok := p.decoders[c]
	if !ok {
		return nil, fmt.Errorf("unknown compression: %s", c)
	}
	if err := validatePlaneBounds(params, p.limits.MaxDecompressedSize); err != nil {
		return nil, err
	}
	if p.limits.MaxDecodeTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.limits.MaxDecodeTime)
		defer cancel()
	}
	out, err := dec.Decode(ctx, input, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dec.Name(), err)
	}
	if int64(len(out)) != params.PlaneBytes() {
		return nil, fmt.Errorf("%s: %w: got %d bytes, want %d", dec.Name(), ErrCorrupt, len(out), params.PlaneBytes())
	}
	return out, nil
}

type rawDecoder struct{}

func (rawDecoder) Name() string { return "Raw" }
func (rawDecoder) Decode(ctx context.Context, in []byte, params Params) ([]byte, error) {
	want := params.PlaneBytes()
	if int64(len(in)) < want {
		return nil, fmt.Errorf("%w: raw plane has %d of %d bytes", ErrCorrupt, len(in), want)
	}
	return in[:want], nil
}
func NewRawDecoder() Decoder { return rawDecoder{} }
