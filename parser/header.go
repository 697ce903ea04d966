package parser

import (
	"image"
	"image/color"

	"github.com/wudi/psdkit/compat"
	"github.com/wudi/psdkit/ir/raw"
	"github.com/wudi/psdkit/stream"
)

const (
	signature       = "8BPS"
	maxChannels     = 56
	maxDimensionV1  = 30000
	maxDimensionV2  = 300000
	indexedTableLen = 768
)

func (d *decoder) readHeader(s *stream.Reader) (raw.Header, error) {
	var h raw.Header
	sig, err := s.Signature()
	if err != nil {
		return h, err
	}
	if sig != signature {
		return h, d.invalid("bad signature %q", sig)
	}
	version, err := s.U16()
	if err != nil {
		return h, err
	}
	if version != 1 && version != 2 {
		return h, d.invalid("unsupported version %d", version)
	}
	h.Version = int(version)
	if err := s.Skip(6); err != nil {
		return h, err
	}
	channels, err := s.U16()
	if err != nil {
		return h, err
	}
	height, err := s.U32()
	if err != nil {
		return h, err
	}
	width, err := s.U32()
	if err != nil {
		return h, err
	}
	depth, err := s.U16()
	if err != nil {
		return h, err
	}
	mode, err := s.U16()
	if err != nil {
		return h, err
	}

	if channels < 1 || channels > maxChannels {
		return h, d.invalid("channel count %d out of range", channels)
	}
	limit := uint32(maxDimensionV1)
	if h.Wide() {
		limit = maxDimensionV2
	}
	if l := uint32(d.cfg.Limits.MaxDimension); l < limit {
		limit = l
	}
	if width == 0 || height == 0 || width > limit || height > limit {
		return h, d.invalid("dimensions %dx%d out of range", width, height)
	}
	switch depth {
	case 1, 8, 16, 32:
	default:
		return h, d.invalid("unsupported depth %d", depth)
	}
	if err := d.checkArea("image", image.Rect(0, 0, int(width), int(height)), maxPixelSamples*bytesPerSample(int(depth))); err != nil {
		return h, err
	}
	m := compat.ColorMode(mode)
	if !m.Valid() {
		return h, d.invalid("unsupported color mode %d", mode)
	}

	h.Channels = int(channels)
	h.Height = int(height)
	h.Width = int(width)
	h.Depth = int(depth)
	h.Mode = m
	return h, nil
}

func (d *decoder) readColorModeData(s *stream.Reader) error {
	n, err := s.U32()
	if err != nil {
		return err
	}
	if int64(n) > d.cfg.Limits.MaxBlockSize {
		return d.invalid("color mode data of %d bytes exceeds limit", n)
	}
	data, err := s.Bytes(int64(n))
	if err != nil {
		return err
	}
	d.doc.ColorModeData = data
	if d.doc.Header.Mode == compat.ColorModeIndexed && len(data) >= indexedTableLen {
		pal := make(color.Palette, 256)
		for i := range pal {
			pal[i] = color.RGBA{R: data[i], G: data[256+i], B: data[512+i], A: 0xff}
		}
		d.doc.Palette = pal
	}
	return nil
}
