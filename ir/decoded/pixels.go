package decoded

import (
	"encoding/binary"
	"image"
	"math"

	"github.com/wudi/psdkit/cmm"
	"github.com/wudi/psdkit/compat"
	"github.com/wudi/psdkit/ir/raw"
)

// Pixels is an interleaved pixel buffer. Channels follow the colour
// space's layout and multi-byte samples are little-endian.
type Pixels struct {
	Rect       image.Rectangle
	ColorSpace *cmm.ColorSpace
	Stride     int
	Pix        []byte
}

// PixOffset returns the index of the first byte of the pixel at (x, y).
func (p *Pixels) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*p.ColorSpace.PixelSize()
}

// Pixel returns the bytes of the pixel at (x, y), or nil outside Rect.
func (p *Pixels) Pixel(x, y int) []byte {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return nil
	}
	i := p.PixOffset(x, y)
	return p.Pix[i : i+p.ColorSpace.PixelSize()]
}

func imageRect(h raw.Header) image.Rectangle { return image.Rect(0, 0, h.Width, h.Height) }

// LayerPixels interleaves the colour and transparency planes of l. A layer
// without a transparency channel is opaque.
func (d *Document) LayerPixels(l *Layer) *Pixels {
	return d.interleave(l.Record.Rect, l.Planes)
}

// MergedPixels interleaves the merged image, or returns nil when it was
// not decoded.
func (d *Document) MergedPixels() *Pixels {
	if len(d.Merged) == 0 {
		return nil
	}
	return d.interleave(imageRect(d.Raw.Header), d.Merged)
}

func (d *Document) interleave(rect image.Rectangle, planes []*Plane) *Pixels {
	cs := d.ColorSpace
	bps := cs.Depth.BytesPerSample()
	ps := cs.PixelSize()
	out := &Pixels{Rect: rect, ColorSpace: cs, Stride: rect.Dx() * ps}
	out.Pix = make([]byte, out.Stride*rect.Dy())
	if rect.Empty() {
		return out
	}

	hasAlpha := false
	for _, p := range planes {
		if p != nil && p.ID == -1 {
			hasAlpha = true
		}
	}
	if !hasAlpha {
		fillChannel(out, cs.AlphaIndex(), maxSample(cs.Depth))
	}

	invert := d.Raw.Header.Mode == compat.ColorModeCMYK
	for _, p := range planes {
		if p == nil || p.ID < -1 || p.Defaulted || p.Data == nil || p.Rect != rect {
			continue
		}
		if p.ID == 0 && d.Raw.Palette != nil && d.Raw.Header.Mode == compat.ColorModeIndexed {
			d.expandPalette(out, p)
			continue
		}
		idx, ok := cs.ChannelIndex(int(p.ID))
		if !ok {
			continue
		}
		rowBytes := p.RowBytes()
		for y := 0; y < rect.Dy(); y++ {
			row := p.Data[y*rowBytes : (y+1)*rowBytes]
			dst := out.Pix[y*out.Stride:]
			for x := 0; x < rect.Dx(); x++ {
				o := x*ps + idx*bps
				writeSample(dst[o:o+bps], row, x, p.Depth, invert && p.ID >= 0)
			}
		}
	}
	return out
}

func (d *Document) expandPalette(out *Pixels, p *Plane) {
	cs := out.ColorSpace
	ps := cs.PixelSize()
	rowBytes := p.RowBytes()
	for y := 0; y < p.Rect.Dy(); y++ {
		row := p.Data[y*rowBytes : (y+1)*rowBytes]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < p.Rect.Dx(); x++ {
			r, g, b, _ := d.Raw.Palette[row[x]].RGBA()
			for id, v := range [3]uint32{r, g, b} {
				idx, _ := cs.ChannelIndex(id)
				dst[x*ps+idx] = uint8(v >> 8)
			}
		}
	}
}

// writeSample converts sample x of a stored row into one destination sample.
func writeSample(dst, row []byte, x, srcDepth int, invert bool) {
	switch srcDepth {
	case 1:
		// Bitmap documents store 1 for black.
		v := uint8(0xff)
		if row[x/8]&(0x80>>(x%8)) != 0 {
			v = 0
		}
		dst[0] = v
	case 8:
		v := row[x]
		if invert {
			v = 0xff - v
		}
		dst[0] = v
	case 16:
		v := binary.BigEndian.Uint16(row[x*2:])
		if invert {
			v = 0xffff - v
		}
		binary.LittleEndian.PutUint16(dst, v)
	case 32:
		binary.LittleEndian.PutUint32(dst, binary.BigEndian.Uint32(row[x*4:]))
	}
}

func maxSample(depth cmm.Depth) []byte {
	switch depth {
	case cmm.DepthU16:
		return []byte{0xff, 0xff}
	case cmm.DepthF32:
		return binary.LittleEndian.AppendUint32(nil, math.Float32bits(1))
	default:
		return []byte{0xff}
	}
}

func fillChannel(p *Pixels, idx int, v []byte) {
	ps := p.ColorSpace.PixelSize()
	off := idx * len(v)
	for i := off; i < len(p.Pix); i += ps {
		copy(p.Pix[i:], v)
	}
}

// Mask returns the coverage of mask channel id (-2 user mask, -3 real user
// mask) over its own rectangle. Pixels outside that rectangle take the
// mask's default colour, which the caller reads from the record. A
// defaulted plane is filled with the default colour.
func (l *Layer) Mask(id int16) *image.Gray {
	p := l.Plane(id)
	if p == nil || p.Rect.Empty() {
		return nil
	}
	m := l.Record.Mask
	if id == -3 && m != nil && m.Real != nil {
		m = m.Real
	}
	img := image.NewGray(p.Rect)
	if p.Defaulted || p.Data == nil {
		if m != nil {
			for i := range img.Pix {
				img.Pix[i] = m.DefaultColor
			}
		}
		return img
	}
	rowBytes := p.RowBytes()
	for y := 0; y < p.Rect.Dy(); y++ {
		row := p.Data[y*rowBytes:]
		for x := 0; x < p.Rect.Dx(); x++ {
			img.Pix[y*img.Stride+x] = sample8(row, x, p.Depth)
		}
	}
	return img
}

// sample8 reduces sample x of a stored row to 8 bits.
func sample8(row []byte, x, depth int) uint8 {
	switch depth {
	case 1:
		if row[x/8]&(0x80>>(x%8)) != 0 {
			return 0
		}
		return 0xff
	case 16:
		return row[x*2]
	case 32:
		f := math.Float32frombits(binary.BigEndian.Uint32(row[x*4:]))
		return uint8(math.Round(math.Max(0, math.Min(1, float64(f))) * 255))
	default:
		return row[x]
	}
}
