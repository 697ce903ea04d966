package builder

import "image"

// Block is a tagged extra-data entry.
type Block struct {
	Key  string
	Data []byte
	// Signature defaults to "8BIM".
	Signature string
}

// Channel is one channel of a layer record. Data is the payload that
// follows the 16-bit compression code.
type Channel struct {
	ID          int16
	Compression uint16
	Data        []byte
}

// Mask is the layer mask data of a record.
type Mask struct {
	Rect         image.Rectangle
	DefaultColor uint8
	Flags        uint8
}

// Layer is one record of the layer info section.
type Layer struct {
	Name     string
	Rect     image.Rectangle
	BlendKey string
	Opacity  uint8
	Clipping bool
	Flags    uint8
	Channels []Channel
	Mask     *Mask
	Blocks   []Block
}

// NewLayer returns a visible, opaque, normal-blend layer with no channels.
func NewLayer(name string, rect image.Rectangle) *Layer {
	return &Layer{Name: name, Rect: rect, BlendKey: "norm", Opacity: 255}
}

// Block appends a tagged block.
func (l *Layer) Block(key string, data []byte) *Layer {
	l.Blocks = append(l.Blocks, Block{Key: key, Data: data})
	return l
}

// Channel appends a channel.
func (l *Layer) Channel(id int16, compression uint16, data []byte) *Layer {
	l.Channels = append(l.Channels, Channel{ID: id, Compression: compression, Data: data})
	return l
}

// Hidden sets the invisible flag.
func (l *Layer) Hidden() *Layer { l.Flags |= 2; return l }

// Divider appends an 'lsct' block. An empty blend key writes the short form.
func (l *Layer) Divider(kind uint32, blendKey string) *Layer {
	var b Buffer
	b.U32(kind)
	if blendKey != "" {
		b.Sig("8BIM")
		b.Sig(blendKey)
	}
	return l.Block("lsct", b.Bytes())
}

// Resource is an image resource block.
type Resource struct {
	ID   uint16
	Name string
	Data []byte
}

// Document describes a whole layered file.
type Document struct {
	Version  int
	Width    int
	Height   int
	Channels int
	Depth    int
	Mode     uint16

	ColorModeData []byte
	Resources     []Resource
	Layers        []*Layer
	MergedAlpha   bool
	// GlobalMask is written verbatim as the global layer mask info body.
	GlobalMask []byte
	Global     []Block

	MergedCompression uint16
	MergedData        []byte
}

// NewDocument returns an 8-bit RGB document of the given size.
func NewDocument(width, height int) *Document {
	return &Document{Version: 1, Width: width, Height: height, Channels: 3, Depth: 8, Mode: 3}
}

func (d *Document) wide() bool { return d.Version == 2 }

// Resource appends an image resource.
func (d *Document) Resource(id uint16, data []byte) *Document {
	d.Resources = append(d.Resources, Resource{ID: id, Data: data})
	return d
}

// Layer appends a layer record, bottom-most first.
func (d *Document) Layer(l *Layer) *Document {
	d.Layers = append(d.Layers, l)
	return d
}

// Bytes serializes the document.
func (d *Document) Bytes() []byte {
	var b Buffer
	b.Sig("8BPS")
	b.U16(uint16(d.Version))
	b.Write(make([]byte, 6))
	b.U16(uint16(d.Channels))
	b.U32(uint32(d.Height))
	b.U32(uint32(d.Width))
	b.U16(uint16(d.Depth))
	b.U16(d.Mode)

	b.Block(d.ColorModeData)

	var res Buffer
	for _, r := range d.Resources {
		res.Sig("8BIM")
		res.U16(r.ID)
		res.Pascal(r.Name, 2)
		res.Block(r.Data)
		if len(r.Data)%2 != 0 {
			res.U8(0)
		}
	}
	b.Block(res.Bytes())

	section := d.layerSection()
	b.Length(len(section), d.wide())
	b.Write(section)

	b.U16(d.MergedCompression)
	b.Write(d.MergedData)
	return b.Bytes()
}

func (d *Document) layerSection() []byte {
	var s Buffer
	info := d.LayerInfo()
	if len(d.Layers) > 0 || d.MergedAlpha {
		s.Length(len(info), d.wide())
		s.Write(info)
	} else {
		s.Length(0, d.wide())
	}
	s.Block(d.GlobalMask)
	writeBlocks(&s, d.Global, d.wide(), 4)
	return s.Bytes()
}

// LayerInfo serializes the layer records and their channel data, as stored
// in the layer info section or in an 'Lr16'/'Lr32' block.
func (d *Document) LayerInfo() []byte {
	var s Buffer
	count := int16(len(d.Layers))
	if d.MergedAlpha {
		count = -count
	}
	s.I16(count)
	for _, l := range d.Layers {
		d.writeRecord(&s, l)
	}
	for _, l := range d.Layers {
		for _, c := range l.Channels {
			s.U16(c.Compression)
			s.Write(c.Data)
		}
	}
	if s.Len()%2 != 0 {
		s.U8(0)
	}
	return s.Bytes()
}

func (d *Document) writeRecord(s *Buffer, l *Layer) {
	s.I32(int32(l.Rect.Min.Y))
	s.I32(int32(l.Rect.Min.X))
	s.I32(int32(l.Rect.Max.Y))
	s.I32(int32(l.Rect.Max.X))
	s.U16(uint16(len(l.Channels)))
	for _, c := range l.Channels {
		s.I16(c.ID)
		s.Length(len(c.Data)+2, d.wide())
	}
	s.Sig("8BIM")
	blend := l.BlendKey
	if blend == "" {
		blend = "norm"
	}
	s.Sig(blend)
	s.U8(l.Opacity)
	if l.Clipping {
		s.U8(1)
	} else {
		s.U8(0)
	}
	s.U8(l.Flags)
	s.U8(0)

	var extra Buffer
	var mask Buffer
	if l.Mask != nil {
		mask.I32(int32(l.Mask.Rect.Min.Y))
		mask.I32(int32(l.Mask.Rect.Min.X))
		mask.I32(int32(l.Mask.Rect.Max.Y))
		mask.I32(int32(l.Mask.Rect.Max.X))
		mask.U8(l.Mask.DefaultColor)
		mask.U8(l.Mask.Flags)
		mask.U16(0)
	}
	extra.Block(mask.Bytes())
	extra.Block(nil) // blending ranges
	extra.Pascal(l.Name, 4)
	writeBlocks(&extra, l.Blocks, d.wide(), 2)

	s.Block(extra.Bytes())
}

var wideKeys = map[string]bool{
	"LMsk": true, "Lr16": true, "Lr32": true, "Layr": true, "Mt16": true, "Mt32": true,
	"Mtrn": true, "Alph": true, "FMsk": true, "lnk2": true, "FEid": true, "FXid": true, "PxSD": true,
}

func writeBlocks(b *Buffer, blocks []Block, wide bool, pad int) {
	for _, blk := range blocks {
		sig := blk.Signature
		if sig == "" {
			sig = "8BIM"
		}
		b.Sig(sig)
		b.Sig(blk.Key)
		n := len(blk.Data)
		padded := n
		for padded%pad != 0 {
			padded++
		}
		b.Length(padded, wide && wideKeys[blk.Key])
		b.Write(blk.Data)
		for i := n; i < padded; i++ {
			b.U8(0)
		}
	}
}

// RawPlane returns an uncompressed plane filled with v.
func RawPlane(w, h int, v byte) []byte {
	out := make([]byte, w*h)
	for i := range out {
		out[i] = v
	}
	return out
}

// RLEPlane compresses 8-bit rows into a row count table followed by the
// PackBits scanlines.
func RLEPlane(rows [][]byte, wide bool) []byte {
	var counts, data Buffer
	for _, row := range rows {
		packed := PackBits(row)
		if wide {
			counts.U32(uint32(len(packed)))
		} else {
			counts.U16(uint16(len(packed)))
		}
		data.Write(packed)
	}
	return append(counts.Bytes(), data.Bytes()...)
}

// ConstRows returns h rows of w bytes set to v.
func ConstRows(w, h int, v byte) [][]byte {
	rows := make([][]byte, h)
	for i := range rows {
		rows[i] = RawPlane(w, 1, v)
	}
	return rows
}

// PackBits run-length encodes one scanline.
func PackBits(row []byte) []byte {
	var out []byte
	for i := 0; i < len(row); {
		j := i + 1
		for j < len(row) && j-i < 128 && row[j] == row[i] {
			j++
		}
		if j-i >= 2 {
			out = append(out, byte(257-(j-i)), row[i])
			i = j
			continue
		}
		j = i + 1
		for j < len(row) && j-i < 128 && !(j+1 < len(row) && row[j] == row[j+1]) {
			j++
		}
		out = append(out, byte(j-i-1))
		out = append(out, row[i:j]...)
		i = j
	}
	return out
}
