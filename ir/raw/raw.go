// Package raw holds the records of a layered document exactly as they are
// stored: header, resources, flat layer records with their tagged blocks,
// and the location of every channel's pixel data.
package raw

import (
	"context"
	"image"
	"image/color"
	"io"

	"github.com/elliotchance/orderedmap/v3"

	"github.com/wudi/psdkit/compat"
	"github.com/wudi/psdkit/cos"
	"github.com/wudi/psdkit/fill"
	"github.com/wudi/psdkit/filters"
	"github.com/wudi/psdkit/pattern"
	"github.com/wudi/psdkit/style"
	"github.com/wudi/psdkit/textengine"
	"github.com/wudi/psdkit/vector"
)

// Header is the fixed 26-byte file header.
type Header struct {
	Version  int // 1 for regular documents, 2 for large documents
	Channels int
	Height   int
	Width    int
	Depth    int // bits per channel: 1, 8, 16 or 32
	Mode     compat.ColorMode
}

// Wide reports whether the document uses the large-document layout, in
// which several lengths are 64 bits wide.
func (h Header) Wide() bool { return h.Version == 2 }

// Params returns the decode geometry for a w by h plane of this document.
func (h Header) Params(w, hgt int) filters.Params {
	return filters.Params{Width: w, Height: hgt, Depth: h.Depth, Wide: h.Wide()}
}

// Resource identifiers with a typed decoding.
const (
	ResourceResolution     uint16 = 1005
	ResourceLayerState     uint16 = 1024
	ResourceLayerGroups    uint16 = 1026
	ResourceGridGuides     uint16 = 1032
	ResourceGlobalAngle    uint16 = 1037
	ResourceICCProfile     uint16 = 1039
	ResourceGlobalAltitude uint16 = 1049
	ResourceXMP            uint16 = 1060
)

// ResourceEntry is one image resource block. Value holds the decoded form
// for known identifiers and is nil for opaque ones.
type ResourceEntry struct {
	ID     uint16
	Name   string
	Data   []byte
	Offset int64
	Value  any
}

// Resolution is resource 1005. Resolutions are pixels per inch.
type Resolution struct {
	HRes       float64
	HResUnit   uint16
	WidthUnit  uint16
	VRes       float64
	VResUnit   uint16
	HeightUnit uint16
}

// Guide is a ruler guide in pixels.
type Guide struct {
	Location float64
	Vertical bool
}

// GridGuides is resource 1032.
type GridGuides struct {
	HorizontalCycle uint32
	VerticalCycle   uint32
	Guides          []Guide
}

// Resources is the image resource section. Entries keep the position of
// the first occurrence of their identifier; a repeated identifier replaces
// the earlier payload.
type Resources struct {
	entries *orderedmap.OrderedMap[uint16, *ResourceEntry]
}

func NewResources() *Resources {
	return &Resources{entries: orderedmap.NewOrderedMap[uint16, *ResourceEntry]()}
}

// Add stores e and reports whether it replaced an entry with the same id.
func (r *Resources) Add(e *ResourceEntry) bool {
	return !r.entries.Set(e.ID, e)
}

func (r *Resources) Get(id uint16) (*ResourceEntry, bool) { return r.entries.Get(id) }

func (r *Resources) Len() int { return r.entries.Len() }

// All returns the entries in order of first appearance.
func (r *Resources) All() []*ResourceEntry {
	out := make([]*ResourceEntry, 0, r.entries.Len())
	for _, e := range r.entries.AllFromFront() {
		out = append(out, e)
	}
	return out
}

// SectionType is the kind of a section divider ('lsct').
type SectionType uint32

const (
	SectionOther SectionType = iota
	SectionOpenFolder
	SectionClosedFolder
	SectionBoundingDivider
)

func (t SectionType) String() string {
	switch t {
	case SectionOpenFolder:
		return "open-folder"
	case SectionClosedFolder:
		return "closed-folder"
	case SectionBoundingDivider:
		return "bounding-divider"
	default:
		return "none"
	}
}

// Divider is a decoded section divider. BlendKey is the group's blend mode
// and is empty when the block does not record one.
type Divider struct {
	Type     SectionType
	BlendKey string
	SubType  uint32
}

// ChannelDescriptor locates one channel's compressed pixel data.
// Ids >= 0 are color channels, -1 is transparency, -2 the user mask and
// -3 the real user mask.
type ChannelDescriptor struct {
	ID          int16
	Length      int64 // declared length, compression code included
	Compression filters.Compression
	Offset      int64 // absolute offset of the data after the compression code
}

// DataLength is the length of the compressed payload.
func (c ChannelDescriptor) DataLength() int64 {
	if c.Length < 2 {
		return 0
	}
	return c.Length - 2
}

// IsMask reports whether the channel belongs to a layer mask.
func (c ChannelDescriptor) IsMask() bool { return c.ID < -1 }

// LayerMask is the layer mask / adjustment layer data of a record.
type LayerMask struct {
	Rect         image.Rectangle
	DefaultColor uint8
	Flags        uint8
	// Real is the user mask when a vector mask also exists.
	Real *LayerMask
}

// Disabled reports whether the mask is switched off.
func (m *LayerMask) Disabled() bool { return m.Flags&2 != 0 }

// TaggedBlock is one entry of a record's extra data or of the global
// section.
type TaggedBlock struct {
	Signature string // "8BIM" or "8B64"
	Key       string
	Data      []byte
	Offset    int64
}

// LayerRecord is one layer as stored in the layer info section.
type LayerRecord struct {
	Index          int
	Rect           image.Rectangle
	Channels       []ChannelDescriptor
	BlendKey       string
	Opacity        uint8
	Clipping       bool
	Flags          uint8
	Name           string
	Mask           *LayerMask
	BlendingRanges []byte
	Blocks         []TaggedBlock
	Offset         int64

	// Decoded extra data. A field stays at its zero value when its block is
	// absent or could not be decoded.
	Divider     *Divider
	UnicodeName string
	LayerID     uint32
	ColorLabel  uint16
	Locks       Locks
	FillOpacity uint8
	VectorMask  *vector.Mask
	Fill        *fill.Config
	Stroke      *fill.Stroke
	Origination *fill.Origination
	Text        *textengine.TypeTool
	Style       *style.Style
	Placed      *Placed
	Adjustment  *Adjustment
}

// DisplayName prefers the Unicode name over the legacy Pascal name.
func (l *LayerRecord) DisplayName() string {
	if l.UnicodeName != "" {
		return l.UnicodeName
	}
	return l.Name
}

// TransparencyProtected reports flag bit 0.
func (l *LayerRecord) TransparencyProtected() bool { return l.Flags&1 != 0 }

// Visible reports flag bit 1, which is set for hidden layers.
func (l *LayerRecord) Visible() bool { return l.Flags&2 == 0 }

// PixelDataIrrelevant reports flag bit 4 (valid when bit 3 is set).
func (l *LayerRecord) PixelDataIrrelevant() bool { return l.Flags&8 != 0 && l.Flags&16 != 0 }

// Block returns the payload of the last block with the given key.
func (l *LayerRecord) Block(key string) ([]byte, bool) {
	for i := len(l.Blocks) - 1; i >= 0; i-- {
		if l.Blocks[i].Key == key {
			return l.Blocks[i].Data, true
		}
	}
	return nil, false
}

// Has reports whether any of keys is present.
func (l *LayerRecord) Has(keys ...string) bool {
	for _, k := range keys {
		if _, ok := l.Block(k); ok {
			return true
		}
	}
	return false
}

// Channel returns the descriptor for channel id.
func (l *LayerRecord) Channel(id int16) (ChannelDescriptor, bool) {
	for _, c := range l.Channels {
		if c.ID == id {
			return c, true
		}
	}
	return ChannelDescriptor{}, false
}

// ChannelRect returns the rectangle a channel's pixels cover: the mask
// rectangle for mask channels, the layer rectangle otherwise.
func (l *LayerRecord) ChannelRect(c ChannelDescriptor) image.Rectangle {
	switch {
	case c.ID == -3 && l.Mask != nil && l.Mask.Real != nil:
		return l.Mask.Real.Rect
	case c.ID < -1 && l.Mask != nil:
		return l.Mask.Rect
	}
	return l.Rect
}

// Locks are the protection flags of 'lspf'.
type Locks uint32

func (l Locks) Transparency() bool { return l&1 != 0 }
func (l Locks) Composite() bool    { return l&2 != 0 }
func (l Locks) Position() bool     { return l&4 != 0 }
func (l Locks) All() bool          { return l&0x80000000 != 0 }

// Placed is a placed (file) layer from 'SoLd', 'SoLE' or 'PlLd'. Corners
// are the transformed corners of the placed content, clockwise from
// top-left, as x/y pairs in pixels.
type Placed struct {
	Key     string
	ID      string
	Kind    uint32
	Corners [8]float64
}

// Adjustment is an adjustment layer. Filter names the adjustment; Params
// holds the values that could be decoded and Data the raw payload.
type Adjustment struct {
	Key    string
	Filter string
	Params *orderedmap.OrderedMap[string, any]
	Data   []byte
}

// GlobalMaskInfo is the global layer mask info block.
type GlobalMaskInfo struct {
	OverlayColorSpace uint16
	Components        [4]uint16
	Opacity           uint16
	Kind              uint8
}

// ImageData locates the merged image data section.
type ImageData struct {
	Compression filters.Compression
	Offset      int64
	Length      int64
}

// Document is the root container of the raw stage.
type Document struct {
	Header        Header
	ColorModeData []byte
	// Palette is the colour table of indexed documents.
	Palette   color.Palette
	Resources *Resources
	Layers    []*LayerRecord
	// MergedAlpha is set when the stored layer count was negative: the first
	// alpha channel holds the transparency of the merged result.
	MergedAlpha bool
	GlobalMask  *GlobalMaskInfo
	// Global holds the tagged blocks that follow the layer info section.
	Global    []TaggedBlock
	ImageData *ImageData
	// Patterns are the embedded patterns of 'Patt', 'Pat2' and 'Pat3'.
	Patterns []*pattern.Pattern
	// Txt2 is the document-wide text engine data with named keys.
	Txt2 *cos.Dict
	// Source is the input the channel offsets refer to.
	Source io.ReaderAt
}

// GlobalBlock returns the payload of the first global block with key.
func (d *Document) GlobalBlock(key string) ([]byte, bool) {
	for _, b := range d.Global {
		if b.Key == key {
			return b.Data, true
		}
	}
	return nil, false
}

// Parser converts bytes into a raw.Document.
type Parser interface {
	Parse(ctx context.Context, r io.ReaderAt) (*Document, error)
}
