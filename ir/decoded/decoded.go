// Package decoded turns the channel descriptors of a raw.Document into
// decompressed pixel planes and assembles them into interleaved pixel
// buffers in the document's colour space.
package decoded

import (
	"context"
	"image"

	"github.com/wudi/psdkit/cmm"
	"github.com/wudi/psdkit/ir/raw"
)

// Plane is one decompressed channel. Data holds Rect.Dy() rows of RowBytes
// bytes with samples in stored (big-endian) order. A defaulted plane could
// not be decoded and has no data.
type Plane struct {
	ID        int16
	Rect      image.Rectangle
	Depth     int
	Data      []byte
	Defaulted bool
}

// RowBytes returns the byte length of one row.
func (p *Plane) RowBytes() int {
	if p.Depth == 1 {
		return (p.Rect.Dx() + 7) / 8
	}
	return p.Rect.Dx() * (p.Depth / 8)
}

// Layer pairs a record with its decoded planes, which follow the order of
// the record's channel descriptors.
type Layer struct {
	Record *raw.LayerRecord
	Planes []*Plane
}

// Plane returns the plane of channel id, or nil.
func (l *Layer) Plane(id int16) *Plane {
	for _, p := range l.Planes {
		if p != nil && p.ID == id {
			return p
		}
	}
	return nil
}

// Document is the decoded stage: the raw document, its resolved colour
// space and the pixel planes of every layer.
type Document struct {
	Raw        *raw.Document
	ColorSpace *cmm.ColorSpace
	Layers     []*Layer
	// Merged holds the planes of the merged image. It is only decoded for
	// documents without layer records.
	Merged []*Plane
}

// Decoder transforms the raw stage into the decoded stage.
type Decoder interface {
	Decode(ctx context.Context, rawDoc *raw.Document) (*Document, error)
}
