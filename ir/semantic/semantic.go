// Package semantic reconstructs the layer tree of a decoded document: groups
// from section dividers, typed layers from their extra data, and masks.
package semantic

import (
	"context"
	"image"

	"github.com/elliotchance/orderedmap/v3"

	"github.com/wudi/psdkit/cmm"
	"github.com/wudi/psdkit/compat"
	"github.com/wudi/psdkit/coords"
	"github.com/wudi/psdkit/fill"
	"github.com/wudi/psdkit/ir/decoded"
	"github.com/wudi/psdkit/ir/raw"
	"github.com/wudi/psdkit/pattern"
	"github.com/wudi/psdkit/recovery"
	"github.com/wudi/psdkit/style"
	"github.com/wudi/psdkit/vector"
)

// NodeID identifies a node inside its Image. IDs are never reused.
type NodeID int

// NoNode is the absent node.
const NoNode NodeID = -1

// Kind is the variant of a node.
type Kind int

const (
	KindGroup Kind = iota
	KindPaint
	KindAdjustment
	KindGenerator
	KindShape
	KindFile
	KindTransparencyMask
	KindSelectionMask
	KindFilterMask
	KindTransformMask
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindPaint:
		return "paint"
	case KindAdjustment:
		return "adjustment"
	case KindGenerator:
		return "generator"
	case KindShape:
		return "shape"
	case KindFile:
		return "file"
	case KindTransparencyMask:
		return "transparency mask"
	case KindSelectionMask:
		return "selection mask"
	case KindFilterMask:
		return "filter mask"
	case KindTransformMask:
		return "transform mask"
	}
	return "unknown"
}

// IsMask reports whether nodes of kind k attach to a layer instead of
// living in the layer stack.
func (k Kind) IsMask() bool { return k >= KindTransparencyMask }

// Node is one entry of the layer tree. Exactly one of the variant payloads
// matching Kind is set; paint and file layers also carry Pixels.
type Node struct {
	ID          NodeID
	Kind        Kind
	Name        string
	LayerID     uint32
	Position    image.Point
	Opacity     uint8
	FillOpacity uint8
	Blend       compat.CompositeOp
	// PassThrough is set on groups that do not isolate their content.
	PassThrough bool
	Visible     bool
	Clipped     bool
	ColorLabel  uint16
	Locks       raw.Locks
	Style       *style.Style

	Pixels     *decoded.Pixels
	Selection  *Selection
	Generator  *Generator
	Shape      *Shape
	Text       *Text
	File       *File
	Adjustment *Adjustment

	parent   NodeID
	children []NodeID
	masks    []NodeID
}

// Parent returns the owning group, or the owning layer of a mask.
func (n *Node) Parent() NodeID { return n.parent }

// Selection is mask coverage. Pixels covers its own rectangle; everything
// outside takes Default. Vector, when set, is the mask path in points.
type Selection struct {
	Pixels   *image.Gray
	Default  uint8
	Disabled bool
	Vector   *vector.Path
}

// Generator is a fill layer rendered from its configuration.
type Generator struct {
	Name   string
	Params *orderedmap.OrderedMap[string, any]
	Fill   *fill.Config
}

// Shape is a vector layer. Exactly one of Path and Parametric is set.
// Fill is the shape background and is nil when the stroke disables filling.
type Shape struct {
	Path       *vector.Path
	Parametric *vector.Parametric
	Fill       *fill.Config
	Stroke     *fill.Stroke
}

// Text is an editable text shape.
type Text struct {
	Text   string
	Markup string
	Defs   string
	// Transform maps the markup into document points.
	Transform coords.Matrix
	Warnings  []string
	Errors    []string
}

// File is a layer that references placed content.
type File struct {
	Key     string
	ID      string
	Kind    uint32
	Corners [8]float64
}

// Adjustment is a filter applied to the layers below.
type Adjustment struct {
	Filter string
	Params *orderedmap.OrderedMap[string, any]
	Data   []byte
}

// Guide is a ruler guide in points.
type Guide struct {
	Position float64
	Vertical bool
}

// Annotation is opaque document data kept for a later encoder.
type Annotation struct {
	Type        string
	Description string
	Data        []byte
}

// UndoStore is the host's undo history. The decoder only passes it from
// Host.CreateUndoStore to Host.CreateImage.
type UndoStore interface{}

// Image is a decoded document with its layer tree. Nodes live in an arena
// and refer to each other by NodeID.
type Image struct {
	Name       string
	Width      int
	Height     int
	ColorSpace *cmm.ColorSpace
	// Resolution in pixels per inch.
	XRes, YRes  float64
	Guides      []Guide
	Annotations []Annotation
	// MergedAlpha is set when the first alpha channel of the document holds
	// the transparency of the merged result.
	MergedAlpha bool
	Patterns    *pattern.Registry
	UndoStore   UndoStore
	// Warnings are the recoverable problems met while decoding, in order.
	Warnings []recovery.Warning

	nodes []*Node
}

// Builder transforms the decoded stage into an Image.
type Builder interface {
	Build(ctx context.Context, doc *decoded.Document) (*Image, error)
}
