package fill

import (
	"github.com/pkg/errors"

	"github.com/wudi/psdkit/coords"
	"github.com/wudi/psdkit/descriptor"
	"github.com/wudi/psdkit/observability"
	"github.com/wudi/psdkit/stream"
)

// Origin types recorded by the shape tools.
const (
	OriginRectangle        = 1
	OriginRoundedRectangle = 2
	OriginLine             = 4
	OriginEllipse          = 5
	OriginPolygon          = 7
	OriginStar             = 8
	OriginCustom           = 9
)

var parametricShapes = map[int]string{
	OriginRectangle: "rectangle",
	OriginEllipse:   "ellipse",
	OriginPolygon:   "star",
	OriginStar:      "star",
}

// Origination is the live-shape data of a shape layer ('vogk').
type Origination struct {
	Type       int
	Resolution float64
	Transform  coords.Matrix
	ShapeBBox  coords.Rect
	BoxCorners []coords.Point
	TightBox   []coords.Point
	TrueRect   []coords.Point
	Sides      int
	StarRatio  float64 // percent of inner to outer radius
	IsStar     bool
	Radii      [4]float64 // rounded rectangle corner radii, clockwise from top-left
}

func NewOrigination() *Origination {
	return &Origination{Type: -1, Resolution: 72, Transform: coords.Identity(), StarRatio: 100}
}

// ShapeName is the parametric shape id, empty when the origin type has none.
func (o *Origination) ShapeName() string { return parametricShapes[o.Type] }

func (o *Origination) CanMakeParametricShape() bool { return o.ShapeName() != "" }

// OriginalSizeAndAngle recovers the untransformed size and rotation (in
// degrees) of the shape. The box corners hold the transformed bounding box,
// so they are mapped back through the inverse transform.
func (o *Origination) OriginalSizeAndAngle() (w, h, angle float64) {
	w, h = o.ShapeBBox.Width(), o.ShapeBBox.Height()
	if len(o.BoxCorners) != 4 {
		return w, h, 0
	}
	inv, err := o.Transform.Inverse()
	if err != nil {
		return w, h, 0
	}
	p := make([]coords.Point, 4)
	for i, c := range o.BoxCorners {
		p[i] = inv.Transform(c)
	}
	return coords.Distance(p[0], p[1]), coords.Distance(p[0], p[3]), coords.Angle(p[0], p[1])
}

func SetupOriginationCatcher(path string, c *descriptor.Catcher, o *Origination) {
	p := path + "/keyDescriptorList/null/"
	c.SubscribeInteger(p+"keyOriginType", func(v int) { o.Type = v })
	c.SubscribeDouble(p+"keyOriginResolution", func(v float64) { o.Resolution = v })
	c.SubscribeTransform(p+"Trnf", func(m coords.Matrix) { o.Transform = m })
	c.SubscribeUnitRect(p+"keyOriginShapeBBox", descriptor.UnitPixels, func(r coords.Rect) { o.ShapeBBox = r })
	c.SubscribeRect(p+"keyOriginShapeBBox", func(r coords.Rect) { o.ShapeBBox = r })
	for _, corner := range []string{"rectangleCornerA", "rectangleCornerB", "rectangleCornerC", "rectangleCornerD"} {
		c.SubscribePoint(p+"keyOriginBoxCorners/"+corner, func(pt coords.Point) { o.BoxCorners = append(o.BoxCorners, pt) })
		c.SubscribePoint(p+"keyOriginPolyPreviousTightBoxCorners/"+corner, func(pt coords.Point) { o.TightBox = append(o.TightBox, pt) })
		c.SubscribePoint(p+"keyOriginPolyTrueRectCorners/"+corner, func(pt coords.Point) { o.TrueRect = append(o.TrueRect, pt) })
	}
	c.SubscribeInteger(p+"keyOriginPolySides", func(v int) { o.Sides = v })
	c.SubscribeUnitFloat(p+"keyOriginPolyStarRatio", descriptor.UnitPercent, func(v float64) {
		o.StarRatio = v
		o.IsStar = true
	})
	radii := []string{"topLeft", "topRight", "bottomRight", "bottomLeft"}
	for i, key := range radii {
		c.SubscribeUnitFloat(p+"keyOriginRRectRadii/"+key, descriptor.UnitPixels, func(v float64) { o.Radii[i] = v })
	}
}

// ParseOrigination decodes a 'vogk' payload: a 4-byte version, then a
// versioned descriptor.
func ParseOrigination(payload []byte, logger observability.Logger) (*Origination, []string, error) {
	r := stream.FromBytes(payload)
	if _, err := r.U32(); err != nil {
		return nil, nil, errors.Wrap(err, "vector origination")
	}
	d, err := descriptor.ReadVersioned(r, descriptor.Config{})
	if err != nil {
		return nil, nil, errors.Wrap(err, "vector origination")
	}
	o := NewOrigination()
	c := descriptor.NewCatcher(logger)
	SetupOriginationCatcher("/null", c, o)
	c.Dispatch(d)
	return o, c.Mismatches(), nil
}
