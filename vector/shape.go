package vector

import (
	"math"

	"github.com/wudi/psdkit/compat"
	"github.com/wudi/psdkit/coords"
	"github.com/wudi/psdkit/fill"
)

// Parametric is a live shape rebuilt from origination data. Sizes are in
// points; Transform maps the unrotated shape box (origin at its top-left)
// into document points.
type Parametric struct {
	Shape     string // rectangle, ellipse or star
	Width     float64
	Height    float64
	Angle     float64
	Center    coords.Point
	Transform coords.Matrix

	// Star and polygon geometry.
	Corners    int
	Convex     bool
	TipRadius  float64
	BaseRadius float64
	// Rectangle corner radii, clockwise from top-left.
	Radii [4]float64
}

// NewParametric builds the live shape described by o. It returns false when
// o does not describe a shape that can stay parametric.
func NewParametric(o *fill.Origination) (*Parametric, bool) {
	if !o.CanMakeParametricShape() {
		return nil, false
	}
	w, h, angle := o.OriginalSizeAndAngle()
	res := o.Resolution
	if res <= 0 {
		res = compat.DefaultPPI
	}
	mul := res / compat.PointsPerInch
	p := &Parametric{
		Shape:  o.ShapeName(),
		Width:  w / mul,
		Height: h / mul,
		Angle:  angle,
	}
	for i, r := range o.Radii {
		p.Radii[i] = r / mul
	}
	if p.Shape == "star" {
		if o.Sides < 3 {
			return nil, false
		}
		p.Corners = o.Sides
		p.Convex = !o.IsStar
		half := 360.0 / float64(2*o.Sides) * math.Pi / 180
		a := math.Cos(half) * 100
		l := p.Height / (a + 100) * 100
		p.TipRadius = l
		if o.IsStar {
			p.BaseRadius = math.Cos(half) * (o.StarRatio * 0.01 * l)
		}
	}

	toPt := coords.Scale(1/mul, 1/mul)
	fromPt := coords.Scale(mul, mul)
	rot := coords.Rotate((360 - angle) * math.Pi / 180)
	p.Transform = rot.Multiply(fromPt).Multiply(o.Transform).Multiply(toPt)
	c := coords.Point{
		X: (o.ShapeBBox.Left + o.ShapeBBox.Right) / 2,
		Y: (o.ShapeBBox.Top + o.ShapeBBox.Bottom) / 2,
	}
	p.Center = toPt.Transform(c)
	return p, true
}
