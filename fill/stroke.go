package fill

import (
	"math"

	"github.com/pkg/errors"

	"github.com/wudi/psdkit/compat"
	"github.com/wudi/psdkit/coords"
	"github.com/wudi/psdkit/descriptor"
	"github.com/wudi/psdkit/observability"
)

type LineCap string

const (
	CapButt   LineCap = "butt"
	CapRound  LineCap = "round"
	CapSquare LineCap = "square"
)

type LineJoin string

const (
	JoinMiter LineJoin = "miter"
	JoinRound LineJoin = "round"
	JoinBevel LineJoin = "bevel"
)

// Stroke holds vector stroke settings ('vstk'). Width is in pixels at
// Resolution.
type Stroke struct {
	Version       int
	StrokeEnabled bool
	FillEnabled   bool
	Width         float64
	DashOffset    float64
	MiterLimit    float64
	Cap           LineCap
	Join          LineJoin
	Alignment     string // inside, center or outside
	ScaleLock     bool
	StrokeAdjust  bool
	Dashes        []float64
	Opacity       float64 // 0..1
	Blend         compat.CompositeOp
	Resolution    float64

	Content Config
}

func NewStroke() *Stroke {
	return &Stroke{
		Version:     2,
		FillEnabled: true,
		Width:       1,
		MiterLimit:  4,
		Cap:         CapButt,
		Join:        JoinMiter,
		Alignment:   "center",
		Opacity:     1,
		Blend:       compat.CompositeOver,
		Resolution:  72,
		Content:     Config{Kind: KindSolid, Solid: &Solid{}},
	}
}

// WidthPt converts the stroke width to points.
func (s *Stroke) WidthPt() float64 {
	res := s.Resolution
	if res <= 0 {
		res = 72
	}
	return s.Width / res * compat.PointsPerInch
}

// DashPattern returns the dash array with zero entries raised to a tiny
// positive length and odd-length patterns doubled.
func (s *Stroke) DashPattern() []float64 {
	if len(s.Dashes) == 0 {
		return nil
	}
	out := make([]float64, 0, 2*len(s.Dashes))
	for _, d := range s.Dashes {
		out = append(out, math.Max(d, 1e-6))
	}
	if len(out)%2 == 1 {
		out = append(out, out...)
	}
	return out
}

func SetupStrokeCatcher(path string, c *descriptor.Catcher, s *Stroke) {
	p := path + "/strokeStyle/"
	c.SubscribeInteger(p+"strokeStyleVersion", func(v int) { s.Version = v })
	c.SubscribeBoolean(p+"strokeEnabled", func(v bool) { s.StrokeEnabled = v })
	c.SubscribeBoolean(p+"fillEnabled", func(v bool) { s.FillEnabled = v })
	c.SubscribeUnitFloat(p+"strokeStyleLineWidth", descriptor.UnitPixels, func(v float64) { s.Width = v })
	c.SubscribeUnitFloat(p+"strokeStyleLineDashOffset", descriptor.UnitPoints, func(v float64) { s.DashOffset = v })
	c.SubscribeDouble(p+"strokeStyleMiterLimit", func(v float64) { s.MiterLimit = v })
	c.SubscribeEnum(p+"strokeStyleLineCapType", "strokeStyleLineCapType", func(v string) {
		switch v {
		case "strokeStyleButtCap":
			s.Cap = CapButt
		case "strokeStyleSquareCap":
			s.Cap = CapSquare
		case "strokeStyleRoundCap":
			s.Cap = CapRound
		}
	})
	c.SubscribeEnum(p+"strokeStyleLineJoinType", "strokeStyleLineJoinType", func(v string) {
		switch v {
		case "strokeStyleMiterJoin":
			s.Join = JoinMiter
		case "strokeStyleBevelJoin":
			s.Join = JoinBevel
		case "strokeStyleRoundJoin":
			s.Join = JoinRound
		}
	})
	c.SubscribeEnum(p+"strokeStyleLineAlignment", "strokeStyleLineAlignment", func(v string) {
		switch v {
		case "strokeStyleAlignInside":
			s.Alignment = "inside"
		case "strokeStyleAlignOutside":
			s.Alignment = "outside"
		default:
			s.Alignment = "center"
		}
	})
	c.SubscribeBoolean(p+"strokeStyleScaleLock", func(v bool) { s.ScaleLock = v })
	c.SubscribeBoolean(p+"strokeStyleStrokeAdjust", func(v bool) { s.StrokeAdjust = v })
	c.SubscribeUnitFloat(p+"strokeStyleLineDashSet/", descriptor.UnitNone, func(v float64) { s.Dashes = append(s.Dashes, v) })
	c.SubscribeUnitFloat(p+"strokeStyleOpacity", descriptor.UnitPercent, func(v float64) { s.Opacity = v / 100 })
	c.SubscribeEnum(p+"strokeStyleBlendMode", "BlnM", func(v string) { s.Blend, _ = compat.BlendModeFromDescriptor(v) })
	c.SubscribeDouble(p+"strokeStyleResolution", func(v float64) { s.Resolution = v })

	// The content object is a solidColorLayer, gradientLayer or patternLayer
	// descriptor; whichever fields show up select the kind.
	content := p + "strokeStyleContent"
	solid := &Solid{}
	grad := NewGradient()
	pat := NewPattern()
	c.SubscribeColor(content+"/Clr ", func(v descriptor.Color) {
		solid.Color = v
		s.Content = Config{Kind: KindSolid, Solid: solid}
	})
	c.SubscribeGradient(content+"/Grad", func(v descriptor.Gradient) {
		grad.Gradient = v
		s.Content = Config{Kind: KindGradient, Gradient: grad}
	})
	c.SubscribeBoolean(content+"/Dthr", func(v bool) { grad.Dither = v })
	c.SubscribeBoolean(content+"/Rvrs", func(v bool) { grad.Reverse = v })
	c.SubscribeEnum(content+"/Type", "GrdT", grad.SetType)
	c.SubscribePoint(content+"/Ofst", func(v coords.Point) { grad.Offset = v })
	c.SubscribePoint(content+"/phase", func(v coords.Point) { pat.Phase = v })
	// Angle, scale and alignment share their keys between both kinds.
	c.SubscribeUnitFloat(content+"/Angl", descriptor.UnitAngle, func(v float64) { grad.Angle, pat.Angle = v, v })
	c.SubscribeUnitFloat(content+"/Scl ", descriptor.UnitPercent, func(v float64) { grad.Scale, pat.Scale = v, v })
	c.SubscribeBoolean(content+"/Algn", func(v bool) { grad.Align, pat.Align = v, v })
	c.SubscribePatternRef(content+"/Ptrn", func(id, name string) {
		pat.ID, pat.Name = id, name
		s.Content = Config{Kind: KindPattern, Pattern: pat}
	})
}

// ParseStroke decodes a 'vstk' payload.
func ParseStroke(payload []byte, logger observability.Logger) (*Stroke, error) {
	d, err := descriptor.Parse(payload, descriptor.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "vector stroke")
	}
	s := NewStroke()
	c := descriptor.NewCatcher(logger)
	SetupStrokeCatcher("", c, s)
	c.Dispatch(d)
	s.Content.Ignored = c.Mismatches()
	return s, nil
}
