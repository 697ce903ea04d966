// Package fill decodes fill layer configurations (solid colour, gradient,
// pattern), vector stroke settings and vector origination data.
package fill

import (
	"math"

	"github.com/elliotchance/orderedmap/v3"
	"github.com/pkg/errors"

	"github.com/wudi/psdkit/coords"
	"github.com/wudi/psdkit/descriptor"
	"github.com/wudi/psdkit/observability"
)

type Kind int

const (
	KindSolid Kind = iota
	KindGradient
	KindPattern
)

func (k Kind) String() string {
	switch k {
	case KindGradient:
		return "gradient"
	case KindPattern:
		return "pattern"
	default:
		return "color"
	}
}

// KindForTag maps an extra-data tag to a fill kind.
func KindForTag(tag string) (Kind, bool) {
	switch tag {
	case "SoCo":
		return KindSolid, true
	case "GdFl":
		return KindGradient, true
	case "PtFl":
		return KindPattern, true
	}
	return 0, false
}

type Solid struct {
	Color descriptor.Color
}

func SetupSolidCatcher(path string, c *descriptor.Catcher, s *Solid) {
	c.SubscribeColor(path+"/Clr ", func(v descriptor.Color) { s.Color = v })
}

// Gradient is a gradient fill. Style is linear, radial, conical, bilinear
// or square; Repeat is none or alternate.
type Gradient struct {
	Angle    float64
	Style    string
	Repeat   string
	Scale    float64
	Reverse  bool
	Dither   bool
	Align    bool
	Offset   coords.Point
	Gradient descriptor.Gradient
}

func NewGradient() *Gradient {
	return &Gradient{Style: "linear", Repeat: "none", Scale: 100}
}

// SetType applies a 'GrdT' enum value.
func (g *Gradient) SetType(t string) {
	g.Repeat = "none"
	switch t {
	case "Lnr ":
		g.Style = "linear"
	case "Rdl ":
		g.Style = "radial"
	case "Angl":
		g.Style = "conical"
	case "Rflc":
		g.Style = "bilinear"
		g.Repeat = "alternate"
	default:
		g.Style = "square"
	}
}

func SetupGradientCatcher(path string, c *descriptor.Catcher, g *Gradient) {
	c.SubscribeGradient(path+"/Grad", func(v descriptor.Gradient) { g.Gradient = v })
	c.SubscribeBoolean(path+"/Dthr", func(v bool) { g.Dither = v })
	c.SubscribeBoolean(path+"/Rvrs", func(v bool) { g.Reverse = v })
	c.SubscribeUnitFloat(path+"/Angl", descriptor.UnitAngle, func(v float64) { g.Angle = v })
	c.SubscribeEnum(path+"/Type", "GrdT", g.SetType)
	c.SubscribeBoolean(path+"/Algn", func(v bool) { g.Align = v })
	c.SubscribeUnitFloat(path+"/Scl ", descriptor.UnitPercent, func(v float64) { g.Scale = v })
	c.SubscribePoint(path+"/Ofst", func(v coords.Point) { g.Offset = v })
}

type Pattern struct {
	Angle float64
	Scale float64
	Align bool
	Phase coords.Point
	Name  string
	ID    string
}

func NewPattern() *Pattern { return &Pattern{Scale: 100} }

// Rotation is the angle as the document model stores it: patterns rotate
// in the opposite direction.
func (p *Pattern) Rotation() float64 {
	return 360 - math.Mod(360+p.Angle, 360)
}

func SetupPatternCatcher(path string, c *descriptor.Catcher, p *Pattern) {
	c.SubscribeUnitFloat(path+"/Angl", descriptor.UnitAngle, func(v float64) { p.Angle = v })
	c.SubscribeUnitFloat(path+"/Scl ", descriptor.UnitPercent, func(v float64) { p.Scale = v })
	c.SubscribeBoolean(path+"/Algn", func(v bool) { p.Align = v })
	c.SubscribePoint(path+"/phase", func(v coords.Point) { p.Phase = v })
	c.SubscribePatternRef(path+"/Ptrn", func(id, name string) { p.ID, p.Name = id, name })
}

// Config is a decoded fill layer configuration. Exactly one of Solid,
// Gradient and Pattern is set, matching Kind.
type Config struct {
	Kind     Kind
	Solid    *Solid
	Gradient *Gradient
	Pattern  *Pattern
	// Ignored lists values that were present but could not be applied.
	Ignored []string
}

// Generator returns the generator id and its properties in a stable order.
func (c *Config) Generator() (string, *orderedmap.OrderedMap[string, any]) {
	props := orderedmap.NewOrderedMap[string, any]()
	switch c.Kind {
	case KindSolid:
		props.Set("color", c.Solid.Color.Hex())
	case KindGradient:
		g := c.Gradient
		props.Set("gradient", g.Gradient.Name)
		props.Set("dither", g.Dither)
		props.Set("reverse", g.Reverse)
		props.Set("shape", g.Style)
		props.Set("repeat", g.Repeat)
		props.Set("end_position_angle", g.Angle)
		props.Set("end_position_distance", g.Scale/2)
		props.Set("start_position_x", 50+g.Offset.X)
		props.Set("start_position_y", 50+g.Offset.Y)
	case KindPattern:
		p := c.Pattern
		props.Set("pattern", p.Name)
		props.Set("fileName", p.ID+".pat")
		props.Set("transform_scale_x", p.Scale/100)
		props.Set("transform_scale_y", p.Scale/100)
		props.Set("transform_rotation_z", p.Rotation())
		props.Set("transform_offset_x", p.Phase.X)
		props.Set("transform_offset_y", p.Phase.Y)
	}
	return c.Kind.String(), props
}

// Parse decodes the payload of a SoCo, GdFl or PtFl block.
func Parse(tag string, payload []byte, logger observability.Logger) (*Config, error) {
	kind, ok := KindForTag(tag)
	if !ok {
		return nil, errors.Errorf("%q is not a fill tag", tag)
	}
	d, err := descriptor.Parse(payload, descriptor.Config{})
	if err != nil {
		return nil, errors.Wrapf(err, "fill %s", tag)
	}
	cfg := &Config{Kind: kind}
	c := descriptor.NewCatcher(logger)
	switch kind {
	case KindSolid:
		cfg.Solid = &Solid{}
		SetupSolidCatcher("/null", c, cfg.Solid)
	case KindGradient:
		cfg.Gradient = NewGradient()
		SetupGradientCatcher("/null", c, cfg.Gradient)
	case KindPattern:
		cfg.Pattern = NewPattern()
		SetupPatternCatcher("/null", c, cfg.Pattern)
	}
	c.Dispatch(d)
	cfg.Ignored = c.Mismatches()
	return cfg, nil
}
