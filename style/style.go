// Package style decodes layer effects ('lfx2' and 'lmfx' blocks) into a
// value-typed Style that can be attached to any number of layers.
package style

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/wudi/psdkit/compat"
	"github.com/wudi/psdkit/coords"
	"github.com/wudi/psdkit/descriptor"
	"github.com/wudi/psdkit/fill"
	"github.com/wudi/psdkit/observability"
	"github.com/wudi/psdkit/pattern"
	"github.com/wudi/psdkit/stream"
)

// Contour is a transfer curve. Points are in 0..255 on both axes.
type Contour struct {
	Name   string
	Points []coords.Point
}

// Common holds the attributes every effect shares.
type Common struct {
	Enabled bool
	Blend   compat.CompositeOp
	Opacity float64 // percent
}

// Shadow is a drop shadow or an inner shadow.
type Shadow struct {
	Common
	Color          descriptor.Color
	UseGlobalLight bool
	Angle          float64
	Distance       float64
	Spread         float64 // 'Ckmt', called choke for inner shadows
	Size           float64
	Noise          float64
	AntiAlias      bool
	KnocksOut      bool // drop shadow only
	Contour        Contour
}

// Glow is an outer or inner glow. A glow paints either Color or Gradient.
type Glow struct {
	Common
	Color     descriptor.Color
	Gradient  *descriptor.Gradient
	Technique string // SfBL softer, PrBL precise
	Spread    float64
	Size      float64
	Noise     float64
	Jitter    float64
	Range     float64
	AntiAlias bool
	Source    string // SrcC center, SrcE edge; inner glow only
	Contour   Contour
}

// Bevel is a bevel and emboss effect.
type Bevel struct {
	Enabled          bool
	Style            string // InrB, OtrB, Embs, PlEb, strokeEmboss
	Technique        string // SfBL, PrBL, Slmt
	Direction        string // In, Out
	Depth            float64
	Size             float64
	Soften           float64
	UseGlobalLight   bool
	Angle            float64
	Altitude         float64
	HighlightBlend   compat.CompositeOp
	HighlightColor   descriptor.Color
	HighlightOpacity float64
	ShadowBlend      compat.CompositeOp
	ShadowColor      descriptor.Color
	ShadowOpacity    float64
	AntiAliasGloss   bool
	GlossContour     Contour
}

// Satin is the 'ChFX' effect.
type Satin struct {
	Common
	Color     descriptor.Color
	Angle     float64
	Distance  float64
	Size      float64
	Invert    bool
	AntiAlias bool
	Contour   Contour
}

type ColorOverlay struct {
	Common
	Color descriptor.Color
}

type GradientOverlay struct {
	Common
	Fill fill.Gradient
}

type PatternOverlay struct {
	Common
	Fill fill.Pattern
}

// Stroke is the 'FrFX' effect. Content is solid, gradient or pattern as
// given by Paint.
type Stroke struct {
	Common
	Position string // OutF, InsF, CtrF
	Paint    string // SClr, GrFl, Ptrn
	Size     float64
	Color    descriptor.Color
	Gradient fill.Gradient
	Pattern  fill.Pattern
}

// Style is one layer's set of effects.
type Style struct {
	// Scale is the effects scale in percent.
	Scale float64
	// Enabled is the master switch; effects keep their own flags.
	Enabled bool

	DropShadows      []Shadow
	InnerShadows     []Shadow
	OuterGlows       []Glow
	InnerGlows       []Glow
	Bevels           []Bevel
	Satins           []Satin
	ColorOverlays    []ColorOverlay
	GradientOverlays []GradientOverlay
	PatternOverlays  []PatternOverlay
	Strokes          []Stroke

	// Ignored lists values that were present but could not be applied.
	Ignored []string
}

func newStyle() *Style { return &Style{Scale: 100, Enabled: true} }

// Empty reports whether the style carries no effect at all.
func (s *Style) Empty() bool {
	return len(s.DropShadows)+len(s.InnerShadows)+len(s.OuterGlows)+len(s.InnerGlows)+
		len(s.Bevels)+len(s.Satins)+len(s.ColorOverlays)+len(s.GradientOverlays)+
		len(s.PatternOverlays)+len(s.Strokes) == 0
}

// Clone returns a deep copy sharing no slices with s.
func (s *Style) Clone() *Style {
	if s == nil {
		return nil
	}
	out := *s
	out.DropShadows = cloneEach(s.DropShadows, func(v *Shadow) { v.Contour = v.Contour.clone() })
	out.InnerShadows = cloneEach(s.InnerShadows, func(v *Shadow) { v.Contour = v.Contour.clone() })
	out.OuterGlows = cloneEach(s.OuterGlows, (*Glow).deepen)
	out.InnerGlows = cloneEach(s.InnerGlows, (*Glow).deepen)
	out.Bevels = cloneEach(s.Bevels, func(v *Bevel) { v.GlossContour = v.GlossContour.clone() })
	out.Satins = cloneEach(s.Satins, func(v *Satin) { v.Contour = v.Contour.clone() })
	out.ColorOverlays = slices.Clone(s.ColorOverlays)
	out.GradientOverlays = cloneEach(s.GradientOverlays, func(v *GradientOverlay) { v.Fill.Gradient = cloneGradient(v.Fill.Gradient) })
	out.PatternOverlays = slices.Clone(s.PatternOverlays)
	out.Strokes = cloneEach(s.Strokes, func(v *Stroke) { v.Gradient.Gradient = cloneGradient(v.Gradient.Gradient) })
	out.Ignored = slices.Clone(s.Ignored)
	return &out
}

func cloneEach[T any](in []T, deepen func(*T)) []T {
	out := slices.Clone(in)
	for i := range out {
		deepen(&out[i])
	}
	return out
}

func (c Contour) clone() Contour {
	c.Points = slices.Clone(c.Points)
	return c
}

func (g *Glow) deepen() {
	g.Contour = g.Contour.clone()
	if g.Gradient != nil {
		grad := cloneGradient(*g.Gradient)
		g.Gradient = &grad
	}
}

func cloneGradient(g descriptor.Gradient) descriptor.Gradient {
	g.Colors = slices.Clone(g.Colors)
	g.Opacities = slices.Clone(g.Opacities)
	return g
}

// PatternRefs returns the pattern fills referenced by the style.
func (s *Style) PatternRefs() []fill.Pattern {
	var out []fill.Pattern
	for _, p := range s.PatternOverlays {
		out = append(out, p.Fill)
	}
	for _, st := range s.Strokes {
		if st.Paint == "Ptrn" {
			out = append(out, st.Pattern)
		}
	}
	return out
}

// Unresolved returns a warning for every referenced pattern that patterns
// does not contain.
func (s *Style) Unresolved(patterns *pattern.Registry) []string {
	var out []string
	for _, p := range s.PatternRefs() {
		if p.ID == "" && p.Name == "" {
			continue
		}
		if _, ok := patterns.Resolve(p.ID, p.Name); !ok {
			out = append(out, "layer style references unknown pattern "+p.Name+" ("+p.ID+")")
		}
	}
	return out
}

// Parse decodes an 'lfx2' or 'lmfx' payload: a 4-byte object effects
// version followed by a versioned descriptor.
func Parse(payload []byte, cfg descriptor.Config, logger observability.Logger) (*Style, error) {
	r := stream.FromBytes(payload)
	version, err := r.U32()
	if err != nil {
		return nil, errors.Wrap(err, "layer style")
	}
	if version != 0 {
		return nil, errors.Errorf("unsupported object effects version %d", version)
	}
	d, err := descriptor.ReadVersioned(r, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "layer style")
	}
	return FromDescriptor(d, logger), nil
}

// multiKeys maps the list form of an effect to its single form.
var multiKeys = map[string]string{
	"dropShadowMulti":   "DrSh",
	"innerShadowMulti":  "IrSh",
	"solidFillMulti":    "SoFi",
	"gradientFillMulti": "GrFl",
	"frameFXMulti":      "FrFX",
}

// FromDescriptor builds a Style from an effects descriptor. When an effect
// also has a list form, the list replaces the single entry.
func FromDescriptor(d *descriptor.Descriptor, logger observability.Logger) *Style {
	s := newStyle()
	if d == nil {
		return s
	}
	root := "/" + d.ClassID
	c := descriptor.NewCatcher(logger)
	c.SubscribeUnitFloat(root+"/Scl ", descriptor.UnitPercent, func(v float64) { s.Scale = v })
	c.SubscribeBoolean(root+"/masterFXSwitch", func(v bool) { s.Enabled = v })
	filtered := &descriptor.Descriptor{Name: d.Name, ClassID: d.ClassID}
	for _, it := range d.Items {
		if _, ok := multiKeys[it.Key]; ok {
			continue
		}
		if _, ok := effects[it.Key]; ok {
			subscribe(c, root+"/"+it.Key, it.Key, s)
		}
		filtered.Items = append(filtered.Items, it)
	}
	c.Dispatch(filtered)
	s.Ignored = c.Mismatches()

	for _, it := range d.Items {
		key, ok := multiKeys[it.Key]
		if !ok {
			continue
		}
		list, _ := it.Value.([]any)
		multi := newStyle()
		for _, el := range list {
			o, ok := el.(*descriptor.Descriptor)
			if !ok {
				continue
			}
			mc := descriptor.NewCatcher(logger)
			subscribe(mc, "/"+o.ClassID, key, multi)
			mc.Dispatch(o)
			s.Ignored = append(s.Ignored, mc.Mismatches()...)
		}
		effects[key].replace(s, multi)
	}
	return s
}

// effect wires one effect key: subscribe appends a fresh effect to the
// style and registers its setters, replace moves the list form into place.
type effect struct {
	subscribe func(c *descriptor.Catcher, path string, s *Style)
	replace   func(dst, src *Style)
}

// subscribe registers one effect instance found at path.
func subscribe(c *descriptor.Catcher, path, key string, s *Style) {
	effects[key].subscribe(c, path, s)
}

var effects = map[string]effect{
	"DrSh": {
		subscribe: func(c *descriptor.Catcher, path string, s *Style) {
			s.DropShadows = append(s.DropShadows, Shadow{Common: defaultCommon(compat.CompositeMultiply, 75), Angle: 120, Distance: 5, Size: 5})
			idx := len(s.DropShadows) - 1
			setupShadow(c, path, func() *Shadow { return &s.DropShadows[idx] })
			c.SubscribeBoolean(path+"/layerConceals", func(v bool) { s.DropShadows[idx].KnocksOut = v })
		},
		replace: func(dst, src *Style) { dst.DropShadows = src.DropShadows },
	},
	"IrSh": {
		subscribe: func(c *descriptor.Catcher, path string, s *Style) {
			s.InnerShadows = append(s.InnerShadows, Shadow{Common: defaultCommon(compat.CompositeMultiply, 75), Angle: 120, Distance: 5, Size: 5})
			idx := len(s.InnerShadows) - 1
			setupShadow(c, path, func() *Shadow { return &s.InnerShadows[idx] })
		},
		replace: func(dst, src *Style) { dst.InnerShadows = src.InnerShadows },
	},
	"OrGl": {
		subscribe: func(c *descriptor.Catcher, path string, s *Style) {
			s.OuterGlows = append(s.OuterGlows, Glow{Common: defaultCommon(compat.CompositeScreen, 75), Technique: "SfBL", Size: 5, Range: 50})
			idx := len(s.OuterGlows) - 1
			setupGlow(c, path, func() *Glow { return &s.OuterGlows[idx] })
		},
		replace: func(dst, src *Style) { dst.OuterGlows = src.OuterGlows },
	},
	"IrGl": {
		subscribe: func(c *descriptor.Catcher, path string, s *Style) {
			s.InnerGlows = append(s.InnerGlows, Glow{Common: defaultCommon(compat.CompositeScreen, 75), Technique: "SfBL", Size: 5, Range: 50, Source: "SrcE"})
			idx := len(s.InnerGlows) - 1
			g := func() *Glow { return &s.InnerGlows[idx] }
			setupGlow(c, path, g)
			c.SubscribeEnum(path+"/glwS", "IGSr", func(v string) { g().Source = v })
		},
		replace: func(dst, src *Style) { dst.InnerGlows = src.InnerGlows },
	},
	"ebbl": {
		subscribe: func(c *descriptor.Catcher, path string, s *Style) {
			s.Bevels = append(s.Bevels, Bevel{
				Style: "InrB", Technique: "SfBL", Direction: "In", Depth: 100, Size: 5,
				Angle: 120, Altitude: 30, UseGlobalLight: true,
				HighlightBlend: compat.CompositeScreen, HighlightOpacity: 75,
				ShadowBlend: compat.CompositeMultiply, ShadowOpacity: 75,
			})
			idx := len(s.Bevels) - 1
			b := func() *Bevel { return &s.Bevels[idx] }
			c.SubscribeBoolean(path+"/enab", func(v bool) { b().Enabled = v })
			subscribeBlend(c, path+"/hglM", func(op compat.CompositeOp) { b().HighlightBlend = op })
			c.SubscribeColor(path+"/hglC", func(v descriptor.Color) { b().HighlightColor = v })
			c.SubscribeUnitFloat(path+"/hglO", descriptor.UnitPercent, func(v float64) { b().HighlightOpacity = v })
			subscribeBlend(c, path+"/sdwM", func(op compat.CompositeOp) { b().ShadowBlend = op })
			c.SubscribeColor(path+"/sdwC", func(v descriptor.Color) { b().ShadowColor = v })
			c.SubscribeUnitFloat(path+"/sdwO", descriptor.UnitPercent, func(v float64) { b().ShadowOpacity = v })
			c.SubscribeEnum(path+"/bvlT", "bvlT", func(v string) { b().Technique = v })
			c.SubscribeEnum(path+"/bvlS", "BESl", func(v string) { b().Style = v })
			c.SubscribeBoolean(path+"/uglg", func(v bool) { b().UseGlobalLight = v })
			c.SubscribeUnitFloat(path+"/lagl", descriptor.UnitAngle, func(v float64) { b().Angle = v })
			c.SubscribeUnitFloat(path+"/Lald", descriptor.UnitAngle, func(v float64) { b().Altitude = v })
			c.SubscribeUnitFloat(path+"/srgR", descriptor.UnitPercent, func(v float64) { b().Depth = v })
			c.SubscribeUnitFloat(path+"/blur", descriptor.UnitPixels, func(v float64) { b().Size = v })
			c.SubscribeEnum(path+"/bvlD", "BESs", func(v string) { b().Direction = v })
			c.SubscribeUnitFloat(path+"/Sftn", descriptor.UnitPixels, func(v float64) { b().Soften = v })
			c.SubscribeBoolean(path+"/antialiasGloss", func(v bool) { b().AntiAliasGloss = v })
			subscribeContour(c, path+"/TrnS", func() *Contour { return &b().GlossContour })
		},
		replace: func(dst, src *Style) { dst.Bevels = src.Bevels },
	},
	"ChFX": {
		subscribe: func(c *descriptor.Catcher, path string, s *Style) {
			s.Satins = append(s.Satins, Satin{Common: defaultCommon(compat.CompositeMultiply, 50), Angle: 19, Distance: 11, Size: 14, Invert: true})
			idx := len(s.Satins) - 1
			st := func() *Satin { return &s.Satins[idx] }
			setupCommon(c, path, func() *Common { return &st().Common })
			c.SubscribeColor(path+"/Clr ", func(v descriptor.Color) { st().Color = v })
			c.SubscribeUnitFloat(path+"/lagl", descriptor.UnitAngle, func(v float64) { st().Angle = v })
			c.SubscribeUnitFloat(path+"/Dstn", descriptor.UnitPixels, func(v float64) { st().Distance = v })
			c.SubscribeUnitFloat(path+"/blur", descriptor.UnitPixels, func(v float64) { st().Size = v })
			c.SubscribeBoolean(path+"/Invr", func(v bool) { st().Invert = v })
			c.SubscribeBoolean(path+"/AntA", func(v bool) { st().AntiAlias = v })
			subscribeContour(c, path+"/MpgS", func() *Contour { return &st().Contour })
		},
		replace: func(dst, src *Style) { dst.Satins = src.Satins },
	},
	"SoFi": {
		subscribe: func(c *descriptor.Catcher, path string, s *Style) {
			s.ColorOverlays = append(s.ColorOverlays, ColorOverlay{Common: defaultCommon(compat.CompositeOver, 100)})
			idx := len(s.ColorOverlays) - 1
			o := func() *ColorOverlay { return &s.ColorOverlays[idx] }
			setupCommon(c, path, func() *Common { return &o().Common })
			c.SubscribeColor(path+"/Clr ", func(v descriptor.Color) { o().Color = v })
		},
		replace: func(dst, src *Style) { dst.ColorOverlays = src.ColorOverlays },
	},
	"GrFl": {
		subscribe: func(c *descriptor.Catcher, path string, s *Style) {
			s.GradientOverlays = append(s.GradientOverlays, GradientOverlay{Common: defaultCommon(compat.CompositeOver, 100), Fill: *fill.NewGradient()})
			idx := len(s.GradientOverlays) - 1
			o := func() *GradientOverlay { return &s.GradientOverlays[idx] }
			setupCommon(c, path, func() *Common { return &o().Common })
			fill.SetupGradientCatcher(path, c, &o().Fill)
		},
		replace: func(dst, src *Style) { dst.GradientOverlays = src.GradientOverlays },
	},
	"patternFill": {
		subscribe: func(c *descriptor.Catcher, path string, s *Style) {
			s.PatternOverlays = append(s.PatternOverlays, PatternOverlay{Common: defaultCommon(compat.CompositeOver, 100), Fill: *fill.NewPattern()})
			idx := len(s.PatternOverlays) - 1
			o := func() *PatternOverlay { return &s.PatternOverlays[idx] }
			setupCommon(c, path, func() *Common { return &o().Common })
			fill.SetupPatternCatcher(path, c, &o().Fill)
		},
		replace: func(dst, src *Style) { dst.PatternOverlays = src.PatternOverlays },
	},
	"FrFX": {
		subscribe: func(c *descriptor.Catcher, path string, s *Style) {
			s.Strokes = append(s.Strokes, Stroke{
				Common: defaultCommon(compat.CompositeOver, 100), Position: "OutF", Paint: "SClr", Size: 3,
				Gradient: *fill.NewGradient(), Pattern: *fill.NewPattern(),
			})
			idx := len(s.Strokes) - 1
			st := func() *Stroke { return &s.Strokes[idx] }
			setupCommon(c, path, func() *Common { return &st().Common })
			c.SubscribeEnum(path+"/Styl", "FStl", func(v string) { st().Position = v })
			c.SubscribeEnum(path+"/PntT", "FrFl", func(v string) { st().Paint = v })
			c.SubscribeUnitFloat(path+"/Sz  ", descriptor.UnitPixels, func(v float64) { st().Size = v })
			c.SubscribeColor(path+"/Clr ", func(v descriptor.Color) { st().Color = v })
			// Gradient and pattern content share the stroke's level; 'Angl',
			// 'Scl ' and 'Algn' therefore feed both.
			fill.SetupPatternCatcher(path, c, &st().Pattern)
			fill.SetupGradientCatcher(path, c, &st().Gradient)
			c.SubscribeUnitFloat(path+"/Angl", descriptor.UnitAngle, func(v float64) { st().Gradient.Angle, st().Pattern.Angle = v, v })
			c.SubscribeUnitFloat(path+"/Scl ", descriptor.UnitPercent, func(v float64) { st().Gradient.Scale, st().Pattern.Scale = v, v })
			c.SubscribeBoolean(path+"/Algn", func(v bool) { st().Gradient.Align, st().Pattern.Align = v, v })
		},
		replace: func(dst, src *Style) { dst.Strokes = src.Strokes },
	},
}

func defaultCommon(op compat.CompositeOp, opacity float64) Common {
	return Common{Enabled: true, Blend: op, Opacity: opacity}
}

func subscribeBlend(c *descriptor.Catcher, path string, fn func(compat.CompositeOp)) {
	c.SubscribeEnum(path, "BlnM", func(v string) {
		if op, ok := compat.BlendModeFromDescriptor(v); ok {
			fn(op)
		}
	})
}

func setupCommon(c *descriptor.Catcher, path string, common func() *Common) {
	c.SubscribeBoolean(path+"/enab", func(v bool) { common().Enabled = v })
	subscribeBlend(c, path+"/Md  ", func(op compat.CompositeOp) { common().Blend = op })
	c.SubscribeUnitFloat(path+"/Opct", descriptor.UnitPercent, func(v float64) { common().Opacity = v })
}

func setupShadow(c *descriptor.Catcher, path string, sh func() *Shadow) {
	setupCommon(c, path, func() *Common { return &sh().Common })
	c.SubscribeColor(path+"/Clr ", func(v descriptor.Color) { sh().Color = v })
	c.SubscribeBoolean(path+"/uglg", func(v bool) { sh().UseGlobalLight = v })
	c.SubscribeUnitFloat(path+"/lagl", descriptor.UnitAngle, func(v float64) { sh().Angle = v })
	c.SubscribeUnitFloat(path+"/Dstn", descriptor.UnitPixels, func(v float64) { sh().Distance = v })
	c.SubscribeUnitFloat(path+"/Ckmt", descriptor.UnitPixels, func(v float64) { sh().Spread = v })
	c.SubscribeUnitFloat(path+"/blur", descriptor.UnitPixels, func(v float64) { sh().Size = v })
	c.SubscribeUnitFloat(path+"/Nose", descriptor.UnitPercent, func(v float64) { sh().Noise = v })
	c.SubscribeBoolean(path+"/AntA", func(v bool) { sh().AntiAlias = v })
	subscribeContour(c, path+"/TrnS", func() *Contour { return &sh().Contour })
}

func setupGlow(c *descriptor.Catcher, path string, g func() *Glow) {
	setupCommon(c, path, func() *Common { return &g().Common })
	c.SubscribeColor(path+"/Clr ", func(v descriptor.Color) { g().Color = v })
	c.SubscribeGradient(path+"/Grad", func(v descriptor.Gradient) { g().Gradient = &v })
	c.SubscribeEnum(path+"/GlwT", "BETE", func(v string) { g().Technique = v })
	c.SubscribeUnitFloat(path+"/Ckmt", descriptor.UnitPixels, func(v float64) { g().Spread = v })
	c.SubscribeUnitFloat(path+"/blur", descriptor.UnitPixels, func(v float64) { g().Size = v })
	c.SubscribeUnitFloat(path+"/Nose", descriptor.UnitPercent, func(v float64) { g().Noise = v })
	c.SubscribeUnitFloat(path+"/ShdN", descriptor.UnitPercent, func(v float64) { g().Jitter = v })
	c.SubscribeUnitFloat(path+"/Inpr", descriptor.UnitPercent, func(v float64) { g().Range = v })
	c.SubscribeBoolean(path+"/AntA", func(v bool) { g().AntiAlias = v })
	subscribeContour(c, path+"/TrnS", func() *Contour { return &g().Contour })
}

func subscribeContour(c *descriptor.Catcher, path string, ct func() *Contour) {
	c.SubscribeText(path+"/Nm  ", func(v string) { ct().Name = v })
	c.SubscribePoint(path+"/Crv /CrPt", func(p coords.Point) { ct().Points = append(ct().Points, p) })
}
