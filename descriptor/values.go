package descriptor

import (
	"fmt"
	"math"

	"github.com/wudi/psdkit/coords"
)

type ColorModel string

const (
	ColorRGB  ColorModel = "RGB"
	ColorHSB  ColorModel = "HSB"
	ColorCMYK ColorModel = "CMYK"
	ColorGray ColorModel = "Gray"
	ColorLab  ColorModel = "Lab"
)

// Color is a colour as recorded in a descriptor. RGB components are 0..255,
// HSB hue is in degrees with saturation and brightness in percent, CMYK and
// Gray are percentages, Lab uses L 0..100 and a/b -128..127.
type Color struct {
	Model ColorModel
	V     [4]float64
}

var colorClasses = map[string]ColorModel{
	"RGBC": ColorRGB,
	"HSBC": ColorHSB,
	"CMYC": ColorCMYK,
	"Grsc": ColorGray,
	"LbCl": ColorLab,
}

func colorFrom(d *Descriptor) (Color, bool) {
	model, ok := colorClasses[d.ClassID]
	if !ok {
		return Color{}, false
	}
	c := Color{Model: model}
	get := func(i int, keys ...string) {
		for _, k := range keys {
			if v, ok := d.Float(k); ok {
				c.V[i] = v
				return
			}
		}
	}
	switch model {
	case ColorRGB:
		if _, ok := d.Get("redFloat"); ok {
			get(0, "redFloat")
			get(1, "greenFloat")
			get(2, "blueFloat")
			for i := 0; i < 3; i++ {
				c.V[i] *= 255
			}
			break
		}
		get(0, "Rd  ")
		get(1, "Grn ")
		get(2, "Bl  ")
	case ColorHSB:
		get(0, "H   ")
		get(1, "Strt")
		get(2, "Brgh")
	case ColorCMYK:
		get(0, "Cyn ")
		get(1, "Mgnt")
		get(2, "Ylw ")
		get(3, "Blck")
	case ColorGray:
		get(0, "Gry ")
	case ColorLab:
		get(0, "Lmnc")
		get(1, "A   ")
		get(2, "B   ")
	}
	return c, true
}

// RGB converts the colour to sRGB components in 0..1.
func (c Color) RGB() (r, g, b float64) {
	switch c.Model {
	case ColorRGB:
		r, g, b = c.V[0]/255, c.V[1]/255, c.V[2]/255
	case ColorHSB:
		r, g, b = hsbToRGB(c.V[0], c.V[1]/100, c.V[2]/100)
	case ColorCMYK:
		k := 1 - c.V[3]/100
		r = (1 - c.V[0]/100) * k
		g = (1 - c.V[1]/100) * k
		b = (1 - c.V[2]/100) * k
	case ColorGray:
		v := 1 - c.V[0]/100
		r, g, b = v, v, v
	case ColorLab:
		r, g, b = labToRGB(c.V[0], c.V[1], c.V[2])
	}
	return clamp01(r), clamp01(g), clamp01(b)
}

// Hex formats the colour as #rrggbb.
func (c Color) Hex() string {
	r, g, b := c.RGB()
	return fmt.Sprintf("#%02x%02x%02x", to8(r), to8(g), to8(b))
}

func to8(v float64) uint8 { return uint8(math.Round(v * 255)) }

func clamp01(v float64) float64 { return math.Max(0, math.Min(1, v)) }

func hsbToRGB(h, s, v float64) (float64, float64, float64) {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c
	var r, g, b float64
	switch {
	case h < 60:
		r, g = c, x
	case h < 120:
		r, g = x, c
	case h < 180:
		g, b = c, x
	case h < 240:
		g, b = x, c
	case h < 300:
		r, b = x, c
	default:
		r, b = c, x
	}
	return r + m, g + m, b + m
}

// labToRGB converts D50 Lab to sRGB through XYZ with Bradford adaptation.
func labToRGB(l, a, bb float64) (float64, float64, float64) {
	fy := (l + 16) / 116
	fx := fy + a/500
	fz := fy - bb/200
	inv := func(t float64) float64 {
		if t*t*t > 0.008856 {
			return t * t * t
		}
		return (t - 16.0/116) / 7.787
	}
	x, y, z := 0.9642*inv(fx), inv(fy), 0.8249*inv(fz)
	// D50 -> D65
	x, y, z = 0.9555766*x-0.0230393*y+0.0631636*z,
		-0.0282895*x+1.0099416*y+0.0210077*z,
		0.0122982*x-0.0204830*y+1.3299098*z
	r := 3.2404542*x - 1.5371385*y - 0.4985314*z
	g := -0.9692660*x + 1.8760108*y + 0.0415560*z
	b := 0.0556434*x - 0.2040259*y + 1.0572252*z
	return gamma(r), gamma(g), gamma(b)
}

func gamma(v float64) float64 {
	if v <= 0.0031308 {
		return 12.92 * v
	}
	return 1.055*math.Pow(v, 1/2.4) - 0.055
}

func pointFrom(d *Descriptor) coords.Point {
	x, _ := d.Float("Hrzn")
	y, _ := d.Float("Vrtc")
	return coords.Point{X: x, Y: y}
}

// ColorStop is a gradient colour stop. Location is 0..4096, Midpoint 0..100.
type ColorStop struct {
	Color    Color
	Kind     string // UsrS, FrgC or BckC
	Location int
	Midpoint int
}

type OpacityStop struct {
	Opacity  float64 // percent
	Location int
	Midpoint int
}

// Gradient is a 'Grdn' object.
type Gradient struct {
	Name       string
	Form       string // CstS or ClNs
	Smoothness float64
	Colors     []ColorStop
	Opacities  []OpacityStop
}

func gradientFrom(d *Descriptor) Gradient {
	g := Gradient{Name: d.Text("Nm  ")}
	if v, ok := d.Get("GrdF"); ok {
		if e, ok := v.(Enum); ok {
			g.Form = e.Value
		}
	}
	g.Smoothness, _ = d.Float("Intr")
	for _, it := range d.List("Clrs") {
		stop, ok := it.(*Descriptor)
		if !ok {
			continue
		}
		cs := ColorStop{Kind: "UsrS"}
		if c := stop.Object("Clr "); c != nil {
			cs.Color, _ = colorFrom(c)
		}
		if v, ok := stop.Get("Type"); ok {
			if e, ok := v.(Enum); ok {
				cs.Kind = e.Value
			}
		}
		loc, _ := stop.Float("Lctn")
		mid, _ := stop.Float("Mdpn")
		cs.Location, cs.Midpoint = int(loc), int(mid)
		g.Colors = append(g.Colors, cs)
	}
	for _, it := range d.List("Trns") {
		stop, ok := it.(*Descriptor)
		if !ok {
			continue
		}
		op, _ := stop.Float("Opct")
		loc, _ := stop.Float("Lctn")
		mid, _ := stop.Float("Mdpn")
		g.Opacities = append(g.Opacities, OpacityStop{Opacity: op, Location: int(loc), Midpoint: int(mid)})
	}
	return g
}

func transformFrom(d *Descriptor) coords.Matrix {
	var m coords.Matrix
	for i, k := range []string{"xx", "xy", "yx", "yy", "tx", "ty"} {
		m[i], _ = d.Float(k)
	}
	return m
}

// rectFrom reads a unitRect or classFloatRect object, returning the unit
// of its first edge (empty for plain doubles).
func rectFrom(d *Descriptor) (coords.Rect, string) {
	var r coords.Rect
	unit := ""
	read := func(key string, dst *float64) {
		v, ok := d.Get(key)
		if !ok {
			return
		}
		switch n := v.(type) {
		case UnitFloat:
			*dst = n.Value
			if unit == "" {
				unit = n.Unit
			}
		case float64:
			*dst = n
		}
	}
	read("Left", &r.Left)
	read("Top ", &r.Top)
	read("Rght", &r.Right)
	read("Btom", &r.Bottom)
	return r, unit
}
