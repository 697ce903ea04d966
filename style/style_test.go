package style

import (
	"testing"

	"github.com/wudi/psdkit/builder"
	"github.com/wudi/psdkit/compat"
	"github.com/wudi/psdkit/coords"
	"github.com/wudi/psdkit/descriptor"
	"github.com/wudi/psdkit/pattern"
)

func effectsBlob(d *builder.Desc) []byte {
	var b builder.Buffer
	b.U32(0)
	b.Write(d.Versioned())
	return b.Bytes()
}

func dropShadow(distance float64) *builder.Desc {
	return builder.Object("DrSh").
		Bool("enab", true).
		Enum("Md  ", "BlnM", "Mltp").
		Obj("Clr ", builder.RGB(255, 0, 0)).
		UnitFloat("Opct", descriptor.UnitPercent, 60).
		Bool("uglg", false).
		UnitFloat("lagl", descriptor.UnitAngle, 90).
		UnitFloat("Dstn", descriptor.UnitPixels, distance).
		UnitFloat("Ckmt", descriptor.UnitPixels, 2).
		UnitFloat("blur", descriptor.UnitPixels, 7).
		Bool("layerConceals", true).
		Obj("TrnS", builder.Object("ShpC").
			Text("Nm  ", "Linear").
			List("Crv ",
				builder.Object("CrPt").Double("Hrzn", 0).Double("Vrtc", 0).Value(),
				builder.Object("CrPt").Double("Hrzn", 255).Double("Vrtc", 255).Value()))
}

func TestParseEffects(t *testing.T) {
	payload := effectsBlob(builder.Object("null").
		UnitFloat("Scl ", descriptor.UnitPercent, 50).
		Bool("masterFXSwitch", true).
		Obj("DrSh", dropShadow(12)).
		Obj("FrFX", builder.Object("FrFX").
			Bool("enab", true).
			Enum("Styl", "FStl", "InsF").
			Enum("PntT", "FrFl", "Ptrn").
			UnitFloat("Sz  ", descriptor.UnitPixels, 4).
			UnitFloat("Scl ", descriptor.UnitPercent, 25).
			Obj("Ptrn", builder.Object("Ptrn").Text("Nm  ", "Dots").Text("Idnt", "dots-1"))).
		Obj("ebbl", builder.Object("ebbl").
			Bool("enab", false).
			Enum("bvlS", "BESl", "Embs").
			UnitFloat("Lald", descriptor.UnitAngle, 45)))

	s, err := Parse(payload, descriptor.Config{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if s.Scale != 50 || !s.Enabled {
		t.Fatalf("scale %v enabled %v", s.Scale, s.Enabled)
	}
	if len(s.DropShadows) != 1 || len(s.Strokes) != 1 || len(s.Bevels) != 1 {
		t.Fatalf("effects = %+v", s)
	}
	if len(s.InnerShadows)+len(s.OuterGlows)+len(s.Satins)+len(s.ColorOverlays) != 0 {
		t.Fatalf("absent effects were created: %+v", s)
	}

	sh := s.DropShadows[0]
	if !sh.Enabled || sh.Blend != compat.CompositeMultiply || sh.Opacity != 60 || sh.Color.Hex() != "#ff0000" {
		t.Fatalf("shadow common = %+v", sh)
	}
	if sh.Angle != 90 || sh.Distance != 12 || sh.Spread != 2 || sh.Size != 7 || sh.UseGlobalLight || !sh.KnocksOut {
		t.Fatalf("shadow geometry = %+v", sh)
	}
	if sh.Contour.Name != "Linear" || len(sh.Contour.Points) != 2 || sh.Contour.Points[1] != (coords.Point{X: 255, Y: 255}) {
		t.Fatalf("contour = %+v", sh.Contour)
	}

	st := s.Strokes[0]
	if st.Position != "InsF" || st.Paint != "Ptrn" || st.Size != 4 || st.Pattern.Scale != 25 || st.Pattern.ID != "dots-1" {
		t.Fatalf("stroke = %+v", st)
	}

	bv := s.Bevels[0]
	if bv.Enabled || bv.Style != "Embs" || bv.Altitude != 45 || bv.Depth != 100 {
		t.Fatalf("bevel = %+v", bv)
	}
	if len(s.Ignored) != 0 {
		t.Fatalf("ignored = %v", s.Ignored)
	}
}

func TestMultiEffectsReplaceSingle(t *testing.T) {
	payload := effectsBlob(builder.Object("null").
		Obj("DrSh", dropShadow(1)).
		List("dropShadowMulti", dropShadow(3).Value(), dropShadow(4).Value()))
	s, err := Parse(payload, descriptor.Config{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.DropShadows) != 2 || s.DropShadows[0].Distance != 3 || s.DropShadows[1].Distance != 4 {
		t.Fatalf("drop shadows = %+v", s.DropShadows)
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	payload := effectsBlob(builder.Object("null").Obj("DrSh", dropShadow(5)))
	s, err := Parse(payload, descriptor.Config{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	c := s.Clone()
	c.DropShadows[0].Distance = 99
	c.DropShadows[0].Contour.Points[0].X = 99
	if s.DropShadows[0].Distance != 5 || s.DropShadows[0].Contour.Points[0].X != 0 {
		t.Fatalf("clone aliases the original: %+v", s.DropShadows[0])
	}
	if (*Style)(nil).Clone() != nil {
		t.Fatalf("nil clone")
	}
}

func TestUnresolvedPatterns(t *testing.T) {
	payload := effectsBlob(builder.Object("null").
		Obj("patternFill", builder.Object("patternFill").
			Bool("enab", true).
			Obj("Ptrn", builder.Object("Ptrn").Text("Nm  ", "Stripes").Text("Idnt", "str-1"))))
	s, err := Parse(payload, descriptor.Config{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	reg := pattern.NewRegistry()
	if w := s.Unresolved(reg); len(w) != 1 {
		t.Fatalf("warnings = %v", w)
	}
	reg.Add(&pattern.Pattern{ID: "str-1", Name: "Stripes"})
	if w := s.Unresolved(reg); len(w) != 0 {
		t.Fatalf("warnings = %v", w)
	}
}

func TestParseErrors(t *testing.T) {
	var b builder.Buffer
	b.U32(1)
	b.Write(builder.Object("null").Versioned())
	if _, err := Parse(b.Bytes(), descriptor.Config{}, nil); err == nil {
		t.Fatalf("expected version error")
	}
	if _, err := Parse([]byte{0, 0}, descriptor.Config{}, nil); err == nil {
		t.Fatalf("expected truncation error")
	}
}
