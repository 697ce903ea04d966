package vector

import (
	"math"
	"strings"
	"testing"

	"github.com/wudi/psdkit/builder"
	"github.com/wudi/psdkit/coords"
	"github.com/wudi/psdkit/fill"
)

func square() []byte {
	return builder.VectorMask(0, true, [2]float64{0.25, 0.25}, [2]float64{0.75, 0.25}, [2]float64{0.75, 0.75}, [2]float64{0.25, 0.75})
}

func TestParse(t *testing.T) {
	m, err := Parse(square())
	if err != nil {
		t.Fatal(err)
	}
	if m.Version != 3 || m.Invert || len(m.Path.SubPaths) != 1 {
		t.Fatalf("mask = %+v", m)
	}
	sp := m.Path.SubPaths[0]
	if !sp.Closed || len(sp.Knots) != 4 || sp.Knots[0].Linked {
		t.Fatalf("sub-path = %+v", sp)
	}
	if sp.Knots[2].Anchor != (coords.Point{X: 0.75, Y: 0.75}) {
		t.Fatalf("third knot = %+v", sp.Knots[2])
	}
	if m.Path.Empty() {
		t.Fatalf("path reported empty")
	}
}

func TestParseFlagsAndErrors(t *testing.T) {
	m, err := Parse(builder.VectorMask(1|4, false, [2]float64{0, 0}))
	if err != nil {
		t.Fatal(err)
	}
	if !m.Invert || !m.Disable || m.NotLink || m.Path.SubPaths[0].Closed {
		t.Fatalf("flags = %+v", m)
	}
	if _, err := Parse([]byte{0, 0, 0, 3}); err == nil {
		t.Fatalf("expected truncation error")
	}

	var b builder.Buffer
	b.U32(3)
	b.U32(0)
	b.U16(2) // knot with no sub-path length record
	b.Write(make([]byte, 24))
	if _, err := Parse(b.Bytes()); err == nil {
		t.Fatalf("expected orphan knot error")
	}
}

func TestPhysicalScaleIsResolutionIndependent(t *testing.T) {
	m, err := Parse(square())
	if err != nil {
		t.Fatal(err)
	}
	// One inch square at 72 and at 300 pixels per inch.
	want := coords.Rect{Left: 18, Top: 18, Right: 54, Bottom: 54}
	for _, ppi := range []int{72, 300} {
		got := m.Path.Physical(ppi, ppi, float64(ppi)).Bounds()
		if !near(got, want) {
			t.Fatalf("%d ppi: bounds = %+v, want %+v", ppi, got, want)
		}
	}
}

func near(a, b coords.Rect) bool {
	const eps = 1e-9
	return math.Abs(a.Left-b.Left) < eps && math.Abs(a.Top-b.Top) < eps &&
		math.Abs(a.Right-b.Right) < eps && math.Abs(a.Bottom-b.Bottom) < eps
}

func TestSVG(t *testing.T) {
	m, err := Parse(builder.VectorMask(0, true, [2]float64{0, 0}, [2]float64{1, 0}, [2]float64{1, 1}))
	if err != nil {
		t.Fatal(err)
	}
	got := m.Path.Scale(10, 20).SVG()
	want := "M0 0 C0 0 10 0 10 0 C10 0 10 20 10 20 C10 20 0 0 0 0 Z"
	if got != want {
		t.Fatalf("svg = %q\nwant  %q", got, want)
	}
	if strings.Contains(Path{}.SVG(), "M") {
		t.Fatalf("empty path produced data")
	}
}

func TestCoverage(t *testing.T) {
	m, err := Parse(square())
	if err != nil {
		t.Fatal(err)
	}
	a := m.Coverage(8, 8)
	if a.AlphaAt(4, 4).A != 0xff || a.AlphaAt(0, 0).A != 0 {
		t.Fatalf("coverage inside=%d outside=%d", a.AlphaAt(4, 4).A, a.AlphaAt(0, 0).A)
	}
	m.Invert = true
	a = m.Coverage(8, 8)
	if a.AlphaAt(4, 4).A != 0 || a.AlphaAt(0, 0).A != 0xff {
		t.Fatalf("inverted coverage inside=%d outside=%d", a.AlphaAt(4, 4).A, a.AlphaAt(0, 0).A)
	}
}

func TestParametricRectangle(t *testing.T) {
	o := fill.NewOrigination()
	o.Type = fill.OriginRectangle
	o.Resolution = 144
	o.ShapeBBox = coords.Rect{Left: 0, Top: 0, Right: 200, Bottom: 100}
	p, ok := NewParametric(o)
	if !ok {
		t.Fatalf("rectangle not parametric")
	}
	if p.Shape != "rectangle" || p.Width != 100 || p.Height != 50 {
		t.Fatalf("shape = %+v", p)
	}
	if p.Center != (coords.Point{X: 50, Y: 25}) {
		t.Fatalf("center = %+v", p.Center)
	}
}

func TestParametricStar(t *testing.T) {
	o := fill.NewOrigination()
	o.Type = fill.OriginStar
	o.Sides = 5
	o.IsStar = true
	o.StarRatio = 50
	o.ShapeBBox = coords.Rect{Right: 100, Bottom: 100}
	p, ok := NewParametric(o)
	if !ok {
		t.Fatalf("star not parametric")
	}
	if p.Corners != 5 || p.Convex || p.TipRadius <= 0 || p.BaseRadius <= 0 || p.BaseRadius >= p.TipRadius {
		t.Fatalf("star = %+v", p)
	}
	want := 100 / (math.Cos(math.Pi/5)*100 + 100) * 100
	if math.Abs(p.TipRadius-want) > 1e-9 {
		t.Fatalf("tip radius = %v, want %v", p.TipRadius, want)
	}

	o.Sides = 0
	if _, ok := NewParametric(o); ok {
		t.Fatalf("star without sides accepted")
	}
	o.Type = fill.OriginCustom
	if _, ok := NewParametric(o); ok {
		t.Fatalf("custom shape accepted")
	}
}
