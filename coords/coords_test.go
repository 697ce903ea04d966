package coords

import (
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestMultiplyOrder(t *testing.T) {
	m := Scale(2, 2).Multiply(Translate(10, 0))
	p := m.Transform(Point{1, 1})
	if !near(p.X, 12) || !near(p.Y, 2) {
		t.Fatalf("scale then translate: %+v", p)
	}
}

func TestInverse(t *testing.T) {
	m := Rotate(0.3).Multiply(Scale(2, 3)).Multiply(Translate(5, -7))
	inv, err := m.Inverse()
	if err != nil {
		t.Fatal(err)
	}
	p := inv.Transform(m.Transform(Point{4, 9}))
	if !near(p.X, 4) || !near(p.Y, 9) {
		t.Fatalf("round trip = %+v", p)
	}
	if _, err := Scale(0, 1).Inverse(); err != ErrSingular {
		t.Fatalf("expected singular matrix, got %v", err)
	}
}

func TestRectHelpers(t *testing.T) {
	r := Bounds([]Point{{3, 4}, {-1, 8}, {2, 0}})
	if r != (Rect{-1, 0, 3, 8}) {
		t.Fatalf("bounds = %+v", r)
	}
	if u := (Rect{}).Union(r); u != r {
		t.Fatalf("union with empty = %+v", u)
	}
	if a := Angle(Point{0, 0}, Point{0, -1}); !near(a, 90) {
		t.Fatalf("angle = %v", a)
	}
}
