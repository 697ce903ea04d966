// Package vector decodes vector mask path records ('vmsk', 'vsms') and
// turns them into resolution independent outlines.
//
// Path coordinates are stored relative to the document size, so a path
// scaled by the document's physical size (points) covers the same area
// regardless of the pixel resolution it was authored at.
package vector

import (
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	xvector "golang.org/x/image/vector"

	"github.com/wudi/psdkit/compat"
	"github.com/wudi/psdkit/coords"
	"github.com/wudi/psdkit/stream"
)

// Path record selectors.
const (
	recClosedLength   = 0
	recClosedLinked   = 1
	recClosedUnlinked = 2
	recOpenLength     = 3
	recOpenLinked     = 4
	recOpenUnlinked   = 5
	recFillRule       = 6
	recClipboard      = 7
	recInitialFill    = 8

	recordSize = 26
)

// Knot is one bezier anchor with its incoming and outgoing control points.
type Knot struct {
	In     coords.Point
	Anchor coords.Point
	Out    coords.Point
	Linked bool
}

type SubPath struct {
	Knots  []Knot
	Closed bool
}

// Path is a list of sub-paths. Coordinates are fractions of the document
// size unless the path was produced by Scale.
type Path struct {
	SubPaths            []SubPath
	InitialFill         bool
	Clipboard           coords.Rect
	ClipboardResolution float64
}

// Mask is a decoded vector mask block.
type Mask struct {
	Version uint32
	Invert  bool
	NotLink bool
	Disable bool
	Path    Path
}

// Empty reports whether the path has no drawable knots.
func (p Path) Empty() bool {
	for _, sp := range p.SubPaths {
		if len(sp.Knots) > 0 {
			return false
		}
	}
	return true
}

// Parse decodes a 'vmsk' or 'vsms' payload.
func Parse(payload []byte) (*Mask, error) {
	r := stream.FromBytes(payload)
	version, err := r.U32()
	if err != nil {
		return nil, errors.Wrap(err, "vector mask header")
	}
	flags, err := r.U32()
	if err != nil {
		return nil, errors.Wrap(err, "vector mask header")
	}
	m := &Mask{
		Version: version,
		Invert:  flags&1 != 0,
		NotLink: flags&2 != 0,
		Disable: flags&4 != 0,
	}
	if err := readPath(r, &m.Path); err != nil {
		return nil, err
	}
	return m, nil
}

// ReadPath decodes a sequence of 26-byte path records until r is exhausted.
// A trailing partial record is ignored.
func ReadPath(r *stream.Reader) (Path, error) {
	var p Path
	err := readPath(r, &p)
	return p, err
}

func readPath(r *stream.Reader, p *Path) error {
	var (
		cur       *SubPath
		remaining int
	)
	for r.Remaining() >= recordSize {
		start := r.Position()
		sel, err := r.U16()
		if err != nil {
			return err
		}
		switch sel {
		case recClosedLength, recOpenLength:
			n, err := r.U16()
			if err != nil {
				return err
			}
			p.SubPaths = append(p.SubPaths, SubPath{Closed: sel == recClosedLength})
			cur = &p.SubPaths[len(p.SubPaths)-1]
			remaining = int(n)
		case recClosedLinked, recClosedUnlinked, recOpenLinked, recOpenUnlinked:
			k, err := readKnot(r)
			if err != nil {
				return err
			}
			k.Linked = sel == recClosedLinked || sel == recOpenLinked
			if cur == nil || remaining == 0 {
				return errors.Errorf("vector mask: knot record at offset %d outside a sub-path", start)
			}
			cur.Knots = append(cur.Knots, k)
			remaining--
		case recClipboard:
			var v [5]float64
			for i := range v {
				if v[i], err = fixed824(r); err != nil {
					return err
				}
			}
			p.Clipboard = coords.Rect{Top: v[0], Left: v[1], Bottom: v[2], Right: v[3]}
			p.ClipboardResolution = v[4]
		case recInitialFill:
			f, err := r.U16()
			if err != nil {
				return err
			}
			p.InitialFill = f != 0
		case recFillRule:
		default:
			return errors.Errorf("vector mask: unknown record selector %d at offset %d", sel, start)
		}
		if err := r.Seek(start + recordSize); err != nil {
			return err
		}
	}
	return nil
}

// fixed824 reads a signed 8.24 fixed point number.
func fixed824(r *stream.Reader) (float64, error) {
	v, err := r.I32()
	return float64(v) / (1 << 24), err
}

// readPoint reads a vertical then horizontal coordinate.
func readPoint(r *stream.Reader) (coords.Point, error) {
	y, err := fixed824(r)
	if err != nil {
		return coords.Point{}, err
	}
	x, err := fixed824(r)
	return coords.Point{X: x, Y: y}, err
}

func readKnot(r *stream.Reader) (Knot, error) {
	var k Knot
	var err error
	if k.In, err = readPoint(r); err != nil {
		return k, err
	}
	if k.Anchor, err = readPoint(r); err != nil {
		return k, err
	}
	k.Out, err = readPoint(r)
	return k, err
}

// Transform applies m to every point of the path.
func (p Path) Transform(m coords.Matrix) Path {
	out := p
	out.SubPaths = make([]SubPath, len(p.SubPaths))
	for i, sp := range p.SubPaths {
		knots := make([]Knot, len(sp.Knots))
		for j, k := range sp.Knots {
			knots[j] = Knot{
				In:     m.Transform(k.In),
				Anchor: m.Transform(k.Anchor),
				Out:    m.Transform(k.Out),
				Linked: k.Linked,
			}
		}
		out.SubPaths[i] = SubPath{Knots: knots, Closed: sp.Closed}
	}
	return out
}

// Scale maps document-relative coordinates onto a w by h box.
func (p Path) Scale(w, h float64) Path { return p.Transform(coords.Scale(w, h)) }

// Physical maps the path onto the document's physical size in points.
func (p Path) Physical(widthPx, heightPx int, ppi float64) Path {
	return p.Scale(compat.ToPoints(float64(widthPx), ppi), compat.ToPoints(float64(heightPx), ppi))
}

// Bounds returns the bounding box of the anchors and control points.
func (p Path) Bounds() coords.Rect {
	var pts []coords.Point
	for _, sp := range p.SubPaths {
		for _, k := range sp.Knots {
			pts = append(pts, k.In, k.Anchor, k.Out)
		}
	}
	return coords.Bounds(pts)
}

// segments calls fn for every cubic segment of sp, closing the loop for
// closed sub-paths.
func (sp SubPath) segments(fn func(from, c1, c2, to coords.Point)) {
	n := len(sp.Knots)
	last := n - 1
	if sp.Closed {
		last = n
	}
	for i := 0; i < last; i++ {
		a, b := sp.Knots[i], sp.Knots[(i+1)%n]
		fn(a.Anchor, a.Out, b.In, b.Anchor)
	}
}

// SVG renders the path as SVG path data.
func (p Path) SVG() string {
	var sb strings.Builder
	num := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	pt := func(q coords.Point) string { return num(q.X) + " " + num(q.Y) }
	for _, sp := range p.SubPaths {
		if len(sp.Knots) == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString("M" + pt(sp.Knots[0].Anchor))
		sp.segments(func(_, c1, c2, to coords.Point) {
			fmt.Fprintf(&sb, " C%s %s %s", pt(c1), pt(c2), pt(to))
		})
		if sp.Closed {
			sb.WriteString(" Z")
		}
	}
	return sb.String()
}

// Rasterize renders the path into an alpha coverage mask of w by h pixels.
// The path is first mapped through m, which takes path coordinates to
// pixels. Inverted masks cover everything outside the path.
func Rasterize(p Path, m coords.Matrix, w, h int, invert bool) *image.Alpha {
	dst := image.NewAlpha(image.Rect(0, 0, w, h))
	if w <= 0 || h <= 0 {
		return dst
	}
	z := xvector.NewRasterizer(w, h)
	f := func(v float64) float32 { return float32(v) }
	for _, sp := range p.Transform(m).SubPaths {
		if len(sp.Knots) == 0 {
			continue
		}
		start := sp.Knots[0].Anchor
		z.MoveTo(f(start.X), f(start.Y))
		sp.segments(func(_, c1, c2, to coords.Point) {
			z.CubeTo(f(c1.X), f(c1.Y), f(c2.X), f(c2.Y), f(to.X), f(to.Y))
		})
		z.ClosePath()
	}
	z.Draw(dst, dst.Bounds(), image.Opaque, image.Point{})
	if invert {
		for i, v := range dst.Pix {
			dst.Pix[i] = math.MaxUint8 - v
		}
	}
	return dst
}

// Coverage rasterises a document-relative path at the document's pixel size.
func (m *Mask) Coverage(width, height int) *image.Alpha {
	return Rasterize(m.Path, coords.Scale(float64(width), float64(height)), width, height, m.Invert)
}
