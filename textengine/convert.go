package textengine

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/pkg/errors"
	"golang.org/x/net/html"

	"github.com/wudi/psdkit/coords"
	"github.com/wudi/psdkit/cos"
	"github.com/wudi/psdkit/fonts"
)

// ErrConversion is returned when the engine data lacks the structures needed
// to produce markup. Result.Errors holds the details.
var ErrConversion = errors.New("text engine data cannot be converted")

// Text types stored by the engine.
const (
	PointText = 0
	BoxText   = 1
	PathText  = 2
)

type Options struct {
	// Fonts resolves PostScript names. Nil uses a set holding only the
	// built-in fallback face.
	Fonts *fonts.FontSet
	// Resolution in pixels per inch. Sizes in the markup are in points.
	Resolution float64
	// Global is the document's 'Txt2' engine data after ExpandKeys. It is
	// preferred over the per-layer engine data when it holds the layer's
	// text object.
	Global *cos.Dict
	Engine cos.Config
}

// Result is the markup produced for one text layer.
type Result struct {
	Text string
	// Markup is a <text> element, Defs a <defs> element holding the shapes
	// the markup refers to.
	Markup string
	Defs   string

	Type       int
	Horizontal bool
	// Offset is the anchor of point text in points. When OffsetByAscent is
	// set the first baseline must be moved down by the ascent so the text
	// top meets the anchor.
	Offset         coords.Point
	OffsetByAscent bool
	FontSize       float64 // points, first style run
	Ascent         float64 // points, first style run

	Warnings []string
	Errors   []string
}

// Convert turns the engine data of tt into SVG text markup.
func Convert(tt *TypeTool, opts Options) (*Result, error) {
	if opts.Fonts == nil {
		opts.Fonts = fonts.NewFontSet()
	}
	if opts.Resolution <= 0 {
		opts.Resolution = 72
	}
	res := &Result{Horizontal: tt.Horizontal}
	fail := func(msg string) (*Result, error) {
		res.Errors = append(res.Errors, msg)
		return res, errors.Wrap(ErrConversion, msg)
	}

	root, err := cos.Parse(tt.EngineData, opts.Engine)
	if err != nil {
		return res, errors.Wrap(err, "engine data")
	}

	fallback := opts.Global == nil
	var object *cos.Dict
	if !fallback && tt.TextIndex >= 0 {
		object = opts.Global.Dict("DocumentObjects", "TextObjects", strconv.Itoa(tt.TextIndex))
	}
	if object.Len() == 0 {
		object = root.Dict("EngineDict")
		fallback = true
	}
	if object.Len() == 0 {
		return fail("No engine dict found in engine data")
	}

	var resources *cos.Dict
	if fallback {
		resources = root.Dict("DocumentResources")
		if resources == nil {
			resources = root.Dict("ResourceDict")
		}
	} else {
		resources = opts.Global.Dict("DocumentResources")
	}
	if resources.Len() == 0 {
		return fail("No resource dict found in engine data")
	}

	css := &cssWriter{scale: 72 / opts.Resolution}
	var fontList []cos.Value
	if fallback {
		fontList = resources.Array("FontSet")
	} else {
		fontList = resources.Array("FontSet", "Resources")
	}
	for _, v := range fontList {
		d, _ := v.(*cos.Dict)
		if !fallback {
			d = d.Dict("Resource", "Identifier")
		}
		name, _ := d.String("Name")
		face, ok := opts.Fonts.Resolve(name)
		info := face.Info
		if !ok {
			info.Families = []string{"sans-serif"}
			res.Errors = append(res.Errors, fmt.Sprintf("Font %s not found, substituting sans-serif", name))
		}
		css.fonts = append(css.fonts, fontEntry{info: info})
	}

	frame := readFrame(object, resources, fallback, css.scale, res)
	res.Type = frame.textType

	var editor *cos.Dict
	if fallback {
		editor = object.Dict("Editor")
	} else {
		editor = object.Dict("Model")
	}
	if editor.Len() == 0 {
		return fail("No editor dict found in engine data")
	}
	text, _ := editor.String("Text")
	text = strings.NewReplacer("\r", "\n", "\x03", "\n").Replace(text)
	res.Text = text

	textEl := element("text")
	var antiAlias int64
	if fallback {
		antiAlias, _ = object.Int("AntiAlias")
	} else {
		antiAlias, _ = object.Int("StorySheet", "AntiAlias")
	}
	switch antiAlias {
	case 3:
		setAttr(textEl, "text-rendering", "auto")
	case 0:
		setAttr(textEl, "text-rendering", "OptimizeSpeed")
	}

	style := "writing-mode: horizontal-tb;"
	if !res.Horizontal {
		style = "writing-mode: vertical-rl;"
	}
	style += " white-space: pre-wrap;"

	var paragraphRun *cos.Dict
	if fallback {
		paragraphRun = object.Dict("ParagraphRun")
	} else {
		paragraphRun = editor.Dict("ParagraphRun")
	}
	var baseFont sheetFont
	if paragraphRun.Len() > 0 {
		var sheet *cos.Dict
		if fallback {
			sheet = paragraphRun.Dict("RunArray", "0", "ParagraphSheet", "Properties")
		} else {
			sheet = paragraphRun.Dict("RunArray", "0", "RunData", "ParagraphSheet", "Features")
		}
		paraCSS, lang, font := css.paragraphStyle(sheet)
		paraCSS = withDirection(paraCSS, text)
		baseFont = font
		if lang != "" {
			setAttr(textEl, "xml:lang", lang)
		}
		if res.Type < PathText {
			bounds := frame.bounds
			switch {
			case frame.shape != "":
				style += " shape-inside:url(#textShape);"
				if frame.padding > 0 {
					style += " shape-padding:" + num(frame.padding*css.scale) + ";"
				}
			case strings.Contains(paraCSS, "text-align:justify") && !bounds.Empty():
				style += " shape-inside:url(#bounds);"
			case !bounds.Empty():
				res.OffsetByAscent = true
				res.Offset = anchor(bounds, res.Horizontal, paraCSS)
				if res.Horizontal {
					style += " inline-size:" + num(bounds.Width()) + ";"
				} else {
					style += " inline-size:" + num(bounds.Height()) + ";"
				}
				setAttr(textEl, "transform", fmt.Sprintf("translate(%s, %s)", num(res.Offset.X), num(res.Offset.Y)))
			}
		}
		if paraCSS != "" {
			style += " " + paraCSS
		}
		setAttr(textEl, "style", style)
	}

	parent := textEl
	if frame.shape != "" && res.Type == PathText {
		tp := element("textPath")
		setAttr(tp, "path", frame.shape)
		if frame.reversed {
			setAttr(tp, "side", "right")
		}
		setAttr(tp, "startOffset", num(frame.startOffset)+"%")
		textEl.AppendChild(tp)
		parent = tp
	}

	var styleRun *cos.Dict
	var runs []cos.Value
	if fallback {
		styleRun = object.Dict("StyleRun")
	} else {
		styleRun = editor.Dict("StyleRun")
	}
	runs = styleRun.Array("RunArray")
	if len(runs) == 0 {
		return fail("No style run found in engine data")
	}
	lengths := styleRun.Array("RunLengthArray")
	sheetOf := func(i int) *cos.Dict {
		run, _ := runs[i].(*cos.Dict)
		if fallback {
			return run.Dict("StyleSheet", "StyleSheetData")
		}
		return run.Dict("RunData", "StyleSheet", "Features")
	}
	lengthOf := func(i int) int {
		if fallback {
			if i < len(lengths) {
				return int(intOf(lengths[i]))
			}
			return 0
		}
		run, _ := runs[i].(*cos.Dict)
		n, _ := run.Int("Length")
		return int(n)
	}

	units := utf16.Encode([]rune(text))
	emit := func(sheet *cos.Dict, from, to int) sheetFont {
		span := element("tspan")
		spanCSS, lang, font := css.characterStyle(sheet)
		setAttr(span, "style", spanCSS)
		if lang != "" {
			setAttr(span, "xml:lang", lang)
		}
		span.AppendChild(&html.Node{Type: html.TextNode, Data: slice16(units, from, to)})
		parent.AppendChild(span)
		return font
	}
	current := sheetOf(0)
	pos, length := 0, 0
	var first sheetFont
	firstSet := false
	for i := range runs {
		next := sheetOf(i)
		l := lengthOf(i)
		if sameSheet(next, current) {
			length += l
			continue
		}
		f := emit(current, pos, pos+length)
		if !firstSet {
			first, firstSet = f, true
		}
		current = next
		pos += length
		length = l
	}
	f := emit(current, pos, len(units))
	if !firstSet {
		first = f
	}

	if first.size == 0 {
		first.size = baseFont.size
	}
	if first.postScriptName == "" {
		first.postScriptName = baseFont.postScriptName
	}
	res.FontSize = first.size
	res.Ascent = opts.Fonts.Ascent(first.postScriptName, first.size)

	var sb strings.Builder
	if err := html.Render(&sb, textEl); err != nil {
		return fail("Unknown error writing text element: " + err.Error())
	}
	res.Markup = sb.String()

	defs := element("defs")
	if !frame.bounds.Empty() {
		rect := element("rect")
		setAttr(rect, "id", "bounds")
		setAttr(rect, "x", num(frame.bounds.Left))
		setAttr(rect, "y", num(frame.bounds.Top))
		setAttr(rect, "width", num(frame.bounds.Width()))
		setAttr(rect, "height", num(frame.bounds.Height()))
		defs.AppendChild(rect)
	}
	if frame.shape != "" {
		path := element("path")
		setAttr(path, "id", "textShape")
		setAttr(path, "d", frame.shape)
		defs.AppendChild(path)
	}
	sb.Reset()
	if err := html.Render(&sb, defs); err != nil {
		return fail("Unknown error writing text definitions: " + err.Error())
	}
	res.Defs = sb.String()
	res.Warnings = css.warnings
	return res, nil
}

// Transform returns the transform of the text shape in points for a layer
// transform given in pixels. It replaces the transform attribute of Markup.
func (r *Result) Transform(layer coords.Matrix, ppi float64) coords.Matrix {
	if ppi <= 0 {
		ppi = 72
	}
	toPt := coords.Scale(72/ppi, 72/ppi)
	toPx := coords.Scale(ppi/72, ppi/72)
	m := toPx.Multiply(layer).Multiply(toPt)
	if !r.OffsetByAscent {
		return m
	}
	// The outline of point text starts one ascent above the first baseline
	// (horizontal) or half an em left of the first column (vertical).
	shift := coords.Point{X: r.Offset.X, Y: r.Ascent}
	if !r.Horizontal {
		shift = coords.Point{X: r.FontSize / 2, Y: r.Offset.Y}
	}
	return coords.Translate(shift.X, shift.Y).Multiply(m)
}

func anchor(bounds coords.Rect, horizontal bool, paraCSS string) coords.Point {
	p := coords.Point{X: bounds.Left, Y: bounds.Top}
	if !horizontal {
		p.X = bounds.Right
	}
	switch {
	case strings.Contains(paraCSS, "text-anchor:middle"):
		if horizontal {
			p.X = (bounds.Left + bounds.Right) / 2
		} else {
			p.Y = (bounds.Top + bounds.Bottom) / 2
		}
	case strings.Contains(paraCSS, "text-anchor:end"):
		if horizontal {
			p.X = bounds.Right
		} else {
			p.Y = bounds.Bottom
		}
	}
	return p
}

func element(name string) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: name}
}

func setAttr(n *html.Node, key, val string) {
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func slice16(units []uint16, from, to int) string {
	from = min(max(from, 0), len(units))
	to = min(max(to, from), len(units))
	return string(utf16.Decode(units[from:to]))
}

// sameSheet compares two style sheets by content.
func sameSheet(a, b *cos.Dict) bool {
	return equalValue(a, b)
}

func equalValue(a, b cos.Value) bool {
	switch x := a.(type) {
	case *cos.Dict:
		y, ok := b.(*cos.Dict)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for _, k := range x.Keys() {
			va, _ := x.Get(k)
			vb, ok := y.Get(k)
			if !ok || !equalValue(va, vb) {
				return false
			}
		}
		return true
	case []cos.Value:
		y, ok := b.([]cos.Value)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !equalValue(x[i], y[i]) {
				return false
			}
		}
		return true
	}
	return a == b
}

// frameInfo describes where the text flows.
type frameInfo struct {
	textType    int
	bounds      coords.Rect // points
	shape       string      // SVG path data in points
	padding     float64     // pixels
	reversed    bool
	startOffset float64 // percent of the path length
}

func readFrame(object, resources *cos.Dict, fallback bool, scale float64, res *Result) frameInfo {
	f := frameInfo{startOffset: -3}
	if fallback {
		child := object.Dict("Rendered", "Shapes", "Children", "0")
		t, _ := child.Int("ShapeType")
		f.textType = int(t)
		if f.textType == BoxText {
			box := child.Array("Cookie", "Photoshop", "BoxBounds")
			if len(box) == 4 {
				f.bounds = coords.Rect{
					Left:   floatOf(box[0]) * scale,
					Top:    floatOf(box[1]) * scale,
					Right:  floatOf(box[2]) * scale,
					Bottom: floatOf(box[3]) * scale,
				}
			}
		}
		return f
	}

	idx, ok := object.Int("View", "Frames", "0", "Resource")
	if !ok {
		return f
	}
	tf := resources.Dict("TextFrameSet", "Resources", strconv.FormatInt(idx, 10), "Resource")
	if tf.Len() == 0 {
		return f
	}
	data := tf.Dict("Data")
	t, _ := data.Int("Type")
	f.textType = int(t)
	if f.textType == PointText {
		return f
	}
	f.padding, _ = data.Float("Spacing")
	f.reversed, _ = data.Bool("PathData", "Flip")
	if lo, ok := data.Int("LineOrientation"); ok && lo == 2 {
		res.Horizontal = false
	}
	m := coords.Scale(scale, scale)
	if fm := data.Array("FrameMatrix"); len(fm) == 6 {
		var mm coords.Matrix
		for i := range mm {
			mm[i] = floatOf(fm[i])
		}
		m = mm.Multiply(m)
	}
	segs := bezierSegments(tf.Array("Bezier", "Points"), m)
	if len(segs) > 1 {
		f.shape = pathData(segs)
	}
	if rng := data.Array("TextOnPathTRange"); len(rng) > 0 && f.shape != "" {
		f.startOffset = startOffset(segs, floatOf(rng[0]))
	}
	return f
}

type segment [4]coords.Point

func bezierSegments(points []cos.Value, m coords.Matrix) []segment {
	var out []segment
	for i := 0; i+8 <= len(points); i += 8 {
		var s segment
		for j := range s {
			s[j] = m.Transform(coords.Point{X: floatOf(points[i+2*j]), Y: floatOf(points[i+2*j+1])})
		}
		out = append(out, s)
	}
	return out
}

func pathData(segs []segment) string {
	var sb strings.Builder
	var start, end coords.Point
	for i, s := range segs {
		if i == 0 || end != s[0] {
			if i > 0 && end == start {
				sb.WriteString("Z ")
			}
			fmt.Fprintf(&sb, "M%s %s ", num(s[0].X), num(s[0].Y))
			start = s[0]
		}
		if s[0] == s[1] && s[2] == s[3] {
			fmt.Fprintf(&sb, "L%s %s ", num(s[3].X), num(s[3].Y))
		} else {
			fmt.Fprintf(&sb, "C%s %s %s %s %s %s ", num(s[1].X), num(s[1].Y), num(s[2].X), num(s[2].Y), num(s[3].X), num(s[3].Y))
		}
		end = s[3]
	}
	if end == start {
		sb.WriteString("Z")
	}
	return strings.TrimSpace(sb.String())
}

// startOffset converts a parametric position (segment index plus fraction)
// to a percentage of the path length.
func startOffset(segs []segment, t float64) float64 {
	seg := int(math.Floor(t))
	frac := t - float64(seg)
	var length, total float64
	for i, s := range segs {
		l := s.lengthAt(1)
		total += l
		switch {
		case i < seg:
			length += l
		case i == seg:
			length += s.lengthAt(frac)
		}
	}
	if total == 0 {
		return 0
	}
	return length / total * 100
}

func (s segment) at(t float64) coords.Point {
	u := 1 - t
	a, b, c, d := u*u*u, 3*u*u*t, 3*u*t*t, t*t*t
	return coords.Point{
		X: a*s[0].X + b*s[1].X + c*s[2].X + d*s[3].X,
		Y: a*s[0].Y + b*s[1].Y + c*s[2].Y + d*s[3].Y,
	}
}

// lengthAt approximates the arc length from the start to t by flattening.
func (s segment) lengthAt(t float64) float64 {
	const steps = 32
	var l float64
	prev := s[0]
	for i := 1; i <= steps; i++ {
		p := s.at(t * float64(i) / steps)
		l += coords.Distance(prev, p)
		prev = p
	}
	return l
}
