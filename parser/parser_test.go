package parser

import (
	"bytes"
	"context"
	"errors"
	"image"
	"testing"

	"github.com/wudi/psdkit/builder"
	"github.com/wudi/psdkit/compat"
	"github.com/wudi/psdkit/filters"
	"github.com/wudi/psdkit/ir/raw"
	"github.com/wudi/psdkit/recovery"
	"github.com/wudi/psdkit/security"
	"github.com/wudi/psdkit/stream"
)

func parse(t *testing.T, data []byte, strategy recovery.Strategy) (*raw.Document, *DocumentParser, error) {
	t.Helper()
	p := NewDocumentParser(Config{Recovery: strategy})
	doc, err := p.Parse(context.Background(), bytes.NewReader(data))
	return doc, p, err
}

func mustParse(t *testing.T, data []byte) (*raw.Document, *DocumentParser) {
	t.Helper()
	doc, p, err := parse(t, data, nil)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return doc, p
}

func TestParseHeaderOnlyDocument(t *testing.T) {
	src := builder.NewDocument(4, 3)
	src.MergedCompression = 0
	src.MergedData = builder.RawPlane(4, 3*3, 7)
	doc, p := mustParse(t, src.Bytes())

	h := doc.Header
	if h.Version != 1 || h.Width != 4 || h.Height != 3 || h.Channels != 3 || h.Depth != 8 || h.Mode != compat.ColorModeRGB {
		t.Fatalf("header = %+v", h)
	}
	if len(doc.Layers) != 0 || doc.MergedAlpha {
		t.Fatalf("layers = %d merged alpha = %v", len(doc.Layers), doc.MergedAlpha)
	}
	if doc.ImageData == nil || doc.ImageData.Compression != filters.CompressionRaw || doc.ImageData.Length != 36 {
		t.Fatalf("image data = %+v", doc.ImageData)
	}
	if w := p.Journal().Warnings(); len(w) != 0 {
		t.Fatalf("warnings = %v", w)
	}
}

func TestParseRejectsInvalidHeaders(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(d *builder.Document)
		patch  func(b []byte)
	}{
		{name: "signature", patch: func(b []byte) { copy(b, "8BPX") }},
		{name: "version", mutate: func(d *builder.Document) { d.Version = 3 }},
		{name: "channels", mutate: func(d *builder.Document) { d.Channels = 0 }},
		{name: "too many channels", mutate: func(d *builder.Document) { d.Channels = 57 }},
		{name: "depth", mutate: func(d *builder.Document) { d.Depth = 7 }},
		{name: "mode", mutate: func(d *builder.Document) { d.Mode = 5 }},
		{name: "width", mutate: func(d *builder.Document) { d.Width = 0 }},
		{name: "regular document too large", mutate: func(d *builder.Document) { d.Height = 30001 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := builder.NewDocument(2, 2)
			if tc.mutate != nil {
				tc.mutate(src)
			}
			data := src.Bytes()
			if tc.patch != nil {
				tc.patch(data)
			}
			_, _, err := parse(t, data, nil)
			if !errors.Is(err, ErrFormatInvalid) {
				t.Fatalf("expected ErrFormatInvalid, got %v", err)
			}
		})
	}
}

func TestParseLargeDocumentHeader(t *testing.T) {
	src := builder.NewDocument(2, 40000)
	src.Version = 2
	doc, _ := mustParse(t, src.Bytes())
	if !doc.Header.Wide() || doc.Header.Height != 40000 {
		t.Fatalf("header = %+v", doc.Header)
	}
}

func TestParseTruncated(t *testing.T) {
	src := builder.NewDocument(2, 2).Layer(builder.NewLayer("a", image.Rect(0, 0, 2, 2)).
		Channel(-1, 0, builder.RawPlane(2, 2, 255)))
	data := src.Bytes()
	for _, cut := range []int{10, 30, 60, len(data) - 8} {
		_, _, err := parse(t, data[:cut], nil)
		if !errors.Is(err, stream.ErrTruncated) {
			t.Fatalf("cut at %d: expected truncation, got %v", cut, err)
		}
		if errors.Is(err, ErrFormatInvalid) {
			t.Fatalf("cut at %d: truncation classified as invalid", cut)
		}
	}
}

func fixed16(b *builder.Buffer, v float64) { b.I32(int32(v * 65536)) }

func TestParseResources(t *testing.T) {
	var res builder.Buffer
	fixed16(&res, 144)
	res.U16(1)
	res.U16(2)
	fixed16(&res, 72)
	res.U16(1)
	res.U16(2)

	var guides builder.Buffer
	guides.U32(1)
	guides.U32(576)
	guides.U32(576)
	guides.U32(2)
	guides.I32(32 * 10)
	guides.U8(0)
	guides.I32(16)
	guides.U8(1)

	opaque := []byte{1, 2, 3}
	src := builder.NewDocument(2, 2).
		Resource(4000, []byte{9}).
		Resource(raw.ResourceResolution, res.Bytes()).
		Resource(raw.ResourceGridGuides, guides.Bytes()).
		Resource(4000, opaque).
		Resource(raw.ResourceGlobalAngle, []byte{0, 0}) // too short
	doc, p := mustParse(t, src.Bytes())

	all := doc.Resources.All()
	if len(all) != 4 {
		t.Fatalf("resources = %d", len(all))
	}
	if all[0].ID != 4000 || !bytes.Equal(all[0].Data, opaque) || all[0].Value != nil {
		t.Fatalf("duplicate resource = %+v", all[0])
	}
	e, _ := doc.Resources.Get(raw.ResourceResolution)
	r, ok := e.Value.(*raw.Resolution)
	if !ok || r.HRes != 144 || r.VRes != 72 || r.WidthUnit != 2 {
		t.Fatalf("resolution = %#v", e.Value)
	}
	e, _ = doc.Resources.Get(raw.ResourceGridGuides)
	g, ok := e.Value.(*raw.GridGuides)
	if !ok || len(g.Guides) != 2 || g.Guides[0] != (raw.Guide{Location: 10, Vertical: true}) || g.Guides[1].Location != 0.5 {
		t.Fatalf("guides = %#v", e.Value)
	}
	e, _ = doc.Resources.Get(raw.ResourceGlobalAngle)
	if e == nil || e.Value != nil || len(e.Data) != 2 {
		t.Fatalf("malformed known resource = %+v", e)
	}
	if w := p.Journal().Warnings(); len(w) != 1 {
		t.Fatalf("warnings = %v", w)
	}
}

func TestParseLayerRecords(t *testing.T) {
	rle := builder.RLEPlane(builder.ConstRows(2, 2, 200), false)
	bottom := builder.NewLayer("Bottom", image.Rect(1, 2, 3, 4)).
		Channel(-1, 1, rle).
		Channel(0, 0, builder.RawPlane(2, 2, 10)).
		Block("lyid", []byte{0, 0, 0, 7}).
		Block("luni", unicode("Bottom ✓"))
	bottom.Mask = &builder.Mask{Rect: image.Rect(0, 0, 1, 1), DefaultColor: 255}
	bottom.Channel(-2, 0, []byte{128})
	group := builder.NewLayer("Group", image.Rectangle{}).Divider(1, "pass").Hidden()
	divider := builder.NewLayer("</Layer group>", image.Rectangle{}).Divider(3, "")

	src := builder.NewDocument(4, 4).Layer(divider).Layer(bottom).Layer(group)
	src.MergedAlpha = true
	data := src.Bytes()
	doc, _ := mustParse(t, data)

	if len(doc.Layers) != 3 || !doc.MergedAlpha {
		t.Fatalf("layers = %d merged alpha = %v", len(doc.Layers), doc.MergedAlpha)
	}
	if d := doc.Layers[0].Divider; d == nil || d.Type != raw.SectionBoundingDivider || d.BlendKey != "" {
		t.Fatalf("bounding divider = %+v", d)
	}
	g := doc.Layers[2]
	if g.Divider == nil || g.Divider.Type != raw.SectionOpenFolder || g.Divider.BlendKey != "pass" || g.Visible() {
		t.Fatalf("group record = %+v", g)
	}

	l := doc.Layers[1]
	if l.Rect != image.Rect(1, 2, 3, 4) || l.Name != "Bottom" || l.DisplayName() != "Bottom ✓" || l.LayerID != 7 {
		t.Fatalf("record = %+v", l)
	}
	if l.Mask == nil || l.Mask.DefaultColor != 255 || l.ChannelRect(l.Channels[2]) != image.Rect(0, 0, 1, 1) {
		t.Fatalf("mask = %+v", l.Mask)
	}
	alpha, ok := l.Channel(-1)
	if !ok || alpha.Compression != filters.CompressionRLE || alpha.DataLength() != int64(len(rle)) {
		t.Fatalf("alpha channel = %+v", alpha)
	}
	got := make([]byte, alpha.DataLength())
	if _, err := doc.Source.ReadAt(got, alpha.Offset); err != nil || !bytes.Equal(got, rle) {
		t.Fatalf("alpha offset points at %v (%v)", got, err)
	}
	color, _ := l.Channel(0)
	if _, err := doc.Source.ReadAt(got[:1], color.Offset); err != nil || got[0] != 10 {
		t.Fatalf("color offset points at %v (%v)", got[0], err)
	}
}

func unicode(s string) []byte {
	var b builder.Buffer
	b.Unicode(s)
	return b.Bytes()
}

func TestMalformedBlockDropsFeature(t *testing.T) {
	layer := builder.NewLayer("styled", image.Rect(0, 0, 1, 1)).
		Block("lfx2", []byte{0, 0, 0, 0, 0, 0, 0, 16, 0xff}).
		Block("lclr", []byte{0, 3, 0, 0, 0, 0, 0, 0}).
		Block("zzzz", []byte{1, 2})
	data := builder.NewDocument(1, 1).Layer(layer).Bytes()

	doc, p := mustParse(t, data)
	l := doc.Layers[0]
	if l.Style != nil || l.ColorLabel != 3 || len(l.Blocks) != 3 {
		t.Fatalf("record = %+v", l)
	}
	w := p.Journal().Warnings()
	if len(w) != 1 || w[0].Location.Tag != "lfx2" || w[0].Location.LayerIndex != 0 {
		t.Fatalf("warnings = %v", w)
	}

	if _, _, err := parse(t, data, recovery.NewStrictStrategy()); err == nil {
		t.Fatalf("strict strategy accepted a malformed style")
	}
}

func TestParseAdjustments(t *testing.T) {
	var levels builder.Buffer
	levels.U16(2)
	levels.U16(10)
	levels.U16(240)
	levels.U16(0)
	levels.U16(255)
	levels.U16(150)

	var exposure builder.Buffer
	exposure.U16(1)
	exposure.U32(0x3f800000) // 1.0
	exposure.U32(0)
	exposure.U32(0x40000000) // 2.0

	doc, _ := mustParse(t, builder.NewDocument(1, 1).
		Layer(builder.NewLayer("levels", image.Rectangle{}).Block("levl", levels.Bytes())).
		Layer(builder.NewLayer("exposure", image.Rectangle{}).Block("expA", exposure.Bytes())).
		Layer(builder.NewLayer("vibrance", image.Rectangle{}).Block("vibA",
			builder.Object("null").Long("vibrance", 20).Long("Strt", -5).Versioned())).
		Bytes())

	lv := doc.Layers[0].Adjustment
	if lv == nil || lv.Filter != "levels" {
		t.Fatalf("levels = %+v", lv)
	}
	if g, _ := lv.Params.Get("gamma"); g != 1.5 {
		t.Fatalf("gamma = %v", g)
	}
	ex := doc.Layers[1].Adjustment
	if v, _ := ex.Params.Get("gamma"); v != 2.0 {
		t.Fatalf("exposure params = %v", ex.Params.Keys())
	}
	vb := doc.Layers[2].Adjustment
	if v, _ := vb.Params.Get("vibrance"); vb.Filter != "vibrance" || v != 20 {
		t.Fatalf("vibrance = %+v", vb)
	}
}

func TestParseNestedLayerInfo(t *testing.T) {
	inner := builder.NewDocument(2, 2)
	inner.Depth = 16
	inner.Layer(builder.NewLayer("deep", image.Rect(0, 0, 2, 2)).
		Channel(0, 0, make([]byte, 8)))

	src := builder.NewDocument(2, 2)
	src.Depth = 16
	src.Global = []builder.Block{
		{Key: "Lr16", Data: inner.LayerInfo()},
		{Key: "Txt2", Data: []byte("<< /0 << /1 (x) >> >>")},
	}
	doc, p := mustParse(t, src.Bytes())
	if len(doc.Layers) != 1 || doc.Layers[0].Name != "deep" {
		t.Fatalf("layers = %+v", doc.Layers)
	}
	c := doc.Layers[0].Channels[0]
	if c.DataLength() != 8 || c.Offset <= 0 {
		t.Fatalf("channel = %+v", c)
	}
	if doc.Txt2 == nil {
		t.Fatalf("Txt2 not decoded: %v", p.Journal().Warnings())
	}
	if _, ok := doc.GlobalBlock("Lr16"); !ok {
		t.Fatalf("Lr16 block not recorded")
	}
}

func TestParseIndexedPalette(t *testing.T) {
	src := builder.NewDocument(1, 1)
	src.Mode = uint16(compat.ColorModeIndexed)
	src.Channels = 1
	src.ColorModeData = make([]byte, 768)
	src.ColorModeData[1] = 0xff       // red of entry 1
	src.ColorModeData[256+1] = 0x80   // green of entry 1
	src.ColorModeData[512+255] = 0x11 // blue of entry 255
	doc, _ := mustParse(t, src.Bytes())
	if len(doc.Palette) != 256 {
		t.Fatalf("palette = %d", len(doc.Palette))
	}
	r, g, _, _ := doc.Palette[1].RGBA()
	_, _, b, _ := doc.Palette[255].RGBA()
	if r>>8 != 0xff || g>>8 != 0x80 || b>>8 != 0x11 {
		t.Fatalf("palette entries wrong")
	}
}

func TestParseHonoursCancellation(t *testing.T) {
	data := builder.NewDocument(1, 1).Layer(builder.NewLayer("a", image.Rectangle{})).Bytes()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDocumentParser(Config{}).Parse(ctx, bytes.NewReader(data))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

// minLayerCount returns a one-layer document whose stored layer count is
// -32768, the value that has no positive int16 counterpart.
func minLayerCount() []byte {
	data := builder.NewDocument(2, 2).
		Layer(builder.NewLayer("a", image.Rect(0, 0, 2, 2)).Channel(0, 0, builder.RawPlane(2, 2, 1))).
		Bytes()
	// header 26, colour mode data 4, resources 4, section and info lengths 8
	data[42], data[43] = 0x80, 0x00
	return data
}

func TestParseMinimumLayerCount(t *testing.T) {
	_, _, err := parse(t, minLayerCount(), nil)
	if !errors.Is(err, ErrFormatInvalid) {
		t.Fatalf("expected ErrFormatInvalid, got %v", err)
	}
}

func TestParseOverlongGlobalMask(t *testing.T) {
	var body builder.Buffer
	body.Sig("8BIM")
	body.Sig("zzzz")
	body.U32(0)
	src := builder.NewDocument(2, 2)
	src.GlobalMask = body.Bytes()
	src.MergedData = builder.RawPlane(2, 2*3, 0)
	data := src.Bytes()
	// the global mask length follows an empty layer info section
	data[42], data[43], data[44], data[45] = 0, 0, 0x10, 0

	doc, p := mustParse(t, data)
	if len(doc.Global) != 0 || doc.GlobalMask != nil {
		t.Fatalf("mask body read as blocks: global = %+v mask = %+v", doc.Global, doc.GlobalMask)
	}
	w := p.Journal().Warnings()
	if len(w) != 1 || w[0].Location.Component != "global layer mask" {
		t.Fatalf("warnings = %v", w)
	}
	if doc.ImageData == nil {
		t.Fatalf("image data lost")
	}
}

func TestParseRejectsOversizedAreas(t *testing.T) {
	huge := image.Rect(0, 0, 100000, 100000)
	masked := builder.NewLayer("masked", image.Rect(0, 0, 2, 2))
	masked.Mask = &builder.Mask{Rect: huge}

	tests := []struct {
		name   string
		data   []byte
		limits security.Limits
	}{
		{"layer bounds", builder.NewDocument(2, 2).Layer(builder.NewLayer("a", huge).Channel(0, 0, nil)).Bytes(), security.Limits{}},
		{"layer mask", builder.NewDocument(2, 2).Layer(masked).Bytes(), security.Limits{}},
		{"configured limit", builder.NewDocument(2, 2).Layer(builder.NewLayer("a", image.Rect(0, 0, 4, 4))).Bytes(), security.Limits{MaxDecompressedSize: 64}},
		{"image", builder.NewDocument(400, 400).Bytes(), security.Limits{MaxDecompressedSize: 1 << 16}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := NewDocumentParser(Config{Limits: tc.limits})
			_, err := p.Parse(context.Background(), bytes.NewReader(tc.data))
			if !errors.Is(err, ErrFormatInvalid) {
				t.Fatalf("expected ErrFormatInvalid, got %v", err)
			}
		})
	}
}
