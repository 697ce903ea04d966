package textengine

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"unicode/utf16"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/wudi/psdkit/builder"
	"github.com/wudi/psdkit/coords"
	"github.com/wudi/psdkit/cos"
	"github.com/wudi/psdkit/descriptor"
	"github.com/wudi/psdkit/fonts"
)

func typeToolBlob(engine []byte, orientation string) []byte {
	var b builder.Buffer
	b.U16(1)
	for _, v := range []float64{1, 0, 0, 1, 10, 20} {
		b.F64(v)
	}
	b.U16(50)
	bounds := builder.Object("bounds").
		UnitFloat("Left", descriptor.UnitPoints, -2).
		UnitFloat("Top ", descriptor.UnitPoints, -30).
		UnitFloat("Rght", descriptor.UnitPoints, 120).
		UnitFloat("Btom", descriptor.UnitPoints, 8)
	b.Write(builder.Object("TxLr").
		Text("Txt ", "Hello world").
		Enum("textGridding", "textGridding", "None").
		Enum("Ornt", "Ornt", orientation).
		Obj("bounds", bounds).
		Long("TextIndex", 0).
		Raw("EngineData", engine).
		Versioned())
	b.U16(1)
	b.Write(builder.Object("warp").Enum("warpStyle", "warpStyle", "warpNone").Versioned())
	for _, v := range []float64{0, 0, 118, 38} {
		b.F64(v)
	}
	return b.Bytes()
}

func TestParseTypeTool(t *testing.T) {
	tt, err := ParseTypeTool(typeToolBlob([]byte("<< >>"), "Vrtc"), descriptor.Config{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if tt.Transform != (coords.Matrix{1, 0, 0, 1, 10, 20}) {
		t.Fatalf("transform = %v", tt.Transform)
	}
	if tt.Text != "Hello world" || tt.TextIndex != 0 || string(tt.EngineData) != "<< >>" {
		t.Fatalf("text descriptor = %+v", tt)
	}
	if tt.Horizontal {
		t.Fatalf("vertical orientation not applied")
	}
	if tt.Bounds != (coords.Rect{Left: -2, Top: -30, Right: 120, Bottom: 8}) {
		t.Fatalf("bounds = %+v", tt.Bounds)
	}
	if tt.Warp == nil || tt.BoundingBox.Right != 118 {
		t.Fatalf("warp = %v box = %+v", tt.Warp, tt.BoundingBox)
	}
	if len(tt.Mismatches) != 0 {
		t.Fatalf("mismatches = %v", tt.Mismatches)
	}
}

func TestParseTypeToolErrors(t *testing.T) {
	blob := typeToolBlob(nil, "Hrzn")
	blob[1] = 2
	if _, err := ParseTypeTool(blob, descriptor.Config{}, nil); err == nil {
		t.Fatalf("expected version error")
	}
	if _, err := ParseTypeTool(typeToolBlob(nil, "Hrzn")[:20], descriptor.Config{}, nil); err == nil {
		t.Fatalf("expected truncation error")
	}
}

func TestParseTypeToolWithoutWarp(t *testing.T) {
	full := typeToolBlob(nil, "Hrzn")
	warp := builder.Object("warp").Enum("warpStyle", "warpStyle", "warpNone").Versioned()
	cut := len(full) - 32 - len(warp) - 2
	tt, err := ParseTypeTool(full[:cut], descriptor.Config{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if tt.Warp != nil || !tt.Horizontal {
		t.Fatalf("type tool = %+v", tt)
	}
}

const fallbackEngine = `
<<
	/EngineDict
	<<
		/Editor << /Text (Hello world\r) >>
		/ParagraphRun
		<<
			/RunArray [ << /ParagraphSheet << /Properties << /Justification 2 /Burasagari true >> >> >> ]
			/RunLengthArray [ 12 ]
		>>
		/StyleRun
		<<
			/RunArray [
				<< /StyleSheet << /StyleSheetData << /Font 0 /FontSize 24.0 /FauxBold true >> >> >>
				<< /StyleSheet << /StyleSheetData << /Font 0 /FontSize 24.0 /FauxBold true >> >> >>
				<< /StyleSheet << /StyleSheetData << /Font 1 /FontSize 12.0 /Tracking 100 /Language 4 /Underline true
					/FillColor << /Type 1 /Values [ 1.0 1.0 0.0 0.0 ] >> >> >> >>
			]
			/RunLengthArray [ 3 3 6 ]
		>>
		/AntiAlias 3
		/Rendered << /Shapes << /Children [ << /ShapeType 1 /Cookie << /Photoshop << /BoxBounds [ 0 0 200 100 ] >> >> >> ] >> >>
	>>
	/DocumentResources << /FontSet [ << /Name (%s) >> << /Name (Missing-Bold) >> ] >>
>>`

func TestConvertFallback(t *testing.T) {
	fs := fonts.NewFontSet()
	face, err := fs.Add(goregular.TTF)
	if err != nil {
		t.Fatal(err)
	}
	engine := fmt.Sprintf(fallbackEngine, face.PostScriptName)
	tt := &TypeTool{Horizontal: true, TextIndex: 0, EngineData: []byte(engine)}

	res, err := Convert(tt, Options{Fonts: fs, Resolution: 144})
	if err != nil {
		t.Fatalf("convert: %v (%v)", err, res.Errors)
	}
	if res.Text != "Hello world\n" {
		t.Fatalf("text = %q", res.Text)
	}
	if res.Type != BoxText || !res.OffsetByAscent || res.Offset != (coords.Point{X: 50, Y: 0}) {
		t.Fatalf("placement = type %d offset %v by ascent %v", res.Type, res.Offset, res.OffsetByAscent)
	}
	for _, want := range []string{
		`<text text-rendering="auto"`,
		`writing-mode: horizontal-tb; white-space: pre-wrap; inline-size:100; text-align:center; text-anchor:middle; hanging-punctuation:allow-end`,
		`transform="translate(50, 0)"`,
		`>Hello </tspan>`,
		`font-size:12; font-weight:700`,
		`xml:lang="de"`,
		`letter-spacing:0.1em`,
		`fill:#ff0000`,
		`font-family:sans-serif`,
		`text-decoration:underline`,
		"world\n</tspan></text>",
	} {
		if !strings.Contains(res.Markup, want) {
			t.Errorf("markup lacks %q\n%s", want, res.Markup)
		}
	}
	if strings.Count(res.Markup, "<tspan") != 2 {
		t.Fatalf("equal runs were not merged:\n%s", res.Markup)
	}
	if res.Defs != `<defs><rect id="bounds" x="0" y="0" width="100" height="50"></rect></defs>` {
		t.Fatalf("defs = %s", res.Defs)
	}
	if len(res.Errors) != 1 || res.Errors[0] != "Font Missing-Bold not found, substituting sans-serif" {
		t.Fatalf("errors = %v", res.Errors)
	}
	if math.Abs(res.Ascent-face.Ascent*12) > 1e-9 || res.FontSize != 12 {
		t.Fatalf("ascent = %v size = %v", res.Ascent, res.FontSize)
	}
}

const txt2Sample = `
<<
	/0 <<
		/1 << /0 [ << /0 << /0 << /0 (%s) >> >> >> ] >>
		/8 << /0 [ << /0 <<
			/1 << /0 [ 0 0 0 0 100 0 100 0  100 0 100 0 100 50 100 50  100 50 100 50 0 50 0 50  0 50 0 50 0 0 0 0 ] >>
			/2 << /0 1 /9 4 >>
		>> >> ] >>
	>>
	/1 <<
		/1 [ <<
			/0 <<
				/0 (Hi\r)
				/5 << /0 [ << /0 << /0 << /5 << /0 0 >> >> >> /1 3 >> ] >>
				/6 << /0 [ << /0 << /0 << /6 << /0 0 /1 20.0 /53 << /0 << /0 1 /1 [ 1.0 0.0 0.0 1.0 ] >> >> >> >> >> /1 3 >> ] >>
			>>
			/1 << /0 [ << /0 0 >> ] >>
		>> ]
	>>
>>`

func TestConvertTxt2(t *testing.T) {
	fs := fonts.NewFontSet()
	face, err := fs.Add(goregular.TTF)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := cos.Parse([]byte(fmt.Sprintf(txt2Sample, face.PostScriptName)), cos.Config{})
	if err != nil {
		t.Fatal(err)
	}
	global := ExpandKeys(raw)
	if name, _ := global.String("DocumentResources", "FontSet", "Resources", "0", "Resource", "Identifier", "Name"); name != face.PostScriptName {
		t.Fatalf("expanded font name = %q", name)
	}

	tt := &TypeTool{Horizontal: true, TextIndex: 0, EngineData: []byte("<< /EngineDict << >> >>")}
	res, err := Convert(tt, Options{Fonts: fs, Resolution: 144, Global: global})
	if err != nil {
		t.Fatalf("convert: %v (%v)", err, res.Errors)
	}
	if res.Text != "Hi\n" || res.Type != BoxText || res.OffsetByAscent {
		t.Fatalf("result = %+v", res)
	}
	for _, want := range []string{
		`shape-inside:url(#textShape); shape-padding:2;`,
		`text-align:start`,
		`font-size:10`,
		`fill:#0000ff`,
	} {
		if !strings.Contains(res.Markup, want) {
			t.Errorf("markup lacks %q\n%s", want, res.Markup)
		}
	}
	if !strings.Contains(res.Defs, `d="M0 0 L50 0 L50 25 L0 25 L0 0 Z"`) {
		t.Fatalf("defs = %s", res.Defs)
	}
}

func TestConvertMissingEditor(t *testing.T) {
	tt := &TypeTool{EngineData: []byte("<< /EngineDict << /AntiAlias 1 >> /DocumentResources << /FontSet [ ] >> >>")}
	res, err := Convert(tt, Options{})
	if !errors.Is(err, ErrConversion) {
		t.Fatalf("err = %v", err)
	}
	if len(res.Errors) == 0 || !strings.Contains(res.Errors[0], "resource") && !strings.Contains(res.Errors[0], "editor") {
		t.Fatalf("errors = %v", res.Errors)
	}
}

func TestResultTransform(t *testing.T) {
	layer := coords.Translate(10, 20)
	r := &Result{Horizontal: true}
	if got := r.Transform(layer, 144).Transform(coords.Point{}); got != (coords.Point{X: 5, Y: 10}) {
		t.Fatalf("plain origin = %v", got)
	}
	r = &Result{Horizontal: true, OffsetByAscent: true, Offset: coords.Point{X: 50}, Ascent: 9}
	if got := r.Transform(layer, 144).Transform(coords.Point{}); got != (coords.Point{X: 55, Y: 19}) {
		t.Fatalf("ascent origin = %v", got)
	}
}

func TestStyleSheetMapping(t *testing.T) {
	w := &cssWriter{scale: 1}
	sheet, err := cos.Parse([]byte(`<< /FontCaps 1 /FontBaseline 2 /Ligatures false /StylisticSets 5 /LineCap 1 /AutoLeading false /Leading 36 /FontSize 24 /FillFlag false /FillColor << /Type 1 /Values [ 1 0 0 0 ] >> /HorizontalScale 1.0 >>`), cos.Config{})
	if err != nil {
		t.Fatal(err)
	}
	css, _, _ := w.characterStyle(sheet)
	for _, want := range []string{
		"line-height:1.5", "font-size:24", "stroke-linecap: round", "fill:none",
		"baseline-shift:sub", "font-variant-ligatures:no-common-ligatures",
		"font-variant-caps:all-small-caps", "font-feature-settings:'ss01' 1, 'ss03' 1",
	} {
		if !strings.Contains(css, want) {
			t.Errorf("css lacks %q: %s", want, css)
		}
	}
	if len(w.warnings) != 1 || w.warnings[0] != "Unsupported styles: HorizontalScale" {
		t.Fatalf("warnings = %v", w.warnings)
	}
}

// utf16Engine encodes s the way engine data stores unicode strings, ending
// with an escaped carriage return.
func utf16Engine(s string) string {
	b := []byte{0xfe, 0xff}
	for _, u := range utf16.Encode([]rune(s)) {
		b = append(b, byte(u>>8), byte(u))
	}
	return string(b) + "\x00\\r"
}

func TestConvertInfersDirection(t *testing.T) {
	fs := fonts.NewFontSet()
	face, err := fs.Add(goregular.TTF)
	if err != nil {
		t.Fatal(err)
	}
	engine := strings.Replace(fmt.Sprintf(fallbackEngine, face.PostScriptName), `Hello world\r`, utf16Engine("שלום עולם!!"), 1)
	tt := &TypeTool{Horizontal: true, EngineData: []byte(engine)}

	res, err := Convert(tt, Options{Fonts: fs, Resolution: 144})
	if err != nil {
		t.Fatalf("convert: %v (%v)", err, res.Errors)
	}
	if !strings.Contains(res.Markup, "hanging-punctuation:allow-end; direction:rtl") {
		t.Fatalf("paragraph not right-to-left:\n%s", res.Markup)
	}
}

func TestWithDirection(t *testing.T) {
	tests := []struct {
		css, text, want string
	}{
		{"", "hello", ""},
		{"", "שלום", "direction:rtl"},
		{"text-align:left", "مرحبا بالعالم", "text-align:left; direction:rtl"},
		{"direction:ltr", "שלום", "direction:ltr"},
		{"text-align:left", "abcde שלום", "text-align:left"},
	}
	for _, tc := range tests {
		if got := withDirection(tc.css, tc.text); got != tc.want {
			t.Errorf("withDirection(%q, %q) = %q, want %q", tc.css, tc.text, got, tc.want)
		}
	}
}
