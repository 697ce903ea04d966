package textengine

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/wudi/psdkit/cos"
	"github.com/wudi/psdkit/descriptor"
	"github.com/wudi/psdkit/fonts"
)

var languages = map[int64]string{
	0: "en-US", 1: "fi", 2: "fr", 3: "fr-CA", 4: "de", 5: "de-1901", 6: "gsw", 7: "it",
	8: "nb", 9: "nn", 10: "pt", 11: "pt-BR", 12: "es", 13: "sv", 14: "en-UK", 15: "nl",
	16: "da", 18: "ru", 22: "cs", 23: "pl", 25: "el", 26: "tr", 28: "hu",
}

var justification = []struct{ align, anchor string }{
	{"start", "start"},
	{"end", "end"},
	{"center", "middle"},
	{"justify start", "start"},
	{"justify end", "end"},
	{"justify center", "middle"},
	{"justify", "middle"},
}

var unsupportedParagraphKeys = keySet(
	"StartIndent", "EndIndent", "SpaceBefore", "SpaceAfter", "AutoHyphenate", "HyphenatedWordSize",
	"PreHyphen", "PostHyphen", "ConsecutiveHyphens", "HyphenateCapitalized", "HyphenationPreference",
	"SingleWordJustification", "Zone", "WordSpacing", "LetterSpacing", "GlyphSpacing", "LeadingType",
	"Kinsoku", "KinsokuOrder", "EveryLineComposer", "ComposerEngine", "KurikaeshiMojiShori",
	"MojiKumiTable", "DropCaps", "TabStops", "AutoTCY", "KeepTogether", "DefaultTabWidth",
)

var unsupportedStyleKeys = keySet(
	"Kerning", "HorizontalScale", "VerticalScale", "Tsume", "LeftAki", "RightAki", "JiDori",
	"HindiNumbers", "Kashida", "DiacriticPos", "EnableWariChu", "WariChuWidowAmount", "WariChuLineGap",
	"WariChuJustification", "WariChuOrphanAmount", "WariChuLineCount", "WariChuSubLineAmount",
	"TCYUpDownAdjustment", "TCYLeftRightAdjustment", "Type1EncodingNames", "ConnectionForms",
	"FillOverPrint", "StrokeOverPrint", "Blend", "UnderlineOffset",
)

// Boolean OpenType features switched on by a true value.
var featureFlags = map[string]string{
	"Swash":               "'swsh' 1",
	"StylisticAlternates": "'salt' 1",
	"Ornaments":           "'ornm' 1",
	"Italics":             "'ital' 1",
	"ProportionalMetrics": "'palt' 1",
	"Kana":                "'hkna' 1",
}

func keySet(keys ...string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}

func num(v float64) string { return strconv.FormatFloat(v, 'g', 6, 64) }

// sheetFont is the font of a character sheet, used for baseline placement.
type sheetFont struct {
	postScriptName string
	size           float64 // points
}

// cssWriter accumulates CSS for one conversion.
type cssWriter struct {
	fonts    []fontEntry
	scale    float64 // points per pixel
	warnings []string
}

type fontEntry struct {
	info fonts.Info
}

func (w *cssWriter) warnf(format string, args ...any) {
	w.warnings = append(w.warnings, fmt.Sprintf(format, args...))
}

func (w *cssWriter) unsupported(kind string, keys []string) {
	if len(keys) > 0 {
		w.warnf("Unsupported %s: %s", kind, strings.Join(keys, ","))
	}
}

func boolOf(v cos.Value) bool {
	switch b := v.(type) {
	case bool:
		return b
	case int64:
		return b != 0
	case float64:
		return b != 0
	}
	return false
}

func intOf(v cos.Value) int64 {
	f, _ := cos.AsFloat(v)
	return int64(f)
}

func floatOf(v cos.Value) float64 {
	f, _ := cos.AsFloat(v)
	return f
}

// engineColor converts a text engine colour ({Type, Values} with components
// in 0..1 after a leading alpha) to #rrggbb.
func engineColor(v cos.Value) string {
	d, _ := v.(*cos.Dict)
	if c := d.Dict("Color"); c != nil {
		d = c
	}
	values := d.Array("Values")
	at := func(i int) float64 {
		if i < len(values) {
			return floatOf(values[i])
		}
		return 0
	}
	typ, _ := d.Int("Type")
	var c descriptor.Color
	switch typ {
	case 0:
		c = descriptor.Color{Model: descriptor.ColorGray, V: [4]float64{(1 - at(1)) * 100}}
	case 2:
		c = descriptor.Color{Model: descriptor.ColorCMYK, V: [4]float64{at(1) * 100, at(2) * 100, at(3) * 100, at(4) * 100}}
	case 3:
		c = descriptor.Color{Model: descriptor.ColorLab, V: [4]float64{at(1), at(2), at(3)}}
	default:
		c = descriptor.Color{Model: descriptor.ColorRGB, V: [4]float64{at(1) * 255, at(2) * 255, at(3) * 255}}
	}
	return c.Hex()
}

// characterStyle maps a character style sheet to CSS declarations. It also
// reports the language tag and the font the sheet selects.
func (w *cssWriter) characterStyle(sheet *cos.Dict) (css, lang string, font sheetFont) {
	var (
		styles      []string
		unsupported []string
		weight      = 400
		italic      bool
		decoration  []string
		shift       []string
		ligatures   []string
		numeric     []string
		caps        []string
		eastAsian   []string
		features    []string
		underPos    string
	)
	autoLeading := true
	if v, ok := sheet.Get("AutoLeading"); ok {
		autoLeading = boolOf(v)
	}
	for _, key := range sheet.Keys() {
		v, _ := sheet.Get(key)
		if unsupportedStyleKeys[key] {
			unsupported = append(unsupported, key)
			continue
		}
		if f, ok := featureFlags[key]; ok {
			if boolOf(v) {
				features = append(features, f)
			}
			continue
		}
		switch key {
		case "Font":
			idx := int(intOf(v))
			if idx >= 0 && idx < len(w.fonts) {
				fe := w.fonts[idx]
				weight = fe.info.Weight
				italic = italic || fe.info.Italic
				styles = append(styles, "font-family:"+strings.Join(fe.info.Families, ","))
				if fe.info.Width != 100 && fe.info.Width != 0 {
					styles = append(styles, "font-width:"+strconv.Itoa(fe.info.Width))
				}
				font.postScriptName = fe.info.PostScriptName
			}
		case "FontSize":
			font.size = floatOf(v) * w.scale
			styles = append(styles, "font-size:"+num(font.size))
		case "AutoKerning", "AutoKern":
			if !boolOf(v) {
				styles = append(styles, "font-kerning: none")
			}
		case "FauxBold":
			if boolOf(v) {
				weight = 700
			}
		case "FauxItalic":
			if boolOf(v) {
				italic = true
			}
		case "Leading":
			if !autoLeading {
				if size, _ := sheet.Float("FontSize"); size > 0 {
					styles = append(styles, "line-height:"+num(floatOf(v)/size))
				}
			}
		case "Tracking":
			styles = append(styles, "letter-spacing:"+num(0.001*floatOf(v))+"em")
		case "BaselineShift":
			if s := floatOf(v); s > 0 {
				shift = append(shift, num(s*w.scale))
			}
		case "FontCaps":
			switch intOf(v) {
			case 0:
			case 1:
				caps = append(caps, "all-small-caps")
			case 2:
				styles = append(styles, "text-transform:uppercase")
			default:
				w.warnf("Unknown value for %s: %v", key, v)
			}
		case "FontBaseline":
			switch intOf(v) {
			case 0:
			case 1:
				shift = append(shift, "super")
			case 2:
				shift = append(shift, "sub")
			default:
				w.warnf("Unknown value for %s: %v", key, v)
			}
		case "FontOTPosition":
			switch intOf(v) {
			case 0:
			case 1:
				styles = append(styles, "font-variant-position:super")
			case 2:
				styles = append(styles, "font-variant-position:sub")
			case 3:
				features = append(features, "'numr' 1")
			case 4:
				features = append(features, "'dnum' 1")
			default:
				w.warnf("Unknown value for %s: %v", key, v)
			}
		case "Underline":
			if boolOf(v) {
				decoration = append(decoration, "underline")
			}
		case "UnderlinePosition":
			switch intOf(v) {
			case 0:
			case 1:
				decoration = append(decoration, "underline")
				underPos = "auto left"
			case 2:
				decoration = append(decoration, "underline")
				underPos = "auto right"
			default:
				w.warnf("Unknown value for %s: %v", key, v)
			}
		case "YUnderline":
			switch intOf(v) {
			case 1:
				underPos = "auto left"
			case 0:
				underPos = "auto right"
			}
		case "Strikethrough", "StrikethroughPosition":
			if boolOf(v) {
				decoration = append(decoration, "line-through")
			}
		case "Ligatures":
			if !boolOf(v) {
				ligatures = append(ligatures, "no-common-ligatures")
			}
		case "DLigatures", "DiscretionaryLigatures", "AlternateLigatures":
			if boolOf(v) {
				ligatures = append(ligatures, "discretionary-ligatures")
			}
		case "ContextualLigatures":
			if boolOf(v) {
				ligatures = append(ligatures, "contextual")
			}
		case "Fractions":
			if boolOf(v) {
				numeric = append(numeric, "diagonal-fractions")
			}
		case "Ordinals":
			if boolOf(v) {
				numeric = append(numeric, "ordinal")
			}
		case "Titling":
			if boolOf(v) {
				caps = append(caps, "titling-caps")
			}
		case "OldStyle":
			if boolOf(v) && !slices.Contains(numeric, "oldstyle-nums") {
				numeric = append(numeric, "oldstyle-nums")
			}
		case "SlashedZero":
			if boolOf(v) {
				numeric = append(numeric, "slashed-zero")
			}
		case "FigureStyle":
			switch intOf(v) {
			case 0:
			case 1:
				numeric = append(numeric, "tabular-nums", "lining-nums")
			case 2:
				numeric = append(numeric, "proportional-nums", "oldstyle-nums")
			case 3:
				numeric = append(numeric, "proportional-nums", "lining-nums")
			case 4:
				numeric = append(numeric, "tabular-nums", "oldstyle-nums")
			default:
				w.warnf("Unknown value for %s: %v", key, v)
			}
		case "BaselineDirection":
			switch intOf(v) {
			case 1:
				styles = append(styles, "text-orientation: upright")
			case 2:
				styles = append(styles, "text-orientation: mixed")
			case 3:
				styles = append(styles, "text-combine-upright: all")
			default:
				w.warnf("Unknown value for %s: %v", key, v)
			}
		case "StyleRunAlignment":
			baseline := map[int64]string{
				0: "ideographic", 1: "text-bottom", 2: "center", 3: "alphabetic", 4: "text-top",
			}[intOf(v)]
			if baseline == "" {
				w.warnf("Unknown value for %s: %v", key, v)
				continue
			}
			styles = append(styles, "dominant-baseline: "+baseline, "alignment-baseline: "+baseline)
		case "Language":
			tag, ok := languages[intOf(v)]
			if !ok {
				w.warnf("Unknown value for %s: %v", key, v)
				continue
			}
			lang = fonts.LanguageTag(tag)
		case "Ruby":
			if boolOf(v) {
				eastAsian = append(eastAsian, "ruby")
			}
		case "JapaneseAlternateFeature":
			switch intOf(v) {
			case 0:
			case 1:
				eastAsian = append(eastAsian, "traditional")
			case 2:
				features = append(features, "'expt' 1")
			case 3:
				eastAsian = append(eastAsian, "jis78")
			default:
				w.warnf("Unknown value for %s: %v", key, v)
			}
		case "NoBreak":
			if boolOf(v) {
				styles = append(styles, "word-break: keep-all")
			}
		case "DirOverride":
			if boolOf(v) {
				styles = append(styles, "direction: rtl", "unicode-bidi: isolate")
			}
		case "FillColor":
			if f, ok := sheet.Get("FillFlag"); ok && !boolOf(f) {
				styles = append(styles, "fill:none")
				continue
			}
			styles = append(styles, "fill:"+engineColor(v))
		case "StrokeColor":
			if f, ok := sheet.Get("StrokeFlag"); ok && !boolOf(f) {
				styles = append(styles, "stroke:none")
				continue
			}
			styles = append(styles, "stroke:"+engineColor(v))
		case "OutlineWidth", "LineWidth":
			styles = append(styles, "stroke-width:"+num(floatOf(v)*w.scale))
		case "FillFirst":
			if boolOf(v) {
				styles = append(styles, "paint-order: fill")
			}
		case "StylisticSets":
			flags := intOf(v)
			for i := 1; i <= 20; i++ {
				if flags&(1<<(i-1)) != 0 {
					features = append(features, fmt.Sprintf("'ss%02d' 1", i))
				}
			}
		case "LineCap":
			styles = append(styles, "stroke-linecap: "+pick(intOf(v), "butt", "round", "square"))
		case "LineJoin":
			styles = append(styles, "stroke-linejoin: "+pick(intOf(v), "miter", "round", "bevel"))
		case "MiterLimit":
			styles = append(styles, "stroke-miterlimit: "+num(floatOf(v)))
		case "LineDashOffset":
			styles = append(styles, "stroke-dashoffset: "+num(floatOf(v)))
		case "FillFlag", "StrokeFlag", "AutoLeading":
		default:
			w.warnf("Unknown character style key %s: %v", key, v)
		}
	}
	if weight != 400 {
		styles = append(styles, "font-weight:"+strconv.Itoa(weight))
	}
	if italic {
		styles = append(styles, "font-style:italic")
	}
	appendList := func(prop string, vals []string, sep string) {
		if len(vals) > 0 {
			styles = append(styles, prop+":"+strings.Join(vals, sep))
		}
	}
	appendList("text-decoration", decoration, " ")
	appendList("baseline-shift", shift, " ")
	appendList("font-variant-ligatures", ligatures, " ")
	appendList("font-variant-numeric", numeric, " ")
	appendList("font-variant-caps", caps, " ")
	appendList("font-variant-east-asian", eastAsian, " ")
	appendList("font-feature-settings", features, ", ")
	if underPos != "" {
		styles = append(styles, "text-decoration-position:"+underPos)
	}
	w.unsupported("styles", unsupported)
	return strings.Join(styles, "; "), lang, font
}

// paragraphStyle maps a paragraph sheet to CSS declarations.
func (w *cssWriter) paragraphStyle(sheet *cos.Dict) (css, lang string, font sheetFont) {
	var styles, unsupported []string
	for _, key := range sheet.Keys() {
		v, _ := sheet.Get(key)
		if unsupportedParagraphKeys[key] {
			unsupported = append(unsupported, key)
			continue
		}
		switch key {
		case "Justification":
			j := justification[0]
			if i := intOf(v); i >= 0 && int(i) < len(justification) {
				j = justification[i]
			}
			styles = append(styles, "text-align:"+j.align, "text-anchor:"+j.anchor)
		case "FirstLineIndent":
			styles = append(styles, "text-indent:"+num(floatOf(v)*w.scale))
		case "AutoLeading":
			styles = append(styles, "line-height:"+num(floatOf(v)))
		case "Hanging":
		case "Burasagari", "BurasagariType":
			if boolOf(v) {
				styles = append(styles, "hanging-punctuation:allow-end")
			}
		case "ParagraphDirection":
			switch intOf(v) {
			case 1:
				styles = append(styles, "direction:rtl")
			case 0:
				styles = append(styles, "direction:ltr")
			}
		case "DefaultStyle":
			d, _ := v.(*cos.Dict)
			var css string
			css, lang, font = w.characterStyle(d)
			if css != "" {
				styles = append(styles, css)
			}
		default:
			w.warnf("Unknown paragraph style key %s: %v", key, v)
		}
	}
	w.unsupported("paragraph styles", unsupported)
	return strings.Join(styles, "; "), lang, font
}

// withDirection makes the paragraph right-to-left when the sheet sets no
// direction and text is dominated by a right-to-left script.
func withDirection(css, text string) string {
	if strings.Contains(css, "direction") || !fonts.IsRTL(text) {
		return css
	}
	if css == "" {
		return "direction:rtl"
	}
	return css + "; direction:rtl"
}

func pick(i int64, vals ...string) string {
	if i >= 0 && int(i) < len(vals) {
		return vals[i]
	}
	return vals[0]
}

