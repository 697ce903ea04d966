package textengine

import (
	"strconv"

	"github.com/wudi/psdkit/cos"
)

// The global 'Txt2' engine data stores every dictionary key as a number.
// The tables below restore the names used by the per-layer engine data so
// both sources can be read by the same code.

var styleFeatureNames = indexed(
	"Font", "FontSize", "FauxBold", "FauxItalic", "AutoLeading",
	"Leading", "HorizontalScale", "VerticalScale", "Tracking", "BaselineShift",
	"CharacterRotation", "AutoKern", "FontCaps", "FontBaseline", "FontOTPosition",
	"StrikethroughPosition", "UnderlinePosition", "UnderlineOffset", "Ligatures", "DiscretionaryLigatures",
	"ContextualLigatures", "AlternateLigatures", "OldStyle", "Fractions", "Ordinals",
	"Swash", "Titling", "ConnectionForms", "StylisticAlternates", "Ornaments",
	"FigureStyle", "ProportionalMetrics", "Kana", "Italics", "Ruby",
	"BaselineDirection", "Tsume", "StyleRunAlignment", "Language", "JapaneseAlternateFeature",
	"EnableWariChu", "WariChuLineCount", "WariChuLineGap", "WariChuSubLineAmount", "WariChuWidowAmount",
	"WariChuOrphanAmount", "WariChuJustification", "TCYUpDownAdjustment", "TCYLeftRightAdjustment", "LeftAki",
	"RightAki", "JiDori", "NoBreak", "FillColor", "StrokeColor",
	"Blend", "FillFlag", "StrokeFlag", "FillFirst", "FillOverPrint",
	"StrokeOverPrint", "LineCap", "LineJoin", "LineWidth", "MiterLimit",
	"LineDashOffset", "LineDashArray", "Type", "Kashidas", "DirOverride",
	"DigitSet", "DiacVPos", "DiacXOffset", "DiacYOffset", "OverlapSwash",
	"JustificationAlternates", "StretchedAlternates", "FillVisibleFlag", "StrokeVisibleFlag", "FillBackgroundColor",
	"FillBackgroundFlag", "UnderlineStyle", "DashedUnderlineGapLength", "DashedUnderlineDashLength", "SlashedZero",
	"StylisticSets", "CustomFeature", "MarkYDistFromBaseline", "AutoMydfb", "RefFontSize",
	"FontSizeRefType", "MagicLineGap", "MagicWordGap",
)

var paragraphFeatureNames = indexed(
	"Justification", "FirstLineIndent", "StartIndent", "EndIndent", "SpaceBefore",
	"SpaceAfter", "DropCaps", "AutoLeading", "LeadingType", "AutoHyphenate",
	"HyphenatedWordSize", "PreHyphen", "PostHyphen", "ConsecutiveHyphens", "Zone",
	"HyphenateCapitalized", "HyphenationPreference", "WordSpacing", "LetterSpacing", "GlyphSpacing",
	"SingleWordJustification", "Hanging", "AutoTCY", "KeepTogether", "BurasagariType",
	"KinsokuOrder", "KurikaeshiMojiShori", "Kinsoku", "MojiKumiTable", "EveryLineComposer",
	"TabStops", "DefaultTabWidth", "DefaultStyle", "ParagraphDirection", "JustificationMethod",
	"ComposerEngine", "ListStyle", "ListTier", "ListSkip", "ListOffset",
	"KashidaWidth",
)

var frameDataNames = map[string]string{
	"0": "Type", "1": "LineOrientation", "2": "FrameMatrix", "3": "RowCount", "4": "ColumnCount",
	"5": "RowMajorOrder", "6": "TextOnPathTRange", "7": "RowGutter", "8": "ColumnGutter", "9": "Spacing",
	"10": "FirstBaseAlignment", "11": "PathData", "13": "_VerticalAlignment",
}

var pathDataNames = map[string]string{"0": "Flip", "1": "Effect", "2": "Alignment", "4": "_Spacing", "18": "_Spacing2"}

func indexed(names ...string) map[string]string {
	m := make(map[string]string, len(names))
	for i, n := range names {
		m[strconv.Itoa(i)] = n
	}
	return m
}

type converter func(cos.Value) cos.Value

// rename copies d with keys translated through names. Values whose original
// key has an entry in nested are converted first.
func rename(v cos.Value, names map[string]string, nested map[string]converter) cos.Value {
	d, ok := v.(*cos.Dict)
	if !ok {
		return v
	}
	out := cos.NewDict()
	for _, k := range d.Keys() {
		val, _ := d.Get(k)
		if fn, ok := nested[k]; ok {
			val = fn(val)
		}
		if n, ok := names[k]; ok {
			k = n
		}
		out.Set(k, val)
	}
	return out
}

func renamer(names map[string]string, nested map[string]converter) converter {
	return func(v cos.Value) cos.Value { return rename(v, names, nested) }
}

func mapList(fn converter) converter {
	return func(v cos.Value) cos.Value {
		list, ok := v.([]cos.Value)
		if !ok {
			return v
		}
		out := make([]cos.Value, len(list))
		for i, el := range list {
			out[i] = fn(el)
		}
		return out
	}
}

// resourceSet turns {0: [{0: res}, ...]} into {Resources: [{Resource: res'}, ...]}.
func resourceSet(fn converter) converter {
	return func(v cos.Value) cos.Value {
		d, ok := v.(*cos.Dict)
		if !ok {
			return v
		}
		var out []cos.Value
		for _, el := range d.Array("0") {
			entry, _ := el.(*cos.Dict)
			wrapped := cos.NewDict()
			wrapped.Set("Resource", fn(entry.Dict("0")))
			out = append(out, wrapped)
		}
		set := cos.NewDict()
		set.Set("Resources", out)
		return set
	}
}

var (
	colorValue = renamer(map[string]string{"0": "Color", "99": "StreamTag"}, map[string]converter{
		"0": renamer(map[string]string{"0": "Type", "1": "Values"}, nil),
	})
	styleFeatures = renamer(styleFeatureNames, map[string]converter{
		"53": colorValue, "54": colorValue, "79": colorValue,
	})
	paragraphFeatures = renamer(paragraphFeatureNames, map[string]converter{"32": styleFeatures})

	fontSet = resourceSet(renamer(map[string]string{"0": "Identifier", "97": "UUID", "99": "StreamTag"}, map[string]converter{
		"0": renamer(map[string]string{"0": "Name", "2": "Type", "4": "MMAxis", "5": "VersionString"}, nil),
	}))
	styleSheetSet = resourceSet(renamer(map[string]string{"0": "Name", "5": "Parent", "6": "Features", "97": "UUID"},
		map[string]converter{"6": styleFeatures}))
	paragraphSheetSet = resourceSet(renamer(map[string]string{"0": "Name", "5": "Features", "6": "Parent", "97": "UUID"},
		map[string]converter{"5": paragraphFeatures}))
	textFrameSet = resourceSet(renamer(map[string]string{"0": "_Position", "1": "Bezier", "2": "Data", "97": "UUID"},
		map[string]converter{
			"1": renamer(map[string]string{"0": "Points"}, nil),
			"2": renamer(frameDataNames, map[string]converter{"11": renamer(pathDataNames, nil)}),
		}))

	documentResources = renamer(map[string]string{
		"1": "FontSet", "2": "MojiKumiCodeToClassSet", "3": "MojiKumiTableSet", "4": "KinsokuSet",
		"5": "StyleSheetSet", "6": "ParagraphSheetSet", "8": "TextFrameSet", "9": "ListStyleSet",
	}, map[string]converter{"1": fontSet, "5": styleSheetSet, "6": paragraphSheetSet, "8": textFrameSet})

	textModel = renamer(map[string]string{"0": "Text", "5": "ParagraphRun", "6": "StyleRun", "10": "StorySheet"},
		map[string]converter{
			"5": runArray("ParagraphSheet", map[string]string{"5": "Features", "6": "Parent"}, map[string]converter{"5": paragraphFeatures}),
			"6": runArray("StyleSheet", map[string]string{"5": "Parent", "6": "Features"}, map[string]converter{"6": styleFeatures}),
		})
	textView = renamer(map[string]string{"0": "Frames", "2": "Strikes"}, map[string]converter{
		"0": mapList(func(v cos.Value) cos.Value {
			d, _ := v.(*cos.Dict)
			out := cos.NewDict()
			if r, ok := d.Get("0"); ok {
				out.Set("Resource", r)
			}
			return out
		}),
	})
	textObject = renamer(map[string]string{"0": "Model", "1": "View"}, map[string]converter{"0": textModel, "1": textView})

	documentObjects = renamer(map[string]string{
		"0": "DocumentSettings", "1": "TextObjects", "2": "OriginalNormalStyleFeatures", "3": "OriginalNormalParagraphFeatures",
	}, map[string]converter{"1": mapList(textObject), "2": styleFeatures, "3": paragraphFeatures})
)

// runArray turns {0: [{0: {0: sheet}, 1: length}, ...]} into
// {RunArray: [{RunData: {<sheetKey>: sheet'}, Length: length}, ...]}.
func runArray(sheetKey string, names map[string]string, nested map[string]converter) converter {
	return func(v cos.Value) cos.Value {
		d, ok := v.(*cos.Dict)
		if !ok {
			return v
		}
		var runs []cos.Value
		for _, el := range d.Array("0") {
			run, _ := el.(*cos.Dict)
			data := cos.NewDict()
			data.Set(sheetKey, rename(run.Dict("0", "0"), names, nested))
			out := cos.NewDict()
			out.Set("RunData", data)
			if l, ok := run.Get("1"); ok {
				out.Set("Length", l)
			}
			runs = append(runs, out)
		}
		out := cos.NewDict()
		out.Set("RunArray", runs)
		return out
	}
}

// ExpandKeys rewrites numerically keyed 'Txt2' engine data with named keys.
func ExpandKeys(txt2 *cos.Dict) *cos.Dict {
	if txt2 == nil {
		return nil
	}
	out, _ := rename(txt2, map[string]string{"0": "DocumentResources", "1": "DocumentObjects"},
		map[string]converter{"0": documentResources, "1": documentObjects}).(*cos.Dict)
	return out
}
