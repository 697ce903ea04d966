// Package compat holds the mapping tables between the file format's legacy
// identifiers and the document model: blend keys, color modes and units.
package compat

// CompositeOp names a blend mode in the document model.
type CompositeOp string

const (
	CompositeOver         CompositeOp = "normal"
	CompositePassThrough  CompositeOp = "pass_through"
	CompositeDissolve     CompositeOp = "dissolve"
	CompositeDarken       CompositeOp = "darken"
	CompositeMultiply     CompositeOp = "multiply"
	CompositeBurn         CompositeOp = "burn"
	CompositeLinearBurn   CompositeOp = "linear_burn"
	CompositeDarkerColor  CompositeOp = "darker_color"
	CompositeLighten      CompositeOp = "lighten"
	CompositeScreen       CompositeOp = "screen"
	CompositeDodge        CompositeOp = "dodge"
	CompositeLinearDodge  CompositeOp = "linear_dodge"
	CompositeLighterColor CompositeOp = "lighter_color"
	CompositeOverlay      CompositeOp = "overlay"
	CompositeSoftLight    CompositeOp = "soft_light_photoshop"
	CompositeHardLight    CompositeOp = "hard_light"
	CompositeVividLight   CompositeOp = "vivid_light"
	CompositeLinearLight  CompositeOp = "linear_light"
	CompositePinLight     CompositeOp = "pin_light"
	CompositeHardMix      CompositeOp = "hard_mix_photoshop"
	CompositeDifference   CompositeOp = "diff"
	CompositeExclusion    CompositeOp = "exclusion"
	CompositeSubtract     CompositeOp = "subtract"
	CompositeDivide       CompositeOp = "divide"
	CompositeHue          CompositeOp = "hue"
	CompositeSaturation   CompositeOp = "saturation"
	CompositeColor        CompositeOp = "color"
	CompositeLuminosity   CompositeOp = "luminize"
)

// PassThroughKey is the blend key a group records when it does not isolate
// its contents.
const PassThroughKey = "pass"

var blendKeys = map[string]CompositeOp{
	"pass": CompositePassThrough,
	"norm": CompositeOver,
	"diss": CompositeDissolve,
	"dark": CompositeDarken,
	"mul ": CompositeMultiply,
	"idiv": CompositeBurn,
	"lbrn": CompositeLinearBurn,
	"dkCl": CompositeDarkerColor,
	"lite": CompositeLighten,
	"scrn": CompositeScreen,
	"div ": CompositeDodge,
	"lddg": CompositeLinearDodge,
	"lgCl": CompositeLighterColor,
	"over": CompositeOverlay,
	"sLit": CompositeSoftLight,
	"hLit": CompositeHardLight,
	"vLit": CompositeVividLight,
	"lLit": CompositeLinearLight,
	"pLit": CompositePinLight,
	"hMix": CompositeHardMix,
	"diff": CompositeDifference,
	"smud": CompositeExclusion,
	"fsub": CompositeSubtract,
	"fdiv": CompositeDivide,
	"hue ": CompositeHue,
	"sat ": CompositeSaturation,
	"colr": CompositeColor,
	"lum ": CompositeLuminosity,
}

// BlendModeFromKey maps a 4-character blend key to a composite op. Unknown
// keys fall back to CompositeOver and report false.
func BlendModeFromKey(key string) (CompositeOp, bool) {
	op, ok := blendKeys[key]
	if !ok {
		return CompositeOver, false
	}
	return op, true
}

// descriptorBlendModes maps the enum values used inside descriptors
// (layer effects, fill layers) to composite ops.
var descriptorBlendModes = map[string]CompositeOp{
	"Nrml":             CompositeOver,
	"Dslv":             CompositeDissolve,
	"Drkn":             CompositeDarken,
	"Mltp":             CompositeMultiply,
	"CBrn":             CompositeBurn,
	"linearBurn":       CompositeLinearBurn,
	"darkerColor":      CompositeDarkerColor,
	"Lghn":             CompositeLighten,
	"Scrn":             CompositeScreen,
	"CDdg":             CompositeDodge,
	"linearDodge":      CompositeLinearDodge,
	"lighterColor":     CompositeLighterColor,
	"Ovrl":             CompositeOverlay,
	"SftL":             CompositeSoftLight,
	"HrdL":             CompositeHardLight,
	"vividLight":       CompositeVividLight,
	"linearLight":      CompositeLinearLight,
	"pinLight":         CompositePinLight,
	"hardMix":          CompositeHardMix,
	"Dfrn":             CompositeDifference,
	"Xclu":             CompositeExclusion,
	"blendSubtraction": CompositeSubtract,
	"blendDivide":      CompositeDivide,
	"H   ":             CompositeHue,
	"Strt":             CompositeSaturation,
	"Clr ":             CompositeColor,
	"Lmns":             CompositeLuminosity,
}

// BlendModeFromDescriptor maps a descriptor 'BlnM' enum value.
func BlendModeFromDescriptor(v string) (CompositeOp, bool) {
	op, ok := descriptorBlendModes[v]
	if !ok {
		return CompositeOver, false
	}
	return op, true
}

// NormalizeGroupBlend folds the pass-through sentinel into a flag: the
// returned op is never CompositePassThrough.
func NormalizeGroupBlend(op CompositeOp) (CompositeOp, bool) {
	if op == CompositePassThrough {
		return CompositeOver, true
	}
	return op, false
}
