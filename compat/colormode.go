package compat

import (
	"fmt"

	"github.com/wudi/psdkit/cmm"
)

// ColorMode is the header's color mode field.
type ColorMode uint16

const (
	ColorModeBitmap       ColorMode = 0
	ColorModeGrayscale    ColorMode = 1
	ColorModeIndexed      ColorMode = 2
	ColorModeRGB          ColorMode = 3
	ColorModeCMYK         ColorMode = 4
	ColorModeMultichannel ColorMode = 7
	ColorModeDuotone      ColorMode = 8
	ColorModeLab          ColorMode = 9
)

func (m ColorMode) String() string {
	switch m {
	case ColorModeBitmap:
		return "Bitmap"
	case ColorModeGrayscale:
		return "Grayscale"
	case ColorModeIndexed:
		return "Indexed"
	case ColorModeRGB:
		return "RGB"
	case ColorModeCMYK:
		return "CMYK"
	case ColorModeMultichannel:
		return "Multichannel"
	case ColorModeDuotone:
		return "Duotone"
	case ColorModeLab:
		return "Lab"
	default:
		return fmt.Sprintf("ColorMode(%d)", uint16(m))
	}
}

// Valid reports whether m is one of the defined modes.
func (m ColorMode) Valid() bool {
	switch m {
	case ColorModeBitmap, ColorModeGrayscale, ColorModeIndexed, ColorModeRGB,
		ColorModeCMYK, ColorModeMultichannel, ColorModeDuotone, ColorModeLab:
		return true
	}
	return false
}

// ModelFor maps a header color mode and bit depth onto a (model, depth) pair.
func ModelFor(mode ColorMode, bits int) (cmm.Model, cmm.Depth, error) {
	var model cmm.Model
	switch mode {
	case ColorModeBitmap, ColorModeGrayscale, ColorModeDuotone:
		model = cmm.ModelGrayA
	case ColorModeIndexed, ColorModeRGB, ColorModeMultichannel:
		model = cmm.ModelRGBA
	case ColorModeCMYK:
		model = cmm.ModelCMYKA
	case ColorModeLab:
		model = cmm.ModelLABA
	default:
		return "", "", fmt.Errorf("%w: color mode %s", cmm.ErrUnsupportedColorSpace, mode)
	}
	var depth cmm.Depth
	switch bits {
	case 1, 8:
		depth = cmm.DepthU8
	case 16:
		depth = cmm.DepthU16
	case 32:
		depth = cmm.DepthF32
	default:
		return "", "", fmt.Errorf("%w: %d bits per channel", cmm.ErrUnsupportedColorSpace, bits)
	}
	return model, depth, nil
}

// ResolveColorSpace resolves the document color space. An embedded ICC
// profile is tried first; when it is unusable the model's default profile
// is used and the profile problem is returned as a non-fatal note. If both
// fail the error wraps cmm.ErrUnsupportedColorSpace.
func ResolveColorSpace(reg cmm.Registry, mode ColorMode, bits int, icc []byte) (cs *cmm.ColorSpace, note error, err error) {
	model, depth, err := ModelFor(mode, bits)
	if err != nil {
		return nil, nil, err
	}
	if len(icc) > 0 {
		profile, perr := cmm.NewFactory().NewProfile(icc)
		if perr == nil {
			cs, perr = reg.ColorSpace(model, depth, profile)
			if perr == nil {
				return cs, nil, nil
			}
		}
		note = fmt.Errorf("embedded ICC profile rejected: %w", perr)
	}
	cs, err = reg.ColorSpace(model, depth, reg.DefaultProfile(model))
	if err != nil {
		return nil, note, fmt.Errorf("%w: %s/%s: %v", cmm.ErrUnsupportedColorSpace, model, depth, err)
	}
	return cs, note, nil
}
