package cmm

import "errors"

// Profile represents a color profile (e.g., ICC).
type Profile interface {
	// Name returns the profile description or name.
	Name() string
	// ColorSpace returns the color space signature (e.g., "RGB ", "CMYK").
	ColorSpace() string
	// Class returns the profile class (e.g., "mntr", "prtr").
	Class() string
	// Data returns the raw profile bytes; built-in profiles return nil.
	Data() []byte
}

// Factory creates profiles from embedded data.
type Factory interface {
	NewProfile(data []byte) (Profile, error)
}

type factoryImpl struct{}

// NewFactory returns the default ICC profile factory.
func NewFactory() Factory {
	return &factoryImpl{}
}

func (f *factoryImpl) NewProfile(data []byte) (Profile, error) {
	return NewICCProfile(data)
}

// ErrUnsupportedColorSpace is returned when no installed color space matches
// a (model, depth, profile) request.
var ErrUnsupportedColorSpace = errors.New("unsupported color space")

// ErrProfileMismatch is returned when a profile describes a different color model.
var ErrProfileMismatch = errors.New("profile does not match color model")

type builtinProfile struct {
	name  string
	space string
}

func (p builtinProfile) Name() string       { return p.name }
func (p builtinProfile) ColorSpace() string { return p.space }
func (p builtinProfile) Class() string      { return "mntr" }
func (p builtinProfile) Data() []byte       { return nil }
