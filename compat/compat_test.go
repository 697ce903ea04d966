package compat

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/wudi/psdkit/cmm"
)

func TestBlendModeFromKey(t *testing.T) {
	tests := []struct {
		key  string
		want CompositeOp
		ok   bool
	}{
		{"norm", CompositeOver, true},
		{"mul ", CompositeMultiply, true},
		{"div ", CompositeDodge, true},
		{"idiv", CompositeBurn, true},
		{"smud", CompositeExclusion, true},
		{"pass", CompositePassThrough, true},
		{"zzzz", CompositeOver, false},
	}
	for _, tt := range tests {
		got, ok := BlendModeFromKey(tt.key)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BlendModeFromKey(%q) = %s, %v; want %s, %v", tt.key, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNormalizeGroupBlend(t *testing.T) {
	op, pass := NormalizeGroupBlend(CompositePassThrough)
	if op != CompositeOver || !pass {
		t.Fatalf("pass-through should fold into a flag, got %s %v", op, pass)
	}
	op, pass = NormalizeGroupBlend(CompositeScreen)
	if op != CompositeScreen || pass {
		t.Fatalf("regular blend must be kept, got %s %v", op, pass)
	}
	if op, ok := BlendModeFromDescriptor("Mltp"); !ok || op != CompositeMultiply {
		t.Fatalf("descriptor blend mode = %s", op)
	}
}

func TestModelFor(t *testing.T) {
	tests := []struct {
		mode  ColorMode
		bits  int
		model cmm.Model
		depth cmm.Depth
	}{
		{ColorModeRGB, 8, cmm.ModelRGBA, cmm.DepthU8},
		{ColorModeRGB, 16, cmm.ModelRGBA, cmm.DepthU16},
		{ColorModeRGB, 32, cmm.ModelRGBA, cmm.DepthF32},
		{ColorModeBitmap, 1, cmm.ModelGrayA, cmm.DepthU8},
		{ColorModeDuotone, 8, cmm.ModelGrayA, cmm.DepthU8},
		{ColorModeIndexed, 8, cmm.ModelRGBA, cmm.DepthU8},
		{ColorModeCMYK, 8, cmm.ModelCMYKA, cmm.DepthU8},
		{ColorModeLab, 16, cmm.ModelLABA, cmm.DepthU16},
	}
	for _, tt := range tests {
		m, d, err := ModelFor(tt.mode, tt.bits)
		if err != nil || m != tt.model || d != tt.depth {
			t.Errorf("ModelFor(%s, %d) = %s %s %v", tt.mode, tt.bits, m, d, err)
		}
	}
	if _, _, err := ModelFor(ColorMode(5), 8); !errors.Is(err, cmm.ErrUnsupportedColorSpace) {
		t.Fatalf("mode 5 should be unsupported, got %v", err)
	}
	if _, _, err := ModelFor(ColorModeRGB, 12); !errors.Is(err, cmm.ErrUnsupportedColorSpace) {
		t.Fatalf("12 bits should be unsupported, got %v", err)
	}
}

func iccWithSpace(space string) []byte {
	data := make([]byte, 132)
	binary.BigEndian.PutUint32(data[0:4], 132)
	copy(data[12:16], "mntr")
	copy(data[16:20], space)
	copy(data[36:40], "acsp")
	return data
}

type emptyRegistry struct{}

func (emptyRegistry) ColorSpace(cmm.Model, cmm.Depth, cmm.Profile) (*cmm.ColorSpace, error) {
	return nil, cmm.ErrUnsupportedColorSpace
}
func (emptyRegistry) DefaultProfile(cmm.Model) cmm.Profile { return nil }

func TestResolveColorSpace(t *testing.T) {
	reg := cmm.NewRegistry()

	cs, note, err := ResolveColorSpace(reg, ColorModeRGB, 8, iccWithSpace("RGB "))
	if err != nil || note != nil {
		t.Fatalf("embedded profile: %v %v", note, err)
	}
	if cs.Profile.Data() == nil {
		t.Fatalf("embedded profile should be bound")
	}

	// A gray profile in an RGB document falls back to the default profile.
	cs, note, err = ResolveColorSpace(reg, ColorModeRGB, 8, iccWithSpace("GRAY"))
	if err != nil {
		t.Fatalf("fallback failed: %v", err)
	}
	if note == nil || cs.Profile.Name() != reg.DefaultProfile(cmm.ModelRGBA).Name() {
		t.Fatalf("expected default profile with a note, got %s %v", cs.Profile.Name(), note)
	}

	if _, _, err := ResolveColorSpace(emptyRegistry{}, ColorModeRGB, 8, nil); !errors.Is(err, cmm.ErrUnsupportedColorSpace) {
		t.Fatalf("expected ErrUnsupportedColorSpace, got %v", err)
	}
}

func TestUnits(t *testing.T) {
	if got := ToPoints(300, 300); got != 72 {
		t.Fatalf("300px at 300ppi = %v pt", got)
	}
	if got := ToPixels(72, 144); got != 144 {
		t.Fatalf("72pt at 144ppi = %v px", got)
	}
	if got := PixelsPerPoint(0); got != 1 {
		t.Fatalf("default resolution = %v", got)
	}
}
