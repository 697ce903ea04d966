package cmm

import (
	"encoding/binary"
	"errors"
	"testing"
)

// buildProfile returns a minimal profile with one 'desc' tag holding payload.
func buildProfile(space string, desc []byte) []byte {
	data := make([]byte, 128+4+12)
	binary.BigEndian.PutUint32(data[12:16], 0x6D6E7472) // mntr
	copy(data[16:20], space)
	copy(data[36:40], "acsp")
	data[8] = 2
	data[9] = 0x10
	binary.BigEndian.PutUint32(data[128:], 1)
	copy(data[132:136], "desc")
	binary.BigEndian.PutUint32(data[136:], uint32(len(data)))
	binary.BigEndian.PutUint32(data[140:], uint32(len(desc)))
	data = append(data, desc...)
	binary.BigEndian.PutUint32(data[0:4], uint32(len(data)))
	return data
}

func TestICCProfileParse(t *testing.T) {
	desc := []byte("desc\x00\x00\x00\x00\x00\x00\x00\x0bsRGB Custom")
	p, err := NewICCProfile(buildProfile("RGB ", desc))
	if err != nil {
		t.Fatalf("NewICCProfile failed: %v", err)
	}
	if p.Class() != "mntr" {
		t.Errorf("expected class 'mntr', got '%s'", p.Class())
	}
	if p.ColorSpace() != "RGB " {
		t.Errorf("expected color space 'RGB ', got '%s'", p.ColorSpace())
	}
	if p.Name() != "sRGB Custom" {
		t.Errorf("expected description, got %q", p.Name())
	}
	if p.Version() != "2.1" {
		t.Errorf("version = %s", p.Version())
	}
}

func TestICCProfileMLUC(t *testing.T) {
	text := []byte{0, 'G', 0, 'r', 0, 'a', 0, 'y'}
	desc := make([]byte, 28)
	copy(desc, "mluc")
	binary.BigEndian.PutUint32(desc[8:], 1)
	binary.BigEndian.PutUint32(desc[12:], 12)
	copy(desc[16:], "enUS")
	binary.BigEndian.PutUint32(desc[20:], uint32(len(text)))
	binary.BigEndian.PutUint32(desc[24:], 28)
	desc = append(desc, text...)

	p, err := NewICCProfile(buildProfile("GRAY", desc))
	if err != nil {
		t.Fatalf("NewICCProfile failed: %v", err)
	}
	if p.Name() != "Gray" {
		t.Fatalf("expected mluc description, got %q", p.Name())
	}
}

func TestICCProfileInvalid(t *testing.T) {
	if _, err := NewICCProfile(make([]byte, 64)); err == nil {
		t.Fatal("short profile should fail")
	}
	if _, err := NewICCProfile(make([]byte, 200)); err == nil {
		t.Fatal("profile without acsp should fail")
	}
}

func TestRegistryResolution(t *testing.T) {
	reg := NewRegistry()

	cs, err := reg.ColorSpace(ModelRGBA, DepthU8, nil)
	if err != nil {
		t.Fatalf("default RGBA/U8: %v", err)
	}
	if cs.Profile.Name() != "sRGB-elle-V2-srgbtrc.icc" {
		t.Fatalf("unexpected default profile %q", cs.Profile.Name())
	}
	if cs.PixelSize() != 4 || cs.ChannelCount() != 4 {
		t.Fatalf("pixel size %d channels %d", cs.PixelSize(), cs.ChannelCount())
	}
	// Red (source id 0) lives at offset 2 in the blue-first layout.
	if idx, ok := cs.ChannelIndex(0); !ok || idx != 2 {
		t.Fatalf("red index = %d %v", idx, ok)
	}
	if idx, ok := cs.ChannelIndex(-1); !ok || idx != 3 {
		t.Fatalf("alpha index = %d %v", idx, ok)
	}
	if _, ok := cs.ChannelIndex(3); ok {
		t.Fatalf("RGB has no fourth color channel")
	}

	f32, err := reg.ColorSpace(ModelRGBA, DepthF32, nil)
	if err != nil {
		t.Fatalf("RGBA/F32: %v", err)
	}
	if idx, _ := f32.ChannelIndex(0); idx != 0 || f32.PixelSize() != 16 {
		t.Fatalf("float layout keeps source order")
	}

	again, _ := reg.ColorSpace(ModelRGBA, DepthU8, nil)
	if again != cs {
		t.Fatalf("registry should cache resolved spaces")
	}

	gray, err := NewICCProfile(buildProfile("GRAY", nil))
	if err != nil {
		t.Fatalf("gray profile: %v", err)
	}
	if _, err := reg.ColorSpace(ModelRGBA, DepthU8, gray); !errors.Is(err, ErrProfileMismatch) {
		t.Fatalf("expected profile mismatch, got %v", err)
	}
	if _, err := reg.ColorSpace(Model("XYZA"), DepthU8, nil); !errors.Is(err, ErrUnsupportedColorSpace) {
		t.Fatalf("expected unsupported, got %v", err)
	}
}
