package cmm

import (
	"bytes"
	"fmt"
	"sync"
)

// Model identifies a color model with an alpha channel.
type Model string

const (
	ModelRGBA  Model = "RGBA"
	ModelGrayA Model = "GRAYA"
	ModelCMYKA Model = "CMYKA"
	ModelLABA  Model = "LABA"
)

// Depth identifies the per-channel sample type.
type Depth string

const (
	DepthU8  Depth = "U8"
	DepthU16 Depth = "U16"
	DepthF32 Depth = "F32"
)

// BytesPerSample returns the storage size of one channel sample.
func (d Depth) BytesPerSample() int {
	switch d {
	case DepthU16:
		return 2
	case DepthF32:
		return 4
	default:
		return 1
	}
}

// signature is the ICC color space signature a profile must carry for m.
func (m Model) signature() string {
	switch m {
	case ModelRGBA:
		return "RGB "
	case ModelGrayA:
		return "GRAY"
	case ModelCMYKA:
		return "CMYK"
	case ModelLABA:
		return "Lab "
	}
	return ""
}

// ColorSpace is a resolved pixel format. Its channel layout is explicit:
// source color channel ids map to pixel offsets through ChannelIndex.
type ColorSpace struct {
	Model    Model
	Depth    Depth
	Profile  Profile
	Channels []string

	colorIndex []int // source color channel id -> pixel channel
	alphaIndex int
}

// ID returns a stable identifier such as "RGBA/U8".
func (cs *ColorSpace) ID() string { return string(cs.Model) + "/" + string(cs.Depth) }

// ChannelCount returns the number of channels per pixel, alpha included.
func (cs *ColorSpace) ChannelCount() int { return len(cs.Channels) }

// ColorChannels returns the number of color channels, alpha excluded.
func (cs *ColorSpace) ColorChannels() int { return len(cs.colorIndex) }

// PixelSize returns bytes per pixel.
func (cs *ColorSpace) PixelSize() int { return len(cs.Channels) * cs.Depth.BytesPerSample() }

// AlphaIndex returns the pixel channel holding alpha.
func (cs *ColorSpace) AlphaIndex() int { return cs.alphaIndex }

// ChannelIndex maps a source channel id (0.. for color, -1 for alpha) to the
// channel position inside a pixel.
func (cs *ColorSpace) ChannelIndex(id int) (int, bool) {
	if id == -1 {
		return cs.alphaIndex, true
	}
	if id < 0 || id >= len(cs.colorIndex) {
		return 0, false
	}
	return cs.colorIndex[id], true
}

func (cs *ColorSpace) String() string {
	name := "<none>"
	if cs.Profile != nil {
		name = cs.Profile.Name()
	}
	return fmt.Sprintf("%s (%s)", cs.ID(), name)
}

// Registry resolves installed color spaces.
type Registry interface {
	// ColorSpace returns the space for (model, depth) bound to profile. A nil
	// profile selects the model's default profile.
	ColorSpace(model Model, depth Depth, profile Profile) (*ColorSpace, error)
	// DefaultProfile returns the profile used when a document embeds none.
	DefaultProfile(model Model) Profile
}

type layout struct {
	channels   []string
	colorIndex []int
	alphaIndex int
}

// Integer RGB is stored blue-first, matching common compositing back ends;
// floating point keeps source order.
var layouts = map[string]layout{
	"RGBA/U8":   {[]string{"B", "G", "R", "A"}, []int{2, 1, 0}, 3},
	"RGBA/U16":  {[]string{"B", "G", "R", "A"}, []int{2, 1, 0}, 3},
	"RGBA/F32":  {[]string{"R", "G", "B", "A"}, []int{0, 1, 2}, 3},
	"GRAYA/U8":  {[]string{"Y", "A"}, []int{0}, 1},
	"GRAYA/U16": {[]string{"Y", "A"}, []int{0}, 1},
	"GRAYA/F32": {[]string{"Y", "A"}, []int{0}, 1},
	"CMYKA/U8":  {[]string{"C", "M", "Y", "K", "A"}, []int{0, 1, 2, 3}, 4},
	"CMYKA/U16": {[]string{"C", "M", "Y", "K", "A"}, []int{0, 1, 2, 3}, 4},
	"CMYKA/F32": {[]string{"C", "M", "Y", "K", "A"}, []int{0, 1, 2, 3}, 4},
	"LABA/U8":   {[]string{"L", "a", "b", "A"}, []int{0, 1, 2}, 3},
	"LABA/U16":  {[]string{"L", "a", "b", "A"}, []int{0, 1, 2}, 3},
	"LABA/F32":  {[]string{"L", "a", "b", "A"}, []int{0, 1, 2}, 3},
}

// MemoryRegistry is the built-in Registry. It caches resolved spaces.
type MemoryRegistry struct {
	mu       sync.Mutex
	defaults map[Model]Profile
	spaces   map[string]*ColorSpace
}

var (
	registryOnce sync.Once
	registry     *MemoryRegistry
)

// DefaultRegistry returns the process-wide registry of built-in color spaces.
func DefaultRegistry() Registry {
	registryOnce.Do(func() {
		registry = NewRegistry()
	})
	return registry
}

// NewRegistry returns an empty registry with the built-in layouts and default profiles.
func NewRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		defaults: map[Model]Profile{
			ModelRGBA:  builtinProfile{name: "sRGB-elle-V2-srgbtrc.icc", space: "RGB "},
			ModelGrayA: builtinProfile{name: "Gray-D50-elle-V2-srgbtrc.icc", space: "GRAY"},
			ModelCMYKA: builtinProfile{name: "Chemical proof", space: "CMYK"},
			ModelLABA:  builtinProfile{name: "Lab identity built-in", space: "Lab "},
		},
		spaces: make(map[string]*ColorSpace),
	}
}

func (r *MemoryRegistry) DefaultProfile(model Model) Profile { return r.defaults[model] }

func (r *MemoryRegistry) ColorSpace(model Model, depth Depth, profile Profile) (*ColorSpace, error) {
	key := string(model) + "/" + string(depth)
	l, ok := layouts[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedColorSpace, key)
	}
	if profile == nil {
		profile = r.defaults[model]
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: no profile for %s", ErrUnsupportedColorSpace, key)
	}
	if profile.ColorSpace() != model.signature() {
		return nil, fmt.Errorf("%w: %q for %s", ErrProfileMismatch, profile.ColorSpace(), key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	cacheKey := key + "|" + profile.Name()
	if cs, ok := r.spaces[cacheKey]; ok && sameProfile(cs.Profile, profile) {
		return cs, nil
	}
	cs := &ColorSpace{
		Model:      model,
		Depth:      depth,
		Profile:    profile,
		Channels:   l.channels,
		colorIndex: l.colorIndex,
		alphaIndex: l.alphaIndex,
	}
	r.spaces[cacheKey] = cs
	return cs, nil
}

func sameProfile(a, b Profile) bool {
	return a.Name() == b.Name() && bytes.Equal(a.Data(), b.Data())
}
