// Package fonts resolves the PostScript font names recorded by text layers
// into CSS font information and vertical metrics.
package fonts

import (
	"fmt"
	"strings"
	"sync"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// Info is the CSS description of a resolved face.
type Info struct {
	PostScriptName string
	Families       []string
	Weight         int // CSS weight, 100..900
	Italic         bool
	Width          int // CSS font-stretch percentage, 100 is normal
}

// Face is a loaded font with metrics normalised to one em.
type Face struct {
	Info
	Ascent  float64
	Descent float64
}

// FontSet indexes faces by PostScript name. The zero value is not usable;
// use NewFontSet.
type FontSet struct {
	mu       sync.RWMutex
	faces    map[string]*Face
	fallback *Face
}

// NewFontSet returns a set holding the built-in Go Regular face, which is
// also the metrics fallback for unresolved names.
func NewFontSet() *FontSet {
	fs := &FontSet{faces: make(map[string]*Face)}
	f, err := fs.Add(goregular.TTF)
	if err != nil {
		panic(fmt.Sprintf("fonts: built-in face: %v", err))
	}
	fs.fallback = f
	return fs
}

// Add parses a TrueType or OpenType font and registers it under its
// PostScript name.
func (fs *FontSet) Add(data []byte) (*Face, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("font data is empty")
	}
	font, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	upem := font.UnitsPerEm()
	if upem == 0 {
		return nil, fmt.Errorf("invalid unitsPerEm")
	}
	buf := &sfnt.Buffer{}
	ppem := fixed.Int26_6(upem) << 6
	metrics, err := font.Metrics(buf, ppem, xfont.HintingNone)
	if err != nil {
		return nil, fmt.Errorf("font metrics: %w", err)
	}

	ps, _ := font.Name(buf, sfnt.NameIDPostScript)
	family, _ := font.Name(buf, sfnt.NameIDFamily)
	sub, _ := font.Name(buf, sfnt.NameIDSubfamily)
	if ps == "" {
		ps = strings.ReplaceAll(family+"-"+sub, " ", "")
	}
	info := InfoFromPostScriptName(ps)
	if family != "" {
		info.Families = []string{family}
	}
	if sub != "" {
		w, italic, width := styleFromName(sub)
		info.Weight, info.Width = w, width
		info.Italic = info.Italic || italic
	}
	face := &Face{
		Info:    info,
		Ascent:  scale(metrics.Ascent, upem),
		Descent: scale(metrics.Descent, upem),
	}
	fs.mu.Lock()
	fs.faces[ps] = face
	fs.mu.Unlock()
	return face, nil
}

func scale(v fixed.Int26_6, upem sfnt.Units) float64 {
	return float64(v) / (64.0 * float64(upem))
}

// Resolve looks a face up by PostScript name. When the name is unknown it
// returns a face whose Info is derived from the name and whose metrics come
// from the fallback face, with ok set to false.
func (fs *FontSet) Resolve(postScriptName string) (face *Face, ok bool) {
	fs.mu.RLock()
	f, ok := fs.faces[postScriptName]
	fs.mu.RUnlock()
	if ok {
		return f, true
	}
	return &Face{
		Info:    InfoFromPostScriptName(postScriptName),
		Ascent:  fs.fallback.Ascent,
		Descent: fs.fallback.Descent,
	}, false
}

// Ascent returns the ascent of the named face at size.
func (fs *FontSet) Ascent(postScriptName string, size float64) float64 {
	f, _ := fs.Resolve(postScriptName)
	return f.Ascent * size
}

var weights = []struct {
	key    string
	weight int
}{
	{"extralight", 200}, {"ultralight", 200}, {"semibold", 600}, {"demibold", 600},
	{"extrabold", 800}, {"ultrabold", 800}, {"hairline", 100}, {"thin", 100},
	{"light", 300}, {"medium", 500}, {"bold", 700}, {"heavy", 900}, {"black", 900},
}

var widths = []struct {
	key   string
	width int
}{
	{"ultracondensed", 50}, {"extracondensed", 62}, {"semicondensed", 87}, {"condensed", 75},
	{"semiexpanded", 112}, {"extraexpanded", 150}, {"expanded", 125},
}

func styleFromName(style string) (weight int, italic bool, width int) {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	weight, width = 400, 100
	for _, w := range weights {
		if strings.Contains(s, w.key) {
			weight = w.weight
			break
		}
	}
	for _, w := range widths {
		if strings.Contains(s, w.key) {
			width = w.width
			break
		}
	}
	italic = strings.Contains(s, "italic") || strings.Contains(s, "oblique")
	return weight, italic, width
}

// InfoFromPostScriptName guesses CSS information from a PostScript name
// such as "MyriadPro-BoldIt" or "ArialMT".
func InfoFromPostScriptName(name string) Info {
	family, style, _ := strings.Cut(name, "-")
	family = strings.TrimSuffix(family, "MT")
	family = strings.TrimSuffix(family, "PS")
	style = strings.ReplaceAll(style, "It", "Italic")
	weight, italic, width := styleFromName(style)
	return Info{
		PostScriptName: name,
		Families:       []string{splitCamel(family)},
		Weight:         weight,
		Italic:         italic,
		Width:          width,
	}
}

// splitCamel inserts spaces at lower-to-upper case boundaries.
func splitCamel(s string) string {
	var sb strings.Builder
	prev := rune(0)
	for _, r := range s {
		if prev >= 'a' && prev <= 'z' && r >= 'A' && r <= 'Z' {
			sb.WriteByte(' ')
		}
		sb.WriteRune(r)
		prev = r
	}
	return sb.String()
}
