package fonts_test

import (
	"testing"

	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/language"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/wudi/psdkit/fonts"
)

func TestDetectScript(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect language.Script
	}{
		{"Latin", "Hello World", language.Latin},
		{"Arabic", "مرحبا بالعالم", language.Arabic},
		{"Hebrew", "שלום עולם", language.Hebrew},
		{"Cyrillic", "Привет мир", language.Cyrillic},
		{"Greek", "Γειά σου Κόσμε", language.Greek},
		// Ties keep the first script reaching the count.
		{"Mixed Latin/Arabic (Latin dominant)", "Hello World مرحبا", language.Latin},
		{"Mixed Latin/Arabic (Arabic dominant)", "مرحبا بالعالم Hello", language.Arabic},
		{"CJK (Han)", "你好世界", language.Han},
		{"Hiragana", "こんにちは", language.Hiragana},
		{"Hangul", "안녕하세요", language.Hangul},
		{"Digits only", "1234", language.Latin},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := fonts.DetectScript([]rune(tc.input))
			if got != tc.expect {
				t.Errorf("DetectScript(%q) = %v, want %v", tc.input, got, tc.expect)
			}
		})
	}
}

func TestDirection(t *testing.T) {
	if fonts.Direction(language.Hebrew) != di.DirectionRTL {
		t.Fatalf("hebrew should be rtl")
	}
	if fonts.Direction(language.Latin) != di.DirectionLTR {
		t.Fatalf("latin should be ltr")
	}
	if !fonts.IsRTL("שלום") || fonts.IsRTL("hello") {
		t.Fatalf("IsRTL misclassified")
	}
}

func TestLanguageTag(t *testing.T) {
	if got := fonts.LanguageTag("en_US"); got != "en-us" {
		t.Fatalf("LanguageTag = %q", got)
	}
	if fonts.LanguageTag("") != "" {
		t.Fatalf("empty tag should stay empty")
	}
}

func TestInfoFromPostScriptName(t *testing.T) {
	tests := []struct {
		name   string
		family string
		weight int
		italic bool
	}{
		{"ArialMT", "Arial", 400, false},
		{"MyriadPro-BoldIt", "Myriad Pro", 700, true},
		{"SourceSansPro-Light", "Source Sans Pro", 300, false},
		{"Helvetica-Oblique", "Helvetica", 400, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			info := fonts.InfoFromPostScriptName(tc.name)
			if info.Families[0] != tc.family || info.Weight != tc.weight || info.Italic != tc.italic {
				t.Fatalf("info = %+v", info)
			}
		})
	}
}

func TestFontSetResolve(t *testing.T) {
	fs := fonts.NewFontSet()
	added, err := fs.Add(goregular.TTF)
	if err != nil {
		t.Fatal(err)
	}
	face, ok := fs.Resolve(added.PostScriptName)
	if !ok {
		t.Fatalf("built-in face not registered under its PostScript name")
	}
	if face.Ascent <= 0 || face.Ascent > 2 {
		t.Fatalf("ascent per em = %v", face.Ascent)
	}
	missing, ok := fs.Resolve("NoSuchFont-Bold")
	if ok {
		t.Fatalf("unexpected match")
	}
	if missing.Weight != 700 || missing.Ascent != face.Ascent {
		t.Fatalf("fallback = %+v", missing)
	}
	if got := fs.Ascent("NoSuchFont", 10); got != face.Ascent*10 {
		t.Fatalf("Ascent = %v", got)
	}
	if _, err := fs.Add(nil); err == nil {
		t.Fatalf("expected error for empty data")
	}
}
