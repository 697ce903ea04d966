package fonts

import (
	"unicode"

	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/language"
)

// DetectScript returns the script with the most runes in text. Ties keep the
// script seen first; text without any classified rune is Latin.
func DetectScript(runes []rune) language.Script {
	counts := make(map[language.Script]int)
	maxCount := 0
	best := language.Latin
	for _, r := range runes {
		s := scriptFromRune(r)
		if s == language.Unknown {
			continue
		}
		counts[s]++
		if counts[s] > maxCount {
			maxCount = counts[s]
			best = s
		}
	}
	return best
}

var scriptTables = []struct {
	table  *unicode.RangeTable
	script language.Script
}{
	{unicode.Arabic, language.Arabic},
	{unicode.Hebrew, language.Hebrew},
	{unicode.Latin, language.Latin},
	{unicode.Cyrillic, language.Cyrillic},
	{unicode.Greek, language.Greek},
	{unicode.Thai, language.Thai},
	{unicode.Devanagari, language.Devanagari},
	{unicode.Syriac, language.Syriac},
	{unicode.Thaana, language.Thaana},
	{unicode.Nko, language.Nko},
	{unicode.Han, language.Han},
	{unicode.Hiragana, language.Hiragana},
	{unicode.Katakana, language.Katakana},
	{unicode.Hangul, language.Hangul},
}

func scriptFromRune(r rune) language.Script {
	for _, s := range scriptTables {
		if unicode.Is(s.table, r) {
			return s.script
		}
	}
	return language.Unknown
}

// Direction is the inline direction of a script.
func Direction(script language.Script) di.Direction {
	switch script {
	case language.Arabic, language.Hebrew, language.Syriac, language.Thaana, language.Nko:
		return di.DirectionRTL
	default:
		return di.DirectionLTR
	}
}

// IsRTL reports whether text is dominated by a right-to-left script.
func IsRTL(text string) bool {
	return Direction(DetectScript([]rune(text))) == di.DirectionRTL
}

// LanguageTag canonicalises a BCP 47 tag for xml:lang ("en_US" -> "en-us").
func LanguageTag(tag string) string {
	if tag == "" {
		return ""
	}
	return string(language.NewLanguage(tag))
}
